package channel

import (
	"context"
	"sync"

	"github.com/homelead/distributor/internal/models"
)

// MockClient implements Client for testing. It records calls and returns
// configurable results.
type MockClient struct {
	mu sync.Mutex

	SendErr    error
	SendCode   int
	State      string
	StateCode  int
	StateErr   error
	RestartErr error

	sent     []SendRequest
	restarts []string
}

// NewMockClient creates a MockClient that reports every instance open and
// every send as accepted.
func NewMockClient() *MockClient {
	return &MockClient{SendCode: 201, State: models.ChannelOpen, StateCode: 200}
}

// Send records the request and returns the configured result.
func (m *MockClient) Send(ctx context.Context, inst models.ChannelInstance, req SendRequest) (SendResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, req)
	if m.SendErr != nil {
		return SendResult{StatusCode: m.SendCode}, m.SendErr
	}
	return SendResult{StatusCode: m.SendCode}, nil
}

// ConnectionState returns the configured state.
func (m *MockClient) ConnectionState(ctx context.Context, inst models.ChannelInstance) (StateResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.StateErr != nil {
		return StateResult{}, m.StateErr
	}
	return StateResult{State: m.State, StatusCode: m.StateCode}, nil
}

// Restart records the restart and returns the configured error.
func (m *MockClient) Restart(ctx context.Context, inst models.ChannelInstance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.restarts = append(m.restarts, inst.Name)
	return m.RestartErr
}

// Sent returns a copy of the recorded send requests.
func (m *MockClient) Sent() []SendRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SendRequest, len(m.sent))
	copy(out, m.sent)
	return out
}

// Restarts returns the instance names that received restart commands.
func (m *MockClient) Restarts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.restarts))
	copy(out, m.restarts)
	return out
}
