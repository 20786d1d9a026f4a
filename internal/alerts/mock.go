package alerts

import (
	"context"
	"sync"
)

// Mock implements Notifier for testing. It records events and can be
// configured to fail.
type Mock struct {
	mu     sync.Mutex
	events []Event
	err    error
}

// NewMock creates a Mock notifier.
func NewMock() *Mock { return &Mock{} }

// SetError makes subsequent Notify calls return err.
func (m *Mock) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Notify records the event.
func (m *Mock) Notify(ctx context.Context, ev Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, ev)
	return nil
}

// Events returns a copy of the recorded events.
func (m *Mock) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}
