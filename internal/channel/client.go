// Package channel talks to the external messaging gateway: sending
// outbound messages through a channel instance, probing connection state,
// and issuing restart commands.
package channel

import (
	"context"
	"encoding/json"

	"github.com/homelead/distributor/internal/models"
)

// SendRequest is one outbound message bound for a channel instance.
type SendRequest struct {
	Address string          // recipient address (phone in E.164)
	Kind    string          // payload type, one of the models.Payload* constants
	Body    json.RawMessage // typed payload as stored on the delivery message
}

// SendResult reports the gateway's response to a send.
type SendResult struct {
	StatusCode int
}

// StateResult reports a connection state probe.
type StateResult struct {
	State      string // raw gateway state, e.g. "open", "connecting", "close"
	StatusCode int
}

// Client is the gateway operations surface. Implementations must honor
// context deadlines on every call.
type Client interface {
	Send(ctx context.Context, inst models.ChannelInstance, req SendRequest) (SendResult, error)
	ConnectionState(ctx context.Context, inst models.ChannelInstance) (StateResult, error)
	Restart(ctx context.Context, inst models.ChannelInstance) error
}
