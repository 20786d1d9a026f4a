package distribution

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/homelead/distributor/internal/models"
	"gorm.io/gorm"
)

// Reply tokens. Button replies carry the button ID ("1"/"2"); free-text
// replies are matched case-insensitively.
var (
	acceptTokens = map[string]bool{"1": true, "yes": true, "sim": true, "accept": true, "aceitar": true}
	rejectTokens = map[string]bool{"2": true, "no": true, "nao": true, "não": true, "decline": true, "recusar": true}
)

// InboundReply is one message received from an agent. AttemptID is the
// attempt the gateway webhook echoed back from the offer message, or 0
// when the webhook carries no reference.
type InboundReply struct {
	Address   string
	Token     string
	Raw       string
	AttemptID uint
}

// HandleReply resolves an inbound reply against the sender's pending
// attempt. Best-effort by contract: a reply that cannot be correlated, an
// unrecognized token, or a race lost to the sweeper is logged and
// dropped, never surfaced to the sender. Only infrastructure failures
// return an error.
//
// Correlation prefers the echoed attempt ID; without one (or when the
// referenced attempt is not the sender's pending attempt) it falls back
// to the sender's most recent pending attempt. The fallback can
// misattribute a reply if the same agent holds concurrent offers from
// different work items, which is why the dispatcher embeds the attempt
// ID in every offer message.
func (m *Manager) HandleReply(ctx context.Context, r InboundReply) error {
	var agent models.Agent
	err := m.db.WithContext(ctx).Where("phone = ?", r.Address).First(&agent).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		log.Printf("distribution: reply from unknown address %s dropped", r.Address)
		return nil
	}
	if err != nil {
		return fmt.Errorf("distribution: resolve reply address %s: %w", r.Address, err)
	}

	attempt, err := m.correlate(ctx, agent.ID, r.AttemptID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		log.Printf("distribution: reply from agent %d has no pending attempt, dropped", agent.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("distribution: find pending attempt for agent %d: %w", agent.ID, err)
	}

	normalized := strings.ToLower(strings.TrimSpace(r.Token))
	var status string
	switch {
	case acceptTokens[normalized]:
		status = models.AttemptAccepted
	case rejectTokens[normalized]:
		status = models.AttemptRejected
	default:
		// The attempt stays pending until a valid reply or the timeout.
		log.Printf("distribution: unrecognized reply token %q for attempt %d, ignored", r.Token, attempt.ID)
		return nil
	}

	// Compare-and-swap against the sweeper: whichever writer observes
	// pending first wins, the loser's update affects zero rows.
	now := time.Now()
	result := m.db.WithContext(ctx).Model(&models.Attempt{}).
		Where("id = ? AND status = ?", attempt.ID, models.AttemptPending).
		Updates(map[string]interface{}{
			"status":               status,
			"response_received_at": now,
			"response_payload":     r.Raw,
		})
	if result.Error != nil {
		return fmt.Errorf("distribution: resolve attempt %d: %w", attempt.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		log.Printf("distribution: attempt %d already resolved, reply from agent %d discarded", attempt.ID, agent.ID)
		return nil
	}

	if status == models.AttemptAccepted {
		return m.Finalize(ctx, attempt.WorkItemID, attempt.AgentID)
	}
	return m.Advance(ctx, attempt.WorkItemID)
}

// correlate picks the attempt a reply answers. The agent-ID check on the
// explicit path stops one agent's reply from resolving another's offer.
func (m *Manager) correlate(ctx context.Context, agentID, attemptID uint) (*models.Attempt, error) {
	var attempt models.Attempt
	if attemptID != 0 {
		err := m.db.WithContext(ctx).
			Where("id = ? AND agent_id = ? AND status = ?", attemptID, agentID, models.AttemptPending).
			First(&attempt).Error
		if err == nil {
			return &attempt, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		log.Printf("distribution: attempt %d is not a pending attempt of agent %d, falling back", attemptID, agentID)
	}

	err := m.db.WithContext(ctx).
		Where("agent_id = ? AND status = ?", agentID, models.AttemptPending).
		Order("id DESC").
		First(&attempt).Error
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}
