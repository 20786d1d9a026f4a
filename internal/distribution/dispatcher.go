package distribution

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/homelead/distributor/internal/delivery"
	"github.com/homelead/distributor/internal/models"
	"gorm.io/gorm"
)

// DefaultResponseWindow is the time a candidate has to answer an offer.
const DefaultResponseWindow = 30 * time.Minute

// OfferPriority makes offer notifications jump the delivery queue ahead
// of routine traffic.
const OfferPriority = 1

// Dispatcher turns a ranked candidate into a pending attempt plus the
// outbound offer message. Never called concurrently for the same work
// item: only Start and Advance invoke it, and both run strictly after
// the previous attempt is conclusively resolved.
type Dispatcher struct {
	db          *gorm.DB
	renderer    TemplateRenderer
	contacts    ContactResolver
	window      time.Duration
	templateKey string
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(db *gorm.DB, renderer TemplateRenderer, contacts ContactResolver, window time.Duration, templateKey string) *Dispatcher {
	if window <= 0 {
		window = DefaultResponseWindow
	}
	if templateKey == "" {
		templateKey = "lead_offer"
	}
	return &Dispatcher{db: db, renderer: renderer, contacts: contacts, window: window, templateKey: templateKey}
}

// Dispatch creates the pending attempt and enqueues the offer message in
// one transaction, so a delivery failure cannot leave an attempt without
// its notification.
func (d *Dispatcher) Dispatch(ctx context.Context, item *models.WorkItem, agentID uint, order int) (*models.Attempt, error) {
	address, err := d.contacts.GetAgentContact(ctx, agentID)
	if err != nil {
		return nil, err
	}

	text, err := d.renderer.Render(d.templateKey, map[string]string{
		"subject_type":  item.SubjectType,
		"subject_id":    strconv.FormatUint(uint64(item.SubjectID), 10),
		"attempt_order": strconv.Itoa(order),
	})
	if err != nil {
		return nil, fmt.Errorf("distribution: render offer for work item %d: %w", item.ID, err)
	}

	now := time.Now()
	attempt := models.Attempt{
		WorkItemID:    item.ID,
		AgentID:       agentID,
		AttemptOrder:  order,
		Status:        models.AttemptPending,
		MessageSentAt: now,
		TimeoutAt:     now.Add(d.window),
	}

	msg, err := delivery.NewMessage(address, delivery.ButtonsPayload{
		Text: text,
		Buttons: []delivery.Button{
			{ID: "1", Label: "Accept"},
			{ID: "2", Label: "Decline"},
		},
	})
	if err != nil {
		return nil, err
	}
	msg.Priority = OfferPriority

	err = d.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&attempt).Error; err != nil {
			return fmt.Errorf("distribution: create attempt for work item %d: %w", item.ID, err)
		}
		msg.AttemptID = &attempt.ID
		return delivery.Enqueue(tx, msg)
	})
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}
