package distribution

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/homelead/distributor/internal/alerts"
	"github.com/homelead/distributor/internal/models"
	"github.com/homelead/distributor/internal/scoring"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultMaxAttempts bounds candidate escalation per work item.
const DefaultMaxAttempts = 3

// Config holds the distribution policy knobs.
type Config struct {
	MaxAttempts    int
	ResponseWindow time.Duration
	TemplateKey    string
}

// ManagerOpts holds the dependencies for a Manager.
type ManagerOpts struct {
	DB       *gorm.DB
	Config   Config
	Renderer TemplateRenderer
	Contacts ContactResolver
	Subjects SubjectSource
	Sink     SubjectSink
	Alerts   alerts.Notifier
}

// Manager owns the work item lifecycle: enqueueing, starting, escalating
// to the next candidate, and finalizing. The relational store is the only
// coordination point, so any number of stateless instances may run it.
type Manager struct {
	db         *gorm.DB
	cfg        Config
	dispatcher *Dispatcher
	subjects   SubjectSource
	sink       SubjectSink
	alerts     alerts.Notifier
}

// NewManager creates a Manager.
func NewManager(opts ManagerOpts) *Manager {
	cfg := opts.Config
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	sink := opts.Sink
	if sink == nil {
		sink = LogSubjectSink{}
	}
	contacts := opts.Contacts
	if contacts == nil {
		contacts = DBContactResolver{DB: opts.DB}
	}
	renderer := opts.Renderer
	if renderer == nil {
		renderer = DefaultRenderer{}
	}
	return &Manager{
		db:         opts.DB,
		cfg:        cfg,
		dispatcher: NewDispatcher(opts.DB, renderer, contacts, cfg.ResponseWindow, cfg.TemplateKey),
		subjects:   opts.Subjects,
		sink:       sink,
		alerts:     opts.Alerts,
	}
}

// Enqueue creates a pending work item for the subject. Returns
// ErrAlreadyQueued when an unresolved item for the same subject exists;
// callers should treat that as success.
func (m *Manager) Enqueue(ctx context.Context, ref SubjectRef) (*models.WorkItem, error) {
	if ref.Type != models.SubjectLead && ref.Type != models.SubjectVisit {
		return nil, fmt.Errorf("distribution: unknown subject type %q", ref.Type)
	}

	item := models.WorkItem{
		SubjectType: ref.Type,
		SubjectID:   ref.ID,
		Status:      models.WorkItemPending,
	}
	// Check and insert inside one transaction with a locking read. On
	// MySQL the gap lock holds back a concurrent insert for the same
	// subject until commit, so two racing enqueues serialize instead of
	// both creating an item.
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Where("subject_type = ? AND subject_id = ? AND status IN ?",
			ref.Type, ref.ID, []string{models.WorkItemPending, models.WorkItemInProgress})
		// sqlite serializes writers on its own and rejects FOR UPDATE.
		if tx.Dialector.Name() == "mysql" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		var existing models.WorkItem
		err := q.First(&existing).Error
		if err == nil {
			return ErrAlreadyQueued
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("distribution: check queue for %s: %w", ref, err)
		}
		if err := tx.Create(&item).Error; err != nil {
			return fmt.Errorf("distribution: enqueue %s: %w", ref, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// Start moves a pending item to in_progress and dispatches the top
// candidate. Returns ErrNoEligibleCandidates when the pool is empty after
// the hard filter; the item is then terminally failed with that reason
// and no attempt is created.
func (m *Manager) Start(ctx context.Context, workItemID uint) error {
	item, err := m.loadItem(ctx, workItemID)
	if err != nil {
		return err
	}

	// Conditional transition: losing this update means another runner
	// already started the item.
	now := time.Now()
	result := m.db.WithContext(ctx).Model(&models.WorkItem{}).
		Where("id = ? AND status = ?", workItemID, models.WorkItemPending).
		Updates(map[string]interface{}{
			"status":     models.WorkItemInProgress,
			"started_at": now,
		})
	if result.Error != nil {
		return fmt.Errorf("distribution: start work item %d: %w", workItemID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("distribution: work item %d is not pending", workItemID)
	}
	item.Status = models.WorkItemInProgress

	return m.dispatchNext(ctx, item, nil)
}

// Advance escalates to the next candidate after a rejection or timeout.
// The candidate pool is re-scored, since agent workload may have changed
// since the last dispatch, and already-attempted agents are excluded.
func (m *Manager) Advance(ctx context.Context, workItemID uint) error {
	item, err := m.loadItem(ctx, workItemID)
	if err != nil {
		return err
	}
	if item.Status != models.WorkItemInProgress {
		return fmt.Errorf("distribution: work item %d is %s, cannot advance", workItemID, item.Status)
	}
	if item.CurrentAttempt >= m.cfg.MaxAttempts {
		return m.fail(ctx, item, models.FailureExhausted)
	}

	var attempted []uint
	if err := m.db.WithContext(ctx).Model(&models.Attempt{}).
		Where("work_item_id = ?", workItemID).
		Pluck("agent_id", &attempted).Error; err != nil {
		return fmt.Errorf("distribution: list attempted agents for work item %d: %w", workItemID, err)
	}

	return m.dispatchNext(ctx, item, attempted)
}

// Finalize completes an item, records the winning agent, and pushes the
// new status to the subject record.
func (m *Manager) Finalize(ctx context.Context, workItemID, agentID uint) error {
	now := time.Now()
	result := m.db.WithContext(ctx).Model(&models.WorkItem{}).
		Where("id = ? AND status = ?", workItemID, models.WorkItemInProgress).
		Updates(map[string]interface{}{
			"status":            models.WorkItemCompleted,
			"assigned_agent_id": agentID,
			"completed_at":      now,
		})
	if result.Error != nil {
		return fmt.Errorf("distribution: finalize work item %d: %w", workItemID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("distribution: work item %d is not in progress", workItemID)
	}

	// The new assignment counts against the agent's load on the next
	// scoring pass. Decrement happens when the lead closes, outside this
	// subsystem.
	if err := m.db.WithContext(ctx).Model(&models.Agent{}).
		Where("id = ?", agentID).
		UpdateColumn("open_assignments", gorm.Expr("open_assignments + 1")).Error; err != nil {
		log.Printf("distribution: bump load for agent %d: %v", agentID, err)
	}

	item, err := m.loadItem(ctx, workItemID)
	if err != nil {
		return err
	}
	if err := m.sink.SetSubjectStatus(ctx, SubjectRef{Type: item.SubjectType, ID: item.SubjectID}, SubjectStatusAssigned); err != nil {
		log.Printf("distribution: push subject status for %s/%d: %v", item.SubjectType, item.SubjectID, err)
	}
	return nil
}

// dispatchNext re-scores the pool with fresh weights and dispatches the
// top remaining candidate, or terminally fails the item.
func (m *Manager) dispatchNext(ctx context.Context, item *models.WorkItem, exclude []uint) error {
	weights, err := scoring.LoadWeights(m.db)
	if err != nil {
		return err
	}

	subject := scoring.Subject{}
	if m.subjects != nil {
		subject, err = m.subjects.GetSubjectAttributes(ctx, SubjectRef{Type: item.SubjectType, ID: item.SubjectID})
		if err != nil {
			return fmt.Errorf("distribution: subject attributes for work item %d: %w", item.ID, err)
		}
	}

	profiles, err := scoring.LoadProfiles(m.db, exclude)
	if err != nil {
		return err
	}
	candidates := scoring.Rank(subject, profiles, weights)
	if len(candidates) == 0 {
		if item.CurrentAttempt == 0 {
			if err := m.fail(ctx, item, models.FailureNoEligibleCandidates); err != nil {
				return err
			}
			return ErrNoEligibleCandidates
		}
		return m.fail(ctx, item, models.FailureExhausted)
	}

	order := item.CurrentAttempt + 1
	if _, err := m.dispatcher.Dispatch(ctx, item, candidates[0].AgentID, order); err != nil {
		// An in_progress item with no pending attempt is invisible to the
		// sweeper; fail it so the error surfaces as a terminal state an
		// operator can act on, not silent limbo.
		if failErr := m.fail(ctx, item, models.FailureDispatchError); failErr != nil {
			log.Printf("distribution: %v", failErr)
		}
		return err
	}

	if err := m.db.WithContext(ctx).Model(&models.WorkItem{}).
		Where("id = ?", item.ID).
		Update("current_attempt", order).Error; err != nil {
		return fmt.Errorf("distribution: bump attempt counter for work item %d: %w", item.ID, err)
	}
	return nil
}

// fail terminally fails the item and notifies operators. Human review
// picks it up from there; nothing retries a failed item automatically.
func (m *Manager) fail(ctx context.Context, item *models.WorkItem, reason string) error {
	now := time.Now()
	err := m.db.WithContext(ctx).Model(&models.WorkItem{}).
		Where("id = ?", item.ID).
		Updates(map[string]interface{}{
			"status":         models.WorkItemFailed,
			"failure_reason": reason,
			"completed_at":   now,
		}).Error
	if err != nil {
		return fmt.Errorf("distribution: fail work item %d: %w", item.ID, err)
	}

	if err := m.sink.SetSubjectStatus(ctx, SubjectRef{Type: item.SubjectType, ID: item.SubjectID}, SubjectStatusAssignmentFailed); err != nil {
		log.Printf("distribution: push subject status for %s/%d: %v", item.SubjectType, item.SubjectID, err)
	}
	alerts.Send(ctx, m.alerts, alerts.Event{
		Kind:  alerts.KindWorkItemExhausted,
		Title: fmt.Sprintf("work item %d failed: %s", item.ID, reason),
		Body:  fmt.Sprintf("subject %s/%d after %d attempt(s)", item.SubjectType, item.SubjectID, item.CurrentAttempt),
	})
	return nil
}

func (m *Manager) loadItem(ctx context.Context, workItemID uint) (*models.WorkItem, error) {
	var item models.WorkItem
	err := m.db.WithContext(ctx).First(&item, workItemID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("distribution: work item %d not found", workItemID)
	}
	if err != nil {
		return nil, fmt.Errorf("distribution: load work item %d: %w", workItemID, err)
	}
	return &item, nil
}
