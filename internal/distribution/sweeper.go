package distribution

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/homelead/distributor/internal/models"
)

// DefaultSweepBatchSize bounds one reconciliation pass.
const DefaultSweepBatchSize = 50

// SweepStats summarizes one timeout sweep. Processed counts attempts
// flipped to timeout; Escalated counts the subset whose work item moved
// on to a next candidate rather than terminally failing.
type SweepStats struct {
	Processed int `json:"processed"`
	Escalated int `json:"escalated"`
}

// SweepTimeouts reconciles attempts whose deadline passed without a
// reply. Timeout escalation is deliberately sweep-driven against the
// timeout_at column rather than timer-per-attempt: timers do not survive
// a process restart, rows do. Uses the same conditional update as
// HandleReply, so a reply landing at the exact sweep moment wins or
// loses atomically, never both.
func (m *Manager) SweepTimeouts(ctx context.Context, batchSize int) (SweepStats, error) {
	if batchSize <= 0 {
		batchSize = DefaultSweepBatchSize
	}

	var expired []models.Attempt
	err := m.db.WithContext(ctx).
		Where("status = ? AND timeout_at < ?", models.AttemptPending, time.Now()).
		Order("timeout_at").
		Limit(batchSize).
		Find(&expired).Error
	if err != nil {
		return SweepStats{}, fmt.Errorf("distribution: select expired attempts: %w", err)
	}

	var stats SweepStats
	for i := range expired {
		attempt := &expired[i]
		result := m.db.WithContext(ctx).Model(&models.Attempt{}).
			Where("id = ? AND status = ?", attempt.ID, models.AttemptPending).
			Update("status", models.AttemptTimeout)
		if result.Error != nil {
			log.Printf("distribution: sweep attempt %d: %v", attempt.ID, result.Error)
			continue
		}
		if result.RowsAffected == 0 {
			// A reply resolved it between select and update.
			continue
		}
		stats.Processed++

		if err := m.Advance(ctx, attempt.WorkItemID); err != nil {
			log.Printf("distribution: advance work item %d after timeout: %v", attempt.WorkItemID, err)
			continue
		}
		item, err := m.loadItem(ctx, attempt.WorkItemID)
		if err != nil {
			log.Printf("distribution: %v", err)
			continue
		}
		if !item.Resolved() {
			stats.Escalated++
		}
	}
	return stats, nil
}
