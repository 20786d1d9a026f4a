package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/homelead/distributor/internal/alerts"
	"github.com/homelead/distributor/internal/audit"
	"github.com/homelead/distributor/internal/channel"
	"github.com/homelead/distributor/internal/models"
	"gorm.io/gorm"
)

// Worker defaults.
const (
	DefaultBatchSize   = 10
	DefaultMaxAttempts = 3
	DefaultSendTimeout = 15 * time.Second
)

// ErrNoActiveInstance means no channel instance could serve a message.
var ErrNoActiveInstance = errors.New("delivery: no active channel instance")

// WorkerConfig bounds one worker pass.
type WorkerConfig struct {
	BatchSize   int
	MaxAttempts int
	SendTimeout time.Duration
}

// Stats summarizes one worker pass. Processed counts messages claimed
// and attempted; Failed counts sends that errored this pass (transient
// or terminal); DeadLettered counts the terminal subset.
type Stats struct {
	Processed    int `json:"processed"`
	Failed       int `json:"failed"`
	DeadLettered int `json:"dead_lettered"`
}

// Worker drains the delivery queue in bounded batches. Safe to run from
// multiple stateless instances; the conditional pending→processing update
// is the claim.
type Worker struct {
	db     *gorm.DB
	client channel.Client
	cfg    WorkerConfig
	alerts alerts.Notifier
}

// NewWorker creates a Worker. notifier may be nil.
func NewWorker(db *gorm.DB, client channel.Client, cfg WorkerConfig, notifier alerts.Notifier) *Worker {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = DefaultSendTimeout
	}
	return &Worker{db: db, client: client, cfg: cfg, alerts: notifier}
}

// RunOnce claims and processes one batch, highest priority first then
// FIFO. One message erroring never fails the pass.
func (w *Worker) RunOnce(ctx context.Context) (Stats, error) {
	var batch []models.DeliveryMessage
	err := w.db.Where("status = ?", models.DeliveryPending).
		Order("priority ASC, id ASC").
		Limit(w.cfg.BatchSize).
		Find(&batch).Error
	if err != nil {
		return Stats{}, fmt.Errorf("delivery: fetch pending batch: %w", err)
	}

	var stats Stats
	for i := range batch {
		msg := &batch[i]
		if !w.claim(msg) {
			continue
		}
		stats.Processed++
		sendErr := w.process(ctx, msg)
		if sendErr == nil {
			w.complete(msg)
			continue
		}
		stats.Failed++
		if w.retryOrDeadLetter(ctx, msg, sendErr) {
			stats.DeadLettered++
		}
	}
	return stats, nil
}

// claim flips the message to processing. Zero rows affected means another
// worker instance won the row; skip it.
func (w *Worker) claim(msg *models.DeliveryMessage) bool {
	now := time.Now()
	result := w.db.Model(&models.DeliveryMessage{}).
		Where("id = ? AND status = ?", msg.ID, models.DeliveryPending).
		Updates(map[string]interface{}{
			"status":          models.DeliveryProcessing,
			"last_attempt_at": now,
		})
	if result.Error != nil {
		log.Printf("delivery: claim message %d: %v", msg.ID, result.Error)
		return false
	}
	return result.RowsAffected > 0
}

// process resolves the channel instance and performs the send, recording
// the call in the integration log either way.
func (w *Worker) process(ctx context.Context, msg *models.DeliveryMessage) error {
	inst, err := w.resolveInstance(msg)
	if err != nil {
		return err
	}

	sendCtx, cancel := context.WithTimeout(ctx, w.cfg.SendTimeout)
	started := time.Now()
	result, sendErr := w.client.Send(sendCtx, inst, channel.SendRequest{
		Address: msg.TargetAddress,
		Kind:    msg.PayloadType,
		Body:    json.RawMessage(msg.Payload),
	})
	elapsed := time.Since(started)
	cancel()

	audit.Log(w.db, audit.Entry{
		Service:    "channel",
		Endpoint:   inst.Endpoint,
		Method:     "POST",
		StatusCode: result.StatusCode,
		Duration:   elapsed,
		Success:    sendErr == nil,
		Metadata: map[string]interface{}{
			"action":     "message_send",
			"message_id": msg.ID,
			"instance":   inst.Name,
			"attempt":    msg.Attempts + 1,
		},
	})
	return sendErr
}

// resolveInstance honors an explicit channel binding, falling back to the
// first active instance.
func (w *Worker) resolveInstance(msg *models.DeliveryMessage) (models.ChannelInstance, error) {
	var inst models.ChannelInstance
	q := w.db.Where("is_active = ?", true).Order("id")
	if msg.ChannelInstanceID != nil {
		q = w.db.Where("id = ?", *msg.ChannelInstanceID)
	}
	err := q.First(&inst).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return inst, ErrNoActiveInstance
	}
	if err != nil {
		return inst, fmt.Errorf("delivery: resolve instance for message %d: %w", msg.ID, err)
	}
	return inst, nil
}

func (w *Worker) complete(msg *models.DeliveryMessage) {
	err := w.db.Model(&models.DeliveryMessage{}).Where("id = ?", msg.ID).Updates(map[string]interface{}{
		"status":        models.DeliveryCompleted,
		"attempts":      msg.Attempts + 1,
		"error_message": "",
	}).Error
	if err != nil {
		log.Printf("delivery: complete message %d: %v", msg.ID, err)
	}
}

// retryOrDeadLetter increments the attempt count and either reverts the
// message to pending for the next pass (implicit backoff = the sweep
// period) or marks it permanently failed. Returns true when the message
// was dead-lettered.
func (w *Worker) retryOrDeadLetter(ctx context.Context, msg *models.DeliveryMessage, sendErr error) bool {
	msg.Attempts++
	msg.ErrorMessage = sendErr.Error()

	if msg.Attempts < w.cfg.MaxAttempts {
		err := w.db.Model(&models.DeliveryMessage{}).Where("id = ?", msg.ID).Updates(map[string]interface{}{
			"status":        models.DeliveryPending,
			"attempts":      msg.Attempts,
			"error_message": msg.ErrorMessage,
		}).Error
		if err != nil {
			log.Printf("delivery: requeue message %d: %v", msg.ID, err)
		}
		return false
	}

	err := w.db.Model(&models.DeliveryMessage{}).Where("id = ?", msg.ID).Updates(map[string]interface{}{
		"status":        models.DeliveryFailed,
		"attempts":      msg.Attempts,
		"error_message": msg.ErrorMessage,
	}).Error
	if err != nil {
		log.Printf("delivery: fail message %d: %v", msg.ID, err)
	}
	if err := audit.DeadLetter(w.db, msg); err != nil {
		log.Printf("delivery: %v", err)
	}
	alerts.Send(ctx, w.alerts, alerts.Event{
		Kind:  alerts.KindDeadLetter,
		Title: fmt.Sprintf("message %d to %s dead-lettered", msg.ID, msg.TargetAddress),
		Body:  fmt.Sprintf("%d attempts, last error: %s", msg.Attempts, msg.ErrorMessage),
	})
	return true
}
