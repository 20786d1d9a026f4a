// Package audit writes the append-only operational history: integration
// log entries for every outbound call and dead-letter records for
// permanently failed deliveries.
package audit

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/homelead/distributor/internal/models"
	"gorm.io/gorm"
)

// Entry describes one outbound call for the integration log.
type Entry struct {
	Service    string
	Endpoint   string
	Method     string
	StatusCode int
	Duration   time.Duration
	Success    bool
	Metadata   map[string]interface{}
}

// Log appends an integration log entry. Best-effort: a write failure is
// logged, never propagated, so an audit problem cannot fail the batch
// that produced it.
func Log(db *gorm.DB, e Entry) {
	meta := "{}"
	if len(e.Metadata) > 0 {
		data, err := json.Marshal(e.Metadata)
		if err != nil {
			log.Printf("audit: marshal metadata: %v", err)
		} else {
			meta = string(data)
		}
	}
	row := models.IntegrationLog{
		Service:    e.Service,
		Endpoint:   e.Endpoint,
		Method:     e.Method,
		StatusCode: e.StatusCode,
		DurationMs: e.Duration.Milliseconds(),
		Success:    e.Success,
		Metadata:   meta,
	}
	if err := db.Create(&row).Error; err != nil {
		log.Printf("audit: write integration log: %v", err)
	}
}

// DeadLetter records a permanently failed delivery message. Unlike Log
// this is not best-effort: losing the record would silently drop a
// human-reviewable terminal state.
func DeadLetter(db *gorm.DB, msg *models.DeliveryMessage) error {
	row := models.DeadLetter{
		MessageID:     msg.ID,
		TargetAddress: msg.TargetAddress,
		ErrorMessage:  msg.ErrorMessage,
		Attempts:      msg.Attempts,
	}
	if err := db.Create(&row).Error; err != nil {
		return fmt.Errorf("audit: write dead letter for message %d: %w", msg.ID, err)
	}
	return nil
}

// ListDeadLetters returns the most recent dead letters, newest first.
func ListDeadLetters(db *gorm.DB, limit int) ([]models.DeadLetter, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.DeadLetter
	if err := db.Order("id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("audit: list dead letters: %w", err)
	}
	return rows, nil
}
