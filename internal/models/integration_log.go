package models

import "time"

// IntegrationLog is an append-only audit record of an outbound call.
type IntegrationLog struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	Service    string `gorm:"size:32;index"`
	Endpoint   string `gorm:"size:256"`
	Method     string `gorm:"size:8"`
	StatusCode int
	DurationMs int64
	Success    bool
	Metadata   string `gorm:"type:json"`
	CreatedAt  time.Time
}
