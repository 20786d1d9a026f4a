package models

import "time"

// DeliveryMessage statuses.
const (
	DeliveryPending    = "pending"
	DeliveryProcessing = "processing"
	DeliveryCompleted  = "completed"
	DeliveryFailed     = "failed"
)

// Delivery message payload types.
const (
	PayloadText    = "text"
	PayloadMedia   = "media"
	PayloadButtons = "buttons"
	PayloadList    = "list"
)

// DeliveryMessage is one outbound notification queued for a messaging
// channel. Terminal at completed, or at failed once retries are exhausted
// (dead-lettered).
type DeliveryMessage struct {
	ID                uint   `gorm:"primaryKey;autoIncrement"`
	TargetAddress     string `gorm:"size:64;not null;index"`
	PayloadType       string `gorm:"size:16;default:text"`
	Payload           string `gorm:"type:text"`
	Priority          int    `gorm:"default:2;index"`
	Status            string `gorm:"size:16;default:pending;index"`
	Attempts          int    `gorm:"default:0"`
	LastAttemptAt     *time.Time
	ErrorMessage      string `gorm:"type:text"`
	ChannelInstanceID *uint
	AttemptID         *uint `gorm:"index"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// DeadLetter is the permanent audit record written when a DeliveryMessage
// exhausts its retries. Never resurrected automatically; a human resends.
type DeadLetter struct {
	ID            uint   `gorm:"primaryKey;autoIncrement"`
	MessageID     uint   `gorm:"not null;index"`
	TargetAddress string `gorm:"size:64"`
	ErrorMessage  string `gorm:"type:text"`
	Attempts      int
	CreatedAt     time.Time
}
