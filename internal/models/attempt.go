package models

import "time"

// Attempt statuses.
const (
	AttemptPending  = "pending"
	AttemptAccepted = "accepted"
	AttemptRejected = "rejected"
	AttemptTimeout  = "timeout"
)

// Attempt is one outstanding offer of a WorkItem to a candidate agent.
// At most one attempt per work item is pending at a time. The pending row
// is resolved exactly once, by whichever of the response handler or the
// timeout sweeper wins the conditional status update.
type Attempt struct {
	ID                 uint   `gorm:"primaryKey;autoIncrement"`
	WorkItemID         uint   `gorm:"not null;index"`
	AgentID            uint   `gorm:"not null;index"`
	AttemptOrder       int    `gorm:"not null"`
	Status             string `gorm:"size:16;default:pending;index"`
	MessageSentAt      time.Time
	TimeoutAt          time.Time `gorm:"index"`
	ResponseReceivedAt *time.Time
	ResponsePayload    string `gorm:"type:text"`
	CreatedAt          time.Time
}
