package models

import "time"

// WorkItem statuses.
const (
	WorkItemPending    = "pending"
	WorkItemInProgress = "in_progress"
	WorkItemCompleted  = "completed"
	WorkItemFailed     = "failed"
)

// Failure reasons recorded on a terminal WorkItem.
const (
	FailureNoEligibleCandidates = "no_eligible_candidates"
	FailureExhausted            = "exhausted"
	FailureDispatchError        = "dispatch_error"
)

// Subject types a WorkItem can reference.
const (
	SubjectLead  = "lead"
	SubjectVisit = "visit"
)

// WorkItem is a lead or visit awaiting assignment to exactly one agent.
type WorkItem struct {
	ID              uint   `gorm:"primaryKey;autoIncrement"`
	SubjectType     string `gorm:"size:16;not null;index:idx_subject"`
	SubjectID       uint   `gorm:"not null;index:idx_subject"`
	Status          string `gorm:"size:16;default:pending;index"`
	CurrentAttempt  int    `gorm:"default:0"`
	AssignedAgentID *uint
	FailureReason   string `gorm:"size:64"`
	StartedAt       *time.Time
	CompletedAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time

	Attempts []Attempt `gorm:"foreignKey:WorkItemID"`
}

// Resolved reports whether the item has reached a terminal status.
func (w *WorkItem) Resolved() bool {
	return w.Status == WorkItemCompleted || w.Status == WorkItemFailed
}
