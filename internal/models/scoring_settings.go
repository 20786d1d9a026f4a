package models

import "time"

// ScoringSettings stores the operator-editable scoring weights. A single
// row, read fresh on every dispatch decision so edits apply to the next
// negotiation without a restart.
type ScoringSettings struct {
	ID                  uint    `gorm:"primaryKey;autoIncrement"`
	AreaMatchBonus      float64 `gorm:"default:30"`
	DeveloperMatchBonus float64 `gorm:"default:20"`
	RatingMultiplier    float64 `gorm:"default:10"`
	LoadPenalty         float64 `gorm:"default:5"`
	UpdatedAt           time.Time
}
