package models

import (
	"encoding/json"
	"time"
)

// Agent is a broker profile eligible to receive work items. Coverage
// columns hold JSON string arrays; an empty array means no restriction.
type Agent struct {
	ID              uint    `gorm:"primaryKey;autoIncrement"`
	Name            string  `gorm:"size:128;not null"`
	Phone           string  `gorm:"size:64;uniqueIndex;not null"`
	Active          bool    `gorm:"default:true;index"`
	Rating          float64 `gorm:"default:0"`
	Areas           string  `gorm:"type:json"`
	Developers      string  `gorm:"type:json"`
	PropertyTypes   string  `gorm:"type:json"`
	OpenAssignments int     `gorm:"default:0"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// AreaList decodes the Areas JSON column. A decode error is treated the
// same as an empty list.
func (a *Agent) AreaList() []string { return decodeList(a.Areas) }

// DeveloperList decodes the Developers JSON column.
func (a *Agent) DeveloperList() []string { return decodeList(a.Developers) }

// PropertyTypeList decodes the PropertyTypes JSON column.
func (a *Agent) PropertyTypeList() []string { return decodeList(a.PropertyTypes) }

func decodeList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}
