package models

import "time"

// Channel connection states as classified by the health monitor.
const (
	ChannelOpen        = "open"
	ChannelConnecting  = "connecting"
	ChannelClose       = "close"
	ChannelUnreachable = "unreachable"
	ChannelError       = "error"
)

// ChannelInstance is one configured connection to an external messaging
// gateway. Admin configuration owns creation; the health monitor owns
// connection_status and last_health_check.
type ChannelInstance struct {
	ID               uint   `gorm:"primaryKey;autoIncrement"`
	Name             string `gorm:"size:64;uniqueIndex;not null"`
	Endpoint         string `gorm:"size:256;not null"`
	APIKey           string `gorm:"size:128"`
	IsActive         bool   `gorm:"default:true;index"`
	ConnectionStatus string `gorm:"size:16"`
	LastHealthCheck  *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
