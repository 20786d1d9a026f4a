// Package alerts pushes operational notifications (dead letters, exhausted
// work items, unreachable channels) to a chat platform. Delivery is
// best-effort; an alert failure never blocks the pipeline that raised it.
package alerts

import (
	"context"
	"fmt"
	"log"

	"github.com/homelead/distributor/internal/config"
)

// Event kinds.
const (
	KindDeadLetter        = "dead_letter"
	KindWorkItemExhausted = "work_item_exhausted"
	KindChannelDown       = "channel_down"
)

// Event is one operational alert.
type Event struct {
	Kind  string
	Title string
	Body  string
}

// Notifier delivers events to an ops channel.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// Nop discards all events. Used when alerts are not configured.
type Nop struct{}

// Notify implements Notifier.
func (Nop) Notify(ctx context.Context, ev Event) error { return nil }

// New builds a Notifier from configuration. An empty platform yields Nop.
func New(cfg config.AlertsConfig) (Notifier, error) {
	switch cfg.Platform {
	case "":
		return Nop{}, nil
	case "slack":
		return NewSlack(cfg.Token, cfg.Channel), nil
	case "discord":
		return NewDiscord(cfg.Token, cfg.Channel)
	default:
		return nil, fmt.Errorf("alerts: unsupported platform %q", cfg.Platform)
	}
}

// Send delivers ev through n, logging rather than returning failures.
func Send(ctx context.Context, n Notifier, ev Event) {
	if n == nil {
		return
	}
	if err := n.Notify(ctx, ev); err != nil {
		log.Printf("alerts: %s notification failed: %v", ev.Kind, err)
	}
}

// severityColor maps an event kind to a sidebar color hint.
func severityColor(kind string) string {
	switch kind {
	case KindDeadLetter:
		return "#d00000"
	case KindWorkItemExhausted:
		return "#e8a500"
	default:
		return "#439fe0"
	}
}
