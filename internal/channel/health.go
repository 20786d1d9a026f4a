package channel

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/homelead/distributor/internal/alerts"
	"github.com/homelead/distributor/internal/audit"
	"github.com/homelead/distributor/internal/models"
	"gorm.io/gorm"
)

// DefaultCheckTimeout bounds a single connection state probe.
const DefaultCheckTimeout = 10 * time.Second

// CheckResult is the outcome of one instance health check.
type CheckResult struct {
	Instance               string `json:"instance"`
	Status                 string `json:"status"`
	AutoReconnectAttempted bool   `json:"auto_reconnect_attempted"`
}

// Monitor periodically verifies every active channel instance and issues
// a best-effort restart when one is found disconnected.
type Monitor struct {
	db      *gorm.DB
	client  Client
	timeout time.Duration
	alerts  alerts.Notifier
}

// NewMonitor creates a Monitor. notifier may be nil.
func NewMonitor(db *gorm.DB, client Client, timeout time.Duration, notifier alerts.Notifier) *Monitor {
	if timeout <= 0 {
		timeout = DefaultCheckTimeout
	}
	return &Monitor{db: db, client: client, timeout: timeout, alerts: notifier}
}

// RunOnce checks every active instance and returns the per-instance
// results. A failing instance never fails the pass; its status is
// recorded and the loop moves on.
func (m *Monitor) RunOnce(ctx context.Context) ([]CheckResult, error) {
	var instances []models.ChannelInstance
	if err := m.db.Where("is_active = ?", true).Order("id").Find(&instances).Error; err != nil {
		return nil, fmt.Errorf("channel: list active instances: %w", err)
	}

	results := make([]CheckResult, 0, len(instances))
	for _, inst := range instances {
		results = append(results, m.checkInstance(ctx, inst))
	}
	return results, nil
}

func (m *Monitor) checkInstance(ctx context.Context, inst models.ChannelInstance) CheckResult {
	probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
	started := time.Now()
	state, err := m.client.ConnectionState(probeCtx, inst)
	elapsed := time.Since(started)
	cancel()

	status := classify(state, err)
	result := CheckResult{Instance: inst.Name, Status: status}

	audit.Log(m.db, audit.Entry{
		Service:    "channel",
		Endpoint:   joinURL(inst.Endpoint, "instance/connectionState", inst.Name),
		Method:     "GET",
		StatusCode: state.StatusCode,
		Duration:   elapsed,
		Success:    status == models.ChannelOpen,
		Metadata:   map[string]interface{}{"action": "health_check", "instance": inst.Name, "status": status},
	})

	// Self-healing: disconnected or unreachable instances get one restart
	// command per pass, fire-and-forget.
	if status == models.ChannelClose || status == models.ChannelUnreachable {
		result.AutoReconnectAttempted = true
		m.restartInstance(ctx, inst, status)
	}

	now := time.Now()
	if err := m.db.Model(&models.ChannelInstance{}).Where("id = ?", inst.ID).Updates(map[string]interface{}{
		"connection_status": status,
		"last_health_check": now,
	}).Error; err != nil {
		log.Printf("channel: persist health of %s: %v", inst.Name, err)
	}

	return result
}

func (m *Monitor) restartInstance(ctx context.Context, inst models.ChannelInstance, status string) {
	restartCtx, cancel := context.WithTimeout(ctx, m.timeout)
	started := time.Now()
	err := m.client.Restart(restartCtx, inst)
	elapsed := time.Since(started)
	cancel()

	action := "auto_healing"
	if err != nil {
		action = "auto_healing_failed"
		log.Printf("channel: restart %s: %v", inst.Name, err)
	}
	audit.Log(m.db, audit.Entry{
		Service:  "channel",
		Endpoint: joinURL(inst.Endpoint, "instance/restart", inst.Name),
		Method:   "POST",
		Duration: elapsed,
		Success:  err == nil,
		Metadata: map[string]interface{}{"action": action, "instance": inst.Name, "detected_status": status},
	})

	alerts.Send(ctx, m.alerts, alerts.Event{
		Kind:  alerts.KindChannelDown,
		Title: fmt.Sprintf("channel %s is %s", inst.Name, status),
		Body:  fmt.Sprintf("restart issued (%s)", action),
	})
}

// classify maps a probe outcome onto the channel status taxonomy.
func classify(state StateResult, err error) string {
	if err != nil {
		return models.ChannelUnreachable
	}
	if state.StatusCode < 200 || state.StatusCode > 299 {
		return models.ChannelError
	}
	switch state.State {
	case models.ChannelOpen, models.ChannelConnecting, models.ChannelClose:
		return state.State
	default:
		return models.ChannelError
	}
}
