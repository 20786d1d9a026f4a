package distribution

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/homelead/distributor/internal/models"
	"github.com/homelead/distributor/internal/scoring"
	"gorm.io/gorm"
)

// SubjectRef identifies the lead or visit a work item distributes.
type SubjectRef struct {
	Type string `json:"type"`
	ID   uint   `json:"id"`
}

func (r SubjectRef) String() string { return fmt.Sprintf("%s/%d", r.Type, r.ID) }

// Subject statuses pushed to the external record.
const (
	SubjectStatusAssigned         = "assigned"
	SubjectStatusAssignmentFailed = "assignment_failed"
)

// SubjectSource resolves the matching attributes of a lead or visit.
// Implemented by the surrounding CRM.
type SubjectSource interface {
	GetSubjectAttributes(ctx context.Context, ref SubjectRef) (scoring.Subject, error)
}

// SubjectSink receives the terminal status of a distribution so the
// lead/visit record can adopt it. Implemented by the surrounding CRM.
type SubjectSink interface {
	SetSubjectStatus(ctx context.Context, ref SubjectRef, status string) error
}

// TemplateRenderer renders the outbound notification text.
type TemplateRenderer interface {
	Render(templateKey string, vars map[string]string) (string, error)
}

// ContactResolver maps an agent to their messaging address.
type ContactResolver interface {
	GetAgentContact(ctx context.Context, agentID uint) (string, error)
}

// SubjectSourceFunc adapts a function to SubjectSource.
type SubjectSourceFunc func(ctx context.Context, ref SubjectRef) (scoring.Subject, error)

// GetSubjectAttributes implements SubjectSource.
func (f SubjectSourceFunc) GetSubjectAttributes(ctx context.Context, ref SubjectRef) (scoring.Subject, error) {
	return f(ctx, ref)
}

// RendererFunc adapts a function to TemplateRenderer.
type RendererFunc func(templateKey string, vars map[string]string) (string, error)

// Render implements TemplateRenderer.
func (f RendererFunc) Render(templateKey string, vars map[string]string) (string, error) {
	return f(templateKey, vars)
}

// DBContactResolver resolves agent contacts from the agents table.
type DBContactResolver struct {
	DB *gorm.DB
}

// GetAgentContact implements ContactResolver.
func (r DBContactResolver) GetAgentContact(ctx context.Context, agentID uint) (string, error) {
	var agent models.Agent
	err := r.DB.WithContext(ctx).First(&agent, agentID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("distribution: agent %d not found", agentID)
	}
	if err != nil {
		return "", fmt.Errorf("distribution: resolve contact for agent %d: %w", agentID, err)
	}
	return agent.Phone, nil
}

// LogSubjectSink logs subject status changes. Used when the CRM callback
// is not wired, e.g. in one-shot CLI runs.
type LogSubjectSink struct{}

// SetSubjectStatus implements SubjectSink.
func (LogSubjectSink) SetSubjectStatus(ctx context.Context, ref SubjectRef, status string) error {
	log.Printf("distribution: subject %s status -> %s", ref, status)
	return nil
}
