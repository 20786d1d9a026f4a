package distribution

import (
	"context"
	"testing"

	"github.com/homelead/distributor/internal/models"
)

// Full accept flow: highest-scored agent gets the offer, replies "1",
// and the work item completes with that agent assigned.
func TestHandleReplyAccept(t *testing.T) {
	e := newEnv(t, Config{})
	hi := addAgent(t, e.db, "hi", "+5511900000001", 5)
	addAgent(t, e.db, "lo", "+5511900000002", 3)

	item, _ := e.mgr.Enqueue(context.Background(), SubjectRef{Type: models.SubjectLead, ID: 1})
	if err := e.mgr.Start(context.Background(), item.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := e.mgr.HandleReply(context.Background(), InboundReply{Address: hi.Phone, Token: "1", Raw: `{"button":"1"}`}); err != nil {
		t.Fatalf("HandleReply: %v", err)
	}

	var got models.WorkItem
	e.db.First(&got, item.ID)
	if got.Status != models.WorkItemCompleted {
		t.Errorf("status = %q", got.Status)
	}
	if got.AssignedAgentID == nil || *got.AssignedAgentID != hi.ID {
		t.Errorf("AssignedAgentID = %v, want %d", got.AssignedAgentID, hi.ID)
	}

	var attempt models.Attempt
	e.db.First(&attempt, "work_item_id = ?", item.ID)
	if attempt.Status != models.AttemptAccepted {
		t.Errorf("attempt status = %q", attempt.Status)
	}
	if attempt.ResponseReceivedAt == nil {
		t.Error("ResponseReceivedAt not set")
	}
	if attempt.ResponsePayload != `{"button":"1"}` {
		t.Errorf("ResponsePayload = %q", attempt.ResponsePayload)
	}
}

// Rejection escalates to the runner-up with attempt_order 2.
func TestHandleReplyRejectEscalates(t *testing.T) {
	e := newEnv(t, Config{})
	hi := addAgent(t, e.db, "hi", "+5511900000001", 5)
	lo := addAgent(t, e.db, "lo", "+5511900000002", 3)

	item, _ := e.mgr.Enqueue(context.Background(), SubjectRef{Type: models.SubjectLead, ID: 1})
	if err := e.mgr.Start(context.Background(), item.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := e.mgr.HandleReply(context.Background(), InboundReply{Address: hi.Phone, Token: "2", Raw: "2"}); err != nil {
		t.Fatalf("HandleReply: %v", err)
	}

	var got models.WorkItem
	e.db.First(&got, item.ID)
	if got.Status != models.WorkItemInProgress || got.CurrentAttempt != 2 {
		t.Errorf("item = %+v", got)
	}

	pending := pendingAttempts(t, e.db, item.ID)
	if len(pending) != 1 {
		t.Fatalf("pending attempts = %d, want 1", len(pending))
	}
	if pending[0].AgentID != lo.ID || pending[0].AttemptOrder != 2 {
		t.Errorf("attempt = %+v", pending[0])
	}
}

func TestHandleReplyFreeTextTokens(t *testing.T) {
	cases := []struct {
		token string
		want  string
	}{
		{"sim", models.AttemptAccepted},
		{"  YES ", models.AttemptAccepted},
		{"Aceitar", models.AttemptAccepted},
		{"não", models.AttemptRejected},
		{"no", models.AttemptRejected},
	}
	for _, tc := range cases {
		t.Run(tc.token, func(t *testing.T) {
			e := newEnv(t, Config{})
			agent := addAgent(t, e.db, "a", "+5511900000001", 4)
			item, _ := e.mgr.Enqueue(context.Background(), SubjectRef{Type: models.SubjectLead, ID: 1})
			if err := e.mgr.Start(context.Background(), item.ID); err != nil {
				t.Fatalf("Start: %v", err)
			}
			if err := e.mgr.HandleReply(context.Background(), InboundReply{Address: agent.Phone, Token: tc.token, Raw: tc.token}); err != nil {
				t.Fatalf("HandleReply: %v", err)
			}
			var attempt models.Attempt
			e.db.First(&attempt, "work_item_id = ?", item.ID)
			if attempt.Status != tc.want {
				t.Errorf("attempt status = %q, want %q", attempt.Status, tc.want)
			}
		})
	}
}

// An unrecognized token leaves the attempt pending for the sweeper.
func TestHandleReplyUnknownTokenIgnored(t *testing.T) {
	e := newEnv(t, Config{})
	agent := addAgent(t, e.db, "a", "+5511900000001", 4)
	item, _ := e.mgr.Enqueue(context.Background(), SubjectRef{Type: models.SubjectLead, ID: 1})
	if err := e.mgr.Start(context.Background(), item.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := e.mgr.HandleReply(context.Background(), InboundReply{Address: agent.Phone, Token: "maybe later", Raw: "maybe later"}); err != nil {
		t.Fatalf("HandleReply: %v", err)
	}

	var attempt models.Attempt
	e.db.First(&attempt, "work_item_id = ?", item.ID)
	if attempt.Status != models.AttemptPending {
		t.Errorf("attempt status = %q, want pending", attempt.Status)
	}
	var got models.WorkItem
	e.db.First(&got, item.ID)
	if got.Status != models.WorkItemInProgress {
		t.Errorf("item status = %q", got.Status)
	}
}

// Replies that cannot be correlated are dropped without error: unknown
// sender, and known sender with nothing pending.
func TestHandleReplyUncorrelatedDropped(t *testing.T) {
	e := newEnv(t, Config{})
	agent := addAgent(t, e.db, "a", "+5511900000001", 4)

	if err := e.mgr.HandleReply(context.Background(), InboundReply{Address: "+5511999999999", Token: "1", Raw: "1"}); err != nil {
		t.Errorf("unknown sender: %v", err)
	}
	if err := e.mgr.HandleReply(context.Background(), InboundReply{Address: agent.Phone, Token: "1", Raw: "1"}); err != nil {
		t.Errorf("no pending attempt: %v", err)
	}
	var count int64
	e.db.Model(&models.WorkItem{}).Count(&count)
	if count != 0 {
		t.Errorf("work items = %d, want 0", count)
	}
}

// A reply arriving after the sweeper already timed the attempt out is
// discarded: the attempt keeps its timeout status and the work item is
// not finalized by the stale accept.
func TestHandleReplyLosesRaceToSweeper(t *testing.T) {
	e := newEnv(t, Config{})
	agent := addAgent(t, e.db, "a", "+5511900000001", 5)
	addAgent(t, e.db, "b", "+5511900000002", 3)

	item, _ := e.mgr.Enqueue(context.Background(), SubjectRef{Type: models.SubjectLead, ID: 1})
	if err := e.mgr.Start(context.Background(), item.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}

	var attempt models.Attempt
	e.db.First(&attempt, "work_item_id = ? AND agent_id = ?", item.ID, agent.ID)
	e.db.Model(&models.Attempt{}).Where("id = ?", attempt.ID).Update("status", models.AttemptTimeout)

	if err := e.mgr.HandleReply(context.Background(), InboundReply{Address: agent.Phone, Token: "1", Raw: "1"}); err != nil {
		t.Fatalf("HandleReply: %v", err)
	}

	var got models.Attempt
	e.db.First(&got, attempt.ID)
	if got.Status != models.AttemptTimeout {
		t.Errorf("attempt status = %q, want timeout", got.Status)
	}
	if got.ResponseReceivedAt != nil {
		t.Error("ResponseReceivedAt set on lost race")
	}

	var gotItem models.WorkItem
	e.db.First(&gotItem, item.ID)
	if gotItem.Status != models.WorkItemInProgress {
		t.Errorf("item status = %q, want in_progress", gotItem.Status)
	}
	if gotItem.AssignedAgentID != nil {
		t.Error("stale accept assigned the agent")
	}
}

// When an agent holds offers from two work items at once, the echoed
// attempt ID pins the reply to the right one instead of the
// most-recent-pending guess.
func TestHandleReplyExplicitAttemptID(t *testing.T) {
	e := newEnv(t, Config{})
	agent := addAgent(t, e.db, "a", "+5511900000001", 5)

	first, _ := e.mgr.Enqueue(context.Background(), SubjectRef{Type: models.SubjectLead, ID: 1})
	if err := e.mgr.Start(context.Background(), first.ID); err != nil {
		t.Fatalf("Start first: %v", err)
	}
	second, _ := e.mgr.Enqueue(context.Background(), SubjectRef{Type: models.SubjectLead, ID: 2})
	if err := e.mgr.Start(context.Background(), second.ID); err != nil {
		t.Fatalf("Start second: %v", err)
	}

	var older models.Attempt
	e.db.First(&older, "work_item_id = ?", first.ID)

	reply := InboundReply{Address: agent.Phone, Token: "1", Raw: "1", AttemptID: older.ID}
	if err := e.mgr.HandleReply(context.Background(), reply); err != nil {
		t.Fatalf("HandleReply: %v", err)
	}

	var gotFirst, gotSecond models.WorkItem
	e.db.First(&gotFirst, first.ID)
	e.db.First(&gotSecond, second.ID)
	if gotFirst.Status != models.WorkItemCompleted {
		t.Errorf("first item status = %q, want completed", gotFirst.Status)
	}
	if gotSecond.Status != models.WorkItemInProgress {
		t.Errorf("second item status = %q, want in_progress", gotSecond.Status)
	}
	if len(pendingAttempts(t, e.db, second.ID)) != 1 {
		t.Error("second item's attempt should still be pending")
	}
}

// A reference to an attempt that is not the sender's pending attempt
// falls back to most-recent-pending correlation.
func TestHandleReplyBadAttemptIDFallsBack(t *testing.T) {
	e := newEnv(t, Config{})
	agent := addAgent(t, e.db, "a", "+5511900000001", 5)
	other := addAgent(t, e.db, "b", "+5511900000002", 3)

	item, _ := e.mgr.Enqueue(context.Background(), SubjectRef{Type: models.SubjectLead, ID: 1})
	if err := e.mgr.Start(context.Background(), item.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}
	var attempt models.Attempt
	e.db.First(&attempt, "work_item_id = ?", item.ID)
	if attempt.AgentID != agent.ID {
		t.Fatalf("offer went to agent %d, want %d", attempt.AgentID, agent.ID)
	}

	reply := InboundReply{Address: agent.Phone, Token: "1", Raw: "1", AttemptID: 999}
	if err := e.mgr.HandleReply(context.Background(), reply); err != nil {
		t.Fatalf("HandleReply: %v", err)
	}
	var got models.WorkItem
	e.db.First(&got, item.ID)
	if got.Status != models.WorkItemCompleted {
		t.Errorf("item status = %q, want completed", got.Status)
	}

	// Another agent's pending attempt cannot be resolved by reference.
	e.db.Model(&models.Agent{}).Where("id = ?", agent.ID).Update("active", false)
	second, _ := e.mgr.Enqueue(context.Background(), SubjectRef{Type: models.SubjectLead, ID: 2})
	if err := e.mgr.Start(context.Background(), second.ID); err != nil {
		t.Fatalf("Start second: %v", err)
	}
	var otherAttempt models.Attempt
	e.db.Order("id DESC").First(&otherAttempt)
	if otherAttempt.AgentID != other.ID {
		t.Fatalf("second offer went to agent %d, want %d", otherAttempt.AgentID, other.ID)
	}

	reply = InboundReply{Address: agent.Phone, Token: "2", Raw: "2", AttemptID: otherAttempt.ID}
	if err := e.mgr.HandleReply(context.Background(), reply); err != nil {
		t.Fatalf("HandleReply cross-agent: %v", err)
	}
	var gotAttempt models.Attempt
	e.db.First(&gotAttempt, otherAttempt.ID)
	if gotAttempt.Status != models.AttemptPending {
		t.Errorf("other agent's attempt = %q, want pending", gotAttempt.Status)
	}
}
