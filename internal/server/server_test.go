package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/homelead/distributor/internal/channel"
	"github.com/homelead/distributor/internal/delivery"
	"github.com/homelead/distributor/internal/distribution"
	"github.com/homelead/distributor/internal/models"
	"github.com/homelead/distributor/internal/scoring"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.WorkItem{},
		&models.Attempt{},
		&models.DeliveryMessage{},
		&models.DeadLetter{},
		&models.Agent{},
		&models.ScoringSettings{},
		&models.ChannelInstance{},
		&models.IntegrationLog{},
	); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func testRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	db := testDB(t)
	mgr := distribution.NewManager(distribution.ManagerOpts{
		DB: db,
		Renderer: distribution.RendererFunc(func(key string, vars map[string]string) (string, error) {
			return "offer", nil
		}),
		Subjects: distribution.SubjectSourceFunc(func(ctx context.Context, ref distribution.SubjectRef) (scoring.Subject, error) {
			return scoring.Subject{}, nil
		}),
	})
	client := channel.NewMockClient()
	router := NewRouter(StartOpts{
		DB:      db,
		Manager: mgr,
		Worker:  delivery.NewWorker(db, client, delivery.WorkerConfig{}, nil),
		Monitor: channel.NewMonitor(db, client, time.Second, nil),
	})
	return router, db
}

func postJSON(t *testing.T, router *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func get(t *testing.T, router *gin.Engine, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestEnqueueEndpoint(t *testing.T) {
	router, db := testRouter(t)
	agent := models.Agent{Name: "a", Phone: "+5511900000001", Active: true, Rating: 4}
	if err := db.Create(&agent).Error; err != nil {
		t.Fatalf("create agent: %v", err)
	}

	w := postJSON(t, router, "/api/distribution/enqueue", gin.H{"subject_type": "lead", "subject_id": 7})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var item models.WorkItem
	if err := json.Unmarshal(w.Body.Bytes(), &item); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if item.Status != models.WorkItemInProgress || item.CurrentAttempt != 1 {
		t.Errorf("item = %+v", item)
	}

	// Same subject again while unresolved conflicts.
	w = postJSON(t, router, "/api/distribution/enqueue", gin.H{"subject_type": "lead", "subject_id": 7})
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate status = %d", w.Code)
	}
}

// With no eligible agents the endpoint still creates the item; the
// response shows it terminally failed.
func TestEnqueueEndpointNoCandidates(t *testing.T) {
	router, _ := testRouter(t)
	w := postJSON(t, router, "/api/distribution/enqueue", gin.H{"subject_type": "lead", "subject_id": 1})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var item models.WorkItem
	if err := json.Unmarshal(w.Body.Bytes(), &item); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if item.Status != models.WorkItemFailed || item.FailureReason != models.FailureNoEligibleCandidates {
		t.Errorf("item = %+v", item)
	}
}

func TestEnqueueEndpointValidation(t *testing.T) {
	router, _ := testRouter(t)
	w := postJSON(t, router, "/api/distribution/enqueue", gin.H{"subject_type": "lead"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing subject_id status = %d", w.Code)
	}
	w = postJSON(t, router, "/api/distribution/enqueue", gin.H{"subject_type": "invoice", "subject_id": 1})
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad subject_type status = %d", w.Code)
	}
}

func TestReplyEndpoint(t *testing.T) {
	router, db := testRouter(t)
	agent := models.Agent{Name: "a", Phone: "+5511900000001", Active: true, Rating: 4}
	if err := db.Create(&agent).Error; err != nil {
		t.Fatalf("create agent: %v", err)
	}
	w := postJSON(t, router, "/api/distribution/enqueue", gin.H{"subject_type": "lead", "subject_id": 1})
	if w.Code != http.StatusCreated {
		t.Fatalf("enqueue: %d", w.Code)
	}

	var attempt models.Attempt
	if err := db.First(&attempt).Error; err != nil {
		t.Fatalf("load attempt: %v", err)
	}
	w = postJSON(t, router, "/api/replies", gin.H{"from": agent.Phone, "token": "1", "attempt_id": attempt.ID})
	if w.Code != http.StatusOK {
		t.Fatalf("reply status = %d, body = %s", w.Code, w.Body.String())
	}

	var item models.WorkItem
	db.First(&item)
	if item.Status != models.WorkItemCompleted {
		t.Errorf("item status = %q", item.Status)
	}

	// An uncorrelated reply is still 200: the webhook must not retry it.
	w = postJSON(t, router, "/api/replies", gin.H{"from": "+5511999999999", "token": "1"})
	if w.Code != http.StatusOK {
		t.Errorf("uncorrelated reply status = %d", w.Code)
	}
}

func TestWorkItemEndpoint(t *testing.T) {
	router, db := testRouter(t)
	agent := models.Agent{Name: "a", Phone: "+5511900000001", Active: true, Rating: 4}
	db.Create(&agent)
	postJSON(t, router, "/api/distribution/enqueue", gin.H{"subject_type": "lead", "subject_id": 1})

	w := get(t, router, "/api/work-items/1")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"Attempts"`) && !strings.Contains(w.Body.String(), `"attempts"`) {
		t.Errorf("attempts not embedded: %s", w.Body.String())
	}

	w = get(t, router, "/api/work-items/999")
	if w.Code != http.StatusNotFound {
		t.Errorf("missing item status = %d", w.Code)
	}
	w = get(t, router, "/api/work-items/abc")
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad id status = %d", w.Code)
	}
}

func TestDeadLetterEndpoints(t *testing.T) {
	router, db := testRouter(t)
	msg := models.DeliveryMessage{
		TargetAddress: "+5511900000001",
		PayloadType:   models.PayloadText,
		Payload:       `{"text":"hi"}`,
		Status:        models.DeliveryFailed,
		Attempts:      3,
	}
	if err := db.Create(&msg).Error; err != nil {
		t.Fatalf("create message: %v", err)
	}
	db.Create(&models.DeadLetter{MessageID: msg.ID, TargetAddress: msg.TargetAddress, ErrorMessage: "send failed", Attempts: 3})

	w := get(t, router, "/api/dead-letters")
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var letters []models.DeadLetter
	if err := json.Unmarshal(w.Body.Bytes(), &letters); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(letters) != 1 {
		t.Fatalf("dead letters = %d, want 1", len(letters))
	}

	w = postJSON(t, router, fmt.Sprintf("/api/dead-letters/%d/resend", msg.ID), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("resend status = %d, body = %s", w.Code, w.Body.String())
	}
	var got models.DeliveryMessage
	db.First(&got, msg.ID)
	if got.Status != models.DeliveryPending || got.Attempts != 0 {
		t.Errorf("requeued message = %+v", got)
	}

	// Resending a message that is not failed conflicts.
	w = postJSON(t, router, fmt.Sprintf("/api/dead-letters/%d/resend", msg.ID), nil)
	if w.Code != http.StatusConflict {
		t.Errorf("second resend status = %d", w.Code)
	}
}

func TestCronEndpoints(t *testing.T) {
	router, db := testRouter(t)

	w := postJSON(t, router, "/api/cron/sweep", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("sweep status = %d", w.Code)
	}
	var sweep distribution.SweepStats
	if err := json.Unmarshal(w.Body.Bytes(), &sweep); err != nil {
		t.Fatalf("decode sweep: %v", err)
	}

	inst := models.ChannelInstance{Name: "main", Endpoint: "http://gateway", IsActive: true}
	if err := db.Create(&inst).Error; err != nil {
		t.Fatalf("create instance: %v", err)
	}
	db.Create(&models.DeliveryMessage{
		TargetAddress: "+5511900000001",
		PayloadType:   models.PayloadText,
		Payload:       `{"text":"hi"}`,
		Status:        models.DeliveryPending,
	})

	w = postJSON(t, router, "/api/cron/delivery", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delivery status = %d", w.Code)
	}
	var stats delivery.Stats
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode delivery: %v", err)
	}
	if stats.Processed != 1 {
		t.Errorf("delivery stats = %+v", stats)
	}

	w = postJSON(t, router, "/api/cron/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("health status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"main"`) {
		t.Errorf("health body = %s", w.Body.String())
	}
}

func TestStartRequiresDeps(t *testing.T) {
	if err := Start(context.Background(), StartOpts{}); err == nil || !strings.Contains(err.Error(), "db is required") {
		t.Errorf("err = %v", err)
	}
	if err := Start(context.Background(), StartOpts{DB: testDB(t)}); err == nil || !strings.Contains(err.Error(), "manager is required") {
		t.Errorf("err = %v", err)
	}
}
