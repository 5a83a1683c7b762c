package controller_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/unclebandit/leadflow-backend/internal/controller"
	appErrors "github.com/unclebandit/leadflow-backend/internal/errors"
	"github.com/unclebandit/leadflow-backend/internal/model"
	"github.com/unclebandit/leadflow-backend/internal/service"
)

// --- Mock Repositories ---

type MockCampaignRepo struct{}

func (m *MockCampaignRepo) Create(c *model.Campaign) error { return nil }
func (m *MockCampaignRepo) GetByID(id int) (*model.Campaign, error) {
	if id != 1 {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	return &model.Campaign{ID: 1, AccountID: 7, Name: "Welcome", Status: "active", CreatedAt: time.Now()}, nil
}
func (m *MockCampaignRepo) ListCampaigns(offset, limit int) ([]*model.Campaign, int, error) {
	return []*model.Campaign{}, 0, nil
}
func (m *MockCampaignRepo) UpdateStatus(campaignID int, status string) error { return nil }

type MockStepRepo struct{}

func (m *MockStepRepo) ListByCampaign(campaignID int) ([]model.Step, error) {
	return []model.Step{
		{ID: 10, CampaignID: campaignID, StepOrder: 0, Kind: model.StepEmail,
			Subject: "Hello {first_name}", Body: "Hi {first_name} {last_name}, greetings from {company}!"},
		{ID: 11, CampaignID: campaignID, StepOrder: 1, Kind: model.StepDelay, DelaySeconds: 3600},
	}, nil
}
func (m *MockStepRepo) Upsert(step *model.Step) error { step.ID = 10; return nil }
func (m *MockStepRepo) Delete(stepID int) error       { return nil }

type MockProgressRepo struct{}

func (m *MockProgressRepo) Attach(campaignID int, leadEmail string) (bool, error) { return true, nil }
func (m *MockProgressRepo) ListByCampaign(campaignID, offset, limit int) ([]model.LeadProgress, int, error) {
	return []model.LeadProgress{}, 0, nil
}
func (m *MockProgressRepo) CountByStatus(campaignID int) (map[string]int, error) {
	return map[string]int{"active": 2, "completed": 1}, nil
}
func (m *MockProgressRepo) ClaimDue(campaignID int, now time.Time, force bool, stepCount int, workerID string, limit int) ([]model.LeadProgress, error) {
	return nil, nil
}
func (m *MockProgressRepo) AdvanceCursor(id, fromStep, toStep int, nextDueAt *time.Time, status model.ProgressStatus, workerID string) (bool, error) {
	return true, nil
}
func (m *MockProgressRepo) ReleaseClaim(id int, workerID string) error { return nil }
func (m *MockProgressRepo) Reset(campaignID int) (int, error)          { return 3, nil }
func (m *MockProgressRepo) BulkRemove(campaignID int, progressIDs []int) (int, error) {
	return len(progressIDs), nil
}

type MockLeadRepo struct{}

func (m *MockLeadRepo) GetByEmail(email string) (*model.Lead, error) {
	return &model.Lead{
		Email:     email,
		FirstName: "Alice",
		LastName:  "Smith",
		Company:   "Acme",
	}, nil
}
func (m *MockLeadRepo) Ensure(email string) error { return nil }

func newTestRouter() *chi.Mux {
	svc := &service.CampaignService{
		CampaignRepo: &MockCampaignRepo{},
		StepRepo:     &MockStepRepo{},
		ProgressRepo: &MockProgressRepo{},
		LeadRepo:     &MockLeadRepo{},
	}
	ctrl := &controller.CampaignController{CampaignService: svc}

	r := chi.NewRouter()
	r.Get("/campaigns/{id}", ctrl.GetCampaign)
	r.Post("/campaigns/{id}/steps", ctrl.UpsertStep)
	r.Post("/campaigns/{id}/leads", ctrl.AttachLeads)
	r.Post("/campaigns/{id}/reset", ctrl.ResetCampaign)
	r.Post("/campaigns/{id}/personalized-preview", ctrl.PersonalizedPreview)
	return r
}

// --- Test Functions ---

func TestPersonalizedPreviewHandler(t *testing.T) {
	router := newTestRouter()

	body := map[string]interface{}{"step_id": 10, "lead_email": "alice@example.com"}
	b, _ := json.Marshal(body)

	req := httptest.NewRequest("POST", "/campaigns/1/personalized-preview", bytes.NewReader(b))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var res map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	msg, ok := res["rendered_message"].(string)
	if !ok {
		t.Fatalf("rendered_message not found or not a string")
	}
	if !strings.Contains(msg, "Alice") {
		t.Errorf("expected 'Alice' in message, got %q", msg)
	}
	if !strings.Contains(msg, "Acme") {
		t.Errorf("expected 'Acme' in message, got %q", msg)
	}
}

func TestGetCampaignReturnsStats(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest("GET", "/campaigns/1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var res struct {
		Name      string         `json:"name"`
		StepCount int            `json:"step_count"`
		Stats     map[string]int `json:"stats"`
	}
	if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if res.Name != "Welcome" {
		t.Errorf("expected campaign name Welcome, got %q", res.Name)
	}
	if res.StepCount != 2 {
		t.Errorf("expected 2 steps, got %d", res.StepCount)
	}
	if res.Stats["total"] != 3 {
		t.Errorf("expected total 3, got %d", res.Stats["total"])
	}
}

func TestGetCampaignNotFound(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest("GET", "/campaigns/99", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestUpsertStepRejectsMixedFields(t *testing.T) {
	router := newTestRouter()

	// A delay step must not carry email content.
	body := map[string]interface{}{
		"kind":          "delay",
		"delay_seconds": 60,
		"subject":       "should not be here",
	}
	b, _ := json.Marshal(body)

	req := httptest.NewRequest("POST", "/campaigns/1/steps", bytes.NewReader(b))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestAttachLeadsRequiresEmails(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest("POST", "/campaigns/1/leads", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestAttachLeadsReportsAddedCount(t *testing.T) {
	router := newTestRouter()

	body := map[string]interface{}{"emails": []string{"a@x.com", "b@x.com"}}
	b, _ := json.Marshal(body)

	req := httptest.NewRequest("POST", "/campaigns/1/leads", bytes.NewReader(b))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var res struct {
		Added   int `json:"added"`
		Skipped int `json:"skipped"`
	}
	if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if res.Added != 2 || res.Skipped != 0 {
		t.Errorf("expected 2 added / 0 skipped, got %d / %d", res.Added, res.Skipped)
	}
}
