// internal/controller/campaign_controller.go
package controller

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	appErrors "github.com/unclebandit/leadflow-backend/internal/errors"
	"github.com/unclebandit/leadflow-backend/internal/model"
	"github.com/unclebandit/leadflow-backend/internal/service"
)

type CampaignController struct {
	CampaignService *service.CampaignService
	Runner          *service.SequenceRunner
}

func campaignID(r *http.Request) (int, error) {
	return strconv.Atoi(chi.URLParam(r, "id"))
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	var notFound *appErrors.ErrCampaignNotFound
	var stepNotFound *appErrors.ErrStepNotFound
	switch {
	case errors.As(err, &notFound), errors.As(err, &stepNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (c *CampaignController) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name      string `json:"name"`
		AccountID int    `json:"account_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	campaign, err := c.CampaignService.CreateCampaign(body.Name, body.AccountID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, campaign)
}

func (c *CampaignController) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))

	campaigns, pagination, err := c.CampaignService.ListCampaigns(page, pageSize)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, map[string]interface{}{
		"data":       campaigns,
		"pagination": pagination,
	})
}

func (c *CampaignController) GetCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := campaignID(r)
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	details, err := c.CampaignService.GetCampaignDetailsWithStats(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, details)
}

func (c *CampaignController) UpdateCampaignStatus(w http.ResponseWriter, r *http.Request) {
	id, err := campaignID(r)
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if body.Status != "active" && body.Status != "paused" {
		http.Error(w, "status must be active or paused", http.StatusBadRequest)
		return
	}

	campaign, err := c.CampaignService.SetCampaignStatus(id, body.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, campaign)
}

// ====================== Steps ======================

func (c *CampaignController) UpsertStep(w http.ResponseWriter, r *http.Request) {
	id, err := campaignID(r)
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	var body struct {
		ID           int    `json:"id"`
		Kind         string `json:"kind"`
		Subject      string `json:"subject"`
		Body         string `json:"body"`
		DelaySeconds int    `json:"delay_seconds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	step := &model.Step{
		ID:           body.ID,
		CampaignID:   id,
		Kind:         model.StepKind(body.Kind),
		Subject:      body.Subject,
		Body:         body.Body,
		DelaySeconds: body.DelaySeconds,
	}
	if err := step.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	saved, err := c.CampaignService.UpsertStep(step)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, saved)
}

func (c *CampaignController) DeleteStep(w http.ResponseWriter, r *http.Request) {
	stepID, err := strconv.Atoi(chi.URLParam(r, "stepID"))
	if err != nil {
		http.Error(w, "invalid step id", http.StatusBadRequest)
		return
	}

	if err := c.CampaignService.DeleteStep(stepID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]interface{}{"deleted": stepID})
}

func (c *CampaignController) ListSteps(w http.ResponseWriter, r *http.Request) {
	id, err := campaignID(r)
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	steps, err := c.CampaignService.ListSteps(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]interface{}{"data": steps})
}

// ====================== Leads ======================

func (c *CampaignController) AttachLeads(w http.ResponseWriter, r *http.Request) {
	id, err := campaignID(r)
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	var body struct {
		Email  string   `json:"email"`
		Emails []string `json:"emails"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	emails := body.Emails
	if body.Email != "" {
		emails = append(emails, body.Email)
	}
	if len(emails) == 0 {
		http.Error(w, "email or emails is required", http.StatusBadRequest)
		return
	}

	result, err := c.CampaignService.BulkAttach(id, emails)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, result)
}

func (c *CampaignController) ListLeads(w http.ResponseWriter, r *http.Request) {
	id, err := campaignID(r)
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))

	leads, pagination, err := c.CampaignService.ListLeads(id, page, pageSize)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]interface{}{
		"data":       leads,
		"pagination": pagination,
	})
}

func (c *CampaignController) RemoveLeads(w http.ResponseWriter, r *http.Request) {
	id, err := campaignID(r)
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	var body struct {
		ProgressIDs []int `json:"progress_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	removed, err := c.CampaignService.BulkRemoveLeads(id, body.ProgressIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]interface{}{"removed": removed})
}

// ====================== Runner ======================

func (c *CampaignController) RunCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := campaignID(r)
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	var body struct {
		Force bool `json:"force"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
	}

	result, err := c.Runner.Run(id, body.Force)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, result)
}

func (c *CampaignController) ResetCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := campaignID(r)
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	n, err := c.Runner.Reset(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]interface{}{"reset": n})
}

func (c *CampaignController) PersonalizedPreview(w http.ResponseWriter, r *http.Request) {
	id, err := campaignID(r)
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	var body struct {
		StepID           int     `json:"step_id"`
		LeadEmail        string  `json:"lead_email"`
		OverrideTemplate *string `json:"override_template"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	rendered, err := c.CampaignService.RenderPreview(id, body.StepID, body.LeadEmail, body.OverrideTemplate)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, map[string]interface{}{
		"rendered_message": rendered,
		"lead_email":       body.LeadEmail,
	})
}
