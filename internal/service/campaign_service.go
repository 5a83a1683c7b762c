// internal/service/campaign_service.go
package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/unclebandit/leadflow-backend/internal/model"
	"github.com/unclebandit/leadflow-backend/internal/repository"
)

// CampaignService is the editorial surface: campaigns, step definitions
// and lead membership. It never touches cursors or due times; those
// belong to the SequenceRunner.
type CampaignService struct {
	CampaignRepo repository.CampaignRepositoryInterface
	StepRepo     repository.StepRepositoryInterface
	ProgressRepo repository.ProgressRepositoryInterface
	LeadRepo     repository.LeadRepositoryInterface
}

type CampaignDetails struct {
	ID        int            `json:"id"`
	AccountID int            `json:"account_id"`
	Name      string         `json:"name"`
	Status    string         `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt *time.Time     `json:"updated_at,omitempty"`
	StepCount int            `json:"step_count"`
	Stats     map[string]int `json:"stats"`
}

func (s *CampaignService) CreateCampaign(name string, accountID int) (*model.Campaign, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("campaign name is required")
	}
	c := &model.Campaign{
		Name:      name,
		AccountID: accountID,
	}
	if err := s.CampaignRepo.Create(c); err != nil {
		return nil, err
	}
	return c, nil
}

// ListCampaigns fetches campaigns with pagination
func (s *CampaignService) ListCampaigns(page, pageSize int) ([]model.Campaign, map[string]int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	offset := (page - 1) * pageSize

	ptrs, total, err := s.CampaignRepo.ListCampaigns(offset, pageSize)
	if err != nil {
		return nil, nil, err
	}

	campaigns := make([]model.Campaign, len(ptrs))
	for i, c := range ptrs {
		campaigns[i] = *c
	}

	totalPages := (total + pageSize - 1) / pageSize
	pagination := map[string]int{
		"page":        page,
		"page_size":   pageSize,
		"total_count": total,
		"total_pages": totalPages,
	}

	return campaigns, pagination, nil
}

func (s *CampaignService) GetCampaignDetailsWithStats(campaignID int) (*CampaignDetails, error) {
	campaign, err := s.CampaignRepo.GetByID(campaignID)
	if err != nil {
		return nil, err
	}

	steps, err := s.StepRepo.ListByCampaign(campaignID)
	if err != nil {
		return nil, err
	}

	stats, err := s.ProgressRepo.CountByStatus(campaignID)
	if err != nil {
		return nil, err
	}
	total := 0
	for _, n := range stats {
		total += n
	}
	stats["total"] = total

	return &CampaignDetails{
		ID:        campaign.ID,
		AccountID: campaign.AccountID,
		Name:      campaign.Name,
		Status:    campaign.Status,
		CreatedAt: campaign.CreatedAt,
		UpdatedAt: campaign.UpdatedAt,
		StepCount: len(steps),
		Stats:     stats,
	}, nil
}

// SetCampaignStatus pauses or resumes a campaign. A paused campaign
// keeps its leads and due times; the runner just refuses to sweep it.
func (s *CampaignService) SetCampaignStatus(campaignID int, status string) (*model.Campaign, error) {
	if status != "active" && status != "paused" {
		return nil, fmt.Errorf("status must be active or paused")
	}
	campaign, err := s.CampaignRepo.GetByID(campaignID)
	if err != nil {
		return nil, err
	}
	if err := s.CampaignRepo.UpdateStatus(campaignID, status); err != nil {
		return nil, err
	}
	campaign.Status = status
	return campaign, nil
}

// ====================== Steps ======================

func (s *CampaignService) UpsertStep(step *model.Step) (*model.Step, error) {
	if _, err := s.CampaignRepo.GetByID(step.CampaignID); err != nil {
		return nil, err
	}
	if err := step.Validate(); err != nil {
		return nil, err
	}
	if err := s.StepRepo.Upsert(step); err != nil {
		return nil, err
	}
	return step, nil
}

func (s *CampaignService) DeleteStep(stepID int) error {
	return s.StepRepo.Delete(stepID)
}

func (s *CampaignService) ListSteps(campaignID int) ([]model.Step, error) {
	if _, err := s.CampaignRepo.GetByID(campaignID); err != nil {
		return nil, err
	}
	return s.StepRepo.ListByCampaign(campaignID)
}

// ====================== Leads ======================

type BulkAttachResult struct {
	Added   int `json:"added"`
	Skipped int `json:"skipped"`
}

// AttachLead is idempotent; attaching the same address twice reports a
// skip, not an error.
func (s *CampaignService) AttachLead(campaignID int, email string) (added bool, err error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return false, fmt.Errorf("lead email is required")
	}
	if _, err := s.CampaignRepo.GetByID(campaignID); err != nil {
		return false, err
	}
	if err := s.LeadRepo.Ensure(email); err != nil {
		return false, err
	}
	return s.ProgressRepo.Attach(campaignID, email)
}

// BulkAttach reports how many addresses were new and how many were
// already on the campaign, so imports can surface "N added, M skipped".
func (s *CampaignService) BulkAttach(campaignID int, emails []string) (*BulkAttachResult, error) {
	if _, err := s.CampaignRepo.GetByID(campaignID); err != nil {
		return nil, err
	}

	result := &BulkAttachResult{}
	seen := map[string]bool{}
	for _, raw := range emails {
		email := strings.ToLower(strings.TrimSpace(raw))
		if email == "" || seen[email] {
			result.Skipped++
			continue
		}
		seen[email] = true

		if err := s.LeadRepo.Ensure(email); err != nil {
			return result, err
		}
		added, err := s.ProgressRepo.Attach(campaignID, email)
		if err != nil {
			return result, err
		}
		if added {
			result.Added++
		} else {
			result.Skipped++
		}
	}
	return result, nil
}

func (s *CampaignService) ListLeads(campaignID, page, pageSize int) ([]model.LeadProgress, map[string]int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 50
	}
	if pageSize > 200 {
		pageSize = 200
	}
	offset := (page - 1) * pageSize

	leads, total, err := s.ProgressRepo.ListByCampaign(campaignID, offset, pageSize)
	if err != nil {
		return nil, nil, err
	}

	totalPages := (total + pageSize - 1) / pageSize
	pagination := map[string]int{
		"page":        page,
		"page_size":   pageSize,
		"total_count": total,
		"total_pages": totalPages,
	}
	return leads, pagination, nil
}

func (s *CampaignService) BulkRemoveLeads(campaignID int, progressIDs []int) (int, error) {
	if _, err := s.CampaignRepo.GetByID(campaignID); err != nil {
		return 0, err
	}
	return s.ProgressRepo.BulkRemove(campaignID, progressIDs)
}

// ====================== Preview ======================

// RenderPreview renders an email step against a lead's directory fields
// without sending anything.
func (s *CampaignService) RenderPreview(campaignID int, stepID int, leadEmail string, overrideTemplate *string) (string, error) {
	steps, err := s.ListSteps(campaignID)
	if err != nil {
		return "", err
	}

	var template string
	found := false
	for _, step := range steps {
		if step.ID == stepID {
			if step.Kind != model.StepEmail {
				return "", fmt.Errorf("step %d is not an email step", stepID)
			}
			template = step.Body
			found = true
			break
		}
	}
	if !found {
		return "", fmt.Errorf("step not found")
	}

	if overrideTemplate != nil && strings.TrimSpace(*overrideTemplate) != "" {
		template = *overrideTemplate
	}
	if strings.TrimSpace(template) == "" {
		return "", fmt.Errorf("template cannot be empty")
	}

	lead, err := s.LeadRepo.GetByEmail(leadEmail)
	if err != nil {
		return "", err
	}

	return RenderTemplate(template, LeadFields(lead, leadEmail)), nil
}
