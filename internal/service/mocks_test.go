package service_test

import (
	"sort"
	"sync"
	"time"

	appErrors "github.com/unclebandit/leadflow-backend/internal/errors"
	"github.com/unclebandit/leadflow-backend/internal/model"
)

// In-memory repositories shared by the service tests. The progress repo
// implements the same claim semantics as the SQL one (claimed_by stamp,
// stale window, compare-and-set advance) so the runner's concurrency
// behavior can be exercised without a database.

type memCampaignRepo struct {
	mu        sync.Mutex
	campaigns map[int]*model.Campaign
	nextID    int
}

func newMemCampaignRepo() *memCampaignRepo {
	return &memCampaignRepo{campaigns: map[int]*model.Campaign{}, nextID: 1}
}

func (m *memCampaignRepo) Create(c *model.Campaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = m.nextID
	m.nextID++
	if c.Status == "" {
		c.Status = "active"
	}
	if c.AccountID == 0 {
		c.AccountID = 1
	}
	c.CreatedAt = time.Now()
	cp := *c
	m.campaigns[c.ID] = &cp
	return nil
}

func (m *memCampaignRepo) GetByID(id int) (*model.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	cp := *c
	return &cp, nil
}

func (m *memCampaignRepo) ListCampaigns(offset, limit int) ([]*model.Campaign, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := []int{}
	for id := range m.campaigns {
		ids = append(ids, id)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(ids)))
	out := []*model.Campaign{}
	for i, id := range ids {
		if i < offset {
			continue
		}
		if len(out) >= limit {
			break
		}
		cp := *m.campaigns[id]
		out = append(out, &cp)
	}
	return out, len(ids), nil
}

func (m *memCampaignRepo) UpdateStatus(campaignID int, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.campaigns[campaignID]; ok {
		c.Status = status
	}
	return nil
}

type memStepRepo struct {
	mu    sync.Mutex
	steps map[int][]model.Step // by campaign, ordered
}

func newMemStepRepo() *memStepRepo {
	return &memStepRepo{steps: map[int][]model.Step{}}
}

func (m *memStepRepo) ListByCampaign(campaignID int) ([]model.Step, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Step, len(m.steps[campaignID]))
	copy(out, m.steps[campaignID])
	return out, nil
}

func (m *memStepRepo) Upsert(step *model.Step) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	steps := m.steps[step.CampaignID]
	if step.ID != 0 {
		for i := range steps {
			if steps[i].ID == step.ID {
				step.StepOrder = steps[i].StepOrder
				steps[i] = *step
				return nil
			}
		}
		return appErrors.NewStepNotFound(step.ID)
	}
	maxID := 0
	for _, all := range m.steps {
		for _, s := range all {
			if s.ID > maxID {
				maxID = s.ID
			}
		}
	}
	step.ID = maxID + 1
	step.StepOrder = len(steps)
	m.steps[step.CampaignID] = append(steps, *step)
	return nil
}

func (m *memStepRepo) Delete(stepID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for campaignID, steps := range m.steps {
		for i := range steps {
			if steps[i].ID == stepID {
				steps = append(steps[:i], steps[i+1:]...)
				for j := range steps {
					steps[j].StepOrder = j
				}
				m.steps[campaignID] = steps
				return nil
			}
		}
	}
	return appErrors.NewStepNotFound(stepID)
}

type memProgressRepo struct {
	mu     sync.Mutex
	rows   map[int]*model.LeadProgress
	nextID int
	stale  time.Duration
}

func newMemProgressRepo() *memProgressRepo {
	return &memProgressRepo{rows: map[int]*model.LeadProgress{}, nextID: 1, stale: 2 * time.Minute}
}

func (m *memProgressRepo) Attach(campaignID int, leadEmail string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.CampaignID == campaignID && row.LeadEmail == leadEmail {
			return false, nil
		}
	}
	m.rows[m.nextID] = &model.LeadProgress{
		ID:         m.nextID,
		CampaignID: campaignID,
		LeadEmail:  leadEmail,
		Status:     model.ProgressActive,
		JoinedAt:   time.Now(),
	}
	m.nextID++
	return true, nil
}

func (m *memProgressRepo) ListByCampaign(campaignID, offset, limit int) ([]model.LeadProgress, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.LeadProgress{}
	ids := []int{}
	for id, row := range m.rows {
		if row.CampaignID == campaignID {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	for i, id := range ids {
		if i < offset || len(out) >= limit {
			continue
		}
		out = append(out, *m.rows[id])
	}
	return out, len(ids), nil
}

func (m *memProgressRepo) CountByStatus(campaignID int) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := map[string]int{"active": 0, "completed": 0, "removed": 0}
	for _, row := range m.rows {
		if row.CampaignID == campaignID {
			stats[string(row.Status)]++
		}
	}
	return stats, nil
}

func (m *memProgressRepo) ClaimDue(campaignID int, now time.Time, force bool, stepCount int, workerID string, limit int) ([]model.LeadProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	candidates := []*model.LeadProgress{}
	for _, row := range m.rows {
		if row.CampaignID != campaignID || row.Status != model.ProgressActive {
			continue
		}
		if row.CurrentStep >= stepCount {
			continue
		}
		if !force && row.NextDueAt != nil && row.NextDueAt.After(now) {
			continue
		}
		if row.ClaimedAt != nil && row.ClaimedAt.After(now.Add(-m.stale)) {
			continue
		}
		candidates = append(candidates, row)
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.NextDueAt == nil && b.NextDueAt != nil {
			return true
		}
		if a.NextDueAt != nil && b.NextDueAt == nil {
			return false
		}
		if a.NextDueAt != nil && !a.NextDueAt.Equal(*b.NextDueAt) {
			return a.NextDueAt.Before(*b.NextDueAt)
		}
		return a.ID < b.ID
	})

	claimed := []model.LeadProgress{}
	for _, row := range candidates {
		if len(claimed) >= limit {
			break
		}
		t := now
		row.ClaimedAt = &t
		row.ClaimedBy = workerID
		claimed = append(claimed, *row)
	}
	return claimed, nil
}

func (m *memProgressRepo) AdvanceCursor(id, fromStep, toStep int, nextDueAt *time.Time, status model.ProgressStatus, workerID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok || row.CurrentStep != fromStep || row.ClaimedBy != workerID || row.Status != model.ProgressActive {
		return false, nil
	}
	row.CurrentStep = toStep
	row.NextDueAt = nextDueAt
	row.Status = status
	return true, nil
}

func (m *memProgressRepo) ReleaseClaim(id int, workerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if ok && row.ClaimedBy == workerID {
		row.ClaimedAt = nil
		row.ClaimedBy = ""
	}
	return nil
}

func (m *memProgressRepo) Reset(campaignID int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, row := range m.rows {
		if row.CampaignID == campaignID {
			row.Status = model.ProgressActive
			row.CurrentStep = 0
			row.NextDueAt = nil
			row.ClaimedAt = nil
			row.ClaimedBy = ""
			n++
		}
	}
	return n, nil
}

func (m *memProgressRepo) BulkRemove(campaignID int, progressIDs []int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, id := range progressIDs {
		if row, ok := m.rows[id]; ok && row.CampaignID == campaignID {
			delete(m.rows, id)
			n++
		}
	}
	return n, nil
}

func (m *memProgressRepo) get(id int) model.LeadProgress {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.rows[id]
}

type memLeadRepo struct {
	mu    sync.Mutex
	leads map[string]*model.Lead
}

func newMemLeadRepo() *memLeadRepo {
	return &memLeadRepo{leads: map[string]*model.Lead{}}
}

func (m *memLeadRepo) GetByEmail(email string) (*model.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.leads[email]
	if !ok {
		return nil, nil
	}
	cp := *l
	return &cp, nil
}

func (m *memLeadRepo) Ensure(email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.leads[email]; !ok {
		m.leads[email] = &model.Lead{ID: len(m.leads) + 1, Email: email}
	}
	return nil
}

type memActivityRepo struct {
	mu      sync.Mutex
	entries []model.ActivityEntry
}

func (m *memActivityRepo) Append(entry *model.ActivityEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry.ID = len(m.entries) + 1
	entry.CreatedAt = time.Now()
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *memActivityRepo) List(campaignID, limit int) ([]model.ActivityEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.ActivityEntry{}
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if m.entries[i].CampaignID == campaignID {
			out = append(out, m.entries[i])
		}
	}
	return out, nil
}

func (m *memActivityRepo) countType(t model.ActivityType) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.entries {
		if e.Type == t {
			n++
		}
	}
	return n
}
