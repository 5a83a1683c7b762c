// internal/service/sequence_runner.go
package service

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/unclebandit/leadflow-backend/internal/mailer"
	"github.com/unclebandit/leadflow-backend/internal/model"
	"github.com/unclebandit/leadflow-backend/internal/repository"
)

// SequenceRunner advances leads through their campaign's steps. Every
// mutation of cursor or due time in the whole system goes through here
// (and through Reset); the editorial layer only ever appends steps and
// leads.
type SequenceRunner struct {
	CampaignRepo repository.CampaignRepositoryInterface
	StepRepo     repository.StepRepositoryInterface
	ProgressRepo repository.ProgressRepositoryInterface
	LeadRepo     repository.LeadRepositoryInterface
	ActivityRepo repository.ActivityRepositoryInterface
	Sender       mailer.Sender

	// WorkerID stamps row claims so overlapping runs stay apart.
	WorkerID    string
	MaxParallel int
	ClaimBatch  int

	// Now is a hook for tests; nil means time.Now.
	Now func() time.Time
}

func NewSequenceRunner(
	campaignRepo repository.CampaignRepositoryInterface,
	stepRepo repository.StepRepositoryInterface,
	progressRepo repository.ProgressRepositoryInterface,
	leadRepo repository.LeadRepositoryInterface,
	activityRepo repository.ActivityRepositoryInterface,
	sender mailer.Sender,
) *SequenceRunner {
	return &SequenceRunner{
		CampaignRepo: campaignRepo,
		StepRepo:     stepRepo,
		ProgressRepo: progressRepo,
		LeadRepo:     leadRepo,
		ActivityRepo: activityRepo,
		Sender:       sender,
		WorkerID:     fmt.Sprintf("runner-%s", uuid.New().String()[:8]),
		MaxParallel:  5,
		ClaimBatch:   200,
	}
}

type RunResult struct {
	Processed int    `json:"processed"`
	Message   string `json:"message"`
}

func (r *SequenceRunner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *SequenceRunner) maxParallel() int {
	if r.MaxParallel > 0 {
		return r.MaxParallel
	}
	return 5
}

func (r *SequenceRunner) claimBatch() int {
	if r.ClaimBatch > 0 {
		return r.ClaimBatch
	}
	return 200
}

// Run executes one sweep over the campaign. Safe to invoke from a timer
// and an operator at the same time: each lead is claimed before any
// email goes out, so a lead is processed by at most one invocation.
// force ignores due times entirely ("run now, skipping delays").
func (r *SequenceRunner) Run(campaignID int, force bool) (*RunResult, error) {
	campaign, err := r.CampaignRepo.GetByID(campaignID)
	if err != nil {
		return nil, err
	}
	if campaign.Status == "paused" {
		return &RunResult{Processed: 0, Message: "Campaign is paused"}, nil
	}

	steps, err := r.StepRepo.ListByCampaign(campaignID)
	if err != nil {
		return nil, err
	}
	if len(steps) == 0 {
		return &RunResult{Processed: 0, Message: "No steps defined"}, nil
	}

	now := r.now()

	var (
		mu        sync.Mutex
		processed int
		held      []int // claims kept until the sweep ends (failed sends)
	)

	claimedAny := false
	for {
		claimed, err := r.ProgressRepo.ClaimDue(campaignID, now, force, len(steps), r.WorkerID, r.claimBatch())
		if err != nil {
			return nil, err
		}
		if len(claimed) == 0 {
			break
		}
		claimedAny = true

		jobs := make(chan model.LeadProgress)
		var wg sync.WaitGroup
		for i := 0; i < r.maxParallel(); i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for lead := range jobs {
					progressed, releaseNow := r.processLead(campaign, steps, lead, now, force)
					mu.Lock()
					if progressed {
						processed++
					}
					if releaseNow {
						mu.Unlock()
						if err := r.ProgressRepo.ReleaseClaim(lead.ID, r.WorkerID); err != nil {
							log.Println("⚠️ failed to release claim for lead", lead.ID, ":", err)
						}
					} else {
						// hold the claim so this sweep does not reclaim
						// a lead whose send just failed
						held = append(held, lead.ID)
						mu.Unlock()
					}
				}
			}()
		}
		for _, lead := range claimed {
			jobs <- lead
		}
		close(jobs)
		wg.Wait()

		if len(claimed) < r.claimBatch() {
			break
		}
	}

	for _, id := range held {
		if err := r.ProgressRepo.ReleaseClaim(id, r.WorkerID); err != nil {
			log.Println("⚠️ failed to release claim for lead", id, ":", err)
		}
	}

	if !claimedAny {
		return &RunResult{Processed: 0, Message: r.idleMessage(campaignID)}, nil
	}
	return &RunResult{
		Processed: processed,
		Message:   fmt.Sprintf("Processed %d lead(s)", processed),
	}, nil
}

// idleMessage tells the operator why nothing happened, so the UI can
// offer a force run for the waiting case specifically.
func (r *SequenceRunner) idleMessage(campaignID int) string {
	stats, err := r.ProgressRepo.CountByStatus(campaignID)
	if err != nil {
		return "Nothing was due"
	}
	active := stats["active"]
	total := 0
	for _, n := range stats {
		total += n
	}
	switch {
	case total == 0:
		return "No leads attached"
	case active == 0:
		return "All leads have completed the sequence"
	default:
		return fmt.Sprintf("%d lead(s) are waiting on a delay; run with force to send now", active)
	}
}

// processLead executes consecutive due steps for one claimed lead.
// Returns whether the lead made progress and whether its claim can be
// released right away (false keeps it held until the sweep ends).
func (r *SequenceRunner) processLead(campaign *model.Campaign, steps []model.Step, lead model.LeadProgress, now time.Time, force bool) (bool, bool) {
	cur := lead.CurrentStep
	progressed := false

	for {
		if cur >= len(steps) {
			// active lead past the last step: broken invariant, fatal
			// to this lead only
			r.logError(campaign.ID, lead.LeadEmail, fmt.Sprintf("cursor %d is past the last step (%d)", cur, len(steps)))
			if _, err := r.ProgressRepo.AdvanceCursor(lead.ID, cur, cur, nil, model.ProgressCompleted, r.WorkerID); err != nil {
				log.Println("⚠️ failed to retire exhausted lead", lead.ID, ":", err)
			}
			return progressed, true
		}

		step := steps[cur]
		var nextDueAt *time.Time

		switch step.Kind {
		case model.StepEmail:
			if err := r.sendStepEmail(campaign, step, lead.LeadEmail); err != nil {
				// cursor untouched: the step stays due and is retried
				// on the next sweep
				r.logError(campaign.ID, lead.LeadEmail, fmt.Sprintf("step %d send failed: %v", cur, err))
				return progressed, false
			}
			r.append(campaign.ID, &lead.LeadEmail, model.ActivityEmailSent,
				fmt.Sprintf("Sent %q to %s", step.Subject, lead.LeadEmail))
			due := now
			nextDueAt = &due

		case model.StepDelay:
			d := step.DelayDuration()
			if d > 0 && !force {
				due := now.Add(d)
				nextDueAt = &due
				r.append(campaign.ID, &lead.LeadEmail, model.ActivityDelayStarted,
					fmt.Sprintf("Waiting %s before the next step", d))
			} else {
				due := now
				nextDueAt = &due
				r.append(campaign.ID, &lead.LeadEmail, model.ActivityDelayElapsed, "Delay elapsed")
			}

		default:
			r.logError(campaign.ID, lead.LeadEmail, fmt.Sprintf("step %d has unknown kind %q", cur, step.Kind))
			return progressed, true
		}

		next := cur + 1
		status := model.ProgressActive
		if next >= len(steps) {
			status = model.ProgressCompleted
			nextDueAt = nil
		}

		ok, err := r.ProgressRepo.AdvanceCursor(lead.ID, cur, next, nextDueAt, status, r.WorkerID)
		if err != nil {
			r.logError(campaign.ID, lead.LeadEmail, fmt.Sprintf("failed to advance cursor: %v", err))
			return progressed, true
		}
		if !ok {
			// claim lost to a parallel invocation; skip silently
			return progressed, true
		}
		progressed = true
		cur = next

		if status == model.ProgressCompleted {
			r.append(campaign.ID, &lead.LeadEmail, model.ActivityStepExecuted, "Sequence completed")
			return true, true
		}
		if !force && nextDueAt != nil && nextDueAt.After(now) {
			return true, true
		}
	}
}

func (r *SequenceRunner) sendStepEmail(campaign *model.Campaign, step model.Step, email string) error {
	lead, err := r.LeadRepo.GetByEmail(email)
	if err != nil {
		return err
	}
	fields := LeadFields(lead, email)
	subject := RenderTemplate(step.Subject, fields)
	body := RenderTemplate(step.Body, fields)
	return r.Sender.Send(campaign.AccountID, email, subject, body)
}

// Reset returns every lead on the campaign to the first step. Running
// it twice leaves the same state as once.
func (r *SequenceRunner) Reset(campaignID int) (int, error) {
	if _, err := r.CampaignRepo.GetByID(campaignID); err != nil {
		return 0, err
	}
	n, err := r.ProgressRepo.Reset(campaignID)
	if err != nil {
		return 0, err
	}
	r.append(campaignID, nil, model.ActivityStepExecuted,
		fmt.Sprintf("Campaign reset: %d lead(s) returned to the first step", n))
	return n, nil
}

func (r *SequenceRunner) append(campaignID int, leadEmail *string, t model.ActivityType, message string) {
	entry := &model.ActivityEntry{
		CampaignID: campaignID,
		LeadEmail:  leadEmail,
		Type:       t,
		Message:    message,
	}
	if err := r.ActivityRepo.Append(entry); err != nil {
		log.Println("⚠️ failed to append activity entry:", err)
	}
}

func (r *SequenceRunner) logError(campaignID int, leadEmail string, message string) {
	r.append(campaignID, &leadEmail, model.ActivityError, message)
}
