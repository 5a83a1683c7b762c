// internal/service/scheduled_email_service.go
package service

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/unclebandit/leadflow-backend/internal/mailer"
	"github.com/unclebandit/leadflow-backend/internal/model"
	"github.com/unclebandit/leadflow-backend/internal/repository"
)

// ScheduledEmailService owns the one-off scheduled-send queue. Unlike
// the sequence runner there is no retry: a failed dispatch is terminal.
// Editing a pending entry is cancel-then-recreate, never an in-place
// update that could race with a firing sweep.
type ScheduledEmailService struct {
	Repo   repository.ScheduledEmailRepositoryInterface
	Sender mailer.Sender

	ClaimBatch int
	Now        func() time.Time
}

func NewScheduledEmailService(repo repository.ScheduledEmailRepositoryInterface, sender mailer.Sender) *ScheduledEmailService {
	return &ScheduledEmailService{
		Repo:       repo,
		Sender:     sender,
		ClaimBatch: 100,
	}
}

func (s *ScheduledEmailService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *ScheduledEmailService) claimBatch() int {
	if s.ClaimBatch > 0 {
		return s.ClaimBatch
	}
	return 100
}

// Schedule accepts past timestamps: the entry simply becomes due on the
// next sweep.
func (s *ScheduledEmailService) Schedule(accountID int, to, subject, body string, scheduledFor time.Time) (*model.ScheduledEmail, error) {
	if strings.TrimSpace(to) == "" {
		return nil, fmt.Errorf("recipient is required")
	}
	if strings.TrimSpace(subject) == "" {
		return nil, fmt.Errorf("subject is required")
	}
	if accountID < 1 {
		return nil, fmt.Errorf("account_id is required")
	}

	email := &model.ScheduledEmail{
		AccountID:    accountID,
		To:           to,
		Subject:      subject,
		Body:         body,
		ScheduledFor: scheduledFor,
	}
	if err := s.Repo.Create(email); err != nil {
		return nil, err
	}
	return email, nil
}

func (s *ScheduledEmailService) Cancel(id, accountID int) error {
	return s.Repo.Cancel(id, accountID)
}

func (s *ScheduledEmailService) List(accountID, page, pageSize int) ([]model.ScheduledEmail, map[string]int, error) {
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

	emails, total, err := s.Repo.List(accountID, offset, pageSize)
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
	return emails, pagination, nil
}

type DispatchResult struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

// ProcessDue sweeps pending entries whose time has come. Entries are
// claimed before the send so overlapping sweeps never double-send; the
// outcome is written as the terminal status either way.
func (s *ScheduledEmailService) ProcessDue(now time.Time) (*DispatchResult, error) {
	if now.IsZero() {
		now = s.now()
	}

	result := &DispatchResult{}
	for {
		due, err := s.Repo.ClaimDue(now, s.claimBatch())
		if err != nil {
			return result, err
		}
		if len(due) == 0 {
			return result, nil
		}

		for _, email := range due {
			if err := s.Sender.Send(email.AccountID, email.To, email.Subject, email.Body); err != nil {
				log.Println("⚠️ scheduled email", email.ID, "failed:", err)
				if err := s.Repo.MarkFailed(email.ID, err.Error()); err != nil {
					log.Println("⚠️ failed to mark scheduled email", email.ID, "as failed:", err)
				}
				result.Failed++
				continue
			}
			if err := s.Repo.MarkSent(email.ID); err != nil {
				log.Println("⚠️ failed to mark scheduled email", email.ID, "as sent:", err)
			}
			result.Sent++
		}

		if len(due) < s.claimBatch() {
			return result, nil
		}
	}
}
