package repository

import (
	"database/sql"
	"time"

	appErrors "github.com/unclebandit/leadflow-backend/internal/errors"
	"github.com/unclebandit/leadflow-backend/internal/model"
)

type ScheduledEmailRepositoryInterface interface {
	Create(e *model.ScheduledEmail) error
	GetByID(id int) (*model.ScheduledEmail, error)
	List(accountID, offset, limit int) ([]model.ScheduledEmail, int, error)

	// Cancel flips pending→cancelled; anything else is ErrAlreadyTerminal.
	Cancel(id, accountID int) error

	// ClaimDue stamps due pending rows and returns them; a row that was
	// claimed by a concurrent sweep is skipped until its claim goes
	// stale (a sweep that died before marking the row).
	ClaimDue(now time.Time, limit int) ([]model.ScheduledEmail, error)
	MarkSent(id int) error
	MarkFailed(id int, lastError string) error
}

type ScheduledEmailRepository struct {
	DB *sql.DB

	// StaleClaimAfter is how long a claim may sit before another sweep
	// may steal it (crash recovery). Zero means the default.
	StaleClaimAfter time.Duration
}

func (r *ScheduledEmailRepository) staleClaimAfter() time.Duration {
	if r.StaleClaimAfter > 0 {
		return r.StaleClaimAfter
	}
	return defaultStaleClaimAfter
}

func (r *ScheduledEmailRepository) Create(e *model.ScheduledEmail) error {
	e.Status = model.ScheduledPending
	e.CreatedAt = time.Now()
	query := `
		INSERT INTO scheduled_emails (account_id, recipient, subject, body, scheduled_for, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	return r.DB.QueryRow(query, e.AccountID, e.To, e.Subject, e.Body, e.ScheduledFor, e.Status, e.CreatedAt).
		Scan(&e.ID)
}

func (r *ScheduledEmailRepository) GetByID(id int) (*model.ScheduledEmail, error) {
	query := `
		SELECT id, account_id, recipient, subject, body, scheduled_for, status, last_error, created_at
		FROM scheduled_emails
		WHERE id=$1
	`
	var e model.ScheduledEmail
	err := r.DB.QueryRow(query, id).Scan(
		&e.ID, &e.AccountID, &e.To, &e.Subject, &e.Body,
		&e.ScheduledFor, &e.Status, &e.LastError, &e.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

func (r *ScheduledEmailRepository) List(accountID, offset, limit int) ([]model.ScheduledEmail, int, error) {
	query := `
		SELECT id, account_id, recipient, subject, body, scheduled_for, status, last_error, created_at
		FROM scheduled_emails
		WHERE account_id=$1
		ORDER BY scheduled_for ASC, id ASC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.DB.Query(query, accountID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	emails := []model.ScheduledEmail{}
	for rows.Next() {
		var e model.ScheduledEmail
		if err := rows.Scan(&e.ID, &e.AccountID, &e.To, &e.Subject, &e.Body, &e.ScheduledFor, &e.Status, &e.LastError, &e.CreatedAt); err != nil {
			return nil, 0, err
		}
		emails = append(emails, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int
	if err := r.DB.QueryRow(`SELECT COUNT(*) FROM scheduled_emails WHERE account_id=$1`, accountID).Scan(&total); err != nil {
		return nil, 0, err
	}
	return emails, total, nil
}

// Cancel only succeeds while the row is still pending. The conditional
// UPDATE is the race guard: if a concurrent sweep dispatched the email
// first, zero rows match and the caller gets ErrAlreadyTerminal.
func (r *ScheduledEmailRepository) Cancel(id, accountID int) error {
	res, err := r.DB.Exec(
		`UPDATE scheduled_emails SET status='cancelled' WHERE id=$1 AND account_id=$2 AND status='pending'`,
		id, accountID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	existing, err := r.GetByID(id)
	if err != nil {
		return err
	}
	if existing == nil || existing.AccountID != accountID {
		return appErrors.NewScheduledEmailNotFound(id)
	}
	return appErrors.NewAlreadyTerminal(id, string(existing.Status))
}

func (r *ScheduledEmailRepository) ClaimDue(now time.Time, limit int) ([]model.ScheduledEmail, error) {
	query := `
		UPDATE scheduled_emails SET claimed_at=$1
		WHERE id IN (
			SELECT id FROM scheduled_emails
			WHERE status='pending'
			  AND scheduled_for <= $1
			  AND (claimed_at IS NULL OR claimed_at < $3)
			ORDER BY scheduled_for ASC, id ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, account_id, recipient, subject, body, scheduled_for, status, last_error, created_at
	`
	stale := now.Add(-r.staleClaimAfter())
	rows, err := r.DB.Query(query, now, limit, stale)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	emails := []model.ScheduledEmail{}
	for rows.Next() {
		var e model.ScheduledEmail
		if err := rows.Scan(&e.ID, &e.AccountID, &e.To, &e.Subject, &e.Body, &e.ScheduledFor, &e.Status, &e.LastError, &e.CreatedAt); err != nil {
			return nil, err
		}
		emails = append(emails, e)
	}
	return emails, rows.Err()
}

func (r *ScheduledEmailRepository) MarkSent(id int) error {
	_, err := r.DB.Exec(
		`UPDATE scheduled_emails SET status='sent', last_error='', claimed_at=NULL WHERE id=$1 AND status='pending'`,
		id,
	)
	return err
}

func (r *ScheduledEmailRepository) MarkFailed(id int, lastError string) error {
	_, err := r.DB.Exec(
		`UPDATE scheduled_emails SET status='failed', last_error=$1, claimed_at=NULL WHERE id=$2 AND status='pending'`,
		lastError, id,
	)
	return err
}

var _ ScheduledEmailRepositoryInterface = (*ScheduledEmailRepository)(nil)
