package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/unclebandit/leadflow-backend/internal/model"
)

type ProgressRepositoryInterface interface {
	Attach(campaignID int, leadEmail string) (added bool, err error)
	ListByCampaign(campaignID, offset, limit int) ([]model.LeadProgress, int, error)
	CountByStatus(campaignID int) (map[string]int, error)

	// ClaimDue marks up to limit due leads as claimed by workerID and
	// returns them. With force=true the next_due_at gate is ignored and
	// every active lead with remaining steps is eligible.
	ClaimDue(campaignID int, now time.Time, force bool, stepCount int, workerID string, limit int) ([]model.LeadProgress, error)

	// AdvanceCursor moves the cursor from fromStep to toStep as a
	// compare-and-set; false means the claim was lost to a concurrent
	// runner and the caller must stop touching the row.
	AdvanceCursor(id, fromStep, toStep int, nextDueAt *time.Time, status model.ProgressStatus, workerID string) (bool, error)
	ReleaseClaim(id int, workerID string) error

	Reset(campaignID int) (int, error)
	BulkRemove(campaignID int, progressIDs []int) (int, error)
}

type ProgressRepository struct {
	DB *sql.DB

	// StaleClaimAfter is how long a claim may sit before another runner
	// may steal it (crash recovery). Zero means the default.
	StaleClaimAfter time.Duration
}

const defaultStaleClaimAfter = 2 * time.Minute

func (r *ProgressRepository) staleClaimAfter() time.Duration {
	if r.StaleClaimAfter > 0 {
		return r.StaleClaimAfter
	}
	return defaultStaleClaimAfter
}

// Attach is idempotent: attaching an address that is already on the
// campaign is reported as added=false, never as an error, so bulk
// imports can report "N added, M skipped".
func (r *ProgressRepository) Attach(campaignID int, leadEmail string) (bool, error) {
	// 1. Check if the lead is already on the campaign
	var existing int
	err := r.DB.QueryRow(
		`SELECT id FROM campaign_leads WHERE campaign_id=$1 AND lead_email=$2`,
		campaignID, leadEmail,
	).Scan(&existing)
	if err == nil {
		return false, nil // duplicate, skip
	}
	if err != sql.ErrNoRows {
		return false, err
	}

	// 2. Insert; the unique index is the backstop against a racing attach
	query := `
		INSERT INTO campaign_leads (campaign_id, lead_email, status, current_step, joined_at)
		VALUES ($1, $2, 'active', 0, NOW())
		ON CONFLICT (campaign_id, lead_email) DO NOTHING
		RETURNING id
	`
	var id int
	err = r.DB.QueryRow(query, campaignID, leadEmail).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *ProgressRepository) ListByCampaign(campaignID, offset, limit int) ([]model.LeadProgress, int, error) {
	query := `
		SELECT id, campaign_id, lead_email, status, current_step, next_due_at, joined_at
		FROM campaign_leads
		WHERE campaign_id=$1
		ORDER BY id ASC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.DB.Query(query, campaignID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	leads := []model.LeadProgress{}
	for rows.Next() {
		var p model.LeadProgress
		if err := rows.Scan(&p.ID, &p.CampaignID, &p.LeadEmail, &p.Status, &p.CurrentStep, &p.NextDueAt, &p.JoinedAt); err != nil {
			return nil, 0, err
		}
		leads = append(leads, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int
	if err := r.DB.QueryRow(`SELECT COUNT(*) FROM campaign_leads WHERE campaign_id=$1`, campaignID).Scan(&total); err != nil {
		return nil, 0, err
	}
	return leads, total, nil
}

func (r *ProgressRepository) CountByStatus(campaignID int) (map[string]int, error) {
	query := `SELECT status, COUNT(*) FROM campaign_leads WHERE campaign_id=$1 GROUP BY status`
	rows, err := r.DB.Query(query, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := map[string]int{"active": 0, "completed": 0, "removed": 0}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// ClaimDue is the concurrency gate of the whole engine: FOR UPDATE SKIP
// LOCKED keeps two overlapping sweeps from selecting the same row, and
// the claimed_at/claimed_by stamp keeps the row off later sweeps until
// released or stale. Selection order is next_due_at then id so re-runs
// after a crash pick leads up in a stable order.
func (r *ProgressRepository) ClaimDue(campaignID int, now time.Time, force bool, stepCount int, workerID string, limit int) ([]model.LeadProgress, error) {
	dueCond := "AND (next_due_at IS NULL OR next_due_at <= $2)"
	if force {
		dueCond = ""
	}
	query := fmt.Sprintf(`
		UPDATE campaign_leads SET claimed_at=$2, claimed_by=$5
		WHERE id IN (
			SELECT id FROM campaign_leads
			WHERE campaign_id=$1
			  AND status='active'
			  AND current_step < $3
			  %s
			  AND (claimed_at IS NULL OR claimed_at < $6)
			ORDER BY next_due_at ASC NULLS FIRST, id ASC
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, campaign_id, lead_email, status, current_step, next_due_at, joined_at
	`, dueCond)

	stale := now.Add(-r.staleClaimAfter())
	rows, err := r.DB.Query(query, campaignID, now, stepCount, limit, workerID, stale)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	leads := []model.LeadProgress{}
	for rows.Next() {
		var p model.LeadProgress
		if err := rows.Scan(&p.ID, &p.CampaignID, &p.LeadEmail, &p.Status, &p.CurrentStep, &p.NextDueAt, &p.JoinedAt); err != nil {
			return nil, err
		}
		p.ClaimedBy = workerID
		leads = append(leads, p)
	}
	return leads, rows.Err()
}

func (r *ProgressRepository) AdvanceCursor(id, fromStep, toStep int, nextDueAt *time.Time, status model.ProgressStatus, workerID string) (bool, error) {
	query := `
		UPDATE campaign_leads
		SET current_step=$1, next_due_at=$2, status=$3
		WHERE id=$4 AND current_step=$5 AND claimed_by=$6 AND status='active'
	`
	res, err := r.DB.Exec(query, toStep, nextDueAt, status, id, fromStep, workerID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *ProgressRepository) ReleaseClaim(id int, workerID string) error {
	_, err := r.DB.Exec(
		`UPDATE campaign_leads SET claimed_at=NULL, claimed_by=NULL WHERE id=$1 AND claimed_by=$2`,
		id, workerID,
	)
	return err
}

// Reset returns every lead on the campaign to step 0, active, with no
// due time. next_due_at is recomputed by the next run. Idempotent.
func (r *ProgressRepository) Reset(campaignID int) (int, error) {
	res, err := r.DB.Exec(`
		UPDATE campaign_leads
		SET status='active', current_step=0, next_due_at=NULL, claimed_at=NULL, claimed_by=NULL
		WHERE campaign_id=$1
	`, campaignID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (r *ProgressRepository) BulkRemove(campaignID int, progressIDs []int) (int, error) {
	if len(progressIDs) == 0 {
		return 0, nil
	}
	res, err := r.DB.Exec(
		`DELETE FROM campaign_leads WHERE campaign_id=$1 AND id = ANY($2)`,
		campaignID, pq.Array(progressIDs),
	)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

var _ ProgressRepositoryInterface = (*ProgressRepository)(nil)
