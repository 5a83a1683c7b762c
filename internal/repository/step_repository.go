package repository

import (
	"database/sql"
	"time"

	appErrors "github.com/unclebandit/leadflow-backend/internal/errors"
	"github.com/unclebandit/leadflow-backend/internal/model"
)

type StepRepositoryInterface interface {
	ListByCampaign(campaignID int) ([]model.Step, error)
	Upsert(step *model.Step) error
	Delete(stepID int) error
}

type StepRepository struct {
	DB *sql.DB
}

func (r *StepRepository) ListByCampaign(campaignID int) ([]model.Step, error) {
	query := `
		SELECT id, campaign_id, step_order, kind, subject, body, delay_seconds, created_at, updated_at
		FROM campaign_steps
		WHERE campaign_id=$1
		ORDER BY step_order ASC
	`
	rows, err := r.DB.Query(query, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	steps := []model.Step{}
	for rows.Next() {
		var s model.Step
		if err := rows.Scan(&s.ID, &s.CampaignID, &s.StepOrder, &s.Kind, &s.Subject, &s.Body, &s.DelaySeconds, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		steps = append(steps, s)
	}
	return steps, rows.Err()
}

// Upsert appends a new step at the next free order, or replaces the
// content of an existing step in place. The order field of an existing
// step never changes here; reordering happens only through Delete's
// renumbering.
func (r *StepRepository) Upsert(step *model.Step) error {
	if step.ID == 0 {
		step.CreatedAt = time.Now()
		query := `
			INSERT INTO campaign_steps (campaign_id, step_order, kind, subject, body, delay_seconds, created_at)
			VALUES ($1, (SELECT COALESCE(MAX(step_order)+1, 0) FROM campaign_steps WHERE campaign_id=$1), $2, $3, $4, $5, $6)
			RETURNING id, step_order
		`
		return r.DB.QueryRow(query, step.CampaignID, step.Kind, step.Subject, step.Body, step.DelaySeconds, step.CreatedAt).
			Scan(&step.ID, &step.StepOrder)
	}

	query := `
		UPDATE campaign_steps
		SET kind=$1, subject=$2, body=$3, delay_seconds=$4, updated_at=NOW()
		WHERE id=$5
		RETURNING step_order
	`
	err := r.DB.QueryRow(query, step.Kind, step.Subject, step.Body, step.DelaySeconds, step.ID).Scan(&step.StepOrder)
	if err == sql.ErrNoRows {
		return appErrors.NewStepNotFound(step.ID)
	}
	return err
}

// Delete removes a step and renumbers the steps behind it so orders
// stay a dense 0..N-1 sequence. Both statements run in one transaction.
func (r *StepRepository) Delete(stepID int) error {
	tx, err := r.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var campaignID, order int
	err = tx.QueryRow(`DELETE FROM campaign_steps WHERE id=$1 RETURNING campaign_id, step_order`, stepID).
		Scan(&campaignID, &order)
	if err == sql.ErrNoRows {
		return appErrors.NewStepNotFound(stepID)
	}
	if err != nil {
		return err
	}

	_, err = tx.Exec(
		`UPDATE campaign_steps SET step_order = step_order - 1 WHERE campaign_id=$1 AND step_order > $2`,
		campaignID, order,
	)
	if err != nil {
		return err
	}

	return tx.Commit()
}

var _ StepRepositoryInterface = (*StepRepository)(nil)
