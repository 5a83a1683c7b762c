package repository

import (
	"database/sql"
	"time"

	"github.com/unclebandit/leadflow-backend/internal/model"
)

type ActivityRepositoryInterface interface {
	Append(entry *model.ActivityEntry) error
	List(campaignID, limit int) ([]model.ActivityEntry, error)
}

// ActivityRepository is append-only; nothing here updates or deletes.
type ActivityRepository struct {
	DB *sql.DB
}

func (r *ActivityRepository) Append(entry *model.ActivityEntry) error {
	entry.CreatedAt = time.Now()
	query := `
		INSERT INTO activity_log (campaign_id, lead_email, entry_type, message, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	return r.DB.QueryRow(query, entry.CampaignID, entry.LeadEmail, entry.Type, entry.Message, entry.CreatedAt).
		Scan(&entry.ID)
}

func (r *ActivityRepository) List(campaignID, limit int) ([]model.ActivityEntry, error) {
	if limit < 1 {
		limit = 50
	}
	query := `
		SELECT id, campaign_id, lead_email, entry_type, message, created_at
		FROM activity_log
		WHERE campaign_id=$1
		ORDER BY id DESC
		LIMIT $2
	`
	rows, err := r.DB.Query(query, campaignID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []model.ActivityEntry{}
	for rows.Next() {
		var e model.ActivityEntry
		if err := rows.Scan(&e.ID, &e.CampaignID, &e.LeadEmail, &e.Type, &e.Message, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

var _ ActivityRepositoryInterface = (*ActivityRepository)(nil)
