package repository

import (
	"database/sql"

	"github.com/unclebandit/leadflow-backend/internal/model"
)

// LeadRepositoryInterface is the read side of the lead directory. The
// runner only needs it for template fields, so a missing row is nil,
// not an error.
type LeadRepositoryInterface interface {
	GetByEmail(email string) (*model.Lead, error)
	Ensure(email string) error
}

type LeadRepository struct {
	DB *sql.DB
}

func (r *LeadRepository) GetByEmail(email string) (*model.Lead, error) {
	query := `
		SELECT id, email, first_name, last_name, company
		FROM leads
		WHERE email = $1
	`
	var l model.Lead
	err := r.DB.QueryRow(query, email).Scan(&l.ID, &l.Email, &l.FirstName, &l.LastName, &l.Company)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // not found
		}
		return nil, err
	}
	return &l, nil
}

// Ensure creates a bare directory row for an address attached straight
// from an import, so later edits have somewhere to land.
func (r *LeadRepository) Ensure(email string) error {
	_, err := r.DB.Exec(
		`INSERT INTO leads (email) VALUES ($1) ON CONFLICT (email) DO NOTHING`,
		email,
	)
	return err
}

var _ LeadRepositoryInterface = (*LeadRepository)(nil)
