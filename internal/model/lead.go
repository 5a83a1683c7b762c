// internal/model/lead.go
package model

import "time"

// Lead is the directory record behind a lead identifier. Progress rows
// reference leads by email so CSV imports can attach addresses that do
// not have a directory entry yet.
type Lead struct {
	ID        int    `db:"id" json:"id"`
	Email     string `db:"email" json:"email"`
	FirstName string `db:"first_name" json:"first_name"`
	LastName  string `db:"last_name" json:"last_name"`
	Company   string `db:"company" json:"company"`
}

type ProgressStatus string

const (
	ProgressActive    ProgressStatus = "active"
	ProgressCompleted ProgressStatus = "completed"
	ProgressRemoved   ProgressStatus = "removed"
)

// LeadProgress is the per (campaign, lead) cursor. CurrentStep points at
// the next step to execute; NextDueAt is nil until the runner has seen
// the lead once (nil counts as due). ClaimedAt/ClaimedBy are the
// short-lived claim marker owned by whichever runner is processing the
// row.
type LeadProgress struct {
	ID          int            `db:"id" json:"id"`
	CampaignID  int            `db:"campaign_id" json:"campaign_id"`
	LeadEmail   string         `db:"lead_email" json:"lead_email"`
	Status      ProgressStatus `db:"status" json:"status"`
	CurrentStep int            `db:"current_step" json:"current_step"`
	NextDueAt   *time.Time     `db:"next_due_at" json:"next_due_at,omitempty"`
	ClaimedAt   *time.Time     `db:"claimed_at" json:"-"`
	ClaimedBy   string         `db:"claimed_by" json:"-"`
	JoinedAt    time.Time      `db:"joined_at" json:"joined_at"`
}
