// internal/model/scheduled_email.go
package model

import "time"

type ScheduledStatus string

const (
	ScheduledPending   ScheduledStatus = "pending"
	ScheduledSent      ScheduledStatus = "sent"
	ScheduledCancelled ScheduledStatus = "cancelled"
	ScheduledFailed    ScheduledStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
// Only pending rows may be cancelled or dispatched.
func (s ScheduledStatus) Terminal() bool {
	return s == ScheduledSent || s == ScheduledCancelled || s == ScheduledFailed
}

type ScheduledEmail struct {
	ID           int             `db:"id" json:"id"`
	AccountID    int             `db:"account_id" json:"account_id"`
	To           string          `db:"recipient" json:"to"`
	Subject      string          `db:"subject" json:"subject"`
	Body         string          `db:"body" json:"body"`
	ScheduledFor time.Time       `db:"scheduled_for" json:"scheduled_for"`
	Status       ScheduledStatus `db:"status" json:"status"`
	LastError    string          `db:"last_error" json:"last_error,omitempty"`
	ClaimedAt    *time.Time      `db:"claimed_at" json:"-"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}
