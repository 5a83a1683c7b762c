// internal/model/activity.go
package model

import "time"

type ActivityType string

const (
	ActivityStepExecuted ActivityType = "step_executed"
	ActivityDelayStarted ActivityType = "delay_started"
	ActivityDelayElapsed ActivityType = "delay_elapsed"
	ActivityEmailSent    ActivityType = "email_sent"
	ActivityError        ActivityType = "error"
)

// ActivityEntry is append-only. A nil LeadEmail marks a campaign-level
// event such as a reset.
type ActivityEntry struct {
	ID         int          `db:"id" json:"id"`
	CampaignID int          `db:"campaign_id" json:"campaign_id"`
	LeadEmail  *string      `db:"lead_email" json:"lead_email,omitempty"`
	Type       ActivityType `db:"entry_type" json:"type"`
	Message    string       `db:"message" json:"message"`
	CreatedAt  time.Time    `db:"created_at" json:"created_at"`
}
