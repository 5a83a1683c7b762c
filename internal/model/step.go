// internal/model/step.go
package model

import (
	"fmt"
	"time"
)

// StepKind tags the two step variants. Email steps carry subject/body,
// delay steps carry delay_seconds; the other fields stay zero.
type StepKind string

const (
	StepEmail StepKind = "email"
	StepDelay StepKind = "delay"
)

type Step struct {
	ID           int        `db:"id" json:"id"`
	CampaignID   int        `db:"campaign_id" json:"campaign_id"`
	StepOrder    int        `db:"step_order" json:"step_order"`
	Kind         StepKind   `db:"kind" json:"kind"`
	Subject      string     `db:"subject" json:"subject,omitempty"`
	Body         string     `db:"body" json:"body,omitempty"`
	DelaySeconds int        `db:"delay_seconds" json:"delay_seconds,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

// Validate enforces the per-kind field rules so a step can never be
// half email, half delay.
func (s *Step) Validate() error {
	switch s.Kind {
	case StepEmail:
		if s.Subject == "" {
			return fmt.Errorf("email step requires a subject")
		}
		if s.Body == "" {
			return fmt.Errorf("email step requires a body")
		}
		if s.DelaySeconds != 0 {
			return fmt.Errorf("email step cannot carry delay_seconds")
		}
	case StepDelay:
		if s.DelaySeconds < 0 {
			return fmt.Errorf("delay step duration cannot be negative")
		}
		if s.Subject != "" || s.Body != "" {
			return fmt.Errorf("delay step cannot carry email content")
		}
	default:
		return fmt.Errorf("unknown step kind: %q", s.Kind)
	}
	return nil
}

func (s *Step) DelayDuration() time.Duration {
	return time.Duration(s.DelaySeconds) * time.Second
}
