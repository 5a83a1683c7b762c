// internal/errors/errors.go
package appErrors

import "fmt"

// ErrCampaignNotFound is a sentinel error
type ErrCampaignNotFound struct {
	CampaignID int
}

func (e *ErrCampaignNotFound) Error() string {
	return fmt.Sprintf("campaign with ID %d not found", e.CampaignID)
}

// Helper constructor
func NewCampaignNotFound(id int) error {
	return &ErrCampaignNotFound{CampaignID: id}
}

type ErrStepNotFound struct {
	StepID int
}

func (e *ErrStepNotFound) Error() string {
	return fmt.Sprintf("step with ID %d not found", e.StepID)
}

func NewStepNotFound(id int) error {
	return &ErrStepNotFound{StepID: id}
}

type ErrScheduledEmailNotFound struct {
	ID int
}

func (e *ErrScheduledEmailNotFound) Error() string {
	return fmt.Sprintf("scheduled email with ID %d not found", e.ID)
}

func NewScheduledEmailNotFound(id int) error {
	return &ErrScheduledEmailNotFound{ID: id}
}

// ErrAlreadyTerminal is returned when cancelling a scheduled email that
// already reached sent/cancelled/failed.
type ErrAlreadyTerminal struct {
	ID     int
	Status string
}

func (e *ErrAlreadyTerminal) Error() string {
	return fmt.Sprintf("scheduled email %d is already %s and cannot be cancelled", e.ID, e.Status)
}

func NewAlreadyTerminal(id int, status string) error {
	return &ErrAlreadyTerminal{ID: id, Status: status}
}
