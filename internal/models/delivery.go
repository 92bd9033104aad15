package models

import "time"

// EmailOutcome describes what happened on the email channel of a dispatch.
type EmailOutcome string

const (
	EmailSent       EmailOutcome = "sent"
	EmailDisabled   EmailOutcome = "disabled"
	EmailSuppressed EmailOutcome = "suppressed"
	EmailNoAddress  EmailOutcome = "no_address"
	EmailFailed     EmailOutcome = "failed"
	EmailSkipped    EmailOutcome = "skipped"
)

// Delivery summarises one dispatch for the operator console.
type Delivery struct {
	ID            int          `json:"id"`
	CreatedAt     time.Time    `json:"created_at"`
	UserID        string       `json:"user_id"`
	Category      string       `json:"category"`
	Title         string       `json:"title"`
	PushAttempted int          `json:"push_attempted"`
	PushSucceeded int          `json:"push_succeeded"`
	PushFailed    int          `json:"push_failed"`
	Pruned        int          `json:"pruned"`
	Email         EmailOutcome `json:"email"`
	Source        string       `json:"source"` // webhook or test
}
