package models

import "time"

// ContactSubmission is a persisted contact-form entry. It is stored before
// any email is sent so staff have an audit trail when delivery fails.
type ContactSubmission struct {
	ID        string    `json:"id"` // ULID
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	Message   string    `json:"message"`
	IP        string    `json:"ip"`
	CreatedAt time.Time `json:"created_at"`
}
