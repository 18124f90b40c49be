package models

import (
	"time"

	"github.com/google/uuid"
)

// Conversation statuses. Transitions are driven by the admin inbox; the
// application never closes or deletes a conversation on its own.
const (
	StatusNew     = "new"
	StatusActive  = "active"
	StatusSnoozed = "snoozed"
	StatusClosed  = "closed"
)

// Conversation channels.
const (
	ChannelWeb  = "web"
	ChannelLINE = "line"
)

// Conversation represents a chat thread between one anonymous visitor and the
// admin team. At most one non-closed conversation exists per session token.
type Conversation struct {
	ID              uuid.UUID  `json:"id"`
	Channel         string     `json:"channel"`
	Status          string     `json:"status"`
	SessionToken    string     `json:"-"`
	ContactName     string     `json:"contact_name,omitempty"`
	ContactEmail    string     `json:"contact_email,omitempty"`
	LastMessageAt   time.Time  `json:"last_message_at"`
	AdminNotifiedAt *time.Time `json:"admin_notified_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// ValidStatus reports whether s is a known conversation status.
func ValidStatus(s string) bool {
	switch s {
	case StatusNew, StatusActive, StatusSnoozed, StatusClosed:
		return true
	}
	return false
}

// Open reports whether the conversation still accepts visitor messages.
func (c *Conversation) Open() bool {
	return c.Status != StatusClosed
}
