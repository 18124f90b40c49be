package models

import (
	"time"

	"github.com/google/uuid"
)

// Message roles.
const (
	RoleUser   = "user"
	RoleAgent  = "agent"
	RoleSystem = "system"
)

// Message sources.
const (
	SourceWeb   = "web"
	SourceAdmin = "admin"
	SourceLINE  = "line"
)

// Message is a single chat message. Messages are append-only; there is no
// edit or delete path anywhere in the application.
type Message struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	Role           string    `json:"role"`
	Source         string    `json:"source"`
	Content        string    `json:"content"`
	CreatedBy      *string   `json:"created_by,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
