package models

import (
	"time"

	"github.com/google/uuid"
)

// AdminUser is a staff account for the admin inbox.
type AdminUser struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

// AdminSession is an opaque-token login session for an admin user. A session
// is valid until its fixed expiry or explicit logout; tokens are never
// refreshed or rotated.
type AdminSession struct {
	Token     string    `json:"-"`
	AdminID   uuid.UUID `json:"admin_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Expired reports whether the session is past its expiry at time now.
func (s *AdminSession) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
