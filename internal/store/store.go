package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sawanori/nonturn-chatdesk/internal/models"
)

// Conversation list filters for the admin inbox.
const (
	FilterActive = "active" // status in {new, active}
	FilterClosed = "closed"
	FilterAll    = "all"
)

// DataStore defines the interface for persistent storage of conversations,
// messages, admin accounts, and contact submissions. Both PostgresStore and
// SQLiteStore implement this interface.
type DataStore interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// Conversation operations
	CreateConversation(ctx context.Context, sessionToken, channel string) (*models.Conversation, error)
	FindOpenConversationByToken(ctx context.Context, sessionToken string) (*models.Conversation, error)
	GetConversationForSession(ctx context.Context, id uuid.UUID, sessionToken string) (*models.Conversation, error)
	GetConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error)
	UpdateConversationContact(ctx context.Context, id uuid.UUID, name, email string) error
	SetConversationStatus(ctx context.Context, id uuid.UUID, status string) error
	ListConversations(ctx context.Context, filter string, limit int) ([]models.Conversation, error)

	// Message operations. InsertMessage also bumps the conversation's
	// last_message_at inside the same transaction.
	InsertMessage(ctx context.Context, msg *models.Message) error
	LatestMessage(ctx context.Context, conversationID uuid.UUID) (*models.Message, error)
	ListMessages(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error)

	// ClaimAdminNotification atomically stamps admin_notified_at to now when
	// no notification was sent within the cooldown window. The check-and-set
	// is a single database-side operation, never a read-then-write from
	// application code, so concurrent sends for the same conversation cannot
	// both claim the slot.
	ClaimAdminNotification(ctx context.Context, conversationID uuid.UUID, window time.Duration) (bool, error)

	// Admin accounts and sessions
	CreateAdminUser(ctx context.Context, email, passwordHash string) (*models.AdminUser, error)
	GetAdminUserByEmail(ctx context.Context, email string) (*models.AdminUser, error)
	GetAdminUser(ctx context.Context, id uuid.UUID) (*models.AdminUser, error)
	CreateAdminSession(ctx context.Context, token string, adminID uuid.UUID, expiresAt time.Time) error
	GetAdminSession(ctx context.Context, token string) (*models.AdminSession, error)
	DeleteAdminSession(ctx context.Context, token string) error

	// Contact form
	InsertContactSubmission(ctx context.Context, sub *models.ContactSubmission) error
	ListContactSubmissions(ctx context.Context, limit int) ([]models.ContactSubmission, error)
}
