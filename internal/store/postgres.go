package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sawanori/nonturn-chatdesk/internal/models"
)

const conversationColumns = `id, channel, status, session_token, contact_name, contact_email, last_message_at, admin_notified_at, created_at`

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func scanConversation(row pgx.Row) (*models.Conversation, error) {
	conv := &models.Conversation{}
	err := row.Scan(
		&conv.ID,
		&conv.Channel,
		&conv.Status,
		&conv.SessionToken,
		&conv.ContactName,
		&conv.ContactEmail,
		&conv.LastMessageAt,
		&conv.AdminNotifiedAt,
		&conv.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return conv, nil
}

// CreateConversation creates a new conversation for the session token.
func (s *PostgresStore) CreateConversation(ctx context.Context, sessionToken, channel string) (*models.Conversation, error) {
	return scanConversation(s.pool.QueryRow(ctx, `
		INSERT INTO conversations (channel, status, session_token)
		VALUES ($1, $2, $3)
		RETURNING `+conversationColumns+`
	`, channel, models.StatusNew, sessionToken))
}

// FindOpenConversationByToken retrieves the session's non-closed conversation,
// or nil when none exists.
func (s *PostgresStore) FindOpenConversationByToken(ctx context.Context, sessionToken string) (*models.Conversation, error) {
	return scanConversation(s.pool.QueryRow(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations
		WHERE session_token = $1 AND status <> $2
		ORDER BY created_at DESC
		LIMIT 1
	`, sessionToken, models.StatusClosed))
}

// GetConversationForSession retrieves a conversation only when it is owned by
// the session token.
func (s *PostgresStore) GetConversationForSession(ctx context.Context, id uuid.UUID, sessionToken string) (*models.Conversation, error) {
	return scanConversation(s.pool.QueryRow(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations
		WHERE id = $1 AND session_token = $2
	`, id, sessionToken))
}

// GetConversation retrieves a conversation by ID.
func (s *PostgresStore) GetConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	return scanConversation(s.pool.QueryRow(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations
		WHERE id = $1
	`, id))
}

// UpdateConversationContact updates the visitor-supplied contact fields.
func (s *PostgresStore) UpdateConversationContact(ctx context.Context, id uuid.UUID, name, email string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE conversations SET contact_name = $2, contact_email = $3 WHERE id = $1
	`, id, name, email)
	return err
}

// SetConversationStatus updates the conversation status.
func (s *PostgresStore) SetConversationStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE conversations SET status = $2 WHERE id = $1
	`, id, status)
	return err
}

// ListConversations lists conversations for the admin inbox, newest activity
// first.
func (s *PostgresStore) ListConversations(ctx context.Context, filter string, limit int) ([]models.Conversation, error) {
	query := `
		SELECT ` + conversationColumns + `
		FROM conversations
	`
	switch filter {
	case FilterActive:
		query += `WHERE status IN ('new', 'active') `
	case FilterClosed:
		query += `WHERE status = 'closed' `
	}
	query += `ORDER BY last_message_at DESC LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var convs []models.Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		convs = append(convs, *conv)
	}
	return convs, rows.Err()
}

// InsertMessage appends a message and bumps the conversation's freshness
// timestamp in one transaction.
func (s *PostgresStore) InsertMessage(ctx context.Context, msg *models.Message) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO messages (conversation_id, role, source, content, created_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, msg.ConversationID, msg.Role, msg.Source, msg.Content, msg.CreatedBy).Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		UPDATE conversations SET last_message_at = $2 WHERE id = $1
	`, msg.ConversationID, msg.CreatedAt)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// LatestMessage retrieves the most recent message in a conversation, or nil
// when the conversation is empty.
func (s *PostgresStore) LatestMessage(ctx context.Context, conversationID uuid.UUID) (*models.Message, error) {
	msg := &models.Message{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, conversation_id, role, source, content, created_by, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, conversationID).Scan(
		&msg.ID,
		&msg.ConversationID,
		&msg.Role,
		&msg.Source,
		&msg.Content,
		&msg.CreatedBy,
		&msg.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return msg, nil
}

// ListMessages retrieves all messages in a conversation in ascending
// chronological order, with id as tiebreaker for same-tick inserts.
func (s *PostgresStore) ListMessages(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, conversation_id, role, source, content, created_by, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC, id ASC
	`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []models.Message
	for rows.Next() {
		var msg models.Message
		err := rows.Scan(
			&msg.ID,
			&msg.ConversationID,
			&msg.Role,
			&msg.Source,
			&msg.Content,
			&msg.CreatedBy,
			&msg.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

// ClaimAdminNotification runs the server-side check-and-set installed by the
// migrations. It returns true when this caller won the notification slot.
func (s *PostgresStore) ClaimAdminNotification(ctx context.Context, conversationID uuid.UUID, window time.Duration) (bool, error) {
	var claimed *bool
	err := s.pool.QueryRow(ctx, `
		SELECT claim_admin_notification($1, make_interval(secs => $2))
	`, conversationID, window.Seconds()).Scan(&claimed)
	if err != nil {
		return false, err
	}
	return claimed != nil && *claimed, nil
}

// CreateAdminUser creates an admin account.
func (s *PostgresStore) CreateAdminUser(ctx context.Context, email, passwordHash string) (*models.AdminUser, error) {
	user := &models.AdminUser{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO admin_users (email, password_hash, active)
		VALUES ($1, $2, TRUE)
		ON CONFLICT (email) DO UPDATE SET password_hash = EXCLUDED.password_hash, active = TRUE
		RETURNING id, email, password_hash, active, created_at
	`, email, passwordHash).Scan(&user.ID, &user.Email, &user.PasswordHash, &user.Active, &user.CreatedAt)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// GetAdminUserByEmail retrieves an admin account by email.
func (s *PostgresStore) GetAdminUserByEmail(ctx context.Context, email string) (*models.AdminUser, error) {
	user := &models.AdminUser{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, active, created_at
		FROM admin_users WHERE email = $1
	`, email).Scan(&user.ID, &user.Email, &user.PasswordHash, &user.Active, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// GetAdminUser retrieves an admin account by ID.
func (s *PostgresStore) GetAdminUser(ctx context.Context, id uuid.UUID) (*models.AdminUser, error) {
	user := &models.AdminUser{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, active, created_at
		FROM admin_users WHERE id = $1
	`, id).Scan(&user.ID, &user.Email, &user.PasswordHash, &user.Active, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// CreateAdminSession persists a login session token.
func (s *PostgresStore) CreateAdminSession(ctx context.Context, token string, adminID uuid.UUID, expiresAt time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO admin_sessions (token, admin_id, expires_at)
		VALUES ($1, $2, $3)
	`, token, adminID, expiresAt)
	return err
}

// GetAdminSession retrieves a login session by token, or nil when unknown.
func (s *PostgresStore) GetAdminSession(ctx context.Context, token string) (*models.AdminSession, error) {
	sess := &models.AdminSession{}
	err := s.pool.QueryRow(ctx, `
		SELECT token, admin_id, expires_at, created_at
		FROM admin_sessions WHERE token = $1
	`, token).Scan(&sess.Token, &sess.AdminID, &sess.ExpiresAt, &sess.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return sess, nil
}

// DeleteAdminSession removes a login session row.
func (s *PostgresStore) DeleteAdminSession(ctx context.Context, token string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM admin_sessions WHERE token = $1`, token)
	return err
}

// InsertContactSubmission persists a contact-form entry.
func (s *PostgresStore) InsertContactSubmission(ctx context.Context, sub *models.ContactSubmission) error {
	return s.pool.QueryRow(ctx, `
		INSERT INTO contact_submissions (id, name, email, phone, message, ip)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, sub.ID, sub.Name, sub.Email, sub.Phone, sub.Message, sub.IP).Scan(&sub.CreatedAt)
}

// ListContactSubmissions lists contact-form entries, newest first.
func (s *PostgresStore) ListContactSubmissions(ctx context.Context, limit int) ([]models.ContactSubmission, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, email, phone, message, ip, created_at
		FROM contact_submissions
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []models.ContactSubmission
	for rows.Next() {
		var sub models.ContactSubmission
		err := rows.Scan(&sub.ID, &sub.Name, &sub.Email, &sub.Phone, &sub.Message, &sub.IP, &sub.CreatedAt)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}
