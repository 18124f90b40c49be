package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/sawanori/nonturn-chatdesk/internal/models"
)

// SQLiteStore handles SQLite database operations. It backs local development
// when no DATABASE_URL is configured; IDs and timestamps are generated in Go
// since SQLite has no native UUID support.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/chatdesk.db"
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/chatdesk.db"
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}

	if err := store.initSchema(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		channel TEXT NOT NULL DEFAULT 'web',
		status TEXT NOT NULL DEFAULT 'new',
		session_token TEXT NOT NULL,
		contact_name TEXT NOT NULL DEFAULT '',
		contact_email TEXT NOT NULL DEFAULT '',
		last_message_at TIMESTAMP NOT NULL,
		admin_notified_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL REFERENCES conversations(id),
		role TEXT NOT NULL,
		source TEXT NOT NULL,
		content TEXT NOT NULL,
		created_by TEXT,
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS admin_users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS admin_sessions (
		token TEXT PRIMARY KEY,
		admin_id TEXT NOT NULL REFERENCES admin_users(id) ON DELETE CASCADE,
		expires_at TIMESTAMP NOT NULL,
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS contact_submissions (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL,
		phone TEXT NOT NULL DEFAULT '',
		message TEXT NOT NULL,
		ip TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_conversations_session_token ON conversations(session_token);
	CREATE INDEX IF NOT EXISTS idx_conversations_last_message ON conversations(last_message_at);
	CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, created_at);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database.
func (s *SQLiteStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const sqliteConversationColumns = `id, channel, status, session_token, contact_name, contact_email, last_message_at, admin_notified_at, created_at`

func scanSQLiteConversation(row *sql.Row) (*models.Conversation, error) {
	conv := &models.Conversation{}
	var id string
	err := row.Scan(
		&id,
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
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	conv.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, err
	}
	return conv, nil
}

// CreateConversation creates a new conversation for the session token.
func (s *SQLiteStore) CreateConversation(ctx context.Context, sessionToken, channel string) (*models.Conversation, error) {
	now := time.Now().UTC()
	conv := &models.Conversation{
		ID:            uuid.New(),
		Channel:       channel,
		Status:        models.StatusNew,
		SessionToken:  sessionToken,
		LastMessageAt: now,
		CreatedAt:     now,
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, channel, status, session_token, last_message_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, conv.ID.String(), conv.Channel, conv.Status, conv.SessionToken, conv.LastMessageAt, conv.CreatedAt)
	if err != nil {
		return nil, err
	}
	return conv, nil
}

// FindOpenConversationByToken retrieves the session's non-closed conversation.
func (s *SQLiteStore) FindOpenConversationByToken(ctx context.Context, sessionToken string) (*models.Conversation, error) {
	return scanSQLiteConversation(s.db.QueryRowContext(ctx, `
		SELECT `+sqliteConversationColumns+`
		FROM conversations
		WHERE session_token = ? AND status <> ?
		ORDER BY created_at DESC
		LIMIT 1
	`, sessionToken, models.StatusClosed))
}

// GetConversationForSession retrieves a conversation owned by the session token.
func (s *SQLiteStore) GetConversationForSession(ctx context.Context, id uuid.UUID, sessionToken string) (*models.Conversation, error) {
	return scanSQLiteConversation(s.db.QueryRowContext(ctx, `
		SELECT `+sqliteConversationColumns+`
		FROM conversations
		WHERE id = ? AND session_token = ?
	`, id.String(), sessionToken))
}

// GetConversation retrieves a conversation by ID.
func (s *SQLiteStore) GetConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	return scanSQLiteConversation(s.db.QueryRowContext(ctx, `
		SELECT `+sqliteConversationColumns+`
		FROM conversations
		WHERE id = ?
	`, id.String()))
}

// UpdateConversationContact updates the visitor-supplied contact fields.
func (s *SQLiteStore) UpdateConversationContact(ctx context.Context, id uuid.UUID, name, email string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE conversations SET contact_name = ?, contact_email = ? WHERE id = ?
	`, name, email, id.String())
	return err
}

// SetConversationStatus updates the conversation status.
func (s *SQLiteStore) SetConversationStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE conversations SET status = ? WHERE id = ?
	`, status, id.String())
	return err
}

// ListConversations lists conversations for the admin inbox.
func (s *SQLiteStore) ListConversations(ctx context.Context, filter string, limit int) ([]models.Conversation, error) {
	query := `SELECT ` + sqliteConversationColumns + ` FROM conversations `
	switch filter {
	case FilterActive:
		query += `WHERE status IN ('new', 'active') `
	case FilterClosed:
		query += `WHERE status = 'closed' `
	}
	query += `ORDER BY last_message_at DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var convs []models.Conversation
	for rows.Next() {
		var conv models.Conversation
		var id string
		err := rows.Scan(
			&id,
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
			return nil, err
		}
		if conv.ID, err = uuid.Parse(id); err != nil {
			return nil, err
		}
		convs = append(convs, conv)
	}
	return convs, rows.Err()
}

// InsertMessage appends a message and bumps the conversation's freshness
// timestamp in one transaction.
func (s *SQLiteStore) InsertMessage(ctx context.Context, msg *models.Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	msg.ID = uuid.New()
	msg.CreatedAt = time.Now().UTC()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, role, source, content, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, msg.ID.String(), msg.ConversationID.String(), msg.Role, msg.Source, msg.Content, msg.CreatedBy, msg.CreatedAt)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE conversations SET last_message_at = ? WHERE id = ?
	`, msg.CreatedAt, msg.ConversationID.String())
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (s *SQLiteStore) scanMessageRow(scan func(dest ...any) error) (*models.Message, error) {
	msg := &models.Message{}
	var id, convID string
	err := scan(&id, &convID, &msg.Role, &msg.Source, &msg.Content, &msg.CreatedBy, &msg.CreatedAt)
	if err != nil {
		return nil, err
	}
	if msg.ID, err = uuid.Parse(id); err != nil {
		return nil, err
	}
	if msg.ConversationID, err = uuid.Parse(convID); err != nil {
		return nil, err
	}
	return msg, nil
}

// LatestMessage retrieves the most recent message in a conversation.
func (s *SQLiteStore) LatestMessage(ctx context.Context, conversationID uuid.UUID) (*models.Message, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, conversation_id, role, source, content, created_by, created_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, conversationID.String())
	msg, err := s.scanMessageRow(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return msg, nil
}

// ListMessages retrieves all messages in ascending chronological order.
func (s *SQLiteStore) ListMessages(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, role, source, content, created_by, created_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at ASC, id ASC
	`, conversationID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []models.Message
	for rows.Next() {
		msg, err := s.scanMessageRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, *msg)
	}
	return msgs, rows.Err()
}

// ClaimAdminNotification atomically stamps admin_notified_at when outside the
// cooldown window. A single guarded UPDATE keeps the check-and-set atomic.
func (s *SQLiteStore) ClaimAdminNotification(ctx context.Context, conversationID uuid.UUID, window time.Duration) (bool, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE conversations
		SET admin_notified_at = ?
		WHERE id = ? AND (admin_notified_at IS NULL OR admin_notified_at <= ?)
	`, now, conversationID.String(), now.Add(-window))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// CreateAdminUser creates or refreshes an admin account.
func (s *SQLiteStore) CreateAdminUser(ctx context.Context, email, passwordHash string) (*models.AdminUser, error) {
	user := &models.AdminUser{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: passwordHash,
		Active:       true,
		CreatedAt:    time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO admin_users (id, email, password_hash, active, created_at)
		VALUES (?, ?, ?, 1, ?)
		ON CONFLICT (email) DO UPDATE SET password_hash = excluded.password_hash, active = 1
	`, user.ID.String(), user.Email, user.PasswordHash, user.CreatedAt)
	if err != nil {
		return nil, err
	}
	return s.GetAdminUserByEmail(ctx, email)
}

func (s *SQLiteStore) scanAdminUser(row *sql.Row) (*models.AdminUser, error) {
	user := &models.AdminUser{}
	var id string
	err := row.Scan(&id, &user.Email, &user.PasswordHash, &user.Active, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if user.ID, err = uuid.Parse(id); err != nil {
		return nil, err
	}
	return user, nil
}

// GetAdminUserByEmail retrieves an admin account by email.
func (s *SQLiteStore) GetAdminUserByEmail(ctx context.Context, email string) (*models.AdminUser, error) {
	return s.scanAdminUser(s.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, active, created_at
		FROM admin_users WHERE email = ?
	`, email))
}

// GetAdminUser retrieves an admin account by ID.
func (s *SQLiteStore) GetAdminUser(ctx context.Context, id uuid.UUID) (*models.AdminUser, error) {
	return s.scanAdminUser(s.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, active, created_at
		FROM admin_users WHERE id = ?
	`, id.String()))
}

// CreateAdminSession persists a login session token.
func (s *SQLiteStore) CreateAdminSession(ctx context.Context, token string, adminID uuid.UUID, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO admin_sessions (token, admin_id, expires_at, created_at)
		VALUES (?, ?, ?, ?)
	`, token, adminID.String(), expiresAt, time.Now().UTC())
	return err
}

// GetAdminSession retrieves a login session by token.
func (s *SQLiteStore) GetAdminSession(ctx context.Context, token string) (*models.AdminSession, error) {
	sess := &models.AdminSession{}
	var adminID string
	err := s.db.QueryRowContext(ctx, `
		SELECT token, admin_id, expires_at, created_at
		FROM admin_sessions WHERE token = ?
	`, token).Scan(&sess.Token, &adminID, &sess.ExpiresAt, &sess.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if sess.AdminID, err = uuid.Parse(adminID); err != nil {
		return nil, err
	}
	return sess, nil
}

// DeleteAdminSession removes a login session row.
func (s *SQLiteStore) DeleteAdminSession(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM admin_sessions WHERE token = ?`, token)
	return err
}

// InsertContactSubmission persists a contact-form entry.
func (s *SQLiteStore) InsertContactSubmission(ctx context.Context, sub *models.ContactSubmission) error {
	sub.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO contact_submissions (id, name, email, phone, message, ip, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, sub.ID, sub.Name, sub.Email, sub.Phone, sub.Message, sub.IP, sub.CreatedAt)
	return err
}

// ListContactSubmissions lists contact-form entries, newest first.
func (s *SQLiteStore) ListContactSubmissions(ctx context.Context, limit int) ([]models.ContactSubmission, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, email, phone, message, ip, created_at
		FROM contact_submissions
		ORDER BY created_at DESC
		LIMIT ?
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
