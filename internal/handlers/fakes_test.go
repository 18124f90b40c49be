package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sawanori/nonturn-chatdesk/internal/config"
	"github.com/sawanori/nonturn-chatdesk/internal/models"
)

// fakeStore is an in-memory DataStore for handler tests. It mirrors the
// ordering and nil-on-miss semantics of the real stores.
type fakeStore struct {
	mu            sync.Mutex
	conversations map[uuid.UUID]*models.Conversation
	messages      []models.Message
	adminUsers    map[uuid.UUID]*models.AdminUser
	sessions      map[string]*models.AdminSession
	submissions   []models.ContactSubmission
	clock         time.Time

	err error // when set, every operation fails with it
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		conversations: make(map[uuid.UUID]*models.Conversation),
		adminUsers:    make(map[uuid.UUID]*models.AdminUser),
		sessions:      make(map[string]*models.AdminSession),
		clock:         time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

// tick returns a strictly increasing timestamp so insertion order and
// chronological order agree.
func (f *fakeStore) tick() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

func (f *fakeStore) Close()                         {}
func (f *fakeStore) Ping(ctx context.Context) error { return f.err }

func (f *fakeStore) CreateConversation(ctx context.Context, sessionToken, channel string) (*models.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	now := f.tick()
	conv := &models.Conversation{
		ID:            uuid.New(),
		Channel:       channel,
		Status:        models.StatusNew,
		SessionToken:  sessionToken,
		LastMessageAt: now,
		CreatedAt:     now,
	}
	f.conversations[conv.ID] = conv
	return conv, nil
}

func (f *fakeStore) FindOpenConversationByToken(ctx context.Context, sessionToken string) (*models.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var found *models.Conversation
	for _, c := range f.conversations {
		if c.SessionToken == sessionToken && c.Open() {
			if found == nil || c.CreatedAt.After(found.CreatedAt) {
				found = c
			}
		}
	}
	return found, nil
}

func (f *fakeStore) GetConversationForSession(ctx context.Context, id uuid.UUID, sessionToken string) (*models.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	c, ok := f.conversations[id]
	if !ok || c.SessionToken != sessionToken {
		return nil, nil
	}
	return c, nil
}

func (f *fakeStore) GetConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	c, ok := f.conversations[id]
	if !ok {
		return nil, nil
	}
	return c, nil
}

func (f *fakeStore) UpdateConversationContact(ctx context.Context, id uuid.UUID, name, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if c, ok := f.conversations[id]; ok {
		c.ContactName = name
		c.ContactEmail = email
	}
	return nil
}

func (f *fakeStore) SetConversationStatus(ctx context.Context, id uuid.UUID, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if c, ok := f.conversations[id]; ok {
		c.Status = status
	}
	return nil
}

func (f *fakeStore) ListConversations(ctx context.Context, filter string, limit int) ([]models.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []models.Conversation
	for _, c := range f.conversations {
		switch filter {
		case "active":
			if c.Status != models.StatusNew && c.Status != models.StatusActive {
				continue
			}
		case "closed":
			if c.Status != models.StatusClosed {
				continue
			}
		}
		out = append(out, *c)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeStore) InsertMessage(ctx context.Context, msg *models.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	msg.ID = uuid.New()
	msg.CreatedAt = f.tick()
	f.messages = append(f.messages, *msg)
	if c, ok := f.conversations[msg.ConversationID]; ok {
		c.LastMessageAt = msg.CreatedAt
	}
	return nil
}

func (f *fakeStore) LatestMessage(ctx context.Context, conversationID uuid.UUID) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for i := len(f.messages) - 1; i >= 0; i-- {
		if f.messages[i].ConversationID == conversationID {
			m := f.messages[i]
			return &m, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) ListMessages(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []models.Message
	for _, m := range f.messages {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeStore) ClaimAdminNotification(ctx context.Context, conversationID uuid.UUID, window time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	c, ok := f.conversations[conversationID]
	if !ok {
		return false, nil
	}
	now := f.clock
	if c.AdminNotifiedAt != nil && now.Sub(*c.AdminNotifiedAt) < window {
		return false, nil
	}
	stamp := now
	c.AdminNotifiedAt = &stamp
	return true, nil
}

func (f *fakeStore) CreateAdminUser(ctx context.Context, email, passwordHash string) (*models.AdminUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	u := &models.AdminUser{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: passwordHash,
		Active:       true,
		CreatedAt:    f.tick(),
	}
	f.adminUsers[u.ID] = u
	return u, nil
}

func (f *fakeStore) GetAdminUserByEmail(ctx context.Context, email string) (*models.AdminUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, u := range f.adminUsers {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) GetAdminUser(ctx context.Context, id uuid.UUID) (*models.AdminUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.adminUsers[id]
	if !ok {
		return nil, nil
	}
	return u, nil
}

func (f *fakeStore) CreateAdminSession(ctx context.Context, token string, adminID uuid.UUID, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sessions[token] = &models.AdminSession{
		Token:     token,
		AdminID:   adminID,
		ExpiresAt: expiresAt,
		CreatedAt: f.tick(),
	}
	return nil
}

func (f *fakeStore) GetAdminSession(ctx context.Context, token string) (*models.AdminSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	s, ok := f.sessions[token]
	if !ok {
		return nil, nil
	}
	return s, nil
}

func (f *fakeStore) DeleteAdminSession(ctx context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	delete(f.sessions, token)
	return nil
}

func (f *fakeStore) InsertContactSubmission(ctx context.Context, sub *models.ContactSubmission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	sub.CreatedAt = f.tick()
	f.submissions = append(f.submissions, *sub)
	return nil
}

func (f *fakeStore) ListContactSubmissions(ctx context.Context, limit int) ([]models.ContactSubmission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([]models.ContactSubmission, 0, len(f.submissions))
	for i := len(f.submissions) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, f.submissions[i])
	}
	return out, nil
}

// fakeNotifier records Dispatch calls so tests can assert the fire-and-forget
// handoff without a real LINE client.
type fakeNotifier struct {
	mu    sync.Mutex
	calls []notifyCall
	done  chan struct{}
}

type notifyCall struct {
	conversationID uuid.UUID
	content        string
	prior          *models.Message
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{done: make(chan struct{}, 16)}
}

func (f *fakeNotifier) Dispatch(conv *models.Conversation, content string, prior *models.Message) {
	f.mu.Lock()
	f.calls = append(f.calls, notifyCall{conversationID: conv.ID, content: content, prior: prior})
	f.mu.Unlock()
	f.done <- struct{}{}
}

// wait blocks until one Dispatch call landed; the handler launches it on a
// separate goroutine.
func (f *fakeNotifier) wait(timeout time.Duration) bool {
	select {
	case <-f.done:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (f *fakeNotifier) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeNotifier) lastCall() notifyCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

// fakeMailer records sent emails and can fail on demand.
type fakeMailer struct {
	notifications int
	autoReplies   int
	notifyErr     error
	replyErr      error
}

func (f *fakeMailer) SendContactNotification(ctx context.Context, sub *models.ContactSubmission) error {
	if f.notifyErr != nil {
		return f.notifyErr
	}
	f.notifications++
	return nil
}

func (f *fakeMailer) SendAutoReply(ctx context.Context, sub *models.ContactSubmission) error {
	if f.replyErr != nil {
		return f.replyErr
	}
	f.autoReplies++
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		Env:               "test",
		CSRFSecret:        "test-csrf-secret",
		LINEChannelSecret: "line-channel-secret",
		AdminBaseURL:      "http://localhost:8080",
	}
}

type testDeps struct {
	store    *fakeStore
	notifier *fakeNotifier
	mailer   *fakeMailer
}

func newTestHandler() (*Handler, *testDeps) {
	deps := &testDeps{
		store:    newFakeStore(),
		notifier: newFakeNotifier(),
		mailer:   &fakeMailer{},
	}
	h := NewHandler(deps.store, nil, deps.notifier, deps.mailer, testConfig(), zerolog.Nop())
	return h, deps
}
