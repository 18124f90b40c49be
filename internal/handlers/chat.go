package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/sawanori/nonturn-chatdesk/internal/api/middleware"
	"github.com/sawanori/nonturn-chatdesk/internal/crypto"
	"github.com/sawanori/nonturn-chatdesk/internal/metrics"
	"github.com/sawanori/nonturn-chatdesk/internal/models"
)

const (
	chatSessionMaxAge = 30 * 24 * 60 * 60 // 30 days, in seconds
	maxMessageBytes   = 4096

	welcomeMessage = "こんにちは！NonTurn.LLCです。撮影のご相談・お見積もりなど、お気軽にメッセージをどうぞ。"
)

// StartChatResponse is the response for POST /chat/start.
type StartChatResponse struct {
	ConversationID string `json:"conversationId"`
}

// SendMessageRequest is the request body for POST /chat/send.
type SendMessageRequest struct {
	Content        string `json:"content"`
	ConversationID string `json:"conversationId,omitempty"`
}

// SendMessageResponse is the response for POST /chat/send.
type SendMessageResponse struct {
	OK             bool   `json:"ok"`
	ConversationID string `json:"conversationId"`
}

// HistoryResponse is the response for GET /chat/history.
type HistoryResponse struct {
	Items          []models.Message `json:"items"`
	ConversationID string           `json:"conversationId,omitempty"`
}

// UpdateContactRequest is the request body for POST /chat/update-contact.
type UpdateContactRequest struct {
	ConversationID string `json:"conversationId"`
	Name           string `json:"name,omitempty"`
	Email          string `json:"email,omitempty"`
}

// StartChat ensures a session cookie exists and idempotently returns the
// session's open conversation, creating one (plus the system welcome message)
// on first contact.
func (h *Handler) StartChat(w http.ResponseWriter, r *http.Request) {
	token, err := h.ensureSession(w, r)
	if err != nil {
		h.serverError(w, r, err, "failed to create session")
		return
	}

	conv, err := h.bootstrapConversation(w, r, token)
	if err != nil {
		return // response already written
	}

	h.JSON(w, http.StatusOK, StartChatResponse{ConversationID: conv.ID.String()})
}

// SendMessage appends a visitor message and triggers the admin-notification
// evaluation without blocking the response on it.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	token := h.sessionToken(r)
	if token == "" {
		h.Error(w, http.StatusUnauthorized, "chat session required")
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	content := strings.TrimSpace(req.Content)
	if content == "" {
		h.Error(w, http.StatusBadRequest, "content is required")
		return
	}
	if len(content) > maxMessageBytes {
		h.Error(w, http.StatusBadRequest, "content too long")
		return
	}

	conv, err := h.resolveConversation(w, r, token, req.ConversationID)
	if err != nil {
		return // response already written
	}

	// Snapshot the most recent prior message before the insert; the
	// notification gate keys off its role.
	prior, err := h.db.LatestMessage(r.Context(), conv.ID)
	if err != nil {
		h.serverError(w, r, err, "database error")
		return
	}

	msg := &models.Message{
		ConversationID: conv.ID,
		Role:           models.RoleUser,
		Source:         models.SourceWeb,
		Content:        content,
	}
	if err := h.db.InsertMessage(r.Context(), msg); err != nil {
		h.serverError(w, r, err, "failed to store message")
		return
	}
	metrics.MessagesStored.WithLabelValues(msg.Role, msg.Source).Inc()

	// Fire and forget: push failures are logged inside the notifier, never
	// surfaced here.
	go h.notifier.Dispatch(conv, content, prior)

	h.JSON(w, http.StatusOK, SendMessageResponse{OK: true, ConversationID: conv.ID.String()})
}

// History returns the session's open conversation thread in ascending
// chronological order, or an empty payload when none exists.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	token := h.sessionToken(r)
	if token == "" {
		h.JSON(w, http.StatusOK, HistoryResponse{Items: []models.Message{}})
		return
	}

	conv, err := h.db.FindOpenConversationByToken(r.Context(), token)
	if err != nil {
		h.serverError(w, r, err, "database error")
		return
	}
	if conv == nil {
		h.JSON(w, http.StatusOK, HistoryResponse{Items: []models.Message{}})
		return
	}

	msgs, err := h.db.ListMessages(r.Context(), conv.ID)
	if err != nil {
		h.serverError(w, r, err, "database error")
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}

	h.JSON(w, http.StatusOK, HistoryResponse{Items: msgs, ConversationID: conv.ID.String()})
}

// UpdateContact records the visitor-supplied name and email on a conversation
// owned by the calling session.
func (h *Handler) UpdateContact(w http.ResponseWriter, r *http.Request) {
	token := h.sessionToken(r)
	if token == "" {
		h.Error(w, http.StatusUnauthorized, "chat session required")
		return
	}

	var req UpdateContactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	convID, err := uuid.Parse(req.ConversationID)
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid conversation ID format")
		return
	}

	name := sanitizeName(req.Name)
	email := strings.TrimSpace(req.Email)
	if !isValidEmail(email) {
		h.Error(w, http.StatusBadRequest, "invalid email format")
		return
	}

	conv, err := h.db.GetConversationForSession(r.Context(), convID, token)
	if err != nil {
		h.serverError(w, r, err, "database error")
		return
	}
	if conv == nil {
		h.Error(w, http.StatusNotFound, "conversation not found")
		return
	}

	// Partial updates keep whatever the visitor supplied earlier.
	if name == "" {
		name = conv.ContactName
	}
	if email == "" {
		email = conv.ContactEmail
	}

	if err := h.db.UpdateConversationContact(r.Context(), convID, name, email); err != nil {
		h.serverError(w, r, err, "failed to update contact")
		return
	}

	h.JSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// sessionToken returns the chat session cookie value, or "".
func (h *Handler) sessionToken(r *http.Request) string {
	c, err := r.Cookie(middleware.ChatSessionCookie)
	if err != nil {
		return ""
	}
	return c.Value
}

// ensureSession returns the existing session token or mints a new one and
// sets the cookie. A missing cookie is never an error for the caller.
func (h *Handler) ensureSession(w http.ResponseWriter, r *http.Request) (string, error) {
	if token := h.sessionToken(r); token != "" {
		return token, nil
	}

	token, err := crypto.NewSessionToken()
	if err != nil {
		return "", err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.ChatSessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   chatSessionMaxAge,
		HttpOnly: true,
		Secure:   !h.cfg.IsDevelopment(),
		SameSite: http.SameSiteLaxMode,
	})
	return token, nil
}

// bootstrapConversation reuses the session's open conversation or creates a
// fresh one seeded with the system welcome message. On error the HTTP
// response has already been written.
func (h *Handler) bootstrapConversation(w http.ResponseWriter, r *http.Request, token string) (*models.Conversation, error) {
	conv, err := h.db.FindOpenConversationByToken(r.Context(), token)
	if err != nil {
		h.serverError(w, r, err, "database error")
		return nil, err
	}
	if conv != nil {
		return conv, nil
	}

	conv, err = h.db.CreateConversation(r.Context(), token, models.ChannelWeb)
	if err != nil {
		h.serverError(w, r, err, "failed to create conversation")
		return nil, err
	}
	metrics.ConversationsStarted.Inc()

	welcome := &models.Message{
		ConversationID: conv.ID,
		Role:           models.RoleSystem,
		Source:         models.SourceWeb,
		Content:        welcomeMessage,
	}
	if err := h.db.InsertMessage(r.Context(), welcome); err != nil {
		h.serverError(w, r, err, "failed to create conversation")
		return nil, err
	}
	metrics.MessagesStored.WithLabelValues(welcome.Role, welcome.Source).Inc()

	return conv, nil
}

// resolveConversation maps an optional conversation ID to a conversation
// owned by the session. Unknown or foreign IDs fall back to the bootstrap
// path rather than erroring, matching the widget's recover-after-restart
// behavior.
func (h *Handler) resolveConversation(w http.ResponseWriter, r *http.Request, token, conversationID string) (*models.Conversation, error) {
	if conversationID != "" {
		convID, err := uuid.Parse(conversationID)
		if err == nil {
			conv, err := h.db.GetConversationForSession(r.Context(), convID, token)
			if err != nil {
				h.serverError(w, r, err, "database error")
				return nil, err
			}
			if conv != nil && conv.Open() {
				return conv, nil
			}
		}
	}
	return h.bootstrapConversation(w, r, token)
}
