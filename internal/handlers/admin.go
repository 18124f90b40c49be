package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sawanori/nonturn-chatdesk/internal/api/middleware"
	"github.com/sawanori/nonturn-chatdesk/internal/metrics"
	"github.com/sawanori/nonturn-chatdesk/internal/models"
	"github.com/sawanori/nonturn-chatdesk/internal/store"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// ConversationListResponse is the response for GET /admin/conversations.
type ConversationListResponse struct {
	Items []models.Conversation `json:"items"`
}

// ThreadResponse is the response for GET /admin/conversations/{id}/messages.
type ThreadResponse struct {
	Conversation *models.Conversation `json:"conversation"`
	Items        []models.Message     `json:"items"`
}

// ReplyRequest is the request body for POST /admin/reply.
type ReplyRequest struct {
	ConversationID string `json:"conversationId"`
	Content        string `json:"content"`
}

// StatusRequest is the request body for POST /admin/conversations/{id}/status.
type StatusRequest struct {
	Status string `json:"status"`
}

// ListConversations lists conversations for the admin inbox, filtered by
// status bucket and sorted by last activity descending.
func (h *Handler) ListConversations(w http.ResponseWriter, r *http.Request) {
	filter := r.URL.Query().Get("filter")
	switch filter {
	case "", store.FilterActive:
		filter = store.FilterActive
	case store.FilterClosed, store.FilterAll:
	default:
		h.Error(w, http.StatusBadRequest, "filter must be active, closed, or all")
		return
	}

	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	convs, err := h.db.ListConversations(r.Context(), filter, limit)
	if err != nil {
		h.serverError(w, r, err, "database error")
		return
	}
	if convs == nil {
		convs = []models.Conversation{}
	}

	h.JSON(w, http.StatusOK, ConversationListResponse{Items: convs})
}

// GetThread returns a conversation and its full message history ascending.
func (h *Handler) GetThread(w http.ResponseWriter, r *http.Request) {
	convID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid conversation ID format")
		return
	}

	conv, err := h.db.GetConversation(r.Context(), convID)
	if err != nil {
		h.serverError(w, r, err, "database error")
		return
	}
	if conv == nil {
		h.Error(w, http.StatusNotFound, "conversation not found")
		return
	}

	msgs, err := h.db.ListMessages(r.Context(), convID)
	if err != nil {
		h.serverError(w, r, err, "database error")
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}

	h.JSON(w, http.StatusOK, ThreadResponse{Conversation: conv, Items: msgs})
}

// Reply appends an agent message. Admin replies never re-trigger admin
// notifications.
func (h *Handler) Reply(w http.ResponseWriter, r *http.Request) {
	admin := middleware.GetAdminFromContext(r.Context())
	if admin == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req ReplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	convID, err := uuid.Parse(req.ConversationID)
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid conversation ID format")
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

	conv, err := h.db.GetConversation(r.Context(), convID)
	if err != nil {
		h.serverError(w, r, err, "database error")
		return
	}
	if conv == nil {
		h.Error(w, http.StatusNotFound, "conversation not found")
		return
	}

	createdBy := admin.Email
	msg := &models.Message{
		ConversationID: convID,
		Role:           models.RoleAgent,
		Source:         models.SourceAdmin,
		Content:        content,
		CreatedBy:      &createdBy,
	}
	if err := h.db.InsertMessage(r.Context(), msg); err != nil {
		h.serverError(w, r, err, "failed to store message")
		return
	}
	metrics.MessagesStored.WithLabelValues(msg.Role, msg.Source).Inc()

	h.JSON(w, http.StatusOK, map[string]interface{}{"ok": true, "messageId": msg.ID.String()})
}

// SetStatus drives a conversation's status transition from the admin inbox.
func (h *Handler) SetStatus(w http.ResponseWriter, r *http.Request) {
	convID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid conversation ID format")
		return
	}

	var req StatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if !models.ValidStatus(req.Status) {
		h.Error(w, http.StatusBadRequest, "status must be new, active, snoozed, or closed")
		return
	}

	conv, err := h.db.GetConversation(r.Context(), convID)
	if err != nil {
		h.serverError(w, r, err, "database error")
		return
	}
	if conv == nil {
		h.Error(w, http.StatusNotFound, "conversation not found")
		return
	}

	if err := h.db.SetConversationStatus(r.Context(), convID, req.Status); err != nil {
		h.serverError(w, r, err, "failed to update status")
		return
	}

	h.JSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// ListContactSubmissions lists contact-form entries for the admin, newest
// first.
func (h *Handler) ListContactSubmissions(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	subs, err := h.db.ListContactSubmissions(r.Context(), limit)
	if err != nil {
		h.serverError(w, r, err, "database error")
		return
	}
	if subs == nil {
		subs = []models.ContactSubmission{}
	}

	h.JSON(w, http.StatusOK, map[string]interface{}{"items": subs})
}
