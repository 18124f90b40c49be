package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/sawanori/nonturn-chatdesk/internal/api/middleware"
	"github.com/sawanori/nonturn-chatdesk/internal/crypto"
	"github.com/sawanori/nonturn-chatdesk/internal/metrics"
	"github.com/sawanori/nonturn-chatdesk/internal/models"
)

const (
	csrfTokenTTL      = 2 * time.Hour
	maxContactMessage = 2000
)

// ContactRequest is the request body for POST /contact.
type ContactRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone,omitempty"`
	Message string `json:"message"`
}

// CSRFToken mints a signed double-submit token, sets it as the csrf-token
// cookie, and returns it for the form to echo back in the X-CSRF-Token
// header.
func (h *Handler) CSRFToken(w http.ResponseWriter, r *http.Request) {
	token, err := crypto.SignedToken([]byte(h.cfg.CSRFSecret), csrfTokenTTL)
	if err != nil {
		h.serverError(w, r, err, "failed to create token")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.CSRFCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(csrfTokenTTL.Seconds()),
		HttpOnly: true,
		Secure:   !h.cfg.IsDevelopment(),
		SameSite: http.SameSiteStrictMode,
	})
	h.JSON(w, http.StatusOK, map[string]string{"token": token})
}

// Contact accepts a contact-form submission. CSRF and rate limiting are
// enforced by middleware before this handler runs; validation here is
// allow-list only, and the submission is persisted before any email leaves.
func (h *Handler) Contact(w http.ResponseWriter, r *http.Request) {
	var req ContactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	name := sanitizeName(req.Name)
	if name == "" {
		h.Error(w, http.StatusBadRequest, "name is required")
		return
	}
	email := strings.TrimSpace(req.Email)
	if email == "" || !isValidEmail(email) {
		h.Error(w, http.StatusBadRequest, "invalid email format")
		return
	}
	phone := strings.TrimSpace(req.Phone)
	if !isValidPhone(phone) {
		h.Error(w, http.StatusBadRequest, "invalid phone format")
		return
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		h.Error(w, http.StatusBadRequest, "message is required")
		return
	}
	if len([]rune(message)) > maxContactMessage {
		h.Error(w, http.StatusBadRequest, "message too long")
		return
	}

	sub := &models.ContactSubmission{
		ID:      ulid.Make().String(),
		Name:    name,
		Email:   email,
		Phone:   phone,
		Message: message,
		IP:      middleware.RealIP(r),
	}
	if err := h.db.InsertContactSubmission(r.Context(), sub); err != nil {
		h.serverError(w, r, err, "failed to store submission")
		return
	}
	metrics.ContactSubmissions.Inc()

	if err := h.mailer.SendContactNotification(r.Context(), sub); err != nil {
		metrics.EmailsSent.WithLabelValues("admin_notification", "error").Inc()
		h.serverError(w, r, err, "failed to send email")
		return
	}
	metrics.EmailsSent.WithLabelValues("admin_notification", "ok").Inc()

	if err := h.mailer.SendAutoReply(r.Context(), sub); err != nil {
		metrics.EmailsSent.WithLabelValues("auto_reply", "error").Inc()
		h.serverError(w, r, err, "failed to send email")
		return
	}
	metrics.EmailsSent.WithLabelValues("auto_reply", "ok").Inc()

	h.JSON(w, http.StatusOK, map[string]interface{}{"ok": true, "id": sub.ID})
}
