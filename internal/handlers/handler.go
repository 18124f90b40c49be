package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"regexp"
	"strings"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/sawanori/nonturn-chatdesk/internal/config"
	"github.com/sawanori/nonturn-chatdesk/internal/models"
	"github.com/sawanori/nonturn-chatdesk/internal/store"
)

// emailRegex validates email addresses per RFC 5322 (simplified).
var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// phoneRegex allows digits, spaces, and common separators.
var phoneRegex = regexp.MustCompile(`^[0-9+\-() ]{0,20}$`)

// MessageNotifier dispatches an admin notification evaluation for a freshly
// stored visitor message. Implementations run fire-and-forget.
type MessageNotifier interface {
	Dispatch(conv *models.Conversation, content string, prior *models.Message)
}

// Mailer sends the contact-form email pair.
type Mailer interface {
	SendContactNotification(ctx context.Context, sub *models.ContactSubmission) error
	SendAutoReply(ctx context.Context, sub *models.ContactSubmission) error
}

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	db       store.DataStore
	redis    *store.RedisStore
	notifier MessageNotifier
	mailer   Mailer
	cfg      *config.Config
	logger   zerolog.Logger
}

// NewHandler creates a new Handler with the given dependencies.
func NewHandler(db store.DataStore, redis *store.RedisStore, notifier MessageNotifier, mailer Mailer, cfg *config.Config, logger zerolog.Logger) *Handler {
	return &Handler{db: db, redis: redis, notifier: notifier, mailer: mailer, cfg: cfg, logger: logger}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}

// serverError logs the detailed failure and returns a generic message. The
// detail is echoed to the caller only outside production.
func (h *Handler) serverError(w http.ResponseWriter, r *http.Request, err error, message string) {
	h.logger.Error().Err(err).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Msg(message)
	if h.cfg.IsDevelopment() {
		h.Error(w, http.StatusInternalServerError, message+": "+err.Error())
		return
	}
	h.Error(w, http.StatusInternalServerError, message)
}

// sanitizeName trims and limits name to 100 characters, removing control characters.
func sanitizeName(name string) string {
	name = strings.TrimSpace(name)

	// Remove control characters
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)

	// Limit to 100 characters
	runes := []rune(name)
	if len(runes) > 100 {
		name = string(runes[:100])
	}

	return name
}

// isValidEmail validates email addresses using RFC 5322 pattern.
func isValidEmail(email string) bool {
	if email == "" {
		return true // Empty is valid (optional field)
	}
	// Must be reasonable length and match RFC 5322 pattern
	if len(email) > 254 {
		return false
	}
	return emailRegex.MatchString(email)
}

// isValidPhone validates an optional phone number against the allow-list.
func isValidPhone(phone string) bool {
	return phoneRegex.MatchString(phone)
}
