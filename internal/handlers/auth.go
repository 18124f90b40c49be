package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/sawanori/nonturn-chatdesk/internal/api/middleware"
	"github.com/sawanori/nonturn-chatdesk/internal/crypto"
)

const adminSessionTTL = 7 * 24 * time.Hour

// LoginRequest is the request body for POST /admin/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login validates admin credentials and mints a 7-day session cookie. All
// failure modes return the same 401 so credentials cannot be probed.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		h.Error(w, http.StatusBadRequest, "email and password are required")
		return
	}

	admin, err := h.db.GetAdminUserByEmail(r.Context(), email)
	if err != nil {
		h.serverError(w, r, err, "database error")
		return
	}
	if admin == nil || !admin.Active ||
		bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(req.Password)) != nil {
		h.Error(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := crypto.NewSessionToken()
	if err != nil {
		h.serverError(w, r, err, "failed to create session")
		return
	}
	expiresAt := time.Now().Add(adminSessionTTL)
	if err := h.db.CreateAdminSession(r.Context(), token, admin.ID, expiresAt); err != nil {
		h.serverError(w, r, err, "failed to create session")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.AdminSessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(adminSessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   !h.cfg.IsDevelopment(),
		SameSite: http.SameSiteLaxMode,
	})
	h.JSON(w, http.StatusOK, map[string]interface{}{"ok": true, "email": admin.Email})
}

// Logout deletes the session row when present and expires the cookie
// unconditionally.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(middleware.AdminSessionCookie); err == nil && c.Value != "" {
		if err := h.db.DeleteAdminSession(r.Context(), c.Value); err != nil {
			h.logger.Warn().Err(err).Msg("failed to delete admin session row")
		}
	}
	middleware.ClearAdminCookie(w)
	h.JSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// Verify reports the authenticated admin identity. The auth middleware has
// already resolved the session and cleared any stale cookie.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	admin := middleware.GetAdminFromContext(r.Context())
	if admin == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}
	h.JSON(w, http.StatusOK, map[string]interface{}{"authenticated": true, "email": admin.Email})
}
