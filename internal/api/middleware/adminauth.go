package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/sawanori/nonturn-chatdesk/internal/models"
	"github.com/sawanori/nonturn-chatdesk/internal/store"
)

type contextKey string

// AdminContextKey carries the authenticated admin through the request context.
const AdminContextKey contextKey = "admin"

// AdminSessionCookie is the cookie carrying the admin login session token.
const AdminSessionCookie = "admin_session"

// AdminAuth verifies admin session cookies for the admin API.
type AdminAuth struct {
	db store.DataStore
}

// NewAdminAuth creates the admin auth middleware.
func NewAdminAuth(db store.DataStore) *AdminAuth {
	return &AdminAuth{db: db}
}

// RequireAdmin resolves the admin_session cookie to an active admin user.
// Missing, unknown, or expired sessions get a 401; stale cookies are cleared
// proactively so the browser stops resending them.
func (m *AdminAuth) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(AdminSessionCookie)
		if err != nil || cookie.Value == "" {
			unauthorized(w, "authentication required")
			return
		}

		sess, err := m.db.GetAdminSession(r.Context(), cookie.Value)
		if err != nil {
			unauthorized(w, "authentication required")
			return
		}
		if sess == nil || sess.Expired(time.Now()) {
			if sess != nil {
				_ = m.db.DeleteAdminSession(r.Context(), cookie.Value)
			}
			ClearAdminCookie(w)
			unauthorized(w, "session expired")
			return
		}

		admin, err := m.db.GetAdminUser(r.Context(), sess.AdminID)
		if err != nil || admin == nil || !admin.Active {
			ClearAdminCookie(w)
			unauthorized(w, "authentication required")
			return
		}

		ctx := context.WithValue(r.Context(), AdminContextKey, admin)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetAdminFromContext retrieves the authenticated admin from the request context.
func GetAdminFromContext(ctx context.Context) *models.AdminUser {
	admin, ok := ctx.Value(AdminContextKey).(*models.AdminUser)
	if !ok {
		return nil
	}
	return admin
}

// ClearAdminCookie expires the admin session cookie.
func ClearAdminCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     AdminSessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
