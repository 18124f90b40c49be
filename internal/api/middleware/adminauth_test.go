package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/sawanori/nonturn-chatdesk/internal/models"
	"github.com/sawanori/nonturn-chatdesk/internal/store"
)

func newAuthFixture(t *testing.T) (*AdminAuth, store.DataStore, *models.AdminUser) {
	t.Helper()
	db, err := store.NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(db.Close)

	admin, err := db.CreateAdminUser(context.Background(), "admin@non-turn.com", "hash")
	if err != nil {
		t.Fatal(err)
	}
	return NewAdminAuth(db), db, admin
}

func protected(t *testing.T) (http.HandlerFunc, **models.AdminUser) {
	t.Helper()
	var seen *models.AdminUser
	return func(w http.ResponseWriter, r *http.Request) {
		seen = GetAdminFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}, &seen
}

func TestRequireAdminValidSession(t *testing.T) {
	auth, db, admin := newAuthFixture(t)
	if err := db.CreateAdminSession(context.Background(), "tok-good", admin.ID, time.Now().Add(time.Hour)); err != nil {
		t.Fatal(err)
	}

	inner, seen := protected(t)
	req := httptest.NewRequest(http.MethodGet, "/admin/conversations", nil)
	req.AddCookie(&http.Cookie{Name: AdminSessionCookie, Value: "tok-good"})
	rec := httptest.NewRecorder()
	auth.RequireAdmin(inner).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if *seen == nil || (*seen).Email != admin.Email {
		t.Fatalf("admin in context = %+v", *seen)
	}
}

func TestRequireAdminMissingCookie(t *testing.T) {
	auth, _, _ := newAuthFixture(t)

	inner, seen := protected(t)
	rec := httptest.NewRecorder()
	auth.RequireAdmin(inner).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/conversations", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if *seen != nil {
		t.Fatal("handler must not run without a session")
	}
}

func TestRequireAdminUnknownToken(t *testing.T) {
	auth, _, _ := newAuthFixture(t)

	inner, _ := protected(t)
	req := httptest.NewRequest(http.MethodGet, "/admin/conversations", nil)
	req.AddCookie(&http.Cookie{Name: AdminSessionCookie, Value: "tok-bogus"})
	rec := httptest.NewRecorder()
	auth.RequireAdmin(inner).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestRequireAdminExpiredSession(t *testing.T) {
	auth, db, admin := newAuthFixture(t)
	if err := db.CreateAdminSession(context.Background(), "tok-old", admin.ID, time.Now().Add(-time.Minute)); err != nil {
		t.Fatal(err)
	}

	inner, _ := protected(t)
	req := httptest.NewRequest(http.MethodGet, "/admin/conversations", nil)
	req.AddCookie(&http.Cookie{Name: AdminSessionCookie, Value: "tok-old"})
	rec := httptest.NewRecorder()
	auth.RequireAdmin(inner).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}

	// Stale cookie is cleared and the dead row deleted.
	var cleared bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == AdminSessionCookie && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Fatal("expired session must clear the cookie")
	}
	if sess, err := db.GetAdminSession(context.Background(), "tok-old"); err != nil || sess != nil {
		t.Fatalf("expired session row should be deleted: got=%v err=%v", sess, err)
	}
}
