package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/sawanori/nonturn-chatdesk/internal/api/middleware"
)

func seedAdmin(t *testing.T, s *fakeStore, email, password string) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateAdminUser(context.Background(), email, string(hash)); err != nil {
		t.Fatal(err)
	}
}

func TestLoginSuccess(t *testing.T) {
	h, deps := newTestHandler()
	seedAdmin(t, deps.store, "admin@non-turn.com", "correct horse")

	body := `{"email":"Admin@non-turn.com","password":"correct horse"}`
	req := httptest.NewRequest(http.MethodPost, "/admin/auth/login", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}

	var sessionSet bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.AdminSessionCookie && c.Value != "" {
			sessionSet = true
			if !c.HttpOnly {
				t.Error("admin session cookie must be HttpOnly")
			}
		}
	}
	if !sessionSet {
		t.Fatal("no admin session cookie set")
	}
	if len(deps.store.sessions) != 1 {
		t.Fatalf("expected 1 session row, got %d", len(deps.store.sessions))
	}
}

func TestLoginFailuresAreUniform(t *testing.T) {
	h, deps := newTestHandler()
	seedAdmin(t, deps.store, "admin@non-turn.com", "correct horse")

	// Deactivate a second account to cover the inactive path.
	seedAdmin(t, deps.store, "gone@non-turn.com", "whatever pass")
	for _, u := range deps.store.adminUsers {
		if u.Email == "gone@non-turn.com" {
			u.Active = false
		}
	}

	cases := []struct {
		name string
		body string
	}{
		{"unknown email", `{"email":"nobody@non-turn.com","password":"correct horse"}`},
		{"wrong password", `{"email":"admin@non-turn.com","password":"wrong"}`},
		{"inactive account", `{"email":"gone@non-turn.com","password":"whatever pass"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/admin/auth/login", strings.NewReader(tc.body))
			rec := httptest.NewRecorder()
			h.Login(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", rec.Code)
			}
			// Same body for every failure so accounts cannot be enumerated.
			if !strings.Contains(rec.Body.String(), "invalid credentials") {
				t.Fatalf("body = %s", rec.Body)
			}
		})
	}
	if len(deps.store.sessions) != 0 {
		t.Fatal("failed logins must not create sessions")
	}
}

func TestLoginMissingFields(t *testing.T) {
	h, _ := newTestHandler()

	req := httptest.NewRequest(http.MethodPost, "/admin/auth/login", strings.NewReader(`{"email":"","password":""}`))
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestLogoutDeletesSessionAndClearsCookie(t *testing.T) {
	h, deps := newTestHandler()
	seedAdmin(t, deps.store, "admin@non-turn.com", "correct horse")

	login := httptest.NewRecorder()
	h.Login(login, httptest.NewRequest(http.MethodPost, "/admin/auth/login",
		strings.NewReader(`{"email":"admin@non-turn.com","password":"correct horse"}`)))

	var token string
	for _, c := range login.Result().Cookies() {
		if c.Name == middleware.AdminSessionCookie {
			token = c.Value
		}
	}
	if token == "" {
		t.Fatal("login did not set a session cookie")
	}

	req := httptest.NewRequest(http.MethodPost, "/admin/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: middleware.AdminSessionCookie, Value: token})
	rec := httptest.NewRecorder()
	h.Logout(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(deps.store.sessions) != 0 {
		t.Fatal("logout must delete the session row")
	}

	var cleared bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.AdminSessionCookie && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Fatal("logout must expire the session cookie")
	}
}

func TestLogoutWithoutCookie(t *testing.T) {
	h, _ := newTestHandler()

	rec := httptest.NewRecorder()
	h.Logout(rec, httptest.NewRequest(http.MethodPost, "/admin/auth/logout", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, logout is idempotent", rec.Code)
	}
}
