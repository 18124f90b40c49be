package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

func TestRealIP(t *testing.T) {
	cases := []struct {
		name       string
		remoteAddr string
		xff        string
		xRealIP    string
		want       string
	}{
		{"remote addr only", "203.0.113.5:4312", "", "", "203.0.113.5"},
		{"x-forwarded-for wins", "10.0.0.1:80", "198.51.100.7, 10.0.0.1", "", "198.51.100.7"},
		{"x-real-ip fallback", "10.0.0.1:80", "", "198.51.100.9", "198.51.100.9"},
		{"remote addr without port", "203.0.113.5", "", "", "203.0.113.5"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remoteAddr
			if tc.xff != "" {
				req.Header.Set("X-Forwarded-For", tc.xff)
			}
			if tc.xRealIP != "" {
				req.Header.Set("X-Real-IP", tc.xRealIP)
			}
			if got := RealIP(req); got != tc.want {
				t.Fatalf("RealIP = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestWhitelist(t *testing.T) {
	rl := NewRateLimiter(nil, zerolog.Nop(), RateLimiterConfig{
		Whitelist: []string{"203.0.113.5", "10.0.0.0/8", "bad-cidr/99"},
	})

	cases := []struct {
		ip   string
		want bool
	}{
		{"203.0.113.5", true},
		{"203.0.113.6", false},
		{"10.1.2.3", true},
		{"11.0.0.1", false},
		{"not-an-ip", false},
	}
	for _, tc := range cases {
		if got := rl.isWhitelisted(tc.ip); got != tc.want {
			t.Errorf("isWhitelisted(%q) = %v, want %v", tc.ip, got, tc.want)
		}
	}
}

func TestFindLimit(t *testing.T) {
	rl := NewRateLimiter(nil, zerolog.Nop(), RateLimiterConfig{})

	cases := []struct {
		method string
		path   string
		want   int // 0 means no limit
	}{
		{http.MethodPost, "/contact", 5},
		{http.MethodPost, "/chat/start", 10},
		{http.MethodPost, "/chat/send", 30},
		{http.MethodGet, "/chat/history", 60},
		{http.MethodPost, "/admin/auth/login", 10},
		{http.MethodGet, "/health", 0},
		{http.MethodPost, "/line/webhook", 0},
	}
	for _, tc := range cases {
		limit := rl.findLimit(httptest.NewRequest(tc.method, tc.path, nil))
		if tc.want == 0 {
			if limit != nil {
				t.Errorf("%s %s: unexpected limit %+v", tc.method, tc.path, limit)
			}
			continue
		}
		if limit == nil || limit.Requests != tc.want {
			t.Errorf("%s %s: limit = %+v, want %d/min", tc.method, tc.path, limit, tc.want)
		}
	}
}

func TestSessionOrIPKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/chat/send", nil)
	req.RemoteAddr = "203.0.113.5:1234"

	if got := sessionOrIPKey(req); got != "ratelimit:ip:203.0.113.5" {
		t.Fatalf("without cookie: key = %q", got)
	}

	req.AddCookie(&http.Cookie{Name: ChatSessionCookie, Value: "sess-1"})
	if got := sessionOrIPKey(req); got != "ratelimit:session:sess-1" {
		t.Fatalf("with cookie: key = %q", got)
	}
}
