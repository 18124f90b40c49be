package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestLINEClientPush(t *testing.T) {
	var gotAuth, gotPath string
	var gotBody linePushRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewLINEClient("token-123")
	c.baseURL = srv.URL

	if err := c.Push(context.Background(), "U123", "hello"); err != nil {
		t.Fatal(err)
	}
	if gotAuth != "Bearer token-123" {
		t.Errorf("auth header = %q", gotAuth)
	}
	if gotPath != "/v2/bot/message/push" {
		t.Errorf("path = %q", gotPath)
	}
	if gotBody.To != "U123" {
		t.Errorf("to = %q", gotBody.To)
	}
	if len(gotBody.Messages) != 1 || gotBody.Messages[0].Type != "text" || gotBody.Messages[0].Text != "hello" {
		t.Errorf("messages = %+v", gotBody.Messages)
	}
}

func TestLINEClientPushError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"invalid token"}`))
	}))
	defer srv.Close()

	c := NewLINEClient("bad-token")
	c.baseURL = srv.URL

	err := c.Push(context.Background(), "U123", "hello")
	if err == nil {
		t.Fatal("expected error on 401")
	}
	if !strings.Contains(err.Error(), "401") {
		t.Errorf("error should carry status: %v", err)
	}
}
