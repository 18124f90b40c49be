package mail

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/oklog/ulid/v2"

	"github.com/sawanori/nonturn-chatdesk/internal/models"
)

func testSubmission() *models.ContactSubmission {
	return &models.ContactSubmission{
		ID:      ulid.Make().String(),
		Name:    "山田太郎",
		Email:   "taro@example.com",
		Phone:   "090-1234-5678",
		Message: "撮影の見積もりをお願いします",
	}
}

func TestSendContactNotification(t *testing.T) {
	var gotAuth string
	var gotReq sendRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Path != "/emails" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"id":"email-1"}`))
	}))
	defer srv.Close()

	c := NewClient("re_key", "NonTurn <noreply@non-turn.com>", "studio@non-turn.com")
	c.baseURL = srv.URL

	if err := c.SendContactNotification(context.Background(), testSubmission()); err != nil {
		t.Fatal(err)
	}
	if gotAuth != "Bearer re_key" {
		t.Errorf("auth header = %q", gotAuth)
	}
	if len(gotReq.To) != 1 || gotReq.To[0] != "studio@non-turn.com" {
		t.Errorf("to = %v", gotReq.To)
	}
	if gotReq.ReplyTo != "taro@example.com" {
		t.Errorf("reply_to = %q, replies must reach the visitor", gotReq.ReplyTo)
	}
	if !strings.Contains(gotReq.Text, "撮影の見積もり") {
		t.Errorf("body missing message text: %q", gotReq.Text)
	}
}

func TestSendAutoReply(t *testing.T) {
	var gotReq sendRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotReq)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient("re_key", "NonTurn <noreply@non-turn.com>", "studio@non-turn.com")
	c.baseURL = srv.URL

	if err := c.SendAutoReply(context.Background(), testSubmission()); err != nil {
		t.Fatal(err)
	}
	if len(gotReq.To) != 1 || gotReq.To[0] != "taro@example.com" {
		t.Errorf("auto reply must go to the visitor, got %v", gotReq.To)
	}
	if gotReq.ReplyTo != "" {
		t.Errorf("auto reply should not set reply_to, got %q", gotReq.ReplyTo)
	}
}

func TestSendErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"message":"invalid from"}`))
	}))
	defer srv.Close()

	c := NewClient("re_key", "bad", "studio@non-turn.com")
	c.baseURL = srv.URL

	err := c.SendAutoReply(context.Background(), testSubmission())
	if err == nil {
		t.Fatal("expected error on 422")
	}
	if !strings.Contains(err.Error(), "422") {
		t.Errorf("error should carry status: %v", err)
	}
}
