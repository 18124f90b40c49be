package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sawanori/nonturn-chatdesk/internal/models"
)

const defaultBaseURL = "https://api.resend.com"

// Client sends transactional email through the Resend API.
type Client struct {
	apiKey     string
	from       string
	adminTo    string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Resend client. from is the sender identity, adminTo the
// studio inbox receiving contact notifications.
func NewClient(apiKey, from, adminTo string) *Client {
	return &Client{
		apiKey:     apiKey,
		from:       from,
		adminTo:    adminTo,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	ReplyTo string   `json:"reply_to,omitempty"`
	Subject string   `json:"subject"`
	Text    string   `json:"text"`
}

// SendContactNotification emails the studio inbox about a new contact-form
// submission.
func (c *Client) SendContactNotification(ctx context.Context, sub *models.ContactSubmission) error {
	body := fmt.Sprintf(
		"お問い合わせを受信しました。\n\nお名前: %s\nメール: %s\n電話番号: %s\n\n内容:\n%s\n",
		sub.Name, sub.Email, sub.Phone, sub.Message,
	)
	return c.send(ctx, sendRequest{
		From:    c.from,
		To:      []string{c.adminTo},
		ReplyTo: sub.Email,
		Subject: fmt.Sprintf("【お問い合わせ】%s様より", sub.Name),
		Text:    body,
	})
}

// SendAutoReply emails the visitor an acknowledgement of their submission.
func (c *Client) SendAutoReply(ctx context.Context, sub *models.ContactSubmission) error {
	body := fmt.Sprintf(
		"%s様\n\nお問い合わせありがとうございます。\n以下の内容で受け付けました。担当者より2営業日以内にご連絡いたします。\n\n---\n%s\n---\n",
		sub.Name, sub.Message,
	)
	return c.send(ctx, sendRequest{
		From:    c.from,
		To:      []string{sub.Email},
		Subject: "お問い合わせを受け付けました",
		Text:    body,
	})
}

func (c *Client) send(ctx context.Context, reqBody sendRequest) error {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("encode email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/emails", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create email request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("send email: status %d: %s", resp.StatusCode, body)
	}
	return nil
}
