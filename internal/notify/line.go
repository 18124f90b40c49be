package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultLINEBaseURL = "https://api.line.me"

// LINEClient pushes text messages through the LINE Messaging API.
type LINEClient struct {
	accessToken string
	baseURL     string
	httpClient  *http.Client
}

// NewLINEClient creates a push client with the channel access token.
func NewLINEClient(accessToken string) *LINEClient {
	return &LINEClient{
		accessToken: accessToken,
		baseURL:     defaultLINEBaseURL,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}
}

type lineTextMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type linePushRequest struct {
	To       string            `json:"to"`
	Messages []lineTextMessage `json:"messages"`
}

// Push delivers a single text message to a user or group ID.
func (c *LINEClient) Push(ctx context.Context, to, text string) error {
	payload, err := json.Marshal(linePushRequest{
		To:       to,
		Messages: []lineTextMessage{{Type: "text", Text: text}},
	})
	if err != nil {
		return fmt.Errorf("encode push request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/bot/message/push", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("push to %s: %w", to, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("push to %s: status %d: %s", to, resp.StatusCode, body)
	}
	return nil
}
