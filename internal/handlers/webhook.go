package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"

	"github.com/sawanori/nonturn-chatdesk/internal/metrics"
)

// lineEvent is the subset of the LINE webhook event payload this service
// inspects.
type lineEvent struct {
	Type   string `json:"type"`
	Source struct {
		Type    string `json:"type"`
		UserID  string `json:"userId,omitempty"`
		GroupID string `json:"groupId,omitempty"`
	} `json:"source"`
	Message struct {
		Type string `json:"type"`
		Text string `json:"text,omitempty"`
	} `json:"message"`
}

type lineWebhookBody struct {
	Events []lineEvent `json:"events"`
}

// LINEWebhook verifies the X-Line-Signature HMAC over the raw body and logs
// inbound event sources. LINE retries on non-200, so parse failures after a
// valid signature still return 200.
func (h *Handler) LINEWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.Error(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	if !validLINESignature(h.cfg.LINEChannelSecret, body, r.Header.Get("X-Line-Signature")) {
		h.logger.Warn().
			Str("type", "security").
			Str("event", "webhook_signature_rejected").
			Msg("LINE webhook signature mismatch")
		h.Error(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	var payload lineWebhookBody
	if err := json.Unmarshal(body, &payload); err != nil {
		h.logger.Warn().Err(err).Msg("unparseable LINE webhook body")
		h.JSON(w, http.StatusOK, map[string]bool{"ok": true})
		return
	}

	for _, ev := range payload.Events {
		metrics.WebhookEvents.WithLabelValues(ev.Type).Inc()
		h.logger.Info().
			Str("event", ev.Type).
			Str("source_type", ev.Source.Type).
			Str("user_id", ev.Source.UserID).
			Str("group_id", ev.Source.GroupID).
			Msg("LINE webhook event")
	}

	h.JSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// validLINESignature checks the base64 HMAC-SHA256 of body keyed by the
// channel secret, in constant time.
func validLINESignature(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
