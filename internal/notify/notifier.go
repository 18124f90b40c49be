package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sawanori/nonturn-chatdesk/internal/config"
	"github.com/sawanori/nonturn-chatdesk/internal/metrics"
	"github.com/sawanori/nonturn-chatdesk/internal/models"
)

const (
	previewLimit    = 60
	dispatchTimeout = 15 * time.Second
)

// Pusher delivers one text message to one recipient ID.
type Pusher interface {
	Push(ctx context.Context, to, text string) error
}

// CooldownStore is the slice of the data store the notifier needs: the atomic
// per-conversation cooldown claim.
type CooldownStore interface {
	ClaimAdminNotification(ctx context.Context, conversationID uuid.UUID, window time.Duration) (bool, error)
}

// Notifier fans a new-message alert out to the configured LINE recipients,
// gated by the per-conversation cooldown. Delivery is at most once, best
// effort, no retry.
type Notifier struct {
	db     CooldownStore
	pusher Pusher
	logger zerolog.Logger

	disabled     bool
	cooldown     time.Duration
	groupID      string
	userIDs      []string
	adminBaseURL string
}

// NewNotifier builds a notifier from config.
func NewNotifier(db CooldownStore, pusher Pusher, cfg *config.Config, logger zerolog.Logger) *Notifier {
	return &Notifier{
		db:           db,
		pusher:       pusher,
		logger:       logger,
		disabled:     cfg.NotifyDisabled,
		cooldown:     cfg.NotifyCooldown,
		groupID:      cfg.LINEGroupID,
		userIDs:      cfg.LINEUserIDs,
		adminBaseURL: cfg.AdminBaseURL,
	}
}

// Dispatch runs the eligibility evaluation and push on a detached context so
// the caller's HTTP response never waits on LINE. Intended to be launched via
// go statement from the message-send handler; failures are logged only.
func (n *Notifier) Dispatch(conv *models.Conversation, content string, prior *models.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()

	if _, err := n.Evaluate(ctx, conv, content, prior); err != nil {
		n.logger.Error().Err(err).
			Str("conversation_id", conv.ID.String()).
			Msg("notification dispatch failed")
	}
}

// Evaluate applies the notification policy for a freshly inserted visitor
// message and pushes to the admin recipients when eligible. prior is the most
// recent message that existed before the new one (nil for a brand new
// conversation). Returns whether a push was attempted.
func (n *Notifier) Evaluate(ctx context.Context, conv *models.Conversation, content string, prior *models.Message) (bool, error) {
	if n.disabled {
		metrics.NotificationsPushed.WithLabelValues("disabled").Inc()
		return false, nil
	}

	// Only the first message of a new exchange notifies. When the visitor is
	// mid-burst (previous message also from the visitor) admins were already
	// alerted for this exchange; an agent or system prior message means the
	// visitor is re-engaging and should notify again.
	if prior != nil && prior.Role == models.RoleUser {
		metrics.NotificationsPushed.WithLabelValues("burst").Inc()
		return false, nil
	}

	claimed, err := n.db.ClaimAdminNotification(ctx, conv.ID, n.cooldown)
	if err != nil {
		metrics.NotificationsPushed.WithLabelValues("error").Inc()
		return false, fmt.Errorf("claim notification slot: %w", err)
	}
	if !claimed {
		metrics.NotificationsPushed.WithLabelValues("cooldown").Inc()
		return false, nil
	}

	n.fanOut(ctx, n.buildText(conv, content))
	metrics.NotificationsPushed.WithLabelValues("pushed").Inc()
	return true, nil
}

// fanOut pushes to the group and all individual recipients concurrently.
// One recipient's failure never blocks the others.
func (n *Notifier) fanOut(ctx context.Context, text string) {
	recipients := n.recipients()
	if len(recipients) == 0 {
		n.logger.Warn().Msg("no LINE recipients configured, skipping notification")
		return
	}

	var wg sync.WaitGroup
	for _, to := range recipients {
		wg.Add(1)
		go func(to string) {
			defer wg.Done()
			if err := n.pusher.Push(ctx, to, text); err != nil {
				n.logger.Error().Err(err).Str("recipient", to).Msg("LINE push failed")
			}
		}(to)
	}
	wg.Wait()
}

func (n *Notifier) recipients() []string {
	var out []string
	if n.groupID != "" {
		out = append(out, n.groupID)
	}
	out = append(out, n.userIDs...)
	return out
}

func (n *Notifier) buildText(conv *models.Conversation, content string) string {
	name := conv.ContactName
	if name == "" {
		name = "ゲスト"
	}
	return fmt.Sprintf("新着チャット / %s\n%s\n%s/admin/inbox?conversation=%s",
		name, Preview(content), n.adminBaseURL, conv.ID)
}

// Preview truncates message content to the notification preview length,
// counting runes so multibyte text is not cut mid-character.
func Preview(content string) string {
	runes := []rune(content)
	if len(runes) <= previewLimit {
		return content
	}
	return string(runes[:previewLimit]) + "…"
}
