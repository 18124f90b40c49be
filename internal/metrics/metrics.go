package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatdesk_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatdesk_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Business metrics
	MessagesStored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatdesk_messages_stored_total",
			Help: "Total chat messages stored",
		},
		[]string{"role", "source"},
	)

	ConversationsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatdesk_conversations_started_total",
			Help: "Total conversations created",
		},
	)

	NotificationsPushed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatdesk_admin_notifications_total",
			Help: "Admin notification evaluations by outcome",
		},
		[]string{"outcome"}, // "pushed", "cooldown", "burst", "disabled", "error"
	)

	ContactSubmissions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatdesk_contact_submissions_total",
			Help: "Total contact form submissions accepted",
		},
	)

	EmailsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatdesk_emails_sent_total",
			Help: "Outbound emails by result",
		},
		[]string{"kind", "result"},
	)

	// Rate limit metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatdesk_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"endpoint"},
	)

	CSRFFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatdesk_csrf_failures_total",
			Help: "Total rejected CSRF validations",
		},
	)

	WebhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatdesk_line_webhook_events_total",
			Help: "LINE webhook events by type",
		},
		[]string{"type"},
	)
)
