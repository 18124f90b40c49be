package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Port        string
	Env         string
	DatabaseURL string
	RedisURL    string

	// Outbound email (Resend)
	ResendAPIKey string
	MailFrom     string
	MailAdminTo  string

	// LINE messaging platform
	LINEChannelSecret      string
	LINEChannelAccessToken string
	LINEGroupID            string
	LINEUserIDs            []string

	// Admin notification fan-out
	NotifyDisabled bool          // global kill switch
	NotifyCooldown time.Duration // per-conversation cooldown window
	AdminBaseURL   string        // base for deep links into the admin inbox

	// Contact form
	CSRFSecret string

	// Rate limiting
	RateLimitWhitelist []string // IPs or CIDRs exempt from rate limiting

	// CORS: browser origins allowed to call the API with cookies
	AllowedOrigins []string
}

// Load reads configuration from environment variables.
// In development, it loads from .env file if present.
// In production, it panics on missing required variables.
func Load() *Config {
	// Load .env file if it exists (for development)
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Env:         getEnv("ENV", "development"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),

		ResendAPIKey: os.Getenv("RESEND_API_KEY"),
		MailFrom:     getEnv("MAIL_FROM", "NonTurn <noreply@non-turn.com>"),
		MailAdminTo:  os.Getenv("MAIL_ADMIN_TO"),

		LINEChannelSecret:      os.Getenv("LINE_CHANNEL_SECRET"),
		LINEChannelAccessToken: os.Getenv("LINE_CHANNEL_ACCESS_TOKEN"),
		LINEGroupID:            os.Getenv("LINE_GROUP_ID"),

		NotifyDisabled: getEnv("NOTIFY_DISABLED", "false") == "true",
		AdminBaseURL:   getEnv("ADMIN_BASE_URL", "http://localhost:8080"),
		CSRFSecret:     os.Getenv("CSRF_SECRET"),
	}

	cfg.LINEUserIDs = splitList(os.Getenv("LINE_USER_IDS"))
	cfg.RateLimitWhitelist = splitList(os.Getenv("RATE_LIMIT_WHITELIST"))
	cfg.AllowedOrigins = splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"))

	minutes := 5
	if v := os.Getenv("NOTIFY_COOLDOWN_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			minutes = n
		}
	}
	cfg.NotifyCooldown = time.Duration(minutes) * time.Minute

	// In production, require the backing services and signing secret
	if cfg.Env == "production" {
		if cfg.DatabaseURL == "" {
			panic("DATABASE_URL is required in production")
		}
		if cfg.RedisURL == "" {
			panic("REDIS_URL is required in production")
		}
		if cfg.CSRFSecret == "" {
			panic("CSRF_SECRET is required in production")
		}
	}

	return cfg
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// NotifyConfigured reports whether at least one LINE recipient is configured.
func (c *Config) NotifyConfigured() bool {
	return c.LINEGroupID != "" || len(c.LINEUserIDs) > 0
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// splitList parses a comma-separated env value, dropping empty entries.
func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry != "" {
			out = append(out, entry)
		}
	}
	return out
}
