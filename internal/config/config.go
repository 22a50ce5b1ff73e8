package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/wangwalon/myname-world/internal/validation"
)

// Config is the shared environment surface for the api, worker and sweeper binaries.
// Each binary only reads the fields it needs; OrdersTable is required everywhere.
type Config struct {
	OrdersTable string `validate:"required"`
	EventsTable string
	QueueURL    string

	StripeWebhookSecret string

	RendersBucket string
	PublicBaseURL string `validate:"omitempty,url"`

	EmailFrom string `validate:"omitempty,email"`

	RenderServiceURL   string `validate:"omitempty,url"`
	RenderServiceToken string

	CronSecret string

	FontPathPrimary   string
	FontPathSecondary string

	SweepBatchSize       int
	ProcessingStaleAfter time.Duration
}

// Load reads the process environment (plus a local .env when present) and
// validates field formats. Presence of role-specific secrets is checked by
// the binary that needs them.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		OrdersTable:          getenv("ORDERS_TABLE", ""),
		EventsTable:          getenv("EVENTS_TABLE", ""),
		QueueURL:             getenv("ORDERS_QUEUE_URL", ""),
		StripeWebhookSecret:  getenv("STRIPE_WEBHOOK_SECRET", ""),
		RendersBucket:        getenv("RENDERS_BUCKET", ""),
		PublicBaseURL:        getenv("PUBLIC_BASE_URL", ""),
		EmailFrom:            getenv("EMAIL_FROM", ""),
		RenderServiceURL:     getenv("RENDER_SERVICE_URL", ""),
		RenderServiceToken:   getenv("RENDER_SERVICE_TOKEN", ""),
		CronSecret:           getenv("CRON_SECRET", ""),
		FontPathPrimary:      getenv("FONT_PATH_PRIMARY", ""),
		FontPathSecondary:    getenv("FONT_PATH_SECONDARY", ""),
		SweepBatchSize:       getenvInt("SWEEP_BATCH_SIZE", 10),
		ProcessingStaleAfter: getenvDuration("PROCESSING_STALE_AFTER", 10*time.Minute),
	}

	if err := validation.New().Struct(cfg); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Require returns an error naming the first empty field among the given
// env keys. Used by each main to fail fast on its role-specific secrets.
func Require(pairs map[string]string) error {
	for key, val := range pairs {
		if strings.TrimSpace(val) == "" {
			return fmt.Errorf("missing required env: %s", key)
		}
	}
	return nil
}

func getenv(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func getenvDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
