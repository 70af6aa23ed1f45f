package app

import (
	"strings"
	"time"

	"github.com/kestrelpay/banking-backend/internal/outbox"
	"github.com/kestrelpay/banking-backend/internal/platform/envutil"
)

type Config struct {
	Env      string
	HTTPPort string

	CORSAllowedOrigins []string

	Dispatcher outbox.DispatcherConfig

	MetricsInterval time.Duration
}

func LoadConfig() Config {
	return Config{
		Env:      envutil.String("APP_ENV", "development"),
		HTTPPort: envutil.String("HTTP_PORT", "8080"),
		CORSAllowedOrigins: splitCSV(
			envutil.String("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
		),
		Dispatcher: outbox.DispatcherConfig{
			PollInterval:   envutil.Duration("OUTBOX_POLL_INTERVAL", outbox.DefaultPollInterval),
			BatchSize:      envutil.Int("OUTBOX_BATCH_SIZE", outbox.DefaultBatchSize),
			MaxRetries:     envutil.Int("OUTBOX_MAX_RETRIES", outbox.DefaultMaxRetries),
			PublishTimeout: envutil.Duration("OUTBOX_PUBLISH_TIMEOUT", outbox.DefaultPublishTimeout),
		},
		MetricsInterval: envutil.Duration("METRICS_EXPORT_INTERVAL", time.Minute),
	}
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
