package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kestrelpay/banking-backend/internal/domain/banking"
	"github.com/kestrelpay/banking-backend/internal/platform/envutil"
	"github.com/kestrelpay/banking-backend/internal/platform/logger"
)

// EventPublisher fans ledger events out to downstream consumers over a
// redis pub/sub channel. Consumers are assumed idempotent; delivery is
// at-least-once by way of the outbox dispatcher's retry loop.
type EventPublisher struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
}

type envelope struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

func NewEventPublisher(log *logger.Logger) (*EventPublisher, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr := envutil.String("REDIS_ADDR", "")
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	channel := envutil.String("REDIS_EVENT_CHANNEL", "ledger.events")

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        strings.TrimSpace(addr),
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &EventPublisher{
		log:     log.With("publisher", "RedisEventPublisher"),
		rdb:     rdb,
		channel: channel,
	}, nil
}

func (p *EventPublisher) Publish(ctx context.Context, event banking.Event) error {
	if p == nil || p.rdb == nil {
		return fmt.Errorf("redis event publisher not initialized")
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(envelope{
		EventID:    event.EventID().String(),
		EventType:  event.EventType(),
		OccurredAt: event.EventOccurredAt().UTC(),
		Payload:    payload,
	})
	if err != nil {
		return err
	}
	return p.rdb.Publish(ctx, p.channel, raw).Err()
}

func (p *EventPublisher) Close() error {
	if p == nil || p.rdb == nil {
		return nil
	}
	return p.rdb.Close()
}
