package outbox

import (
	"context"

	"github.com/kestrelpay/banking-backend/internal/domain/banking"
	"github.com/kestrelpay/banking-backend/internal/platform/logger"
)

// Publisher delivers one decoded event to whatever downstream consumers
// exist. The dispatcher treats it as a single synchronous call per message
// and never invokes it from the foreground request path.
type Publisher interface {
	Publish(ctx context.Context, event banking.Event) error
}

// LogPublisher is the fallback consumer when no real downstream is
// configured; useful for local development and tests.
type LogPublisher struct {
	log *logger.Logger
}

func NewLogPublisher(log *logger.Logger) *LogPublisher {
	return &LogPublisher{log: log.With("publisher", "LogPublisher")}
}

func (p *LogPublisher) Publish(_ context.Context, event banking.Event) error {
	p.log.Info("event published",
		"event_id", event.EventID().String(),
		"event_type", event.EventType(),
		"occurred_at", event.EventOccurredAt(),
	)
	return nil
}
