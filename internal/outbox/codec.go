package outbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/kestrelpay/banking-backend/internal/domain/banking"
	"github.com/kestrelpay/banking-backend/internal/types"
)

var (
	ErrEventRequired       = errors.New("event is required")
	ErrEventTypeRequired   = errors.New("event type is required")
	ErrDecoderRequired     = errors.New("event decoder is required")
	ErrDecoderRegistered   = errors.New("event decoder already registered")
	ErrUnknownEventType    = errors.New("unknown event type")
	ErrEmptyOutboxPayload  = errors.New("outbox payload is empty")
	ErrEventIDMissing      = errors.New("event id is required")
	ErrOccurredAtMissing   = errors.New("event occurred-at is required")
	errPayloadNotMarshaled = errors.New("event payload could not be serialized")
)

// Encode turns a buffered domain event into its durable outbox row. The row
// id is fresh; occurred-at comes from the event itself so dispatch order
// follows the business timeline, not the insert time.
func Encode(event banking.Event) (*types.OutboxMessage, error) {
	if event == nil {
		return nil, ErrEventRequired
	}
	if event.EventID() == uuid.Nil {
		return nil, ErrEventIDMissing
	}
	if event.EventOccurredAt().IsZero() {
		return nil, ErrOccurredAtMissing
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errPayloadNotMarshaled, err)
	}
	return &types.OutboxMessage{
		ID:         uuid.New(),
		EventType:  event.EventType(),
		Payload:    datatypes.JSON(payload),
		OccurredAt: event.EventOccurredAt().UTC(),
		RetryCount: 0,
	}, nil
}

// DecodeFunc rebuilds a typed event from its serialized payload.
type DecodeFunc func(payload []byte) (banking.Event, error)

// Registry maps event type tags to decoders. An unregistered tag is a
// permanent dispatch failure, not a retryable one.
type Registry struct {
	mu       sync.RWMutex
	decoders map[string]DecodeFunc
}

// NewRegistry returns a registry preloaded with every banking event type.
func NewRegistry() *Registry {
	r := &Registry{decoders: map[string]DecodeFunc{}}
	_ = r.Register(banking.EventTypeAccountCreated, decodeJSON[banking.AccountCreatedEvent])
	_ = r.Register(banking.EventTypeMoneyTransferred, decodeJSON[banking.MoneyTransferredEvent])
	_ = r.Register(banking.EventTypeInsufficientFunds, decodeJSON[banking.InsufficientFundsEvent])
	return r
}

func (r *Registry) Register(eventType string, fn DecodeFunc) error {
	eventType = strings.TrimSpace(eventType)
	if eventType == "" {
		return ErrEventTypeRequired
	}
	if fn == nil {
		return ErrDecoderRequired
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.decoders[eventType]; exists {
		return fmt.Errorf("%w: %s", ErrDecoderRegistered, eventType)
	}
	r.decoders[eventType] = fn
	return nil
}

func (r *Registry) Decode(eventType string, payload []byte) (banking.Event, error) {
	eventType = strings.TrimSpace(eventType)
	if eventType == "" {
		return nil, ErrEventTypeRequired
	}
	if len(payload) == 0 {
		return nil, ErrEmptyOutboxPayload
	}
	r.mu.RLock()
	fn, ok := r.decoders[eventType]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEventType, eventType)
	}
	return fn(payload)
}

func decodeJSON[T banking.Event](payload []byte) (banking.Event, error) {
	var event T
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, err
	}
	return event, nil
}
