package outbox

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kestrelpay/banking-backend/internal/domain/banking"
)

func TestEncodeProducesDurableRow(t *testing.T) {
	occurred := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	event := banking.MoneyTransferredEvent{
		ID:                       uuid.New(),
		TransactionID:            uuid.New(),
		SourceAccountNumber:      "ACC1111111111",
		DestinationAccountNumber: "ACC2222222222",
		Amount:                   banking.NewMoney(2500, "USD"),
		Reference:                "ref-77",
		OccurredAt:               occurred,
	}

	row, err := Encode(event)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if row.ID == uuid.Nil {
		t.Fatal("row id not assigned")
	}
	if row.ID == event.ID {
		t.Fatal("row id must be fresh, not the event id")
	}
	if row.EventType != banking.EventTypeMoneyTransferred {
		t.Fatalf("event type: want=%s got=%s", banking.EventTypeMoneyTransferred, row.EventType)
	}
	if !row.OccurredAt.Equal(occurred) {
		t.Fatalf("occurred at: want=%v got=%v", occurred, row.OccurredAt)
	}
	if row.ProcessedAt != nil {
		t.Fatal("new row must be unprocessed")
	}
	if row.RetryCount != 0 {
		t.Fatalf("retry count: want=0 got=%d", row.RetryCount)
	}
}

func TestEncodeRejectsBadEvents(t *testing.T) {
	if _, err := Encode(nil); !errors.Is(err, ErrEventRequired) {
		t.Fatalf("nil event: want=%v got=%v", ErrEventRequired, err)
	}

	noID := banking.AccountCreatedEvent{OccurredAt: time.Now().UTC()}
	if _, err := Encode(noID); !errors.Is(err, ErrEventIDMissing) {
		t.Fatalf("missing id: want=%v got=%v", ErrEventIDMissing, err)
	}

	noTime := banking.AccountCreatedEvent{ID: uuid.New()}
	if _, err := Encode(noTime); !errors.Is(err, ErrOccurredAtMissing) {
		t.Fatalf("missing occurred-at: want=%v got=%v", ErrOccurredAtMissing, err)
	}
}

func TestRegistryRoundTrip(t *testing.T) {
	registry := NewRegistry()

	event := banking.InsufficientFundsEvent{
		ID:            uuid.New(),
		AccountNumber: "ACC1111111111",
		Required:      banking.NewMoney(5000, "EUR"),
		Available:     banking.NewMoney(1200, "EUR"),
		OccurredAt:    time.Now().UTC().Truncate(time.Second),
	}
	row, err := Encode(event)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	decoded, err := registry.Decode(row.EventType, row.Payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, ok := decoded.(banking.InsufficientFundsEvent)
	if !ok {
		t.Fatalf("decoded type: got=%T", decoded)
	}
	if got.ID != event.ID {
		t.Fatalf("event id: want=%s got=%s", event.ID, got.ID)
	}
	if !got.Required.Equal(event.Required) || !got.Available.Equal(event.Available) {
		t.Fatalf("amounts: want=%v/%v got=%v/%v",
			event.Required, event.Available, got.Required, got.Available)
	}
}

func TestRegistryUnknownType(t *testing.T) {
	registry := NewRegistry()
	if _, err := registry.Decode("account.renamed", []byte(`{}`)); !errors.Is(err, ErrUnknownEventType) {
		t.Fatalf("want=%v got=%v", ErrUnknownEventType, err)
	}
}

func TestRegistryRejectsDuplicateRegistration(t *testing.T) {
	registry := NewRegistry()
	err := registry.Register(banking.EventTypeAccountCreated, decodeJSON[banking.AccountCreatedEvent])
	if !errors.Is(err, ErrDecoderRegistered) {
		t.Fatalf("want=%v got=%v", ErrDecoderRegistered, err)
	}
}
