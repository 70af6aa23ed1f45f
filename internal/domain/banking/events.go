package banking

import (
	"time"

	"github.com/google/uuid"
)

// Event type tags double as outbox serialization keys; renaming one is a
// wire-format change for any rows still pending dispatch.
const (
	EventTypeAccountCreated    = "account.created"
	EventTypeMoneyTransferred  = "account.money_transferred"
	EventTypeInsufficientFunds = "account.insufficient_funds"
)

// Event is a fact produced inside an aggregate operation, buffered on the
// aggregate until the unit-of-work drains it into the outbox.
type Event interface {
	EventID() uuid.UUID
	EventType() string
	EventOccurredAt() time.Time
}

type AccountCreatedEvent struct {
	ID             uuid.UUID `json:"id"`
	OccurredAt     time.Time `json:"occurred_at"`
	AccountID      uuid.UUID `json:"account_id"`
	AccountNumber  string    `json:"account_number"`
	CustomerID     uuid.UUID `json:"customer_id"`
	AccountType    string    `json:"account_type"`
	InitialDeposit Money     `json:"initial_deposit"`
}

func (e AccountCreatedEvent) EventID() uuid.UUID         { return e.ID }
func (e AccountCreatedEvent) EventType() string          { return EventTypeAccountCreated }
func (e AccountCreatedEvent) EventOccurredAt() time.Time { return e.OccurredAt }

type MoneyTransferredEvent struct {
	ID                       uuid.UUID `json:"id"`
	OccurredAt               time.Time `json:"occurred_at"`
	TransactionID            uuid.UUID `json:"transaction_id"`
	SourceAccountNumber      string    `json:"source_account_number"`
	DestinationAccountNumber string    `json:"destination_account_number"`
	Amount                   Money     `json:"amount"`
	Reference                string    `json:"reference"`
}

func (e MoneyTransferredEvent) EventID() uuid.UUID         { return e.ID }
func (e MoneyTransferredEvent) EventType() string          { return EventTypeMoneyTransferred }
func (e MoneyTransferredEvent) EventOccurredAt() time.Time { return e.OccurredAt }

// InsufficientFundsEvent records a transfer attempt that failed on
// sufficiency. The operation fails but the fact is still kept for audit.
type InsufficientFundsEvent struct {
	ID            uuid.UUID `json:"id"`
	OccurredAt    time.Time `json:"occurred_at"`
	AccountNumber string    `json:"account_number"`
	Required      Money     `json:"required"`
	Available     Money     `json:"available"`
	Reference     string    `json:"reference"`
}

func (e InsufficientFundsEvent) EventID() uuid.UUID         { return e.ID }
func (e InsufficientFundsEvent) EventType() string          { return EventTypeInsufficientFunds }
func (e InsufficientFundsEvent) EventOccurredAt() time.Time { return e.OccurredAt }
