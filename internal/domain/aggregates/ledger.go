package aggregates

import (
	"context"

	"github.com/google/uuid"
	"github.com/kestrelpay/banking-backend/internal/domain/banking"
)

var LedgerAggregateContract = Contract{
	Name:             "Banking.LedgerAggregate",
	WriteTxOwnership: WriteTxOwnedByAggregate,
	ReadPolicy:       ReadPolicyInvariantScoped,
	Notes:            "Owns atomic account mutation + outbox event persistence; optimistic version check on every write.",
}

// LedgerAggregate owns account lifecycle and money movement invariants.
//
// Every write runs the business operation against freshly loaded aggregate
// state and commits the account mutation, its new transactions, and one
// outbox row per buffered domain event in a single storage transaction.
// Write method failures return *aggregates.Error with codes:
// CodeValidation, CodeNotFound, CodeConflict, CodeInvariantViolation,
// CodeRetryable, CodeInternal.
type LedgerAggregate interface {
	Aggregate

	OpenAccount(ctx context.Context, in OpenAccountInput) (OpenAccountResult, error)
	Deposit(ctx context.Context, in DepositInput) (DepositResult, error)
	Withdraw(ctx context.Context, in WithdrawInput) (WithdrawResult, error)
	Transfer(ctx context.Context, in TransferInput) (TransferResult, error)
	CloseAccount(ctx context.Context, in CloseAccountInput) (CloseAccountResult, error)
	SoftDeleteAccount(ctx context.Context, in SoftDeleteAccountInput) (SoftDeleteAccountResult, error)
}

type OpenAccountInput struct {
	CustomerID     uuid.UUID
	AccountNumber  string
	AccountType    banking.AccountType
	InitialDeposit banking.Money
}

type OpenAccountResult struct {
	AccountID     uuid.UUID
	AccountNumber string
	Balance       banking.Money
}

type DepositInput struct {
	AccountNumber string
	Amount        banking.Money
	Description   string
}

type DepositResult struct {
	TransactionID uuid.UUID
	Balance       banking.Money
}

type WithdrawInput struct {
	AccountNumber string
	Amount        banking.Money
	Description   string
}

type WithdrawResult struct {
	TransactionID uuid.UUID
	Balance       banking.Money
}

type TransferInput struct {
	SourceNumber      string
	DestinationNumber string
	Amount            banking.Money
	Reference         string
	Description       string
}

type TransferResult struct {
	SourceBalance      banking.Money
	DestinationBalance banking.Money
}

type CloseAccountInput struct {
	AccountNumber string
}

type CloseAccountResult struct {
	AccountID uuid.UUID
	Closed    bool
}

// SoftDeleteAccountInput hides an account for compliance. The row survives
// with the acting operator recorded; it only disappears from scoped reads.
type SoftDeleteAccountInput struct {
	AccountNumber string
	Actor         string
}

type SoftDeleteAccountResult struct {
	AccountID uuid.UUID
	Deleted   bool
}
