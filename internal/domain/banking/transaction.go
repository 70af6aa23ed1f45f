package banking

import (
	"time"

	"github.com/google/uuid"
)

type TransactionType string

const (
	TransactionDeposit        TransactionType = "deposit"
	TransactionWithdrawal     TransactionType = "withdrawal"
	TransactionTransferDebit  TransactionType = "transfer_debit"
	TransactionTransferCredit TransactionType = "transfer_credit"
)

// IsWithdrawal reports whether the type moves money out of the account.
// Both plain withdrawals and transfer debits count toward the savings limit.
func (t TransactionType) IsWithdrawal() bool {
	return t == TransactionWithdrawal || t == TransactionTransferDebit
}

// Transaction is an immutable ledger entry. Created only as a side effect of
// an Account operation, never mutated or deleted afterwards.
type Transaction struct {
	ID          uuid.UUID
	AccountID   uuid.UUID
	Type        TransactionType
	Amount      Money
	Description string
	Reference   string
	CreatedAt   time.Time
}
