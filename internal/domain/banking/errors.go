package banking

import (
	"errors"
	"fmt"
)

var (
	// ErrCurrencyMismatch indicates arithmetic across two different currencies.
	ErrCurrencyMismatch = errors.New("currency mismatch")
	// ErrInvalidAmount indicates a zero or negative operation amount.
	ErrInvalidAmount = errors.New("amount must be positive")
	// ErrAccountInactive indicates a mutating operation against a closed or soft-deleted account.
	ErrAccountInactive = errors.New("account is not active")
	// ErrWithdrawalLimitExceeded indicates the savings monthly withdrawal cap was hit.
	ErrWithdrawalLimitExceeded = errors.New("savings withdrawal limit exceeded")
	// ErrNonZeroBalance indicates a close attempt while funds remain.
	ErrNonZeroBalance = errors.New("account balance must be zero to close")
	// ErrNegativeInitialDeposit indicates an account opening with a negative deposit.
	ErrNegativeInitialDeposit = errors.New("initial deposit cannot be negative")
	// ErrInitialDepositTooLarge indicates an opening deposit above the fixed ceiling.
	ErrInitialDepositTooLarge = errors.New("initial deposit exceeds maximum")
	// ErrSameAccountTransfer indicates source and destination are the same account.
	ErrSameAccountTransfer = errors.New("cannot transfer to the same account")
	// ErrDestinationRequired indicates a transfer without a destination account.
	ErrDestinationRequired = errors.New("destination account is required")
	// ErrInvalidAccountNumber indicates a malformed account number.
	ErrInvalidAccountNumber = errors.New("invalid account number format")
	// ErrInvalidAccountType indicates an unknown account type.
	ErrInvalidAccountType = errors.New("invalid account type")
)

// InsufficientFundsError carries the shortfall detail for callers and audit events.
type InsufficientFundsError struct {
	Required  Money
	Available Money
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: required %s, available %s", e.Required, e.Available)
}

// IsInsufficientFunds reports whether err is an insufficient funds failure.
func IsInsufficientFunds(err error) bool {
	var target *InsufficientFundsError
	return errors.As(err, &target)
}
