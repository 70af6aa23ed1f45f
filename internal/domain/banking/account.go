package banking

import (
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
)

type AccountType string

const (
	AccountChecking     AccountType = "checking"
	AccountSavings      AccountType = "savings"
	AccountBusiness     AccountType = "business"
	AccountFixedDeposit AccountType = "fixed_deposit"
)

func (t AccountType) IsValid() bool {
	switch t {
	case AccountChecking, AccountSavings, AccountBusiness, AccountFixedDeposit:
		return true
	default:
		return false
	}
}

const (
	// SavingsMonthlyWithdrawalLimit caps withdrawal-type transactions on a
	// savings account within one calendar month.
	SavingsMonthlyWithdrawalLimit = 6

	// MaxInitialDeposit is the opening deposit ceiling in minor units.
	MaxInitialDeposit int64 = 10_000_000
)

var accountNumberPattern = regexp.MustCompile(`^ACC\d{10}$`)

// Account is the consistency boundary for one ledger account. It owns its
// transaction history and buffers domain events until the unit-of-work
// drains them at save time; nothing outside the aggregate can reach the
// buffer directly.
type Account struct {
	ID         uuid.UUID
	CustomerID uuid.UUID
	Number     string
	Type       AccountType
	Balance    Money
	Active     bool
	Deleted    bool
	DeletedAt  *time.Time
	DeletedBy  string

	// Version is the optimistic concurrency token, owned by storage.
	Version int

	// Transactions is the persisted history loaded with the aggregate.
	Transactions []Transaction

	pending []Transaction
	events  []Event
}

// OpenAccount creates a new active account. A positive initial deposit is
// recorded as the opening deposit transaction.
func OpenAccount(customerID uuid.UUID, number string, accountType AccountType, initialDeposit Money) (*Account, error) {
	if customerID == uuid.Nil {
		return nil, fmt.Errorf("open account: customer id is required")
	}
	if !accountNumberPattern.MatchString(number) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAccountNumber, number)
	}
	if !accountType.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAccountType, accountType)
	}
	if initialDeposit.IsNegative() {
		return nil, ErrNegativeInitialDeposit
	}
	if initialDeposit.Amount > MaxInitialDeposit {
		return nil, fmt.Errorf("%w: %s", ErrInitialDepositTooLarge, initialDeposit)
	}

	now := time.Now().UTC()
	a := &Account{
		ID:         uuid.New(),
		CustomerID: customerID,
		Number:     number,
		Type:       accountType,
		Balance:    initialDeposit,
		Active:     true,
	}
	if initialDeposit.IsPositive() {
		a.appendTransaction(Transaction{
			ID:          uuid.New(),
			AccountID:   a.ID,
			Type:        TransactionDeposit,
			Amount:      initialDeposit,
			Description: "initial deposit",
			CreatedAt:   now,
		})
	}
	a.recordEvent(AccountCreatedEvent{
		ID:             uuid.New(),
		OccurredAt:     now,
		AccountID:      a.ID,
		AccountNumber:  a.Number,
		CustomerID:     a.CustomerID,
		AccountType:    string(a.Type),
		InitialDeposit: initialDeposit,
	})
	return a, nil
}

// Deposit increases the balance and appends a deposit transaction.
func (a *Account) Deposit(amount Money, description string) (Transaction, error) {
	if err := a.requireActive(); err != nil {
		return Transaction{}, err
	}
	if !amount.IsPositive() {
		return Transaction{}, ErrInvalidAmount
	}
	balance, err := a.Balance.Add(amount)
	if err != nil {
		return Transaction{}, err
	}
	a.Balance = balance
	tx := Transaction{
		ID:          uuid.New(),
		AccountID:   a.ID,
		Type:        TransactionDeposit,
		Amount:      amount,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}
	a.appendTransaction(tx)
	return tx, nil
}

// Withdraw decreases the balance and appends a withdrawal transaction.
func (a *Account) Withdraw(amount Money, description string) (Transaction, error) {
	if err := a.requireActive(); err != nil {
		return Transaction{}, err
	}
	if !amount.IsPositive() {
		return Transaction{}, ErrInvalidAmount
	}
	if err := a.requireSufficient(amount); err != nil {
		return Transaction{}, err
	}
	if err := a.requireWithinWithdrawalLimit(time.Now().UTC()); err != nil {
		return Transaction{}, err
	}
	balance, err := a.Balance.Sub(amount)
	if err != nil {
		return Transaction{}, err
	}
	a.Balance = balance
	tx := Transaction{
		ID:          uuid.New(),
		AccountID:   a.ID,
		Type:        TransactionWithdrawal,
		Amount:      amount,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}
	a.appendTransaction(tx)
	return tx, nil
}

// Debit is the internal source leg of a transfer. Same checks as Withdraw.
func (a *Account) Debit(amount Money, description, reference string) error {
	if err := a.requireActive(); err != nil {
		return err
	}
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if err := a.requireSufficient(amount); err != nil {
		return err
	}
	balance, err := a.Balance.Sub(amount)
	if err != nil {
		return err
	}
	a.Balance = balance
	a.appendTransaction(Transaction{
		ID:          uuid.New(),
		AccountID:   a.ID,
		Type:        TransactionTransferDebit,
		Amount:      amount,
		Description: description,
		Reference:   reference,
		CreatedAt:   time.Now().UTC(),
	})
	return nil
}

// Credit is the destination leg of a transfer. No upper bound is enforced.
func (a *Account) Credit(amount Money, description, reference string) error {
	if err := a.requireActive(); err != nil {
		return err
	}
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	balance, err := a.Balance.Add(amount)
	if err != nil {
		return err
	}
	a.Balance = balance
	a.appendTransaction(Transaction{
		ID:          uuid.New(),
		AccountID:   a.ID,
		Type:        TransactionTransferCredit,
		Amount:      amount,
		Description: description,
		Reference:   reference,
		CreatedAt:   time.Now().UTC(),
	})
	return nil
}

// Transfer moves amount from a to dest. All checks run before any mutation.
// An insufficiency failure still records an InsufficientFundsEvent so the
// attempted transfer is visible downstream.
func (a *Account) Transfer(amount Money, dest *Account, reference, description string) error {
	if dest == nil {
		return ErrDestinationRequired
	}
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if a.ID == dest.ID {
		return ErrSameAccountTransfer
	}
	if err := a.requireActive(); err != nil {
		return err
	}
	if err := dest.requireActive(); err != nil {
		return err
	}

	now := time.Now().UTC()
	short, err := a.Balance.LessThan(amount)
	if err != nil {
		return err
	}
	if short {
		a.recordEvent(InsufficientFundsEvent{
			ID:            uuid.New(),
			OccurredAt:    now,
			AccountNumber: a.Number,
			Required:      amount,
			Available:     a.Balance,
			Reference:     reference,
		})
		return &InsufficientFundsError{Required: amount, Available: a.Balance}
	}
	if err := a.requireWithinWithdrawalLimit(now); err != nil {
		return err
	}

	if err := a.Debit(amount, description, reference); err != nil {
		return err
	}
	if err := dest.Credit(amount, description, reference); err != nil {
		return err
	}

	a.recordEvent(MoneyTransferredEvent{
		ID:                       uuid.New(),
		OccurredAt:               time.Now().UTC(),
		TransactionID:            uuid.New(),
		SourceAccountNumber:      a.Number,
		DestinationAccountNumber: dest.Number,
		Amount:                   amount,
		Reference:                reference,
	})
	return nil
}

// Close deactivates the account. Only a zero balance can close; the
// transition is irreversible.
func (a *Account) Close() error {
	if err := a.requireActive(); err != nil {
		return err
	}
	if !a.Balance.IsZero() {
		return fmt.Errorf("%w: balance is %s", ErrNonZeroBalance, a.Balance)
	}
	a.Active = false
	return nil
}

// MarkDeleted soft-deletes the account for compliance hiding. The row is
// never removed; mutating operations reject the account afterwards.
func (a *Account) MarkDeleted(actor string) {
	if a.Deleted {
		return
	}
	now := time.Now().UTC()
	a.Deleted = true
	a.DeletedAt = &now
	a.DeletedBy = actor
}

// TakeEvents returns the buffered events and clears the buffer. The
// unit-of-work is the only caller; draining here is what prevents the same
// event from being persisted twice from one in-memory instance.
func (a *Account) TakeEvents() []Event {
	events := a.events
	a.events = nil
	return events
}

// TakeNewTransactions returns transactions created since load and clears
// the pending list.
func (a *Account) TakeNewTransactions() []Transaction {
	pending := a.pending
	a.pending = nil
	return pending
}

// PendingEvents reports how many events are currently buffered.
func (a *Account) PendingEvents() int { return len(a.events) }

func (a *Account) requireActive() error {
	if !a.Active || a.Deleted {
		return fmt.Errorf("%w: %s", ErrAccountInactive, a.Number)
	}
	return nil
}

func (a *Account) requireSufficient(amount Money) error {
	short, err := a.Balance.LessThan(amount)
	if err != nil {
		return err
	}
	if short {
		return &InsufficientFundsError{Required: amount, Available: a.Balance}
	}
	return nil
}

// requireWithinWithdrawalLimit enforces the savings cap per calendar month.
// Both persisted history and transactions pending in this operation count.
func (a *Account) requireWithinWithdrawalLimit(now time.Time) error {
	if a.Type != AccountSavings {
		return nil
	}
	count := 0
	for _, tx := range a.Transactions {
		if tx.Type.IsWithdrawal() && sameMonth(tx.CreatedAt, now) {
			count++
		}
	}
	for _, tx := range a.pending {
		if tx.Type.IsWithdrawal() && sameMonth(tx.CreatedAt, now) {
			count++
		}
	}
	if count >= SavingsMonthlyWithdrawalLimit {
		return fmt.Errorf("%w: %d this month", ErrWithdrawalLimitExceeded, count)
	}
	return nil
}

func sameMonth(a, b time.Time) bool {
	au, bu := a.UTC(), b.UTC()
	return au.Year() == bu.Year() && au.Month() == bu.Month()
}

func (a *Account) appendTransaction(tx Transaction) {
	a.pending = append(a.pending, tx)
}

func (a *Account) recordEvent(e Event) {
	a.events = append(a.events, e)
}
