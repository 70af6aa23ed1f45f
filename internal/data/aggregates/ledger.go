package aggregates

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kestrelpay/banking-backend/internal/data/repos"
	domainagg "github.com/kestrelpay/banking-backend/internal/domain/aggregates"
	"github.com/kestrelpay/banking-backend/internal/domain/banking"
	"github.com/kestrelpay/banking-backend/internal/outbox"
	"github.com/kestrelpay/banking-backend/internal/platform/dbctx"
	"github.com/kestrelpay/banking-backend/internal/types"
)

const accountTable = "account"

type LedgerAggregateDeps struct {
	Base BaseDeps

	Accounts     repos.AccountRepo
	Transactions repos.TransactionRepo
	Outbox       repos.OutboxRepo
}

type ledgerAggregate struct {
	deps LedgerAggregateDeps
}

func NewLedgerAggregate(deps LedgerAggregateDeps) domainagg.LedgerAggregate {
	deps.Base = deps.Base.withDefaults()
	return &ledgerAggregate{deps: deps}
}

func (a *ledgerAggregate) Contract() domainagg.Contract {
	return domainagg.LedgerAggregateContract
}

func (a *ledgerAggregate) OpenAccount(ctx context.Context, in domainagg.OpenAccountInput) (domainagg.OpenAccountResult, error) {
	const op = "Banking.Ledger.OpenAccount"
	var out domainagg.OpenAccountResult

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		acct, err := banking.OpenAccount(in.CustomerID, in.AccountNumber, in.AccountType, in.InitialDeposit)
		if err != nil {
			return err
		}
		row := &types.Account{
			ID:            acct.ID,
			CustomerID:    acct.CustomerID,
			AccountNumber: acct.Number,
			AccountType:   string(acct.Type),
			BalanceAmount: acct.Balance.Amount,
			Currency:      string(acct.Balance.Currency),
			Active:        acct.Active,
			Version:       0,
		}
		if err := a.deps.Accounts.Create(dbc, row); err != nil {
			return err
		}
		if err := a.persistTransactions(dbc, acct.TakeNewTransactions()); err != nil {
			return err
		}
		if err := a.persistOutbox(dbc, acct.TakeEvents()); err != nil {
			return err
		}
		out = domainagg.OpenAccountResult{
			AccountID:     acct.ID,
			AccountNumber: acct.Number,
			Balance:       acct.Balance,
		}
		return nil
	})
	return out, err
}

func (a *ledgerAggregate) Deposit(ctx context.Context, in domainagg.DepositInput) (domainagg.DepositResult, error) {
	const op = "Banking.Ledger.Deposit"
	var out domainagg.DepositResult

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		acct, err := a.loadAccount(dbc, op, in.AccountNumber)
		if err != nil {
			return err
		}
		tx, err := acct.Deposit(in.Amount, in.Description)
		if err != nil {
			return err
		}
		if err := a.saveExisting(dbc, acct); err != nil {
			return err
		}
		out = domainagg.DepositResult{TransactionID: tx.ID, Balance: acct.Balance}
		return nil
	})
	return out, err
}

func (a *ledgerAggregate) Withdraw(ctx context.Context, in domainagg.WithdrawInput) (domainagg.WithdrawResult, error) {
	const op = "Banking.Ledger.Withdraw"
	var out domainagg.WithdrawResult

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		acct, err := a.loadAccount(dbc, op, in.AccountNumber)
		if err != nil {
			return err
		}
		tx, err := acct.Withdraw(in.Amount, in.Description)
		if err != nil {
			return err
		}
		if err := a.saveExisting(dbc, acct); err != nil {
			return err
		}
		out = domainagg.WithdrawResult{TransactionID: tx.ID, Balance: acct.Balance}
		return nil
	})
	return out, err
}

// Transfer moves money across two accounts inside one transaction. No
// cross-aggregate locking happens here; both CAS checks run in the same
// commit, so either both accounts and the transfer event persist or none do.
func (a *ledgerAggregate) Transfer(ctx context.Context, in domainagg.TransferInput) (domainagg.TransferResult, error) {
	const op = "Banking.Ledger.Transfer"
	var out domainagg.TransferResult

	// An insufficiency failure commits its audit event even though the
	// operation fails, so it cannot roll back with the transaction.
	var opErr error

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		src, err := a.loadAccount(dbc, op, in.SourceNumber)
		if err != nil {
			return err
		}
		dst, err := a.loadAccount(dbc, op, in.DestinationNumber)
		if err != nil {
			return err
		}
		if terr := src.Transfer(in.Amount, dst, in.Reference, in.Description); terr != nil {
			if banking.IsInsufficientFunds(terr) {
				if err := a.persistOutbox(dbc, src.TakeEvents()); err != nil {
					return err
				}
				opErr = terr
				return nil
			}
			return terr
		}
		if err := a.saveExisting(dbc, src, dst); err != nil {
			return err
		}
		out = domainagg.TransferResult{
			SourceBalance:      src.Balance,
			DestinationBalance: dst.Balance,
		}
		return nil
	})
	if err != nil {
		return out, err
	}
	if opErr != nil {
		return out, MapError(op, opErr)
	}
	return out, nil
}

func (a *ledgerAggregate) CloseAccount(ctx context.Context, in domainagg.CloseAccountInput) (domainagg.CloseAccountResult, error) {
	const op = "Banking.Ledger.CloseAccount"
	var out domainagg.CloseAccountResult

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		acct, err := a.loadAccount(dbc, op, in.AccountNumber)
		if err != nil {
			return err
		}
		if err := acct.Close(); err != nil {
			return err
		}
		if err := a.saveExisting(dbc, acct); err != nil {
			return err
		}
		out = domainagg.CloseAccountResult{AccountID: acct.ID, Closed: true}
		return nil
	})
	return out, err
}

// SoftDeleteAccount hides an account for compliance. The CAS bump keeps the
// deletion serialized with concurrent money movement on the same account.
func (a *ledgerAggregate) SoftDeleteAccount(ctx context.Context, in domainagg.SoftDeleteAccountInput) (domainagg.SoftDeleteAccountResult, error) {
	const op = "Banking.Ledger.SoftDeleteAccount"
	var out domainagg.SoftDeleteAccountResult

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		acct, err := a.loadAccount(dbc, op, in.AccountNumber)
		if err != nil {
			return err
		}
		if acct.Deleted {
			return fmt.Errorf("%w: %s", banking.ErrAccountInactive, acct.Number)
		}
		actor := strings.TrimSpace(in.Actor)
		if actor == "" {
			return domainagg.NewError(domainagg.CodeValidation, op, "missing actor", nil)
		}
		acct.MarkDeleted(actor)

		ok, err := a.deps.Base.CASGuard.UpdateByVersion(dbc, accountTable, acct.ID, acct.Version, map[string]any{
			"version":    acct.Version + 1,
			"updated_at": time.Now().UTC(),
		})
		if err != nil {
			return err
		}
		if err := RequireCASSuccess(ok, "account modified concurrently"); err != nil {
			return err
		}
		if err := a.deps.Accounts.SoftDelete(dbc, acct.ID, actor); err != nil {
			return err
		}
		out = domainagg.SoftDeleteAccountResult{AccountID: acct.ID, Deleted: true}
		return nil
	})
	return out, err
}

// loadAccount maps the stored row into the domain aggregate. The load is
// unscoped so a soft-deleted account surfaces as inactive to the domain
// rather than as not-found. Savings accounts also load the current month's
// history, the only read the withdrawal-limit invariant needs.
func (a *ledgerAggregate) loadAccount(dbc dbctx.Context, op, number string) (*banking.Account, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "missing account number", nil)
	}
	row, err := a.deps.Accounts.GetByNumberUnscoped(dbc, number)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("account not found: %s", number), nil)
	}

	acct := &banking.Account{
		ID:         row.ID,
		CustomerID: row.CustomerID,
		Number:     row.AccountNumber,
		Type:       banking.AccountType(row.AccountType),
		Balance:    banking.NewMoney(row.BalanceAmount, banking.Currency(row.Currency)),
		Active:     row.Active,
		Version:    row.Version,
	}
	if row.DeletedAt.Valid {
		deletedAt := row.DeletedAt.Time
		acct.Deleted = true
		acct.DeletedAt = &deletedAt
		if row.DeletedBy != nil {
			acct.DeletedBy = *row.DeletedBy
		}
	}

	if acct.Type == banking.AccountSavings {
		now := time.Now().UTC()
		monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		history, err := a.deps.Transactions.ListByAccountSince(dbc, acct.ID, monthStart)
		if err != nil {
			return nil, err
		}
		for _, tx := range history {
			acct.Transactions = append(acct.Transactions, banking.Transaction{
				ID:          tx.ID,
				AccountID:   tx.AccountID,
				Type:        banking.TransactionType(tx.Type),
				Amount:      banking.NewMoney(tx.Amount, banking.Currency(tx.Currency)),
				Description: tx.Description,
				Reference:   tx.Reference,
				CreatedAt:   tx.CreatedAt,
			})
		}
	}
	return acct, nil
}

// saveExisting is the unit-of-work tail: CAS-guarded account updates, new
// transaction rows, and one outbox row per drained event, all on the same
// transaction handle.
func (a *ledgerAggregate) saveExisting(dbc dbctx.Context, accounts ...*banking.Account) error {
	now := time.Now().UTC()
	for _, acct := range accounts {
		if acct == nil {
			continue
		}
		updates := map[string]any{
			"balance_amount": acct.Balance.Amount,
			"currency":       string(acct.Balance.Currency),
			"active":         acct.Active,
			"version":        acct.Version + 1,
			"updated_at":     now,
		}
		ok, err := a.deps.Base.CASGuard.UpdateByVersion(dbc, accountTable, acct.ID, acct.Version, updates)
		if err != nil {
			return err
		}
		if err := RequireCASSuccess(ok, "account modified concurrently"); err != nil {
			return err
		}
		if err := a.persistTransactions(dbc, acct.TakeNewTransactions()); err != nil {
			return err
		}
		if err := a.persistOutbox(dbc, acct.TakeEvents()); err != nil {
			return err
		}
	}
	return nil
}

func (a *ledgerAggregate) persistTransactions(dbc dbctx.Context, txs []banking.Transaction) error {
	if len(txs) == 0 {
		return nil
	}
	rows := make([]*types.Transaction, 0, len(txs))
	for _, tx := range txs {
		rows = append(rows, &types.Transaction{
			ID:          tx.ID,
			AccountID:   tx.AccountID,
			Type:        string(tx.Type),
			Amount:      tx.Amount.Amount,
			Currency:    string(tx.Amount.Currency),
			Description: tx.Description,
			Reference:   tx.Reference,
			CreatedAt:   tx.CreatedAt,
		})
	}
	return a.deps.Transactions.CreateBatch(dbc, rows)
}

func (a *ledgerAggregate) persistOutbox(dbc dbctx.Context, events []banking.Event) error {
	if len(events) == 0 {
		return nil
	}
	rows := make([]*types.OutboxMessage, 0, len(events))
	for _, event := range events {
		row, err := outbox.Encode(event)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}
	return a.deps.Outbox.CreateBatch(dbc, rows)
}
