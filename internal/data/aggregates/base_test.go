package aggregates

import (
	"context"
	"errors"
	"testing"
	"time"

	domainagg "github.com/kestrelpay/banking-backend/internal/domain/aggregates"
	"github.com/kestrelpay/banking-backend/internal/domain/banking"
	"github.com/kestrelpay/banking-backend/internal/platform/dbctx"
	"gorm.io/gorm"
)

type spyRunner struct {
	calls int
	err   error
}

func (r *spyRunner) InTx(_ context.Context, fn func(dbc dbctx.Context) error) error {
	r.calls++
	if r.err != nil {
		return r.err
	}
	return fn(dbctx.Context{Ctx: context.Background()})
}

type spyHooks struct {
	ops       []string
	statuses  []string
	conflicts []string
	retries   []string
}

func (h *spyHooks) ObserveOperation(name, status string, _ time.Duration) {
	h.ops = append(h.ops, name)
	h.statuses = append(h.statuses, status)
}
func (h *spyHooks) IncConflict(name string) { h.conflicts = append(h.conflicts, name) }
func (h *spyHooks) IncRetry(name string)    { h.retries = append(h.retries, name) }

func TestExecuteWriteSuccessPath(t *testing.T) {
	runner := &spyRunner{}
	hooks := &spyHooks{}
	deps := BaseDeps{Runner: runner, Hooks: hooks}

	ran := false
	err := executeWrite(context.Background(), deps, "Banking.Ledger.Test", func(dbc dbctx.Context) error {
		ran = true
		return nil
	})
	if err != nil {
		t.Fatalf("execute write: %v", err)
	}
	if !ran {
		t.Fatal("fn did not run")
	}
	if runner.calls != 1 {
		t.Fatalf("runner calls: want=1 got=%d", runner.calls)
	}
	if len(hooks.ops) != 1 || hooks.ops[0] != "Banking.Ledger.Test" {
		t.Fatalf("observed ops: got=%v", hooks.ops)
	}
	if hooks.statuses[0] != "success" {
		t.Fatalf("status: want=success got=%s", hooks.statuses[0])
	}
}

func TestExecuteWriteMapsAndCountsConflicts(t *testing.T) {
	runner := &spyRunner{err: ConflictError("account modified concurrently")}
	hooks := &spyHooks{}
	deps := BaseDeps{Runner: runner, Hooks: hooks}

	err := executeWrite(context.Background(), deps, "Banking.Ledger.Test", func(dbc dbctx.Context) error {
		return nil
	})
	if !domainagg.IsCode(err, domainagg.CodeConflict) {
		t.Fatalf("want conflict code, got=%v", err)
	}
	if len(hooks.conflicts) != 1 {
		t.Fatalf("conflict hook calls: want=1 got=%d", len(hooks.conflicts))
	}
	if hooks.statuses[0] != string(domainagg.CodeConflict) {
		t.Fatalf("status: want=%s got=%s", domainagg.CodeConflict, hooks.statuses[0])
	}
}

func TestExecuteWriteCountsRetryables(t *testing.T) {
	runner := &spyRunner{err: context.DeadlineExceeded}
	hooks := &spyHooks{}
	deps := BaseDeps{Runner: runner, Hooks: hooks}

	err := executeWrite(context.Background(), deps, "Banking.Ledger.Test", func(dbc dbctx.Context) error {
		return nil
	})
	if !domainagg.IsCode(err, domainagg.CodeRetryable) {
		t.Fatalf("want retryable code, got=%v", err)
	}
	if len(hooks.retries) != 1 {
		t.Fatalf("retry hook calls: want=1 got=%d", len(hooks.retries))
	}
}

func TestMapErrorClassification(t *testing.T) {
	const op = "Banking.Ledger.Test"
	cases := []struct {
		name string
		err  error
		want domainagg.ErrorCode
	}{
		{"nil passes through", nil, ""},
		{"invalid amount", banking.ErrInvalidAmount, domainagg.CodeValidation},
		{"currency mismatch", banking.ErrCurrencyMismatch, domainagg.CodeValidation},
		{"bad account number", banking.ErrInvalidAccountNumber, domainagg.CodeValidation},
		{"same account transfer", banking.ErrSameAccountTransfer, domainagg.CodeValidation},
		{
			"insufficient funds",
			&banking.InsufficientFundsError{
				Required:  banking.NewMoney(500, "USD"),
				Available: banking.NewMoney(100, "USD"),
			},
			domainagg.CodeInvariantViolation,
		},
		{"inactive account", banking.ErrAccountInactive, domainagg.CodeInvariantViolation},
		{"withdrawal limit", banking.ErrWithdrawalLimitExceeded, domainagg.CodeInvariantViolation},
		{"non-zero balance close", banking.ErrNonZeroBalance, domainagg.CodeInvariantViolation},
		{"cas conflict", ConflictError("stale version"), domainagg.CodeConflict},
		{"record not found", gorm.ErrRecordNotFound, domainagg.CodeNotFound},
		{"context canceled", context.Canceled, domainagg.CodeRetryable},
		{"duplicate key text", errors.New("UNIQUE constraint failed: account.account_number"), domainagg.CodeConflict},
		{"deadlock text", errors.New("deadlock detected"), domainagg.CodeRetryable},
		{"unknown", errors.New("disk exploded"), domainagg.CodeInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mapped := MapError(op, tc.err)
			if tc.err == nil {
				if mapped != nil {
					t.Fatalf("nil input: got=%v", mapped)
				}
				return
			}
			if got := domainagg.CodeOf(mapped); got != tc.want {
				t.Fatalf("code: want=%s got=%s (%v)", tc.want, got, mapped)
			}
			if !errors.Is(mapped, tc.err) && !isInsufficientCase(tc.err, mapped) {
				t.Fatalf("cause not reachable: %v", mapped)
			}
		})
	}
}

func isInsufficientCase(orig, mapped error) bool {
	return banking.IsInsufficientFunds(orig) && banking.IsInsufficientFunds(mapped)
}

func TestMapErrorKeepsAggregateErrors(t *testing.T) {
	orig := domainagg.NewError(domainagg.CodeNotFound, "Banking.Ledger.Test", "account not found", nil)
	mapped := MapError("Banking.Ledger.Other", orig)
	if mapped != orig {
		t.Fatalf("already-typed error must pass through, got=%v", mapped)
	}
}
