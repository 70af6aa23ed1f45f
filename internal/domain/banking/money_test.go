package banking

import (
	"errors"
	"testing"
)

func TestMoneyAddSubSameCurrency(t *testing.T) {
	a := NewMoney(1050, USD)
	b := NewMoney(450, USD)

	sum, err := a.Add(b)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if sum.Amount != 1500 || sum.Currency != USD {
		t.Fatalf("sum: want=1500 USD got=%s", sum)
	}

	diff, err := a.Sub(b)
	if err != nil {
		t.Fatalf("Sub: %v", err)
	}
	if diff.Amount != 600 {
		t.Fatalf("diff: want=600 got=%d", diff.Amount)
	}
}

func TestMoneyCurrencyMismatch(t *testing.T) {
	a := NewMoney(100, USD)
	b := NewMoney(100, EUR)

	if _, err := a.Add(b); !errors.Is(err, ErrCurrencyMismatch) {
		t.Fatalf("Add mismatch: want ErrCurrencyMismatch got=%v", err)
	}
	if _, err := a.Sub(b); !errors.Is(err, ErrCurrencyMismatch) {
		t.Fatalf("Sub mismatch: want ErrCurrencyMismatch got=%v", err)
	}
	if _, err := a.LessThan(b); !errors.Is(err, ErrCurrencyMismatch) {
		t.Fatalf("LessThan mismatch: want ErrCurrencyMismatch got=%v", err)
	}
}

func TestMoneyPredicates(t *testing.T) {
	if !NewMoney(1, USD).IsPositive() {
		t.Fatalf("1 should be positive")
	}
	if !NewMoney(0, USD).IsZero() {
		t.Fatalf("0 should be zero")
	}
	if !NewMoney(-5, USD).IsNegative() {
		t.Fatalf("-5 should be negative")
	}
	if !NewMoney(500, USD).Equal(NewMoney(500, USD)) {
		t.Fatalf("equal values should be Equal")
	}
	if NewMoney(500, USD).Equal(NewMoney(500, EUR)) {
		t.Fatalf("different currencies should not be Equal")
	}
}

func TestMoneyString(t *testing.T) {
	if got := NewMoney(1050, USD).String(); got != "10.50 USD" {
		t.Fatalf("String: want=%q got=%q", "10.50 USD", got)
	}
	if got := NewMoney(-7, EUR).String(); got != "-0.07 EUR" {
		t.Fatalf("String negative: want=%q got=%q", "-0.07 EUR", got)
	}
}
