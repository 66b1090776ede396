package core

import (
	"errors"
	"testing"
	"time"
)

func TestMoneyValidate(t *testing.T) {
	if err := (Money{Cents: 1}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Money{Cents: 0}).Validate(); err == nil {
		t.Fatalf("expected error for zero")
	}
	if err := (Money{Cents: -100}).Validate(); err == nil {
		t.Fatalf("expected error for negative")
	}
}

func TestCreateTransactionInputValidate(t *testing.T) {
	date := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	to := int64(2)

	good := []CreateTransactionInput{
		{Type: Income, Amount: Money{Cents: 100}, Date: date, AccountID: 1},
		{Type: Expense, Amount: Money{Cents: 1}, Date: date, AccountID: 1},
		{Type: Transfer, Amount: Money{Cents: 50}, Date: date, AccountID: 1, ToAccountID: &to},
	}
	for i, in := range good {
		if err := in.Validate(); err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
	}

	same := int64(1)
	bads := []struct {
		in   CreateTransactionInput
		want error
	}{
		{CreateTransactionInput{Type: "refund", Amount: Money{Cents: 100}, Date: date, AccountID: 1}, ErrInvalidType},
		{CreateTransactionInput{Type: Income, Amount: Money{Cents: 0}, Date: date, AccountID: 1}, ErrInvalidAmount},
		{CreateTransactionInput{Type: Expense, Amount: Money{Cents: -5}, Date: date, AccountID: 1}, ErrInvalidAmount},
		{CreateTransactionInput{Type: Transfer, Amount: Money{Cents: 100}, Date: date, AccountID: 1}, ErrInvalidTransfer},
		{CreateTransactionInput{Type: Transfer, Amount: Money{Cents: 100}, Date: date, AccountID: 1, ToAccountID: &same}, ErrInvalidTransfer},
		{CreateTransactionInput{Type: Income, Amount: Money{Cents: 100}, Date: date, AccountID: 1, ToAccountID: &to}, ErrInvalidTransfer},
	}
	for i, tc := range bads {
		err := tc.in.Validate()
		if err == nil {
			t.Fatalf("case %d expected error", i)
		}
		if !errors.Is(err, tc.want) {
			t.Fatalf("case %d expected %v, got %v", i, tc.want, err)
		}
	}
}

func TestTransactionPatchApply(t *testing.T) {
	date := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	to := int64(2)
	existing := Transaction{
		ID:          7,
		Type:        Transfer,
		Amount:      Money{Cents: 2000},
		Date:        date,
		AccountID:   1,
		ToAccountID: &to,
		Note:        "rent split",
	}

	// Empty patch is a no-op.
	if got := (TransactionPatch{}).Apply(existing); got != existing {
		t.Fatalf("empty patch changed transaction: %+v", got)
	}

	// Changing the type away from transfer clears the destination account.
	typ := Expense
	got := (TransactionPatch{Type: &typ}).Apply(existing)
	if got.Type != Expense {
		t.Fatalf("expected type expense, got %s", got.Type)
	}
	if got.ToAccountID != nil {
		t.Fatalf("expected destination cleared, got %v", *got.ToAccountID)
	}

	// Explicit field updates land, untouched fields survive.
	amount := Money{Cents: 999}
	got = (TransactionPatch{Amount: &amount, Note: Opt("updated")}).Apply(existing)
	if got.Amount.Cents != 999 || got.Note != "updated" {
		t.Fatalf("patch not applied: %+v", got)
	}
	if got.Type != Transfer || got.ToAccountID == nil || *got.ToAccountID != 2 {
		t.Fatalf("untouched fields changed: %+v", got)
	}
}

func TestAccountPatchValidate(t *testing.T) {
	empty := ""
	bad := AccountType("piggy_bank")
	cases := []struct {
		p  AccountPatch
		ok bool
	}{
		{AccountPatch{}, true},
		{AccountPatch{Name: strPtr("Checking")}, true},
		{AccountPatch{Name: &empty}, false},
		{AccountPatch{Type: &bad}, false},
		{AccountPatch{Currency: &empty}, false},
	}
	for i, tc := range cases {
		err := tc.p.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func strPtr(s string) *string { return &s }

func TestStoreErrorUnwrap(t *testing.T) {
	inner := errors.New("disk full")
	err := NewStoreError("insert transaction", inner)
	if !errors.Is(err, inner) {
		t.Fatalf("expected wrapped error to match")
	}
	var se *StoreError
	if !errors.As(err, &se) || se.Op != "insert transaction" {
		t.Fatalf("expected StoreError with op, got %v", err)
	}
	if NewStoreError("noop", nil) != nil {
		t.Fatalf("expected nil for nil error")
	}
}
