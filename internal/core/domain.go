package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Income   TransactionType = "income"
	Expense  TransactionType = "expense"
	Transfer TransactionType = "transfer"
)

const (
	BankAccount AccountType = "bank_account"
	CreditCard  AccountType = "credit_card"
	Cash        AccountType = "cash"
	Savings     AccountType = "savings"
	Investment  AccountType = "investment"
	OtherAsset  AccountType = "other"
)

type (
	TransactionType string

	AccountType string

	// Money is a fixed-point amount in minor units (cents). Balances are
	// signed; transaction amounts must be strictly positive.
	Money struct {
		Cents int64
	}

	Account struct {
		ID             int64
		Name           string
		Type           AccountType
		InitialBalance Money
		CurrentBalance Money
		Currency       string
		IncludeInTotal bool
		Color          string
		Icon           string
		CreatedAt      time.Time
		UpdatedAt      time.Time
	}

	Category struct {
		ID        int64
		Name      string
		Type      TransactionType // income or expense, never transfer
		Icon      string
		Color     string
		ParentID  *int64
		IsDefault bool
		CreatedAt time.Time
	}

	Transaction struct {
		ID          int64
		Type        TransactionType
		Amount      Money
		Date        time.Time
		AccountID   int64
		CategoryID  *int64
		ToAccountID *int64
		Note        string
		CreatedAt   time.Time
		UpdatedAt   time.Time
	}
)

var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidType         = errors.New("invalid transaction type")
	ErrInvalidTransfer     = errors.New("invalid transfer")
	ErrAccountNotFound     = errors.New("account not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrCategoryNotFound    = errors.New("category not found")
	ErrAccountInUse        = errors.New("account has transactions")
	ErrEmptyName           = errors.New("empty name")
)

// StoreError wraps a persistence failure. The operation it interrupted was
// rolled back in full; callers may retry.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return "store: " + e.Op + ": " + e.Err.Error() }

func (e *StoreError) Unwrap() error { return e.Err }

func NewStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}

func (t TransactionType) Valid() bool {
	switch t {
	case Income, Expense, Transfer:
		return true
	}
	return false
}

func (t AccountType) Valid() bool {
	switch t {
	case BankAccount, CreditCard, Cash, Savings, Investment, OtherAsset:
		return true
	}
	return false
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Neg returns the negated amount. Used when reversing a balance effect.
func (m Money) Neg() Money {
	return Money{Cents: -m.Cents}
}

func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

// CreateTransactionInput carries everything needed to record a transaction.
type CreateTransactionInput struct {
	Type        TransactionType
	Amount      Money
	Date        time.Time
	AccountID   int64
	CategoryID  *int64
	ToAccountID *int64
	Note        string
}

// Validate checks the shape of the input. Account existence is the store's
// concern and is verified inside the same transaction that applies the effect.
func (in CreateTransactionInput) Validate() error {
	if !in.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidType, in.Type)
	}
	if err := in.Amount.Validate(); err != nil {
		return err
	}
	if in.Date.IsZero() {
		return errors.New("date cannot be zero")
	}
	if in.Type == Transfer {
		if in.ToAccountID == nil {
			return fmt.Errorf("%w: missing destination account", ErrInvalidTransfer)
		}
		if *in.ToAccountID == in.AccountID {
			return fmt.Errorf("%w: source and destination are the same account", ErrInvalidTransfer)
		}
	} else if in.ToAccountID != nil {
		return fmt.Errorf("%w: destination account on a %s", ErrInvalidTransfer, in.Type)
	}
	return nil
}

// Optional distinguishes "field absent from the patch" from "field present,
// possibly null". Needed for the nullable transaction columns.
type Optional[T any] struct {
	Set   bool
	Value T
}

func Opt[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: v}
}

// TransactionPatch is a partial update; nil / unset fields keep their
// current value.
type TransactionPatch struct {
	Type        *TransactionType
	Amount      *Money
	Date        *time.Time
	AccountID   *int64
	CategoryID  Optional[*int64]
	ToAccountID Optional[*int64]
	Note        Optional[string]
}

// Apply merges the patch over an existing transaction and returns the merged
// state. When the merged type is not a transfer the destination account is
// normalized to null.
func (p TransactionPatch) Apply(t Transaction) Transaction {
	if p.Type != nil {
		t.Type = *p.Type
	}
	if p.Amount != nil {
		t.Amount = *p.Amount
	}
	if p.Date != nil {
		t.Date = *p.Date
	}
	if p.AccountID != nil {
		t.AccountID = *p.AccountID
	}
	if p.CategoryID.Set {
		t.CategoryID = p.CategoryID.Value
	}
	if p.ToAccountID.Set {
		t.ToAccountID = p.ToAccountID.Value
	}
	if p.Note.Set {
		t.Note = p.Note.Value
	}
	if t.Type != Transfer {
		t.ToAccountID = nil
	}
	return t
}

// Input returns the merged state as a create input so update re-validates
// exactly the way create does.
func (t Transaction) Input() CreateTransactionInput {
	return CreateTransactionInput{
		Type:        t.Type,
		Amount:      t.Amount,
		Date:        t.Date,
		AccountID:   t.AccountID,
		CategoryID:  t.CategoryID,
		ToAccountID: t.ToAccountID,
		Note:        t.Note,
	}
}

// CreateAccountInput seeds a new account; the current balance starts at the
// initial balance and is engine-owned afterwards.
type CreateAccountInput struct {
	Name           string
	Type           AccountType
	InitialBalance Money
	Currency       string
	IncludeInTotal bool
	Color          string
	Icon           string
}

func (in CreateAccountInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return ErrEmptyName
	}
	if len(in.Name) > 100 {
		return errors.New("name too long (max 100 characters)")
	}
	if !in.Type.Valid() {
		return fmt.Errorf("invalid account type %q", in.Type)
	}
	if in.Currency == "" {
		return errors.New("empty currency")
	}
	return nil
}

// AccountPatch updates account metadata. Balances are deliberately absent:
// only the balance engine mutates them.
type AccountPatch struct {
	Name           *string
	Type           *AccountType
	Currency       *string
	IncludeInTotal *bool
	Color          *string
	Icon           *string
}

func (p AccountPatch) Empty() bool {
	return p.Name == nil && p.Type == nil && p.Currency == nil &&
		p.IncludeInTotal == nil && p.Color == nil && p.Icon == nil
}

func (p AccountPatch) Validate() error {
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return ErrEmptyName
	}
	if p.Type != nil && !p.Type.Valid() {
		return fmt.Errorf("invalid account type %q", *p.Type)
	}
	if p.Currency != nil && *p.Currency == "" {
		return errors.New("empty currency")
	}
	return nil
}

// Stats is the income/expense summary for a date range. Transfers move money
// between accounts and do not contribute.
type Stats struct {
	TotalIncome  Money
	TotalExpense Money
	Net          Money
	Count        int64
}
