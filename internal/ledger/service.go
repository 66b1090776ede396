// Package ledger orchestrates the balance engine: every transaction write
// runs inside one database transaction that records the row and adjusts the
// cached account balances together, so the books always agree with history.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"pace/internal/core"
	"pace/internal/storage"
)

// EventPublisher announces committed balance changes. Publishing is
// best-effort; failures are logged and never roll back the commit.
type EventPublisher interface {
	PublishLedgerEvent(ctx context.Context, transactionID int64, op string, accountIDs []int64) error
}

type Service struct {
	store  *storage.Store
	events EventPublisher
}

// NewService wires the balance engine to its store. events may be nil when
// no broker is configured.
func NewService(store *storage.Store, events EventPublisher) *Service {
	return &Service{store: store, events: events}
}

var domainErrors = []error{
	core.ErrInvalidAmount,
	core.ErrInvalidType,
	core.ErrInvalidTransfer,
	core.ErrAccountNotFound,
	core.ErrTransactionNotFound,
	core.ErrCategoryNotFound,
	core.ErrAccountInUse,
	core.ErrEmptyName,
}

// wrapStore lets domain sentinels pass through untouched and wraps anything
// else as a store failure the caller may retry.
func wrapStore(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, de := range domainErrors {
		if errors.Is(err, de) {
			return err
		}
	}
	return core.NewStoreError(op, err)
}

// checkReferences verifies every account and category the transaction points
// at exists, inside the same database transaction that will mutate them.
func checkReferences(ctx context.Context, q *storage.Queries, in core.CreateTransactionInput) error {
	if _, err := q.GetAccount(ctx, in.AccountID); err != nil {
		return err
	}
	if in.ToAccountID != nil {
		if _, err := q.GetAccount(ctx, *in.ToAccountID); err != nil {
			return err
		}
	}
	if in.CategoryID != nil {
		if _, err := q.GetCategory(ctx, *in.CategoryID); err != nil {
			return err
		}
	}
	return nil
}

func applyDeltas(ctx context.Context, q *storage.Queries, deltas []core.BalanceDelta) error {
	for _, d := range deltas {
		if err := q.IncrementAccountBalance(ctx, d.AccountID, d.Cents); err != nil {
			return err
		}
	}
	return nil
}

// CreateTransaction validates the input, then records the transaction and
// applies its balance effect atomically.
func (s *Service) CreateTransaction(ctx context.Context, in core.CreateTransactionInput) (core.Transaction, error) {
	if err := in.Validate(); err != nil {
		return core.Transaction{}, err
	}

	var created core.Transaction
	err := s.store.InTx(ctx, func(q *storage.Queries) error {
		if err := checkReferences(ctx, q, in); err != nil {
			return err
		}
		t, err := q.InsertTransaction(ctx, in)
		if err != nil {
			return err
		}
		if err := applyDeltas(ctx, q, core.TransactionEffect(t)); err != nil {
			return err
		}
		created = t
		return nil
	})
	if err != nil {
		return core.Transaction{}, wrapStore("create transaction", err)
	}

	slog.InfoContext(ctx, "Transaction created",
		"id", created.ID,
		"type", created.Type,
		"amount_cents", created.Amount.Cents,
		"account_id", created.AccountID)

	s.publish(ctx, created.ID, "create", affectedAccounts(created))
	return created, nil
}

// UpdateTransaction reverses the stored transaction's balance effect, merges
// the patch, re-validates the merged state, persists it and applies the new
// effect. All of it commits or rolls back as one unit; a failed validation
// leaves balances untouched.
func (s *Service) UpdateTransaction(ctx context.Context, id int64, patch core.TransactionPatch) (core.Transaction, error) {
	var updated core.Transaction
	var touched []int64
	err := s.store.InTx(ctx, func(q *storage.Queries) error {
		existing, err := q.GetTransaction(ctx, id)
		if err != nil {
			return err
		}

		merged := patch.Apply(existing)
		if err := merged.Input().Validate(); err != nil {
			return err
		}
		if err := checkReferences(ctx, q, merged.Input()); err != nil {
			return err
		}

		if err := applyDeltas(ctx, q, core.Reverse(core.TransactionEffect(existing))); err != nil {
			return err
		}
		t, err := q.UpdateTransaction(ctx, merged)
		if err != nil {
			return err
		}
		if err := applyDeltas(ctx, q, core.TransactionEffect(t)); err != nil {
			return err
		}

		updated = t
		touched = unionAccounts(existing, t)
		return nil
	})
	if err != nil {
		return core.Transaction{}, wrapStore("update transaction", err)
	}

	slog.InfoContext(ctx, "Transaction updated", "id", updated.ID, "type", updated.Type)

	s.publish(ctx, updated.ID, "update", touched)
	return updated, nil
}

// DeleteTransaction removes the row and reverses its balance effect in one
// unit, restoring every touched account to its pre-transaction balance.
func (s *Service) DeleteTransaction(ctx context.Context, id int64) error {
	var touched []int64
	err := s.store.InTx(ctx, func(q *storage.Queries) error {
		existing, err := q.GetTransaction(ctx, id)
		if err != nil {
			return err
		}
		if err := applyDeltas(ctx, q, core.Reverse(core.TransactionEffect(existing))); err != nil {
			return err
		}
		if err := q.DeleteTransaction(ctx, id); err != nil {
			return err
		}
		touched = affectedAccounts(existing)
		return nil
	})
	if err != nil {
		return wrapStore("delete transaction", err)
	}

	slog.InfoContext(ctx, "Transaction deleted", "id", id)

	s.publish(ctx, id, "delete", touched)
	return nil
}

func (s *Service) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	t, err := s.store.Queries().GetTransaction(ctx, id)
	return t, wrapStore("get transaction", err)
}

func (s *Service) ListTransactions(ctx context.Context, p storage.ListTransactionsParams) ([]core.Transaction, error) {
	ts, err := s.store.Queries().ListTransactions(ctx, p)
	return ts, wrapStore("list transactions", err)
}

func (s *Service) Stats(ctx context.Context, from, to time.Time) (core.Stats, error) {
	st, err := s.store.Queries().TransactionStats(ctx, from, to)
	return st, wrapStore("transaction stats", err)
}

// CreateAccount opens an account with its current balance seeded from the
// initial balance.
func (s *Service) CreateAccount(ctx context.Context, in core.CreateAccountInput) (core.Account, error) {
	if err := in.Validate(); err != nil {
		return core.Account{}, err
	}
	a, err := s.store.Queries().InsertAccount(ctx, in)
	if err != nil {
		return core.Account{}, wrapStore("create account", err)
	}
	slog.InfoContext(ctx, "Account created", "id", a.ID, "name", a.Name, "type", a.Type)
	return a, nil
}

func (s *Service) GetAccount(ctx context.Context, id int64) (core.Account, error) {
	a, err := s.store.Queries().GetAccount(ctx, id)
	return a, wrapStore("get account", err)
}

func (s *Service) ListAccounts(ctx context.Context) ([]core.Account, error) {
	as, err := s.store.Queries().ListAccounts(ctx)
	return as, wrapStore("list accounts", err)
}

// UpdateAccount patches account metadata. Balances are not patchable: the
// engine owns them and only transaction writes move them.
func (s *Service) UpdateAccount(ctx context.Context, id int64, patch core.AccountPatch) (core.Account, error) {
	if err := patch.Validate(); err != nil {
		return core.Account{}, err
	}
	if patch.Empty() {
		return s.GetAccount(ctx, id)
	}
	a, err := s.store.Queries().UpdateAccountFields(ctx, id, patch)
	return a, wrapStore("update account", err)
}

// DeleteAccount refuses to remove an account that still has transactions;
// they would leave balance effects with no account to carry them.
func (s *Service) DeleteAccount(ctx context.Context, id int64) error {
	err := s.store.InTx(ctx, func(q *storage.Queries) error {
		n, err := q.CountAccountTransactions(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%w: %d transactions reference account %d", core.ErrAccountInUse, n, id)
		}
		return q.DeleteAccount(ctx, id)
	})
	if err != nil {
		return wrapStore("delete account", err)
	}
	slog.InfoContext(ctx, "Account deleted", "id", id)
	return nil
}

func (s *Service) TotalBalance(ctx context.Context) (core.Money, error) {
	m, err := s.store.Queries().TotalBalance(ctx)
	return m, wrapStore("total balance", err)
}

func (s *Service) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	if strings.TrimSpace(c.Name) == "" {
		return core.Category{}, core.ErrEmptyName
	}
	if c.Type != core.Income && c.Type != core.Expense {
		return core.Category{}, fmt.Errorf("%w: category type must be income or expense", core.ErrInvalidType)
	}
	out, err := s.store.Queries().InsertCategory(ctx, c)
	return out, wrapStore("create category", err)
}

func (s *Service) ListCategories(ctx context.Context) ([]core.Category, error) {
	cs, err := s.store.Queries().ListCategories(ctx)
	return cs, wrapStore("list categories", err)
}

func (s *Service) DeleteCategory(ctx context.Context, id int64) error {
	return wrapStore("delete category", s.store.Queries().DeleteCategory(ctx, id))
}

func (s *Service) publish(ctx context.Context, transactionID int64, op string, accountIDs []int64) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishLedgerEvent(ctx, transactionID, op, accountIDs); err != nil {
		// The commit already happened; a lost event only delays the audit.
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"transaction_id", transactionID, "op", op, "error", err)
	}
}

func affectedAccounts(t core.Transaction) []int64 {
	ids := []int64{t.AccountID}
	if t.ToAccountID != nil {
		ids = append(ids, *t.ToAccountID)
	}
	return ids
}

func unionAccounts(before, after core.Transaction) []int64 {
	seen := map[int64]bool{}
	var ids []int64
	for _, id := range append(affectedAccounts(before), affectedAccounts(after)...) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}
