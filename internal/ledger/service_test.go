package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"pace/internal/core"
	"pace/internal/storage"
)

type capturedEvent struct {
	TransactionID int64
	Op            string
	AccountIDs    []int64
}

type fakePublisher struct {
	mu     sync.Mutex
	events []capturedEvent
	fail   bool
}

func (p *fakePublisher) PublishLedgerEvent(ctx context.Context, transactionID int64, op string, accountIDs []int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("broker down")
	}
	p.events = append(p.events, capturedEvent{transactionID, op, accountIDs})
	return nil
}

func newTestService(t *testing.T) (*Service, *fakePublisher) {
	t.Helper()
	store, err := storage.NewStore(filepath.Join(t.TempDir(), "pace.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	pub := &fakePublisher{}
	return NewService(store, pub), pub
}

func newAccount(t *testing.T, s *Service, name string, initialCents int64) core.Account {
	t.Helper()
	a, err := s.CreateAccount(context.Background(), core.CreateAccountInput{
		Name:           name,
		Type:           core.BankAccount,
		InitialBalance: core.Money{Cents: initialCents},
		Currency:       "EUR",
		IncludeInTotal: true,
	})
	if err != nil {
		t.Fatalf("create account %s: %v", name, err)
	}
	return a
}

func balance(t *testing.T, s *Service, id int64) int64 {
	t.Helper()
	a, err := s.GetAccount(context.Background(), id)
	if err != nil {
		t.Fatalf("get account %d: %v", id, err)
	}
	return a.CurrentBalance.Cents
}

func txInput(typ core.TransactionType, cents int64, accountID int64) core.CreateTransactionInput {
	return core.CreateTransactionInput{
		Type:      typ,
		Amount:    core.Money{Cents: cents},
		Date:      time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC),
		AccountID: accountID,
	}
}

func TestCreateIncomeAddsToBalance(t *testing.T) {
	s, _ := newTestService(t)
	a := newAccount(t, s, "Checking", 5000)

	if _, err := s.CreateTransaction(context.Background(), txInput(core.Income, 10000, a.ID)); err != nil {
		t.Fatalf("create income: %v", err)
	}
	if got := balance(t, s, a.ID); got != 15000 {
		t.Fatalf("expected 15000, got %d", got)
	}
}

func TestCreateExpenseSubtractsFromBalance(t *testing.T) {
	s, _ := newTestService(t)
	a := newAccount(t, s, "Checking", 15000)

	if _, err := s.CreateTransaction(context.Background(), txInput(core.Expense, 3000, a.ID)); err != nil {
		t.Fatalf("create expense: %v", err)
	}
	if got := balance(t, s, a.ID); got != 12000 {
		t.Fatalf("expected 12000, got %d", got)
	}
}

func TestCreateTransferMovesMoney(t *testing.T) {
	s, _ := newTestService(t)
	a := newAccount(t, s, "Checking", 12000)
	b := newAccount(t, s, "Savings", 0)

	in := txInput(core.Transfer, 2000, a.ID)
	in.ToAccountID = &b.ID
	if _, err := s.CreateTransaction(context.Background(), in); err != nil {
		t.Fatalf("create transfer: %v", err)
	}
	if got := balance(t, s, a.ID); got != 10000 {
		t.Fatalf("source: expected 10000, got %d", got)
	}
	if got := balance(t, s, b.ID); got != 2000 {
		t.Fatalf("destination: expected 2000, got %d", got)
	}
}

func TestUpdateExpenseToIncomeSwingsBalance(t *testing.T) {
	s, _ := newTestService(t)
	a := newAccount(t, s, "Checking", 10000)

	tx, err := s.CreateTransaction(context.Background(), txInput(core.Expense, 3000, a.ID))
	if err != nil {
		t.Fatalf("create expense: %v", err)
	}
	if got := balance(t, s, a.ID); got != 7000 {
		t.Fatalf("after expense: expected 7000, got %d", got)
	}

	// Reversing a 30.00 expense and applying a 30.00 income nets +60.00.
	income := core.Income
	if _, err := s.UpdateTransaction(context.Background(), tx.ID, core.TransactionPatch{Type: &income}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got := balance(t, s, a.ID); got != 13000 {
		t.Fatalf("after update: expected 13000, got %d", got)
	}
}

func TestUpdateAmountReappliesEffect(t *testing.T) {
	s, _ := newTestService(t)
	a := newAccount(t, s, "Checking", 10000)

	tx, err := s.CreateTransaction(context.Background(), txInput(core.Expense, 2500, a.ID))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	amount := core.Money{Cents: 4000}
	if _, err := s.UpdateTransaction(context.Background(), tx.ID, core.TransactionPatch{Amount: &amount}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got := balance(t, s, a.ID); got != 6000 {
		t.Fatalf("expected 6000, got %d", got)
	}
}

func TestUpdateMovesTransactionBetweenAccounts(t *testing.T) {
	s, _ := newTestService(t)
	a := newAccount(t, s, "Checking", 5000)
	b := newAccount(t, s, "Savings", 5000)

	tx, err := s.CreateTransaction(context.Background(), txInput(core.Expense, 1000, a.ID))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := s.UpdateTransaction(context.Background(), tx.ID, core.TransactionPatch{AccountID: &b.ID}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got := balance(t, s, a.ID); got != 5000 {
		t.Fatalf("old account: expected 5000, got %d", got)
	}
	if got := balance(t, s, b.ID); got != 4000 {
		t.Fatalf("new account: expected 4000, got %d", got)
	}
}

func TestUpdateNoOpKeepsBalances(t *testing.T) {
	s, _ := newTestService(t)
	a := newAccount(t, s, "Checking", 5000)

	tx, err := s.CreateTransaction(context.Background(), txInput(core.Expense, 1000, a.ID))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	before := balance(t, s, a.ID)
	if _, err := s.UpdateTransaction(context.Background(), tx.ID, core.TransactionPatch{}); err != nil {
		t.Fatalf("empty patch: %v", err)
	}
	if got := balance(t, s, a.ID); got != before {
		t.Fatalf("balance moved on no-op update: %d -> %d", before, got)
	}
}

func TestDeleteTransferRestoresBothAccounts(t *testing.T) {
	s, _ := newTestService(t)
	a := newAccount(t, s, "Checking", 10000)
	b := newAccount(t, s, "Savings", 500)

	in := txInput(core.Transfer, 2000, a.ID)
	in.ToAccountID = &b.ID
	tx, err := s.CreateTransaction(context.Background(), in)
	if err != nil {
		t.Fatalf("create transfer: %v", err)
	}

	if err := s.DeleteTransaction(context.Background(), tx.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := balance(t, s, a.ID); got != 10000 {
		t.Fatalf("source not restored: %d", got)
	}
	if got := balance(t, s, b.ID); got != 500 {
		t.Fatalf("destination not restored: %d", got)
	}
	if _, err := s.GetTransaction(context.Background(), tx.ID); !errors.Is(err, core.ErrTransactionNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestRejectedCreateLeavesNoTrace(t *testing.T) {
	s, _ := newTestService(t)
	a := newAccount(t, s, "Checking", 5000)

	cases := []core.CreateTransactionInput{
		txInput(core.Income, 0, a.ID),
		txInput(core.Income, -100, a.ID),
		txInput("refund", 100, a.ID),
		txInput(core.Transfer, 100, a.ID), // missing destination
		txInput(core.Income, 100, 9999),   // unknown account
	}
	for i, in := range cases {
		if _, err := s.CreateTransaction(context.Background(), in); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}

	if got := balance(t, s, a.ID); got != 5000 {
		t.Fatalf("balance moved on rejected create: %d", got)
	}
	txs, err := s.ListTransactions(context.Background(), storage.ListTransactionsParams{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(txs) != 0 {
		t.Fatalf("expected no transactions, got %d", len(txs))
	}
}

func TestRejectedUpdateLeavesBalancesUntouched(t *testing.T) {
	s, _ := newTestService(t)
	a := newAccount(t, s, "Checking", 5000)

	tx, err := s.CreateTransaction(context.Background(), txInput(core.Expense, 1000, a.ID))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	bad := core.Money{Cents: -50}
	if _, err := s.UpdateTransaction(context.Background(), tx.ID, core.TransactionPatch{Amount: &bad}); !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
	if got := balance(t, s, a.ID); got != 4000 {
		t.Fatalf("balance changed on rejected update: %d", got)
	}

	got, err := s.GetTransaction(context.Background(), tx.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Amount.Cents != 1000 {
		t.Fatalf("transaction changed on rejected update: %+v", got)
	}
}

func TestUpdateTypeAwayFromTransferClearsDestination(t *testing.T) {
	s, _ := newTestService(t)
	a := newAccount(t, s, "Checking", 10000)
	b := newAccount(t, s, "Savings", 0)

	in := txInput(core.Transfer, 1500, a.ID)
	in.ToAccountID = &b.ID
	tx, err := s.CreateTransaction(context.Background(), in)
	if err != nil {
		t.Fatalf("create transfer: %v", err)
	}

	expense := core.Expense
	updated, err := s.UpdateTransaction(context.Background(), tx.ID, core.TransactionPatch{Type: &expense})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.ToAccountID != nil {
		t.Fatalf("destination survived type change: %v", *updated.ToAccountID)
	}
	// Transfer reversed (+1500 source, -1500 destination), expense applied.
	if got := balance(t, s, a.ID); got != 8500 {
		t.Fatalf("source: expected 8500, got %d", got)
	}
	if got := balance(t, s, b.ID); got != 0 {
		t.Fatalf("destination: expected 0, got %d", got)
	}
}

func TestDeleteAccountRefusedWhileReferenced(t *testing.T) {
	s, _ := newTestService(t)
	a := newAccount(t, s, "Checking", 5000)
	b := newAccount(t, s, "Savings", 0)

	in := txInput(core.Transfer, 500, a.ID)
	in.ToAccountID = &b.ID
	tx, err := s.CreateTransaction(context.Background(), in)
	if err != nil {
		t.Fatalf("create transfer: %v", err)
	}

	// Both sides of the transfer pin their accounts.
	if err := s.DeleteAccount(context.Background(), a.ID); !errors.Is(err, core.ErrAccountInUse) {
		t.Fatalf("expected account in use for source, got %v", err)
	}
	if err := s.DeleteAccount(context.Background(), b.ID); !errors.Is(err, core.ErrAccountInUse) {
		t.Fatalf("expected account in use for destination, got %v", err)
	}

	if err := s.DeleteTransaction(context.Background(), tx.ID); err != nil {
		t.Fatalf("delete transaction: %v", err)
	}
	if err := s.DeleteAccount(context.Background(), b.ID); err != nil {
		t.Fatalf("delete after unreferenced: %v", err)
	}
}

func TestTotalBalanceHonorsIncludeInTotal(t *testing.T) {
	s, _ := newTestService(t)
	newAccount(t, s, "Checking", 10000)
	hidden, err := s.CreateAccount(context.Background(), core.CreateAccountInput{
		Name:           "Escrow",
		Type:           core.OtherAsset,
		InitialBalance: core.Money{Cents: 99999},
		Currency:       "EUR",
		IncludeInTotal: false,
	})
	if err != nil {
		t.Fatalf("create hidden account: %v", err)
	}

	total, err := s.TotalBalance(context.Background())
	if err != nil {
		t.Fatalf("total: %v", err)
	}
	if total.Cents != 10000 {
		t.Fatalf("expected 10000, got %d (hidden account %d leaked in)", total.Cents, hidden.ID)
	}
}

func TestUpdateAccountCannotTouchBalances(t *testing.T) {
	s, _ := newTestService(t)
	a := newAccount(t, s, "Checking", 5000)

	name := "Main Checking"
	include := false
	updated, err := s.UpdateAccount(context.Background(), a.ID, core.AccountPatch{Name: &name, IncludeInTotal: &include})
	if err != nil {
		t.Fatalf("update account: %v", err)
	}
	if updated.Name != "Main Checking" || updated.IncludeInTotal {
		t.Fatalf("metadata patch not applied: %+v", updated)
	}
	if updated.CurrentBalance.Cents != 5000 || updated.InitialBalance.Cents != 5000 {
		t.Fatalf("balances moved on metadata update: %+v", updated)
	}
}

func TestStats(t *testing.T) {
	s, _ := newTestService(t)
	a := newAccount(t, s, "Checking", 0)
	b := newAccount(t, s, "Savings", 0)

	ctx := context.Background()
	if _, err := s.CreateTransaction(ctx, txInput(core.Income, 50000, a.ID)); err != nil {
		t.Fatalf("income: %v", err)
	}
	if _, err := s.CreateTransaction(ctx, txInput(core.Expense, 12000, a.ID)); err != nil {
		t.Fatalf("expense: %v", err)
	}
	in := txInput(core.Transfer, 5000, a.ID)
	in.ToAccountID = &b.ID
	if _, err := s.CreateTransaction(ctx, in); err != nil {
		t.Fatalf("transfer: %v", err)
	}

	from := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	stats, err := s.Stats(ctx, from, to)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalIncome.Cents != 50000 {
		t.Fatalf("income: expected 50000, got %d", stats.TotalIncome.Cents)
	}
	if stats.TotalExpense.Cents != 12000 {
		t.Fatalf("expense: expected 12000, got %d", stats.TotalExpense.Cents)
	}
	if stats.Net.Cents != 38000 {
		t.Fatalf("net: expected 38000, got %d", stats.Net.Cents)
	}
	if stats.Count != 3 {
		t.Fatalf("count: expected 3, got %d", stats.Count)
	}
}

func TestListTransactionsFilters(t *testing.T) {
	s, _ := newTestService(t)
	a := newAccount(t, s, "Checking", 0)
	b := newAccount(t, s, "Savings", 0)

	ctx := context.Background()
	if _, err := s.CreateTransaction(ctx, txInput(core.Income, 100, a.ID)); err != nil {
		t.Fatalf("income a: %v", err)
	}
	if _, err := s.CreateTransaction(ctx, txInput(core.Income, 200, b.ID)); err != nil {
		t.Fatalf("income b: %v", err)
	}
	in := txInput(core.Transfer, 50, a.ID)
	in.ToAccountID = &b.ID
	if _, err := s.CreateTransaction(ctx, in); err != nil {
		t.Fatalf("transfer: %v", err)
	}

	// Account filter sees transfers from both sides.
	got, err := s.ListTransactions(ctx, storage.ListTransactionsParams{AccountID: &b.ID})
	if err != nil {
		t.Fatalf("list by account: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 for account b, got %d", len(got))
	}

	typ := core.Income
	got, err = s.ListTransactions(ctx, storage.ListTransactionsParams{Type: &typ})
	if err != nil {
		t.Fatalf("list by type: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 incomes, got %d", len(got))
	}
}

func TestEventsPublishedAfterCommit(t *testing.T) {
	s, pub := newTestService(t)
	a := newAccount(t, s, "Checking", 0)
	b := newAccount(t, s, "Savings", 0)

	ctx := context.Background()
	in := txInput(core.Transfer, 100, a.ID)
	in.ToAccountID = &b.ID
	tx, err := s.CreateTransaction(ctx, in)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.DeleteTransaction(ctx, tx.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(pub.events))
	}
	if pub.events[0].Op != "create" || pub.events[1].Op != "delete" {
		t.Fatalf("unexpected ops: %+v", pub.events)
	}
	if len(pub.events[0].AccountIDs) != 2 {
		t.Fatalf("transfer event should touch two accounts: %+v", pub.events[0])
	}
}

func TestPublishFailureDoesNotFailWrite(t *testing.T) {
	s, pub := newTestService(t)
	pub.fail = true
	a := newAccount(t, s, "Checking", 0)

	if _, err := s.CreateTransaction(context.Background(), txInput(core.Income, 100, a.ID)); err != nil {
		t.Fatalf("create should succeed despite broker failure: %v", err)
	}
	if got := balance(t, s, a.ID); got != 100 {
		t.Fatalf("expected 100, got %d", got)
	}
}

func TestConcurrentCreatesConserveBalance(t *testing.T) {
	s, _ := newTestService(t)
	a := newAccount(t, s, "Checking", 0)

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.CreateTransaction(context.Background(), txInput(core.Income, 100, a.ID))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent create: %v", err)
		}
	}

	if got := balance(t, s, a.ID); got != n*100 {
		t.Fatalf("expected %d, got %d", n*100, got)
	}
	report, err := s.VerifyAccount(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !report.Consistent() {
		t.Fatalf("drift after concurrent writes: %+v", report)
	}
}

func TestConcurrentOpposingTransfers(t *testing.T) {
	s, _ := newTestService(t)
	a := newAccount(t, s, "Checking", 10000)
	b := newAccount(t, s, "Savings", 10000)

	// Transfers in both directions at once; each goroutine reads one account
	// and writes both, so this fails fast if writers are not serialized.
	const n = 10
	var wg sync.WaitGroup
	errs := make(chan error, 2*n)
	for i := 0; i < n; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			in := txInput(core.Transfer, 100, a.ID)
			in.ToAccountID = &b.ID
			_, err := s.CreateTransaction(context.Background(), in)
			errs <- err
		}()
		go func() {
			defer wg.Done()
			in := txInput(core.Transfer, 100, b.ID)
			in.ToAccountID = &a.ID
			_, err := s.CreateTransaction(context.Background(), in)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent transfer: %v", err)
		}
	}

	// Equal traffic in both directions nets to zero.
	if got := balance(t, s, a.ID); got != 10000 {
		t.Fatalf("account a: expected 10000, got %d", got)
	}
	if got := balance(t, s, b.ID); got != 10000 {
		t.Fatalf("account b: expected 10000, got %d", got)
	}
	for _, id := range []int64{a.ID, b.ID} {
		report, err := s.VerifyAccount(context.Background(), id)
		if err != nil {
			t.Fatalf("verify %d: %v", id, err)
		}
		if !report.Consistent() {
			t.Fatalf("drift on account %d: %+v", id, report)
		}
	}
}
