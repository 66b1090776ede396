package worker

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"pace/internal/amqp"
	"pace/internal/core"
	"pace/internal/export/memory"
	"pace/internal/ledger"
	"pace/internal/storage"
)

func newTestWorker(t *testing.T) (*AuditWorker, *ledger.Service, *memory.Exporter) {
	t.Helper()
	store, err := storage.NewStore(filepath.Join(t.TempDir(), "pace.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	svc := ledger.NewService(store, nil)
	exporter := memory.New()
	return NewAuditWorker(svc, nil, exporter, time.Minute, 10), svc, exporter
}

func seedTransaction(t *testing.T, svc *ledger.Service) (core.Account, core.Transaction) {
	t.Helper()
	ctx := context.Background()
	a, err := svc.CreateAccount(ctx, core.CreateAccountInput{
		Name:           "Checking",
		Type:           core.BankAccount,
		InitialBalance: core.Money{Cents: 1000},
		Currency:       "EUR",
		IncludeInTotal: true,
	})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	tx, err := svc.CreateTransaction(ctx, core.CreateTransactionInput{
		Type:      core.Income,
		Amount:    core.Money{Cents: 500},
		Date:      time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		AccountID: a.ID,
	})
	if err != nil {
		t.Fatalf("create transaction: %v", err)
	}
	return a, tx
}

func TestHandleEventAuditsAndExports(t *testing.T) {
	w, svc, exporter := newTestWorker(t)
	a, tx := seedTransaction(t, svc)

	msg := amqp.NewLedgerEventMessage(tx.ID, amqp.OpCreate, []int64{a.ID})
	if err := w.handleEvent(context.Background(), msg); err != nil {
		t.Fatalf("handle event: %v", err)
	}

	rows := exporter.Rows()
	if len(rows) != 1 || rows[0].ID != tx.ID {
		t.Fatalf("expected exported transaction, got %+v", rows)
	}
}

func TestHandleEventSkipsExportOnDelete(t *testing.T) {
	w, svc, exporter := newTestWorker(t)
	a, tx := seedTransaction(t, svc)

	if err := svc.DeleteTransaction(context.Background(), tx.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	msg := amqp.NewLedgerEventMessage(tx.ID, amqp.OpDelete, []int64{a.ID})
	if err := w.handleEvent(context.Background(), msg); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if len(exporter.Rows()) != 0 {
		t.Fatalf("delete event should not export")
	}
}

func TestHandleEventToleratesVanishedAccount(t *testing.T) {
	w, _, _ := newTestWorker(t)

	msg := amqp.NewLedgerEventMessage(1, amqp.OpUpdate, []int64{9999})
	if err := w.handleEvent(context.Background(), msg); err != nil {
		t.Fatalf("expected vanished account tolerated, got %v", err)
	}
}

func TestSweep(t *testing.T) {
	w, svc, _ := newTestWorker(t)
	seedTransaction(t, svc)

	if err := w.sweep(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}
}
