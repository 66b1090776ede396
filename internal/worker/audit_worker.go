// Package worker runs the background audit loop: it reacts to ledger events
// from AMQP and periodically replays every account's history against its
// cached balance, so silent drift is caught even if events are lost.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"pace/internal/amqp"
	"pace/internal/core"
	"pace/internal/export"
	"pace/internal/ledger"
)

type AuditWorker struct {
	ledger   *ledger.Service
	client   *amqp.Client
	exporter export.TransactionExporter

	interval  time.Duration
	batchSize int
}

// NewAuditWorker wires the worker. client and exporter may be nil: without a
// broker only the periodic sweep runs, without an exporter transactions are
// audited but not mirrored.
func NewAuditWorker(svc *ledger.Service, client *amqp.Client, exporter export.TransactionExporter, interval time.Duration, batchSize int) *AuditWorker {
	return &AuditWorker{
		ledger:    svc,
		client:    client,
		exporter:  exporter,
		interval:  interval,
		batchSize: batchSize,
	}
}

// Run blocks until ctx is cancelled, running the event consumer and the
// periodic sweep concurrently.
func (w *AuditWorker) Run(ctx context.Context) error {
	// Full sweep on startup recovers from anything missed while down.
	if err := w.sweep(ctx); err != nil {
		slog.ErrorContext(ctx, "Startup audit sweep failed", "error", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	if w.client != nil {
		g.Go(func() error {
			err := w.client.ConsumeLedgerEvents(ctx, func(msg *amqp.LedgerEventMessage) error {
				return w.handleEvent(ctx, msg)
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	g.Go(func() error {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if err := w.sweep(ctx); err != nil {
					slog.ErrorContext(ctx, "Periodic audit sweep failed", "error", err)
				}
			}
		}
	})

	return g.Wait()
}

// handleEvent audits every account the event touched, then mirrors the
// transaction if an exporter is configured. Audit failures requeue the
// message; export failures do not, the periodic sweep owns consistency.
func (w *AuditWorker) handleEvent(ctx context.Context, msg *amqp.LedgerEventMessage) error {
	for _, accountID := range msg.AccountIDs {
		report, err := w.ledger.VerifyAccount(ctx, accountID)
		if err != nil {
			if errors.Is(err, core.ErrAccountNotFound) {
				// Account deleted after the event was queued
				continue
			}
			return fmt.Errorf("verify account %d: %w", accountID, err)
		}
		if !report.Consistent() {
			slog.ErrorContext(ctx, "Event audit found drift",
				"transaction_id", msg.TransactionID,
				"op", msg.Op,
				"account_id", accountID,
				"drift_cents", report.DriftCents)
		}
	}

	if w.exporter != nil && msg.Op == amqp.OpCreate {
		t, err := w.ledger.GetTransaction(ctx, msg.TransactionID)
		if err != nil {
			if errors.Is(err, core.ErrTransactionNotFound) {
				return nil
			}
			return fmt.Errorf("load transaction %d: %w", msg.TransactionID, err)
		}
		ref, err := w.exporter.Append(ctx, t)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to export transaction",
				"transaction_id", t.ID, "error", err)
			return nil
		}
		slog.InfoContext(ctx, "Transaction exported", "transaction_id", t.ID, "ref", ref)
	}

	return nil
}

// sweep audits every account in batches.
func (w *AuditWorker) sweep(ctx context.Context) error {
	accounts, err := w.ledger.ListAccounts(ctx)
	if err != nil {
		return fmt.Errorf("list accounts: %w", err)
	}

	drifted := 0
	for i, a := range accounts {
		if i > 0 && w.batchSize > 0 && i%w.batchSize == 0 {
			// Brief pause between batches to keep the sweep off the write path.
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(100 * time.Millisecond):
			}
		}
		report, err := w.ledger.VerifyAccount(ctx, a.ID)
		if err != nil {
			slog.ErrorContext(ctx, "Audit failed for account", "account_id", a.ID, "error", err)
			continue
		}
		if !report.Consistent() {
			drifted++
		}
	}

	if drifted > 0 {
		slog.ErrorContext(ctx, "Audit sweep finished with drift",
			"accounts", len(accounts), "drifted", drifted)
	} else {
		slog.InfoContext(ctx, "Audit sweep clean", "accounts", len(accounts))
	}
	return nil
}
