package ledger

import (
	"context"
	"log/slog"

	"pace/internal/core"
	"pace/internal/storage"
)

// AuditReport compares an account's cached balance against a full replay of
// its transaction history.
type AuditReport struct {
	AccountID  int64
	Expected   core.Money // initial balance plus replayed effects
	Actual     core.Money // cached current balance
	DriftCents int64
}

func (r AuditReport) Consistent() bool { return r.DriftCents == 0 }

// VerifyAccount recomputes the account balance from history and reports any
// drift from the cached value. Both reads happen in one database transaction
// so a concurrent write cannot produce a false positive.
func (s *Service) VerifyAccount(ctx context.Context, accountID int64) (AuditReport, error) {
	var report AuditReport
	err := s.store.InTx(ctx, func(q *storage.Queries) error {
		account, err := q.GetAccount(ctx, accountID)
		if err != nil {
			return err
		}
		effects, err := q.SumAccountEffects(ctx, accountID)
		if err != nil {
			return err
		}
		report = AuditReport{
			AccountID:  accountID,
			Expected:   core.Money{Cents: account.InitialBalance.Cents + effects},
			Actual:     account.CurrentBalance,
			DriftCents: account.CurrentBalance.Cents - (account.InitialBalance.Cents + effects),
		}
		return nil
	})
	if err != nil {
		return AuditReport{}, wrapStore("verify account", err)
	}

	if !report.Consistent() {
		slog.ErrorContext(ctx, "Balance drift detected",
			"account_id", report.AccountID,
			"expected_cents", report.Expected.Cents,
			"actual_cents", report.Actual.Cents,
			"drift_cents", report.DriftCents)
	}
	return report, nil
}

// VerifyAllAccounts audits every account and returns the reports that drifted.
func (s *Service) VerifyAllAccounts(ctx context.Context) ([]AuditReport, error) {
	accounts, err := s.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}

	var drifted []AuditReport
	for _, a := range accounts {
		report, err := s.VerifyAccount(ctx, a.ID)
		if err != nil {
			return drifted, err
		}
		if !report.Consistent() {
			drifted = append(drifted, report)
		}
	}
	return drifted, nil
}
