package http

import (
	"time"

	"pace/internal/core"
	"pace/internal/ledger"
)

// Wire representations. Amounts travel as cents plus a formatted decimal
// string; incoming amounts are decimal strings ("12.34") parsed with half-up
// rounding.

type accountDTO struct {
	ID                  int64  `json:"id"`
	Name                string `json:"name"`
	Type                string `json:"type"`
	Currency            string `json:"currency"`
	InitialBalanceCents int64  `json:"initial_balance_cents"`
	CurrentBalanceCents int64  `json:"current_balance_cents"`
	CurrentBalance      string `json:"current_balance"`
	IncludeInTotal      bool   `json:"include_in_total"`
	Color               string `json:"color,omitempty"`
	Icon                string `json:"icon,omitempty"`
	CreatedAt           string `json:"created_at"`
	UpdatedAt           string `json:"updated_at"`
}

func toAccountDTO(a core.Account) accountDTO {
	return accountDTO{
		ID:                  a.ID,
		Name:                a.Name,
		Type:                string(a.Type),
		Currency:            a.Currency,
		InitialBalanceCents: a.InitialBalance.Cents,
		CurrentBalanceCents: a.CurrentBalance.Cents,
		CurrentBalance:      a.CurrentBalance.String(),
		IncludeInTotal:      a.IncludeInTotal,
		Color:               a.Color,
		Icon:                a.Icon,
		CreatedAt:           a.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:           a.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

type transactionDTO struct {
	ID          int64  `json:"id"`
	Type        string `json:"type"`
	AmountCents int64  `json:"amount_cents"`
	Amount      string `json:"amount"`
	Date        string `json:"date"`
	AccountID   int64  `json:"account_id"`
	CategoryID  *int64 `json:"category_id"`
	ToAccountID *int64 `json:"to_account_id"`
	Note        string `json:"note,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

func toTransactionDTO(t core.Transaction) transactionDTO {
	return transactionDTO{
		ID:          t.ID,
		Type:        string(t.Type),
		AmountCents: t.Amount.Cents,
		Amount:      t.Amount.String(),
		Date:        t.Date.UTC().Format("2006-01-02"),
		AccountID:   t.AccountID,
		CategoryID:  t.CategoryID,
		ToAccountID: t.ToAccountID,
		Note:        t.Note,
		CreatedAt:   t.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   t.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func toTransactionDTOs(ts []core.Transaction) []transactionDTO {
	out := make([]transactionDTO, len(ts))
	for i, t := range ts {
		out[i] = toTransactionDTO(t)
	}
	return out
}

type categoryDTO struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	Icon      string `json:"icon,omitempty"`
	Color     string `json:"color,omitempty"`
	ParentID  *int64 `json:"parent_id"`
	IsDefault bool   `json:"is_default"`
}

func toCategoryDTO(c core.Category) categoryDTO {
	return categoryDTO{
		ID:        c.ID,
		Name:      c.Name,
		Type:      string(c.Type),
		Icon:      c.Icon,
		Color:     c.Color,
		ParentID:  c.ParentID,
		IsDefault: c.IsDefault,
	}
}

type statsDTO struct {
	TotalIncomeCents  int64  `json:"total_income_cents"`
	TotalIncome       string `json:"total_income"`
	TotalExpenseCents int64  `json:"total_expense_cents"`
	TotalExpense      string `json:"total_expense"`
	NetCents          int64  `json:"net_cents"`
	Net               string `json:"net"`
	Count             int64  `json:"count"`
}

func toStatsDTO(s core.Stats) statsDTO {
	return statsDTO{
		TotalIncomeCents:  s.TotalIncome.Cents,
		TotalIncome:       s.TotalIncome.String(),
		TotalExpenseCents: s.TotalExpense.Cents,
		TotalExpense:      s.TotalExpense.String(),
		NetCents:          s.Net.Cents,
		Net:               s.Net.String(),
		Count:             s.Count,
	}
}

type auditDTO struct {
	AccountID     int64  `json:"account_id"`
	ExpectedCents int64  `json:"expected_cents"`
	ActualCents   int64  `json:"actual_cents"`
	DriftCents    int64  `json:"drift_cents"`
	Consistent    bool   `json:"consistent"`
	Expected      string `json:"expected"`
	Actual        string `json:"actual"`
}

func toAuditDTO(r ledger.AuditReport) auditDTO {
	return auditDTO{
		AccountID:     r.AccountID,
		ExpectedCents: r.Expected.Cents,
		ActualCents:   r.Actual.Cents,
		DriftCents:    r.DriftCents,
		Consistent:    r.Consistent(),
		Expected:      r.Expected.String(),
		Actual:        r.Actual.String(),
	}
}
