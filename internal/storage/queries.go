package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"pace/internal/core"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

const accountColumns = `id, name, type, currency, initial_balance_cents, current_balance_cents, include_in_total, color, icon, created_at, updated_at`

func scanAccount(row interface{ Scan(...any) error }) (core.Account, error) {
	var a core.Account
	var includeInTotal int64
	err := row.Scan(
		&a.ID, &a.Name, &a.Type, &a.Currency,
		&a.InitialBalance.Cents, &a.CurrentBalance.Cents,
		&includeInTotal, &a.Color, &a.Icon,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return core.Account{}, err
	}
	a.IncludeInTotal = includeInTotal != 0
	return a, nil
}

const insertAccount = `
INSERT INTO accounts (name, type, currency, initial_balance_cents, current_balance_cents, include_in_total, color, icon)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
RETURNING ` + accountColumns

func (q *Queries) InsertAccount(ctx context.Context, in core.CreateAccountInput) (core.Account, error) {
	includeInTotal := int64(0)
	if in.IncludeInTotal {
		includeInTotal = 1
	}
	row := q.db.QueryRowContext(ctx, insertAccount,
		in.Name, string(in.Type), in.Currency,
		in.InitialBalance.Cents, in.InitialBalance.Cents,
		includeInTotal, in.Color, in.Icon,
	)
	return scanAccount(row)
}

const getAccount = `SELECT ` + accountColumns + ` FROM accounts WHERE id = ?`

func (q *Queries) GetAccount(ctx context.Context, id int64) (core.Account, error) {
	a, err := scanAccount(q.db.QueryRowContext(ctx, getAccount, id))
	if err == sql.ErrNoRows {
		return core.Account{}, core.ErrAccountNotFound
	}
	return a, err
}

const listAccounts = `SELECT ` + accountColumns + ` FROM accounts ORDER BY name, id`

func (q *Queries) ListAccounts(ctx context.Context) ([]core.Account, error) {
	rows, err := q.db.QueryContext(ctx, listAccounts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []core.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// UpdateAccountFields patches account metadata. Balance columns are not
// reachable from here; only IncrementAccountBalance moves them.
func (q *Queries) UpdateAccountFields(ctx context.Context, id int64, p core.AccountPatch) (core.Account, error) {
	sets := []string{"updated_at = CURRENT_TIMESTAMP"}
	args := []any{}
	if p.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *p.Name)
	}
	if p.Type != nil {
		sets = append(sets, "type = ?")
		args = append(args, string(*p.Type))
	}
	if p.Currency != nil {
		sets = append(sets, "currency = ?")
		args = append(args, *p.Currency)
	}
	if p.IncludeInTotal != nil {
		v := int64(0)
		if *p.IncludeInTotal {
			v = 1
		}
		sets = append(sets, "include_in_total = ?")
		args = append(args, v)
	}
	if p.Color != nil {
		sets = append(sets, "color = ?")
		args = append(args, *p.Color)
	}
	if p.Icon != nil {
		sets = append(sets, "icon = ?")
		args = append(args, *p.Icon)
	}
	args = append(args, id)

	query := "UPDATE accounts SET " + strings.Join(sets, ", ") + " WHERE id = ? RETURNING " + accountColumns
	a, err := scanAccount(q.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return core.Account{}, core.ErrAccountNotFound
	}
	return a, err
}

const deleteAccount = `DELETE FROM accounts WHERE id = ?`

func (q *Queries) DeleteAccount(ctx context.Context, id int64) error {
	res, err := q.db.ExecContext(ctx, deleteAccount, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return core.ErrAccountNotFound
	}
	return nil
}

const incrementAccountBalance = `
UPDATE accounts
SET current_balance_cents = current_balance_cents + ?,
    updated_at = CURRENT_TIMESTAMP
WHERE id = ?`

// IncrementAccountBalance applies one signed delta to an account's cached
// balance. The relative update keeps concurrent writers correct without a
// prior read.
func (q *Queries) IncrementAccountBalance(ctx context.Context, id int64, deltaCents int64) error {
	res, err := q.db.ExecContext(ctx, incrementAccountBalance, deltaCents, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return core.ErrAccountNotFound
	}
	return nil
}

const totalBalance = `
SELECT COALESCE(SUM(current_balance_cents), 0)
FROM accounts
WHERE include_in_total = 1`

func (q *Queries) TotalBalance(ctx context.Context) (core.Money, error) {
	var cents int64
	err := q.db.QueryRowContext(ctx, totalBalance).Scan(&cents)
	return core.Money{Cents: cents}, err
}

const countAccountTransactions = `
SELECT COUNT(*) FROM transactions WHERE account_id = ?1 OR to_account_id = ?1`

func (q *Queries) CountAccountTransactions(ctx context.Context, accountID int64) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countAccountTransactions, accountID).Scan(&n)
	return n, err
}

const sumAccountEffects = `
SELECT COALESCE(SUM(CASE
    WHEN type = 'income'   AND account_id = ?1    THEN amount_cents
    WHEN type = 'expense'  AND account_id = ?1    THEN -amount_cents
    WHEN type = 'transfer' AND account_id = ?1    THEN -amount_cents
    WHEN type = 'transfer' AND to_account_id = ?1 THEN amount_cents
    ELSE 0
END), 0)
FROM transactions
WHERE account_id = ?1 OR to_account_id = ?1`

// SumAccountEffects replays every live transaction touching the account and
// returns the net signed effect on its balance. initial + this sum must equal
// the cached current balance.
func (q *Queries) SumAccountEffects(ctx context.Context, accountID int64) (int64, error) {
	var cents int64
	err := q.db.QueryRowContext(ctx, sumAccountEffects, accountID).Scan(&cents)
	return cents, err
}

const transactionColumns = `id, type, amount_cents, date, account_id, category_id, to_account_id, note, created_at, updated_at`

func scanTransaction(row interface{ Scan(...any) error }) (core.Transaction, error) {
	var t core.Transaction
	var categoryID, toAccountID sql.NullInt64
	err := row.Scan(
		&t.ID, &t.Type, &t.Amount.Cents, &t.Date, &t.AccountID,
		&categoryID, &toAccountID, &t.Note,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return core.Transaction{}, err
	}
	if categoryID.Valid {
		t.CategoryID = &categoryID.Int64
	}
	if toAccountID.Valid {
		t.ToAccountID = &toAccountID.Int64
	}
	return t, nil
}

func nullInt64(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

const insertTransaction = `
INSERT INTO transactions (type, amount_cents, date, account_id, category_id, to_account_id, note)
VALUES (?, ?, ?, ?, ?, ?, ?)
RETURNING ` + transactionColumns

func (q *Queries) InsertTransaction(ctx context.Context, in core.CreateTransactionInput) (core.Transaction, error) {
	row := q.db.QueryRowContext(ctx, insertTransaction,
		string(in.Type), in.Amount.Cents, in.Date.UTC(),
		in.AccountID, nullInt64(in.CategoryID), nullInt64(in.ToAccountID), in.Note,
	)
	return scanTransaction(row)
}

const getTransaction = `SELECT ` + transactionColumns + ` FROM transactions WHERE id = ?`

func (q *Queries) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	t, err := scanTransaction(q.db.QueryRowContext(ctx, getTransaction, id))
	if err == sql.ErrNoRows {
		return core.Transaction{}, core.ErrTransactionNotFound
	}
	return t, err
}

const updateTransaction = `
UPDATE transactions
SET type = ?, amount_cents = ?, date = ?, account_id = ?, category_id = ?, to_account_id = ?, note = ?,
    updated_at = CURRENT_TIMESTAMP
WHERE id = ?
RETURNING ` + transactionColumns

// UpdateTransaction overwrites every mutable column with the merged state the
// caller already validated.
func (q *Queries) UpdateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	row := q.db.QueryRowContext(ctx, updateTransaction,
		string(t.Type), t.Amount.Cents, t.Date.UTC(),
		t.AccountID, nullInt64(t.CategoryID), nullInt64(t.ToAccountID), t.Note,
		t.ID,
	)
	out, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return core.Transaction{}, core.ErrTransactionNotFound
	}
	return out, err
}

const deleteTransaction = `DELETE FROM transactions WHERE id = ?`

func (q *Queries) DeleteTransaction(ctx context.Context, id int64) error {
	res, err := q.db.ExecContext(ctx, deleteTransaction, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return core.ErrTransactionNotFound
	}
	return nil
}

// ListTransactionsParams filters the transaction list; nil fields are not
// applied. Limit <= 0 means no limit.
type ListTransactionsParams struct {
	AccountID  *int64
	CategoryID *int64
	Type       *core.TransactionType
	From       *time.Time
	To         *time.Time
	Limit      int64
	Offset     int64
}

func (q *Queries) ListTransactions(ctx context.Context, p ListTransactionsParams) ([]core.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions`
	var conds []string
	var args []any
	if p.AccountID != nil {
		conds = append(conds, "(account_id = ? OR to_account_id = ?)")
		args = append(args, *p.AccountID, *p.AccountID)
	}
	if p.CategoryID != nil {
		conds = append(conds, "category_id = ?")
		args = append(args, *p.CategoryID)
	}
	if p.Type != nil {
		conds = append(conds, "type = ?")
		args = append(args, string(*p.Type))
	}
	if p.From != nil {
		conds = append(conds, "date >= ?")
		args = append(args, p.From.UTC())
	}
	if p.To != nil {
		conds = append(conds, "date <= ?")
		args = append(args, p.To.UTC())
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY date DESC, id DESC"
	if p.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, p.Limit, p.Offset)
	}

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, t)
	}
	return transactions, rows.Err()
}

const transactionStats = `
SELECT
    COALESCE(SUM(CASE WHEN type = 'income' THEN amount_cents ELSE 0 END), 0),
    COALESCE(SUM(CASE WHEN type = 'expense' THEN amount_cents ELSE 0 END), 0),
    COUNT(*)
FROM transactions
WHERE date >= ? AND date <= ?`

// TransactionStats summarizes a date range. Transfers count toward Count but
// move money between accounts, so they contribute to neither sum.
func (q *Queries) TransactionStats(ctx context.Context, from, to time.Time) (core.Stats, error) {
	var s core.Stats
	err := q.db.QueryRowContext(ctx, transactionStats, from.UTC(), to.UTC()).
		Scan(&s.TotalIncome.Cents, &s.TotalExpense.Cents, &s.Count)
	if err != nil {
		return core.Stats{}, err
	}
	s.Net = core.Money{Cents: s.TotalIncome.Cents - s.TotalExpense.Cents}
	return s, nil
}

const categoryColumns = `id, name, type, icon, color, parent_id, is_default, created_at`

func scanCategory(row interface{ Scan(...any) error }) (core.Category, error) {
	var c core.Category
	var parentID sql.NullInt64
	var isDefault int64
	err := row.Scan(&c.ID, &c.Name, &c.Type, &c.Icon, &c.Color, &parentID, &isDefault, &c.CreatedAt)
	if err != nil {
		return core.Category{}, err
	}
	if parentID.Valid {
		c.ParentID = &parentID.Int64
	}
	c.IsDefault = isDefault != 0
	return c, nil
}

const insertCategory = `
INSERT INTO categories (name, type, icon, color, parent_id, is_default)
VALUES (?, ?, ?, ?, ?, ?)
RETURNING ` + categoryColumns

func (q *Queries) InsertCategory(ctx context.Context, c core.Category) (core.Category, error) {
	isDefault := int64(0)
	if c.IsDefault {
		isDefault = 1
	}
	row := q.db.QueryRowContext(ctx, insertCategory,
		c.Name, string(c.Type), c.Icon, c.Color, nullInt64(c.ParentID), isDefault,
	)
	return scanCategory(row)
}

const getCategory = `SELECT ` + categoryColumns + ` FROM categories WHERE id = ?`

func (q *Queries) GetCategory(ctx context.Context, id int64) (core.Category, error) {
	c, err := scanCategory(q.db.QueryRowContext(ctx, getCategory, id))
	if err == sql.ErrNoRows {
		return core.Category{}, core.ErrCategoryNotFound
	}
	return c, err
}

const listCategories = `SELECT ` + categoryColumns + ` FROM categories ORDER BY type, name`

func (q *Queries) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := q.db.QueryContext(ctx, listCategories)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []core.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

const deleteCategory = `DELETE FROM categories WHERE id = ?`

// DeleteCategory removes a category; transactions referencing it keep their
// row with category_id set to null by the foreign key.
func (q *Queries) DeleteCategory(ctx context.Context, id int64) error {
	res, err := q.db.ExecContext(ctx, deleteCategory, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return core.ErrCategoryNotFound
	}
	return nil
}
