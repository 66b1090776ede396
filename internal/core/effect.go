package core

// BalanceDelta is one signed adjustment to a single account's cached balance.
type BalanceDelta struct {
	AccountID int64
	Cents     int64
}

// Effect computes the set of balance deltas a transaction contributes:
//
//	income:   +amount on the account
//	expense:  -amount on the account
//	transfer: -amount on the source, +amount on the destination
//
// Deltas are returned in ascending account-id order so callers always touch
// account rows in a fixed global order.
func Effect(typ TransactionType, amount Money, accountID int64, toAccountID *int64) []BalanceDelta {
	switch typ {
	case Income:
		return []BalanceDelta{{AccountID: accountID, Cents: amount.Cents}}
	case Expense:
		return []BalanceDelta{{AccountID: accountID, Cents: -amount.Cents}}
	case Transfer:
		if toAccountID == nil {
			return nil
		}
		out := []BalanceDelta{
			{AccountID: accountID, Cents: -amount.Cents},
			{AccountID: *toAccountID, Cents: amount.Cents},
		}
		if out[1].AccountID < out[0].AccountID {
			out[0], out[1] = out[1], out[0]
		}
		return out
	}
	return nil
}

// TransactionEffect is Effect applied to a stored transaction.
func TransactionEffect(t Transaction) []BalanceDelta {
	return Effect(t.Type, t.Amount, t.AccountID, t.ToAccountID)
}

// Reverse negates every delta, undoing a previously applied effect exactly.
func Reverse(deltas []BalanceDelta) []BalanceDelta {
	out := make([]BalanceDelta, len(deltas))
	for i, d := range deltas {
		out[i] = BalanceDelta{AccountID: d.AccountID, Cents: -d.Cents}
	}
	return out
}
