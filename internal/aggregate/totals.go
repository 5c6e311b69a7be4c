// Package aggregate derives balances, groupings, series and breakdowns from a
// snapshot of transactions. Every function is pure; callers pass in whatever
// the cache returned and nothing here is ever written back.
package aggregate

import (
	"slices"

	"sakinah/internal/core"
)

type Totals struct {
	Income  int64 `json:"income"`
	Expense int64 `json:"expense"`
	Cash    int64 `json:"cash"`
	Bank    int64 `json:"bank"`
}

// ComputeTotals sums every transaction, withdrawal pairs included.
// Cash and Bank are running balances (income minus expense per account).
func ComputeTotals(txs []core.Transaction) Totals {
	var t Totals
	for _, tx := range txs {
		switch tx.Type {
		case core.Income:
			t.Income += tx.Amount
		case core.Expense:
			t.Expense += tx.Amount
		}
		switch tx.Account {
		case core.Cash:
			t.Cash += tx.Signed()
		case core.Bank:
			t.Bank += tx.Signed()
		}
	}
	return t
}

// HeadlineTotals is ComputeTotals with withdrawal rows left out of Income and
// Expense. Balances still include them since the money did move.
func HeadlineTotals(txs []core.Transaction) Totals {
	t := ComputeTotals(txs)
	for _, tx := range txs {
		if !tx.IsWithdrawal() {
			continue
		}
		switch tx.Type {
		case core.Income:
			t.Income -= tx.Amount
		case core.Expense:
			t.Expense -= tx.Amount
		}
	}
	return t
}

// GroupByDate buckets transactions by their raw date string, keeping input
// order inside each bucket.
func GroupByDate(txs []core.Transaction) map[string][]core.Transaction {
	groups := make(map[string][]core.Transaction)
	for _, tx := range txs {
		groups[tx.Date] = append(groups[tx.Date], tx)
	}
	return groups
}

// SortedDates returns the group keys newest first.
func SortedDates(groups map[string][]core.Transaction) []string {
	dates := make([]string, 0, len(groups))
	for d := range groups {
		dates = append(dates, d)
	}
	slices.Sort(dates)
	slices.Reverse(dates)
	return dates
}

// WithoutWithdrawals drops both halves of every withdrawal pair.
func WithoutWithdrawals(txs []core.Transaction) []core.Transaction {
	out := make([]core.Transaction, 0, len(txs))
	for _, tx := range txs {
		if !tx.IsWithdrawal() {
			out = append(out, tx)
		}
	}
	return out
}

// HistoryView hides the cash-income half of each withdrawal so a withdrawal
// shows up once in transaction history, as the bank expense.
func HistoryView(txs []core.Transaction) []core.Transaction {
	out := make([]core.Transaction, 0, len(txs))
	for _, tx := range txs {
		if tx.IsWithdrawal() && tx.Type == core.Income && tx.Account == core.Cash {
			continue
		}
		out = append(out, tx)
	}
	return out
}
