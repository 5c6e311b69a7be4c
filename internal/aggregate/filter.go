package aggregate

import "sakinah/internal/core"

// Filter narrows a transaction list. Zero fields match everything; From and
// To are inclusive.
type Filter struct {
	Type core.TxType
	From string
	To   string
}

func (f Filter) Match(tx core.Transaction) bool {
	if f.Type != "" && tx.Type != f.Type {
		return false
	}
	if f.From != "" && tx.Date < f.From {
		return false
	}
	if f.To != "" && tx.Date > f.To {
		return false
	}
	return true
}

// Apply keeps the matching transactions in input order.
func (f Filter) Apply(txs []core.Transaction) []core.Transaction {
	out := make([]core.Transaction, 0, len(txs))
	for _, tx := range txs {
		if f.Match(tx) {
			out = append(out, tx)
		}
	}
	return out
}

// LastSevenDays is the week ending on today, inclusive.
func LastSevenDays(today core.Date) Filter {
	return Filter{From: today.AddDays(-6).String(), To: today.String()}
}

// MonthRange covers a whole calendar month.
func MonthRange(year, month int) Filter {
	first := core.NewDate(year, month, 1)
	last := core.NewDate(year, month+1, 0)
	return Filter{From: first.String(), To: last.String()}
}
