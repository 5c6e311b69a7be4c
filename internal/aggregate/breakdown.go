package aggregate

import "sakinah/internal/core"

// Slice is one category's share of a breakdown chart.
type Slice struct {
	Label      string `json:"label"`
	Value      int64  `json:"value"`
	ColorIndex int    `json:"color_index"`
	Color      string `json:"color"`
}

var palettes = map[core.TxType][]string{
	core.Expense: {"#ef4444", "#f97316", "#f59e0b", "#a855f7", "#06b6d4", "#94a3b8"},
	core.Income:  {"#22c55e", "#10b981", "#34d399", "#84cc16", "#14b8a6", "#60a5fa"},
}

// PaletteSize is the number of colors a breakdown cycles through.
const PaletteSize = 6

// Color returns the palette entry for a slice position.
func Color(t core.TxType, index int) string {
	p, ok := palettes[t]
	if !ok {
		p = palettes[core.Expense]
	}
	return p[index%len(p)]
}

// Breakdown sums amounts of type t per category label in first-seen order,
// leaving out withdrawals. Colors are positional, so a category's color
// follows its position and not its identity.
func Breakdown(txs []core.Transaction, t core.TxType) []Slice {
	index := make(map[string]int)
	var out []Slice
	for _, tx := range txs {
		if tx.Type != t || tx.IsWithdrawal() {
			continue
		}
		i, ok := index[tx.Category]
		if !ok {
			i = len(out)
			index[tx.Category] = i
			out = append(out, Slice{Label: tx.Category, ColorIndex: i % PaletteSize, Color: Color(t, i)})
		}
		out[i].Value += tx.Amount
	}
	return out
}
