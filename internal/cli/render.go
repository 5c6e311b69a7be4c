package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"

	"sakinah/internal/aggregate"
	"sakinah/internal/core"
)

// Summary is what the summary command prints for one owner.
type Summary struct {
	Owner     string
	Headline  aggregate.Totals
	Period    aggregate.Period
	PeriodNet int64
	Rollover  *core.Transaction
	Income    []core.Transaction
	Breakdown []aggregate.Slice
}

// BuildSummary derives the headline totals, the budgeting period containing
// day with its rollover as seen at now, and the period's expense breakdown.
func BuildSummary(owner string, txs []core.Transaction, policy aggregate.PeriodPolicy, day core.Date, now time.Time) Summary {
	p := policy.PeriodFor(day)
	inPeriod := aggregate.Filter{From: p.Start.String(), To: p.End.String()}.Apply(txs)

	s := Summary{
		Owner:     owner,
		Headline:  aggregate.HeadlineTotals(txs),
		Period:    p,
		PeriodNet: aggregate.PeriodNet(txs, p),
		Income:    aggregate.PeriodIncome(txs, policy, p, now),
		Breakdown: aggregate.Breakdown(inPeriod, core.Expense),
	}
	if r, ok := aggregate.Rollover(txs, policy, p, now); ok {
		s.Rollover = &r
	}
	return s
}

// Rupiah formats n as "Rp 1.500.000".
func Rupiah(n int64) string {
	return "Rp " + core.FormatRupiah(n)
}

func row(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, LabelStyle.Render(label), value)
}

// RenderSummary prints s as a few boxed sections.
func RenderSummary(w io.Writer, s Summary) error {
	totals := strings.Join([]string{
		TitleStyle.Render("Saldo · " + s.Owner),
		row("Pemasukan", IncomeStyle.Render(Rupiah(s.Headline.Income))),
		row("Pengeluaran", ExpenseStyle.Render(Rupiah(s.Headline.Expense))),
		row("Cash", Rupiah(s.Headline.Cash)),
		row("Bank", Rupiah(s.Headline.Bank)),
	}, "\n")

	period := []string{
		TitleStyle.Render("Periode " + s.Period.Start.Format("02 Jan") + " - " + s.Period.End.Format("02 Jan 2006")),
		row("Sisa", Rupiah(s.PeriodNet)),
	}
	if s.Rollover != nil {
		period = append(period, row(core.RolloverCategory, IncomeStyle.Render(Rupiah(s.Rollover.Amount))))
	}
	for _, tx := range s.Income {
		if s.Rollover != nil && tx.ID == s.Rollover.ID {
			continue
		}
		period = append(period, row(tx.Date, IncomeStyle.Render(Rupiah(tx.Amount))+" "+SubtleStyle.Render(tx.Category)))
	}

	breakdown := []string{TitleStyle.Render("Pengeluaran per kategori")}
	if len(s.Breakdown) == 0 {
		breakdown = append(breakdown, SubtleStyle.Render("(belum ada pengeluaran)"))
	}
	for _, sl := range s.Breakdown {
		swatch := lipgloss.NewStyle().Foreground(lipgloss.Color(sl.Color)).Render("■")
		breakdown = append(breakdown, swatch+" "+row(sl.Label, Rupiah(sl.Value)))
	}

	out := lipgloss.JoinVertical(lipgloss.Left,
		BoxStyle.Render(totals),
		BoxStyle.Render(strings.Join(period, "\n")),
		BoxStyle.Render(strings.Join(breakdown, "\n")),
	)
	_, err := fmt.Fprintln(w, out)
	return err
}

// RenderTransactions prints txs as a table in the given order.
func RenderTransactions(w io.Writer, txs []core.Transaction) error {
	if len(txs) == 0 {
		_, err := fmt.Fprintln(w, SubtleStyle.Render("No transactions."))
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
		TableHeaderStyle.Render("ID"),
		TableHeaderStyle.Render("Date"),
		TableHeaderStyle.Render("Type"),
		TableHeaderStyle.Render("Account"),
		TableHeaderStyle.Render("Category"),
		TableHeaderStyle.Render("Amount"))
	for _, tx := range txs {
		amount := IncomeStyle.Render("+" + Rupiah(tx.Amount))
		if tx.Type == core.Expense {
			amount = ExpenseStyle.Render("-" + Rupiah(tx.Amount))
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", tx.ID, tx.Date, tx.Type, tx.Account, tx.Category, amount)
	}
	return tw.Flush()
}

// RenderCategories prints cats as an id/type/name table.
func RenderCategories(w io.Writer, cats []core.Category) error {
	if len(cats) == 0 {
		_, err := fmt.Fprintln(w, SubtleStyle.Render("No categories. Use 'sakinah categories add' to create one."))
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\t%s\t%s\n",
		TableHeaderStyle.Render("ID"),
		TableHeaderStyle.Render("Type"),
		TableHeaderStyle.Render("Name"))
	for _, c := range cats {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", c.ID, c.Type, c.Name)
	}
	return tw.Flush()
}
