package aggregate

import (
	"time"

	"sakinah/internal/core"
)

// Period is an inclusive range of calendar days.
type Period struct {
	Start core.Date
	End   core.Date
}

func (p Period) Contains(date string) bool {
	return date >= p.Start.String() && date <= p.End.String()
}

func (p Period) String() string {
	return p.Start.String() + ".." + p.End.String()
}

// PeriodPolicy decides the budgeting window a day belongs to.
type PeriodPolicy interface {
	PeriodFor(day core.Date) Period
	Previous(p Period) Period
}

// DefaultCutoffDay starts every budgeting period on the 21st.
const DefaultCutoffDay = 21

// CutoffPolicy runs periods from Day of one month to Day-1 of the next.
type CutoffPolicy struct {
	Day int
}

func NewCutoffPolicy(day int) CutoffPolicy {
	if day < 2 || day > 28 {
		day = DefaultCutoffDay
	}
	return CutoffPolicy{Day: day}
}

func (c CutoffPolicy) PeriodFor(day core.Date) Period {
	y, m := day.Year(), day.Month()
	if day.Day() < c.Day {
		m--
	}
	return Period{
		Start: core.NewDate(y, m, c.Day),
		End:   core.NewDate(y, m+1, c.Day-1),
	}
}

func (c CutoffPolicy) Previous(p Period) Period {
	return c.PeriodFor(p.Start.AddDays(-1))
}

// PeriodNet is income minus expense inside p, withdrawals excluded, floored at zero.
func PeriodNet(txs []core.Transaction, p Period) int64 {
	var net int64
	for _, tx := range txs {
		if tx.IsWithdrawal() || !p.Contains(tx.Date) {
			continue
		}
		net += tx.Signed()
	}
	return max(net, 0)
}

// Rollover projects the previous period's positive net into p as a synthetic
// cash income dated p.Start. It only exists once now is past p.End. The row
// is computed on read and must never be stored.
func Rollover(txs []core.Transaction, policy PeriodPolicy, p Period, now time.Time) (core.Transaction, bool) {
	if !core.Today(now).After(p.End) {
		return core.Transaction{}, false
	}
	net := PeriodNet(txs, policy.Previous(p))
	if net <= 0 {
		return core.Transaction{}, false
	}
	return core.Transaction{
		ID:       "rollover-" + p.Start.String(),
		Type:     core.Income,
		Amount:   net,
		Date:     p.Start.String(),
		Account:  core.Cash,
		Category: core.RolloverCategory,
	}, true
}

// PeriodIncome lists the income lines of p: the rollover first when present,
// then the stored non-withdrawal income rows.
func PeriodIncome(txs []core.Transaction, policy PeriodPolicy, p Period, now time.Time) []core.Transaction {
	var out []core.Transaction
	if r, ok := Rollover(txs, policy, p, now); ok {
		out = append(out, r)
	}
	for _, tx := range txs {
		if tx.Type == core.Income && !tx.IsWithdrawal() && p.Contains(tx.Date) {
			out = append(out, tx)
		}
	}
	return out
}

// PeriodSeries is the daily series of p with any rollover added to the first day.
func PeriodSeries(txs []core.Transaction, policy PeriodPolicy, p Period, now time.Time) []DayPoint {
	points := SeriesForRange(txs, p.Start, p.End)
	if r, ok := Rollover(txs, policy, p, now); ok && len(points) > 0 {
		points[0].Income += r.Amount
	}
	return points
}
