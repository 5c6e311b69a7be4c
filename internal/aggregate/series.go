package aggregate

import (
	"errors"
	"fmt"
	"time"

	"sakinah/internal/core"
)

// MaxSeriesDays bounds the span a caller may request from SeriesForRange.
const MaxSeriesDays = 366

var ErrRangeTooLarge = errors.New("date range too large")

// DayPoint is one day of an income/expense series.
type DayPoint struct {
	Date    string `json:"date"`
	Label   string `json:"label"`
	Income  int64  `json:"income"`
	Expense int64  `json:"expense"`
}

var weekdayLabels = [7]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// CheckRange rejects spans longer than MaxSeriesDays days, counting both
// bounds. Order does not matter.
func CheckRange(start, end core.Date) error {
	if end.Before(start) {
		start, end = end, start
	}
	if days := int(end.Sub(start.Time)/(24*time.Hour)) + 1; days > MaxSeriesDays {
		return fmt.Errorf("%w: %d days, max %d", ErrRangeTooLarge, days, MaxSeriesDays)
	}
	return nil
}

// SeriesForRange returns one point per day in [start, end], ascending.
// Withdrawals are excluded. Reversed bounds are swapped.
func SeriesForRange(txs []core.Transaction, start, end core.Date) []DayPoint {
	if end.Before(start) {
		start, end = end, start
	}

	byDay := make(map[string]*DayPoint)
	var out []DayPoint
	for d := start; !d.After(end); d = d.AddDays(1) {
		out = append(out, DayPoint{Date: d.String(), Label: d.Format("02 Jan")})
	}
	for i := range out {
		byDay[out[i].Date] = &out[i]
	}

	for _, tx := range txs {
		if tx.IsWithdrawal() {
			continue
		}
		p, ok := byDay[tx.Date]
		if !ok {
			continue
		}
		switch tx.Type {
		case core.Income:
			p.Income += tx.Amount
		case core.Expense:
			p.Expense += tx.Amount
		}
	}
	return out
}

// WeekStart returns the Monday of the week containing d.
func WeekStart(d core.Date) core.Date {
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDays(-offset)
}

// WeeklySeries covers Monday through Sunday of the week containing ref,
// labelled Mon..Sun.
func WeeklySeries(txs []core.Transaction, ref core.Date) []DayPoint {
	start := WeekStart(ref)
	points := SeriesForRange(txs, start, start.AddDays(6))
	for i := range points {
		points[i].Label = weekdayLabels[i]
	}
	return points
}
