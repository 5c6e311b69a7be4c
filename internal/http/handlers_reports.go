package http

import (
	"net/http"

	"sakinah/internal/aggregate"
	"sakinah/internal/core"
	"sakinah/internal/log"
)

type totalsResponse struct {
	All      aggregate.Totals `json:"all"`
	Headline aggregate.Totals `json:"headline"`
}

// report serves a computed body through the report memo. Entries are keyed
// by the request and today's date so defaults that depend on the date roll
// over at midnight.
func (s *Server) report(w http.ResponseWriter, r *http.Request, compute func() (any, error)) {
	key := s.ctrl.Today().String() + " " + r.URL.Path + "?" + r.URL.RawQuery
	body, hit, err := s.reports.Get(key, compute)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	status := "MISS"
	if hit {
		status = "HIT"
	}
	NewJSONResponse().Header("X-Cache", status).Body(body).Write(w)
}

func (s *Server) handleTotals(w http.ResponseWriter, r *http.Request) {
	s.report(w, r, func() (any, error) {
		txs := s.ctrl.Transactions()
		return totalsResponse{
			All:      aggregate.ComputeTotals(txs),
			Headline: aggregate.HeadlineTotals(txs),
		}, nil
	})
}

type dateGroup struct {
	Date         string             `json:"date"`
	Transactions []core.Transaction `json:"transactions"`
}

// handleGroups returns the history list bucketed by day, newest day first.
func (s *Server) handleGroups(w http.ResponseWriter, r *http.Request) {
	s.report(w, r, func() (any, error) {
		groups := aggregate.GroupByDate(aggregate.HistoryView(s.ctrl.Transactions()))
		out := make([]dateGroup, 0, len(groups))
		for _, d := range aggregate.SortedDates(groups) {
			out = append(out, dateGroup{Date: d, Transactions: groups[d]})
		}
		return out, nil
	})
}

// handleSeries defaults to the last seven days ending today. Spans over
// aggregate.MaxSeriesDays are rejected.
func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	s.report(w, r, func() (any, error) {
		q := r.URL.Query()
		end, err := parseDateQuery(q, "end", s.ctrl.Today())
		if err != nil {
			return nil, err
		}
		start, err := parseDateQuery(q, "start", end.AddDays(-6))
		if err != nil {
			return nil, err
		}
		if err := aggregate.CheckRange(start, end); err != nil {
			return nil, err
		}
		return aggregate.SeriesForRange(s.ctrl.Transactions(), start, end), nil
	})
}

func (s *Server) handleWeekly(w http.ResponseWriter, r *http.Request) {
	s.report(w, r, func() (any, error) {
		ref, err := parseDateQuery(r.URL.Query(), "ref", s.ctrl.Today())
		if err != nil {
			return nil, err
		}
		return aggregate.WeeklySeries(s.ctrl.Transactions(), ref), nil
	})
}

func (s *Server) handleBreakdown(w http.ResponseWriter, r *http.Request) {
	s.report(w, r, func() (any, error) {
		typ, err := parseTypeQuery(r.URL.Query(), "type")
		if err != nil {
			return nil, err
		}
		if typ == "" {
			typ = core.Expense
		}
		slices := aggregate.Breakdown(s.ctrl.Transactions(), typ)
		if slices == nil {
			slices = []aggregate.Slice{}
		}
		return slices, nil
	})
}

type periodResponse struct {
	Start         string               `json:"start"`
	End           string               `json:"end"`
	PreviousStart string               `json:"previous_start"`
	PreviousEnd   string               `json:"previous_end"`
	Net           int64                `json:"net"`
	Rollover      *core.Transaction    `json:"rollover,omitempty"`
	Income        []core.Transaction   `json:"income"`
	Series        []aggregate.DayPoint `json:"series"`
}

// handlePeriod describes the budgeting period containing ?today= (default:
// today), including any carry-over from the period before it.
func (s *Server) handlePeriod(w http.ResponseWriter, r *http.Request) {
	s.report(w, r, func() (any, error) {
		day, err := parseDateQuery(r.URL.Query(), "today", s.ctrl.Today())
		if err != nil {
			return nil, err
		}

		txs := s.ctrl.Transactions()
		now := s.ctrl.Now()
		p := s.policy.PeriodFor(day)
		prev := s.policy.Previous(p)

		resp := periodResponse{
			Start:         p.Start.String(),
			End:           p.End.String(),
			PreviousStart: prev.Start.String(),
			PreviousEnd:   prev.End.String(),
			Net:           aggregate.PeriodNet(txs, p),
			Income:        aggregate.PeriodIncome(txs, s.policy, p, now),
			Series:        aggregate.PeriodSeries(txs, s.policy, p, now),
		}
		if rollover, ok := aggregate.Rollover(txs, s.policy, p, now); ok {
			resp.Rollover = &rollover
		}
		if resp.Income == nil {
			resp.Income = []core.Transaction{}
		}
		return resp, nil
	})
}
