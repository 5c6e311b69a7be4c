package http

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sakinah/internal/aggregate"
	"sakinah/internal/auth"
	"sakinah/internal/cache"
	"sakinah/internal/core"
	"sakinah/internal/log"
	"sakinah/internal/notify"
	"sakinah/internal/remote/memory"
	"sakinah/internal/services"
)

var fixedNow = time.Date(2025, 9, 15, 10, 0, 0, 0, time.UTC)

type fixture struct {
	srv     *Server
	session *auth.Session
	ctrl    *services.Controller
	gateway *memory.Store
}

func newFixture(t *testing.T, writesPerMinute int) *fixture {
	t.Helper()
	gw := memory.New()
	session := auth.NewSession("test-secret")
	ctrl := services.NewController(cache.NewStore(), gw, session, notify.NewBus(), log.Discard(),
		services.Config{Now: func() time.Time { return fixedNow }})
	require.NoError(t, ctrl.Start(context.Background()))

	srv := NewServer(":0", Deps{
		Controller:      ctrl,
		Session:         session,
		Logger:          log.Discard(),
		WritesPerMinute: writesPerMinute,
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		_ = ctrl.Close(ctx)
	})
	return &fixture{srv: srv, session: session, ctrl: ctrl, gateway: gw}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	f.srv.Handler.ServeHTTP(rr, req)
	if method != http.MethodGet {
		// Let background writes and their change-feed echoes settle.
		require.NoError(t, f.ctrl.Flush(context.Background()))
	}
	return rr
}

func (f *fixture) signIn(t *testing.T, owner string) {
	t.Helper()
	token, err := f.session.IssueToken(owner, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/session", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	f.srv.Handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestHealthAndReadiness(t *testing.T) {
	f := newFixture(t, 0)

	rr := f.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = f.do(t, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, "unauthenticated", rr.Body.String())

	f.signIn(t, "owner-1")
	rr = f.do(t, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = f.do(t, http.MethodDelete, "/api/session", "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	rr = f.do(t, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestSecurityHeadersAndRequestID(t *testing.T) {
	f := newFixture(t, 0)
	rr := f.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
	assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
	assert.True(t, strings.HasPrefix(rr.Header().Get("X-Request-ID"), "req_"))

	rr = f.do(t, http.MethodGet, "/.env", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSession(t *testing.T) {
	f := newFixture(t, 0)

	rr := f.do(t, http.MethodPost, "/api/session", `{"token":"not-a-jwt"}`)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "Bearer", rr.Header().Get("WWW-Authenticate"))

	rr = f.do(t, http.MethodPost, "/api/session", `{}`)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	token, err := f.session.IssueToken("owner-1", time.Hour)
	require.NoError(t, err)
	rr = f.do(t, http.MethodPost, "/api/session", `{"token":"`+token+`"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	got := decode[sessionResponse](t, rr)
	assert.Equal(t, "owner-1", got.Owner)
	assert.Equal(t, "ready", got.State)

	rr = f.do(t, http.MethodGet, "/api/session", "")
	assert.Equal(t, "owner-1", decode[sessionResponse](t, rr).Owner)
}

func TestRequestsWithoutOwner(t *testing.T) {
	f := newFixture(t, 0)

	for _, path := range []string{"/api/transactions", "/api/categories", "/api/totals", "/api/period"} {
		rr := f.do(t, http.MethodGet, path, "")
		assert.Equal(t, http.StatusUnauthorized, rr.Code, path)
	}

	rr := f.do(t, http.MethodPost, "/api/transactions",
		`{"type":"expense","amount":1000,"date":"2025-09-01","account":"cash","category":"Makanan"}`)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestTransactionLifecycle(t *testing.T) {
	f := newFixture(t, 0)
	f.signIn(t, "owner-1")

	rr := f.do(t, http.MethodPost, "/api/transactions",
		`{"type":"expense","amount":"Rp 25.000","account":"cash","category":" Makanan ","description":"Nasi goreng"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	created := decode[core.Transaction](t, rr)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, int64(25000), created.Amount)
	assert.Equal(t, "2025-09-15", created.Date, "missing date defaults to today")
	assert.Equal(t, "Makanan", created.Category)

	cases := []struct {
		name string
		body string
		code int
	}{
		{"zero amount", `{"type":"expense","amount":0,"date":"2025-09-01","account":"cash","category":"Makanan"}`, http.StatusUnprocessableEntity},
		{"keypad zero", `{"type":"expense","amount":"000","date":"2025-09-01","account":"cash","category":"Makanan"}`, http.StatusUnprocessableEntity},
		{"amount above cap", `{"type":"income","amount":4611686018427387904,"date":"2025-09-01","account":"cash","category":"Gaji"}`, http.StatusUnprocessableEntity},
		{"keypad above cap", `{"type":"income","amount":"Rp 2.000.000.000.000.000","date":"2025-09-01","account":"cash","category":"Gaji"}`, http.StatusUnprocessableEntity},
		{"bad date", `{"type":"expense","amount":5,"date":"2025-9-1","account":"cash","category":"Makanan"}`, http.StatusUnprocessableEntity},
		{"bad account", `{"type":"expense","amount":5,"date":"2025-09-01","account":"wallet","category":"Makanan"}`, http.StatusUnprocessableEntity},
		{"unknown field", `{"type":"expense","amount":5,"colour":"red"}`, http.StatusBadRequest},
		{"not json", `amount=5`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := f.do(t, http.MethodPost, "/api/transactions", tc.body)
			assert.Equal(t, tc.code, rr.Code, rr.Body.String())
			assert.NotEmpty(t, decode[errorBody](t, rr).Error)
		})
	}

	rr = f.do(t, http.MethodPatch, "/api/transactions/"+created.ID, `{"amount":30000}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, int64(30000), decode[core.Transaction](t, rr).Amount)

	rr = f.do(t, http.MethodGet, "/api/transactions", "")
	require.Equal(t, http.StatusOK, rr.Code)
	list := decode[[]core.Transaction](t, rr)
	require.Len(t, list, 1)
	assert.Equal(t, int64(30000), list[0].Amount)

	rr = f.do(t, http.MethodDelete, "/api/transactions/"+created.ID, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{created.ID}, decode[deleteResponse](t, rr).Deleted)

	rr = f.do(t, http.MethodDelete, "/api/transactions/"+created.ID, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = f.do(t, http.MethodGet, "/api/transactions", "")
	assert.JSONEq(t, `[]`, rr.Body.String())
}

func TestWithdrawalEndpoints(t *testing.T) {
	f := newFixture(t, 0)
	f.signIn(t, "owner-1")

	rr := f.do(t, http.MethodPost, "/api/withdrawals", `{"amount":100000,"date":"2025-09-10"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	pair := decode[[]core.Transaction](t, rr)
	require.Len(t, pair, 2)
	assert.Equal(t, core.Bank, pair[0].Account)
	assert.Equal(t, core.Cash, pair[1].Account)

	rr = f.do(t, http.MethodGet, "/api/transactions?view=history", "")
	history := decode[[]core.Transaction](t, rr)
	require.Len(t, history, 1)
	assert.Equal(t, core.Expense, history[0].Type)

	rr = f.do(t, http.MethodGet, "/api/totals", "")
	totals := decode[totalsResponse](t, rr)
	assert.Equal(t, int64(100000), totals.All.Income)
	assert.Zero(t, totals.Headline.Income)
	assert.Equal(t, int64(100000), totals.Headline.Cash)
	assert.Equal(t, int64(-100000), totals.Headline.Bank)

	rr = f.do(t, http.MethodDelete, "/api/transactions/"+pair[1].ID, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.ElementsMatch(t, []string{pair[0].ID, pair[1].ID}, decode[deleteResponse](t, rr).Deleted)

	rr = f.do(t, http.MethodPost, "/api/withdrawals", `{"amount":"0"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestCategoryEndpoints(t *testing.T) {
	f := newFixture(t, 0)
	f.signIn(t, "owner-1")

	rr := f.do(t, http.MethodPost, "/api/categories", `{"name":"Gaji","type":"income"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	gaji := decode[core.Category](t, rr)

	rr = f.do(t, http.MethodPost, "/api/categories", `{"name":"Makanan","type":"expense"}`)
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = f.do(t, http.MethodPost, "/api/categories", `{"name":"  ","type":"expense"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = f.do(t, http.MethodGet, "/api/categories?type=income", "")
	income := decode[[]core.Category](t, rr)
	require.Len(t, income, 1)
	assert.Equal(t, "Gaji", income[0].Name)

	rr = f.do(t, http.MethodGet, "/api/categories?type=transfer", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = f.do(t, http.MethodPatch, "/api/categories/"+gaji.ID, `{"name":"Gaji Pokok"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Gaji Pokok", decode[core.Category](t, rr).Name)

	rr = f.do(t, http.MethodDelete, "/api/categories/"+gaji.ID, "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	rr = f.do(t, http.MethodDelete, "/api/categories/"+gaji.ID, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = f.do(t, http.MethodGet, "/api/categories", "")
	assert.Len(t, decode[[]core.Category](t, rr), 1)
}

func TestReports(t *testing.T) {
	f := newFixture(t, 0)
	f.signIn(t, "owner-1")

	for _, body := range []string{
		`{"type":"income","amount":500000,"date":"2025-07-01","account":"bank","category":"Gaji"}`,
		`{"type":"expense","amount":100000,"date":"2025-07-02","account":"cash","category":"Makanan"}`,
		`{"type":"expense","amount":20000,"date":"2025-09-15","account":"cash","category":"Transport"}`,
		`{"type":"expense","amount":5000,"date":"2025-09-14","account":"cash","category":"Makanan"}`,
	} {
		rr := f.do(t, http.MethodPost, "/api/transactions", body)
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	}

	t.Run("groups newest first", func(t *testing.T) {
		rr := f.do(t, http.MethodGet, "/api/groups", "")
		groups := decode[[]dateGroup](t, rr)
		require.Len(t, groups, 4)
		assert.Equal(t, "2025-09-15", groups[0].Date)
		assert.Equal(t, "2025-07-01", groups[3].Date)
	})

	t.Run("series defaults to last seven days", func(t *testing.T) {
		rr := f.do(t, http.MethodGet, "/api/series", "")
		points := decode[[]aggregate.DayPoint](t, rr)
		require.Len(t, points, 7)
		assert.Equal(t, "2025-09-09", points[0].Date)
		assert.Equal(t, int64(20000), points[6].Expense)
	})

	t.Run("series swaps reversed bounds", func(t *testing.T) {
		rr := f.do(t, http.MethodGet, "/api/series?start=2025-09-15&end=2025-09-14", "")
		points := decode[[]aggregate.DayPoint](t, rr)
		require.Len(t, points, 2)
		assert.Equal(t, "2025-09-14", points[0].Date)
	})

	t.Run("series rejects malformed dates", func(t *testing.T) {
		rr := f.do(t, http.MethodGet, "/api/series?start=yesterday", "")
		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	})

	t.Run("series rejects oversized ranges", func(t *testing.T) {
		rr := f.do(t, http.MethodGet, "/api/series?start=0001-01-01&end=9999-12-31", "")
		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
		assert.Contains(t, rr.Body.String(), aggregate.ErrRangeTooLarge.Error())

		rr = f.do(t, http.MethodGet, "/api/series?start=2025-01-01&end=2025-12-31", "")
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Len(t, decode[[]aggregate.DayPoint](t, rr), 365)
	})

	t.Run("weekly", func(t *testing.T) {
		rr := f.do(t, http.MethodGet, "/api/weekly?ref=2025-09-15", "")
		points := decode[[]aggregate.DayPoint](t, rr)
		require.Len(t, points, 7)
		assert.Equal(t, "Mon", points[0].Label)
		assert.Equal(t, "2025-09-15", points[0].Date)
	})

	t.Run("breakdown", func(t *testing.T) {
		rr := f.do(t, http.MethodGet, "/api/breakdown?type=expense", "")
		slices := decode[[]aggregate.Slice](t, rr)
		require.Len(t, slices, 2)
		assert.Equal(t, "Makanan", slices[0].Label)
		assert.Equal(t, int64(105000), slices[0].Value)
		for i, s := range slices {
			assert.Equal(t, i%aggregate.PaletteSize, s.ColorIndex)
		}
	})

	t.Run("closed period carries the previous net", func(t *testing.T) {
		rr := f.do(t, http.MethodGet, "/api/period?today=2025-08-01", "")
		require.Equal(t, http.StatusOK, rr.Code)
		p := decode[periodResponse](t, rr)
		assert.Equal(t, "2025-07-21", p.Start)
		assert.Equal(t, "2025-08-20", p.End)
		assert.Equal(t, "2025-06-21", p.PreviousStart)
		require.NotNil(t, p.Rollover)
		assert.Equal(t, int64(400000), p.Rollover.Amount)
		assert.Equal(t, "2025-07-21", p.Rollover.Date)
		require.NotEmpty(t, p.Income)
		assert.Equal(t, p.Rollover.ID, p.Income[0].ID)
		assert.Equal(t, int64(400000), p.Series[0].Income)
	})

	t.Run("open period has no rollover", func(t *testing.T) {
		rr := f.do(t, http.MethodGet, "/api/period", "")
		p := decode[periodResponse](t, rr)
		assert.Equal(t, "2025-08-21", p.Start)
		assert.Equal(t, "2025-09-20", p.End)
		assert.Nil(t, p.Rollover)
		assert.Zero(t, p.Net)
	})
}

func TestReportCache(t *testing.T) {
	f := newFixture(t, 0)
	f.signIn(t, "owner-1")

	rr := f.do(t, http.MethodGet, "/api/totals", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "MISS", rr.Header().Get("X-Cache"))

	rr = f.do(t, http.MethodGet, "/api/totals", "")
	assert.Equal(t, "HIT", rr.Header().Get("X-Cache"))

	rr = f.do(t, http.MethodGet, "/api/totals?x=1", "")
	assert.Equal(t, "MISS", rr.Header().Get("X-Cache"), "query is part of the key")

	rr = f.do(t, http.MethodPost, "/api/transactions",
		`{"type":"income","amount":50000,"date":"2025-09-10","account":"bank","category":"Gaji"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = f.do(t, http.MethodGet, "/api/totals", "")
	assert.Equal(t, "MISS", rr.Header().Get("X-Cache"), "writes invalidate cached reports")
	totals := decode[totalsResponse](t, rr)
	assert.Equal(t, int64(50000), totals.All.Income)

	rr = f.do(t, http.MethodGet, "/api/series?start=bogus", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Empty(t, rr.Header().Get("X-Cache"))
}

func TestWriteRateLimit(t *testing.T) {
	f := newFixture(t, 2)
	f.signIn(t, "owner-1")

	body := `{"name":"Gaji","type":"income"}`
	assert.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/api/categories", body).Code)
	rr := f.do(t, http.MethodPost, "/api/categories", body)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "60", rr.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/categories", "").Code, "reads are not limited")
}

func TestEventStream(t *testing.T) {
	f := newFixture(t, 0)
	f.signIn(t, "owner-1")

	ts := httptest.NewServer(f.srv.Handler)
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/events", nil)
	require.NoError(t, err)
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := make(chan string, 16)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()

	require.Equal(t, ": connected", <-lines)

	rr := f.do(t, http.MethodPost, "/api/categories", `{"name":"Gaji","type":"income"}`)
	require.Equal(t, http.StatusCreated, rr.Code)

	timeout := time.After(2 * time.Second)
	for {
		select {
		case line, ok := <-lines:
			require.True(t, ok, "stream closed early")
			if line == "event: "+notify.EventName {
				return
			}
		case <-timeout:
			t.Fatal("no storage-updated event")
		}
	}
}
