package cli

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sakinah/internal/aggregate"
	"sakinah/internal/auth"
	"sakinah/internal/backend"
	"sakinah/internal/config"
	"sakinah/internal/core"
	"sakinah/internal/log"
	"sakinah/internal/services"
)

func testConfig() *config.Config {
	return &config.Config{
		Port:          "8081",
		DataBackend:   "memory",
		AuthJWTSecret: "cli-secret",
		LoadTimeout:   time.Second,
		WriteTimeout:  time.Second,
		CutoffDay:     21,
		LogLevel:      "info",
		LogFormat:     "text",
	}
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	app, err := NewApp(context.Background(), testConfig(), log.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close(context.Background()) })
	return app
}

func TestSignIn(t *testing.T) {
	t.Run("no credentials", func(t *testing.T) {
		app := newTestApp(t)
		assert.ErrorIs(t, app.SignIn("", ""), ErrNoCredentials)
		assert.Equal(t, services.Unauthenticated, app.Controller.State())
	})

	t.Run("trusted owner", func(t *testing.T) {
		app := newTestApp(t)
		require.NoError(t, app.SignIn("", "owner-1"))
		assert.Equal(t, services.Ready, app.Controller.State())
		assert.Equal(t, "owner-1", app.Controller.Owner())
	})

	t.Run("token wins over owner", func(t *testing.T) {
		app := newTestApp(t)
		token, err := auth.NewSession("cli-secret").IssueToken("owner-2", time.Hour)
		require.NoError(t, err)
		require.NoError(t, app.SignIn(token, "owner-1"))
		assert.Equal(t, "owner-2", app.Controller.Owner())
	})

	t.Run("bad token", func(t *testing.T) {
		app := newTestApp(t)
		err := app.SignIn("garbage", "")
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})
}

type failingFactory struct{}

func (failingFactory) CreateBackend(context.Context, backend.Config) (*backend.BackendResult, error) {
	return nil, errors.New("dial refused")
}

func TestNewAppBackendFailure(t *testing.T) {
	_, err := newApp(context.Background(), testConfig(), log.Discard(), failingFactory{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create memory backend")
}

func TestCloseFlushesWrites(t *testing.T) {
	app, err := NewApp(context.Background(), testConfig(), log.Discard())
	require.NoError(t, err)
	require.NoError(t, app.SignIn("", "owner-1"))

	_, err = app.Controller.WithdrawCash(context.Background(), 50000, "2025-09-01")
	require.NoError(t, err)
	require.NoError(t, app.Close(context.Background()))
	assert.Equal(t, services.Unauthenticated, app.Controller.State())
}

func TestLoadAndValidateConfig(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SAKINAH_DATA_BACKEND", "postgres")
	t.Setenv("DATABASE_URL", "")

	_, err := LoadAndValidateConfig("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")

	t.Setenv("SAKINAH_DATA_BACKEND", "memory")
	cfg, err := LoadAndValidateConfig("")
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.DataBackend)
}

func mustDate(t *testing.T, s string) core.Date {
	t.Helper()
	d, err := core.ParseDate(s)
	require.NoError(t, err)
	return d
}

var now = time.Date(2025, 9, 15, 10, 0, 0, 0, time.UTC)

func sampleTxs() []core.Transaction {
	return []core.Transaction{
		{ID: "t1", Type: core.Income, Amount: 500000, Date: "2025-07-01", Account: core.Bank, Category: "Gaji"},
		{ID: "t2", Type: core.Expense, Amount: 100000, Date: "2025-07-02", Account: core.Cash, Category: "Makanan"},
		{ID: "t3", Type: core.Expense, Amount: 20000, Date: "2025-09-10", Account: core.Cash, Category: "Transport"},
		{ID: "t4", Type: core.Income, Amount: 1000000, Date: "2025-08-25", Account: core.Bank, Category: "Gaji"},
		{ID: "w1", Type: core.Expense, Amount: 50000, Date: "2025-09-01", Account: core.Bank, Category: core.WithdrawalCategory},
		{ID: "w2", Type: core.Income, Amount: 50000, Date: "2025-09-01", Account: core.Cash, Category: core.WithdrawalCategory},
	}
}

func TestBuildSummary(t *testing.T) {
	policy := aggregate.NewCutoffPolicy(aggregate.DefaultCutoffDay)
	s := BuildSummary("owner-1", sampleTxs(), policy, core.Today(now), now)

	assert.Equal(t, "2025-08-21", s.Period.Start.String())
	assert.Equal(t, "2025-09-20", s.Period.End.String())
	assert.Equal(t, int64(1500000), s.Headline.Income)
	assert.Equal(t, int64(120000), s.Headline.Expense)
	assert.Equal(t, int64(980000), s.PeriodNet)
	assert.Nil(t, s.Rollover, "the active period has not ended yet")
	require.Len(t, s.Income, 1)
	assert.Equal(t, "t4", s.Income[0].ID)
	require.Len(t, s.Breakdown, 1)
	assert.Equal(t, "Transport", s.Breakdown[0].Label)

	closed := BuildSummary("owner-1", sampleTxs(), policy, core.Today(now), time.Date(2025, 9, 25, 0, 0, 0, 0, time.UTC))
	assert.Nil(t, closed.Rollover, "nothing was recorded in the period before")

	past := BuildSummary("owner-1", sampleTxs(), policy, mustDate(t, "2025-08-01"), now)
	assert.Equal(t, "2025-07-21", past.Period.Start.String())
	require.NotNil(t, past.Rollover)
	assert.Equal(t, int64(400000), past.Rollover.Amount)
	assert.Equal(t, "2025-07-21", past.Rollover.Date)
}

func TestRenderSummary(t *testing.T) {
	policy := aggregate.NewCutoffPolicy(aggregate.DefaultCutoffDay)
	s := BuildSummary("owner-1", sampleTxs(), policy, core.Today(now), now)
	rollover := core.Transaction{ID: "rollover-2025-08-21", Amount: 400000, Category: core.RolloverCategory}
	s.Rollover = &rollover

	var buf bytes.Buffer
	require.NoError(t, RenderSummary(&buf, s))
	out := buf.String()
	for _, want := range []string{"owner-1", "Rp 1.500.000", "Rp 120.000", "Periode 21 Aug - 20 Sep 2025", core.RolloverCategory, "Rp 400.000", "Transport"} {
		assert.Contains(t, out, want)
	}
}

func TestRenderTables(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderTransactions(&buf, sampleTxs()[:2]))
	assert.Contains(t, buf.String(), "+Rp 500.000")
	assert.Contains(t, buf.String(), "-Rp 100.000")

	buf.Reset()
	require.NoError(t, RenderTransactions(&buf, nil))
	assert.Contains(t, buf.String(), "No transactions.")

	buf.Reset()
	require.NoError(t, RenderCategories(&buf, []core.Category{{ID: "c1", Name: "Gaji", Type: core.Income}}))
	assert.Contains(t, buf.String(), "Gaji")
	assert.Contains(t, buf.String(), "income")
}
