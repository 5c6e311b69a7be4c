// Package http exposes the synced cache as a JSON API for presentation
// clients. Reads are served straight from the local cache; writes go through
// the sync controller and return before the remote store acknowledges them.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"sakinah/internal/aggregate"
	"sakinah/internal/auth"
	"sakinah/internal/cache"
	"sakinah/internal/log"
	"sakinah/internal/middleware/ratelimit"
	"sakinah/internal/middleware/security"
	"sakinah/internal/middleware/trace"
	"sakinah/internal/services"
)

// Deps are the collaborators the API serves from.
type Deps struct {
	Controller *services.Controller
	Session    *auth.Session
	Policy     aggregate.PeriodPolicy
	Logger     *log.Logger

	// WritesPerMinute caps mutating requests per client (default: 120)
	WritesPerMinute int
}

type Server struct {
	http.Server
	ctrl     *services.Controller
	session  *auth.Session
	policy   aggregate.PeriodPolicy
	logger   *log.Logger
	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
	reports  *cache.Memo[any]

	// closed on Shutdown so open event streams end
	done         chan struct{}
	shutdownOnce sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.Discard()
	}
	policy := deps.Policy
	if policy == nil {
		policy = aggregate.NewCutoffPolicy(aggregate.DefaultCutoffDay)
	}

	s := &Server{
		ctrl:     deps.Controller,
		session:  deps.Session,
		policy:   policy,
		logger:   logger.WithComponent(log.ComponentHTTP),
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: deps.WritesPerMinute}),
		detector: security.NewDetector(logger),
		reports:  cache.NewMemo[any](deps.Controller.Store(), 256, time.Minute),
		done:     make(chan struct{}),
	}
	s.tracer = trace.NewMiddleware(logger, s.detector.ExtractClientIP)
	go s.reports.Janitor(time.Minute, s.done)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/session", s.handleGetSession)
	mux.HandleFunc("POST /api/session", s.handleSignIn)
	mux.HandleFunc("DELETE /api/session", s.handleSignOut)

	mux.HandleFunc("GET /api/categories", s.requireOwner(s.handleListCategories))
	mux.HandleFunc("POST /api/categories", s.handleCreateCategory)
	mux.HandleFunc("PATCH /api/categories/{id}", s.handleUpdateCategory)
	mux.HandleFunc("DELETE /api/categories/{id}", s.handleDeleteCategory)

	mux.HandleFunc("GET /api/transactions", s.requireOwner(s.handleListTransactions))
	mux.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	mux.HandleFunc("PATCH /api/transactions/{id}", s.handleUpdateTransaction)
	mux.HandleFunc("DELETE /api/transactions/{id}", s.handleDeleteTransaction)
	mux.HandleFunc("POST /api/withdrawals", s.handleWithdraw)

	mux.HandleFunc("GET /api/totals", s.requireOwner(s.handleTotals))
	mux.HandleFunc("GET /api/groups", s.requireOwner(s.handleGroups))
	mux.HandleFunc("GET /api/series", s.requireOwner(s.handleSeries))
	mux.HandleFunc("GET /api/weekly", s.requireOwner(s.handleWeekly))
	mux.HandleFunc("GET /api/breakdown", s.requireOwner(s.handleBreakdown))
	mux.HandleFunc("GET /api/period", s.requireOwner(s.handlePeriod))

	mux.HandleFunc("GET /api/events", s.handleEvents)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	limit := s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded").Write(w)
	})

	var handler http.Handler = mux
	handler = limit(handler)
	handler = s.detector.Middleware(handler)
	handler = headers.Middleware(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Shutdown ends event streams, stops the limiter and drains connections.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		close(s.done)
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

// requireOwner rejects reads while nobody is signed in.
func (s *Server) requireOwner(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.ctrl.State() == services.Unauthenticated {
			UnauthorizedError(services.ErrNotAuthenticated.Error()).Write(w)
			return
		}
		next(w, r)
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady reports 200 once an owner's rows are loaded.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	state := s.ctrl.State()
	if state != services.Ready {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(state.String()))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
