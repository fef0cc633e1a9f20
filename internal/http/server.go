package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"flow/internal/core"
	"flow/internal/log"
	"flow/internal/middleware/ratelimit"
	"flow/internal/middleware/security"
	"flow/internal/middleware/trace"
	"flow/internal/services"
)

// TransactionService is the transaction CRUD the API exposes.
type TransactionService interface {
	List(ctx context.Context) ([]core.Transaction, error)
	Get(ctx context.Context, id string) (core.Transaction, error)
	Create(ctx context.Context, t core.Transaction) (core.Transaction, error)
	Update(ctx context.Context, id string, t core.Transaction) (core.Transaction, error)
	Delete(ctx context.Context, id string) error
}

// ForecastService is the projection side of the API. DefaultEnd is also the
// latest end date a request may ask for.
type ForecastService interface {
	DefaultEnd() core.Date
	Cashflow(ctx context.Context, end core.Date) ([]core.CashflowPoint, error)
	CashflowSince(ctx context.Context, from, end core.Date) ([]core.CashflowPoint, error)
	Horizons(ctx context.Context, ends []core.Date) ([][]core.CashflowPoint, error)
	Summary(ctx context.Context, end core.Date) (services.Forecast, error)
}

// Options tunes the server. The zero value is usable.
type Options struct {
	// Logger is put in every request context. Defaults to slog.Default.
	Logger *log.Logger

	// Ready backs /readyz. Nil means always ready.
	Ready func(context.Context) error

	// RateLimit applies per client IP. Defaults to 60 mutating requests a minute.
	RateLimit ratelimit.Config
}

type Server struct {
	http.Server
	transactions TransactionService
	forecast     ForecastService
	ready        func(context.Context) error

	rateLimiter  *ratelimit.Limiter
	detector     *security.Detector
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, txs TransactionService, forecast ForecastService, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.Config{Handler: slog.Default().Handler(), Component: log.ComponentHTTP})
	}
	limitConfig := opts.RateLimit
	if limitConfig.RequestsPerMinute == 0 && len(limitConfig.Methods) == 0 {
		limitConfig = ratelimit.DefaultConfig()
	}

	s := &Server{
		transactions: txs,
		forecast:     forecast,
		ready:        opts.Ready,
		rateLimiter:  ratelimit.NewLimiter(limitConfig),
		detector:     security.NewDetector(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/transactions", s.handleListTransactions)
	mux.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	mux.HandleFunc("GET /api/transactions/{id}", s.handleGetTransaction)
	mux.HandleFunc("PUT /api/transactions/{id}", s.handleUpdateTransaction)
	mux.HandleFunc("DELETE /api/transactions/{id}", s.handleDeleteTransaction)

	mux.HandleFunc("GET /api/cashflow", s.handleCashflow)
	mux.HandleFunc("GET /api/cashflow/horizons", s.handleHorizons)
	mux.HandleFunc("GET /api/summary", s.handleSummary)

	limited := s.rateLimiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		TooManyRequestsError().Write(w)
	})
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())

	// Outermost first.
	s.Server = http.Server{
		Addr: addr,
		Handler: chain(mux,
			log.Middleware(logger),
			trace.Middleware,
			log.RequestIDMiddleware(trace.FromRequest),
			log.AccessLog(s.detector.ExtractClientIP),
			headers.Middleware,
			s.detector.Middleware,
			limited,
		),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return s
}

func chain(h http.Handler, middleware ...func(http.Handler) http.Handler) http.Handler {
	for i := len(middleware) - 1; i >= 0; i-- {
		h = middleware[i](h)
	}
	return h
}

// Shutdown gracefully shuts down the server and the rate limiter cleanup
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err.Error())
			ServiceUnavailableError("not ready").Write(w)
			return
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ready"))
}
