// Package http exposes the recurring engine and the ledger as a JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"budget/internal/core"
	"budget/internal/ledger"
	applog "budget/internal/log"
	"budget/internal/services"

	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type (
	// RecurringRunner is the processing surface of services.RecurringProcessor.
	RecurringRunner interface {
		MonthsToProcess(ctx context.Context, now time.Time) ([]core.MonthKey, error)
		Run(ctx context.Context, now time.Time, opts services.ProcessOptions) (services.RunResult, error)
		MaxCatchupMonths() int
	}

	StatusReader interface {
		MonthStatus(ctx context.Context, month core.MonthKey, now time.Time) (core.MonthStatus, error)
	}

	ExpenseManager interface {
		CreateExpense(ctx context.Context, e core.ManualExpense) (core.Transaction, error)
		DeleteExpense(ctx context.Context, id string) error
		Transactions(ctx context.Context, month core.MonthKey) ([]core.Transaction, error)
	}

	// Deps wires the server to the services. Catalog serves the seeding
	// endpoints for fixed expenses and debts.
	Deps struct {
		Recurring          RecurringRunner
		Status             StatusReader
		Expenses           ExpenseManager
		Catalog            ledger.Catalog
		Logger             *applog.Logger
		CORSAllowedOrigins []string
		WritesPerMinute    int
		Clock              func() time.Time
	}
)

// Server embeds http.Server and owns the background cleanup of the write
// rate limiter.
type Server struct {
	http.Server

	recurring RecurringRunner
	status    StatusReader
	expenses  ExpenseManager
	catalog   ledger.Catalog
	logger    *applog.Logger
	limiter   *rateLimiter
	clock     func() time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps) *Server {
	s := &Server{
		recurring: deps.Recurring,
		status:    deps.Status,
		expenses:  deps.Expenses,
		catalog:   deps.Catalog,
		logger:    deps.Logger,
		limiter:   newRateLimiter(deps.WritesPerMinute),
		clock:     deps.Clock,
	}
	if s.logger == nil {
		s.logger = applog.New(applog.DefaultConfig())
	}
	if s.clock == nil {
		s.clock = time.Now
	}

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(deps.CORSAllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go s.limiter.startCleanup(5 * time.Minute)

	return s
}

func (s *Server) routes(allowedOrigins []string) *chi.Mux {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(sentryhttp.New(sentryhttp.Options{Repanic: true}).Handle)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))
	r.Use(securityHeaders)
	r.Use(s.limiter.Middleware)

	r.Get("/healthz", handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Route("/recurring", func(r chi.Router) {
			r.Get("/pending", s.handlePendingMonths)
			r.Post("/process", s.handleProcessRecurring)
			r.Get("/status", s.handleMonthStatus)
		})

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", s.handleListTransactions)
			r.Get("/export.xlsx", s.handleExportTransactions)
		})

		r.Route("/expenses", func(r chi.Router) {
			r.Post("/", s.handleCreateExpense)
			r.Delete("/{id}", s.handleDeleteExpense)
		})

		r.Post("/fixed-expenses", s.handleCreateFixedExpense)
		r.Post("/debts", s.handleCreateDebt)
	})

	return r
}

// Shutdown stops the rate limiter cleanup and gracefully shuts down the
// HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
