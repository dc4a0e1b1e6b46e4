// Package httpapi wires the HTTP surface of the accounting core. Handlers stay
// thin: structural request validation here, business rules in the services.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	chi "github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/erpcore/books/internal/coa"
	"github.com/erpcore/books/internal/posting"
	"github.com/erpcore/books/internal/report"
	"github.com/erpcore/books/internal/voucher"
)

// ReadyChecker is implemented by stores that can report readiness.
type ReadyChecker interface {
	Ready(ctx context.Context) error
}

// Server wires handlers and middleware using chi.
type Server struct {
	accounts coa.Service
	vouchers voucher.Service
	engine   *posting.Engine
	reports  report.Service
	ready    ReadyChecker

	defaultCurrency string
	validate        *validator.Validate
	log             *slog.Logger
	rt              *chi.Mux
}

// New constructs the HTTP server with routes and middleware.
func New(accounts coa.Service, vouchers voucher.Service, engine *posting.Engine, reports report.Service, ready ReadyChecker, defaultCurrency string, logger *slog.Logger) *Server {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(requestLogger(logger))
	r.Use(metricsMiddleware)
	r.Use(recoverer(logger))

	s := &Server{
		accounts:        accounts,
		vouchers:        vouchers,
		engine:          engine,
		reports:         reports,
		ready:           ready,
		defaultCurrency: defaultCurrency,
		validate:        validator.New(),
		log:             logger,
		rt:              r,
	}
	s.routes()
	return s
}

// Handler exposes the configured http.Handler.
func (s *Server) Handler() http.Handler { return s.rt }

// routes declares the public HTTP API endpoints.
func (s *Server) routes() {
	// Accounts (v1)
	s.rt.Post("/v1/accounts", s.createAccount)
	s.rt.Get("/v1/accounts", s.listAccounts)
	s.rt.Get("/v1/accounts/{id}", s.getAccount)
	s.rt.Get("/v1/accounts/{id}/balance", s.getAccountBalance)
	s.rt.Patch("/v1/accounts/{id}", s.updateAccount)
	s.rt.Delete("/v1/accounts/{id}", s.deactivateAccount)
	s.rt.Post("/v1/accounts/seed", s.seedChart)
	// Vouchers (v1)
	s.rt.Post("/v1/vouchers", s.createVoucher)
	s.rt.Get("/v1/vouchers", s.listVouchers)
	s.rt.Get("/v1/vouchers/{id}", s.getVoucher)
	s.rt.Post("/v1/vouchers/{id}/entries", s.addEntry)
	s.rt.Patch("/v1/vouchers/{id}/entries/{entryID}", s.updateEntry)
	s.rt.Delete("/v1/vouchers/{id}/entries/{entryID}", s.removeEntry)
	s.rt.Post("/v1/vouchers/{id}/validate", s.validateVoucher)
	s.rt.Post("/v1/vouchers/{id}/post", s.postVoucher)
	s.rt.Post("/v1/vouchers/{id}/cancel", s.cancelVoucher)
	s.rt.Post("/v1/vouchers/{id}/reverse", s.reverseVoucher)
	// Reports (v1)
	s.rt.Get("/v1/trial-balance", s.trialBalance)
	s.rt.Post("/v1/reconcile", s.reconcile)
	// Operational (unversioned)
	s.rt.Get("/healthz", s.healthz)
	s.rt.Get("/readyz", s.readyz)
	s.rt.Handle("/metrics", metricsHandler())
}
