package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/erpcore/books/internal/coa"
	"github.com/erpcore/books/internal/config"
	"github.com/erpcore/books/internal/httpapi"
	"github.com/erpcore/books/internal/posting"
	"github.com/erpcore/books/internal/report"
	"github.com/erpcore/books/internal/storage/memory"
	pgstore "github.com/erpcore/books/internal/storage/postgres"
	"github.com/erpcore/books/internal/voucher"
)

// store is the union of interfaces the services consume, satisfied by both
// storage backends.
type store interface {
	coa.Repo
	coa.Writer
	voucher.Repo
	voucher.Writer
	posting.Repo
	posting.TxRunner
	report.Repo
	httpapi.ReadyChecker
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	logger := buildLogger(cfg)
	slog.SetDefault(logger)

	var st store
	var closeFn func()
	if dsn := strings.TrimSpace(cfg.PGDSN); dsn != "" {
		pg, err := pgstore.Open(ctx, dsn)
		if err != nil {
			logger.Error("failed to connect to postgres", "err", err)
			os.Exit(1)
		}
		closeFn = pg.Close
		st = pg
		logger.Info("storage backend: postgres")
	} else {
		st = memory.New()
		logger.Info("storage backend: memory")
	}

	accounts := coa.New(st, st)
	vouchers := voucher.New(st, st)
	engine := posting.NewEngine(st, st, vouchers, logger)
	reports := report.New(st)

	if cfg.SeedChart {
		if created, err := accounts.SeedStandardChart(ctx); err != nil {
			logger.Warn("chart seed skipped", "err", err)
		} else {
			logger.Info("standard chart seeded", "accounts", len(created))
		}
	}

	if cfg.ReconcileInterval > 0 {
		go reconcileLoop(ctx, reports, cfg.ReconcileInterval, logger)
	}

	api := httpapi.New(accounts, vouchers, engine, reports, st, cfg.DefaultCurrency, logger)
	srv := &http.Server{
		Addr:              cfg.AppAddr,
		Handler:           api.Handler(),
		ReadTimeout:       cfg.AppReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.AppWriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("books service listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		ctxShutdown, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
		defer cancel()
		if err := srv.Shutdown(ctxShutdown); err != nil {
			logger.Error("server shutdown error", "err", err)
		}
	case err := <-errCh:
		logger.Error("server error", "err", err)
	}
	if closeFn != nil {
		closeFn()
	}
}

// reconcileLoop periodically replays the ledger against cached balances. It
// only reads; drift is logged at ERROR and exposed for alerting.
func reconcileLoop(ctx context.Context, reports report.Service, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := reports.Reconcile(ctx); err != nil {
				logger.Error("reconciliation failed", "err", err)
			}
		}
	}
}

func parseLogLevel(s string) slog.Leveler {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error", "err":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func buildLogger(cfg *config.Config) *slog.Logger {
	level := parseLogLevel(cfg.LogLevel)
	if strings.ToLower(cfg.LogFormat) == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
