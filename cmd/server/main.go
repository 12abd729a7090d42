package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rcrowley/go-metrics"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/league-ladder-backend/internal/config"
	"github.com/DoyleJ11/league-ladder-backend/internal/engine"
	"github.com/DoyleJ11/league-ladder-backend/internal/httpapi"
	"github.com/DoyleJ11/league-ladder-backend/internal/notify"
	"github.com/DoyleJ11/league-ladder-backend/internal/service"
	"github.com/DoyleJ11/league-ladder-backend/internal/store"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.Load()

	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(cfg.Level())
	logger, err := zcfg.Build()
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	origin := uuid.NewString()
	logger = logger.With(zap.String("origin", origin))

	var (
		st store.Store
		pg *store.Postgres
	)
	if cfg.DatabaseURL != "" {
		var err error
		pg, err = store.OpenPostgres(ctx, store.PostgresConfig{
			DSN:     cfg.DatabaseURL,
			Channel: cfg.NotifyChannel,
			Logger:  logger,
		})
		if err != nil {
			return err
		}
		st = pg
	} else {
		logger.Warn("DATABASE_URL not set, sessions live in memory only")
		st = store.NewMemory()
	}

	registry := metrics.NewRegistry()
	counters := notify.NewMetrics(registry)
	webhook := notify.NewWebhook(notify.WebhookConfig{
		URL:        cfg.WebhookURL,
		RatePerSec: cfg.WebhookRatePerSec,
		QueueSize:  cfg.WebhookQueue,
		Logger:     logger,
	})

	// Sessions outlive the signal so Shutdown can flush their saves.
	svcCtx, svcCancel := context.WithCancel(context.Background())
	defer svcCancel()
	svc := service.New(svcCtx, st, service.Config{
		Title:    cfg.DefaultTitle,
		Names:    [engine.Players]string{cfg.DefaultP1Name, cfg.DefaultP2Name},
		Origin:   origin,
		Notifier: notify.Multi(notify.NewLog(logger), counters, webhook),
		Logger:   logger,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.SetupRoutes(svc, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if pg != nil {
		g.Go(func() error { return pg.Listen(gctx) })
	}
	if webhook.Enabled() {
		g.Go(func() error { return webhook.Run(gctx) })
	}
	if cfg.MetricsInterval > 0 {
		g.Go(func() error { return counters.Report(gctx, cfg.MetricsInterval, logger) })
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		// Stop taking requests, then let every session flush its last save.
		err := srv.Shutdown(shutdownCtx)
		err = multierr.Append(err, svc.Shutdown(shutdownCtx))
		if pg != nil {
			err = multierr.Append(err, pg.Close())
		}
		return err
	})

	return g.Wait()
}
