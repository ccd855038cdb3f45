package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ParzivalEugene/planning-poker/internal/bus"
	"github.com/ParzivalEugene/planning-poker/internal/config"
	"github.com/ParzivalEugene/planning-poker/internal/httpapi"
	"github.com/ParzivalEugene/planning-poker/internal/poker"
	"github.com/ParzivalEugene/planning-poker/internal/storage/gormstore"
	"github.com/ParzivalEugene/planning-poker/internal/stream"
	"github.com/ParzivalEugene/planning-poker/pkg/logging"
)

func main() {
	cfg := config.Load()

	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	store, err := openStore(cfg)
	if err != nil {
		log.Error("failed to initialize storage", zap.Error(err))
		os.Exit(1)
	}
	defer store.Close()
	log.Info("storage initialized", zap.String("driver", cfg.Driver))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b := bus.New(ctx)
	svc := poker.New(store, b, log)
	streamer := stream.New(b, svc, log)

	handler := httpapi.SetupRoutes(svc, streamer, log, cfg.CORSOrigin)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		b.Shutdown()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server failed", zap.Error(err))
		os.Exit(1)
	}
}

func openStore(cfg config.Config) (*gormstore.Store, error) {
	if cfg.Driver == "postgres" {
		return gormstore.OpenPostgres(cfg.DatabaseURL)
	}
	return gormstore.OpenSQLite(cfg.SQLitePath)
}
