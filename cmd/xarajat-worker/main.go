package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"xarajat/internal/amqp"
	"xarajat/internal/cache"
	"xarajat/internal/cli"
	"xarajat/internal/config"
	apphttp "xarajat/internal/http"
	applog "xarajat/internal/log"
	"xarajat/internal/worker"
)

const (
	dedupeWindow  = 24 * time.Hour
	dedupeEntries = 10000
	statsInterval = 5 * time.Minute
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(logger, (*config.Config).ValidateWorker)

	if err := run(logger, cfg); err != nil {
		logger.Error("Exited with error", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}

func run(logger *applog.Logger, cfg *config.Config) error {
	ctx, stop := cli.SignalContext(logger)
	defer stop()
	ctx = applog.WithLogger(ctx, logger)

	var out io.Writer = os.Stdout
	if cfg.AuditLogPath != "" {
		f, err := os.OpenFile(cfg.AuditLogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
		if err != nil {
			return fmt.Errorf("open audit log: %w", err)
		}
		defer f.Close()
		out = f
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		return fmt.Errorf("initialize AMQP client: %w", err)
	}
	defer client.Close()

	seen := cache.NewLRUCache[string, struct{}](dedupeEntries, dedupeWindow)
	caches := cache.NewManager(logger.WithComponent(applog.ComponentCache).Logger)
	caches.Register(seen)
	caches.StartCleanup(10 * time.Minute)
	defer caches.Stop()

	audit := worker.NewAuditWorker(out, seen)
	srv := apphttp.NewServer(apphttp.Options{
		Addr:   ":" + cfg.Port,
		Logger: logger.WithComponent(applog.ComponentHTTP),
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := client.ConsumeEvents(gctx, audit.HandleEvent)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		audit.ReportStats(gctx, statsInterval)
		return nil
	})

	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	logger.Info("Consuming ledger events", "queue", cfg.AMQPQueue, "port", cfg.Port)
	return g.Wait()
}
