package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"

	"xarajat/internal/amqp"
	"xarajat/internal/backend"
	"xarajat/internal/bot"
	"xarajat/internal/cache"
	"xarajat/internal/cli"
	"xarajat/internal/config"
	"xarajat/internal/core"
	apphttp "xarajat/internal/http"
	"xarajat/internal/ledger"
	applog "xarajat/internal/log"
	"xarajat/internal/middleware/ratelimit"
	"xarajat/internal/report"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger, (*config.Config).Validate)

	if err := run(logger, cfg); err != nil {
		logger.Error("Exited with error", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Stopped gracefully")
}

func run(logger *applog.Logger, cfg *config.Config) error {
	ctx, stop := cli.SignalContext(logger)
	defer stop()

	caches := cache.NewManager(logger.WithComponent(applog.ComponentCache).Logger)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	store, err := backend.NewFactory(logger.WithComponent(applog.ComponentStorage), caches).CreateBackend(ctx, backendCfg)
	if err != nil {
		return err
	}
	if store.Cleanup != nil {
		defer func() {
			if err := store.Cleanup(); err != nil {
				logger.Warn("Failed to close store", applog.FieldError, err)
			}
		}()
	}
	caches.StartCleanup(time.Minute)
	defer caches.Stop()

	var publisher ledger.Publisher
	if cfg.AMQPEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without events", applog.FieldError, err)
		} else {
			defer client.Close()
			publisher = client
			logger.Info("Publishing ledger events", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	service := ledger.NewService(store.Store, core.SystemClock, publisher)
	engine := ledger.NewEngine(service, report.NewGenerator(store.Store, core.SystemClock))

	tgbotapi.SetLogger(slog.NewLogLogger(logger.WithComponent(applog.ComponentBot).Handler(), slog.LevelWarn))
	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return fmt.Errorf("connect to telegram: %w", err)
	}
	logger.Info("Authorized on telegram", "bot", api.Self.UserName)

	limiter := ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute})
	defer limiter.Stop()

	b := bot.NewBot(api, engine, limiter, logger.WithComponent(applog.ComponentBot), cfg.Workers)

	opts := apphttp.Options{
		Addr:   ":" + cfg.Port,
		Logger: logger.WithComponent(applog.ComponentHTTP),
		Ready:  store.Store,
	}
	webhook := cfg.TelegramMode == config.ModeWebhook
	if webhook {
		u, err := url.Parse(cfg.TelegramWebhookURL)
		if err != nil {
			return fmt.Errorf("parse webhook url: %w", err)
		}
		opts.Webhook = b
		opts.WebhookPath = u.Path
		opts.WebhookSecret = cfg.TelegramWebhookSecret
		if err := bot.RegisterWebhook(api, cfg.TelegramWebhookURL, cfg.TelegramWebhookSecret); err != nil {
			return err
		}
	} else if err := bot.ClearWebhook(api, false); err != nil {
		return err
	}
	srv := apphttp.NewServer(opts)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting HTTP listener", "port", cfg.Port, "mode", cfg.TelegramMode, "backend", cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	// The webhook pump outlives gctx so updates acknowledged during the HTTP
	// drain still get their replies.
	serveCtx, stopServe := context.WithCancel(context.WithoutCancel(gctx))
	defer stopServe()

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		err := srv.Shutdown(shutdownCtx)
		stopServe()
		return err
	})

	if webhook {
		g.Go(func() error {
			return b.ServeWebhook(serveCtx)
		})
	} else {
		g.Go(func() error {
			return b.Run(gctx)
		})
	}

	return g.Wait()
}
