// Package http serves liveness and readiness probes and the Telegram webhook.
package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"xarajat/internal/bot"
	"xarajat/internal/core"
	applog "xarajat/internal/log"
	"xarajat/internal/middleware/security"
	"xarajat/internal/middleware/trace"
)

// DefaultWebhookPath is where Telegram posts updates in webhook mode.
const DefaultWebhookPath = "/telegram/webhook"

// maxUpdateSize bounds one webhook body; Telegram updates are a few KB.
const maxUpdateSize = 1 << 20

// WebhookHandler accepts one raw Telegram update without blocking.
type WebhookHandler interface {
	HandleWebhook(ctx context.Context, body []byte) error
}

type Options struct {
	Addr   string
	Logger *applog.Logger
	// Ready is probed by /readyz; nil means always ready.
	Ready core.Pinger
	// Webhook enables the webhook route when set.
	Webhook       WebhookHandler
	WebhookPath   string
	WebhookSecret string
}

type Server struct {
	http.Server
	ready   core.Pinger
	webhook WebhookHandler
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(opts Options) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:              opts.Addr,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		ready:   opts.Ready,
		webhook: opts.Webhook,
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	if s.webhook != nil {
		path := opts.WebhookPath
		if path == "" {
			path = DefaultWebhookPath
		}
		mux.Handle("POST "+path, security.RequireSecretToken(opts.WebhookSecret)(http.HandlerFunc(s.handleWebhook)))
	}

	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.Config{Component: applog.ComponentHTTP})
	}

	var h http.Handler = mux
	h = security.Headers(security.DefaultHeadersConfig())(h)
	h = trace.Middleware(h)
	h = applog.Middleware(logger)(h)
	s.Handler = h

	return s
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready.Ping(ctx); err != nil {
			applog.FromContext(ctx).WarnContext(ctx, "Readiness probe failed", applog.FieldError, err)
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUpdateSize))
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			http.Error(w, "update too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "read error", http.StatusBadRequest)
		return
	}

	if err := s.webhook.HandleWebhook(r.Context(), body); err != nil {
		if errors.Is(err, bot.ErrQueueFull) {
			applog.FromContext(r.Context()).WarnContext(r.Context(), "Webhook queue full, asking Telegram to retry")
			w.Header().Set("Retry-After", "1")
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Rejected webhook update", applog.FieldError, err)
		http.Error(w, "bad update", http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)
}
