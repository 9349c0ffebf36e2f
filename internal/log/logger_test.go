package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestLoggerComponentAndFields(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelDebug, Component: ComponentLedger, Output: &buf})

	logger.LogError(context.Background(), "Storage failed", errors.New("disk full"), ErrorTypeStorage,
		NewFields().WithUser(7).WithOperation(OpTotal))

	out := buf.String()
	for _, want := range []string{"component=ledger", "user_id=7", "operation=total", "error_type=storage_error", `error="disk full"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q: %s", want, out)
		}
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
		"loud":  slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestFromContext(t *testing.T) {
	if got := FromContext(context.Background()); got == nil || got.Component() != "unknown" {
		t.Fatalf("expected fallback logger, got %+v", got)
	}

	logger := New(Config{Component: ComponentBot, Output: &bytes.Buffer{}})
	ctx := WithLogger(context.Background(), logger.With(FieldTraceID, "abc"))
	if got := FromContext(ctx); got.Component() != ComponentBot {
		t.Fatalf("component = %q", got.Component())
	}
}

func TestMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelDebug, Component: ComponentHTTP, Output: &buf})

	var seen *Logger
	h := Middleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = FromContext(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if seen != logger {
		t.Fatal("handler did not receive the request logger")
	}
	if !strings.Contains(buf.String(), "status_code=418") || !strings.Contains(buf.String(), "level=WARN") {
		t.Fatalf("unexpected log: %s", buf.String())
	}
}

func TestWithComponentReplacesComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Component: ComponentApp, Output: &buf}).With(FieldTraceID, "t1")

	bot := logger.WithComponent(ComponentBot)
	bot.Info("hello")

	out := buf.String()
	if strings.Count(out, "component=") != 1 || !strings.Contains(out, "component=bot") {
		t.Fatalf("expected a single bot component: %s", out)
	}
	if !strings.Contains(out, "trace_id=t1") {
		t.Fatalf("attributes added before WithComponent were lost: %s", out)
	}
	if bot.Component() != ComponentBot || logger.Component() != ComponentApp {
		t.Fatal("WithComponent must not mutate the parent")
	}
}
