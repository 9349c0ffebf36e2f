package http

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"xarajat/internal/bot"
	applog "xarajat/internal/log"
	"xarajat/internal/middleware/security"
	"xarajat/internal/middleware/trace"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

type fakeWebhook struct {
	bodies [][]byte
	err    error
}

func (f *fakeWebhook) HandleWebhook(_ context.Context, body []byte) error {
	f.bodies = append(f.bodies, body)
	return f.err
}

func quietLogger() *applog.Logger {
	return applog.New(applog.Config{Component: applog.ComponentHTTP, Output: &bytes.Buffer{}})
}

func serve(s *Server, method, path string, body []byte, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	for k, v := range header {
		req.Header[k] = v
	}
	rr := httptest.NewRecorder()
	s.Handler.ServeHTTP(rr, req)
	return rr
}

func TestHealthAndReady(t *testing.T) {
	srv := NewServer(Options{Addr: ":0", Logger: quietLogger(), Ready: fakePinger{}})

	for path, want := range map[string]string{"/healthz": "ok", "/readyz": "ready"} {
		rr := serve(srv, http.MethodGet, path, nil, nil)
		if rr.Code != http.StatusOK || rr.Body.String() != want {
			t.Fatalf("%s = %d %q", path, rr.Code, rr.Body.String())
		}
		if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
			t.Errorf("%s missing security headers", path)
		}
		if rr.Header().Get(trace.HeaderRequestID) == "" {
			t.Errorf("%s missing request id", path)
		}
	}

	if rr := serve(srv, http.MethodPost, "/healthz", nil, nil); rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /healthz = %d", rr.Code)
	}
}

func TestReadyFailsWhenStoreIsDown(t *testing.T) {
	srv := NewServer(Options{Logger: quietLogger(), Ready: fakePinger{err: errors.New("database is closed")}})

	rr := serve(srv, http.MethodGet, "/readyz", nil, nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz = %d, want 503", rr.Code)
	}
}

func TestWebhookDisabledByDefault(t *testing.T) {
	srv := NewServer(Options{Logger: quietLogger()})

	if rr := serve(srv, http.MethodPost, DefaultWebhookPath, []byte("{}"), nil); rr.Code != http.StatusNotFound {
		t.Fatalf("webhook without handler = %d, want 404", rr.Code)
	}
}

func TestWebhook(t *testing.T) {
	hook := &fakeWebhook{}
	srv := NewServer(Options{Logger: quietLogger(), Webhook: hook, WebhookSecret: "s3cret"})
	authed := http.Header{security.HeaderTelegramSecret: []string{"s3cret"}}

	body := []byte(`{"update_id":1}`)
	if rr := serve(srv, http.MethodPost, DefaultWebhookPath, body, authed); rr.Code != http.StatusOK {
		t.Fatalf("webhook = %d", rr.Code)
	}
	if len(hook.bodies) != 1 || !bytes.Equal(hook.bodies[0], body) {
		t.Fatalf("bodies = %q", hook.bodies)
	}

	if rr := serve(srv, http.MethodPost, DefaultWebhookPath, body, nil); rr.Code != http.StatusForbidden {
		t.Fatalf("webhook without secret = %d, want 403", rr.Code)
	}
	if len(hook.bodies) != 1 {
		t.Fatal("unauthenticated update reached the bot")
	}

	hook.err = errors.New("decode update: invalid character")
	if rr := serve(srv, http.MethodPost, DefaultWebhookPath, []byte("nope"), authed); rr.Code != http.StatusBadRequest {
		t.Fatalf("bad update = %d, want 400", rr.Code)
	}

	hook.err = bot.ErrQueueFull
	rr := serve(srv, http.MethodPost, DefaultWebhookPath, body, authed)
	if rr.Code != http.StatusServiceUnavailable || rr.Header().Get("Retry-After") == "" {
		t.Fatalf("full queue = %d retry-after=%q, want 503 with Retry-After", rr.Code, rr.Header().Get("Retry-After"))
	}

	huge := []byte(strings.Repeat("x", maxUpdateSize+1))
	if rr := serve(srv, http.MethodPost, DefaultWebhookPath, huge, authed); rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("oversized update = %d, want 413", rr.Code)
	}
}

func TestWebhookCustomPath(t *testing.T) {
	hook := &fakeWebhook{}
	srv := NewServer(Options{Logger: quietLogger(), Webhook: hook, WebhookPath: "/hooks/abc", WebhookSecret: "k"})
	authed := http.Header{security.HeaderTelegramSecret: []string{"k"}}

	if rr := serve(srv, http.MethodPost, "/hooks/abc", []byte("{}"), authed); rr.Code != http.StatusOK {
		t.Fatalf("custom path = %d", rr.Code)
	}
	if rr := serve(srv, http.MethodPost, DefaultWebhookPath, []byte("{}"), authed); rr.Code != http.StatusNotFound {
		t.Fatalf("default path should be unrouted, got %d", rr.Code)
	}
}

func TestWebhookWithoutConfiguredSecretRejectsEverything(t *testing.T) {
	hook := &fakeWebhook{}
	srv := NewServer(Options{Logger: quietLogger(), Webhook: hook})

	forged := []byte(`{"update_id":7,"message":{"message_id":1,"chat":{"id":42},"text":"/delete 1"}}`)
	headers := []http.Header{
		nil,
		{security.HeaderTelegramSecret: []string{""}},
		{security.HeaderTelegramSecret: []string{"guess"}},
	}
	for _, h := range headers {
		if rr := serve(srv, http.MethodPost, DefaultWebhookPath, forged, h); rr.Code != http.StatusForbidden {
			t.Fatalf("forged update with header %v = %d, want 403", h, rr.Code)
		}
	}
	if len(hook.bodies) != 0 {
		t.Fatalf("forged updates reached the bot: %q", hook.bodies)
	}
}
