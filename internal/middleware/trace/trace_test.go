package trace

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	applog "xarajat/internal/log"
)

func TestStart(t *testing.T) {
	var buf bytes.Buffer
	cfg := applog.DefaultConfig()
	cfg.Output = &buf
	ctx := applog.WithLogger(context.Background(), applog.New(cfg))

	ctx, id := Start(ctx, "")
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("generated id %q is not a uuid: %v", id, err)
	}
	if ID(ctx) != id {
		t.Fatalf("ID(ctx) = %q, want %q", ID(ctx), id)
	}

	applog.FromContext(ctx).InfoContext(ctx, "hello")
	if !strings.Contains(buf.String(), "trace_id="+id) {
		t.Fatalf("log line missing trace id: %s", buf.String())
	}

	if _, kept := Start(context.Background(), "given"); kept != "given" {
		t.Fatalf("explicit id replaced: %q", kept)
	}
	if ID(context.Background()) != "" {
		t.Fatal("empty context should carry no id")
	}
}

func TestMiddleware(t *testing.T) {
	var seen string
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = ID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if seen == "" || rec.Header().Get(HeaderRequestID) != seen {
		t.Fatalf("trace id %q, header %q", seen, rec.Header().Get(HeaderRequestID))
	}

	inbound := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, inbound)
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen != inbound {
		t.Fatalf("inbound id not honored: %q", seen)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "<script>")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen == "<script>" {
		t.Fatal("malformed inbound id should be replaced")
	}
}
