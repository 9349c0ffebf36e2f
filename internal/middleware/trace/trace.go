// Package trace assigns a trace id to each unit of work and binds it to the
// context logger, so every log line of one update or request can be correlated.
package trace

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	applog "xarajat/internal/log"
)

type contextKey struct{}

// HeaderRequestID is honored on inbound HTTP requests and echoed on responses.
const HeaderRequestID = "X-Request-ID"

func NewID() string {
	return uuid.NewString()
}

// Start returns a context carrying id (a fresh one when empty) and a child of
// the context logger tagged with it.
func Start(ctx context.Context, id string) (context.Context, string) {
	if id == "" {
		id = NewID()
	}
	logger := applog.FromContext(ctx).With(applog.FieldTraceID, id)
	ctx = context.WithValue(ctx, contextKey{}, id)
	return applog.WithLogger(ctx, logger), id
}

// ID extracts the trace id from ctx, or "" when none was started.
func ID(ctx context.Context) string {
	if id, ok := ctx.Value(contextKey{}).(string); ok {
		return id
	}
	return ""
}

// Middleware starts a trace per request. It must run inside applog.Middleware
// so the tagged logger derives from the request logger.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderRequestID)
		if _, err := uuid.Parse(id); err != nil {
			id = ""
		}
		ctx, id := Start(r.Context(), id)
		w.Header().Set(HeaderRequestID, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
