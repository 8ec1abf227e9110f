// Package middleware provides HTTP middleware for the gateway API.
package middleware

import (
	"context"
	"net"
	"net/http"

	"github.com/google/uuid"

	"github.com/marmos91/tollgate/internal/logger"
)

// HeaderRequestID is the header clients use to supply their own request ID.
const HeaderRequestID = "X-Request-ID"

// Context key type for storing the request ID
type contextKey string

const requestIDContextKey contextKey = "request_id"

// GetRequestID retrieves the request ID from the request context.
// Returns an empty string if the RequestID middleware did not run.
func GetRequestID(ctx context.Context) string {
	id, ok := ctx.Value(requestIDContextKey).(string)
	if !ok {
		return ""
	}
	return id
}

// RequestID is a middleware that assigns every request an ID.
//
// An X-Request-ID header supplied by the client is echoed back unchanged so
// callers can correlate their own traces with gateway decisions. Requests
// without the header get a fresh UUID. The ID is stored in the request
// context, set on the response header, and seeded into a log context so
// every line emitted while handling the request carries it.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}

		w.Header().Set(HeaderRequestID, id)

		clientIP := r.RemoteAddr
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			clientIP = host
		}

		ctx := context.WithValue(r.Context(), requestIDContextKey, id)
		ctx = logger.WithContext(ctx, logger.NewLogContext(id, clientIP))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
