package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jonboulle/clockwork"

	"github.com/marmos91/tollgate/internal/logger"
	"github.com/marmos91/tollgate/pkg/api/handlers"
	apimiddleware "github.com/marmos91/tollgate/pkg/api/middleware"
)

// NewRouter creates and configures the chi router with all middleware and routes.
//
// The router is configured with:
//   - Request ID middleware that echoes X-Request-ID or mints a fresh UUID
//   - Real IP extraction for proper client identification
//   - Custom request logging using the internal logger
//   - Panic recovery returning problem responses
//   - Permissive CORS so browser clients can call the gateway directly
//   - Request timeout to prevent hung requests
//
// Routes:
//   - POST /validate - Credential validation
//   - GET /health - Liveness probe
//   - GET /metrics - Counter snapshot
//   - GET /status - Service identity and verdict counts
//   - GET / - Endpoint directory
//
// Unknown routes and methods respond with problem bodies rather than the
// bare defaults.
func NewRouter(gw handlers.Gateway, info handlers.ServiceInfo) http.Handler {
	r := chi.NewRouter()

	// Middleware stack - order matters
	r.Use(apimiddleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
		MaxAge:         300,
	}))
	r.Use(middleware.Timeout(30 * time.Second))

	validateHandler := handlers.NewValidateHandler(gw)
	statusHandler := handlers.NewStatusHandler(gw, info, clockwork.NewRealClock())

	r.Post("/validate", validateHandler.Validate)
	r.Get("/health", statusHandler.Health)
	r.Get("/metrics", statusHandler.Metrics)
	r.Get("/status", statusHandler.Status)
	r.Get("/", statusHandler.Root)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		handlers.NotFound(w, fmt.Sprintf("No route for %s", r.URL.Path))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		handlers.MethodNotAllowed(w, fmt.Sprintf("Method %s is not allowed for %s", r.Method, r.URL.Path))
	})

	return r
}

// requestLogger is a custom middleware that logs requests using the internal logger.
//
// It logs:
//   - Request start (DEBUG level): method, path, remote addr
//   - Request completion (INFO level): method, path, status, duration
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := apimiddleware.GetRequestID(r.Context())

		logger.Debug("API request started",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
		)

		// Wrap response writer to capture status code
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		duration := time.Since(start)

		logger.Info("API request completed",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", duration.String(),
		)
	})
}

// recoverer converts handler panics into problem responses.
//
// Panics inside the validation pipeline never reach this middleware; the
// engine maps those to DENY verdicts itself. This covers the HTTP layer
// around it.
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if cause := recover(); cause != nil {
				if cause == http.ErrAbortHandler {
					panic(cause)
				}

				logger.Error("API handler panicked",
					"request_id", apimiddleware.GetRequestID(r.Context()),
					"method", r.Method,
					"path", r.URL.Path,
					"panic", fmt.Sprint(cause),
				)

				handlers.InternalServerError(w, "Internal server error")
			}
		}()

		next.ServeHTTP(w, r)
	})
}
