/*
server.go - HTTP router, middleware and server lifecycle

PURPOSE:
  Configures the chi router, the middleware stack and the read-only claim
  routes, and runs the HTTP server until its context is cancelled.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request, echoed in logs
  2. Logging:    One zap line per request with status and duration
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin GETs for dashboards

ROUTES:
  GET /api/claims                      List claims (?status=, ?intervenor=, ?open=)
  GET /api/claims/{intervenor}/{date}  One claim by its natural key
  GET /api/reports                     Ingested snapshots, oldest first
  GET /api/summary                     Counts and durations across the ledger

  Nothing here writes to the store. Ingestion happens only through the CLI.

GRACEFUL SHUTDOWN:
  On context cancellation the server stops accepting connections and waits
  up to ShutdownTimeout for active requests.

SEE ALSO:
  - handlers.go: Handler implementations
  - cli/serve.go: Server startup
*/
package api

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/warp/claim-ledger/logger"
)

const ShutdownTimeout = 30 * time.Second

// RouterOptions tunes the middleware stack.
type RouterOptions struct {
	// AllowedOrigins for CORS. Empty allows none.
	AllowedOrigins []string
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger(h.log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/claims", func(r chi.Router) {
			r.Get("/", h.ListClaims)
			r.Get("/{intervenor}/{date}", h.GetClaim)
		})
		r.Get("/reports", h.ListReports)
		r.Get("/summary", h.GetSummary)
	})

	return r
}

// requestLogger logs each request once it completes.
func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				log.Info("request",
					zap.String(logger.FieldRequestID, middleware.GetReqID(r.Context())),
					zap.String(logger.FieldMethod, r.Method),
					zap.String(logger.FieldPath, r.URL.Path),
					zap.Int(logger.FieldHTTPStatus, ww.Status()),
					zap.Int64(logger.FieldDurationMS, time.Since(start).Milliseconds()),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

// Serve runs handler on ln until ctx is cancelled, then shuts down gracefully.
func Serve(ctx context.Context, ln net.Listener, handler http.Handler, log *zap.Logger) error {
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String(logger.FieldAddress, ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "server failed")
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "server forced to shutdown")
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server failed")
	}
	return nil
}

// ListenAndServe listens on addr and calls Serve.
func ListenAndServe(ctx context.Context, addr string, handler http.Handler, log *zap.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", addr)
	}
	return Serve(ctx, ln, handler, log)
}
