// Package api serves the sheets store over HTTP: JSON endpoints for schema
// and row operations, a health check that reports bookkeeping drift, and a
// websocket feed of change events.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/mesh-intelligence/sheets/internal/logging"
	"github.com/mesh-intelligence/sheets/pkg/types"
)

// Server routes HTTP requests to a Store.
type Server struct {
	cfg   Config
	store types.Store
	hub   *Hub

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a server for store and starts its event hub. Call Close (or
// let Serve return) to stop the hub.
func New(store types.Store, cfg Config) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:    cfg.withDefaults(),
		store:  store,
		hub:    NewHub(),
		ctx:    ctx,
		cancel: cancel,
	}
	go s.hub.Run(ctx)
	return s
}

// Close stops the event hub and disconnects websocket clients.
func (s *Server) Close() {
	s.cancel()
}

// Hub returns the server's event hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// routes registers every endpoint on a new mux.
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/events", s.handleEvents)

	mux.HandleFunc("GET /api/tables", s.handleListTables)
	mux.HandleFunc("POST /api/tables", s.handleCreateTable)
	mux.HandleFunc("DELETE /api/tables/{table}", s.handleDropTable)
	mux.HandleFunc("PATCH /api/tables/{table}", s.handleRenameTable)

	mux.HandleFunc("GET /api/tables/{table}/columns", s.handleListColumns)
	mux.HandleFunc("POST /api/tables/{table}/columns", s.handleAddColumn)
	mux.HandleFunc("PATCH /api/tables/{table}/columns/{column}", s.handleRenameColumn)
	mux.HandleFunc("DELETE /api/tables/{table}/columns/{column}", s.handleDropColumn)

	mux.HandleFunc("GET /api/tables/{table}/rows", s.handleListRows)
	mux.HandleFunc("POST /api/tables/{table}/rows", s.handleInsertRow)
	mux.HandleFunc("GET /api/tables/{table}/rows/{id}", s.handleGetRow)
	mux.HandleFunc("PUT /api/tables/{table}/rows/{id}", s.handleUpdateRow)
	mux.HandleFunc("DELETE /api/tables/{table}/rows/{id}", s.handleDeleteRow)

	mux.HandleFunc("/", handleNotFound)
	return mux
}

// Handler returns the routed handler wrapped in the middleware chain:
// request ID and access log, CORS, rate limit, security headers.
func (s *Server) Handler() http.Handler {
	var handler http.Handler = securityHeaders(s.routes())
	if s.cfg.RateLimit.RPS > 0 {
		handler = NewRateLimiter(s.cfg.RateLimit).Middleware(handler)
	}
	handler = s.cors(handler)
	return logging.CombinedMiddleware(handler)
}

// ListenAndServe listens on the configured address and serves until ctx is
// done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Listen, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then shuts down
// gracefully, waiting up to ShutdownTimeout for in-flight requests.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer s.Close()

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log := logging.Logger().WithField("addr", ln.Addr().String())
	if len(s.cfg.AllowedOrigins) == 0 {
		log = log.WithField("cors", "any origin")
	}
	log.Info("server listening")

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logging.Logger().WithField("timeout", s.cfg.ShutdownTimeout.String()).Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}
