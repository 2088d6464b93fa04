// Package httpapi serves the webhook Google calls and a small read API over
// the event store.
package httpapi

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/compasscal/compass/internal/core"
	"github.com/compasscal/compass/internal/logging"
	"github.com/compasscal/compass/internal/reconcile"
)

// Push notifications carry no body; anything larger is not from Google.
const maxBodyBytes = 1 << 20

// SyncService is the part of reconcile.Service the server needs.
type SyncService interface {
	HandleNotification(ctx context.Context, n reconcile.Notification) (reconcile.Result, error)
	Calculator() *reconcile.Calculator
}

// Config holds server settings.
type Config struct {
	ListenAddr string
	// DefaultUser answers read requests that name no user.
	DefaultUser string
}

// Server is the HTTP API server for compass.
type Server struct {
	config Config
	http   *http.Server
	store  core.Storage
	sync   SyncService
	logger *slog.Logger
	addr   net.Addr
}

// NewServer creates a new Server.
func NewServer(cfg Config, store core.Storage, sync SyncService, logger *slog.Logger) *Server {
	s := &Server{
		config: cfg,
		store:  store,
		sync:   sync,
		logger: logging.OrDiscard(logger),
	}

	s.http = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Start begins listening for HTTP requests (non-blocking).
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	s.addr = ln.Addr()

	go func() {
		if err := s.http.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server", "err", err)
		}
	}()
	s.logger.Info("listening", "addr", s.addr.String())
	return nil
}

// Addr is the bound address once Start has returned.
func (s *Server) Addr() net.Addr {
	return s.addr
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// Handler builds the HTTP handler with all routes and middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)

	// Google push notifications
	mux.HandleFunc("POST /v1/sync/gcal/notifications", s.handleGcalNotification)
	mux.HandleFunc("GET /v1/sync/status", s.handleSyncStatus)

	// Events
	mux.HandleFunc("GET /v1/events", s.handleListEvents)
	mux.HandleFunc("GET /v1/events.ics", s.handleExportICS)

	return chain(mux, recoveryMiddleware, requestIDMiddleware, loggerMiddleware(s.logger), loggingMiddleware, maxBytesMiddleware(maxBodyBytes))
}
