// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer: it connects the store, the sync
// engine, handlers and middleware. It decides:
// - Which URL patterns map to which handler functions
// - What middleware runs on which routes
// - How the server starts and stops gracefully
//
// DEPENDENCY INJECTION FLOW:
//
//	config.Config
//	  → sqlstore.DB ──→ Records() → engine.Engine ──→ SyncHandler
//	  │              └→ Users()   → service.AuthService → AuthHandler
//	  → archive.S3Archiver (optional) ↗ engine
//
// This is the "composition root" pattern: every dependency is built here,
// in one place, rather than scattered across the codebase.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/spacesync/internal/archive"
	"github.com/sakif/spacesync/internal/auth"
	"github.com/sakif/spacesync/internal/config"
	"github.com/sakif/spacesync/internal/engine"
	"github.com/sakif/spacesync/internal/handler"
	"github.com/sakif/spacesync/internal/middleware"
	"github.com/sakif/spacesync/internal/repository/sqlstore"
	"github.com/sakif/spacesync/internal/service"
)

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database connection. Run closes it on the way out so
// SQLite can checkpoint its WAL and release the file lock.
type Server struct {
	router *chi.Mux
	config config.Config
	logger *slog.Logger
	db     *sqlstore.DB

	passwords *auth.PasswordService
}

// Option customises New.
type Option func(*Server)

// WithPasswordService replaces the bcrypt settings. Tests use the minimum
// cost to stay fast.
func WithPasswordService(p *auth.PasswordService) Option {
	return func(s *Server) { s.passwords = p }
}

// New opens the database, applies migrations when configured to, and wires
// every route. The caller must call Run (which closes the database) or Close.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger, opts ...Option) (*Server, error) {
	if err := ensureDataDir(cfg.Database); err != nil {
		return nil, err
	}

	db, err := sqlstore.Open(ctx, cfg.Database.Driver, cfg.Database.DSN, logger)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router:    chi.NewRouter(),
		config:    cfg,
		logger:    logger,
		db:        db,
		passwords: auth.NewPasswordService(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrating database: %w", err)
		}
	}

	if err := s.setupRoutes(ctx); err != nil {
		db.Close() // Clean up DB if route setup fails
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// Handler returns the root http.Handler. httptest servers use it directly.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the database. Run calls it; only callers that never Run
// need it.
func (s *Server) Close() error {
	return s.db.Close()
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// GET    /healthz                → liveness probe (pings the database)
// POST   /api/auth/register      → create account, returns token
// POST   /api/auth/login         → returns token
// POST   /api/auth/logout        → clears the token cookie
// GET    /api/auth/me            → current user          [auth]
// POST   /api/sync/push          → apply device changes  [auth]
// GET    /api/sync/pull          → changes since a time  [auth]
// POST   /api/sync/backup        → full export           [auth]
// POST   /api/sync/restore       → sweep and replay      [auth]
//
// MIDDLEWARE ORDER MATTERS:
// 1. RequestID: assigns unique ID to each request (the logger prints it)
// 2. RealIP: extracts real client IP from proxy headers
// 3. Recoverer: catches panics and returns 500 instead of crashing
// 4. Logger: logs each request with timing info
func (s *Server) setupRoutes(ctx context.Context) error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	tokens, err := auth.NewTokenService(s.config.Auth.JWTSecret, s.config.Auth.TokenTTL)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}

	var engineOpts []engine.Option
	if s.config.S3.Enabled() {
		archiver, err := archive.NewS3(ctx, archive.Config{
			Bucket:       s.config.S3.Bucket,
			Region:       s.config.S3.Region,
			Endpoint:     s.config.S3.Endpoint,
			AccessKey:    s.config.S3.AccessKey,
			SecretKey:    s.config.S3.SecretKey,
			UsePathStyle: s.config.S3.UsePathStyle,
		})
		if err != nil {
			return fmt.Errorf("creating backup archiver: %w", err)
		}
		engineOpts = append(engineOpts, engine.WithArchiver(archiver))
		s.logger.Info("backup archival enabled", slog.String("bucket", s.config.S3.Bucket))
	}

	// DEPENDENCY CHAIN:
	//   s.db.Records() → engine → SyncHandler
	//   s.db.Users() + preferences store → AuthService → AuthHandler
	// Handlers never touch the database directly.
	records := s.db.Records()
	syncEngine := engine.New(records, s.logger, engineOpts...)
	accounts := service.NewAuthService(s.db.Users(), records.Preferences(), tokens, s.passwords, s.logger)

	syncHandler := handler.NewSyncHandler(syncEngine, s.logger)
	authHandler := handler.NewAuthHandler(accounts, s.logger)
	healthHandler := handler.NewHealthHandler(s.db, s.logger)

	requireAuth := auth.RequireAuth(tokens)

	s.router.Get("/healthz", healthHandler.HandleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(middleware.LimitBody(s.config.MaxBodyBytes))

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.HandleRegister)
			r.Post("/login", authHandler.HandleLogin)
			r.Post("/logout", authHandler.HandleLogout)
			r.With(requireAuth).Get("/me", authHandler.HandleMe)
		})

		r.Route("/sync", func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/push", syncHandler.HandlePush)
			r.Get("/pull", syncHandler.HandlePull)
			r.Post("/backup", syncHandler.HandleBackup)
			r.Post("/restore", syncHandler.HandleRestore)
		})
	})

	return nil
}

// Start runs the server until SIGINT or SIGTERM.
func (s *Server) Start() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.Run(ctx)
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (30s timeout)
// 3. Close the database connection
//
// A push interrupted by the deadline is safe to retry: every record write
// is conditional on updatedAt.
func (s *Server) Run(ctx context.Context) error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("driver", s.config.Database.Driver),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case <-ctx.Done():
		s.logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

// ensureDataDir creates the parent directory of a SQLite database file
// (like `mkdir -p`). In-memory and URI DSNs are left alone.
func ensureDataDir(db config.Database) error {
	if db.Driver != sqlstore.DriverSQLite || db.DSN == ":memory:" || strings.HasPrefix(db.DSN, "file:") {
		return nil
	}
	dir := filepath.Dir(db.DSN)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating database directory %s: %w", dir, err)
	}
	return nil
}
