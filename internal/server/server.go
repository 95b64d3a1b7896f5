// Package server wires the application together: it owns the composition
// root where the database, services, and handlers are constructed, maps
// routes to handlers, and runs the HTTP server with graceful shutdown.
//
// No ambient singletons anywhere: main.go builds a Config, New constructs
// every dependency explicitly, and each handler receives exactly the
// collaborators it needs.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/gallery/internal/auth"
	"github.com/sakif/gallery/internal/handler"
	"github.com/sakif/gallery/internal/middleware"
	sqliteRepo "github.com/sakif/gallery/internal/repository/sqlite"
	"github.com/sakif/gallery/internal/service"
	"github.com/sakif/gallery/internal/storage"
	"github.com/sakif/gallery/internal/storage/imagekit"
)

// Config holds everything the server needs from the environment.
type Config struct {
	Port   int
	DBPath string

	JWTSecret string
	TokenTTL  time.Duration

	ImageKitPrivateKey string
	ImageKitUploadURL  string // empty = ImageKit's public endpoint
}

// Server owns the router and the resources that must be released on
// shutdown (currently just the database pool).
type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New builds the full dependency graph:
//
//	sqlite.DB → repositories
//	TokenService + PasswordService → AuthService
//	imagekit.Client → PostService
//	services → handlers → routes
//
// The uploader parameter may be nil, in which case the ImageKit client is
// constructed from the config; tests pass a mock instead.
func New(cfg Config, logger *slog.Logger, uploader storage.Uploader) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if uploader == nil {
		uploader, err = imagekit.New(cfg.ImageKitPrivateKey, cfg.ImageKitUploadURL)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("creating upload client: %w", err)
		}
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(uploader); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// setupRoutes builds services and handlers and binds the route table:
//
//	GET    /                → welcome
//	GET    /health          → liveness probe
//	POST   /auth/register   → create account
//	POST   /auth/login      → issue bearer token
//	GET    /auth/me         → current user            (auth)
//	GET    /items/          → list posts, newest first
//	GET    /items/{id}      → single post
//	POST   /upload          → upload file, create post (auth)
//	PATCH  /items/{id}      → update caption           (auth)
//	DELETE /items/{id}      → delete post              (auth)
func (s *Server) setupRoutes(uploader storage.Uploader) error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	tokens, err := auth.NewTokenService(s.config.JWTSecret, s.config.TokenTTL)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	passwords := auth.NewPasswordService()

	users := s.db.Users()
	posts := s.db.Posts()

	authService := service.NewAuthService(users, tokens, passwords, s.logger)
	postService := service.NewPostService(posts, uploader, s.logger)

	authHandler := handler.NewAuthHandler(authService, s.logger)
	postHandler := handler.NewPostHandler(postService, s.logger)

	requireAuth := auth.RequireAuth(tokens, users)

	s.router.Get("/", handler.HandleRoot)
	s.router.Get("/health", handler.HandleHealth)

	s.router.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.HandleRegister)
		r.Post("/login", authHandler.HandleLogin)
		r.With(requireAuth).Get("/me", authHandler.HandleMe)
	})

	s.router.Route("/items", func(r chi.Router) {
		r.Get("/", postHandler.HandleList)
		r.Get("/{id}", postHandler.HandleGet)
		r.With(requireAuth).Patch("/{id}", postHandler.HandleUpdate)
		r.With(requireAuth).Delete("/{id}", postHandler.HandleDelete)
	})

	s.router.With(requireAuth).Post("/upload", postHandler.HandleUpload)

	return nil
}

// Handler exposes the router; tests drive it with httptest without
// binding a socket.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs the HTTP server until SIGINT/SIGTERM, then drains in-flight
// requests (30s budget) and closes the database last so pending writes
// flush cleanly.
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
