package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"registry-be/internal/config"
	"registry-be/internal/container"
	"registry-be/internal/handler"
	"registry-be/internal/middleware"
	"registry-be/pkg/logger"
)

// Resources holds all resources that need cleanup
type Resources struct {
	container *container.Container
	server    *http.Server
	log       *logger.Logger
	mu        sync.Mutex
	closed    bool
}

// Cleanup gracefully closes all resources
func (r *Resources) Cleanup(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	var errors []error

	r.log.Info("Starting graceful shutdown...")

	// Shutdown HTTP server first to stop accepting new requests
	if r.server != nil {
		r.log.Info("Shutting down HTTP server...")
		if err := r.server.Shutdown(ctx); err != nil {
			r.log.WithError(err).Error("Failed to shutdown HTTP server")
			errors = append(errors, fmt.Errorf("HTTP server shutdown: %w", err))
		} else {
			r.log.Info("HTTP server shutdown complete")
		}
	}

	// Close Redis connection with health check
	if r.container.HasRedis() {
		r.log.Info("Closing Redis connection...")

		healthCtx, healthCancel := context.WithTimeout(ctx, 2*time.Second)
		if err := r.container.GetRedisClient().Health(healthCtx); err != nil {
			r.log.WithError(err).Warn("Redis health check failed before closing")
		}
		healthCancel()

		if err := r.container.GetRedisClient().Close(); err != nil {
			r.log.WithError(err).Error("Failed to close Redis connection")
			errors = append(errors, fmt.Errorf("Redis close: %w", err))
		} else {
			r.log.Info("Redis connection closed successfully")
		}
	}

	// Close database connection pool
	if r.container.DB != nil {
		r.log.Info("Closing database connection pool...")
		r.container.DB.Close()
		r.log.Info("Database connection pool closed successfully")
	}

	if len(errors) > 0 {
		r.log.WithField("error_count", len(errors)).Error("Cleanup completed with errors")
		return fmt.Errorf("cleanup completed with %d errors: %v", len(errors), errors)
	}

	r.log.Info("Graceful shutdown completed successfully")
	return nil
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log.WithFields(map[string]interface{}{
		"port":        cfg.Port,
		"log_level":   cfg.LogLevel,
		"environment": cfg.Environment,
	}).Info("Starting registry-be server")

	if cfg.AuthJWTSecret == "" {
		log.Fatal("AUTH_JWT_SECRET is required")
	}

	// Create dependency injection container
	ctx := context.Background()
	c, err := container.New(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to create container")
	}

	// Restore the ledger from persistence before serving traffic
	if err := c.CampaignService.Bootstrap(ctx); err != nil {
		log.WithError(err).Fatal("Failed to restore ledger state")
	}

	// Setup router
	router := setupRouter(c)

	// Create HTTP server
	server := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        router,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   60 * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1MB max header size
	}

	// Create resources manager for cleanup
	resources := &Resources{
		container: c,
		server:    server,
		log:       log,
	}

	// Setup graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)

	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := resources.Cleanup(cleanupCtx); err != nil {
			log.WithError(err).Error("Cleanup completed with errors")
		}
	}()

	// Start server in a goroutine
	serverErrChan := make(chan error, 1)
	go func() {
		log.Info("Server starting on port " + cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("Server error occurred")
			serverErrChan <- err
		}
	}()

	// Wait for interrupt signal or server error
	select {
	case sig := <-quit:
		log.WithField("signal", sig.String()).Info("Received shutdown signal")
	case err := <-serverErrChan:
		log.WithError(err).Error("Server failed, initiating shutdown")
	}

	log.Info("Initiating graceful shutdown...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
	defer cancel()

	if err := resources.Cleanup(shutdownCtx); err != nil {
		log.WithError(err).Error("Graceful shutdown completed with errors")
		os.Exit(1)
	}

	log.Info("Application shutdown complete")
}

// setupRouter configures and returns the HTTP router
func setupRouter(c *container.Container) *chi.Mux {
	cfg := c.GetConfig()
	log := c.GetLogger()

	r := chi.NewRouter()

	// Setup CORS middleware
	corsConfig := &middleware.CORSConfig{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Content-Length", "Accept-Encoding", "Authorization"},
		ExposedHeaders:   []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           86400,
	}

	// Setup middlewares
	r.Use(middleware.CORS(corsConfig, log))
	r.Use(middleware.RequestID(log))
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Compress(5))
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	// Create handlers
	healthHandler := handler.NewHealthHandler(c)
	campaignHandler := handler.NewCampaignHandler(c.CampaignService)
	metadataHandler := handler.NewMetadataHandler(c.MetadataService, c.VideoService)

	auth := middleware.Auth(cfg.AuthJWTSecret, log)

	// Health check (no auth required)
	r.Get("/health", healthHandler.Check)

	r.Route("/api/v1", func(r chi.Router) {
		// Public read endpoints
		r.Get("/campaigns", campaignHandler.ListCampaigns)
		r.Get("/campaigns/{campaignID}", campaignHandler.GetCampaign)
		r.Get("/campaigns/{campaignID}/participation/{address}", campaignHandler.GetParticipation)
		r.Get("/campaigns/{campaignID}/events", campaignHandler.GetCampaignEvents)
		r.Get("/users/{address}/earnings", campaignHandler.GetUserEarnings)
		r.Get("/users/{address}/campaigns", campaignHandler.GetUserCompletedCampaigns)
		r.Get("/metadata", metadataHandler.FetchMetadata)
		r.Get("/videos/{videoID}", metadataHandler.GetVideoInfo)

		// Protected mutation endpoints
		r.Group(func(r chi.Router) {
			r.Use(auth)

			r.Post("/campaigns", campaignHandler.CreateCampaign)
			r.Post("/campaigns/{campaignID}/fund", campaignHandler.FundCampaign)
			r.Post("/campaigns/{campaignID}/complete", campaignHandler.CompleteCampaign)
			r.Post("/campaigns/{campaignID}/toggle", campaignHandler.ToggleCampaignStatus)
			r.Post("/campaigns/{campaignID}/withdraw", campaignHandler.WithdrawUnusedFunds)
			r.Post("/metadata", metadataHandler.PinMetadata)
		})

		// Development helpers: faucet, treasury snapshot, dev sign-in
		if cfg.IsDevelopment() {
			devHandler := handler.NewDevHandler(c)
			r.Route("/dev", func(r chi.Router) {
				r.Post("/signin", devHandler.SignIn)
				r.Post("/faucet", devHandler.Faucet)
				r.Get("/treasury", devHandler.Treasury)
			})
			log.Warn("Development endpoints enabled")
		}
	})

	return r
}
