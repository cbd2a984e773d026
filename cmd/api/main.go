package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-contrib/gzip"
	_ "github.com/joho/godotenv/autoload"

	"github.com/costledger/costledger-api/internal/config"
	"github.com/costledger/costledger-api/internal/database"
	"github.com/costledger/costledger-api/internal/handlers"
	"github.com/costledger/costledger-api/internal/jobs"
	"github.com/costledger/costledger-api/internal/middleware"
	"github.com/costledger/costledger-api/internal/repository"
	"github.com/costledger/costledger-api/internal/services"
	"github.com/costledger/costledger-api/pkg/logger"

	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Setup(cfg.Environment)

	// Initialize Sentry when DSN is configured
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			TracesSampleRate: 0.2,
			Environment:      cfg.Environment,
		}); err != nil {
			logger.Error("Sentry initialization failed", "error", err)
		} else {
			logger.Info("Sentry initialized")
		}
	}

	// Set Gin mode
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Connect to database
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	logger.Info("Connected to database")

	// Run schema migrations
	if err := database.Migrate(db); err != nil {
		logger.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	logger.Info("Migrations applied")

	// Initialize repositories
	repos := repository.NewRepositories(db)

	// Initialize background worker
	worker := jobs.NewWorker(cfg.WorkerCount)
	logger.Info("Started background worker", "goroutines", cfg.WorkerCount)

	// Initialize services
	svcs := services.NewServices(db, repos, cfg, worker)

	// Schedule recurring jobs
	scheduleJobs(worker, svcs)

	// Initialize handlers
	h := handlers.NewHandlers(svcs)

	// Setup router
	router := setupRouter(h, cfg)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	// Create context with timeout for shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Shutdown HTTP server
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	// Shutdown background worker
	worker.Shutdown()
	logger.Info("Background worker stopped")

	// Flush Sentry events before exit
	if cfg.SentryDSN != "" {
		sentry.Flush(5 * time.Second)
	}

	logger.Info("Server exited gracefully")
}

func setupRouter(h *handlers.Handlers, cfg *config.Config) *gin.Engine {
	router := gin.New()

	// Global middleware
	if cfg.SentryDSN != "" {
		router.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.CORS(cfg.AllowedOrigins))
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Health check (public)
		v1.GET("/health", h.Health.Check)

		// Protected routes (requires authentication)
		protected := v1.Group("")
		protected.Use(middleware.Auth(cfg.JWTSecret))
		{
			// Work orders
			workOrders := protected.Group("/work-orders")
			{
				workOrders.POST("", h.WorkOrder.Create)
				workOrders.GET("", h.WorkOrder.Index)
				workOrders.GET("/:id", h.WorkOrder.Show)
				workOrders.GET("/:id/versions", h.WorkOrder.Versions)
				workOrders.POST("/:id/issue", h.WorkOrder.Issue)
				workOrders.POST("/:id/revise", h.WorkOrder.Revise)
				workOrders.POST("/:id/cancel", h.WorkOrder.Cancel)
				workOrders.POST("/:id/lock", h.WorkOrder.Lock)
				workOrders.POST("/:id/unlock", h.WorkOrder.Unlock)
				workOrders.DELETE("/:id", h.WorkOrder.Delete)
			}

			// Payment certificates
			certificates := protected.Group("/payment-certificates")
			{
				certificates.POST("", h.Certificate.Create)
				certificates.GET("", h.Certificate.Index)
				certificates.GET("/:id", h.Certificate.Show)
				certificates.GET("/:id/versions", h.Certificate.Versions)
				certificates.POST("/:id/certify", h.Certificate.Certify)
				certificates.POST("/:id/payments", h.Certificate.Pay)
				certificates.GET("/:id/payments", h.Certificate.Payments)
				certificates.POST("/:id/cancel", h.Certificate.Cancel)
				certificates.POST("/:id/lock", h.Certificate.Lock)
				certificates.POST("/:id/unlock", h.Certificate.Unlock)
				certificates.DELETE("/:id", h.Certificate.Delete)
			}

			// Budget, aggregate and retention surface per (project, cost code)
			finance := protected.Group("/finance/:project_id/:cost_code")
			{
				finance.GET("/aggregate", h.Finance.Aggregate)
				finance.PUT("/budget", h.Finance.UpdateBudget)
				finance.POST("/retention-releases", h.Finance.ReleaseRetention)
				finance.GET("/events", h.Finance.Events)
			}

			// Audits (admin only)
			admin := protected.Group("")
			admin.Use(middleware.RequireAdmin())
			{
				admin.GET("/audits", h.Audit.Index)
			}
		}
	}

	return router
}

func scheduleJobs(worker *jobs.Worker, svcs *services.Services) {
	// Re-derive all aggregates and re-check invariants every 6 hours
	worker.ScheduleEvery(6*time.Hour, func(ctx context.Context) error {
		logger.Info("[Job] Reconciling financial aggregates...")
		return svcs.Ledger.ReconcileAggregates(ctx)
	})

	logger.Info("Scheduled recurring jobs")
}
