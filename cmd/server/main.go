package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/seat-reservation/internal/cache"
	"github.com/smarttransit/seat-reservation/internal/config"
	"github.com/smarttransit/seat-reservation/internal/database"
	"github.com/smarttransit/seat-reservation/internal/events"
	"github.com/smarttransit/seat-reservation/internal/handlers"
	"github.com/smarttransit/seat-reservation/internal/middleware"
	"github.com/smarttransit/seat-reservation/internal/repository"
	"github.com/smarttransit/seat-reservation/internal/repository/memory"
	"github.com/smarttransit/seat-reservation/internal/services"
	"github.com/smarttransit/seat-reservation/pkg/jwt"
	"github.com/smarttransit/seat-reservation/pkg/validator"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.Info("Starting SmartTransit Seat Reservation Service")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Set log level
	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Set Gin mode
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	healthChecks := map[string]handlers.HealthCheck{}

	// Initialize storage
	var store repository.Store
	switch cfg.Storage.Backend {
	case "memory":
		mem := memory.NewStore()
		mem.SeedDemo(time.Now())
		store = mem
		logger.Warn("Using in-memory storage with demo data; reservations are lost on restart")
	default:
		logger.WithField("driver", cfg.Database.Driver).Info("Connecting to database...")
		db, err := database.NewConnection(cfg.Database)
		if err != nil {
			logger.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		logger.Info("Database connection established")

		store = database.NewStore(db.DB, cfg.Database.LockTimeout)
		healthChecks["database"] = db.PingContext
	}

	// Idempotency keys
	var idempotency cache.IdempotencyStore
	if cfg.Redis.URL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		client, err := cache.NewRedisClient(ctx, cfg.Redis.URL)
		cancel()
		if err != nil {
			logger.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer client.Close()
		idempotency = cache.NewRedisIdempotencyStore(client, cfg.Redis.IdempotencyTTL)
		healthChecks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		logger.Info("Idempotency keys stored in Redis")
	} else {
		mem := cache.NewMemoryIdempotencyStore(cfg.Redis.IdempotencyTTL)
		defer mem.Stop()
		idempotency = mem
		logger.Info("Idempotency keys stored in memory")
	}

	// Event publishing
	publisher := events.NewPublisher(cfg.Events, logger)
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close event publisher")
		}
	}()

	// Initialize services
	logger.Info("Initializing services...")
	jwtService := jwt.NewService(cfg.JWT.Secret, cfg.JWT.AccessTokenExpiry)
	pricingService := services.NewPricingService(store, logger)
	coordinator := services.NewReservationCoordinator(store, store, store, pricingService, publisher, logger)
	bookingService := services.NewBookingService(
		coordinator,
		store,
		idempotency,
		publisher,
		validator.NewPhoneValidator(),
		cfg.Booking.Currency,
		logger,
	)
	searchService := services.NewSearchService(store, logger)
	reconciler := services.NewReconciliationService(
		store,
		publisher,
		cfg.Reconcile.IncompleteAfter,
		cfg.Reconcile.PublishFindings,
		logger,
	)

	// Initialize and start cron service
	cronService := services.NewCronService(reconciler, cfg.Reconcile.Schedule, logger)
	if cfg.Reconcile.Enabled {
		if err := cronService.Start(); err != nil {
			logger.Fatalf("Failed to start cron service: %v", err)
		}
	} else {
		logger.Info("Scheduled reconciliation disabled")
	}

	// Initialize Gin router
	router := gin.New()

	// Middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger))

	// CORS configuration
	corsConfig := cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	router.Use(cors.New(corsConfig))

	routes := &handlers.Router{
		Health:  handlers.NewHealthHandler(version, healthChecks),
		Search:  handlers.NewSearchHandler(searchService, logger),
		Booking: handlers.NewBookingHandler(bookingService, logger),
		Admin:   handlers.NewAdminHandler(cronService, logger),
		JWT:     jwtService,
	}
	routes.Register(router)

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Infof("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	if cfg.Reconcile.Enabled {
		logger.Info("Stopping cron service...")
		cronService.Stop()
	}

	logger.Info("Server exited successfully")
}
