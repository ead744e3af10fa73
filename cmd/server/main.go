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
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/routemart/checkout-backend/internal/cache"
	"github.com/routemart/checkout-backend/internal/config"
	"github.com/routemart/checkout-backend/internal/database"
	"github.com/routemart/checkout-backend/internal/docstore"
	"github.com/routemart/checkout-backend/internal/handlers"
	"github.com/routemart/checkout-backend/internal/middleware"
	"github.com/routemart/checkout-backend/internal/services"
	"github.com/routemart/checkout-backend/pkg/busgw"
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

	logger.Info("Starting RouteMart Checkout Backend")
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
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// Initialize database connection
	logger.Info("Connecting to database...")
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("Database connection established")

	logger.Info("Running database migrations...")
	if err := database.RunMigrations(db); err != nil {
		logger.Fatalf("Failed to run migrations: %v", err)
	}

	// Initialize document store
	logger.Info("Connecting to document store...")
	connectCtx, cancelConnect := context.WithTimeout(context.Background(), 15*time.Second)
	mongoClient, mongoDB, err := docstore.Connect(connectCtx, cfg.DocumentStore)
	cancelConnect()
	if err != nil {
		logger.Fatalf("Failed to connect to document store: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())
	logger.Info("Document store connection established")

	cartDocs := docstore.NewCartDocumentRepository(mongoClient, mongoDB)
	indexCtx, cancelIndex := context.WithTimeout(context.Background(), 10*time.Second)
	if err := cartDocs.CreateIndexes(indexCtx); err != nil {
		logger.Warnf("Could not create document store indexes: %v", err)
	}
	cancelIndex()

	// Initialize snapshot cache
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Cache.Addr,
		Password: cfg.Cache.Password,
		DB:       cfg.Cache.DB,
	})
	defer redisClient.Close()
	snapshotCache := cache.NewRedisCache(redisClient, cfg.Cache.TTL)

	// Initialize repositories
	cartRecords := database.NewCartRecordRepository(db)
	tripSelections := database.NewTripSelectionRepository(db)
	agents := database.NewAgentRepository(db)

	// Initialize provider gateway
	gateway := busgw.NewHTTPGateway(busgw.HTTPGatewayConfig{
		BaseURL: cfg.Provider.BaseURL,
		APIKey:  cfg.Provider.APIKey,
		Timeout: cfg.Provider.Timeout,
	}, logger)

	// Initialize services
	logger.Info("Initializing services...")
	pricingService := services.NewPricingService(cfg.Pricing)
	identityService := services.NewCartIdentityService(cartDocs, logger)
	schemaService := services.NewQuestionSchemaService(logger)
	mapperService := services.NewPassengerMapperService(logger)
	ticketTypeService := services.NewTicketTypeService(logger)
	attributionService := services.NewAgentAttributionService(agents, logger)
	invoicingService := services.NewInvoicingService(&cfg.Invoicing, logger)
	invoiceBuilder := services.NewInvoiceBuilderService(
		invoicingService,
		pricingService,
		tripSelections,
		&cfg.Invoicing,
		logger,
	)
	checkoutService := services.NewCheckoutService(
		gateway,
		cartDocs,
		cartRecords,
		tripSelections,
		snapshotCache,
		identityService,
		schemaService,
		mapperService,
		ticketTypeService,
		attributionService,
		invoiceBuilder,
		logger,
	)

	// Initialize handlers
	checkoutHandler := handlers.NewCheckoutHandler(checkoutService, logger)

	// Initialize Gin router
	router := gin.New()

	// Middleware
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))

	// CORS configuration
	corsConfig := cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	router.Use(cors.New(corsConfig))

	// Health check endpoint
	router.GET("/health", healthCheckHandler(db, mongoClient, redisClient))

	// API v1 routes
	v1 := router.Group("/api/v1")
	v1.Use(middleware.AuthContext(cfg.JWT.Secret, logger))
	{
		checkout := v1.Group("/checkout")
		{
			checkout.POST("", checkoutHandler.Checkout)
			checkout.GET("/:durableId/status", checkoutHandler.Status)
		}
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
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

	logger.Info("Server exited successfully")
}

// requestLogger middleware for logging HTTP requests
func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery
		requestID := uuid.New().String()
		c.Set("request_id", requestID)

		c.Next()

		latency := time.Since(start)

		fields := logrus.Fields{
			"request_id": requestID,
			"status":     c.Writer.Status(),
			"method":     c.Request.Method,
			"path":       path,
			"query":      query,
			"ip":         c.ClientIP(),
			"latency_ms": latency.Milliseconds(),
			"user_agent": c.Request.UserAgent(),
		}

		if len(c.Errors) > 0 {
			fields["errors"] = c.Errors.String()
		}

		switch {
		case c.Writer.Status() >= 500:
			logger.WithFields(fields).Error("Request completed")
		case c.Writer.Status() >= 400:
			logger.WithFields(fields).Warn("Request completed")
		default:
			logger.WithFields(fields).Info("Request completed")
		}
	}
}

// healthCheckHandler probes all three stores.
func healthCheckHandler(db *sqlx.DB, mongoClient *mongo.Client, redisClient *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		checks := gin.H{}
		healthy := true

		if err := db.PingContext(ctx); err != nil {
			checks["database"] = "unreachable"
			healthy = false
		} else {
			checks["database"] = "ok"
		}

		if err := mongoClient.Ping(ctx, nil); err != nil {
			checks["document_store"] = "unreachable"
			healthy = false
		} else {
			checks["document_store"] = "ok"
		}

		if err := redisClient.Ping(ctx).Err(); err != nil {
			checks["cache"] = "unreachable"
			healthy = false
		} else {
			checks["cache"] = "ok"
		}

		status := http.StatusOK
		overall := "healthy"
		if !healthy {
			status = http.StatusServiceUnavailable
			overall = "degraded"
		}
		c.JSON(status, gin.H{
			"status":  overall,
			"version": version,
			"checks":  checks,
		})
	}
}
