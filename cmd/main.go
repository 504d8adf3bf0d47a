package main

import (
	"time"

	"github.com/vkrizan/insights-host-inventory/internal/handler"
	"github.com/vkrizan/insights-host-inventory/internal/inventory"
	"github.com/vkrizan/insights-host-inventory/internal/middleware"
	"github.com/vkrizan/insights-host-inventory/pkg/config"
	"github.com/vkrizan/insights-host-inventory/pkg/database"
	"github.com/vkrizan/insights-host-inventory/pkg/jwtutil"
	"github.com/vkrizan/insights-host-inventory/pkg/logger"
	"github.com/vkrizan/insights-host-inventory/prometheus"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

func main() {
	// Load configuration from .env file and environment variables
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger with config
	logger.InitLogger(cfg)
	log := logger.GetLogger()
	log.Info("Starting host inventory service...", zap.String("environment", cfg.Server.Env))

	// Initialize JWT utilities for the service-account identity path
	jwtutil.Initialize(&cfg.JWT)
	log.Info("JWT utilities initialized")

	// Initialize Prometheus metrics
	prometheus.InitMetrics(cfg)
	httpMetrics := prometheus.NewHTTPMetrics(cfg, "host-inventory")
	log.Info("Prometheus metrics initialized")

	// Initialize database and run migrations
	if err := database.InitDB(cfg); err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	log.Info("Database connection established and migrations completed",
		zap.String("db_host", cfg.Database.Host),
		zap.String("db_name", cfg.Database.Name))

	// Wire the reconciliation core and its HTTP handler
	service := inventory.New(database.GetDB(), log, inventory.Options{
		TagFilterMode: cfg.Inventory.TagFilterMode,
	})
	hosts := handler.NewHostHandler(service)

	// Create Echo instance
	e := echo.New()
	e.Validator = handler.NewRequestValidator()

	// Middleware
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(middleware.RequestIDMiddleware)
	e.Use(httpMetrics.Middleware())

	// Request logging middleware
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			// Process request
			err := next(c)

			// Log request details
			log := logger.FromContext(c)
			log.Info("HTTP Request",
				zap.String("method", c.Request().Method),
				zap.String("path", c.Request().URL.Path),
				zap.Int("status", c.Response().Status),
				zap.Float64("duration_s", time.Since(start).Seconds()),
				zap.String("ip", c.RealIP()),
			)

			return err
		}
	})

	// Routes
	// Public routes that don't require an identity
	e.GET("/", handler.Hello)
	e.GET("/health", handler.HealthCheck)

	// Prometheus metrics endpoint
	e.GET("/metrics", echo.WrapHandler(prometheus.GetPrometheusHandler()))

	// API routes scoped to the caller's account
	api := e.Group("/api")
	api.Use(middleware.IdentityMiddleware)

	api.POST("/hosts", hosts.CreateOrUpdateHost)
	api.GET("/hosts", hosts.ListHosts)
	api.GET("/hosts/:host_id_list", hosts.GetHosts)
	api.PATCH("/hosts/:host_id_list/facts/:namespace", hosts.PatchFacts)
	api.PUT("/hosts/:host_id_list/facts/:namespace", hosts.ReplaceFacts)
	api.POST("/hosts/:host_id_list/tags", hosts.TagOperation)

	// Start server
	port := cfg.Server.Port
	log.Info("Starting server", zap.String("port", port))
	if err := e.Start(":" + port); err != nil {
		log.Fatal("Failed to start server", zap.Error(err))
	}
}
