package main

import (
	"context"
	"fmt"
	"log"

	echoMiddleware "github.com/labstack/echo/v4/middleware"

	"github.com/labstack/echo/v4"

	"mizan2/internal/caching"
	"mizan2/internal/config"
	"mizan2/internal/handlers"
	"mizan2/internal/jobs"
	"mizan2/internal/jobs/background"
	"mizan2/internal/middleware"
	"mizan2/internal/repositories"
	"mizan2/internal/services"
	"mizan2/pkg/database"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	pool, err := database.NewPool(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	// Cache service
	cacheSvc := caching.NewRedisCacheService(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)

	// Object storage for the template library
	storage, err := services.NewMinioStorage(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioUseSSL)
	if err != nil {
		log.Fatalf("Failed to initialize object storage: %v", err)
	}
	if err := storage.EnsureBucketExists(context.Background(), cfg.TemplateBucket); err != nil {
		log.Printf("WARN: could not ensure template bucket %q exists: %v", cfg.TemplateBucket, err)
	}

	// Repositories
	subscriberRepo := repositories.NewSubscriberRepo(pool)
	paymentRepo := repositories.NewPaymentRepo(pool)
	templateRepo := repositories.NewTemplateRepo(pool)

	// Services
	paymobSvc := services.NewPaymobService(cfg.Paymob.APIKey, cfg.Paymob.HMACSecret, cfg.Paymob.BaseURL)
	checkoutSvc := services.NewCheckoutService(subscriberRepo, paymobSvc, cfg.Paymob)
	settlementSvc := services.NewSettlementService(subscriberRepo, paymentRepo, cacheSvc, cacheSvc)
	usageSvc := services.NewUsageService(subscriberRepo, cacheSvc)
	assistantSvc := services.NewHTTPAssistant(cfg.AssistantURL, cfg.AssistantAPIKey)
	templateSvc := services.NewTemplateService(templateRepo, storage, cfg.TemplateBucket)

	// Auth verification against the hosted identity provider
	authVerifier, err := middleware.NewAuthVerifier(cfg.JWKSURL, cfg.JWTSecret)
	if err != nil {
		log.Fatalf("Failed to initialize auth verifier: %v", err)
	}

	// Handlers
	billingHandlers := handlers.NewBillingHandlers(checkoutSvc, paymentRepo)
	webhookHandlers := handlers.NewWebhookHandlers(paymobSvc, settlementSvc)
	questionHandlers := handlers.NewQuestionHandlers(usageSvc, assistantSvc)
	templateHandlers := handlers.NewTemplateHandlers(templateSvc, usageSvc)

	// Background jobs
	scheduler, err := background.NewJobScheduler(
		jobs.NewSubscriptionSweeper(subscriberRepo),
		jobs.NewSettlementRetrier(cacheSvc, settlementSvc),
	)
	if err != nil {
		log.Fatalf("Failed to initialize job scheduler: %v", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Create Echo instance
	e := echo.New()

	// Global middleware
	e.Use(echoMiddleware.Logger())
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.CORS())
	e.Use(echoMiddleware.RemoveTrailingSlash())

	// Health endpoints (no auth required)
	e.GET("/health", handlers.HealthCheck)
	e.GET("/health/ready", handlers.ReadinessCheck)
	e.GET("/health/detailed", func(c echo.Context) error {
		return handlers.HealthCheckDetailed(c, pool, cacheSvc)
	})

	// Gateway callback: authenticated by HMAC only, never by session
	e.POST("/webhooks/paymob", webhookHandlers.PaymobCallback)

	// API routes
	v1 := e.Group("/v1")
	v1.GET("/plans", billingHandlers.ListPlans)

	protected := v1.Group("")
	protected.Use(authVerifier.Middleware())

	protected.GET("/entitlement", questionHandlers.GetEntitlement)
	protected.POST("/questions", questionHandlers.AskQuestion)

	protected.POST("/subscriptions/create-order", billingHandlers.CreateOrder)
	protected.GET("/payments", billingHandlers.ListPayments)

	protected.GET("/templates", templateHandlers.ListTemplates)
	protected.GET("/templates/:id/download", templateHandlers.DownloadTemplate)

	log.Printf("Mizan backend v%s starting on port %d", version, cfg.Port)
	e.Logger.Fatal(e.Start(fmt.Sprintf(":%d", cfg.Port)))
}
