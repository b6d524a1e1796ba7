package main

import (
	"context"

	"motionmaker/billing/internal/handlers"
	"motionmaker/billing/internal/mollie"
	"motionmaker/billing/internal/payments"
	"motionmaker/billing/pkg/auth"
	"motionmaker/billing/pkg/config"
	"motionmaker/billing/pkg/database"
	"motionmaker/billing/pkg/logging"
	"motionmaker/billing/pkg/monitoring"
	"motionmaker/billing/pkg/server"
	"motionmaker/billing/pkg/version"
)

func main() {
	// Setup logger
	logger := logging.NewLoggerWithService("bursar")

	// Load environment variables
	config.LoadEnv(logger)

	logger.Info("Starting Bursar (Billing API)")

	dbURL := config.RequireEnv("DATABASE_URL")
	jwtSecret := config.RequireEnv("JWT_SECRET")
	serviceToken := config.RequireEnv("SERVICE_TOKEN")
	mollieAPIKey := config.RequireEnv("MOLLIE_API_KEY")
	webappURL := config.RequireEnv("WEBAPP_PUBLIC_URL")
	apiURL := config.RequireEnv("API_PUBLIC_URL")

	// Connect to database
	dbConfig := database.DefaultConfig()
	dbConfig.URL = dbURL
	db := database.MustConnect(dbConfig, logger)
	defer db.Close()

	// Setup monitoring
	healthChecker := monitoring.NewHealthChecker("bursar", version.Version)
	metricsCollector := monitoring.NewMetricsCollector("bursar", version.Version, version.GitCommit)

	// Add health checks
	healthChecker.AddCheck("database", monitoring.DatabaseHealthCheck(db))
	healthChecker.AddCheck("config", monitoring.ConfigurationHealthCheck(map[string]string{
		"DATABASE_URL":   dbURL,
		"JWT_SECRET":     jwtSecret,
		"MOLLIE_API_KEY": mollieAPIKey,
	}))

	// Create custom billing metrics
	metrics := &handlers.BursarMetrics{
		WebhooksProcessed:        metricsCollector.NewCounter("webhooks_processed_total", "Webhook deliveries processed", []string{"outcome"}),
		CreditsGranted:           metricsCollector.NewCounter("credits_granted_total", "Credits granted to user accounts", []string{"source"}),
		RacesLost:                metricsCollector.NewCounter("webhook_races_lost_total", "Webhook deliveries that lost the settlement race", []string{}).WithLabelValues(),
		WebhookSignatureFailures: metricsCollector.NewCounter("webhook_signature_failures_total", "Webhook signature verification failures", []string{"provider"}),
		CreditsConsumed:          metricsCollector.NewCounter("credits_consumed_total", "Credits debited from user accounts", []string{"source"}),
		CheckoutsCreated:         metricsCollector.NewCounter("checkouts_created_total", "Hosted checkouts created", []string{"kind"}),
	}

	// Create database metrics
	metrics.DBQueries, metrics.DBDuration, metrics.DBConnections = metricsCollector.CreateDatabaseMetrics()

	// Payment gateway client
	mollieClient, err := mollie.NewClient(mollie.Config{
		APIKey:        mollieAPIKey,
		WebhookSecret: config.GetEnv("MOLLIE_WEBHOOK_SECRET", ""),
		Logger:        logger,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to create Mollie client")
	}

	// Billing services
	ledger := payments.NewTransactionLedger(db, logger)
	credits := payments.NewCreditStore(db, logger)
	subscriptions := payments.NewSubscriptionStore(db, logger)
	plans := payments.NewPlanCatalog(db)

	checkout := payments.NewCheckoutService(mollieClient, ledger, plans, payments.CheckoutConfig{
		RedirectURL:    webappURL + "/billing/return",
		WebhookURL:     apiURL + "/payments/webhook",
		UnitPriceCents: int64(config.GetEnvInt("CREDIT_UNIT_PRICE_CENTS", 50)),
		Currency:       config.GetEnv("BILLING_CURRENCY", "EUR"),
	}, logger)

	reconciler := payments.NewReconciler(mollieClient, ledger, credits, subscriptions, logger, &payments.ReconcilerMetrics{
		WebhooksProcessed: metrics.WebhooksProcessed,
		CreditsGranted:    metrics.CreditsGranted,
		RacesLost:         metrics.RacesLost,
	})

	// Initialize handlers
	handlers.Init(db, logger, metrics, handlers.Services{
		Mollie:     mollieClient,
		Checkout:   checkout,
		Reconciler: reconciler,
		Credits:    credits,
		Plans:      plans,
		Ledger:     ledger,
	}, int64(config.GetEnvInt("SIGNUP_GRANT_CREDITS", 10)))

	// Initialize and start JobManager for background repair tasks
	jobManager := handlers.NewJobManager(ledger, reconciler, logger)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	jobManager.Start(ctx)
	defer jobManager.Stop()

	logger.Info("JobManager started - credit repair job active")

	// Setup router with unified monitoring
	router := server.SetupServiceRouter(logger, "bursar", healthChecker, metricsCollector)

	// API routes (root level - nginx adds /api/billing/ prefix)
	{
		// Authentication required endpoints
		protected := router.Group("")
		protected.Use(auth.JWTAuthMiddleware([]byte(jwtSecret)))
		{
			protected.GET("/payments/plans", handlers.GetPlans)
			protected.GET("/billing/status", handlers.GetBillingStatus)
			protected.POST("/payments/create-payment", handlers.CreatePayment)
			protected.POST("/payments/buy-credits", handlers.BuyCredits)
		}

		// Webhook endpoint (no auth required, Mollie calls it directly)
		router.POST("/payments/webhook", handlers.HandleMollieWebhook)

		// Credit operations (service-to-service)
		serviceAPI := router.Group("")
		serviceAPI.Use(auth.ServiceAuthMiddleware(serviceToken))
		{
			serviceAPI.POST("/credits/consume", handlers.ConsumeCredits)
			serviceAPI.POST("/accounts/ensure", handlers.EnsureAccount)
		}
	}

	// Start server with graceful shutdown
	serverConfig := server.DefaultConfig("bursar", "18010")
	if err := server.Start(serverConfig, router, logger); err != nil {
		logger.WithError(err).Fatal("Server startup failed")
	}
}
