package main

import (
	"context"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/craiverse/credits-service/internal/auth"
	"github.com/craiverse/credits-service/internal/breaker"
	"github.com/craiverse/credits-service/internal/config"
	"github.com/craiverse/credits-service/internal/db"
	"github.com/craiverse/credits-service/internal/handlers"
	"github.com/craiverse/credits-service/internal/interfaces"
	"github.com/craiverse/credits-service/internal/logger"
	"github.com/craiverse/credits-service/internal/metrics"
	"github.com/craiverse/credits-service/internal/middleware"
	"github.com/craiverse/credits-service/internal/middleware/validation"
	"github.com/craiverse/credits-service/internal/payments"
	"github.com/craiverse/credits-service/internal/repository"
	"github.com/craiverse/credits-service/internal/repository/sqlite"
	"github.com/craiverse/credits-service/internal/services"
	"github.com/craiverse/credits-service/internal/utils"
)

func main() {
	// .env dosyasını yükle
	if err := godotenv.Load(); err != nil {
		stdlog.Println(".env dosyası bulunamadı, ortam değişkenlerinden okunacak.")
	}

	cfg := config.LoadConfig()
	logger.Init(cfg.AppEnv, cfg.LogLevel)

	log.Info().
		Str("environment", cfg.AppEnv).
		Str("port", cfg.Port).
		Msg("🚀 CRAIverse credits service başlatıldı")

	if err := utils.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		log.Fatal().Err(err).Msg("❌ TRUSTED_PROXIES geçersiz")
	}

	billing, err := config.LoadBilling(cfg.BillingConfigPath)
	if err != nil {
		log.Fatal().Err(err).Msg("❌ Billing config yüklenemedi")
	}

	ctx := context.Background()
	database, err := db.Connect(ctx, cfg.GetDSN(), db.DefaultPoolConfig())
	if err != nil {
		log.Fatal().Err(err).Msg("❌ Veritabanı bağlantısı başarısız")
	}
	defer database.Close()

	// Rate limit store: postgres varsayılan, tek instance için sqlite
	var rateStore interfaces.RateLimitStore = repository.NewRateLimitRepository(database)
	if cfg.RateLimitStore == "sqlite" {
		sqliteStore, err := sqlite.Open(cfg.RateLimitSQLitePath)
		if err != nil {
			log.Fatal().Err(err).Msg("❌ SQLite rate limit store açılamadı")
		}
		defer sqliteStore.Close()
		rateStore = sqliteStore
	}

	// Repository, Service, Handler katmanları
	creditRepo := repository.NewCreditRepository(database)
	idempotencyRepo := repository.NewIdempotencyRepository(database)
	subscriptionRepo := repository.NewSubscriptionRepository(database)
	notificationRepo := repository.NewNotificationRepository(database)

	breakers := breaker.NewRegistry(breaker.DefaultConfig())

	// Notification Queue (3 worker, 100 buffer)
	notificationQueue := services.NewNotificationQueue(3, notificationRepo, 100)
	notificationQueue.Start()

	ledgerService := services.NewLedgerService(creditRepo, notificationQueue)
	idempotencyService := services.NewIdempotencyService(idempotencyRepo, cfg.IdempotencyTTL)
	rateLimiter := services.NewRateLimitService(rateStore, billing.RateLimits, services.WithFailOpen(cfg.RateLimitFailOpen))

	var stripeVerifier services.StripeEventVerifier
	if cfg.StripeWebhookSecret != "" {
		stripeVerifier = payments.NewStripeVerifier(cfg.StripeWebhookSecret)
	} else {
		log.Warn().Msg("⚠️ STRIPE_WEBHOOK_SECRET boş, Stripe webhook'ları reddedilecek")
	}

	var paypalVerifier services.PayPalWebhookVerifier
	if cfg.PayPalWebhookID != "" {
		paypalVerifier = payments.NewPayPalClient(payments.PayPalConfig{
			BaseURL:      cfg.PayPalAPIBase,
			ClientID:     cfg.PayPalClientID,
			ClientSecret: cfg.PayPalClientSecret,
			WebhookID:    cfg.PayPalWebhookID,
		}, breakers)
	} else {
		log.Warn().Msg("⚠️ PAYPAL_WEBHOOK_ID boş, PayPal webhook'ları reddedilecek")
	}

	webhookService := services.NewWebhookService(ledgerService, subscriptionRepo, notificationQueue, billing, stripeVerifier, paypalVerifier)

	sweeper := services.NewSweeper(cfg.SweepInterval,
		services.SweepTask{Name: "idempotency_records", Run: idempotencyService.Sweep},
		services.SweepTask{Name: "rate_limit_entries", Run: rateLimiter.Cleanup},
	)
	sweeper.Start()

	throttle := middleware.NewEdgeThrottle(&middleware.ThrottleConfig{
		RequestsPerMinute: cfg.EdgeRequestsPerMinute,
		Burst:             cfg.EdgeBurst,
		IdleTTL:           10 * time.Minute,
		SkipPaths:         []string{"/health", "/metrics"},
	})
	defer throttle.Stop()

	router := setupRouter(routerDeps{
		cfg:           cfg,
		tokens:        auth.NewManager(cfg.AuthSecret, auth.DefaultIssuer),
		rateLimiter:   rateLimiter,
		idempotency:   idempotencyService,
		throttle:      throttle,
		creditHandler: handlers.NewCreditHandler(ledgerService),
		webhook:       handlers.NewWebhookHandler(webhookService),
		health:        handlers.NewHealthHandler(database, breakers),
	})

	// Dış katman middleware'leri: recovery en dışta
	var handler http.Handler = router
	handler = middleware.CORSMiddleware(middleware.DefaultCORSConfig(cfg.CORSAllowedOrigins))(handler)
	handler = middleware.SecurityHeadersMiddlewareForEnv(cfg.IsProduction())(handler)
	handler = middleware.RequestLoggingMiddleware(middleware.DefaultLoggingConfig())(handler)
	handler = middleware.ErrorHandlingMiddlewareForEnv(cfg.IsProduction())(handler)

	serverAddr := ":" + cfg.Port
	server := &http.Server{
		Addr:              serverAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second, // PayPal doğrulaması retry ile uzayabilir
		IdleTimeout:       60 * time.Second,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info().
			Str("addr", serverAddr).
			Msg("🌐 HTTP Server (Gorilla Mux) başlatıldı")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("❌ Server başlatma hatası")
		}
	}()

	<-shutdown
	log.Info().Msg("🛑 Shutdown signal alındı, server kapatılıyor...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// 1. HTTP Server'ı kapat (aktif bağlantıları bekle)
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("❌ HTTP Server kapatma hatası")
	} else {
		log.Info().Msg("✅ HTTP Server başarıyla kapatıldı")
	}

	// 2. Arka plan işleri
	sweeper.Stop()
	notificationQueue.Stop()
	log.Info().Msg("✅ Sweeper ve Notification Queue kapatıldı")

	log.Info().Msg("👋 Credits service başarıyla kapatıldı")
}

type routerDeps struct {
	cfg           *config.Config
	tokens        *auth.Manager
	rateLimiter   interfaces.RateLimiterInterface
	idempotency   interfaces.IdempotencyServiceInterface
	throttle      *middleware.EdgeThrottle
	creditHandler *handlers.CreditHandler
	webhook       *handlers.WebhookHandler
	health        *handlers.HealthHandler
}

// setupRouter Gorilla Mux router'ını ayarlar
func setupRouter(deps routerDeps) *mux.Router {
	router := mux.NewRouter()
	router.NotFoundHandler = middleware.NotFoundJSONHandler()
	router.MethodNotAllowedHandler = middleware.MethodNotAllowedJSONHandler()

	// mux.CurrentRoute sadece router içinde dolu
	router.Use(middleware.MetricsMiddleware(middleware.DefaultMetricsConfig()))
	router.Use(deps.throttle.Handler())

	router.HandleFunc("/health", deps.health.Health).Methods(http.MethodGet)
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()

	// Webhook'lar: imza doğrulaması kimlik yerine geçer, ham body korunur
	webhooks := api.PathPrefix("/webhooks").Subrouter()
	webhooks.Use(middleware.RateLimitMiddleware(deps.rateLimiter, middleware.DefaultRateLimitConfig(config.CategoryPublic)))
	webhooks.HandleFunc("/stripe", deps.webhook.Stripe).Methods(http.MethodPost)
	webhooks.HandleFunc("/paypal", deps.webhook.PayPal).Methods(http.MethodPost)

	idempotency := middleware.IdempotencyMiddleware(deps.idempotency, &middleware.IdempotencyConfig{
		FailOpen:    deps.cfg.IdempotencyFailOpen,
		RequireKey:  deps.cfg.IdempotencyRequireKey,
		Methods:     []string{http.MethodPost},
		MaxBodySize: 64 * 1024,
	})

	// Okuma: api kategorisi
	reads := api.PathPrefix("/credits").Methods(http.MethodGet).Subrouter()
	reads.Use(middleware.AuthMiddleware(deps.tokens))
	reads.Use(validation.Middleware(validation.CreditsConfig()))
	reads.Use(middleware.RateLimitMiddleware(deps.rateLimiter, middleware.DefaultRateLimitConfig(config.CategoryAPI)))
	reads.HandleFunc("", deps.creditHandler.GetBalance)
	reads.HandleFunc("/transactions", deps.creditHandler.ListTransactions)

	// Mutasyonlar: tekrar edilen istek cache'ten döner, payment kotasını harcamaz.
	// Hash principal'a bağlı olduğu için idempotency auth'tan sonra gelir.
	writes := api.PathPrefix("/credits").Methods(http.MethodPost).Subrouter()
	writes.Use(middleware.AuthMiddleware(deps.tokens))
	writes.Use(validation.Middleware(validation.CreditsConfig()))
	writes.Use(idempotency)
	writes.Use(middleware.RateLimitMiddleware(deps.rateLimiter, middleware.DefaultRateLimitConfig(config.CategoryPayment)))
	writes.HandleFunc("", deps.creditHandler.HandleAction)

	// Route listesini log'la (development için)
	_ = router.Walk(func(route *mux.Route, router *mux.Router, ancestors []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err == nil {
			methods, _ := route.GetMethods()
			log.Debug().
				Str("path", pathTemplate).
				Strs("methods", methods).
				Msg("📍 Route registered")
		}
		return nil
	})

	return router
}
