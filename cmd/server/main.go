package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	appacademic "github.com/schoolfees/backend/internal/application/academic"
	appfinance "github.com/schoolfees/backend/internal/application/finance"
	"github.com/schoolfees/backend/internal/domain/finance"
	"github.com/schoolfees/backend/internal/domain/shared"
	"github.com/schoolfees/backend/internal/infrastructure/auth"
	"github.com/schoolfees/backend/internal/infrastructure/cache"
	"github.com/schoolfees/backend/internal/infrastructure/config"
	"github.com/schoolfees/backend/internal/infrastructure/event"
	"github.com/schoolfees/backend/internal/infrastructure/logger"
	"github.com/schoolfees/backend/internal/infrastructure/migration"
	"github.com/schoolfees/backend/internal/infrastructure/notification"
	"github.com/schoolfees/backend/internal/infrastructure/payment"
	"github.com/schoolfees/backend/internal/infrastructure/persistence"
	"github.com/schoolfees/backend/internal/infrastructure/telemetry"
	"github.com/schoolfees/backend/internal/interfaces/http/handler"
	"github.com/schoolfees/backend/internal/interfaces/http/middleware"
	"github.com/schoolfees/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	_ "github.com/schoolfees/backend/docs"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

//	@title			School Fees Ledger API
//	@version		1.0
//	@description	Multi-tenant fees billing: invoices, payments, M-Pesa reconciliation and approvals.

//	@host		localhost:8080
//	@BasePath	/api/v1

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token authentication. Format: "Bearer {token}"

var _ appfinance.LedgerMetrics = (*telemetry.LedgerMetrics)(nil)

// pingFunc adapts a probe function to handler.Pinger
type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		Service:    cfg.App.Name,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Telemetry
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    cfg.App.Version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    cfg.App.Version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	loggerProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    cfg.App.Version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize logger provider", zap.Error(err))
	}
	log = telemetry.BridgeLogger(log, loggerProvider, cfg.Telemetry.ServiceName, zapcore.InfoLevel)
	defer func() {
		_ = log.Sync()
	}()

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:            cfg.Pyroscope.Enabled,
		ServerAddress:      cfg.Pyroscope.ServerAddress,
		ApplicationName:    cfg.Telemetry.ServiceName,
		BasicAuthUser:      cfg.Pyroscope.BasicAuthUser,
		BasicAuthPassword:  cfg.Pyroscope.BasicAuthPassword,
		ProfileAllocations: cfg.Pyroscope.ProfileAllocations,
		ProfileContention:  cfg.Pyroscope.ProfileContention,
	}, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	if profiler.IsEnabled() {
		tracerProvider.EnableSpanProfiles()
	}

	log.Info("Starting fees ledger",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("version", cfg.App.Version),
		zap.String("port", cfg.App.Port),
	)

	// Database
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh),
		logger.WithParameterizedQueries(cfg.App.Env == "production"))
	db, err := persistence.NewDatabase(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		DBSystem:        cfg.Database.Driver,
	}, log); err != nil {
		log.Warn("Database tracing not registered", zap.Error(err))
	}
	if cfg.Database.AutoMigrate {
		if err := migrateSchema(ctx, cfg, db, log); err != nil {
			log.Fatal("Failed to migrate schema", zap.Error(err))
		}
	}
	log.Info("Database connected", zap.String("driver", cfg.Database.Driver))

	// Webhook deduplication
	idempotency, err := cache.NewIdempotencyStoreFactory(cfg.Redis, cache.WithLogger(log)).CreateStore(ctx)
	if err != nil {
		log.Fatal("Failed to create idempotency store", zap.Error(err))
	}
	readiness := map[string]handler.Pinger{"database": db}
	if redisStore, ok := idempotency.(*cache.RedisIdempotencyStore); ok {
		readiness["redis"] = pingFunc(func(ctx context.Context) error {
			return redisStore.Client().Ping(ctx).Err()
		})
	}

	// Mobile money gateway
	var gateway appfinance.MobileMoneyGateway
	if cfg.MPesa.ConsumerKey != "" {
		daraja, err := payment.NewDarajaAdapter(&payment.DarajaConfig{
			Environment:        cfg.MPesa.Environment,
			ConsumerKey:        cfg.MPesa.ConsumerKey,
			ConsumerSecret:     cfg.MPesa.ConsumerSecret,
			Shortcode:          cfg.MPesa.Shortcode,
			Passkey:            cfg.MPesa.Passkey,
			STKCallbackURL:     cfg.MPesa.STKCallbackURL,
			C2BValidationURL:   cfg.MPesa.C2BValidationURL,
			C2BConfirmationURL: cfg.MPesa.C2BConfirmationURL,
			Timeout:            cfg.MPesa.Timeout,
		}, log)
		if err != nil {
			log.Fatal("Invalid M-Pesa configuration", zap.Error(err))
		}
		gateway = daraja
		if cfg.MPesa.C2BConfirmationURL != "" {
			go func() {
				regCtx, cancel := context.WithTimeout(ctx, time.Minute)
				defer cancel()
				if err := daraja.RegisterC2BURLs(regCtx); err != nil {
					log.Warn("C2B URL registration failed", zap.Error(err))
				}
			}()
		}
	} else {
		log.Warn("M-Pesa not configured; STK push is unavailable")
	}

	// Notifications and domain events
	var notifier appfinance.Notifier
	switch cfg.Notification.Driver {
	case "kafka":
		kafka, err := notification.NewKafkaNotifier(notification.KafkaConfig{
			Brokers:  cfg.Notification.KafkaBrokers,
			Topic:    cfg.Notification.KafkaTopic,
			ClientID: cfg.App.Name,
		}, log)
		if err != nil {
			log.Fatal("Failed to create Kafka notifier", zap.Error(err))
		}
		defer func() {
			if err := kafka.Close(); err != nil {
				log.Error("Error closing Kafka producer", zap.Error(err))
			}
		}()
		notifier = kafka
	default:
		notifier = notification.NewLogNotifier(log)
	}

	eventBus := event.NewInMemoryEventBus(log)
	eventBus.Subscribe(appfinance.NewNotificationHandler(notifier, log))
	eventBus.Subscribe(shared.NewEventHandlerFunc(func(ctx context.Context, e shared.DomainEvent) error {
		logger.L(ctx).Info("Approved ledger change applied",
			zap.String("event_type", e.EventType()),
			zap.String("event_id", e.EventID().String()),
			zap.String("school_id", e.SchoolID().String()))
		return nil
	}, finance.EventTypeInvoiceCancelled, finance.EventTypeInvoiceBalanceAdjusted))
	dispatcher := appfinance.NewEventDispatcher(eventBus, log, true)

	var ledgerMetrics appfinance.LedgerMetrics = appfinance.NoopLedgerMetrics{}
	if m, err := telemetry.NewLedgerMetrics(meterProvider.Meter("github.com/schoolfees/backend/ledger")); err != nil {
		log.Warn("Ledger metrics unavailable", zap.Error(err))
	} else {
		ledgerMetrics = m
	}

	// Application services
	scope := persistence.NewGormTransactionScope(db.DB)
	feeRepo := persistence.NewGormFeeStructureRepository(db.DB)
	periodRepo := persistence.NewGormAcademicPeriodRepository(db.DB)
	studentRepo := persistence.NewGormStudentRepository(db.DB)

	feeSync := appfinance.NewFeeSyncService(appfinance.FeeSyncServiceConfig{
		Scope:       scope,
		FeeRepo:     feeRepo,
		PeriodRepo:  periodRepo,
		StudentRepo: studentRepo,
		Metrics:     ledgerMetrics,
		Logger:      log,
	})
	feeStructures := appfinance.NewFeeStructureService(scope, feeRepo, periodRepo, feeSync, log)
	generator := appfinance.NewInvoiceGeneratorService(appfinance.InvoiceGeneratorServiceConfig{
		Scope:       scope,
		FeeRepo:     feeRepo,
		PeriodRepo:  periodRepo,
		StudentRepo: studentRepo,
		Dispatcher:  dispatcher,
		Metrics:     ledgerMetrics,
		Logger:      log,
	})
	mutations := appfinance.NewInvoiceMutationService(scope, log)
	queries := appfinance.NewLedgerQueryService(scope)
	reconciler := appfinance.NewPaymentReconcilerService(appfinance.PaymentReconcilerServiceConfig{
		Scope:       scope,
		Gateway:     gateway,
		Idempotency: idempotency,
		Dispatcher:  dispatcher,
		Metrics:     ledgerMetrics,
		DedupTTL:    cfg.Webhook.IdempotencyTTL,
		Logger:      log,
	})
	approvals := appfinance.NewApprovalService(scope, dispatcher, log)
	periods := appacademic.NewPeriodService(scope, log)

	// HTTP
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	if err := middleware.SetupValidator(); err != nil {
		log.Fatal("Failed to register validators", zap.Error(err))
	}

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     cfg.Telemetry.Enabled,
	}))
	engine.Use(middleware.SpanErrorMarker())
	engine.Use(middleware.HTTPMetrics(meterProvider.Meter("github.com/schoolfees/backend/http")))
	engine.Use(middleware.SecureWithConfig(middleware.SecurityConfig{}))
	engine.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))
	if cfg.HTTP.RateLimitEnabled {
		limiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		defer limiter.Stop()
		engine.Use(middleware.RateLimit(limiter))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	systemHandler := handler.NewSystemHandler(cfg.App.Name, cfg.App.Version, readiness)
	engine.GET("/health", systemHandler.Health)
	engine.GET("/ready", systemHandler.Ready)
	engine.GET("/swagger/*any",
		middleware.SwaggerProtection(middleware.SwaggerConfig{
			Enabled:    cfg.Swagger.Enabled,
			AllowedIPs: cfg.Swagger.AllowedIPs,
		}),
		ginSwagger.WrapHandler(swaggerFiles.Handler))

	jwtService := auth.NewJWTService(cfg.JWT)
	jwtConfig := middleware.DefaultJWTConfig(jwtService)
	jwtConfig.Logger = log

	webhookLimiter := middleware.NewRateLimiter(cfg.Webhook.RateLimitRequests, cfg.Webhook.RateLimitWindow)
	defer webhookLimiter.Stop()

	router.RegisterLedgerRoutes(router.NewRouter(engine, router.WithAPIVersion("v1")), router.LedgerHandlers{
		Invoices:      handler.NewInvoiceHandler(generator, mutations, queries),
		FeeStructures: handler.NewFeeStructureHandler(feeStructures, feeSync),
		Payments:      handler.NewPaymentHandler(reconciler, queries),
		Approvals:     handler.NewApprovalHandler(approvals),
		Periods:       handler.NewPeriodHandler(periods),
		Audit:         handler.NewAuditHandler(queries),
		Webhooks:      handler.NewMpesaWebhookHandler(reconciler),
		System:        systemHandler,
	}, router.LedgerRouteOptions{
		Authenticated: []gin.HandlerFunc{
			middleware.JWTAuthMiddlewareWithConfig(jwtConfig),
			middleware.TracingAttributeInjector(),
			middleware.Profiling(profiler.IsEnabled()),
		},
		Webhook: []gin.HandlerFunc{middleware.WebhookRateLimit(webhookLimiter)},
	}).Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	dispatcher.Wait()
	if err := eventBus.Stop(shutdownCtx); err != nil {
		log.Error("Error stopping event bus", zap.Error(err))
	}
	if closer, ok := idempotency.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			log.Error("Error closing idempotency store", zap.Error(err))
		}
	}
	if err := db.Close(); err != nil {
		log.Error("Error closing database", zap.Error(err))
	}
	if err := profiler.Stop(); err != nil {
		log.Error("Error stopping profiler", zap.Error(err))
	}
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down meter provider", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down tracer provider", zap.Error(err))
	}
	if err := loggerProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down logger provider", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// migrateSchema applies the embedded SQL migrations on PostgreSQL. SQLite
// development databases get the GORM schema instead.
func migrateSchema(ctx context.Context, cfg *config.Config, db *persistence.Database, log *zap.Logger) error {
	if cfg.Database.Driver == "sqlite" {
		return persistence.AutoMigrate(ctx, db.DB)
	}
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	migrator, err := migration.New(sqlDB, log)
	if err != nil {
		return err
	}
	return migrator.Up()
}
