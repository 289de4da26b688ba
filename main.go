package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/vcscsvcscs/adherence-engine/internal/audit"
	"github.com/vcscsvcscs/adherence-engine/internal/azure"
	"github.com/vcscsvcscs/adherence-engine/internal/clock"
	"github.com/vcscsvcscs/adherence-engine/internal/config"
	"github.com/vcscsvcscs/adherence-engine/internal/database"
	"github.com/vcscsvcscs/adherence-engine/internal/handler"
	"github.com/vcscsvcscs/adherence-engine/internal/metrics"
	"github.com/vcscsvcscs/adherence-engine/internal/middleware"
	"github.com/vcscsvcscs/adherence-engine/internal/notify"
	"github.com/vcscsvcscs/adherence-engine/internal/repository"
	"github.com/vcscsvcscs/adherence-engine/internal/scheduler"
	"github.com/vcscsvcscs/adherence-engine/internal/security"
	"github.com/vcscsvcscs/adherence-engine/internal/service"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	logger, err := newLogger(cfg)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	logger.Info("Configuration loaded successfully",
		zap.String("environment", cfg.Server.Environment),
		zap.String("port", cfg.Server.Port),
	)

	if cfg.Database.MigrateOnStart {
		if err := database.Migrate(cfg.Database.URL, logger); err != nil {
			logger.Fatal("Failed to migrate database", zap.Error(err))
		}
	}

	pool, err := database.Connect(context.Background(), cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer pool.Close()
	logger.Info("Successfully connected to database")

	sealer, err := security.NewSealer(cfg.Security.NotesKey)
	if err != nil {
		logger.Fatal("Failed to initialize notes sealer", zap.Error(err))
	}

	clk := clock.NewReal()
	m := metrics.New()
	auditLogger := audit.NewLogger(pool, logger)

	// Initialize repositories
	doseRepo := repository.NewDoseRepository(pool, sealer, logger)
	regimenRepo := repository.NewRegimenRepository(pool, logger)
	prefRepo := repository.NewPreferenceRepository(pool, logger)
	ledgerRepo := repository.NewLedgerRepository(pool, logger)

	// Initialize services
	doseService := service.NewDoseService(doseRepo, regimenRepo, prefRepo, auditLogger, clk, m, logger)
	adherenceService := service.NewAdherenceService(doseRepo, prefRepo, clk, logger)
	rewardsService := service.NewRewardsService(doseRepo, ledgerRepo, prefRepo, auditLogger, clk, cfg.Rewards.CheckInPoints, logger)

	var reportBlob azure.BlobStorage
	if cfg.Azure.Storage.Configured() {
		reportBlob, err = azure.NewBlobStorageClient(
			cfg.Azure.Storage.AccountName,
			cfg.Azure.Storage.AccountKey,
			cfg.Azure.Storage.ReportContainer,
			logger,
		)
		if err != nil {
			logger.Fatal("Failed to initialize report blob storage client", zap.Error(err))
		}
	} else {
		logger.Warn("Azure storage not configured, archived reports are kept in memory")
		reportBlob = azure.NewMockBlobStorageClient(logger)
	}
	reportService := service.NewReportService(adherenceService, reportBlob, auditLogger, clk, logger)

	dispatcher, err := notify.Setup(cfg.Notify, cfg.Azure.OpenAI, logger)
	if err != nil {
		logger.Fatal("Failed to initialize notification channels", zap.Error(err))
	}

	var marker scheduler.Marker = scheduler.NewMemoryMarker(clk)
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			logger.Fatal("Failed to connect to redis", zap.Error(err))
		}
		marker = scheduler.NewRedisMarker(rdb, cfg.Redis.KeyPrefix)
		logger.Info("Using redis reminder marker", zap.String("addr", cfg.Redis.Addr))
	}

	sched := scheduler.New(scheduler.Config{
		UpcomingInterval: cfg.Scheduler.UpcomingInterval,
		OverdueInterval:  cfg.Scheduler.OverdueInterval,
		Lookback:         cfg.Scheduler.Lookback,
		Grace:            cfg.Scheduler.Grace,
		MarkerTTL:        cfg.Scheduler.MarkerTTL,
		Workers:          cfg.Scheduler.Workers,
		AutoMissEnabled:  cfg.Scheduler.AutoMissEnabled,
	}, scheduler.Deps{
		Preferences: prefRepo,
		Regimens:    regimenRepo,
		Doses:       doseRepo,
		Notifier:    dispatcher,
		Marker:      marker,
		Misser:      doseService,
		Metrics:     m,
	}, clk, logger)

	doc, err := handler.LoadOpenAPI(context.Background())
	if err != nil {
		logger.Fatal("Failed to load API description", zap.Error(err))
	}

	// Set Gin mode
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Add recovery middleware (must be first)
	r.Use(middleware.RecoveryMiddleware(logger))

	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader, middleware.UserIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.RequestLoggingMiddleware(logger))
	r.Use(middleware.ErrorLoggingMiddleware(logger))

	handler.RegisterRoutes(r, handler.Handlers{
		Dose:      handler.NewDoseHandler(doseService, clk.Now, logger),
		Adherence: handler.NewAdherenceHandler(adherenceService, logger),
		Rewards:   handler.NewRewardsHandler(rewardsService, logger),
		Report:    handler.NewReportHandler(reportService, logger),
		Scheduler: handler.NewSchedulerHandler(sched, logger),
		System:    handler.NewSystemHandler(pool, m.Handler(), doc, logger),
		Audit:     handler.NewAuditHandler(auditLogger, logger),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	schedDone := make(chan struct{})
	if cfg.Scheduler.Enabled {
		go func() {
			defer close(schedDone)
			sched.Run(ctx)
		}()
	} else {
		close(schedDone)
		logger.Info("Reminder scheduler disabled")
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Starting server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	select {
	case <-schedDone:
	case <-shutdownCtx.Done():
		logger.Warn("Reminder scheduler did not stop before the shutdown timeout")
	}

	logger.Info("Server exited")
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	zcfg := zap.NewDevelopmentConfig()
	if cfg.Server.Environment == "production" {
		zcfg = zap.NewProductionConfig()
	}
	if cfg.Logging.Format != "" {
		zcfg.Encoding = cfg.Logging.Format
	}
	if cfg.Logging.Level != "" {
		level, err := zap.ParseAtomicLevel(cfg.Logging.Level)
		if err != nil {
			return nil, err
		}
		zcfg.Level = level
	}
	return zcfg.Build()
}
