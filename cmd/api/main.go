package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/ibaf-upi/ibaf-api/api/swagger"
	"github.com/ibaf-upi/ibaf-api/internal/handler"
	"github.com/ibaf-upi/ibaf-api/internal/middleware"
	"github.com/ibaf-upi/ibaf-api/internal/repository"
	"github.com/ibaf-upi/ibaf-api/internal/service"
	"github.com/ibaf-upi/ibaf-api/internal/validation"
	"github.com/ibaf-upi/ibaf-api/pkg/cache"
	"github.com/ibaf-upi/ibaf-api/pkg/config"
	"github.com/ibaf-upi/ibaf-api/pkg/database"
	"github.com/ibaf-upi/ibaf-api/pkg/export"
	"github.com/ibaf-upi/ibaf-api/pkg/firebase"
	"github.com/ibaf-upi/ibaf-api/pkg/jobs"
	"github.com/ibaf-upi/ibaf-api/pkg/logger"
	corsmiddleware "github.com/ibaf-upi/ibaf-api/pkg/middleware/cors"
	reqidmiddleware "github.com/ibaf-upi/ibaf-api/pkg/middleware/requestid"
	"github.com/ibaf-upi/ibaf-api/pkg/realtime"
	"github.com/ibaf-upi/ibaf-api/pkg/storage"
)

// @title IBAF Membership API
// @version 1.0.0
// @description Membership, verification, workout tracking and messaging for the IBAF fitness club
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const (
	shutdownTimeout      = 15 * time.Second
	exportCleanupPeriod  = time.Hour
	identityRetryBackoff = 2 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close() //nolint:errcheck

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db.DB); err != nil {
			return err
		}
		logr.Info("database migrations applied")
	}

	// Redis is optional: without it the cache, read markers and cross-instance
	// fan-out are disabled. The interface stays untyped nil in that case.
	var redisClient redis.UniversalClient
	if client, err := cache.NewRedis(ctx, cfg.Redis); err != nil {
		logr.Warn("redis unavailable, running without cache and realtime fan-out", zap.Error(err))
	} else {
		redisClient = client
		defer client.Close() //nolint:errcheck
	}

	metrics := service.NewMetricsService()
	validate := validation.New()

	hub := realtime.NewHub(logr)
	var publisher realtime.Publisher = hub
	var subscriber realtime.Subscriber = hub
	if redisClient != nil && cfg.Realtime.Enabled {
		bridge := realtime.NewRedisBridge(redisClient, cfg.Realtime.RedisChannel, hub, logr)
		publisher, subscriber = bridge, bridge
		go func() {
			if err := bridge.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logr.Error("realtime bridge stopped", zap.Error(err))
			}
		}()
	}

	userRepo := repository.NewUserRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	workoutRepo := repository.NewWorkoutLogRepository(db)
	announcementRepo := repository.NewAnnouncementRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Admin.StatsCacheTTL, logr, redisClient != nil)
	var markers *service.ReadMarkers
	if redisClient != nil {
		markers = service.NewReadMarkers(cacheRepo, cfg.Admin.ReadMarkerTTL, logr)
	}

	identityQueue := jobs.NewQueue("identity", jobs.QueueConfig{
		Workers:    cfg.Identity.WorkerConcurrency,
		MaxRetries: cfg.Identity.WorkerRetries,
		RetryDelay: identityRetryBackoff,
		Logger:     logr,
	})

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "ibaf-api",
	}).WithPublisher(publisher)

	var identitySvc *service.IdentityService
	if client, err := firebase.NewAuthClient(ctx, cfg.Firebase); err != nil {
		if !errors.Is(err, firebase.ErrDisabled) {
			logr.Warn("firebase unavailable, federated sign-in disabled", zap.Error(err))
		}
		identitySvc = service.NewIdentityService(nil, userRepo, identityQueue, metrics, logr)
	} else {
		authSvc.WithIDTokenVerifier(client)
		identitySvc = service.NewIdentityService(firebase.NewIdentities(client), userRepo, identityQueue, metrics, logr)
	}

	var exportStorage *storage.LocalStorage
	if cfg.Exports.StorageDir != "" {
		if exportStorage, err = storage.NewLocalStorage(cfg.Exports.StorageDir); err != nil {
			return fmt.Errorf("init export storage: %w", err)
		}
	}
	exportSvc := newExportService(cfg, workoutRepo, exportStorage, logr)

	userSvc := service.NewUserService(userRepo, service.UserServiceDeps{
		Messages:  messageRepo,
		Cache:     cacheSvc,
		Revoker:   identitySvc,
		Exports:   exportSvc,
		Publisher: publisher,
		StatsTTL:  cfg.Admin.StatsCacheTTL,
	}, validate, logr)
	memberSvc := service.NewMemberService(userRepo, cacheSvc, publisher, validate, logr)
	workoutSvc := service.NewWorkoutService(workoutRepo, publisher, validate, logr)
	messageSvc := service.NewMessageService(messageRepo, userRepo, service.MessageServiceDeps{
		Markers:   markers,
		Cache:     cacheSvc,
		Metrics:   metrics,
		Publisher: publisher,
	}, validate, logr)
	announcementSvc := service.NewAnnouncementService(announcementRepo, publisher, validate, logr)

	identityQueue.Start(ctx)
	defer identityQueue.Stop()

	if exportStorage != nil {
		go runExportCleanup(ctx, exportSvc, cfg.Exports.SignedURLTTL, logr)
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	readiness := map[string]handler.ReadinessCheck{"postgres": db.PingContext}
	if redisClient != nil {
		readiness["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}
	metricsHandler := handler.NewMetricsHandler(metrics, readiness)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	registerRoutes(r.Group(cfg.APIPrefix), handlers{
		auth:          handler.NewAuthHandler(authSvc),
		member:        handler.NewMemberHandler(memberSvc),
		workouts:      handler.NewWorkoutHandler(workoutSvc, exportSvc, userSvc),
		messages:      handler.NewMessageHandler(messageSvc),
		announcements: handler.NewAnnouncementHandler(announcementSvc),
		users:         handler.NewUserHandler(userSvc),
		identities:    handler.NewIdentityHandler(identitySvc),
		exports:       handler.NewExportHandler(exportSvc),
		realtime: handler.NewRealtimeHandler(subscriber, handler.RealtimeConfig{
			AllowedOrigins: cfg.CORS.AllowedOrigins,
			PingInterval:   cfg.Realtime.PingInterval,
			WriteTimeout:   cfg.Realtime.WriteTimeout,
		}, metrics, logr),
		metrics: metricsHandler,
	}, authSvc, userRepo)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newExportService(cfg *config.Config, workouts *repository.WorkoutLogRepository, store *storage.LocalStorage, logr *zap.Logger) *service.ExportService {
	exportCfg := service.ExportConfig{APIPrefix: cfg.APIPrefix, ResultTTL: cfg.Exports.SignedURLTTL}
	csv, pdf := export.NewCSVExporter(true), export.NewPDFExporter()
	if store == nil {
		return service.NewExportService(workouts, nil, nil, exportCfg, logr, csv, pdf)
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	return service.NewExportService(workouts, store, signer, exportCfg, logr, csv, pdf)
}

func runExportCleanup(ctx context.Context, exports *service.ExportService, ttl time.Duration, logr *zap.Logger) {
	ticker := time.NewTicker(exportCleanupPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := exports.Cleanup(ttl); err != nil {
				logr.Warn("export cleanup failed", zap.Error(err))
			}
		}
	}
}
