package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ikkim/storerating-backend/config"
	"github.com/ikkim/storerating-backend/internal/app/controller"
	"github.com/ikkim/storerating-backend/internal/app/repository"
	"github.com/ikkim/storerating-backend/internal/app/service"
	"github.com/ikkim/storerating-backend/internal/db"
	"github.com/ikkim/storerating-backend/internal/metrics"
	"github.com/ikkim/storerating-backend/internal/middleware"
	"github.com/ikkim/storerating-backend/internal/router"
	"github.com/ikkim/storerating-backend/internal/scheduler"
	"github.com/ikkim/storerating-backend/internal/storage"
	"github.com/ikkim/storerating-backend/internal/validation"
	"github.com/ikkim/storerating-backend/internal/websocket"
	"github.com/ikkim/storerating-backend/pkg/logger"
	"github.com/ikkim/storerating-backend/pkg/redis"
	"github.com/ikkim/storerating-backend/pkg/util"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", err)
	}

	logger.Initialize(logger.ConfigForEnvironment(cfg.Server.Environment, cfg.Server.LogLevel, cfg.Server.LogFormat))

	logger.Info("Starting store rating backend", map[string]interface{}{
		"environment": cfg.Server.Environment,
		"port":        cfg.Server.Port,
	})

	validation.Register()
	util.SetBcryptCost(cfg.JWT.BcryptCost)

	// Initialize database
	if err := db.Initialize(&cfg.Database); err != nil {
		logger.Fatal("Failed to initialize database", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Failed to close database connection", err)
		}
	}()

	if err := db.Migrate(); err != nil {
		logger.Fatal("Failed to run migrations", err)
	}

	if err := db.Seed(&cfg.Admin); err != nil {
		logger.Warn("Failed to seed admin account", map[string]interface{}{
			"error": err.Error(),
		})
	}

	// Token revocation is only available with redis
	var (
		revoker     service.TokenRevoker
		revocations middleware.RevocationChecker
	)
	if cfg.Redis.Enabled() {
		if err := redis.Init(&cfg.Redis); err != nil {
			logger.Warn("Redis unavailable, logout will not revoke tokens", map[string]interface{}{
				"error": err.Error(),
			})
		} else {
			defer redis.Close()
			blacklist := redis.NewTokenBlacklist(redis.GetClient())
			revoker = blacklist
			revocations = blacklist
		}
	}

	var uploader service.ReportUploader
	if cfg.S3.Enabled() {
		uploader = storage.NewS3Storage(cfg.S3.Region, cfg.S3.Bucket, cfg.S3.AccessKeyID, cfg.S3.SecretAccessKey, cfg.S3.BaseURL)
	}

	m := metrics.New()
	hub := websocket.NewHub()
	go hub.Run()

	// Initialize repositories
	gormDB := db.GetDB()
	userRepo := repository.NewUserRepository(gormDB)
	storeRepo := repository.NewStoreRepository(gormDB)
	ratingRepo := repository.NewRatingRepository(gormDB)

	// Initialize services
	authService := service.NewAuthService(userRepo, revoker, cfg.JWT.Secret, cfg.JWT.ExpiresIn)
	ratingService := service.NewRatingService(gormDB, storeRepo, ratingRepo, service.MultiPublisher(hub, m))
	storeService := service.NewStoreService(gormDB, storeRepo, userRepo, ratingRepo)
	userService := service.NewUserService(gormDB, userRepo, storeRepo, ratingRepo)
	dashboardService := service.NewDashboardService(userRepo, storeRepo, ratingRepo, cfg.Dashboard.TopLimit, cfg.Dashboard.TopMinRatings)
	reportService := service.NewReportService(storeRepo, dashboardService, uploader, storage.NewKey)

	// Initialize controllers
	authController := controller.NewAuthController(authService)
	storeController := controller.NewStoreController(storeService, ratingService)
	ratingController := controller.NewRatingController(ratingService, hub, websocket.Upgrader(cfg.CORS.AllowedOrigins))
	adminController := controller.NewAdminController(userService, dashboardService, reportService, ratingService, m)

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.Secret, userRepo, revocations)
	authLimiter := middleware.NewRateLimiter(cfg.RateLimit.AuthRPS, cfg.RateLimit.AuthBurst)
	stopCleanup := make(chan struct{})
	authLimiter.StartCleanup(time.Minute, stopCleanup)

	reconciler := scheduler.NewReconcileScheduler(cfg.Scheduler.ReconcileCron, ratingService, m)
	if err := reconciler.Start(); err != nil {
		logger.Fatal("Failed to start aggregate reconcile scheduler", err)
	}

	r := router.NewRouter(
		authController,
		storeController,
		ratingController,
		adminController,
		authMiddleware,
		authLimiter,
		m,
		func() error { return db.Ping(gormDB) },
		cfg,
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           r.Setup(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Server started successfully", map[string]interface{}{
			"address": srv.Addr,
			"pid":     os.Getpid(),
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", err)
	}

	<-reconciler.Stop().Done()
	close(stopCleanup)
	hub.Stop()

	logger.Info("Server stopped successfully")
}
