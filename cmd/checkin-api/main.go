package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/classhour/checkin-api/api/swagger"
	"github.com/classhour/checkin-api/internal/eligibility"
	"github.com/classhour/checkin-api/internal/handler"
	"github.com/classhour/checkin-api/internal/middleware"
	"github.com/classhour/checkin-api/internal/models"
	"github.com/classhour/checkin-api/internal/repository"
	"github.com/classhour/checkin-api/internal/service"
	"github.com/classhour/checkin-api/pkg/cache"
	"github.com/classhour/checkin-api/pkg/config"
	"github.com/classhour/checkin-api/pkg/database"
	"github.com/classhour/checkin-api/pkg/logger"
	corsmiddleware "github.com/classhour/checkin-api/pkg/middleware/cors"
	reqidmiddleware "github.com/classhour/checkin-api/pkg/middleware/requestid"
	"github.com/classhour/checkin-api/pkg/storage"
)

// @title ClassHour Check-in API
// @version 1.0.0
// @description Student attendance check-in with weekly reporting
// @BasePath /api/v1
// @schemes http

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

	evaluator, epoch, err := buildEvaluator(cfg.Checkin)
	if err != nil {
		logr.Sugar().Fatalw("invalid check-in schedule", "error", err)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("database connection failed", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, running without cache", "error", err)
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close() //nolint:errcheck
	}

	exportStore, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("export storage init failed", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)

	validate := service.NewValidator()
	metrics := service.NewMetricsService()

	studentRepo := repository.NewStudentRepository(db)
	checkinRepo := repository.NewCheckinRepository(db)
	userRepo := repository.NewUserRepository(db)
	jobRepo := repository.NewReportJobRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	checkinSvc := service.NewCheckinService(studentRepo, checkinRepo, cacheRepo, evaluator, epoch, cfg.Checkin.DedupCacheTTL, metrics, validate, logr)
	rosterSvc := service.NewRosterService(studentRepo, validate, logr)
	authSvc := service.NewAuthService(userRepo, cfg.JWT.Secret, cfg.JWT.Expiration, cfg.JWT.Issuer, validate, logr)
	reportSvc := service.NewReportService(checkinRepo, jobRepo, cacheRepo, metrics, exportStore, signer, service.ReportServiceConfig{
		Epoch:        epoch,
		Location:     evaluator.Location(),
		CacheTTL:     cfg.Reports.CacheTTL,
		SignedURLTTL: cfg.Reports.SignedURLTTL,
		Workers:      cfg.Reports.WorkerConcurrency,
		Retries:      cfg.Reports.WorkerRetries,
		DownloadPath: cfg.APIPrefix + "/reports/download",
	}, validate, logr)

	reportSvc.Start()
	defer reportSvc.Stop()

	checkinHandler := handler.NewCheckinHandler(checkinSvc, reportSvc, cfg.Env, logr)
	studentHandler := handler.NewStudentHandler(rosterSvc, logr)
	reportHandler := handler.NewReportHandler(reportSvc, logr)
	authHandler := handler.NewAuthHandler(authSvc, logr)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	{
		api.POST("/checkin", checkinHandler.Checkin)
		api.POST("/auth/login", authHandler.Login)
		api.GET("/reports/download/:token", reportHandler.Download)

		authed := api.Group("")
		authed.Use(middleware.JWTAuth(authSvc))
		{
			authed.GET("/auth/me", authHandler.Me)
			authed.GET("/checkins", checkinHandler.List)
			authed.GET("/reports/weekly", reportHandler.Weekly)
			authed.POST("/reports/export", reportHandler.Export)
			authed.GET("/reports/jobs/:id", reportHandler.Status)

			admin := authed.Group("")
			admin.Use(middleware.RequireRole(models.RoleAdmin))
			{
				admin.GET("/students", studentHandler.List)
				admin.POST("/students", studentHandler.Create)
				admin.GET("/students/:id", studentHandler.Get)
				admin.PATCH("/students/:id", studentHandler.Update)
				admin.DELETE("/students/:id", studentHandler.Delete)
				admin.POST("/students/import", studentHandler.Import)
			}
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go runCleanup(ctx, reportSvc, cfg.Reports.CleanupInterval, logr)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}

func buildEvaluator(cfg config.CheckinConfig) (*eligibility.Evaluator, time.Time, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}

	schedule := eligibility.Schedule{}
	if schedule.Weekend, err = buildRule(cfg.Weekend); err != nil {
		return nil, time.Time{}, fmt.Errorf("weekend schedule: %w", err)
	}
	if schedule.Weekday, err = buildRule(cfg.Weekday); err != nil {
		return nil, time.Time{}, fmt.Errorf("weekday schedule: %w", err)
	}

	evaluator, err := eligibility.NewEvaluator(schedule, loc)
	if err != nil {
		return nil, time.Time{}, err
	}

	epoch, err := eligibility.ParseDate(cfg.WeekEpochDate, loc)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("week epoch date: %w", err)
	}
	return evaluator, epoch, nil
}

func buildRule(cfg config.SessionRuleConfig) (eligibility.Rule, error) {
	start, err := eligibility.ParseClock(cfg.StartTime)
	if err != nil {
		return eligibility.Rule{}, err
	}
	end, err := eligibility.ParseClock(cfg.EndTime)
	if err != nil {
		return eligibility.Rule{}, err
	}
	return eligibility.Rule{
		StartMinute:          start,
		EndMinute:            end,
		LateThresholdMinutes: cfg.LateThresholdMinutes,
		EarlyLoginMinutes:    cfg.EarlyLoginMinutes,
	}, nil
}

func runCleanup(ctx context.Context, reports *service.ReportService, interval time.Duration, logr *zap.Logger) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := reports.Cleanup(ctx); err != nil {
				logr.Sugar().Warnw("export cleanup failed", "error", err)
			}
		}
	}
}
