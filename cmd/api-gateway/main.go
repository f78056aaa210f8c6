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
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/sma-timetable/api/swagger"
	"github.com/noah-isme/sma-timetable/internal/handler"
	internalmiddleware "github.com/noah-isme/sma-timetable/internal/middleware"
	"github.com/noah-isme/sma-timetable/internal/repository"
	"github.com/noah-isme/sma-timetable/internal/scheduler"
	"github.com/noah-isme/sma-timetable/internal/service"
	"github.com/noah-isme/sma-timetable/pkg/cache"
	"github.com/noah-isme/sma-timetable/pkg/config"
	"github.com/noah-isme/sma-timetable/pkg/database"
	"github.com/noah-isme/sma-timetable/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-timetable/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-timetable/pkg/middleware/requestid"
	"github.com/noah-isme/sma-timetable/pkg/progress"
)

// @title SMA Timetable API
// @version 0.1.0
// @description Timetable generation engine: queued course and weekly-plan runs, run logs and exports.
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect database", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, job snapshots stay in memory", "error", err)
		redisClient = nil
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	courseRepo := repository.NewCourseRepository(db)
	resourceRepo := repository.NewResourceRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	runLogRepo := repository.NewRunLogRepository(db)
	closingRepo := repository.NewClosingPeriodRepository(db)
	unitStore := repository.NewUnitStore(db, sessionRepo, runLogRepo)

	timetableSvc := service.NewTimetableService(
		courseRepo,
		resourceRepo,
		sessionRepo,
		runLogRepo,
		closingRepo,
		unitStore,
		db,
		validate,
		metricsSvc,
		logr,
		service.TimetableConfig{
			Engine: scheduler.Options{
				AllowSplit:        cfg.Scheduler.AllowSplit,
				EnforceChronology: cfg.Scheduler.EnforceChronology,
				MaxPermutations:   cfg.Scheduler.MaxPermutations,
			},
			Location:      cfg.Scheduler.Location(),
			ExportMaxRows: cfg.Exports.MaxRows,
			PDFTitle:      cfg.Exports.PDFTitle,
		},
	)
	jobSvc := service.NewGenerationJobService(timetableSvc, progress.NewStore(nil), cacheRepo, metricsSvc, validate, logr, service.GenerationJobConfig{
		Workers:       cfg.Scheduler.Workers,
		QueueBuffer:   cfg.Scheduler.QueueBuffer,
		Retention:     cfg.Scheduler.JobRetention,
		PurgeInterval: cfg.Scheduler.PurgeInterval,
		SnapshotTTL:   cfg.Scheduler.SnapshotTTL,
	})
	if cfg.Scheduler.Enabled {
		jobSvc.Start(ctx)
		defer jobSvc.Stop()
	} else {
		logr.Sugar().Warnw("scheduler disabled, generation requests will be rejected")
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc, "/metrics"))

	healthHandler := handler.NewHealthHandler(metricsSvc, db)
	r.GET("/health", healthHandler.Health)
	r.GET("/ready", healthHandler.Ready)
	r.GET("/metrics", healthHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	handler.NewTimetableHandler(jobSvc, timetableSvc).Register(api.Group("/timetable"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Warnw("graceful shutdown failed", "error", err)
	}
}
