package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/classroom-sync-api/api/swagger"
	"github.com/noah-isme/classroom-sync-api/internal/broadcast"
	"github.com/noah-isme/classroom-sync-api/internal/handler"
	"github.com/noah-isme/classroom-sync-api/internal/middleware"
	"github.com/noah-isme/classroom-sync-api/internal/repository"
	"github.com/noah-isme/classroom-sync-api/internal/service"
	"github.com/noah-isme/classroom-sync-api/pkg/cache"
	"github.com/noah-isme/classroom-sync-api/pkg/config"
	"github.com/noah-isme/classroom-sync-api/pkg/database"
	"github.com/noah-isme/classroom-sync-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/classroom-sync-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/classroom-sync-api/pkg/middleware/requestid"
)

// @title Classroom Sync API
// @version 0.1.0
// @description Authoritative record store, broadcast channel and grading computations for live classroom clients
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("postgres connection failed", "error", err)
	}
	defer db.Close() //nolint:errcheck

	// Redis is optional: without it the gateway runs uncached and
	// single-instance, which is fine for development.
	var redisClient *redis.Client
	if client, err := cache.NewRedis(cfg.Redis); err != nil {
		logr.Sugar().Warnw("redis unavailable, running without cache and fanout", "error", err)
	} else {
		redisClient = client
		defer redisClient.Close() //nolint:errcheck
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var bridge *broadcast.RedisBridge
	if cfg.Broadcast.RedisFanout && redisClient != nil {
		bridge = broadcast.NewRedisBridge(redisClient, cfg.Broadcast.ChannelPrefix, logr)
	}
	hub := broadcast.NewHub(cfg.Broadcast, bridge, logr)
	hub.Run(ctx)

	metricsService := service.NewMetricsService()
	hub.OnDelivered(metricsService.ObserveBroadcast)

	recordRepo := repository.NewRecordRepository(db)
	schemeRepo := repository.NewSchemeRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	recordService := service.NewRecordService(recordRepo, hub, logr).WithMetrics(metricsService)
	gradingService := service.NewGradingService(schemeRepo, recordRepo, cacheRepo, cfg.Grading, logr)

	var exportService *service.ExportService
	if cfg.Export.Enabled {
		exportService = service.NewExportService(recordRepo, gradingService, logr)
	}

	recordHandler := handler.NewRecordHandler(recordService)
	schemeHandler := handler.NewSchemeHandler(gradingService)
	gradeHandler := handler.NewGradeHandler(gradingService, exportService)
	wsHandler := handler.NewWSHandler(hub, logr)
	metricsHandler := handler.NewMetricsHandler(metricsService)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(cfg.JWT))
	{
		api.GET("/classes/:classId/records/:kind", recordHandler.List)
		api.POST("/classes/:classId/records/:kind", recordHandler.Create)
		api.GET("/records/:kind/:id", recordHandler.Get)
		api.PATCH("/records/:kind/:id", recordHandler.Patch)
		api.DELETE("/records/:kind/:id", recordHandler.Delete)

		api.PUT("/classes/:classId/grading/documents/:docKind", schemeHandler.Save)
		api.GET("/classes/:classId/grading/documents/:docKind/versions", schemeHandler.Versions)
		api.GET("/classes/:classId/grading/scheme", schemeHandler.Scheme)
		api.GET("/classes/:classId/grading/boundaries", schemeHandler.Boundaries)

		api.POST("/classes/:classId/grades/preview", gradeHandler.Preview)
		api.GET("/classes/:classId/submissions/:id/grade", gradeHandler.SubmissionGrade)
		api.GET("/classes/:classId/grade-sheet", gradeHandler.GradeSheet)
	}

	if cfg.Broadcast.Enabled {
		ws := r.Group("/ws")
		ws.Use(middleware.JWT(cfg.JWT))
		ws.GET("", wsHandler.Serve)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("shutdown incomplete", "error", err)
		os.Exit(1)
	}
}
