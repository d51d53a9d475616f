package main

import (
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/edutrack-id/timetable-api/api/swagger"
	"github.com/edutrack-id/timetable-api/internal/handler"
	"github.com/edutrack-id/timetable-api/internal/middleware"
	"github.com/edutrack-id/timetable-api/internal/models"
	"github.com/edutrack-id/timetable-api/internal/repository"
	"github.com/edutrack-id/timetable-api/internal/service"
	"github.com/edutrack-id/timetable-api/pkg/cache"
	"github.com/edutrack-id/timetable-api/pkg/config"
	"github.com/edutrack-id/timetable-api/pkg/database"
	"github.com/edutrack-id/timetable-api/pkg/logger"
	corsmiddleware "github.com/edutrack-id/timetable-api/pkg/middleware/cors"
	reqidmiddleware "github.com/edutrack-id/timetable-api/pkg/middleware/requestid"
)

// @title Timetable API
// @version 0.1.0
// @description Weekly class timetable with conflict validation and a publish/approve workflow
// @BasePath /
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// The API stays functional without Redis; reads just skip the cache.
		logr.Warn("redis unavailable, caching disabled", zap.Error(err))
		redisClient = nil
	}

	catalogRepo := repository.NewCatalogRepository(db)
	availabilityRepo := repository.NewAvailabilityRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	publicationRepo := repository.NewPublicationRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(cfg.JWT.Secret)
	catalogSvc := service.NewCatalogService(catalogRepo, logr)
	availabilitySvc := service.NewAvailabilityService(availabilityRepo, catalogRepo, nil, logr)
	timetableSvc := service.NewTimetableService(assignmentRepo, catalogRepo, availabilitySvc, nil, logr,
		service.WithQuotaHard(cfg.Timetable.QuotaHard),
		service.WithGridCache(cacheRepo, cfg.Timetable.CacheTTL),
		service.WithTimetableMetrics(metricsSvc),
	)
	publicationSvc := service.NewPublicationService(publicationRepo, assignmentRepo, auditRepo, logr,
		service.WithConcurrentRequests(cfg.Timetable.AllowConcurrentRequests),
		service.WithSnapshotCache(cacheRepo, cfg.Timetable.CacheTTL),
		service.WithPublicationMetrics(metricsSvc),
	)

	catalogHandler := handler.NewCatalogHandler(catalogSvc)
	availabilityHandler := handler.NewAvailabilityHandler(availabilitySvc)
	timetableHandler := handler.NewTimetableHandler(timetableSvc)
	publicationHandler := handler.NewPublicationHandler(publicationSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(authSvc))

	editors := middleware.RequireRoles(models.RoleAdmin, models.RoleDirector, models.RoleCoordinator)
	reviewers := middleware.RequireRoles(models.RoleAdmin, models.RoleDirector)

	api.GET("/teachers", catalogHandler.Teachers)
	api.GET("/subjects", catalogHandler.Subjects)
	api.GET("/groups", catalogHandler.Groups)
	api.GET("/blocks", catalogHandler.Blocks)

	api.GET("/teachers/:id/availability", availabilityHandler.Week)
	api.PUT("/teachers/:id/availability", editors,
		middleware.Audit(auditRepo, models.AuditActionAvailabilitySet, "availability"),
		availabilityHandler.Set)

	api.GET("/assignments", timetableHandler.ListAll)
	api.GET("/assignments/:id", timetableHandler.Get)
	api.GET("/groups/:id/assignments", timetableHandler.ListByGroup)
	api.POST("/assignments", editors,
		middleware.Audit(auditRepo, models.AuditActionAssignmentSave, "assignment"),
		timetableHandler.Create)
	api.PUT("/assignments/:id", editors,
		middleware.Audit(auditRepo, models.AuditActionAssignmentSave, "assignment"),
		timetableHandler.Update)
	api.DELETE("/assignments/:id", editors,
		middleware.Audit(auditRepo, models.AuditActionAssignmentSave, "assignment"),
		timetableHandler.Delete)

	api.POST("/publish-requests", editors, publicationHandler.Submit)
	api.GET("/publish-requests/pending", reviewers, publicationHandler.ListPending)
	api.POST("/publish-requests/:id/approve", reviewers, publicationHandler.Approve)
	api.POST("/publish-requests/:id/reject", reviewers, publicationHandler.Reject)

	api.GET("/snapshots", publicationHandler.ListSnapshots)
	api.GET("/snapshots/unpublished-groups", editors, publicationHandler.UnpublishedGroups)
	api.GET("/snapshots/:id", publicationHandler.GetSnapshot)
	api.DELETE("/snapshots/:id", middleware.RequireRoles(models.RoleAdmin),
		middleware.Audit(auditRepo, models.AuditActionSnapshotDelete, "snapshot"),
		publicationHandler.DeleteSnapshot)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
