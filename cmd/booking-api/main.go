package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/slotwise/booking-api/api/swagger"
	"github.com/slotwise/booking-api/internal/handler"
	"github.com/slotwise/booking-api/internal/middleware"
	"github.com/slotwise/booking-api/internal/models"
	"github.com/slotwise/booking-api/internal/repository"
	"github.com/slotwise/booking-api/internal/service"
	"github.com/slotwise/booking-api/pkg/cache"
	"github.com/slotwise/booking-api/pkg/config"
	"github.com/slotwise/booking-api/pkg/database"
	"github.com/slotwise/booking-api/pkg/logger"
	corsmiddleware "github.com/slotwise/booking-api/pkg/middleware/cors"
	reqidmiddleware "github.com/slotwise/booking-api/pkg/middleware/requestid"
	"github.com/slotwise/booking-api/pkg/storage"
)

// @title Tutor Booking API
// @version 1.0.0
// @description Instructor availability and slot booking service
// @BasePath /api
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

	metricsSvc := service.NewMetricsService()

	var cacheSvc *service.CacheService
	if cfg.Booking.SlotCacheEnabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, slot cache disabled", "error", err)
		} else {
			cacheRepo := repository.NewCacheRepository(redisClient, logr)
			cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Booking.SlotCacheTTL, logr, true)
			defer cacheRepo.Close()
		}
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	availabilityRepo := repository.NewAvailabilityRepository(db)
	bookingRepo := repository.NewBookingRepository(db)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	availabilitySvc := service.NewAvailabilityService(availabilityRepo, userRepo, cacheSvc, validate, logr)
	slotSvc := service.NewSlotService(availabilityRepo, bookingRepo, cacheSvc, cfg.Booking.SlotCacheTTL, logr)
	bookingSvc := service.NewBookingService(bookingRepo, userRepo, slotSvc, cacheSvc, metricsSvc, validate, logr)

	var exportSvc *service.ExportService
	if cfg.Exports.Enabled {
		store, err := storage.NewLocalStorage(cfg.Exports.Dir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init export storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.JWT.Secret, cfg.Exports.SignedURLTTL)
		exportSvc = service.NewExportService(bookingSvc, store, signer, logr, cfg.Exports.Workers)
		exportSvc.Start(context.Background())
		defer exportSvc.Stop()
	}

	authHandler := handler.NewAuthHandler(authSvc)
	availabilityHandler := handler.NewAvailabilityHandler(availabilitySvc)
	bookingHandler := handler.NewBookingHandler(bookingSvc, slotSvc)
	instructorHandler := handler.NewInstructorHandler(userRepo)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/register", authHandler.Register)
	api.POST("/auth/login", authHandler.Login)

	authed := api.Group("", middleware.JWT(authSvc))
	authed.GET("/user", authHandler.Profile)
	authed.GET("/user-role", authHandler.Role)
	authed.GET("/available-slots/:instructorId/:date", bookingHandler.AvailableSlots)

	instructors := authed.Group("", middleware.RequireRoles(models.RoleInstructor))
	instructors.POST("/availability", availabilityHandler.Set)
	instructors.PUT("/availability", availabilityHandler.Update)
	instructors.DELETE("/availability", availabilityHandler.Delete)
	instructors.GET("/availability", availabilityHandler.Get)
	instructors.PUT("/availability/bulk", availabilityHandler.BulkEdit)
	instructors.GET("/bookings", bookingHandler.InstructorBookings)
	if cfg.Exports.Enabled {
		exportHandler := handler.NewExportHandler(exportSvc)
		instructors.GET("/bookings/export", bookingHandler.Export)
		instructors.POST("/bookings/export-jobs", exportHandler.Create)
		instructors.GET("/bookings/export-jobs/:id", exportHandler.Status)
		api.GET("/exports/:token", exportHandler.Download)
	}

	students := authed.Group("", middleware.RequireRoles(models.RoleStudent))
	students.GET("/instructors", instructorHandler.List)
	students.GET("/instructors/:id/availability", availabilityHandler.GetForInstructor)
	students.POST("/bookings", bookingHandler.Book)
	students.GET("/student-bookings", bookingHandler.StudentBookings)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
