package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/arkan-dev/bootcamp-api/api/swagger"
	"github.com/arkan-dev/bootcamp-api/internal/handler"
	"github.com/arkan-dev/bootcamp-api/internal/middleware"
	"github.com/arkan-dev/bootcamp-api/internal/repository"
	"github.com/arkan-dev/bootcamp-api/internal/router"
	"github.com/arkan-dev/bootcamp-api/internal/service"
	"github.com/arkan-dev/bootcamp-api/pkg/cache"
	"github.com/arkan-dev/bootcamp-api/pkg/config"
	"github.com/arkan-dev/bootcamp-api/pkg/database"
	"github.com/arkan-dev/bootcamp-api/pkg/export"
	"github.com/arkan-dev/bootcamp-api/pkg/jobs"
	"github.com/arkan-dev/bootcamp-api/pkg/logger"
	"github.com/arkan-dev/bootcamp-api/pkg/mailer"
	corsmiddleware "github.com/arkan-dev/bootcamp-api/pkg/middleware/cors"
	reqidmiddleware "github.com/arkan-dev/bootcamp-api/pkg/middleware/requestid"
	"github.com/arkan-dev/bootcamp-api/pkg/storage"

	"github.com/go-playground/validator/v10"
)

// @title Bootcamp LMS API
// @version 1.0.0
// @description Learning management backend for the engineering bootcamp
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close()

	uploads, err := storage.NewLocalStorage(cfg.Storage.UploadsDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init upload storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Storage.SignedURLSecret, cfg.Storage.SignedURLTTL)

	validate := validator.New()

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	curriculumRepo := repository.NewCurriculumRepository(db)
	progressRepo := repository.NewProgressRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	certificateRepo := repository.NewCertificateRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Services.
	metricsSvc := service.NewMetricsService()
	notifier := service.NewNotificationService(redisClient, cfg.Notifications, logr)

	dashboardSvc := service.NewDashboardService(cacheRepo, userRepo, progressRepo, nil, curriculumRepo, submissionRepo, certificateRepo, metricsSvc, cfg.Dashboard, logr)

	progressSvc := service.NewProgressService(progressRepo, curriculumRepo, userRepo, submissionRepo, notifier, dashboardSvc, validate, logr)
	dashboardSvc.SetStanding(progressSvc)

	mail := mailer.New(cfg.Mail)
	renderer := export.NewCertificateRenderer()

	certificateSvc := service.NewCertificateService(certificateRepo, progressRepo, curriculumRepo, userRepo, uploads, renderer, signer, mail, nil, notifier, cfg.Certificates, logr)
	mailQueue := jobs.NewQueue("certificate-email", certificateSvc.HandleEmailJob, jobs.QueueConfig{
		Workers:    cfg.Mail.Workers,
		MaxRetries: cfg.Mail.Retries,
		Logger:     logr,
	})
	certificateSvc.SetQueue(mailQueue)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	mailQueue.Start(ctx)
	defer mailQueue.Stop()

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "bootcamp-api",
	})
	userSvc := service.NewUserService(userRepo, validate, logr)
	curriculumSvc := service.NewCurriculumService(curriculumRepo, progressSvc, validate, logr)
	submissionSvc := service.NewSubmissionService(submissionRepo, curriculumRepo, progressSvc, uploads, signer, userRepo, notifier, validate, logr)
	phaseSvc := service.NewPhaseService(curriculumRepo, userRepo, progressSvc, certificateSvc, userRepo, notifier, logr)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": err.Error()})
			return
		}
		if err := redisClient.Ping(c.Request.Context()).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "redis": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	metricsHandler := handler.NewMetricsHandler(metricsSvc)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	router.Register(r, router.Dependencies{
		APIPrefix:        cfg.APIPrefix,
		DashboardEnabled: cfg.Dashboard.Enabled,
		AuthService:      authSvc,
		Auth:             handler.NewAuthHandler(authSvc),
		Users:            handler.NewUserHandler(userSvc),
		Curriculum:       handler.NewCurriculumHandler(curriculumSvc, progressSvc),
		Progress:         handler.NewProgressHandler(progressSvc),
		Submissions:      handler.NewSubmissionHandler(submissionSvc),
		Phases:           handler.NewPhaseHandler(phaseSvc),
		Certificates:     handler.NewCertificateHandler(certificateSvc),
		Dashboard:        handler.NewDashboardHandler(dashboardSvc),
		Metrics:          metricsHandler,
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
