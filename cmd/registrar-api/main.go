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
	"go.uber.org/zap"

	_ "github.com/spicer-enrichment/registrar-api/api/swagger"
	"github.com/spicer-enrichment/registrar-api/internal/gradeengine"
	"github.com/spicer-enrichment/registrar-api/internal/handler"
	"github.com/spicer-enrichment/registrar-api/internal/middleware"
	"github.com/spicer-enrichment/registrar-api/internal/repository"
	"github.com/spicer-enrichment/registrar-api/internal/service"
	"github.com/spicer-enrichment/registrar-api/pkg/cache"
	"github.com/spicer-enrichment/registrar-api/pkg/config"
	"github.com/spicer-enrichment/registrar-api/pkg/database"
	"github.com/spicer-enrichment/registrar-api/pkg/export"
	"github.com/spicer-enrichment/registrar-api/pkg/jobs"
	"github.com/spicer-enrichment/registrar-api/pkg/logger"
	corsmiddleware "github.com/spicer-enrichment/registrar-api/pkg/middleware/cors"
	reqidmiddleware "github.com/spicer-enrichment/registrar-api/pkg/middleware/requestid"
	"github.com/spicer-enrichment/registrar-api/pkg/storage"
)

// @title Enrichment Registrar API
// @version 1.0.0
// @description Student registration, grade entry and transcript issuance for the enrichment programme
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.JWT.Secret == "" {
		log.Fatalf("JWT_SECRET is required")
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.EnsureSchema(ctx, db); err != nil {
			logr.Fatal("failed to create schema", zap.Error(err))
		}
	}
	if err := database.VerifySchema(ctx, db); err != nil {
		logr.Fatal("database schema incomplete", zap.Error(err))
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, transcript cache disabled", zap.Error(err))
		redisClient = nil
	}

	uploads, err := storage.NewLocalStorage(cfg.Uploads.Dir)
	if err != nil {
		logr.Fatal("failed to init upload storage", zap.Error(err))
	}
	archives, err := storage.NewLocalStorage(cfg.Transcripts.StorageDir)
	if err != nil {
		logr.Fatal("failed to init transcript storage", zap.Error(err))
	}
	signer := storage.NewSignedURLSigner(cfg.Transcripts.SignedURLSecret, cfg.Transcripts.SignedURLTTL)

	studentRepo := repository.NewStudentRepository(db)
	gradeRepo := repository.NewGradeRepository(db)
	adminRepo := repository.NewAdminRepository(db)
	archiveRepo := repository.NewArchiveJobRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	validate := validator.New()
	engine := gradeengine.New()
	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Transcripts.CacheTTL, logr, cfg.Transcripts.CacheEnabled && redisClient != nil)

	renderer := export.NewTranscriptRenderer(export.TranscriptLayout{
		InstitutionName: cfg.Institution.Name,
		AddressLines:    cfg.Institution.AddressLines,
		Phone:           cfg.Institution.Phone,
		Title:           cfg.Institution.Title,
	})

	authSvc := service.NewAuthService(studentRepo, adminRepo, validate, logr, service.AuthConfig{
		Secret:             cfg.JWT.Secret,
		StudentTokenExpiry: cfg.JWT.StudentExpiration,
		AdminTokenExpiry:   cfg.JWT.AdminExpiration,
		Issuer:             cfg.JWT.Issuer,
		BootstrapEnabled:   cfg.Admin.BootstrapEnabled,
	})
	studentSvc := service.NewStudentService(studentRepo, gradeRepo, uploads, engine, validate, logr, service.StudentServiceConfig{
		MaxUploadBytes: cfg.Uploads.MaxFileSizeBytes,
		AllowedMIMEs:   cfg.Uploads.AllowedMIMEs,
	})
	transcriptSvc := service.NewTranscriptService(studentRepo, gradeRepo, engine, renderer, cacheSvc, metricsSvc, cfg.Transcripts.CacheTTL, logr)
	gradeSvc := service.NewGradeService(studentRepo, gradeRepo, engine, transcriptSvc, metricsSvc, logr)
	exportSvc := service.NewExportService(studentRepo, export.NewCSVExporter(), logr)

	worker := service.NewArchiveWorker(archiveRepo, transcriptSvc, archives, signer, cfg.APIPrefix, logr)
	var archiveSvc *service.ArchiveService
	queue := jobs.NewQueue("transcript-archives", worker.Handle, jobs.QueueConfig{
		Workers:     cfg.Transcripts.WorkerConcurrency,
		BufferSize:  32,
		MaxAttempts: cfg.Transcripts.WorkerRetries + 1,
		RetryDelay:  2 * time.Second,
		OnFailure:   func(job jobs.Job, err error) { archiveSvc.HandleFailure(job, err) },
		Logger:      logr,
	})
	archiveSvc = service.NewArchiveService(archiveRepo, transcriptSvc, queue, archives, signer, logr, service.ArchiveServiceConfig{
		URLPrefix:       cfg.APIPrefix,
		ResultTTL:       cfg.Transcripts.SignedURLTTL,
		CleanupInterval: cfg.Transcripts.CleanupInterval,
	})
	queue.Start(ctx)
	defer queue.Stop()
	archiveSvc.RecoverPendingJobs(ctx)
	archiveSvc.StartCleanup(ctx)

	r := gin.New()
	r.MaxMultipartMemory = cfg.Uploads.MaxFileSizeBytes
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr, "/health", "/metrics"))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	registerRoutes(r, cfg, routeHandlers{
		auth:       handler.NewAuthHandler(authSvc),
		students:   handler.NewStudentHandler(studentSvc),
		grades:     handler.NewGradeHandler(gradeSvc),
		transcript: handler.NewTranscriptHandler(transcriptSvc),
		archives:   handler.NewArchiveHandler(archiveSvc),
		exports:    handler.NewExportHandler(exportSvc),
		metrics:    handler.NewMetricsHandler(metricsSvc, db),
		tokens:     authSvc,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
