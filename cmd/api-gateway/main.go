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
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/studio-agenda-api/internal/handler"
	"github.com/noah-isme/studio-agenda-api/internal/repository"
	"github.com/noah-isme/studio-agenda-api/internal/service"
	"github.com/noah-isme/studio-agenda-api/pkg/cache"
	"github.com/noah-isme/studio-agenda-api/pkg/config"
	"github.com/noah-isme/studio-agenda-api/pkg/database"
	"github.com/noah-isme/studio-agenda-api/pkg/logger"
	"github.com/noah-isme/studio-agenda-api/pkg/validation"
)

// @title Studio Agenda API
// @version 1.0.0
// @description Admin API for a fitness studio: weekly schedule, enrollments, change requests and make-up credits.
// @BasePath /
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.Cache.Enabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, continuing without cache", zap.Error(err))
		}
	}

	app := buildApp(ctx, cfg, db, redisClient, logr)
	app.audit.Start(ctx)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           app.router,
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("http server shutdown", zap.Error(err))
	}
	app.audit.Stop()
	if app.cacheRepo != nil {
		_ = app.cacheRepo.Close()
	}
	logr.Info("shutdown complete")
}

type application struct {
	router    *gin.Engine
	audit     *service.AuditService
	cacheRepo *repository.CacheRepository
}

func buildApp(ctx context.Context, cfg *config.Config, db *sqlx.DB, redisClient *redis.Client, logr *zap.Logger) *application {
	validate := validation.New()
	metricsSvc := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	teacherRepo := repository.NewTeacherRepository(db)
	modalityRepo := repository.NewModalityRepository(db)
	slotRepo := repository.NewScheduleSlotRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	changeRequestRepo := repository.NewChangeRequestRepository(db)
	creditRepo := repository.NewAbsenceCreditRepository(db)
	noticeRepo := repository.NewNoticeRepository(db)
	calendarRepo := repository.NewCalendarRepository(db)

	var (
		cacheRepo *repository.CacheRepository
		cacheSvc  *service.CacheService
	)
	if redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
		cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.TTL, logr, cfg.Cache.Enabled)
		// Read models from a previous release may not match the current structs.
		_ = cacheSvc.Invalidate(ctx, cache.KeyPatternAll)
	}

	auditSvc := service.NewAuditService(userRepo, service.AuditConfig{
		Workers:    cfg.Audit.Workers,
		Retries:    cfg.Audit.Retries,
		BufferSize: cfg.Audit.BufferSize,
	}, logr)

	authSvc := service.NewAuthService(userRepo, validate, auditSvc, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	gate := service.NewPermissionGate(authSvc, userRepo, logr)

	changeRequestSvc := service.NewChangeRequestService(changeRequestRepo, studentRepo, slotRepo, enrollmentRepo, validate, logr,
		service.WithChangeRequestAudit(auditSvc),
		service.WithChangeRequestMetrics(metricsSvc),
		service.WithChangeRequestListLimit(cfg.Workflow.DefaultListLimit),
	)

	handlers := routeHandlers{
		auth:           handler.NewAuthHandler(authSvc),
		changeRequests: handler.NewChangeRequestHandler(changeRequestSvc, cfg.Workflow.ChangeRequestsEnabled),
		students:       handler.NewStudentHandler(service.NewStudentService(studentRepo, validate, logr)),
		teachers:       handler.NewTeacherHandler(service.NewTeacherService(teacherRepo, validate, logr)),
		modalities:     handler.NewModalityHandler(service.NewModalityService(modalityRepo, cacheSvc, validate, logr)),
		slots: handler.NewScheduleSlotHandler(service.NewScheduleSlotService(
			slotRepo, teacherRepo, modalityRepo, enrollmentRepo, changeRequestRepo, validate, logr)),
		enrollments: handler.NewEnrollmentHandler(service.NewEnrollmentService(enrollmentRepo, studentRepo, validate, auditSvc, logr)),
		credits: handler.NewAbsenceCreditHandler(service.NewAbsenceCreditService(
			creditRepo, studentRepo, slotRepo, validate, auditSvc, logr)),
		notices:  handler.NewNoticeHandler(service.NewNoticeService(noticeRepo, cacheSvc, validate, logr)),
		calendar: handler.NewCalendarHandler(service.NewCalendarService(calendarRepo, slotRepo, validate, logr)),
		metrics:  handler.NewMetricsHandler(metricsSvc, readinessChecks(db, redisClient)),
	}

	router := newRouter(cfg, logr, metricsSvc, authSvc, gate, handlers)
	return &application{router: router, audit: auditSvc, cacheRepo: cacheRepo}
}

func readinessChecks(db *sqlx.DB, redisClient *redis.Client) map[string]handler.ReadinessCheck {
	checks := map[string]handler.ReadinessCheck{
		"database": db.PingContext,
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}
	return checks
}
