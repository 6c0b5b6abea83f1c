package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/studio-agenda-api/api/swagger"
	"github.com/noah-isme/studio-agenda-api/internal/handler"
	"github.com/noah-isme/studio-agenda-api/internal/middleware"
	"github.com/noah-isme/studio-agenda-api/internal/models"
	"github.com/noah-isme/studio-agenda-api/internal/service"
	"github.com/noah-isme/studio-agenda-api/pkg/config"
	"github.com/noah-isme/studio-agenda-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/studio-agenda-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/studio-agenda-api/pkg/middleware/requestid"
)

type routeHandlers struct {
	auth           *handler.AuthHandler
	changeRequests *handler.ChangeRequestHandler
	students       *handler.StudentHandler
	teachers       *handler.TeacherHandler
	modalities     *handler.ModalityHandler
	slots          *handler.ScheduleSlotHandler
	enrollments    *handler.EnrollmentHandler
	credits        *handler.AbsenceCreditHandler
	notices        *handler.NoticeHandler
	calendar       *handler.CalendarHandler
	metrics        *handler.MetricsHandler
}

func newRouter(cfg *config.Config, logr *zap.Logger, metricsSvc *service.MetricsService, authSvc *service.AuthService, gate *service.PermissionGate, h routeHandlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc, "/metrics", "/health", "/ready"))
	r.Use(middleware.AuditClient())

	r.GET("/health", h.metrics.Health)
	r.GET("/ready", h.metrics.Ready)
	r.GET("/metrics", h.metrics.Prometheus)

	if cfg.Swagger.Enabled {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	can := func(capability models.Capability) gin.HandlerFunc {
		return middleware.RequireCapability(gate, capability)
	}

	auth := api.Group("/auth")
	auth.POST("/login", h.auth.Login)
	auth.GET("/me", middleware.JWT(authSvc), h.auth.Me)

	changeRequests := api.Group("/change-requests")
	changeRequests.POST("", can(models.CapChangeRequests), h.changeRequests.Create)
	changeRequests.GET("", can(models.CapChangeRequests), h.changeRequests.List)
	changeRequests.GET("/:id", can(models.CapChangeRequests), h.changeRequests.Get)
	changeRequests.DELETE("/:id", can(models.CapChangeRequests), h.changeRequests.Cancel)
	changeRequests.POST("/:id/approve", can(models.CapChangeRequestsReview), h.changeRequests.Approve)
	changeRequests.POST("/:id/reject", can(models.CapChangeRequestsReview), h.changeRequests.Reject)

	students := api.Group("/students", can(models.CapStudents))
	students.GET("", h.students.List)
	students.POST("", h.students.Create)
	students.GET("/:id", h.students.Get)
	students.PUT("/:id", h.students.Update)
	students.DELETE("/:id", h.students.Delete)

	teachers := api.Group("/teachers", can(models.CapTeachers))
	teachers.GET("", h.teachers.List)
	teachers.POST("", h.teachers.Create)
	teachers.GET("/:id", h.teachers.Get)
	teachers.PUT("/:id", h.teachers.Update)
	teachers.DELETE("/:id", h.teachers.Delete)

	modalities := api.Group("/modalities", can(models.CapModalities))
	modalities.GET("", h.modalities.List)
	modalities.POST("", h.modalities.Create)
	modalities.GET("/:id", h.modalities.Get)
	modalities.PUT("/:id", h.modalities.Update)
	modalities.DELETE("/:id", h.modalities.Delete)

	slots := api.Group("/schedule-slots", can(models.CapSchedule))
	slots.GET("", h.slots.List)
	slots.POST("", h.slots.Create)
	slots.GET("/:id", h.slots.Get)
	slots.PUT("/:id", h.slots.Update)
	slots.PATCH("/:id/flags", h.slots.SetFlags)
	slots.DELETE("/:id", h.slots.Delete)
	slots.GET("/:id/occupancy", h.slots.Occupancy)
	slots.GET("/:id/roster", h.slots.Roster)

	enrollments := api.Group("/enrollments", can(models.CapSchedule))
	enrollments.GET("", h.enrollments.List)
	enrollments.POST("", h.enrollments.Create)
	enrollments.DELETE("/:id", h.enrollments.Delete)

	credits := api.Group("/credits", can(models.CapCredits))
	credits.GET("", h.credits.List)
	credits.POST("", h.credits.Grant)
	credits.POST("/:id/use", h.credits.Use)

	usages := api.Group("/credit-usages", can(models.CapCredits))
	usages.GET("", h.credits.ListUsages)
	usages.PATCH("/:id", h.credits.ConfirmAttendance)
	usages.DELETE("/:id", h.credits.RevokeUsage)

	api.GET("/notices/active", middleware.JWT(authSvc), h.notices.Active)
	notices := api.Group("/notices", can(models.CapNotices))
	notices.GET("", h.notices.List)
	notices.POST("", h.notices.Create)
	notices.GET("/:id", h.notices.Get)
	notices.PUT("/:id", h.notices.Update)
	notices.DELETE("/:id", h.notices.Delete)

	holidays := api.Group("/holidays", can(models.CapCalendar))
	holidays.GET("", h.calendar.ListHolidays)
	holidays.POST("", h.calendar.CreateHoliday)
	holidays.DELETE("/:id", h.calendar.DeleteHoliday)

	blocked := api.Group("/blocked-slots", can(models.CapCalendar))
	blocked.GET("", h.calendar.ListBlockedSlots)
	blocked.POST("", h.calendar.BlockSlot)
	blocked.DELETE("/:id", h.calendar.UnblockSlot)

	return r
}
