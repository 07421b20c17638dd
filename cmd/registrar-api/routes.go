package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/spicer-enrichment/registrar-api/internal/handler"
	"github.com/spicer-enrichment/registrar-api/internal/middleware"
	"github.com/spicer-enrichment/registrar-api/internal/models"
	"github.com/spicer-enrichment/registrar-api/internal/service"
	"github.com/spicer-enrichment/registrar-api/pkg/config"
)

type routeHandlers struct {
	auth       *handler.AuthHandler
	students   *handler.StudentHandler
	grades     *handler.GradeHandler
	transcript *handler.TranscriptHandler
	archives   *handler.ArchiveHandler
	exports    *handler.ExportHandler
	metrics    *handler.MetricsHandler
	tokens     *service.AuthService
}

func registerRoutes(r *gin.Engine, cfg *config.Config, h routeHandlers) {
	r.GET("/health", h.metrics.Health)
	r.GET("/metrics", h.metrics.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	authenticated := middleware.JWT(h.tokens)
	adminOnly := middleware.RequireRoles(models.RoleAdmin)

	users := api.Group("/users")
	users.POST("/register", h.students.Register)
	users.POST("/login", h.auth.StudentLogin)
	users.GET("/profile/:id", authenticated, middleware.RBAC(string(models.RoleAdmin), middleware.RoleSelf), h.students.Profile)

	api.POST("/admin/register", h.auth.RegisterAdmin)
	api.POST("/admin/login", h.auth.AdminLogin)

	admin := api.Group("/admin", authenticated, adminOnly)
	admin.GET("/users", h.students.List)
	admin.PUT("/update-grades/:id", h.grades.UpdateGrades)
	admin.GET("/transcripts/:id", h.transcript.Record)
	admin.GET("/download-certificate/:id", h.transcript.Download)
	admin.POST("/download-certificates", h.archives.Create)
	admin.GET("/download-certificates/:id", h.archives.Status)
	admin.GET("/export/csv", h.exports.StudentsCSV)

	api.GET("/export/:token", h.archives.Download)
}
