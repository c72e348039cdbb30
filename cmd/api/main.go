package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/eduplex/course-api/api/swagger"
	"github.com/eduplex/course-api/internal/handler"
	"github.com/eduplex/course-api/internal/middleware"
	"github.com/eduplex/course-api/internal/models"
	"github.com/eduplex/course-api/internal/repository"
	"github.com/eduplex/course-api/internal/service"
	"github.com/eduplex/course-api/pkg/cache"
	"github.com/eduplex/course-api/pkg/config"
	"github.com/eduplex/course-api/pkg/database"
	"github.com/eduplex/course-api/pkg/export"
	"github.com/eduplex/course-api/pkg/logger"
	corsmiddleware "github.com/eduplex/course-api/pkg/middleware/cors"
	reqidmiddleware "github.com/eduplex/course-api/pkg/middleware/requestid"
)

// @title Course Platform API
// @version 1.0.0
// @description CRUD backend for the online course platform
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

	metricsService := service.NewMetricsService()

	var cacheService *service.CacheService
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, dashboard caching disabled")
		cacheService = service.NewCacheService(nil, metricsService, cfg.Dashboard.CacheTTL, logr, false)
	} else {
		defer redisClient.Close()
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		cacheService = service.NewCacheService(cacheRepo, metricsService, cfg.Dashboard.CacheTTL, logr, cfg.Dashboard.CacheEnabled)
	}

	userRepo := repository.NewUserRepository(db)
	instructorRepo := repository.NewInstructorRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	lessonRepo := repository.NewLessonRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	dashboardRepo := repository.NewDashboardRepository(db)

	dashboardService := service.NewDashboardService(dashboardRepo, cacheService, cfg.Dashboard.CacheTTL, logr)
	statsService := service.NewStatsService(courseRepo, instructorRepo, dashboardService, logr)
	userService := service.NewUserService(userRepo, nil, logr)
	instructorService := service.NewInstructorService(instructorRepo, userRepo, statsService, nil, logr)
	categoryService := service.NewCategoryService(categoryRepo, nil, logr)
	courseService := service.NewCourseService(courseRepo, categoryRepo, instructorRepo, statsService, nil, logr)
	lessonService := service.NewLessonService(lessonRepo, courseService, statsService, nil, logr)
	enrollmentService := service.NewEnrollmentService(enrollmentRepo, courseRepo, lessonRepo, statsService, nil, logr)
	authService := service.NewAuthService(userRepo, nil, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		ResetTokenTTL:      cfg.Auth.ResetTokenTTL,
		Issuer:             cfg.JWT.Issuer,
		SingleSession:      cfg.Auth.SingleSession,
	})

	authHandler := handler.NewAuthHandler(authService)
	userHandler := handler.NewUserHandler(userService)
	instructorHandler := handler.NewInstructorHandler(instructorService)
	categoryHandler := handler.NewCategoryHandler(categoryService)
	courseHandler := handler.NewCourseHandler(courseService, enrollmentService, export.NewCSVExporter(), export.NewPDFExporter())
	lessonHandler := handler.NewLessonHandler(lessonService)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentService)
	dashboardHandler := handler.NewDashboardHandler(dashboardService)
	metricsHandler := handler.NewMetricsHandler(metricsService)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	admin := middleware.RequireRoles(models.RoleAdmin)
	adminOrSelf := middleware.RBAC(string(models.RoleAdmin), "SELF")
	instructorOrAdmin := middleware.RequireRoles(models.RoleInstructor, models.RoleAdmin)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/forgot-password", authHandler.ForgotPassword)
		auth.POST("/reset-password", authHandler.ResetPassword)

		protected := auth.Group("", middleware.JWT(authService))
		protected.POST("/logout", authHandler.Logout)
		protected.GET("/me", authHandler.Me)
		protected.POST("/change-password", authHandler.ChangePassword)
	}

	users := api.Group("/users")
	{
		users.POST("", userHandler.Create)

		protected := users.Group("", middleware.JWT(authService))
		protected.GET("", admin, userHandler.List)
		protected.GET("/:id", adminOrSelf, userHandler.Get)
		protected.PUT("/:id", adminOrSelf, userHandler.Update)
		protected.DELETE("/:id", admin, userHandler.Delete)
		protected.POST("/:id/restore", admin, userHandler.Restore)
	}

	instructors := api.Group("/instructors")
	{
		instructors.GET("", middleware.OptionalJWT(authService), instructorHandler.List)
		instructors.GET("/:id", instructorHandler.Get)

		protected := instructors.Group("", middleware.JWT(authService), admin)
		protected.POST("", instructorHandler.Create)
		protected.PUT("/:id", instructorHandler.Update)
		protected.DELETE("/:id", instructorHandler.Delete)
		protected.POST("/:id/restore", instructorHandler.Restore)
	}

	categories := api.Group("/categories")
	{
		categories.GET("", middleware.OptionalJWT(authService), categoryHandler.List)
		categories.GET("/:id", categoryHandler.Get)

		protected := categories.Group("", middleware.JWT(authService), admin)
		protected.POST("", categoryHandler.Create)
		protected.PUT("/:id", categoryHandler.Update)
		protected.DELETE("/:id", categoryHandler.Delete)
		protected.POST("/:id/restore", categoryHandler.Restore)
	}

	courses := api.Group("/courses")
	{
		courses.GET("", middleware.OptionalJWT(authService), courseHandler.List)
		courses.GET("/:id", courseHandler.Get)
		courses.GET("/:id/lessons", middleware.OptionalJWT(authService), lessonHandler.ListByCourse)

		protected := courses.Group("", middleware.JWT(authService), instructorOrAdmin)
		protected.POST("", courseHandler.Create)
		protected.PUT("/:id", courseHandler.Update)
		protected.DELETE("/:id", courseHandler.Delete)
		protected.POST("/:id/restore", courseHandler.Restore)
		protected.GET("/:id/roster", courseHandler.Roster)
		protected.POST("/:id/lessons", lessonHandler.Create)
	}

	lessons := api.Group("/lessons")
	{
		lessons.GET("/:id", lessonHandler.Get)

		protected := lessons.Group("", middleware.JWT(authService), instructorOrAdmin)
		protected.PUT("/:id", lessonHandler.Update)
		protected.DELETE("/:id", lessonHandler.Delete)
		protected.POST("/:id/restore", lessonHandler.Restore)
	}

	enrollments := api.Group("/enrollments", middleware.JWT(authService))
	{
		enrollments.GET("", enrollmentHandler.List)
		enrollments.GET("/:id", enrollmentHandler.Get)
		enrollments.POST("", enrollmentHandler.Enroll)
		enrollments.POST("/:id/cancel", enrollmentHandler.Cancel)
		enrollments.POST("/:id/lessons/:lessonId/complete", enrollmentHandler.CompleteLesson)
		enrollments.DELETE("/:id", admin, enrollmentHandler.Delete)
		enrollments.POST("/:id/restore", admin, enrollmentHandler.Restore)
	}

	api.GET("/dashboard/admin", middleware.JWT(authService), admin, dashboardHandler.Admin)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
