package app

import (
	"lingua_progress/docs"
	"lingua_progress/internal/config"
	"lingua_progress/internal/middleware"
	"lingua_progress/internal/util"
	"lingua_progress/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
	}

	// 2. 学习进度（本人或管理员）
	a.registerProgressRoutes(router, c, cfg)

	// 3. 管理员相关接口
	a.registerAdminRoutes(router, c, cfg)
}

func (a *App) registerProgressRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	progress := router.Group("/api/progress")
	progress.Use(middleware.AuthMiddleware(cfg.JWT.Secret))
	{
		// 学习事件
		progress.POST("/exercise", c.progress.SubmitExercise)
		progress.POST("/lesson-complete", c.progress.CompleteLesson)
		progress.POST("/daily-checkin", c.progress.DailyCheckIn)
		progress.POST("/use-freeze", c.progress.UseFreeze)

		// 只读查询
		progress.GET("/streak", c.progress.GetStreak)
		progress.GET("/proficiency", c.progress.GetProficiency)
		progress.GET("/reviews/due", c.progress.GetDueReviews)

		progress.POST("/cards/archive", c.progress.ArchiveCard)
	}
}

func (a *App) registerAdminRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	admin := router.Group("/api/admin")
	admin.Use(middleware.AuthMiddleware(cfg.JWT.Secret), middleware.RoleMiddleware(util.RoleAdmin))
	{
		admin.PUT("/progress/:userId/tier", c.progress.OverrideTier)
	}
}
