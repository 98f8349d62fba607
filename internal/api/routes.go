package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"taocv/internal/api/middleware"
	"taocv/internal/render"
	"taocv/internal/template"
)

// RegisterRoutes 注册 API 路由，不包含 /api 前缀。
func RegisterRoutes(
	router *gin.Engine,
	db *gorm.DB,
	templateService *template.Service,
	engine *render.Engine,
	cache render.Cache,
	asynqClient *asynq.Client,
	redisClient *redis.Client,
	internalSecret string,
	logger *slog.Logger,
) {
	adminTemplateHandler := NewAdminTemplateHandler(templateService, cache, asynqClient)
	templateHandler := NewTemplateHandler(db, engine)
	cvHandler := NewCVHandler(db, engine, cache, redisClient)
	wsHandler := NewWsHandler(redisClient, internalSecret, logger, nil)
	internalSecretMiddleware := middleware.InternalSecretMiddleware(internalSecret)

	v1 := router.Group("/v1")
	{
		v1.GET("/ws", wsHandler.HandleConnection)

		templateGroup := v1.Group("/templates")
		{
			templateGroup.GET("", templateHandler.ListTemplates)
			templateGroup.GET("/:id", templateHandler.GetTemplate)
			templateGroup.GET("/:id/preview", templateHandler.PreviewTemplate)
		}

		cvGroup := v1.Group("/cvs")
		{
			cvGroup.POST("", cvHandler.CreateCV)
			cvGroup.GET("/:id", cvHandler.GetCV)
			cvGroup.PUT("/:id", cvHandler.UpdateCV)
			cvGroup.DELETE("/:id", cvHandler.DeleteCV)
			cvGroup.GET("/:id/render", cvHandler.RenderCV)
			cvGroup.POST("/:id/cache/clear", cvHandler.ClearCVCache)

			cvGroup.POST("/:id/sections", cvHandler.CreateSection)
			cvGroup.PUT("/:id/sections/:sectionID", cvHandler.UpdateSection)
			cvGroup.DELETE("/:id/sections/:sectionID", cvHandler.DeleteSection)
		}

		v1.GET("/share/:token", cvHandler.RenderShared)

		adminGroup := v1.Group("/admin")
		adminGroup.Use(internalSecretMiddleware)
		{
			adminGroup.POST("/templates", adminTemplateHandler.CreateTemplate)
			adminGroup.PUT("/templates/:id/html", adminTemplateHandler.UpdateTemplateHTML)
			adminGroup.DELETE("/templates/:id", adminTemplateHandler.DeleteTemplate)
			adminGroup.POST("/templates/:id/toggle-active", adminTemplateHandler.ToggleActive)
			adminGroup.POST("/templates/test-compile", adminTemplateHandler.TestCompile)
			adminGroup.POST("/cache/clear", adminTemplateHandler.ClearRenderCache)
		}
	}
}
