package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"gorm.io/datatypes"

	"taocv/internal/api/middleware"
	"taocv/internal/database"
	"taocv/internal/render"
	"taocv/internal/tasks"
	"taocv/internal/template"
)

// AdminTemplateHandler 负责管理端模板 API（内部密钥保护）。
type AdminTemplateHandler struct {
	service     *template.Service
	cache       render.Cache
	asynqClient *asynq.Client
}

// NewAdminTemplateHandler 构造管理端模板处理器。asynqClient 可为 nil（不生成预览）。
func NewAdminTemplateHandler(service *template.Service, cache render.Cache, asynqClient *asynq.Client) *AdminTemplateHandler {
	return &AdminTemplateHandler{
		service:     service,
		cache:       cache,
		asynqClient: asynqClient,
	}
}

type templateUploadRequest struct {
	Name               string         `json:"name" binding:"required"`
	Category           string         `json:"category"`
	Style              string         `json:"style"`
	ThumbnailURL       string         `json:"thumbnail_url"`
	TemplateConfig     datatypes.JSON `json:"template_config"`
	SectionsDefinition datatypes.JSON `json:"sections_definition"`
	BaseHTML           string         `json:"base_html" binding:"required"`
	IsPremium          bool           `json:"is_premium"`
	CreatedBy          string         `json:"created_by"`
}

func (r templateUploadRequest) toUpload() template.UploadRequest {
	return template.UploadRequest{
		Name:               r.Name,
		Category:           r.Category,
		Style:              r.Style,
		ThumbnailURL:       r.ThumbnailURL,
		TemplateConfig:     r.TemplateConfig,
		SectionsDefinition: r.SectionsDefinition,
		BaseHTML:           r.BaseHTML,
		IsPremium:          r.IsPremium,
		CreatedBy:          r.CreatedBy,
	}
}

type templateResponse struct {
	ID                 uint           `json:"id"`
	Name               string         `json:"name"`
	Category           string         `json:"category,omitempty"`
	Style              string         `json:"style,omitempty"`
	ThumbnailURL       string         `json:"thumbnail_url,omitempty"`
	TemplateConfig     datatypes.JSON `json:"template_config,omitempty"`
	SectionsDefinition datatypes.JSON `json:"sections_definition,omitempty"`
	CompiledFilePath   string         `json:"compiled_file_path,omitempty"`
	Version            int            `json:"version"`
	IsActive           bool           `json:"is_active"`
	IsPremium          bool           `json:"is_premium"`
}

func toTemplateResponse(t *database.Template) templateResponse {
	return templateResponse{
		ID:                 t.ID,
		Name:               t.Name,
		Category:           t.Category,
		Style:              t.Style,
		ThumbnailURL:       t.ThumbnailURL,
		TemplateConfig:     t.TemplateConfig,
		SectionsDefinition: t.SectionsDefinition,
		CompiledFilePath:   t.CompiledFilePath,
		Version:            t.Version,
		IsActive:           t.IsActive,
		IsPremium:          t.IsPremium,
	}
}

// POST /v1/admin/templates
// 从管理员上传的 HTML 创建模板，并异步生成预览。
func (h *AdminTemplateHandler) CreateTemplate(c *gin.Context) {
	var req templateUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	model, err := h.service.CreateFromHTML(c.Request.Context(), req.toUpload())
	if err != nil {
		RespondError(c, err)
		return
	}

	h.enqueuePreview(c, model.ID)
	c.JSON(http.StatusCreated, toTemplateResponse(model))
}

// PUT /v1/admin/templates/:id/html
// 重新编译模板 HTML，版本号 +1。
func (h *AdminTemplateHandler) UpdateTemplateHTML(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req templateUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	model, err := h.service.UpdateHTML(c.Request.Context(), id, req.toUpload())
	if err != nil {
		RespondError(c, err)
		return
	}

	h.enqueuePreview(c, model.ID)
	c.JSON(http.StatusOK, toTemplateResponse(model))
}

// DELETE /v1/admin/templates/:id
func (h *AdminTemplateHandler) DeleteTemplate(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// POST /v1/admin/templates/:id/toggle-active
func (h *AdminTemplateHandler) ToggleActive(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	model, err := h.service.ToggleActive(c.Request.Context(), id)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": model.ID, "is_active": model.IsActive})
}

type testCompileRequest struct {
	HTML string `json:"html" binding:"required"`
}

// POST /v1/admin/templates/test-compile
// 试编译，不落任何存储。
func (h *AdminTemplateHandler) TestCompile(c *gin.Context) {
	var req testCompileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	compiled, err := h.service.TestCompile(req.HTML)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"compiled": compiled})
}

// POST /v1/admin/cache/clear
// 全量清空渲染缓存。
func (h *AdminTemplateHandler) ClearRenderCache(c *gin.Context) {
	if h.cache == nil {
		c.JSON(http.StatusOK, gin.H{"cleared": false})
		return
	}
	if err := h.cache.InvalidateAll(c.Request.Context()); err != nil {
		middleware.LoggerFromContext(c).Error("clear render cache failed", slog.Any("error", err))
		Internal(c, "failed to clear render cache")
		return
	}
	c.JSON(http.StatusOK, gin.H{"cleared": true})
}

func (h *AdminTemplateHandler) enqueuePreview(c *gin.Context, templateID uint) {
	if h.asynqClient == nil {
		return
	}
	task, err := tasks.NewTemplatePreviewTask(templateID, middleware.GetCorrelationID(c))
	if err != nil {
		middleware.LoggerFromContext(c).Warn("build preview task failed", slog.Any("error", err))
		return
	}
	if _, err := h.asynqClient.Enqueue(task); err != nil {
		middleware.LoggerFromContext(c).Warn("enqueue preview task failed",
			slog.Uint64("template_id", uint64(templateID)),
			slog.Any("error", err),
		)
	}
}

func parseIDParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		BadRequest(c, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}
