package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"taocv/internal/database"
	"taocv/internal/render"
)

// TemplateHandler 负责面向用户的模板浏览与预览 API。
type TemplateHandler struct {
	db     *gorm.DB
	engine *render.Engine
}

func NewTemplateHandler(db *gorm.DB, engine *render.Engine) *TemplateHandler {
	return &TemplateHandler{db: db, engine: engine}
}

type templateListItem struct {
	ID           uint   `json:"id"`
	Name         string `json:"name"`
	Category     string `json:"category,omitempty"`
	Style        string `json:"style,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	IsPremium    bool   `json:"is_premium"`
}

// GET /v1/templates
// 列出可用模板，支持 category/style 过滤，只返回激活的模板。
func (h *TemplateHandler) ListTemplates(c *gin.Context) {
	query := h.db.WithContext(c.Request.Context()).
		Model(&database.Template{}).
		Where("is_active = ?", true)

	if category := c.Query("category"); category != "" {
		query = query.Where("category = ?", category)
	}
	if style := c.Query("style"); style != "" {
		query = query.Where("style = ?", style)
	}

	var templates []database.Template
	if err := query.Order("updated_at DESC").Find(&templates).Error; err != nil {
		Internal(c, "failed to list templates")
		return
	}

	items := make([]templateListItem, 0, len(templates))
	for _, t := range templates {
		items = append(items, templateListItem{
			ID:           t.ID,
			Name:         t.Name,
			Category:     t.Category,
			Style:        t.Style,
			ThumbnailURL: t.ThumbnailURL,
			IsPremium:    t.IsPremium,
		})
	}
	c.JSON(http.StatusOK, items)
}

// GET /v1/templates/:id
func (h *TemplateHandler) GetTemplate(c *gin.Context) {
	model, ok := h.findActiveTemplate(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, toTemplateResponse(model))
}

// GET /v1/templates/:id/preview
// 用示例数据渲染模板，直接返回 HTML。
func (h *TemplateHandler) PreviewTemplate(c *gin.Context) {
	model, ok := h.findActiveTemplate(c)
	if !ok {
		return
	}

	html, err := h.engine.RenderPreview(c.Request.Context(), model)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}

func (h *TemplateHandler) findActiveTemplate(c *gin.Context) (*database.Template, bool) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return nil, false
	}

	var model database.Template
	err := h.db.WithContext(c.Request.Context()).
		Where("is_active = ?", true).
		First(&model, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "template not found")
		} else {
			Internal(c, "failed to query template")
		}
		return nil, false
	}
	return &model, true
}
