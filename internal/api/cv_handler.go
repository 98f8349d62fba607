package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"taocv/internal/api/middleware"
	"taocv/internal/database"
	"taocv/internal/render"
)

// 分享链接按 IP 限流：每分钟最多 30 次渲染。
const (
	shareRateLimit  = 30
	shareRateWindow = time.Minute
)

// CVHandler 负责 CV 与 section 的读写、渲染及缓存清理。
type CVHandler struct {
	db          *gorm.DB
	engine      *render.Engine
	cache       render.Cache
	redisClient *redis.Client
}

func NewCVHandler(db *gorm.DB, engine *render.Engine, cache render.Cache, redisClient *redis.Client) *CVHandler {
	return &CVHandler{db: db, engine: engine, cache: cache, redisClient: redisClient}
}

type createCVRequest struct {
	Name          string         `json:"name" binding:"required"`
	UserFirstName string         `json:"user_first_name"`
	UserLastName  string         `json:"user_last_name"`
	UserEmail     string         `json:"user_email"`
	UserAvatar    string         `json:"user_avatar"`
	TemplateID    *uint          `json:"template_id"`
	CVData        datatypes.JSON `json:"cv_data"`
	Customization datatypes.JSON `json:"customization"`
	SectionOrder  datatypes.JSON `json:"section_order"`
}

type updateCVRequest struct {
	Name          *string         `json:"name"`
	TemplateID    *uint           `json:"template_id"`
	CVData        *datatypes.JSON `json:"cv_data"`
	Customization *datatypes.JSON `json:"customization"`
	SectionOrder  *datatypes.JSON `json:"section_order"`
}

type cvResponse struct {
	ID            uint           `json:"id"`
	Name          string         `json:"name"`
	TemplateID    *uint          `json:"template_id,omitempty"`
	CVData        datatypes.JSON `json:"cv_data,omitempty"`
	Customization datatypes.JSON `json:"customization,omitempty"`
	ShareToken    string         `json:"share_token"`
	Sections      []sectionResponse `json:"sections,omitempty"`
}

type sectionResponse struct {
	ID          uint           `json:"id"`
	SectionType string         `json:"section_type"`
	SectionData datatypes.JSON `json:"section_data,omitempty"`
	OrderIndex  *int           `json:"order_index,omitempty"`
	IsVisible   *bool          `json:"is_visible,omitempty"`
}

func toCVResponse(cv *database.CV) cvResponse {
	resp := cvResponse{
		ID:            cv.ID,
		Name:          cv.Name,
		TemplateID:    cv.TemplateID,
		CVData:        cv.CVData,
		Customization: cv.Customization,
		ShareToken:    cv.ShareToken,
	}
	for _, section := range cv.Sections {
		resp.Sections = append(resp.Sections, sectionResponse{
			ID:          section.ID,
			SectionType: section.SectionType,
			SectionData: section.SectionData,
			OrderIndex:  section.OrderIndex,
			IsVisible:   section.IsVisible,
		})
	}
	return resp
}

// POST /v1/cvs
func (h *CVHandler) CreateCV(c *gin.Context) {
	var req createCVRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	if req.TemplateID != nil && !h.templateExists(c, *req.TemplateID) {
		return
	}

	model := database.CV{
		Name:          req.Name,
		UserFirstName: req.UserFirstName,
		UserLastName:  req.UserLastName,
		UserEmail:     req.UserEmail,
		UserAvatar:    req.UserAvatar,
		TemplateID:    req.TemplateID,
		CVData:        req.CVData,
		Customization: req.Customization,
		SectionOrder:  req.SectionOrder,
		ShareToken:    uuid.NewString(),
	}
	if err := h.db.WithContext(c.Request.Context()).Create(&model).Error; err != nil {
		Internal(c, "failed to create cv")
		return
	}
	c.JSON(http.StatusCreated, toCVResponse(&model))
}

// GET /v1/cvs/:id
func (h *CVHandler) GetCV(c *gin.Context) {
	cv, ok := h.findCV(c, true)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, toCVResponse(cv))
}

// PUT /v1/cvs/:id
// 任何字段更新都会使该 CV 的渲染缓存失效。
func (h *CVHandler) UpdateCV(c *gin.Context) {
	cv, ok := h.findCV(c, false)
	if !ok {
		return
	}

	var req updateCVRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	if req.TemplateID != nil && !h.templateExists(c, *req.TemplateID) {
		return
	}

	updates := map[string]any{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.TemplateID != nil {
		updates["template_id"] = *req.TemplateID
	}
	if req.CVData != nil {
		updates["cv_data"] = *req.CVData
	}
	if req.Customization != nil {
		updates["customization"] = *req.Customization
	}
	if req.SectionOrder != nil {
		updates["section_order"] = *req.SectionOrder
	}
	if len(updates) == 0 {
		BadRequest(c, "no fields to update")
		return
	}

	if err := h.db.WithContext(c.Request.Context()).Model(cv).Updates(updates).Error; err != nil {
		Internal(c, "failed to update cv")
		return
	}

	h.invalidateCV(c, cv.ID)
	c.JSON(http.StatusOK, gin.H{"id": cv.ID})
}

// DELETE /v1/cvs/:id
func (h *CVHandler) DeleteCV(c *gin.Context) {
	cv, ok := h.findCV(c, false)
	if !ok {
		return
	}

	if err := h.db.WithContext(c.Request.Context()).Select("Sections").Delete(cv).Error; err != nil {
		Internal(c, "failed to delete cv")
		return
	}

	h.invalidateCV(c, cv.ID)
	c.Status(http.StatusNoContent)
}

// GET /v1/cvs/:id/render
// 渲染 CV，返回最终 HTML。
func (h *CVHandler) RenderCV(c *gin.Context) {
	cv, ok := h.findCVForRender(c)
	if !ok {
		return
	}

	html, err := h.engine.Render(c.Request.Context(), cv)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}

// POST /v1/cvs/:id/cache/clear
func (h *CVHandler) ClearCVCache(c *gin.Context) {
	cv, ok := h.findCV(c, false)
	if !ok {
		return
	}

	h.invalidateCV(c, cv.ID)
	c.JSON(http.StatusOK, gin.H{"cleared": true})
}

type sectionRequest struct {
	SectionType string         `json:"section_type" binding:"required"`
	SectionData datatypes.JSON `json:"section_data"`
	OrderIndex  *int           `json:"order_index"`
	IsVisible   *bool          `json:"is_visible"`
}

// POST /v1/cvs/:id/sections
func (h *CVHandler) CreateSection(c *gin.Context) {
	cv, ok := h.findCV(c, false)
	if !ok {
		return
	}

	var req sectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	section := database.CVSection{
		CVID:        cv.ID,
		SectionType: req.SectionType,
		SectionData: req.SectionData,
		OrderIndex:  req.OrderIndex,
		IsVisible:   req.IsVisible,
	}
	if err := h.db.WithContext(c.Request.Context()).Create(&section).Error; err != nil {
		Internal(c, "failed to create section")
		return
	}

	h.invalidateCV(c, cv.ID)
	c.JSON(http.StatusCreated, sectionResponse{
		ID:          section.ID,
		SectionType: section.SectionType,
		SectionData: section.SectionData,
		OrderIndex:  section.OrderIndex,
		IsVisible:   section.IsVisible,
	})
}

// PUT /v1/cvs/:id/sections/:sectionID
func (h *CVHandler) UpdateSection(c *gin.Context) {
	cv, ok := h.findCV(c, false)
	if !ok {
		return
	}
	section, ok := h.findSection(c, cv.ID)
	if !ok {
		return
	}

	var req sectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	updates := map[string]any{
		"section_type": req.SectionType,
		"section_data": req.SectionData,
	}
	if req.OrderIndex != nil {
		updates["order_index"] = *req.OrderIndex
	}
	if req.IsVisible != nil {
		updates["is_visible"] = *req.IsVisible
	}

	if err := h.db.WithContext(c.Request.Context()).Model(section).Updates(updates).Error; err != nil {
		Internal(c, "failed to update section")
		return
	}

	h.invalidateCV(c, cv.ID)
	c.JSON(http.StatusOK, gin.H{"id": section.ID})
}

// DELETE /v1/cvs/:id/sections/:sectionID
func (h *CVHandler) DeleteSection(c *gin.Context) {
	cv, ok := h.findCV(c, false)
	if !ok {
		return
	}
	section, ok := h.findSection(c, cv.ID)
	if !ok {
		return
	}

	if err := h.db.WithContext(c.Request.Context()).Delete(section).Error; err != nil {
		Internal(c, "failed to delete section")
		return
	}

	h.invalidateCV(c, cv.ID)
	c.Status(http.StatusNoContent)
}

// GET /v1/share/:token
// 公开分享渲染：按 IP 限流，成功后更新 lastAccessedAt。
func (h *CVHandler) RenderShared(c *gin.Context) {
	token := c.Param("token")
	if _, err := uuid.Parse(token); err != nil {
		BadRequest(c, "invalid share token")
		return
	}

	if h.redisClient != nil {
		key := fmt.Sprintf("share_rate:%s", c.ClientIP())
		count, err := incrWithTTL(c.Request.Context(), h.redisClient, key, shareRateWindow)
		if err != nil {
			middleware.LoggerFromContext(c).Warn("share rate counter failed", slog.Any("error", err))
		} else if count > shareRateLimit {
			Error(c, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
	}

	var cv database.CV
	err := h.db.WithContext(c.Request.Context()).
		Preload("Template").
		Preload("Sections").
		Where("share_token = ?", token).
		First(&cv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "cv not found")
		} else {
			Internal(c, "failed to query cv")
		}
		return
	}

	html, err := h.engine.Render(c.Request.Context(), &cv)
	if err != nil {
		RespondError(c, err)
		return
	}

	now := time.Now()
	if err := h.db.WithContext(c.Request.Context()).
		Model(&cv).
		Update("last_accessed_at", now).Error; err != nil {
		middleware.LoggerFromContext(c).Warn("update last accessed failed", slog.Any("error", err))
	}

	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}

// ================= helpers =================

func (h *CVHandler) findCV(c *gin.Context, withSections bool) (*database.CV, bool) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return nil, false
	}

	query := h.db.WithContext(c.Request.Context())
	if withSections {
		query = query.Preload("Sections")
	}

	var cv database.CV
	if err := query.First(&cv, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "cv not found")
		} else {
			Internal(c, "failed to query cv")
		}
		return nil, false
	}
	return &cv, true
}

func (h *CVHandler) findCVForRender(c *gin.Context) (*database.CV, bool) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return nil, false
	}

	var cv database.CV
	err := h.db.WithContext(c.Request.Context()).
		Preload("Template").
		Preload("Sections").
		First(&cv, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "cv not found")
		} else {
			Internal(c, "failed to query cv")
		}
		return nil, false
	}
	return &cv, true
}

func (h *CVHandler) findSection(c *gin.Context, cvID uint) (*database.CVSection, bool) {
	sectionID, ok := parseIDParam(c, "sectionID")
	if !ok {
		return nil, false
	}

	var section database.CVSection
	err := h.db.WithContext(c.Request.Context()).
		Where("cv_id = ?", cvID).
		First(&section, sectionID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "section not found")
		} else {
			Internal(c, "failed to query section")
		}
		return nil, false
	}
	return &section, true
}

func (h *CVHandler) templateExists(c *gin.Context, templateID uint) bool {
	var count int64
	if err := h.db.WithContext(c.Request.Context()).
		Model(&database.Template{}).
		Where("id = ?", templateID).
		Count(&count).Error; err != nil {
		Internal(c, "failed to query template")
		return false
	}
	if count == 0 {
		NotFound(c, "template not found")
		return false
	}
	return true
}

func (h *CVHandler) invalidateCV(c *gin.Context, cvID uint) {
	if h.cache == nil {
		return
	}
	if err := h.cache.InvalidateCV(c.Request.Context(), cvID); err != nil {
		middleware.LoggerFromContext(c).Warn("invalidate render cache failed",
			slog.Uint64("cv_id", uint64(cvID)),
			slog.Any("error", err),
		)
	}
}
