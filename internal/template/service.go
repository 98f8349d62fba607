package template

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"taocv/internal/database"
	"taocv/internal/errcode"
)

// ArtifactStore 是编译产物的存储端口，由 storage.ArtifactStore 实现。
type ArtifactStore interface {
	Save(ctx context.Context, fileName string, content string) error
	Delete(ctx context.Context, fileName string) error
}

// CacheInvalidator 在模板变更后清除受影响 CV 的渲染缓存。
type CacheInvalidator interface {
	InvalidateCV(ctx context.Context, cvID uint) error
}

// UploadRequest 描述一次模板上传/更新的元数据与原始 HTML。
type UploadRequest struct {
	Name               string
	Category           string
	Style              string
	ThumbnailURL       string
	TemplateConfig     datatypes.JSON
	SectionsDefinition datatypes.JSON
	BaseHTML           string
	IsPremium          bool
	CreatedBy          string
}

// Service 负责模板的编译与存储编排：
// 清洗 HTML → 占位符编译 → 产物写入对象存储 → 元数据落库。
type Service struct {
	db        *gorm.DB
	artifacts ArtifactStore
	cache     CacheInvalidator
	logger    *slog.Logger
}

// NewService 构造模板服务。cache 可为 nil（如 admin CLI 场景）。
func NewService(db *gorm.DB, artifacts ArtifactStore, cache CacheInvalidator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{db: db, artifacts: artifacts, cache: cache, logger: logger}
}

// CreateFromHTML 从管理员上传的 HTML 创建一个新模板。
// 产物写失败是致命错误，模板行不会被创建。
func (s *Service) CreateFromHTML(ctx context.Context, req UploadRequest) (*database.Template, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, errcode.New(errcode.InvalidRequest, "template name is required")
	}
	if err := ValidateTemplateConfig(req.TemplateConfig); err != nil {
		return nil, errcode.Wrap(errcode.InvalidRequest, "invalid template config", err)
	}
	if err := ValidateSectionsDefinition(req.SectionsDefinition); err != nil {
		return nil, errcode.Wrap(errcode.InvalidRequest, "invalid sections definition", err)
	}

	cleaned, compiled, err := s.compile(req.BaseHTML)
	if err != nil {
		return nil, err
	}

	fileName := generateFileName(req.Name)
	if err := s.artifacts.Save(ctx, fileName, compiled); err != nil {
		return nil, errcode.Wrap(errcode.TemplateSaveFailed, "failed to save template file", err)
	}

	model := database.Template{
		Name:               req.Name,
		Category:           req.Category,
		Style:              req.Style,
		ThumbnailURL:       req.ThumbnailURL,
		TemplateConfig:     req.TemplateConfig,
		SectionsDefinition: req.SectionsDefinition,
		BaseHTML:           cleaned,
		CompiledFilePath:   fileName,
		Version:            1,
		IsActive:           true,
		IsPremium:          req.IsPremium,
		CreatedBy:          req.CreatedBy,
	}
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		return nil, fmt.Errorf("create template row: %w", err)
	}

	s.logger.Info("template created",
		slog.Uint64("template_id", uint64(model.ID)),
		slog.String("file", fileName),
	)
	return &model, nil
}

// UpdateHTML 重新编译模板 HTML：旧产物尽力删除（失败仅告警），
// 新产物写入后版本号 +1，并清除该模板下所有 CV 的渲染缓存。
func (s *Service) UpdateHTML(ctx context.Context, id uint, req UploadRequest) (*database.Template, error) {
	model, err := s.findTemplate(ctx, id)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Name) == "" {
		return nil, errcode.New(errcode.InvalidRequest, "template name is required")
	}
	if err := ValidateTemplateConfig(req.TemplateConfig); err != nil {
		return nil, errcode.Wrap(errcode.InvalidRequest, "invalid template config", err)
	}
	if err := ValidateSectionsDefinition(req.SectionsDefinition); err != nil {
		return nil, errcode.Wrap(errcode.InvalidRequest, "invalid sections definition", err)
	}

	cleaned, compiled, err := s.compile(req.BaseHTML)
	if err != nil {
		return nil, err
	}

	if model.CompiledFilePath != "" {
		if err := s.artifacts.Delete(ctx, model.CompiledFilePath); err != nil {
			s.logger.Warn("delete old template artifact failed",
				slog.Uint64("template_id", uint64(model.ID)),
				slog.String("file", model.CompiledFilePath),
				slog.Any("error", err),
			)
		}
	}

	fileName := generateFileName(req.Name)
	if err := s.artifacts.Save(ctx, fileName, compiled); err != nil {
		return nil, errcode.Wrap(errcode.TemplateSaveFailed, "failed to save template file", err)
	}

	model.Name = req.Name
	model.Category = req.Category
	model.Style = req.Style
	model.ThumbnailURL = req.ThumbnailURL
	model.TemplateConfig = req.TemplateConfig
	model.SectionsDefinition = req.SectionsDefinition
	model.BaseHTML = cleaned
	model.CompiledFilePath = fileName
	model.Version++

	if err := s.db.WithContext(ctx).Save(model).Error; err != nil {
		return nil, fmt.Errorf("update template row: %w", err)
	}

	s.invalidateTemplateCVs(ctx, model.ID)

	s.logger.Info("template html updated",
		slog.Uint64("template_id", uint64(model.ID)),
		slog.Int("version", model.Version),
		slog.String("file", fileName),
	)
	return model, nil
}

// Delete 删除模板：先尽力删除产物，再删除数据行。
func (s *Service) Delete(ctx context.Context, id uint) error {
	model, err := s.findTemplate(ctx, id)
	if err != nil {
		return err
	}

	if model.CompiledFilePath != "" {
		if err := s.artifacts.Delete(ctx, model.CompiledFilePath); err != nil {
			s.logger.Warn("delete template artifact failed",
				slog.Uint64("template_id", uint64(model.ID)),
				slog.String("file", model.CompiledFilePath),
				slog.Any("error", err),
			)
		}
	}

	if err := s.db.WithContext(ctx).Delete(&database.Template{}, model.ID).Error; err != nil {
		return fmt.Errorf("delete template row: %w", err)
	}

	s.invalidateTemplateCVs(ctx, model.ID)
	s.logger.Info("template deleted", slog.Uint64("template_id", uint64(model.ID)))
	return nil
}

// ToggleActive 切换模板的可用状态。
func (s *Service) ToggleActive(ctx context.Context, id uint) (*database.Template, error) {
	model, err := s.findTemplate(ctx, id)
	if err != nil {
		return nil, err
	}

	model.IsActive = !model.IsActive
	if err := s.db.WithContext(ctx).Save(model).Error; err != nil {
		return nil, fmt.Errorf("toggle template active: %w", err)
	}
	return model, nil
}

// TestCompile 只做 清洗+编译，不落任何存储，供管理端试转换。
func (s *Service) TestCompile(rawHTML string) (string, error) {
	_, compiled, err := s.compile(rawHTML)
	return compiled, err
}

func (s *Service) compile(rawHTML string) (cleaned string, compiled string, err error) {
	cleaned, err = Clean(rawHTML)
	if err != nil {
		return "", "", errcode.Wrap(errcode.InvalidRequest, "invalid template html", err)
	}
	compiled, err = Compile(cleaned)
	if err != nil {
		return "", "", errcode.Wrap(errcode.InvalidRequest, "invalid template html", err)
	}
	return cleaned, compiled, nil
}

func (s *Service) findTemplate(ctx context.Context, id uint) (*database.Template, error) {
	var model database.Template
	if err := s.db.WithContext(ctx).First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errcode.New(errcode.TemplateNotFound, "template not found")
		}
		return nil, fmt.Errorf("query template: %w", err)
	}
	return &model, nil
}

// invalidateTemplateCVs 清除引用该模板的所有 CV 的渲染缓存。
// 缓存键不含模板 ID，只能通过数据库反查受影响的 CV。
func (s *Service) invalidateTemplateCVs(ctx context.Context, templateID uint) {
	if s.cache == nil {
		return
	}

	var cvIDs []uint
	if err := s.db.WithContext(ctx).
		Model(&database.CV{}).
		Where("template_id = ?", templateID).
		Pluck("id", &cvIDs).Error; err != nil {
		s.logger.Warn("query cvs for cache invalidation failed",
			slog.Uint64("template_id", uint64(templateID)),
			slog.Any("error", err),
		)
		return
	}

	for _, cvID := range cvIDs {
		if err := s.cache.InvalidateCV(ctx, cvID); err != nil {
			s.logger.Warn("invalidate cv render cache failed",
				slog.Uint64("cv_id", uint64(cvID)),
				slog.Any("error", err),
			)
		}
	}
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// generateFileName 生成编译产物文件名：
// template_{slug}_{yyyyMMdd_HHmmss}_{6位随机hex}.html。
// 随机后缀用于避免同名模板在同一秒内的文件名冲突。
func generateFileName(templateName string) string {
	slug := slugPattern.ReplaceAllString(strings.ToLower(templateName), "_")
	slug = strings.Trim(slug, "_")
	timestamp := time.Now().Format("20060102_150405")
	return fmt.Sprintf("template_%s_%s_%s.html", slug, timestamp, randomToken())
}

func randomToken() string {
	buf := make([]byte, 3)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand 不可用时退化为固定后缀，仍有时间戳保证大致唯一
		return "000000"
	}
	return hex.EncodeToString(buf)
}
