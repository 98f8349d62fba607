package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"taocv/internal/config"
	"taocv/internal/database"
	"taocv/internal/render"
	"taocv/internal/storage"
	"taocv/internal/tasks"
)

// PreviewTaskHandler 负责模板预览生成任务：
// 用示例数据渲染模板，将 HTML 上传至对象存储，并回写预签名链接。
type PreviewTaskHandler struct {
	db            *gorm.DB
	storage       *storage.Client
	engine        *render.Engine
	redisClient   *redis.Client
	logger        *slog.Logger
	previewPrefix string
}

func NewPreviewTaskHandler(
	db *gorm.DB,
	storageClient *storage.Client,
	engine *render.Engine,
	redisClient *redis.Client,
	logger *slog.Logger,
	cfg config.TemplateConfig,
) *PreviewTaskHandler {
	prefix := strings.TrimSuffix(cfg.PreviewPrefix, "/")
	if prefix == "" {
		prefix = "previews"
	}
	return &PreviewTaskHandler{
		db:            db,
		storage:       storageClient,
		engine:        engine,
		redisClient:   redisClient,
		logger:        logger,
		previewPrefix: prefix,
	}
}

func (h *PreviewTaskHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	log := h.logger

	var payload tasks.TemplatePreviewPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		log.Error("unmarshal template preview payload failed", slog.Any("error", err))
		return err
	}

	log = log.With(
		slog.Int("template_id", int(payload.TemplateID)),
		slog.String("correlation_id", payload.CorrelationID),
	)
	log.Info("Starting template preview generation task...")

	var template database.Template
	if err := h.db.WithContext(ctx).First(&template, payload.TemplateID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warn("template not found, skipping task")
			return nil
		}
		log.Error("query template failed", slog.Any("error", err))
		return err
	}

	html, err := h.engine.RenderPreview(ctx, &template)
	if err != nil {
		log.Error("render template preview failed", slog.Any("error", err))
		h.notify(ctx, payload, "failed", "", err.Error())
		return err
	}

	objectName := fmt.Sprintf("%s/template/%d/preview.html", h.previewPrefix, template.ID)
	reader := strings.NewReader(html)
	if _, err := h.storage.UploadFile(ctx, objectName, reader, int64(len(html)), "text/html; charset=utf-8"); err != nil {
		log.Error("upload template preview failed", slog.Any("error", err))
		h.notify(ctx, payload, "failed", "", err.Error())
		return err
	}

	const presignTTL = 7 * 24 * time.Hour
	url, err := h.storage.GeneratePresignedURL(ctx, objectName, presignTTL)
	if err != nil {
		log.Error("generate template preview url failed", slog.Any("error", err))
		return err
	}

	if err := h.db.WithContext(ctx).
		Model(&template).
		Update("thumbnail_url", url).Error; err != nil {
		log.Error("update template thumbnail url failed", slog.Any("error", err))
		return err
	}

	h.notify(ctx, payload, "completed", url, "")
	log.Info("Template preview generation completed.")
	return nil
}

// notify 通过 Redis Pub/Sub 向后台管理端推送任务结果，失败仅记录日志。
func (h *PreviewTaskHandler) notify(ctx context.Context, payload tasks.TemplatePreviewPayload, status, previewURL, errMsg string) {
	if h.redisClient == nil {
		return
	}
	msg := TemplatePreviewNotifyMessage{
		Status:        status,
		TemplateID:    payload.TemplateID,
		CorrelationID: payload.CorrelationID,
		PreviewURL:    previewURL,
		ErrorMessage:  errMsg,
	}
	body, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal notify message failed", slog.Any("error", err))
		return
	}
	if err := h.redisClient.Publish(ctx, AdminNotifyChannel, body).Err(); err != nil {
		h.logger.Warn("publish notify message failed", slog.Any("error", err))
	}
}
