package render

import (
	"bytes"
	"context"
	"fmt"
	htmltemplate "html/template"
	"log/slog"
	"path"
	"strings"
	"time"

	"taocv/internal/database"
	"taocv/internal/errcode"
	"taocv/internal/metrics"
)

// ArtifactReader 读取编译后的模板产物，由 storage.ArtifactStore 实现。
type ArtifactReader interface {
	Read(ctx context.Context, fileName string) (string, error)
}

// Engine 执行渲染管线：校验 → 缓存查询 → 配置合并 → 模型构建 →
// 模板执行 → 缓存写入。每次请求同步执行，无内部调度。
type Engine struct {
	artifacts ArtifactReader
	cache     Cache
	cacheTTL  time.Duration
	logger    *slog.Logger
}

// NewEngine 构造渲染引擎。cache 可为 nil（不缓存，始终重渲染）。
func NewEngine(artifacts ArtifactReader, cache Cache, cacheTTL time.Duration, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cacheTTL <= 0 {
		cacheTTL = 15 * time.Minute
	}
	return &Engine{
		artifacts: artifacts,
		cache:     cache,
		cacheTTL:  cacheTTL,
		logger:    logger,
	}
}

// Render 用 CV 自身的数据渲染其绑定的模板，返回最终 HTML。
// cv.Template 与 cv.Sections 需由调用方预加载。
func (e *Engine) Render(ctx context.Context, cv *database.CV) (string, error) {
	if cv.Template == nil {
		return "", errcode.New(errcode.TemplateNotFound, "cv has no template assigned")
	}
	if cv.Template.CompiledFilePath == "" {
		return "", errcode.New(errcode.TemplateFileNotFound, "template has no compiled file")
	}

	key := CacheKey(cv.ID, Fingerprint(cv))
	if e.cache != nil {
		cached, hit, err := e.cache.Get(ctx, key)
		if err != nil {
			e.logger.Warn("render cache get failed", slog.Any("error", err))
		} else if hit {
			metrics.RenderCacheHit()
			e.logger.Debug("render cache hit", slog.Uint64("cv_id", uint64(cv.ID)))
			return cached, nil
		}
		metrics.RenderCacheMiss()
	}

	mergedConfig, err := MergeJSON(cv.Template.TemplateConfig, cv.Customization)
	if err != nil {
		return "", errcode.Wrap(errcode.InvalidRequest, "invalid cv configuration", err)
	}

	model := BuildModel(cv, mergedConfig)
	root := ExecRoot(cv, model)

	start := time.Now()
	html, err := e.execute(ctx, cv.Template.CompiledFilePath, root)
	if err != nil {
		e.logger.Error("render cv failed",
			slog.Uint64("cv_id", uint64(cv.ID)),
			slog.Uint64("template_id", uint64(cv.Template.ID)),
			slog.Any("error", err),
		)
		return "", err
	}
	metrics.ObserveRender("cv", time.Since(start))

	if e.cache != nil {
		if err := e.cache.Put(ctx, key, html, e.cacheTTL); err != nil {
			e.logger.Warn("render cache put failed", slog.Any("error", err))
		}
	}
	return html, nil
}

// RenderPreview 用固定示例数据渲染模板，供画廊/管理端预览。
// 不经过渲染缓存。
func (e *Engine) RenderPreview(ctx context.Context, tpl *database.Template) (string, error) {
	if tpl.CompiledFilePath == "" {
		return "", errcode.New(errcode.TemplateFileNotFound, "template has no compiled file")
	}

	config, err := MergeJSON(tpl.TemplateConfig, nil)
	if err != nil {
		return "", errcode.Wrap(errcode.InvalidRequest, "invalid template config", err)
	}

	start := time.Now()
	html, err := e.execute(ctx, tpl.CompiledFilePath, SampleExecRoot(config))
	if err != nil {
		e.logger.Error("render template preview failed",
			slog.Uint64("template_id", uint64(tpl.ID)),
			slog.Any("error", err),
		)
		return "", err
	}
	metrics.ObserveRender("preview", time.Since(start))
	return html, nil
}

// RenderEmpty 用空数据渲染模板结构。
func (e *Engine) RenderEmpty(ctx context.Context, tpl *database.Template) (string, error) {
	if tpl.CompiledFilePath == "" {
		return "", errcode.New(errcode.TemplateFileNotFound, "template has no compiled file")
	}

	config, err := MergeJSON(tpl.TemplateConfig, nil)
	if err != nil {
		return "", errcode.Wrap(errcode.InvalidRequest, "invalid template config", err)
	}

	start := time.Now()
	html, err := e.execute(ctx, tpl.CompiledFilePath, EmptyExecRoot(config))
	if err != nil {
		return "", err
	}
	metrics.ObserveRender("empty", time.Since(start))
	return html, nil
}

// execute 读取产物、解析并执行模板。
// 引擎内部的任何失败（变量缺失、指令损坏、产物读取）都收敛为
// 稳定错误码，不向调用方泄露原始异常。
func (e *Engine) execute(ctx context.Context, compiledFilePath string, root map[string]any) (string, error) {
	name := templateName(compiledFilePath)

	content, err := e.artifacts.Read(ctx, compiledFilePath)
	if err != nil {
		return "", errcode.Wrap(errcode.TemplateFileNotFound, "template file not found", err)
	}

	tpl, err := htmltemplate.New(name).Parse(content)
	if err != nil {
		return "", errcode.Wrap(errcode.TemplateRenderFailed, "failed to render template", fmt.Errorf("parse template %s: %w", name, err))
	}

	var buf bytes.Buffer
	if err := tpl.Execute(&buf, root); err != nil {
		return "", errcode.Wrap(errcode.TemplateRenderFailed, "failed to render template", fmt.Errorf("execute template %s: %w", name, err))
	}
	return buf.String(), nil
}

// templateName 从产物路径提取模板名（去目录前缀与 .html 后缀）。
func templateName(compiledFilePath string) string {
	base := path.Base(compiledFilePath)
	return strings.TrimSuffix(base, ".html")
}
