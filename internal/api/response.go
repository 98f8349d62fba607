package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"taocv/internal/errcode"
)

func Error(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"error": msg})
}

func Unauthorized(c *gin.Context)           { Error(c, http.StatusUnauthorized, "unauthorized") }
func BadRequest(c *gin.Context, msg string) { Error(c, http.StatusBadRequest, msg) }
func Forbidden(c *gin.Context, msg string)  { Error(c, http.StatusForbidden, msg) }
func NotFound(c *gin.Context, msg string)   { Error(c, http.StatusNotFound, msg) }
func Internal(c *gin.Context, msg string)   { Error(c, http.StatusInternalServerError, msg) }

// RespondError 将领域错误映射为稳定错误码 + HTTP 状态。
// 内部原因只进日志，不进响应体。
func RespondError(c *gin.Context, err error) {
	code := errcode.CodeOf(err)
	message := errcode.MessageOf(err)

	var appErr *errcode.Error
	if !errors.As(err, &appErr) {
		Internal(c, message)
		return
	}

	status := http.StatusInternalServerError
	switch code {
	case errcode.InvalidRequest:
		status = http.StatusBadRequest
	case errcode.TemplateNotFound, errcode.CVNotFound, errcode.SectionNotFound, errcode.TemplateFileNotFound:
		status = http.StatusNotFound
	case errcode.TemplateSaveFailed, errcode.TemplateRenderFailed, errcode.SystemError:
		status = http.StatusInternalServerError
	}

	c.JSON(status, gin.H{"code": code, "error": message})
}
