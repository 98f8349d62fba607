// Package errcode 定义对外暴露的稳定错误码。
//
// 错误码约定：
// - 0：无错误
// - 10xx：业务错误（资源缺失、校验失败等，调用方可处理）
// - 5xxx：系统错误（需要中断流程）
package errcode

import (
	"errors"
	"fmt"
)

const (
	OK = 0

	InvalidRequest       = 1001
	TemplateNotFound     = 1009
	CVNotFound           = 1010
	SectionNotFound      = 1011
	TemplateSaveFailed   = 1012
	TemplateRenderFailed = 1013
	TemplateFileNotFound = 1014

	SystemError = 5000
)

// Error 携带稳定错误码与对外消息；Cause 仅用于日志，不会返回给调用方。
type Error struct {
	Code    int
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New 构造一个不带底层原因的业务错误。
func New(code int, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap 构造一个携带底层原因的业务错误。
func Wrap(code int, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// CodeOf 提取错误链中的稳定错误码；非 errcode.Error 一律视为系统错误。
func CodeOf(err error) int {
	if err == nil {
		return OK
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return SystemError
}

// MessageOf 提取可对外展示的消息，避免泄露内部异常细节。
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "internal error"
}
