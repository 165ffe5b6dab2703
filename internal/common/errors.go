package common

import (
	"errors"
	"fmt"
)

// AppError 应用级错误结构
type AppError struct {
	Code    string
	Message string
	// Status 是上游返回的 HTTP 状态码，只有 UPSTREAM_ERROR 会设置
	Status int
	Err    error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WrapError 包装错误
func WrapError(code, message string, err error) error {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewError 创建新错误
func NewError(code, message string) error {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// UpstreamError 记录上游的状态码和原始响应体
func UpstreamError(status int, body string, err error) error {
	msg := fmt.Sprintf("upstream returned status %d", status)
	if body != "" {
		msg = fmt.Sprintf("%s: %s", msg, body)
	}
	return &AppError{
		Code:    ErrCodeUpstream,
		Message: msg,
		Status:  status,
		Err:     err,
	}
}

// CodeOf 返回错误链上第一个 AppError 的错误码，没有则返回 INTERNAL_ERROR
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

// IsCode 判断错误链上是否有指定错误码
func IsCode(err error, code string) bool {
	return err != nil && CodeOf(err) == code
}

// PublicMessage 返回可以直接展示给调用方的错误信息（不带错误码前缀）
func PublicMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}

// 错误码常量
const (
	ErrCodeUnsupportedHost = "UNSUPPORTED_HOST"
	ErrCodeInvalidInput    = "INVALID_INPUT"
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeUpstream        = "UPSTREAM_ERROR"
	ErrCodeInspection      = "INSPECTION_ERROR"
	ErrCodeNotification    = "NOTIFICATION_ERROR"
	ErrCodeConfig          = "CONFIG_ERROR"
	ErrCodeInternal        = "INTERNAL_ERROR"
)
