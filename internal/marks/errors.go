package marks

import "errors"

// 领域错误，由 API 层翻译为 HTTP 状态码。
// 归属他人的记录与不存在的记录返回同一个 ErrNotFound，避免泄露归属信息。
var (
	ErrNotFound         = errors.New("not found")
	ErrAlreadyCollected = errors.New("already bookmarked")
	ErrPermissionDenied = errors.New("permission denied")
	ErrTagExists        = errors.New("tag already exists")
)

// ValidationError 表示字段校验失败。
// Detail 为整体提示，Fields 为字段级错误（二者至少其一非空）。
type ValidationError struct {
	Detail string
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return "validation failed"
}

func newFieldError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}
