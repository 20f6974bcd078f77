package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"recite/internal/marks"
)

// Detail 以 {"detail": msg} 形式返回错误。
func Detail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"detail": msg})
}

func AbortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Authentication credentials were not provided."})
}

func Unauthorized(c *gin.Context) {
	Detail(c, http.StatusUnauthorized, "Authentication credentials were not provided.")
}
func BadRequest(c *gin.Context, msg string) { Detail(c, http.StatusBadRequest, msg) }
func Forbidden(c *gin.Context)              { Detail(c, http.StatusForbidden, "You do not have permission to perform this action.") }
func NotFound(c *gin.Context)               { Detail(c, http.StatusNotFound, "Not found.") }
func Internal(c *gin.Context, msg string)   { Detail(c, http.StatusInternalServerError, msg) }

// DomainError 把核心层的领域错误翻译为 HTTP 响应。
// 字段级校验错误按字段名展开为 {field: message}。
func DomainError(c *gin.Context, err error) {
	var validationErr *marks.ValidationError
	switch {
	case errors.As(err, &validationErr):
		if len(validationErr.Fields) > 0 {
			c.JSON(http.StatusBadRequest, validationErr.Fields)
			return
		}
		BadRequest(c, validationErr.Detail)
	case errors.Is(err, marks.ErrNotFound):
		NotFound(c)
	case errors.Is(err, marks.ErrAlreadyCollected):
		BadRequest(c, "Already bookmarked.")
	case errors.Is(err, marks.ErrTagExists):
		BadRequest(c, "Tag already exists.")
	case errors.Is(err, marks.ErrPermissionDenied):
		Forbidden(c)
	default:
		Internal(c, "internal error")
	}
}
