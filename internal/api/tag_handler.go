package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"recite/internal/database"
	"recite/internal/marks"
)

// TagHandler 负责标签的查询与维护。
type TagHandler struct {
	db   *gorm.DB
	tags *marks.TagService
}

// NewTagHandler 构造 TagHandler。
func NewTagHandler(db *gorm.DB, tags *marks.TagService) *TagHandler {
	return &TagHandler{db: db, tags: tags}
}

type tagRequest struct {
	Name string `json:"name" binding:"required"`
}

type tagResponse struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

func newTagResponse(tag database.Tag) tagResponse {
	return tagResponse{ID: tag.ID, Name: tag.Name, CreatedAt: tag.CreatedAt}
}

// ListTags 按名称搜索标签，分页返回。
func (h *TagHandler) ListTags(c *gin.Context) {
	opts := marks.ParseQueryOptions(c.Request.URL.Query())

	page, err := h.tags.List(c.Request.Context(), opts)
	if err != nil {
		DomainError(c, err)
		return
	}

	results := make([]tagResponse, 0, len(page.Items))
	for _, tag := range page.Items {
		results = append(results, newTagResponse(tag))
	}
	c.JSON(http.StatusOK, pageResponse{Count: page.TotalCount, TotalPages: page.TotalPages, Results: results})
}

// GetTag 返回单个标签。
func (h *TagHandler) GetTag(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		NotFound(c)
		return
	}

	tag, err := h.tags.Get(c.Request.Context(), id)
	if err != nil {
		DomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, newTagResponse(tag))
}

// CreateTag 新建标签，仅限具备管理能力的用户。
func (h *TagHandler) CreateTag(c *gin.Context) {
	var req tagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	actor, ok := h.currentUser(c)
	if !ok {
		return
	}

	tag, err := h.tags.Create(c.Request.Context(), actor, req.Name)
	if err != nil {
		DomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newTagResponse(tag))
}

// RenameTag 修改标签名称。
func (h *TagHandler) RenameTag(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		NotFound(c)
		return
	}

	var req tagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	actor, ok := h.currentUser(c)
	if !ok {
		return
	}

	tag, err := h.tags.Rename(c.Request.Context(), actor, id, req.Name)
	if err != nil {
		DomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, newTagResponse(tag))
}

// DeleteTag 删除标签。
func (h *TagHandler) DeleteTag(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		NotFound(c)
		return
	}

	actor, ok := h.currentUser(c)
	if !ok {
		return
	}

	if err := h.tags.Delete(c.Request.Context(), actor, id); err != nil {
		DomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *TagHandler) currentUser(c *gin.Context) (database.User, bool) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return database.User{}, false
	}
	var user database.User
	if err := h.db.WithContext(c.Request.Context()).First(&user, userID).Error; err != nil {
		AbortUnauthorized(c)
		return database.User{}, false
	}
	return user, true
}
