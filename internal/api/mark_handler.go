package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"recite/internal/database"
	"recite/internal/marks"
)

// MarkHandler 负责目录条目与收藏总览相关的 API 请求。
type MarkHandler struct {
	db         *gorm.DB
	catalog    *marks.CatalogService
	collection *marks.CollectionService
}

// NewMarkHandler 构造 MarkHandler。
func NewMarkHandler(db *gorm.DB, catalog *marks.CatalogService, collection *marks.CollectionService) *MarkHandler {
	return &MarkHandler{db: db, catalog: catalog, collection: collection}
}

var errInvalidID = errors.New("invalid id")

type markRequest struct {
	Title    *string   `json:"title"`
	Content  *string   `json:"content"`
	Category *string   `json:"category"`
	Tags     *[]string `json:"tags"`
}

func (r markRequest) toInput() marks.MarkInput {
	return marks.MarkInput{
		Title:    r.Title,
		Content:  r.Content,
		Category: r.Category,
		Tags:     r.Tags,
	}
}

type markResponse struct {
	ID        uint      `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Category  string    `json:"category"`
	CreatedAt time.Time `json:"created_at"`
	Tags      []string  `json:"tags"`
}

type annotatedMarkResponse struct {
	markResponse
	IsCollected     bool  `json:"is_collected"`
	CollectedMarkID *uint `json:"collected_mark_id,omitempty"`
}

type pageResponse struct {
	Count      int64 `json:"count"`
	TotalPages int   `json:"total_pages"`
	Results    any   `json:"results"`
}

func newMarkResponse(mark database.Mark) markResponse {
	tags := make([]string, 0, len(mark.Tags))
	for _, tag := range mark.Tags {
		tags = append(tags, tag.Name)
	}
	return markResponse{
		ID:        mark.ID,
		Title:     mark.Title,
		Content:   mark.Content,
		Category:  mark.Category,
		CreatedAt: mark.CreatedAt,
		Tags:      tags,
	}
}

func newAnnotatedMarkResponse(item marks.AnnotatedMark) annotatedMarkResponse {
	return annotatedMarkResponse{
		markResponse:    newMarkResponse(item.Mark),
		IsCollected:     item.IsCollected,
		CollectedMarkID: item.CollectedMarkID,
	}
}

func annotatedPage(page marks.Page[marks.AnnotatedMark]) pageResponse {
	results := make([]annotatedMarkResponse, 0, len(page.Items))
	for _, item := range page.Items {
		results = append(results, newAnnotatedMarkResponse(item))
	}
	return pageResponse{Count: page.TotalCount, TotalPages: page.TotalPages, Results: results}
}

// ListMarks 列出目录条目。匿名可访问；带令牌时附加收藏状态。
func (h *MarkHandler) ListMarks(c *gin.Context) {
	userID, _ := userIDFromContext(c)
	opts := marks.ParseQueryOptions(c.Request.URL.Query())

	page, err := h.catalog.List(c.Request.Context(), opts, userID)
	if err != nil {
		DomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, annotatedPage(page))
}

// ListCollection 与 ListMarks 相同，但要求登录：收藏总览页必须知道是谁在看。
func (h *MarkHandler) ListCollection(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	opts := marks.ParseQueryOptions(c.Request.URL.Query())

	page, err := h.catalog.List(c.Request.Context(), opts, userID)
	if err != nil {
		DomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, annotatedPage(page))
}

// GetMark 返回单个条目详情。
func (h *MarkHandler) GetMark(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		NotFound(c)
		return
	}
	userID, _ := userIDFromContext(c)

	item, err := h.catalog.Get(c.Request.Context(), id, userID)
	if err != nil {
		DomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, newAnnotatedMarkResponse(item))
}

// CreateMark 新建目录条目，仅限具备管理能力的用户。
func (h *MarkHandler) CreateMark(c *gin.Context) {
	var req markRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	actor, ok := h.currentUser(c)
	if !ok {
		return
	}

	mark, err := h.catalog.Create(c.Request.Context(), actor, req.toInput())
	if err != nil {
		DomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newMarkResponse(mark))
}

// UpdateMark 全量更新条目（PUT）。
func (h *MarkHandler) UpdateMark(c *gin.Context) {
	h.update(c, false)
}

// PatchMark 部分更新条目（PATCH）。
func (h *MarkHandler) PatchMark(c *gin.Context) {
	h.update(c, true)
}

func (h *MarkHandler) update(c *gin.Context, partial bool) {
	id, err := idParam(c)
	if err != nil {
		NotFound(c)
		return
	}

	var req markRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	actor, ok := h.currentUser(c)
	if !ok {
		return
	}

	mark, err := h.catalog.Update(c.Request.Context(), actor, id, req.toInput(), partial)
	if err != nil {
		DomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, newMarkResponse(mark))
}

// DeleteMark 删除条目及其全部收藏记录。
func (h *MarkHandler) DeleteMark(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		NotFound(c)
		return
	}

	actor, ok := h.currentUser(c)
	if !ok {
		return
	}

	if err := h.catalog.Delete(c.Request.Context(), actor, id); err != nil {
		DomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// currentUser 加载当前登录用户。角色判定始终读取数据库最新状态。
func (h *MarkHandler) currentUser(c *gin.Context) (database.User, bool) {
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

func idParam(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return 0, errInvalidID
	}
	return uint(id), nil
}

func userIDFromContext(c *gin.Context) (uint, bool) {
	value, exists := c.Get("userID")
	if !exists {
		return 0, false
	}

	switch v := value.(type) {
	case uint:
		return v, true
	case int:
		if v < 0 {
			return 0, false
		}
		return uint(v), true
	case uint64:
		return uint(v), true
	case int64:
		if v < 0 {
			return 0, false
		}
		return uint(v), true
	default:
		return 0, false
	}
}
