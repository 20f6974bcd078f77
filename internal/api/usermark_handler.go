package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"recite/internal/database"
	"recite/internal/marks"
)

// UserMarkHandler 负责当前用户收藏集的增删改查。
type UserMarkHandler struct {
	collection *marks.CollectionService
}

// NewUserMarkHandler 构造 UserMarkHandler。
func NewUserMarkHandler(collection *marks.CollectionService) *UserMarkHandler {
	return &UserMarkHandler{collection: collection}
}

type createUserMarkRequest struct {
	Mark            uint   `json:"mark" binding:"required"`
	Note            string `json:"note"`
	PreferenceLevel int    `json:"preference_level"`
}

type updateUserMarkRequest struct {
	Note            *string `json:"note"`
	PreferenceLevel *int    `json:"preference_level"`
}

type userMarkResponse struct {
	ID              uint         `json:"id"`
	Mark            markResponse `json:"mark"`
	Note            string       `json:"note"`
	PreferenceLevel int          `json:"preference_level"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

func newUserMarkResponse(userMark database.UserMark) userMarkResponse {
	return userMarkResponse{
		ID:              userMark.ID,
		Mark:            newMarkResponse(userMark.Mark),
		Note:            userMark.Note,
		PreferenceLevel: userMark.PreferenceLevel,
		CreatedAt:       userMark.CreatedAt,
		UpdatedAt:       userMark.UpdatedAt,
	}
}

// ListUserMarks 列出当前用户的收藏，支持与目录一致的过滤与分页。
func (h *UserMarkHandler) ListUserMarks(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	opts := marks.ParseQueryOptions(c.Request.URL.Query())

	page, err := h.collection.List(c.Request.Context(), userID, opts)
	if err != nil {
		DomainError(c, err)
		return
	}

	results := make([]userMarkResponse, 0, len(page.Items))
	for _, item := range page.Items {
		results = append(results, newUserMarkResponse(item))
	}
	c.JSON(http.StatusOK, pageResponse{Count: page.TotalCount, TotalPages: page.TotalPages, Results: results})
}

// CreateUserMark 收藏一个条目。重复收藏返回 400 "Already bookmarked."。
func (h *UserMarkHandler) CreateUserMark(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	var req createUserMarkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	userMark, err := h.collection.Add(c.Request.Context(), userID, marks.AddInput{
		MarkID:          req.Mark,
		Note:            req.Note,
		PreferenceLevel: req.PreferenceLevel,
	})
	if err != nil {
		DomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newUserMarkResponse(userMark))
}

// GetUserMark 返回当前用户的一条收藏。
func (h *UserMarkHandler) GetUserMark(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	id, err := idParam(c)
	if err != nil {
		NotFound(c)
		return
	}

	userMark, err := h.collection.Get(c.Request.Context(), userID, id)
	if err != nil {
		DomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, newUserMarkResponse(userMark))
}

// UpdateUserMark 修改收藏的备注或喜好等级。
func (h *UserMarkHandler) UpdateUserMark(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	id, err := idParam(c)
	if err != nil {
		NotFound(c)
		return
	}

	var req updateUserMarkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	userMark, err := h.collection.Update(c.Request.Context(), userID, id, marks.UpdateInput{
		Note:            req.Note,
		PreferenceLevel: req.PreferenceLevel,
	})
	if err != nil {
		DomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, newUserMarkResponse(userMark))
}

// DeleteUserMark 取消收藏。
func (h *UserMarkHandler) DeleteUserMark(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	id, err := idParam(c)
	if err != nil {
		NotFound(c)
		return
	}

	if err := h.collection.Remove(c.Request.Context(), userID, id); err != nil {
		DomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
