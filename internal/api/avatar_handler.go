package api

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/dutchcoders/go-clamd"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"gorm.io/gorm"

	"recite/internal/database"
)

// avatarStorage 抽象头像存储，便于测试替换。
type avatarStorage interface {
	UploadFile(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (*minio.UploadInfo, error)
	GeneratePresignedURL(ctx context.Context, objectKey string, duration time.Duration) (string, error)
	DeleteObject(ctx context.Context, objectKey string) error
}

// AvatarHandler 负责头像上传与访问。
type AvatarHandler struct {
	db        *gorm.DB
	storage   avatarStorage
	logger    *slog.Logger
	clamdAddr string
	maxBytes  int64
}

// NewAvatarHandler 返回 AvatarHandler 实例。clamdAddr 为空时跳过病毒扫描。
func NewAvatarHandler(db *gorm.DB, storageClient avatarStorage, logger *slog.Logger, clamdAddr string) *AvatarHandler {
	return &AvatarHandler{
		db:        db,
		storage:   storageClient,
		logger:    logger,
		clamdAddr: clamdAddr,
		maxBytes:  5 * 1024 * 1024,
	}
}

// UploadAvatar 上传当前用户的头像，旧头像会被替换删除。
func (h *AvatarHandler) UploadAvatar(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "missing file")
		return
	}
	if file.Size > h.maxBytes {
		BadRequest(c, "file too large")
		return
	}

	if h.clamdAddr != "" {
		clean, err := h.scanFile(file)
		if err != nil {
			h.logger.Error("scan avatar", slog.String("error", err.Error()))
			Internal(c, "failed to scan file")
			return
		}
		if !clean {
			BadRequest(c, "malicious file detected")
			return
		}
	}

	fileReader, err := file.Open()
	if err != nil {
		Internal(c, "failed to open file")
		return
	}
	defer fileReader.Close()

	var user database.User
	ctx := c.Request.Context()
	if err := h.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		AbortUnauthorized(c)
		return
	}

	objectKey := fmt.Sprintf("avatars/%d/%s", userID, uuid.NewString())
	contentType := file.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if _, err := h.storage.UploadFile(ctx, objectKey, fileReader, file.Size, contentType); err != nil {
		h.logger.Error("upload avatar", slog.String("error", err.Error()))
		Internal(c, "failed to upload file")
		return
	}

	previousKey := user.AvatarKey
	if err := h.db.WithContext(ctx).Model(&user).Update("avatar_key", objectKey).Error; err != nil {
		h.logger.Error("save avatar key", slog.String("error", err.Error()))
		Internal(c, "failed to save avatar")
		return
	}

	if previousKey != "" {
		if err := h.storage.DeleteObject(ctx, previousKey); err != nil {
			h.logger.Error("delete old avatar", slog.String("objectKey", previousKey), slog.String("error", err.Error()))
		}
	}

	c.JSON(http.StatusCreated, gin.H{"object_key": objectKey})
}

// GetAvatarURL 返回当前用户头像的临时预签名 URL。
func (h *AvatarHandler) GetAvatarURL(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	var user database.User
	if err := h.db.WithContext(c.Request.Context()).First(&user, userID).Error; err != nil {
		AbortUnauthorized(c)
		return
	}
	if user.AvatarKey == "" {
		NotFound(c)
		return
	}

	signedURL, err := h.storage.GeneratePresignedURL(c.Request.Context(), user.AvatarKey, 15*time.Minute)
	if err != nil {
		h.logger.Error("generate presigned url", slog.String("error", err.Error()))
		Internal(c, "failed to generate url")
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": signedURL})
}

func (h *AvatarHandler) scanFile(file *multipart.FileHeader) (bool, error) {
	fileReader, err := file.Open()
	if err != nil {
		return false, fmt.Errorf("open file: %w", err)
	}
	defer fileReader.Close()

	clamdClient := clamd.NewClamd(h.clamdAddr)
	abortChan := make(chan bool)
	defer close(abortChan)

	scanChan, err := clamdClient.ScanStream(fileReader, abortChan)
	if err != nil {
		return false, fmt.Errorf("scan stream: %w", err)
	}

	for result := range scanChan {
		if result.Status != clamd.RES_OK {
			return false, nil
		}
	}
	return true, nil
}
