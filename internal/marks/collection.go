package marks

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"recite/internal/database"
)

// 喜好等级的合法区间。
const (
	MinPreferenceLevel = 0
	MaxPreferenceLevel = 5
)

// CollectionService 维护单个用户的收藏集。
// 所有操作都以调用者的 userID 为作用域，不会触及他人的记录。
type CollectionService struct {
	db *gorm.DB
}

// NewCollectionService 构造 CollectionService。
func NewCollectionService(db *gorm.DB) *CollectionService {
	return &CollectionService{db: db}
}

// AddInput 是收藏条目的入参。
type AddInput struct {
	MarkID          uint
	Note            string
	PreferenceLevel int
}

// UpdateInput 是修改收藏的入参。nil 字段保持不变。
type UpdateInput struct {
	Note            *string
	PreferenceLevel *int
}

// List 返回该用户按 QueryOptions 过滤排序的一页收藏。
func (s *CollectionService) List(ctx context.Context, userID uint, opts QueryOptions) (Page[database.UserMark], error) {
	q := userMarkFilterScope(s.db.WithContext(ctx), userID, opts)
	return runPaged[database.UserMark](q, opts, userMarkSort.clause(opts.SortBy, opts.Order), "Mark", "Mark.Tags")
}

// Add 收藏一个条目。
// 依赖 (user_id, mark_id) 唯一索引做原子去重：并发收藏同一条目
// 只会有一个成功，其余冲突统一返回 ErrAlreadyCollected。
func (s *CollectionService) Add(ctx context.Context, userID uint, in AddInput) (database.UserMark, error) {
	if in.PreferenceLevel < MinPreferenceLevel || in.PreferenceLevel > MaxPreferenceLevel {
		return database.UserMark{}, newFieldError("preference_level", "Preference level must be between 0 and 5.")
	}

	var mark database.Mark
	if err := s.db.WithContext(ctx).First(&mark, in.MarkID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return database.UserMark{}, ErrNotFound
		}
		return database.UserMark{}, fmt.Errorf("get mark: %w", err)
	}

	userMark := database.UserMark{
		UserID:          userID,
		MarkID:          mark.ID,
		Note:            in.Note,
		PreferenceLevel: in.PreferenceLevel,
	}
	if err := s.db.WithContext(ctx).Create(&userMark).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return database.UserMark{}, ErrAlreadyCollected
		}
		return database.UserMark{}, fmt.Errorf("create user mark: %w", err)
	}

	return s.Get(ctx, userID, userMark.ID)
}

// Get 返回该用户的一条收藏；不存在或属于他人时同样返回 ErrNotFound。
func (s *CollectionService) Get(ctx context.Context, userID, id uint) (database.UserMark, error) {
	var userMark database.UserMark
	err := s.db.WithContext(ctx).
		Preload("Mark").
		Preload("Mark.Tags").
		Where("id = ? AND user_id = ?", id, userID).
		First(&userMark).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return database.UserMark{}, ErrNotFound
		}
		return database.UserMark{}, fmt.Errorf("get user mark: %w", err)
	}
	return userMark, nil
}

// Update 修改收藏的备注或喜好等级，updated_at 随之刷新。
func (s *CollectionService) Update(ctx context.Context, userID, id uint, in UpdateInput) (database.UserMark, error) {
	if in.PreferenceLevel != nil &&
		(*in.PreferenceLevel < MinPreferenceLevel || *in.PreferenceLevel > MaxPreferenceLevel) {
		return database.UserMark{}, newFieldError("preference_level", "Preference level must be between 0 and 5.")
	}

	var userMark database.UserMark
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&userMark).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return database.UserMark{}, ErrNotFound
		}
		return database.UserMark{}, fmt.Errorf("get user mark: %w", err)
	}

	updates := map[string]any{}
	if in.Note != nil {
		updates["note"] = *in.Note
	}
	if in.PreferenceLevel != nil {
		updates["preference_level"] = *in.PreferenceLevel
	}
	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(&userMark).Updates(updates).Error; err != nil {
			return database.UserMark{}, fmt.Errorf("update user mark: %w", err)
		}
	}

	return s.Get(ctx, userID, userMark.ID)
}

// Remove 取消收藏；不存在或属于他人时返回 ErrNotFound。
func (s *CollectionService) Remove(ctx context.Context, userID, id uint) error {
	result := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&database.UserMark{})
	if result.Error != nil {
		return fmt.Errorf("delete user mark: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
