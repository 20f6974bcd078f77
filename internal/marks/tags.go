package marks

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"recite/internal/database"
)

// TagResolver 按名称解析标签，不存在的名称惰性创建。
// 并发创建同名标签时以唯一索引为准：冲突按"已存在"处理并改为查询。
type TagResolver struct {
	db *gorm.DB
}

// NewTagResolver 构造 TagResolver。
func NewTagResolver(db *gorm.DB) *TagResolver {
	return &TagResolver{db: db}
}

// Resolve 返回给定名称集合对应的标签，保持输入顺序并去重。
// 空白名称被忽略；同名调用两次不会产生重复标签。
func (r *TagResolver) Resolve(ctx context.Context, names []string) ([]database.Tag, error) {
	tags := make([]database.Tag, 0, len(names))
	seen := make(map[string]struct{}, len(names))

	for _, raw := range names {
		name := strings.TrimSpace(raw)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}

		tag, err := r.resolveOne(ctx, name)
		if err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}

	return tags, nil
}

func (r *TagResolver) resolveOne(ctx context.Context, name string) (database.Tag, error) {
	var tag database.Tag
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&tag).Error
	if err == nil {
		return tag, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return database.Tag{}, fmt.Errorf("lookup tag %q: %w", name, err)
	}

	tag = database.Tag{Name: name}
	createErr := r.db.WithContext(ctx).Create(&tag).Error
	if createErr == nil {
		return tag, nil
	}
	if !errors.Is(createErr, gorm.ErrDuplicatedKey) {
		return database.Tag{}, fmt.Errorf("create tag %q: %w", name, createErr)
	}

	// 并发请求抢先创建了同名标签，重新查询即可。
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&tag).Error; err != nil {
		return database.Tag{}, fmt.Errorf("relookup tag %q: %w", name, err)
	}
	return tag, nil
}

// TagService 提供标签的列表与维护操作。
type TagService struct {
	db    *gorm.DB
	authz Authorizer
}

// NewTagService 构造 TagService。
func NewTagService(db *gorm.DB, authz Authorizer) *TagService {
	return &TagService{db: db, authz: authz}
}

// List 按名称搜索标签并分页。
func (s *TagService) List(ctx context.Context, opts QueryOptions) (Page[database.Tag], error) {
	q := s.db.WithContext(ctx).Model(&database.Tag{})
	if opts.Search != "" {
		q = q.Where("LOWER(tags.name) LIKE ?", contains(opts.Search))
	}
	return runPaged[database.Tag](q, opts, tagSort.clause(opts.SortBy, opts.Order))
}

// Get 返回指定标签。
func (s *TagService) Get(ctx context.Context, id uint) (database.Tag, error) {
	var tag database.Tag
	if err := s.db.WithContext(ctx).First(&tag, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return database.Tag{}, ErrNotFound
		}
		return database.Tag{}, fmt.Errorf("get tag: %w", err)
	}
	return tag, nil
}

// Create 新建标签，重名返回 ErrTagExists。
func (s *TagService) Create(ctx context.Context, actor database.User, name string) (database.Tag, error) {
	if !s.authz.CanManageMarks(actor) {
		return database.Tag{}, ErrPermissionDenied
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return database.Tag{}, newFieldError("name", "This field is required.")
	}

	tag := database.Tag{Name: name}
	if err := s.db.WithContext(ctx).Create(&tag).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return database.Tag{}, ErrTagExists
		}
		return database.Tag{}, fmt.Errorf("create tag: %w", err)
	}
	return tag, nil
}

// Rename 重命名标签，重名返回 ErrTagExists。
func (s *TagService) Rename(ctx context.Context, actor database.User, id uint, name string) (database.Tag, error) {
	if !s.authz.CanManageMarks(actor) {
		return database.Tag{}, ErrPermissionDenied
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return database.Tag{}, newFieldError("name", "This field is required.")
	}

	tag, err := s.Get(ctx, id)
	if err != nil {
		return database.Tag{}, err
	}

	if err := s.db.WithContext(ctx).Model(&tag).Update("name", name).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return database.Tag{}, ErrTagExists
		}
		return database.Tag{}, fmt.Errorf("rename tag: %w", err)
	}
	return tag, nil
}

// Delete 删除标签并解除其与条目的关联。
func (s *TagService) Delete(ctx context.Context, actor database.User, id uint) error {
	if !s.authz.CanManageMarks(actor) {
		return ErrPermissionDenied
	}

	tag, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&tag).Association("Marks").Clear(); err != nil {
			return fmt.Errorf("clear tag associations: %w", err)
		}
		if err := tx.Delete(&database.Tag{}, tag.ID).Error; err != nil {
			return fmt.Errorf("delete tag: %w", err)
		}
		return nil
	})
}
