package marks

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"recite/internal/database"
)

// Authorizer 判定某用户是否可以执行目录维护操作。
// 注入 CatalogService/TagService，而不是散落在路由层。
type Authorizer interface {
	CanManageMarks(user database.User) bool
}

// RoleAuthorizer 按用户角色标志判定管理能力。
type RoleAuthorizer struct{}

func (RoleAuthorizer) CanManageMarks(user database.User) bool {
	return user.CanManageMarks()
}

// CatalogService 实现目录条目的浏览与维护。
// 读取对所有人开放；写操作经 Authorizer 把关。
type CatalogService struct {
	db    *gorm.DB
	tags  *TagResolver
	authz Authorizer
}

// NewCatalogService 构造 CatalogService。
func NewCatalogService(db *gorm.DB, tags *TagResolver, authz Authorizer) *CatalogService {
	return &CatalogService{db: db, tags: tags, authz: authz}
}

// MarkInput 是创建/更新条目的入参。nil 字段表示"未提供"。
type MarkInput struct {
	Title    *string
	Content  *string
	Category *string
	Tags     *[]string
}

// List 返回按 QueryOptions 过滤排序的一页条目，并附上 userID 的收藏状态。
// userID 为 0 表示匿名访问，所有条目都标记为未收藏。
func (s *CatalogService) List(ctx context.Context, opts QueryOptions, userID uint) (Page[AnnotatedMark], error) {
	q := markFilterScope(s.db.WithContext(ctx), opts)
	page, err := runPaged[database.Mark](q, opts, markSort.clause(opts.SortBy, opts.Order), "Tags")
	if err != nil {
		return Page[AnnotatedMark]{}, err
	}

	userMarks, err := s.userMarkIndex(ctx, userID)
	if err != nil {
		return Page[AnnotatedMark]{}, err
	}

	return Page[AnnotatedMark]{
		Items:      Annotate(page.Items, userMarks),
		TotalCount: page.TotalCount,
		TotalPages: page.TotalPages,
	}, nil
}

// Get 返回单个条目及 userID 的收藏状态。
func (s *CatalogService) Get(ctx context.Context, id uint, userID uint) (AnnotatedMark, error) {
	var mark database.Mark
	if err := s.db.WithContext(ctx).Preload("Tags").First(&mark, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return AnnotatedMark{}, ErrNotFound
		}
		return AnnotatedMark{}, fmt.Errorf("get mark: %w", err)
	}

	userMarks, err := s.userMarkIndex(ctx, userID)
	if err != nil {
		return AnnotatedMark{}, err
	}
	return Annotate([]database.Mark{mark}, userMarks)[0], nil
}

// userMarkIndex 一次性取出该用户全部收藏的 (id, mark_id)。
func (s *CatalogService) userMarkIndex(ctx context.Context, userID uint) ([]database.UserMark, error) {
	if userID == 0 {
		return nil, nil
	}
	var userMarks []database.UserMark
	if err := s.db.WithContext(ctx).
		Select("id", "mark_id").
		Where("user_id = ?", userID).
		Find(&userMarks).Error; err != nil {
		return nil, fmt.Errorf("load user marks: %w", err)
	}
	return userMarks, nil
}

// Create 新建条目并关联标签。
func (s *CatalogService) Create(ctx context.Context, actor database.User, in MarkInput) (database.Mark, error) {
	if !s.authz.CanManageMarks(actor) {
		return database.Mark{}, ErrPermissionDenied
	}

	title := deref(in.Title)
	content := deref(in.Content)
	category := strings.ToLower(deref(in.Category))
	if title == "" || content == "" || category == "" {
		return database.Mark{}, &ValidationError{Detail: "Missing required fields: title, content, or category"}
	}
	if !database.IsValidCategory(category) {
		return database.Mark{}, newFieldError("category", fmt.Sprintf("%q is not a valid choice.", category))
	}

	mark := database.Mark{
		Title:    title,
		Content:  content,
		Category: category,
	}
	if in.Tags != nil {
		tags, err := s.tags.Resolve(ctx, *in.Tags)
		if err != nil {
			return database.Mark{}, err
		}
		mark.Tags = tags
	}

	if err := s.db.WithContext(ctx).Create(&mark).Error; err != nil {
		return database.Mark{}, fmt.Errorf("create mark: %w", err)
	}
	return mark, nil
}

// Update 更新条目。partial 为 false 时要求 title/content/category 全部给出。
// 给出 Tags 时整体替换关联集合；未给出则保持不变。
func (s *CatalogService) Update(ctx context.Context, actor database.User, id uint, in MarkInput, partial bool) (database.Mark, error) {
	if !s.authz.CanManageMarks(actor) {
		return database.Mark{}, ErrPermissionDenied
	}

	var mark database.Mark
	if err := s.db.WithContext(ctx).First(&mark, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return database.Mark{}, ErrNotFound
		}
		return database.Mark{}, fmt.Errorf("get mark: %w", err)
	}

	if !partial && (in.Title == nil || in.Content == nil || in.Category == nil) {
		return database.Mark{}, &ValidationError{Detail: "Missing required fields: title, content, or category"}
	}

	updates := map[string]any{}
	if in.Title != nil {
		if deref(in.Title) == "" {
			return database.Mark{}, newFieldError("title", "This field may not be blank.")
		}
		updates["title"] = *in.Title
	}
	if in.Content != nil {
		if deref(in.Content) == "" {
			return database.Mark{}, newFieldError("content", "This field may not be blank.")
		}
		updates["content"] = *in.Content
	}
	if in.Category != nil {
		category := strings.ToLower(deref(in.Category))
		if !database.IsValidCategory(category) {
			return database.Mark{}, newFieldError("category", fmt.Sprintf("%q is not a valid choice.", category))
		}
		updates["category"] = category
	}

	var tags []database.Tag
	if in.Tags != nil {
		resolved, err := s.tags.Resolve(ctx, *in.Tags)
		if err != nil {
			return database.Mark{}, err
		}
		tags = resolved
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(updates) > 0 {
			if err := tx.Model(&mark).Updates(updates).Error; err != nil {
				return fmt.Errorf("update mark: %w", err)
			}
		}
		if in.Tags != nil {
			if err := tx.Model(&mark).Association("Tags").Replace(tags); err != nil {
				return fmt.Errorf("replace tags: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return database.Mark{}, err
	}

	if err := s.db.WithContext(ctx).Preload("Tags").First(&mark, mark.ID).Error; err != nil {
		return database.Mark{}, fmt.Errorf("reload mark: %w", err)
	}
	return mark, nil
}

// Delete 删除条目，并连带删除所有用户对它的收藏。
func (s *CatalogService) Delete(ctx context.Context, actor database.User, id uint) error {
	if !s.authz.CanManageMarks(actor) {
		return ErrPermissionDenied
	}

	var mark database.Mark
	if err := s.db.WithContext(ctx).First(&mark, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("get mark: %w", err)
	}

	// 级联在事务内显式执行，不依赖具体数据库的外键行为。
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("mark_id = ?", mark.ID).Delete(&database.UserMark{}).Error; err != nil {
			return fmt.Errorf("delete user marks: %w", err)
		}
		if err := tx.Model(&mark).Association("Tags").Clear(); err != nil {
			return fmt.Errorf("clear tags: %w", err)
		}
		if err := tx.Delete(&database.Mark{}, mark.ID).Error; err != nil {
			return fmt.Errorf("delete mark: %w", err)
		}
		return nil
	})
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
