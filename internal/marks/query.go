package marks

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"recite/internal/database"
)

// 分页与排序的默认值。page_size 未设上限，超大页由调用方自行负责。
const (
	DefaultPage      = 1
	DefaultPageSize  = 20
	DefaultSortField = "created_at"
	DefaultOrder     = "desc"
)

// QueryOptions 汇总列表接口的全部过滤/搜索/排序/分页参数。
// 所有字段可缺省；空白值等同于缺省，不会被当作非法输入。
type QueryOptions struct {
	Title         string
	Content       string
	Category      string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	Search        string
	SortBy        string
	Order         string
	Page          int
	PageSize      int
}

// ParseQueryOptions 从 URL 查询串解析 QueryOptions。
// 非法的 page/page_size/时间值回落到默认，不报错。
func ParseQueryOptions(values url.Values) QueryOptions {
	opts := QueryOptions{
		Title:    strings.TrimSpace(values.Get("title")),
		Content:  strings.TrimSpace(values.Get("content")),
		Category: strings.TrimSpace(values.Get("category")),
		Search:   strings.TrimSpace(values.Get("search")),
		SortBy:   strings.TrimSpace(values.Get("sort_by")),
		Order:    strings.TrimSpace(values.Get("order")),
		Page:     parsePositiveInt(values.Get("page"), DefaultPage),
		PageSize: parsePositiveInt(values.Get("page_size"), DefaultPageSize),
	}
	opts.CreatedAfter = parseTime(values.Get("created_at_after"))
	opts.CreatedBefore = parseTime(values.Get("created_at_before"))
	return opts
}

func parsePositiveInt(raw string, fallback int) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTime(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	return nil
}

// sortSpec 是某个实体的排序白名单：对外字段名到实际列的映射。
// 白名单之外的 sort_by 一律静默回落到默认列，不暴露内部列名。
type sortSpec struct {
	fields     map[string]string
	defaultCol string
	tieBreak   string
}

var markSort = sortSpec{
	fields: map[string]string{
		"id":         "marks.id",
		"title":      "marks.title",
		"category":   "marks.category",
		"created_at": "marks.created_at",
	},
	defaultCol: "marks.created_at",
	tieBreak:   "marks.id",
}

var userMarkSort = sortSpec{
	fields: map[string]string{
		"id":               "user_marks.id",
		"created_at":       "user_marks.created_at",
		"mark":             "user_marks.mark_id",
		"preference_level": "user_marks.preference_level",
	},
	defaultCol: "user_marks.created_at",
	tieBreak:   "user_marks.id",
}

var tagSort = sortSpec{
	fields: map[string]string{
		"id":         "tags.id",
		"name":       "tags.name",
		"created_at": "tags.created_at",
	},
	defaultCol: "tags.created_at",
	tieBreak:   "tags.id",
}

// clause 生成 ORDER BY 子句。次级 id ASC 保证同值排序键下的稳定顺序。
func (s sortSpec) clause(sortBy, order string) string {
	column, ok := s.fields[sortBy]
	if !ok {
		column = s.defaultCol
	}
	dir := "DESC"
	if strings.EqualFold(strings.TrimSpace(order), "asc") {
		dir = "ASC"
	}
	if column == s.tieBreak {
		return fmt.Sprintf("%s %s", column, dir)
	}
	return fmt.Sprintf("%s %s, %s ASC", column, dir, s.tieBreak)
}

// Page 是过滤后的一页结果及总量信息。
type Page[T any] struct {
	Items      []T
	TotalCount int64
	TotalPages int
}

func contains(term string) string {
	return "%" + strings.ToLower(term) + "%"
}

// markFilterScope 把 QueryOptions 应用到 Mark 查询上。
// 各过滤条件取 AND；search 独立于位置过滤，另行叠加。
func markFilterScope(db *gorm.DB, opts QueryOptions) *gorm.DB {
	q := db.Model(&database.Mark{})
	if opts.Title != "" {
		q = q.Where("LOWER(marks.title) LIKE ?", contains(opts.Title))
	}
	if opts.Content != "" {
		q = q.Where("LOWER(marks.content) LIKE ?", contains(opts.Content))
	}
	if opts.Category != "" {
		q = q.Where("marks.category = ?", strings.ToLower(opts.Category))
	}
	if opts.CreatedAfter != nil {
		q = q.Where("marks.created_at >= ?", *opts.CreatedAfter)
	}
	if opts.CreatedBefore != nil {
		q = q.Where("marks.created_at <= ?", *opts.CreatedBefore)
	}
	if opts.Search != "" {
		like := contains(opts.Search)
		q = q.Where(
			db.Session(&gorm.Session{NewDB: true}).
				Where("LOWER(marks.title) LIKE ?", like).
				Or("LOWER(marks.content) LIKE ?", like).
				Or("marks.id IN (?)", tagNameSubquery(db, like)),
		)
	}
	return q
}

// userMarkFilterScope 把 QueryOptions 应用到某个用户的 UserMark 查询上。
// 始终带 user_id 条件；分类与搜索经由 marks 联结。
func userMarkFilterScope(db *gorm.DB, userID uint, opts QueryOptions) *gorm.DB {
	q := db.Model(&database.UserMark{}).
		Select("user_marks.*").
		Joins("JOIN marks ON marks.id = user_marks.mark_id").
		Where("user_marks.user_id = ?", userID)
	if opts.Title != "" {
		q = q.Where("LOWER(marks.title) LIKE ?", contains(opts.Title))
	}
	if opts.Content != "" {
		q = q.Where("LOWER(marks.content) LIKE ?", contains(opts.Content))
	}
	if opts.Category != "" {
		q = q.Where("marks.category = ?", strings.ToLower(opts.Category))
	}
	if opts.CreatedAfter != nil {
		q = q.Where("user_marks.created_at >= ?", *opts.CreatedAfter)
	}
	if opts.CreatedBefore != nil {
		q = q.Where("user_marks.created_at <= ?", *opts.CreatedBefore)
	}
	if opts.Search != "" {
		like := contains(opts.Search)
		q = q.Where(
			db.Session(&gorm.Session{NewDB: true}).
				Where("LOWER(marks.title) LIKE ?", like).
				Or("LOWER(marks.content) LIKE ?", like).
				Or("LOWER(user_marks.note) LIKE ?", like).
				Or("marks.id IN (?)", tagNameSubquery(db, like)),
		)
	}
	return q
}

// tagNameSubquery 返回标签名匹配的 mark_id 子查询。
// 用 IN 子查询而非 JOIN，计数不会因一条目多标签而重复。
func tagNameSubquery(db *gorm.DB, like string) *gorm.DB {
	return db.Session(&gorm.Session{NewDB: true}).
		Table("mark_tags").
		Select("mark_tags.mark_id").
		Joins("JOIN tags ON tags.id = mark_tags.tag_id").
		Where("LOWER(tags.name) LIKE ?", like)
}

// runPaged 在已过滤的查询上执行计数、排序与分页。
func runPaged[T any](q *gorm.DB, opts QueryOptions, order string, preloads ...string) (Page[T], error) {
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return Page[T]{}, fmt.Errorf("count: %w", err)
	}

	page := opts.Page
	if page < 1 {
		page = DefaultPage
	}
	size := opts.PageSize
	if size < 1 {
		size = DefaultPageSize
	}

	listQuery := q.Order(order).Offset((page - 1) * size).Limit(size)
	for _, preload := range preloads {
		listQuery = listQuery.Preload(preload)
	}

	items := make([]T, 0, size)
	if err := listQuery.Find(&items).Error; err != nil {
		return Page[T]{}, fmt.Errorf("find page: %w", err)
	}

	totalPages := int((total + int64(size) - 1) / int64(size))
	return Page[T]{Items: items, TotalCount: total, TotalPages: totalPages}, nil
}
