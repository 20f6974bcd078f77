package database

import "time"

// Mark 的固定分类。创建与更新时校验，列表按它过滤。
const (
	CategoryPoem    = "poem"
	CategoryMath    = "math"
	CategoryScience = "science"
	CategoryEnglish = "english"
)

// Categories 列出全部合法分类。
var Categories = []string{CategoryPoem, CategoryMath, CategoryScience, CategoryEnglish}

// IsValidCategory 判断分类是否属于固定枚举。
func IsValidCategory(category string) bool {
	for _, c := range Categories {
		if c == category {
			return true
		}
	}
	return false
}

// User 表示系统中的账号信息。
// 条目管理能力由 IsSuperuser 或 IsMarkManager 给出。
type User struct {
	ID                 uint   `gorm:"primarykey"`
	Username           string `gorm:"uniqueIndex;size:64"`
	Email              string `gorm:"size:255"`
	PasswordHash       string `gorm:"size:255"`
	Bio                string `gorm:"type:text"`
	AvatarKey          string `gorm:"size:512"`
	IsSuperuser        bool   `gorm:"default:false"`
	IsMarkManager      bool   `gorm:"default:false"`
	MustChangePassword bool   `gorm:"default:false"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
	UserMarks          []UserMark `gorm:"constraint:OnDelete:CASCADE"`
}

// CanManageMarks 返回该用户是否具备条目管理能力。
func (u User) CanManageMarks() bool {
	return u.IsSuperuser || u.IsMarkManager
}

// Mark 表示目录中的一条内容条目。
// 条目由管理员维护，对所有人可见；Tags 为多对多关联。
type Mark struct {
	ID        uint   `gorm:"primarykey"`
	Title     string `gorm:"size:255"`
	Content   string `gorm:"type:text"`
	Category  string `gorm:"size:50;index"`
	CreatedAt time.Time
	Tags      []Tag      `gorm:"many2many:mark_tags;"`
	UserMarks []UserMark `gorm:"constraint:OnDelete:CASCADE"`
}

// Tag 表示标签，名称全局唯一，按名称惰性创建。
type Tag struct {
	ID        uint   `gorm:"primarykey"`
	Name      string `gorm:"uniqueIndex;size:64"`
	CreatedAt time.Time
	Marks     []Mark `gorm:"many2many:mark_tags;"`
}

// UserMark 表示用户对某条目的收藏。
// 同一用户对同一条目至多一条记录，由复合唯一索引保证。
type UserMark struct {
	ID              uint   `gorm:"primarykey"`
	UserID          uint   `gorm:"uniqueIndex:uidx_user_mark"`
	User            User   `gorm:"constraint:OnDelete:CASCADE"`
	MarkID          uint   `gorm:"uniqueIndex:uidx_user_mark"`
	Mark            Mark   `gorm:"constraint:OnDelete:CASCADE"`
	Note            string `gorm:"type:text"`
	PreferenceLevel int    `gorm:"default:0"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
