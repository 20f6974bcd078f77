package marks

import "recite/internal/database"

// AnnotatedMark 是附带了某个用户收藏状态的目录条目。
// 未收藏时 CollectedMarkID 为 nil。
type AnnotatedMark struct {
	Mark            database.Mark
	IsCollected     bool
	CollectedMarkID *uint
}

// Annotate 把一页条目与该用户的全部收藏记录做内存联结。
// 只遍历各自一遍：先建 mark_id -> usermark_id 映射，再逐条打标。
func Annotate(items []database.Mark, userMarks []database.UserMark) []AnnotatedMark {
	collected := make(map[uint]uint, len(userMarks))
	for _, um := range userMarks {
		collected[um.MarkID] = um.ID
	}

	annotated := make([]AnnotatedMark, 0, len(items))
	for _, m := range items {
		entry := AnnotatedMark{Mark: m}
		if id, ok := collected[m.ID]; ok {
			entry.IsCollected = true
			userMarkID := id
			entry.CollectedMarkID = &userMarkID
		}
		annotated = append(annotated, entry)
	}
	return annotated
}
