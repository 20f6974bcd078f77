package marks

import (
	"errors"
	"testing"

	"recite/internal/database"
)

func intPtr(n int) *int { return &n }

func TestCollectionAdd_CreatesUserMark(t *testing.T) {
	db := newTestDB(t)
	svc := NewCollectionService(db)
	user := seedUser(t, db, "alice", false)
	mark := seedMark(t, db, "Spring", "poem", baseTime(), "nature")

	userMark, err := svc.Add(testCtx(), user.ID, AddInput{MarkID: mark.ID, Note: "lovely", PreferenceLevel: 4})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if userMark.Note != "lovely" || userMark.PreferenceLevel != 4 {
		t.Errorf("user mark fields wrong: %+v", userMark)
	}
	if userMark.Mark.ID != mark.ID || len(userMark.Mark.Tags) != 1 {
		t.Errorf("mark not preloaded: %+v", userMark.Mark)
	}
}

func TestCollectionAdd_DuplicateIsConflict(t *testing.T) {
	db := newTestDB(t)
	svc := NewCollectionService(db)
	user := seedUser(t, db, "alice", false)
	mark := seedMark(t, db, "Spring", "poem", baseTime())

	if _, err := svc.Add(testCtx(), user.ID, AddInput{MarkID: mark.ID}); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if _, err := svc.Add(testCtx(), user.ID, AddInput{MarkID: mark.ID}); !errors.Is(err, ErrAlreadyCollected) {
		t.Fatalf("second add error = %v, want ErrAlreadyCollected", err)
	}

	var count int64
	if err := db.Model(&database.UserMark{}).Where("user_id = ? AND mark_id = ?", user.ID, mark.ID).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("user mark count = %d, want 1", count)
	}
}

func TestCollectionAdd_SameMarkDifferentUsers(t *testing.T) {
	db := newTestDB(t)
	svc := NewCollectionService(db)
	alice := seedUser(t, db, "alice", false)
	bob := seedUser(t, db, "bob", false)
	mark := seedMark(t, db, "Spring", "poem", baseTime())

	if _, err := svc.Add(testCtx(), alice.ID, AddInput{MarkID: mark.ID}); err != nil {
		t.Fatalf("alice add: %v", err)
	}
	if _, err := svc.Add(testCtx(), bob.ID, AddInput{MarkID: mark.ID}); err != nil {
		t.Fatalf("bob add: %v", err)
	}
}

func TestCollectionAdd_UnknownMark(t *testing.T) {
	db := newTestDB(t)
	svc := NewCollectionService(db)
	user := seedUser(t, db, "alice", false)

	if _, err := svc.Add(testCtx(), user.ID, AddInput{MarkID: 999}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("add error = %v, want ErrNotFound", err)
	}
}

func TestCollectionAdd_PreferenceOutOfRange(t *testing.T) {
	db := newTestDB(t)
	svc := NewCollectionService(db)
	user := seedUser(t, db, "alice", false)
	mark := seedMark(t, db, "Spring", "poem", baseTime())

	var validationErr *ValidationError
	if _, err := svc.Add(testCtx(), user.ID, AddInput{MarkID: mark.ID, PreferenceLevel: 6}); !errors.As(err, &validationErr) {
		t.Fatalf("add error = %v, want ValidationError", err)
	}
}

func TestCollectionOwnershipIsolation(t *testing.T) {
	db := newTestDB(t)
	svc := NewCollectionService(db)
	alice := seedUser(t, db, "alice", false)
	bob := seedUser(t, db, "bob", false)
	mark := seedMark(t, db, "Spring", "poem", baseTime())
	aliceMark := seedUserMark(t, db, alice, mark, "private", 3)

	// 猜中 id 也不行：他人的记录一律按不存在处理。
	if _, err := svc.Get(testCtx(), bob.ID, aliceMark.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("get error = %v, want ErrNotFound", err)
	}
	if _, err := svc.Update(testCtx(), bob.ID, aliceMark.ID, UpdateInput{Note: strPtr("hacked")}); !errors.Is(err, ErrNotFound) {
		t.Errorf("update error = %v, want ErrNotFound", err)
	}
	if err := svc.Remove(testCtx(), bob.ID, aliceMark.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("remove error = %v, want ErrNotFound", err)
	}

	page, err := svc.List(testCtx(), bob.ID, QueryOptions{Page: 1, PageSize: 20})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.TotalCount != 0 {
		t.Errorf("bob sees %d rows, want 0", page.TotalCount)
	}

	var reloaded database.UserMark
	if err := db.First(&reloaded, aliceMark.ID).Error; err != nil {
		t.Fatalf("alice's row vanished: %v", err)
	}
	if reloaded.Note != "private" {
		t.Errorf("alice's note was changed to %q", reloaded.Note)
	}
}

func TestCollectionUpdate_ChangesNoteAndPreference(t *testing.T) {
	db := newTestDB(t)
	svc := NewCollectionService(db)
	user := seedUser(t, db, "alice", false)
	mark := seedMark(t, db, "Spring", "poem", baseTime())
	userMark := seedUserMark(t, db, user, mark, "old", 1)

	updated, err := svc.Update(testCtx(), user.ID, userMark.ID, UpdateInput{
		Note:            strPtr("new"),
		PreferenceLevel: intPtr(5),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Note != "new" || updated.PreferenceLevel != 5 {
		t.Errorf("update result = %+v", updated)
	}
}

func TestCollectionUpdate_NilFieldsUntouched(t *testing.T) {
	db := newTestDB(t)
	svc := NewCollectionService(db)
	user := seedUser(t, db, "alice", false)
	mark := seedMark(t, db, "Spring", "poem", baseTime())
	userMark := seedUserMark(t, db, user, mark, "keep", 3)

	updated, err := svc.Update(testCtx(), user.ID, userMark.ID, UpdateInput{Note: strPtr("changed")})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.PreferenceLevel != 3 {
		t.Errorf("preference level changed to %d", updated.PreferenceLevel)
	}
	if updated.Note != "changed" {
		t.Errorf("note = %q", updated.Note)
	}
}

func TestCollectionUpdate_PreferenceOutOfRange(t *testing.T) {
	db := newTestDB(t)
	svc := NewCollectionService(db)
	user := seedUser(t, db, "alice", false)
	mark := seedMark(t, db, "Spring", "poem", baseTime())
	userMark := seedUserMark(t, db, user, mark, "", 0)

	var validationErr *ValidationError
	if _, err := svc.Update(testCtx(), user.ID, userMark.ID, UpdateInput{PreferenceLevel: intPtr(-1)}); !errors.As(err, &validationErr) {
		t.Fatalf("update error = %v, want ValidationError", err)
	}
}

func TestCollectionRemove_ThenGone(t *testing.T) {
	db := newTestDB(t)
	svc := NewCollectionService(db)
	user := seedUser(t, db, "alice", false)
	mark := seedMark(t, db, "Spring", "poem", baseTime())
	userMark := seedUserMark(t, db, user, mark, "", 0)

	if err := svc.Remove(testCtx(), user.ID, userMark.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := svc.Remove(testCtx(), user.ID, userMark.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second remove error = %v, want ErrNotFound", err)
	}
	if _, err := svc.Get(testCtx(), user.ID, userMark.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get after remove error = %v, want ErrNotFound", err)
	}
}

func TestCollectionList_SearchCoversNoteAndMarkFields(t *testing.T) {
	db := newTestDB(t)
	svc := NewCollectionService(db)
	user := seedUser(t, db, "alice", false)

	spring := seedMark(t, db, "Spring", "poem", baseTime(), "nature")
	winter := seedMark(t, db, "Winter", "poem", baseTime())
	algebra := seedMark(t, db, "Algebra", "math", baseTime())

	seedUserMark(t, db, user, spring, "", 0)
	seedUserMark(t, db, user, winter, "reminds me of spring", 0)
	seedUserMark(t, db, user, algebra, "", 0)

	page, err := svc.List(testCtx(), user.ID, QueryOptions{Search: "spring", Page: 1, PageSize: 20})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	// 标题命中 Spring，备注命中 Winter。
	if page.TotalCount != 2 {
		t.Errorf("search count = %d, want 2", page.TotalCount)
	}

	page, err = svc.List(testCtx(), user.ID, QueryOptions{Search: "nature", Page: 1, PageSize: 20})
	if err != nil {
		t.Fatalf("list by tag: %v", err)
	}
	if page.TotalCount != 1 {
		t.Errorf("tag search count = %d, want 1", page.TotalCount)
	}
}

func TestCollectionList_SortByPreferenceLevel(t *testing.T) {
	db := newTestDB(t)
	svc := NewCollectionService(db)
	user := seedUser(t, db, "alice", false)

	for i, title := range []string{"a", "b", "c"} {
		mark := seedMark(t, db, title, "poem", baseTime())
		seedUserMark(t, db, user, mark, "", 2-i)
	}

	page, err := svc.List(testCtx(), user.ID, QueryOptions{SortBy: "preference_level", Order: "desc", Page: 1, PageSize: 20})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for i := 1; i < len(page.Items); i++ {
		if page.Items[i].PreferenceLevel > page.Items[i-1].PreferenceLevel {
			t.Errorf("preference levels not descending at %d", i)
		}
	}
}

func TestCollectionList_FilterByMarkCategory(t *testing.T) {
	db := newTestDB(t)
	svc := NewCollectionService(db)
	user := seedUser(t, db, "alice", false)

	poem := seedMark(t, db, "Spring", "poem", baseTime())
	math := seedMark(t, db, "Algebra", "math", baseTime())
	seedUserMark(t, db, user, poem, "", 0)
	seedUserMark(t, db, user, math, "", 0)

	page, err := svc.List(testCtx(), user.ID, QueryOptions{Category: "math", Page: 1, PageSize: 20})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.TotalCount != 1 || page.Items[0].Mark.Title != "Algebra" {
		t.Fatalf("category filter wrong: %+v", page.Items)
	}
}
