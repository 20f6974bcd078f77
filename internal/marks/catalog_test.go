package marks

import (
	"errors"
	"testing"

	"recite/internal/database"
)

func strPtr(s string) *string       { return &s }
func tagsPtr(t ...string) *[]string { return &t }

func TestCatalogCreate_RequiresManager(t *testing.T) {
	db := newTestDB(t)
	svc := NewCatalogService(db, NewTagResolver(db), RoleAuthorizer{})
	reader := seedUser(t, db, "reader", false)

	_, err := svc.Create(testCtx(), reader, MarkInput{
		Title:    strPtr("Spring"),
		Content:  strPtr("text"),
		Category: strPtr("poem"),
	})
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("create error = %v, want ErrPermissionDenied", err)
	}
}

func TestCatalogCreate_SuperuserAllowed(t *testing.T) {
	db := newTestDB(t)
	svc := NewCatalogService(db, NewTagResolver(db), RoleAuthorizer{})
	root := database.User{Username: "root", PasswordHash: "x", IsSuperuser: true}
	if err := db.Create(&root).Error; err != nil {
		t.Fatalf("seed superuser: %v", err)
	}

	mark, err := svc.Create(testCtx(), root, MarkInput{
		Title:    strPtr("Spring"),
		Content:  strPtr("text"),
		Category: strPtr("poem"),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if mark.ID == 0 {
		t.Error("mark was not persisted")
	}
}

func TestCatalogCreate_MissingFields(t *testing.T) {
	db := newTestDB(t)
	svc := NewCatalogService(db, NewTagResolver(db), RoleAuthorizer{})
	manager := seedUser(t, db, "manager", true)

	var validationErr *ValidationError
	_, err := svc.Create(testCtx(), manager, MarkInput{Title: strPtr("Spring")})
	if !errors.As(err, &validationErr) {
		t.Fatalf("create error = %v, want ValidationError", err)
	}
	if validationErr.Detail != "Missing required fields: title, content, or category" {
		t.Errorf("detail = %q", validationErr.Detail)
	}
}

func TestCatalogCreate_InvalidCategory(t *testing.T) {
	db := newTestDB(t)
	svc := NewCatalogService(db, NewTagResolver(db), RoleAuthorizer{})
	manager := seedUser(t, db, "manager", true)

	var validationErr *ValidationError
	_, err := svc.Create(testCtx(), manager, MarkInput{
		Title:    strPtr("Spring"),
		Content:  strPtr("text"),
		Category: strPtr("fiction"),
	})
	if !errors.As(err, &validationErr) {
		t.Fatalf("create error = %v, want ValidationError", err)
	}
	if _, ok := validationErr.Fields["category"]; !ok {
		t.Errorf("expected category field error, got %+v", validationErr.Fields)
	}
}

func TestCatalogCreate_NormalizesCategoryCase(t *testing.T) {
	db := newTestDB(t)
	svc := NewCatalogService(db, NewTagResolver(db), RoleAuthorizer{})
	manager := seedUser(t, db, "manager", true)

	mark, err := svc.Create(testCtx(), manager, MarkInput{
		Title:    strPtr("Spring"),
		Content:  strPtr("text"),
		Category: strPtr("Poem"),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if mark.Category != "poem" {
		t.Errorf("category = %q, want poem", mark.Category)
	}
}

func TestCatalogCreate_ResolvesTags(t *testing.T) {
	db := newTestDB(t)
	svc := NewCatalogService(db, NewTagResolver(db), RoleAuthorizer{})
	manager := seedUser(t, db, "manager", true)

	mark, err := svc.Create(testCtx(), manager, MarkInput{
		Title:    strPtr("Spring"),
		Content:  strPtr("text"),
		Category: strPtr("poem"),
		Tags:     tagsPtr("nature", "classic"),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	var reloaded database.Mark
	if err := db.Preload("Tags").First(&reloaded, mark.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(reloaded.Tags) != 2 {
		t.Errorf("tag count = %d, want 2", len(reloaded.Tags))
	}
}

func TestCatalogUpdate_FullRequiresAllFields(t *testing.T) {
	db := newTestDB(t)
	svc := NewCatalogService(db, NewTagResolver(db), RoleAuthorizer{})
	manager := seedUser(t, db, "manager", true)
	mark := seedMark(t, db, "Spring", "poem", baseTime())

	var validationErr *ValidationError
	_, err := svc.Update(testCtx(), manager, mark.ID, MarkInput{Title: strPtr("New")}, false)
	if !errors.As(err, &validationErr) {
		t.Fatalf("full update error = %v, want ValidationError", err)
	}
}

func TestCatalogUpdate_PartialMerges(t *testing.T) {
	db := newTestDB(t)
	svc := NewCatalogService(db, NewTagResolver(db), RoleAuthorizer{})
	manager := seedUser(t, db, "manager", true)
	mark := seedMark(t, db, "Spring", "poem", baseTime())

	updated, err := svc.Update(testCtx(), manager, mark.ID, MarkInput{Title: strPtr("Late Spring")}, true)
	if err != nil {
		t.Fatalf("partial update: %v", err)
	}
	if updated.Title != "Late Spring" {
		t.Errorf("title = %q", updated.Title)
	}
	if updated.Content != mark.Content || updated.Category != mark.Category {
		t.Errorf("untouched fields changed: %+v", updated)
	}
}

func TestCatalogUpdate_ReplacesTagSet(t *testing.T) {
	db := newTestDB(t)
	svc := NewCatalogService(db, NewTagResolver(db), RoleAuthorizer{})
	manager := seedUser(t, db, "manager", true)
	mark := seedMark(t, db, "Spring", "poem", baseTime(), "nature", "classic")

	updated, err := svc.Update(testCtx(), manager, mark.ID, MarkInput{Tags: tagsPtr("modern")}, true)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(updated.Tags) != 1 || updated.Tags[0].Name != "modern" {
		t.Fatalf("tags after replace = %+v, want only modern", updated.Tags)
	}

	// 被替换下来的标签本身仍然存在，只是不再关联。
	var count int64
	if err := db.Model(&database.Tag{}).Count(&count).Error; err != nil {
		t.Fatalf("count tags: %v", err)
	}
	if count != 3 {
		t.Errorf("tag count = %d, want 3", count)
	}
}

func TestCatalogUpdate_OmittedTagsKept(t *testing.T) {
	db := newTestDB(t)
	svc := NewCatalogService(db, NewTagResolver(db), RoleAuthorizer{})
	manager := seedUser(t, db, "manager", true)
	mark := seedMark(t, db, "Spring", "poem", baseTime(), "nature")

	updated, err := svc.Update(testCtx(), manager, mark.ID, MarkInput{Title: strPtr("New")}, true)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(updated.Tags) != 1 || updated.Tags[0].Name != "nature" {
		t.Errorf("tags should be untouched, got %+v", updated.Tags)
	}
}

func TestCatalogUpdate_NotFound(t *testing.T) {
	db := newTestDB(t)
	svc := NewCatalogService(db, NewTagResolver(db), RoleAuthorizer{})
	manager := seedUser(t, db, "manager", true)

	_, err := svc.Update(testCtx(), manager, 999, MarkInput{Title: strPtr("New")}, true)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("update error = %v, want ErrNotFound", err)
	}
}

func TestCatalogDelete_CascadesToUserMarks(t *testing.T) {
	db := newTestDB(t)
	svc := NewCatalogService(db, NewTagResolver(db), RoleAuthorizer{})
	manager := seedUser(t, db, "manager", true)
	mark := seedMark(t, db, "Spring", "poem", baseTime())

	for i, name := range []string{"alice", "bob", "carol"} {
		user := seedUser(t, db, name, false)
		seedUserMark(t, db, user, mark, "", i)
	}

	if err := svc.Delete(testCtx(), manager, mark.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	var remaining int64
	if err := db.Model(&database.UserMark{}).Where("mark_id = ?", mark.ID).Count(&remaining).Error; err != nil {
		t.Fatalf("count user marks: %v", err)
	}
	if remaining != 0 {
		t.Errorf("%d user marks survived mark delete", remaining)
	}
}

func TestCatalogDelete_NotFound(t *testing.T) {
	db := newTestDB(t)
	svc := NewCatalogService(db, NewTagResolver(db), RoleAuthorizer{})
	manager := seedUser(t, db, "manager", true)

	if err := svc.Delete(testCtx(), manager, 999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("delete error = %v, want ErrNotFound", err)
	}
}

func TestCatalogGet_NotFound(t *testing.T) {
	db := newTestDB(t)
	svc := NewCatalogService(db, NewTagResolver(db), RoleAuthorizer{})

	if _, err := svc.Get(testCtx(), 999, 0); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get error = %v, want ErrNotFound", err)
	}
}
