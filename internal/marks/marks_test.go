package marks

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"recite/internal/database"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&database.User{}, &database.Tag{}, &database.Mark{}, &database.UserMark{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedUser(t *testing.T, db *gorm.DB, username string, manager bool) database.User {
	t.Helper()
	user := database.User{Username: username, PasswordHash: "x", IsMarkManager: manager}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("seed user %s: %v", username, err)
	}
	return user
}

func seedMark(t *testing.T, db *gorm.DB, title, category string, createdAt time.Time, tagNames ...string) database.Mark {
	t.Helper()
	mark := database.Mark{
		Title:     title,
		Content:   "content of " + title,
		Category:  category,
		CreatedAt: createdAt,
	}
	for _, name := range tagNames {
		var tag database.Tag
		if err := db.Where("name = ?", name).FirstOrCreate(&tag, database.Tag{Name: name}).Error; err != nil {
			t.Fatalf("seed tag %s: %v", name, err)
		}
		mark.Tags = append(mark.Tags, tag)
	}
	if err := db.Create(&mark).Error; err != nil {
		t.Fatalf("seed mark %s: %v", title, err)
	}
	return mark
}

func seedUserMark(t *testing.T, db *gorm.DB, user database.User, mark database.Mark, note string, level int) database.UserMark {
	t.Helper()
	userMark := database.UserMark{UserID: user.ID, MarkID: mark.ID, Note: note, PreferenceLevel: level}
	if err := db.Create(&userMark).Error; err != nil {
		t.Fatalf("seed user mark: %v", err)
	}
	return userMark
}

func testCtx() context.Context { return context.Background() }
