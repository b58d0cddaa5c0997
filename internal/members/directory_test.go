package members

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/calebmorton/shelfline-backend/pkg/db/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:members_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Member{}); err != nil {
		t.Fatalf("migrate members: %v", err)
	}
	return db
}

func TestDirectoryExists(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	directory, err := NewDirectory(db)
	if err != nil {
		t.Fatalf("new directory: %v", err)
	}
	ctx := context.Background()

	active := models.Member{ID: uuid.New(), Email: "reader@example.com", FullName: "Avid Reader", IsActive: true}
	lapsed := models.Member{ID: uuid.New(), Email: "lapsed@example.com", FullName: "Lapsed Reader", IsActive: false}
	for _, member := range []models.Member{active, lapsed} {
		if err := db.Create(&member).Error; err != nil {
			t.Fatalf("seed member: %v", err)
		}
	}

	exists, err := directory.Exists(ctx, active.ID)
	if err != nil || !exists {
		t.Fatalf("expected active member to exist, got %v err=%v", exists, err)
	}

	exists, err = directory.Exists(ctx, lapsed.ID)
	if err != nil || exists {
		t.Fatalf("lapsed member must not count as existing, got %v err=%v", exists, err)
	}

	exists, err = directory.Exists(ctx, uuid.New())
	if err != nil || exists {
		t.Fatalf("unknown member must not exist, got %v err=%v", exists, err)
	}
}
