package notify

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/calebmorton/shelfline-backend/pkg/db/models"
	"github.com/calebmorton/shelfline-backend/pkg/enums"
	pkgerrors "github.com/calebmorton/shelfline-backend/pkg/errors"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	dsn := "file:notify_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Notification{}); err != nil {
		t.Fatalf("migrate notifications: %v", err)
	}
	service, err := NewService(NewRepository(db))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return service, db
}

func TestNotifyAndList(t *testing.T) {
	t.Parallel()

	service, _ := newTestService(t)
	ctx := context.Background()
	memberID := uuid.New()

	if err := service.Notify(ctx, nil, memberID, enums.NotificationKindReservationReady, "your copy is waiting"); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if err := service.Notify(ctx, nil, memberID, enums.NotificationKindOverdue, "2 days overdue"); err != nil {
		t.Fatalf("notify: %v", err)
	}

	notifications, err := service.List(ctx, memberID, false)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(notifications) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(notifications))
	}
}

func TestNotifyRejectsInvalidInput(t *testing.T) {
	t.Parallel()

	service, _ := newTestService(t)
	ctx := context.Background()

	err := service.Notify(ctx, nil, uuid.Nil, enums.NotificationKindDueSoon, "msg")
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	err = service.Notify(ctx, nil, uuid.New(), "smoke_signal", "msg")
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for kind, got %v", err)
	}
	err = service.Notify(ctx, nil, uuid.New(), enums.NotificationKindDueSoon, "")
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for message, got %v", err)
	}
}

func TestMarkRead(t *testing.T) {
	t.Parallel()

	service, db := newTestService(t)
	ctx := context.Background()
	memberID := uuid.New()

	if err := service.Notify(ctx, nil, memberID, enums.NotificationKindDueSoon, "due tomorrow"); err != nil {
		t.Fatalf("notify: %v", err)
	}
	var stored models.Notification
	if err := db.First(&stored).Error; err != nil {
		t.Fatalf("load notification: %v", err)
	}

	if err := service.MarkRead(ctx, memberID, stored.ID); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if err := service.MarkRead(ctx, memberID, stored.ID); !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("second mark read should be not found, got %v", err)
	}

	unread, err := service.List(ctx, memberID, true)
	if err != nil {
		t.Fatalf("list unread: %v", err)
	}
	if len(unread) != 0 {
		t.Fatalf("expected no unread notifications, got %d", len(unread))
	}
}

func TestDeleteOlderThan(t *testing.T) {
	t.Parallel()

	service, db := newTestService(t)
	ctx := context.Background()
	repo := NewRepository(db)
	memberID := uuid.New()

	if err := service.Notify(ctx, nil, memberID, enums.NotificationKindDueSoon, "old"); err != nil {
		t.Fatalf("notify: %v", err)
	}
	stale := time.Now().UTC().Add(-40 * 24 * time.Hour)
	if err := db.Model(&models.Notification{}).Where("member_id = ?", memberID).
		UpdateColumn("created_at", stale).Error; err != nil {
		t.Fatalf("age notification: %v", err)
	}
	if err := service.Notify(ctx, nil, memberID, enums.NotificationKindOverdue, "fresh"); err != nil {
		t.Fatalf("notify: %v", err)
	}

	deleted, err := repo.DeleteOlderThan(ctx, nil, time.Now().UTC().Add(-30*24*time.Hour))
	if err != nil {
		t.Fatalf("delete older than: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 deleted, got %d", deleted)
	}

	remaining, err := service.List(ctx, memberID, false)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(remaining) != 1 || remaining[0].Message != "fresh" {
		t.Fatalf("unexpected remaining notifications: %+v", remaining)
	}
}
