package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/calebmorton/shelfline-backend/pkg/db/models"
	"github.com/calebmorton/shelfline-backend/pkg/enums"
	pkgerrors "github.com/calebmorton/shelfline-backend/pkg/errors"
)

// Sink delivers circulation notifications to members. Delivery is best
// effort: the circulation facts stand even when a notification cannot be
// written, so callers log the returned error and proceed.
type Sink interface {
	Notify(ctx context.Context, tx *gorm.DB, memberID uuid.UUID, kind enums.NotificationKind, message string) error
}

// Service stores in-app notifications and exposes member read surfaces.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService wires the notification service.
func NewService(repo Repository) (*Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications repository required")
	}
	return &Service{repo: repo, now: time.Now}, nil
}

// Notify writes one in-app notification for the member.
func (s *Service) Notify(ctx context.Context, tx *gorm.DB, memberID uuid.UUID, kind enums.NotificationKind, message string) error {
	if memberID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "member id required")
	}
	if !kind.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid notification kind")
	}
	if message == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "message required")
	}

	notification := &models.Notification{
		ID:       uuid.New(),
		MemberID: memberID,
		Kind:     kind,
		Message:  message,
	}
	if err := s.repo.WithTx(tx).Create(ctx, notification); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store notification")
	}
	return nil
}

// List returns the member's notifications, newest first.
func (s *Service) List(ctx context.Context, memberID uuid.UUID, unreadOnly bool) ([]models.Notification, error) {
	if memberID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "member id required")
	}
	notifications, err := s.repo.ListByMember(ctx, memberID, unreadOnly)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list notifications")
	}
	return notifications, nil
}

// MarkRead stamps one notification as read.
func (s *Service) MarkRead(ctx context.Context, memberID, notificationID uuid.UUID) error {
	if memberID == uuid.Nil || notificationID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "member id and notification id required")
	}
	updated, err := s.repo.MarkRead(ctx, memberID, notificationID, s.now().UTC())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notification read")
	}
	if !updated {
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	return nil
}
