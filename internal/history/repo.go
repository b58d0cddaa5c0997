package history

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/calebmorton/shelfline-backend/pkg/db/models"
)

// Repository manages persistence for history events.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, event *models.HistoryEvent) error
	ListByMemberID(ctx context.Context, memberID uuid.UUID) ([]models.HistoryEvent, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a history repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, event *models.HistoryEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *repository) ListByMemberID(ctx context.Context, memberID uuid.UUID) ([]models.HistoryEvent, error) {
	var events []models.HistoryEvent
	if err := r.db.WithContext(ctx).
		Where("member_id = ?", memberID).
		Order("created_at ASC").
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}
