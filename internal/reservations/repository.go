package reservations

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/calebmorton/shelfline-backend/pkg/db/models"
	"github.com/calebmorton/shelfline-backend/pkg/enums"
)

// Repository exposes persistence helpers for reservations.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, reservation *models.Reservation) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Reservation, error)
	FindActiveByMemberAndTitle(ctx context.Context, memberID, titleID uuid.UUID) (*models.Reservation, error)
	FindAvailableByMemberAndTitle(ctx context.Context, memberID, titleID uuid.UUID) (*models.Reservation, error)
	OldestPendingForTitle(ctx context.Context, titleID uuid.UUID) (*models.Reservation, error)
	ListPendingForTitle(ctx context.Context, titleID uuid.UUID) ([]models.Reservation, error)
	ListAvailableBefore(ctx context.Context, cutoff time.Time) ([]models.Reservation, error)
	UpdateFields(ctx context.Context, id uuid.UUID, updates map[string]any) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a reservations repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, reservation *models.Reservation) error {
	return r.db.WithContext(ctx).Create(reservation).Error
}

func (r *repositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	var reservation models.Reservation
	if err := r.db.WithContext(ctx).First(&reservation, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &reservation, nil
}

func (r *repositoryImpl) FindActiveByMemberAndTitle(ctx context.Context, memberID, titleID uuid.UUID) (*models.Reservation, error) {
	var reservation models.Reservation
	err := r.db.WithContext(ctx).
		Where("member_id = ? AND title_id = ? AND status IN ?", memberID, titleID,
			[]enums.ReservationStatus{enums.ReservationStatusPending, enums.ReservationStatusAvailable}).
		First(&reservation).Error
	if err != nil {
		return nil, err
	}
	return &reservation, nil
}

func (r *repositoryImpl) FindAvailableByMemberAndTitle(ctx context.Context, memberID, titleID uuid.UUID) (*models.Reservation, error) {
	var reservation models.Reservation
	err := r.db.WithContext(ctx).
		Where("member_id = ? AND title_id = ? AND status = ?", memberID, titleID, enums.ReservationStatusAvailable).
		First(&reservation).Error
	if err != nil {
		return nil, err
	}
	return &reservation, nil
}

// OldestPendingForTitle returns the head of the promotion queue. Ordering is
// strictly created_at ascending with the id as a deterministic tie-break.
func (r *repositoryImpl) OldestPendingForTitle(ctx context.Context, titleID uuid.UUID) (*models.Reservation, error) {
	var reservation models.Reservation
	err := r.db.WithContext(ctx).
		Where("title_id = ? AND status = ?", titleID, enums.ReservationStatusPending).
		Order("created_at ASC, id ASC").
		First(&reservation).Error
	if err != nil {
		return nil, err
	}
	return &reservation, nil
}

func (r *repositoryImpl) ListPendingForTitle(ctx context.Context, titleID uuid.UUID) ([]models.Reservation, error) {
	var reservations []models.Reservation
	err := r.db.WithContext(ctx).
		Where("title_id = ? AND status = ?", titleID, enums.ReservationStatusPending).
		Order("created_at ASC, id ASC").
		Find(&reservations).Error
	if err != nil {
		return nil, err
	}
	return reservations, nil
}

func (r *repositoryImpl) ListAvailableBefore(ctx context.Context, cutoff time.Time) ([]models.Reservation, error) {
	var reservations []models.Reservation
	err := r.db.WithContext(ctx).
		Where("status = ? AND available_at <= ?", enums.ReservationStatusAvailable, cutoff).
		Order("available_at ASC, id ASC").
		Find(&reservations).Error
	if err != nil {
		return nil, err
	}
	return reservations, nil
}

func (r *repositoryImpl) UpdateFields(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Reservation{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Reservation{}, "id = ?", id).Error
}
