package reservations

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/calebmorton/shelfline-backend/pkg/db/models"
	"github.com/calebmorton/shelfline-backend/pkg/enums"
)

func setupReservationsTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:reservations_repo_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Reservation{}))
	return db
}

func insertReservation(t *testing.T, db *gorm.DB, titleID uuid.UUID, status enums.ReservationStatus, createdAt time.Time, availableAt *time.Time) models.Reservation {
	t.Helper()
	reservation := models.Reservation{
		ID:          uuid.New(),
		TitleID:     titleID,
		MemberID:    uuid.New(),
		Status:      status,
		AvailableAt: availableAt,
		CreatedAt:   createdAt,
	}
	require.NoError(t, db.Create(&reservation).Error)
	return reservation
}

func TestFindActiveByMemberAndTitle(t *testing.T) {
	t.Parallel()

	db := setupReservationsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	titleID := uuid.New()

	pending := insertReservation(t, db, titleID, enums.ReservationStatusPending, time.Now().UTC(), nil)
	insertReservation(t, db, titleID, enums.ReservationStatusCancelled, time.Now().UTC(), nil)

	found, err := repo.FindActiveByMemberAndTitle(ctx, pending.MemberID, titleID)
	require.NoError(t, err)
	assert.Equal(t, pending.ID, found.ID)

	cancelled := insertReservation(t, db, uuid.New(), enums.ReservationStatusCancelled, time.Now().UTC(), nil)
	_, err = repo.FindActiveByMemberAndTitle(ctx, cancelled.MemberID, cancelled.TitleID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestOldestPendingForTitleOrdering(t *testing.T) {
	t.Parallel()

	db := setupReservationsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	titleID := uuid.New()
	base := time.Date(2026, time.February, 1, 8, 0, 0, 0, time.UTC)

	insertReservation(t, db, titleID, enums.ReservationStatusPending, base.Add(2*time.Minute), nil)
	oldest := insertReservation(t, db, titleID, enums.ReservationStatusPending, base, nil)
	insertReservation(t, db, titleID, enums.ReservationStatusPending, base.Add(time.Minute), nil)
	// Resolved reservations never head the queue, however old.
	insertReservation(t, db, titleID, enums.ReservationStatusExpired, base.Add(-time.Hour), nil)

	head, err := repo.OldestPendingForTitle(ctx, titleID)
	require.NoError(t, err)
	assert.Equal(t, oldest.ID, head.ID)
}

func TestListAvailableBefore(t *testing.T) {
	t.Parallel()

	db := setupReservationsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	titleID := uuid.New()
	cutoff := time.Date(2026, time.February, 3, 8, 0, 0, 0, time.UTC)

	staleAt := cutoff.Add(-time.Hour)
	freshAt := cutoff.Add(time.Hour)
	boundaryAt := cutoff
	stale := insertReservation(t, db, titleID, enums.ReservationStatusAvailable, staleAt.Add(-time.Hour), &staleAt)
	insertReservation(t, db, titleID, enums.ReservationStatusAvailable, freshAt.Add(-time.Hour), &freshAt)
	boundary := insertReservation(t, db, titleID, enums.ReservationStatusAvailable, boundaryAt.Add(-time.Hour), &boundaryAt)
	insertReservation(t, db, titleID, enums.ReservationStatusPending, staleAt, nil)

	found, err := repo.ListAvailableBefore(ctx, cutoff)
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, stale.ID, found[0].ID)
	assert.Equal(t, boundary.ID, found[1].ID)
}

func TestUpdateFieldsAndDelete(t *testing.T) {
	t.Parallel()

	db := setupReservationsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	reservation := insertReservation(t, db, uuid.New(), enums.ReservationStatusPending, time.Now().UTC(), nil)
	unit := uuid.New()
	err := repo.UpdateFields(ctx, reservation.ID, map[string]any{
		"status":              enums.ReservationStatusAvailable,
		"assigned_stock_unit": unit,
	})
	require.NoError(t, err)

	stored, err := repo.FindByID(ctx, reservation.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.ReservationStatusAvailable, stored.Status)
	require.NotNil(t, stored.AssignedStockUnit)
	assert.Equal(t, unit, *stored.AssignedStockUnit)

	require.NoError(t, repo.Delete(ctx, reservation.ID))
	_, err = repo.FindByID(ctx, reservation.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
