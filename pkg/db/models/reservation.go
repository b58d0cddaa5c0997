package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/calebmorton/shelfline-backend/pkg/enums"
)

// Reservation queues a member for a title with no free copies. When a copy is
// returned the oldest pending reservation is promoted to available and holds
// the freed unit until pickup or expiry.
type Reservation struct {
	ID                uuid.UUID               `gorm:"type:uuid;primaryKey"`
	TitleID           uuid.UUID               `gorm:"type:uuid;not null;index"`
	MemberID          uuid.UUID               `gorm:"type:uuid;not null;index"`
	Status            enums.ReservationStatus `gorm:"type:text;not null;index"`
	AssignedStockUnit *uuid.UUID              `gorm:"type:uuid"`
	AvailableAt       *time.Time
	CreatedAt         time.Time `gorm:"not null"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime"`
}

// IsActive reports whether the reservation still occupies the member's slot
// for the title (pending in the queue or holding a unit).
func (r Reservation) IsActive() bool {
	return r.Status == enums.ReservationStatusPending || r.Status == enums.ReservationStatusAvailable
}
