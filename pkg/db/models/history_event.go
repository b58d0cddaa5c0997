package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/calebmorton/shelfline-backend/pkg/enums"
)

// HistoryEvent is one append-only audit record of a circulation fact.
type HistoryEvent struct {
	ID            uuid.UUID              `gorm:"type:uuid;primaryKey"`
	MemberID      uuid.UUID              `gorm:"type:uuid;not null;index"`
	EventType     enums.HistoryEventType `gorm:"type:text;not null"`
	LoanID        *uuid.UUID             `gorm:"type:uuid"`
	ReservationID *uuid.UUID             `gorm:"type:uuid"`
	Note          string                 `gorm:"type:text"`
	CreatedAt     time.Time              `gorm:"autoCreateTime"`
}
