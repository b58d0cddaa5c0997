package models

import (
	"time"

	"github.com/google/uuid"
)

// StockRecord counts the physical copies of one title currently on the shelf.
// Quantity never goes negative; every decrement is paired with an active loan
// or an available reservation holding the unit.
type StockRecord struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	TitleID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	Quantity  int       `gorm:"not null;default:0"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// IsAvailable reports whether at least one copy is free right now.
func (s StockRecord) IsAvailable() bool {
	return s.Quantity > 0
}
