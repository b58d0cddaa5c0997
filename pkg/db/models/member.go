package models

import (
	"time"

	"github.com/google/uuid"
)

// Member is the minimal projection of a library member the circulation core
// needs. Member profiles are owned by the surrounding membership system.
type Member struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Email     string    `gorm:"type:text;not null;uniqueIndex"`
	FullName  string    `gorm:"type:text;not null"`
	IsActive  bool      `gorm:"not null;default:true"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}
