package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Loan records one member borrowing one physical unit of a title. A nil
// ReturnDate means the loan is still active. Fine is set once, at return time.
type Loan struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	TitleID       uuid.UUID `gorm:"type:uuid;not null;index"`
	MemberID      uuid.UUID `gorm:"type:uuid;not null;index"`
	StockRecordID uuid.UUID `gorm:"type:uuid;not null"`
	LoanDate      time.Time `gorm:"not null"`
	DueDate       time.Time `gorm:"not null;index"`
	ReturnDate    *time.Time
	Fine          decimal.Decimal `gorm:"type:numeric(10,2);not null;default:0"`
	CreatedAt     time.Time       `gorm:"autoCreateTime"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime"`
}

// IsActive reports whether the loan has not been returned yet.
func (l Loan) IsActive() bool {
	return l.ReturnDate == nil
}
