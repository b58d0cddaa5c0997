package enums

import "fmt"

// HistoryEventType labels entries in the circulation audit trail.
type HistoryEventType string

const (
	HistoryEventLoan                 HistoryEventType = "loan"
	HistoryEventReturn               HistoryEventType = "return"
	HistoryEventLoanCorrected        HistoryEventType = "loan_corrected"
	HistoryEventLoanDeleted          HistoryEventType = "loan_deleted"
	HistoryEventReservationPlaced    HistoryEventType = "reservation_placed"
	HistoryEventReservationPromoted  HistoryEventType = "reservation_promoted"
	HistoryEventReservationCompleted HistoryEventType = "reservation_completed"
	HistoryEventReservationCancelled HistoryEventType = "reservation_cancelled"
	HistoryEventReservationExpired   HistoryEventType = "reservation_expired"
	HistoryEventReservationCorrected HistoryEventType = "reservation_corrected"
	HistoryEventStockAdjusted        HistoryEventType = "stock_adjusted"
	HistoryEventDueSoonReminder      HistoryEventType = "due_soon_reminder"
	HistoryEventOverdueReminder      HistoryEventType = "overdue_reminder"
)

var validHistoryEventTypes = []HistoryEventType{
	HistoryEventLoan,
	HistoryEventReturn,
	HistoryEventLoanCorrected,
	HistoryEventLoanDeleted,
	HistoryEventReservationPlaced,
	HistoryEventReservationPromoted,
	HistoryEventReservationCompleted,
	HistoryEventReservationCancelled,
	HistoryEventReservationExpired,
	HistoryEventReservationCorrected,
	HistoryEventStockAdjusted,
	HistoryEventDueSoonReminder,
	HistoryEventOverdueReminder,
}

// IsValid checks whether the given type matches the canonical enum.
func (h HistoryEventType) IsValid() bool {
	for _, candidate := range validHistoryEventTypes {
		if candidate == h {
			return true
		}
	}
	return false
}

// ParseHistoryEventType converts raw strings into HistoryEventType.
func ParseHistoryEventType(value string) (HistoryEventType, error) {
	for _, candidate := range validHistoryEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid history event type %q", value)
}
