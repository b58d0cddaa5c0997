package enums

import "fmt"

// NotificationKind labels in-app circulation notifications.
type NotificationKind string

const (
	NotificationKindReservationReady NotificationKind = "reservation_ready"
	NotificationKindDueSoon          NotificationKind = "due_soon"
	NotificationKindOverdue          NotificationKind = "overdue"
)

var validNotificationKinds = []NotificationKind{
	NotificationKindReservationReady,
	NotificationKindDueSoon,
	NotificationKindOverdue,
}

// IsValid checks whether the given kind matches the canonical enum.
func (n NotificationKind) IsValid() bool {
	for _, candidate := range validNotificationKinds {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationKind converts raw strings into NotificationKind.
func ParseNotificationKind(value string) (NotificationKind, error) {
	for _, candidate := range validNotificationKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification kind %q", value)
}
