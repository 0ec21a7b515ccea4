package enums

import "fmt"

// NotificationType maps to the notification_type enum in Postgres.
type NotificationType string

const (
	// NotificationTypeLowStock fires when an item crosses its low-stock threshold.
	NotificationTypeLowStock NotificationType = "low_stock"
	// NotificationTypeNewRequest fires when a teacher submits a request.
	NotificationTypeNewRequest NotificationType = "new_request"
	// NotificationTypeRequestStatus fires when a request is approved or rejected.
	NotificationTypeRequestStatus NotificationType = "request_status"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeLowStock,
	NotificationTypeNewRequest,
	NotificationTypeRequestStatus,
}

// IsValid checks whether the given type matches the canonical enum.
func (n NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw strings into NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}
