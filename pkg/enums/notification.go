package enums

import "fmt"

// NotificationType describes the allowed values for the `type` column in notifications.
type NotificationType string

const (
	NotificationTypeLowStock   NotificationType = "low_stock"
	NotificationTypeEmptyStock NotificationType = "empty_stock"
	NotificationTypeSystem     NotificationType = "system"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeLowStock,
	NotificationTypeEmptyStock,
	NotificationTypeSystem,
}

// IsValid reports whether the value matches the canonical notification type enum.
func (n NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// IsStockAlert reports whether this type participates in the one-active-alert-
// per-product uniqueness rule.
func (n NotificationType) IsStockAlert() bool {
	return n == NotificationTypeLowStock || n == NotificationTypeEmptyStock
}

// ParseNotificationType converts the raw string to NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}

// NotificationPriority orders notifications in the inbox.
type NotificationPriority string

const (
	NotificationPriorityLow    NotificationPriority = "low"
	NotificationPriorityMedium NotificationPriority = "medium"
	NotificationPriorityHigh   NotificationPriority = "high"
	NotificationPriorityUrgent NotificationPriority = "urgent"
)

var validNotificationPriorities = []NotificationPriority{
	NotificationPriorityLow,
	NotificationPriorityMedium,
	NotificationPriorityHigh,
	NotificationPriorityUrgent,
}

// IsValid reports whether the value is a known NotificationPriority.
func (n NotificationPriority) IsValid() bool {
	for _, candidate := range validNotificationPriorities {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationPriority converts the raw string to NotificationPriority.
func ParseNotificationPriority(value string) (NotificationPriority, error) {
	for _, candidate := range validNotificationPriorities {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification priority %q", value)
}
