package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/stockroomhq/stockroom-backend/pkg/enums"
)

// Notification is a generated alert. Stock alerts (low_stock/empty_stock) are
// unique per (type, product_id); Metadata snapshots available/threshold at
// generation time.
type Notification struct {
	ID         uuid.UUID                  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Type       enums.NotificationType     `gorm:"column:type;type:notification_type;not null"`
	ProductID  *uuid.UUID                 `gorm:"column:product_id;type:uuid;index"`
	TargetRole *enums.UserRole            `gorm:"column:target_role;type:user_role"`
	Priority   enums.NotificationPriority `gorm:"column:priority;type:notification_priority;not null;default:'medium'"`
	Title      string                     `gorm:"column:title;type:text;not null"`
	Message    string                     `gorm:"column:message;type:text;not null"`
	Metadata   datatypes.JSON             `gorm:"column:metadata;type:jsonb"`
	CreatedAt  time.Time                  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time                  `gorm:"column:updated_at;autoUpdateTime"`

	States []NotificationState `gorm:"foreignKey:NotificationID;constraint:OnDelete:CASCADE"`
}

// NotificationState is the per-user read marker. Rows are deleted (not
// flagged) when a notification is refreshed so the alert reappears unread.
type NotificationState struct {
	ID             uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	NotificationID uuid.UUID  `gorm:"column:notification_id;type:uuid;not null;uniqueIndex:idx_notification_state_user"`
	UserID         uuid.UUID  `gorm:"column:user_id;type:uuid;not null;uniqueIndex:idx_notification_state_user"`
	IsRead         bool       `gorm:"column:is_read;not null;default:false"`
	ReadAt         *time.Time `gorm:"column:read_at;type:timestamptz"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime"`
}
