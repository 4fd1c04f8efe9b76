package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/stockroomhq/stockroom-backend/pkg/db/models"
	"github.com/stockroomhq/stockroom-backend/pkg/enums"
	"github.com/stockroomhq/stockroom-backend/pkg/pagination"
)

var stockAlertTypes = []enums.NotificationType{
	enums.NotificationTypeLowStock,
	enums.NotificationTypeEmptyStock,
}

// Repository exposes persistence helpers for notifications and per-user
// read state.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, notification *models.Notification) error
	Save(ctx context.Context, notification *models.Notification) error
	FindStockAlert(ctx context.Context, productID uuid.UUID, alertType enums.NotificationType) (*models.Notification, error)
	DeleteStockAlerts(ctx context.Context, productID uuid.UUID, alertTypes ...enums.NotificationType) error
	ClearStates(ctx context.Context, notificationID uuid.UUID) error
	CountActiveStockAlerts(ctx context.Context) (int64, error)
	List(ctx context.Context, params listInboxParams) ([]InboxEntry, *pagination.Cursor, error)
	MarkRead(ctx context.Context, userID, notificationID uuid.UUID, role enums.UserRole, now time.Time) (markResult, error)
	MarkAllRead(ctx context.Context, userID uuid.UUID, role enums.UserRole, now time.Time) (int64, error)
	UnreadCount(ctx context.Context, userID uuid.UUID, role enums.UserRole) (int64, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a notifications repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

type listInboxParams struct {
	UserID     uuid.UUID
	Role       enums.UserRole
	Limit      int
	Cursor     *pagination.Cursor
	UnreadOnly bool
}

type markResult struct {
	Updated bool
	Found   bool
}

// InboxEntry is a notification row paired with the caller's read flag.
type InboxEntry struct {
	Notification models.Notification
	IsRead       bool
	ReadAt       *time.Time
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, notification *models.Notification) error {
	return r.db.WithContext(ctx).Create(notification).Error
}

func (r *repositoryImpl) Save(ctx context.Context, notification *models.Notification) error {
	return r.db.WithContext(ctx).Save(notification).Error
}

func (r *repositoryImpl) FindStockAlert(ctx context.Context, productID uuid.UUID, alertType enums.NotificationType) (*models.Notification, error) {
	var notification models.Notification
	if err := r.db.WithContext(ctx).
		Where("type = ? AND product_id = ?", alertType, productID).
		First(&notification).Error; err != nil {
		return nil, err
	}
	return &notification, nil
}

func (r *repositoryImpl) DeleteStockAlerts(ctx context.Context, productID uuid.UUID, alertTypes ...enums.NotificationType) error {
	if len(alertTypes) == 0 {
		alertTypes = stockAlertTypes
	}
	return r.db.WithContext(ctx).
		Where("product_id = ? AND type IN ?", productID, alertTypes).
		Delete(&models.Notification{}).Error
}

// ClearStates drops every read marker so a refreshed alert shows unread again.
func (r *repositoryImpl) ClearStates(ctx context.Context, notificationID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("notification_id = ?", notificationID).
		Delete(&models.NotificationState{}).Error
}

func (r *repositoryImpl) CountActiveStockAlerts(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("type IN ?", stockAlertTypes).
		Count(&count).Error
	return count, err
}

func visibleTo(qb *gorm.DB, role enums.UserRole) *gorm.DB {
	return qb.Where("notifications.target_role IS NULL OR notifications.target_role = ?", role)
}

func (r *repositoryImpl) List(ctx context.Context, params listInboxParams) ([]InboxEntry, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)

	type inboxRow struct {
		models.Notification
		StateIsRead *bool
		StateReadAt *time.Time
	}

	query := visibleTo(r.db.WithContext(ctx).Model(&models.Notification{}), params.Role).
		Select("notifications.*, ns.is_read AS state_is_read, ns.read_at AS state_read_at").
		Joins("LEFT JOIN notification_states ns ON ns.notification_id = notifications.id AND ns.user_id = ?", params.UserID)
	if params.UnreadOnly {
		query = query.Where("ns.is_read IS NULL OR ns.is_read = ?", false)
	}
	if params.Cursor != nil {
		query = query.Where("(notifications.created_at < ?) OR (notifications.created_at = ? AND notifications.id < ?)",
			params.Cursor.CreatedAt, params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var rows []inboxRow
	if err := query.Order("notifications.created_at DESC, notifications.id DESC").Limit(limit).Scan(&rows).Error; err != nil {
		return nil, nil, err
	}

	var next *pagination.Cursor
	if len(rows) > normalized {
		boundary := rows[normalized]
		rows = rows[:normalized]
		next = &pagination.Cursor{CreatedAt: boundary.CreatedAt, ID: boundary.ID}
	}

	entries := make([]InboxEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, InboxEntry{
			Notification: row.Notification,
			IsRead:       row.StateIsRead != nil && *row.StateIsRead,
			ReadAt:       row.StateReadAt,
		})
	}
	return entries, next, nil
}

func (r *repositoryImpl) MarkRead(ctx context.Context, userID, notificationID uuid.UUID, role enums.UserRole, now time.Time) (markResult, error) {
	var count int64
	if err := visibleTo(r.db.WithContext(ctx).Model(&models.Notification{}), role).
		Where("notifications.id = ?", notificationID).
		Count(&count).Error; err != nil {
		return markResult{}, err
	}
	if count == 0 {
		return markResult{Found: false}, nil
	}

	state := models.NotificationState{
		NotificationID: notificationID,
		UserID:         userID,
		IsRead:         true,
		ReadAt:         &now,
	}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "notification_id"}, {Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]any{"is_read": true, "read_at": now}),
		}).
		Create(&state).Error; err != nil {
		return markResult{}, err
	}
	return markResult{Found: true, Updated: true}, nil
}

func (r *repositoryImpl) MarkAllRead(ctx context.Context, userID uuid.UUID, role enums.UserRole, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Exec(`
INSERT INTO notification_states (notification_id, user_id, is_read, read_at)
SELECT n.id, ?, TRUE, ?
FROM notifications n
WHERE (n.target_role IS NULL OR n.target_role = ?)
ON CONFLICT (notification_id, user_id)
DO UPDATE SET is_read = TRUE, read_at = EXCLUDED.read_at`,
		userID, now, role)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *repositoryImpl) UnreadCount(ctx context.Context, userID uuid.UUID, role enums.UserRole) (int64, error) {
	var count int64
	err := visibleTo(r.db.WithContext(ctx).Model(&models.Notification{}), role).
		Joins("LEFT JOIN notification_states ns ON ns.notification_id = notifications.id AND ns.user_id = ?", userID).
		Where("ns.is_read IS NULL OR ns.is_read = ?", false).
		Count(&count).Error
	return count, err
}
