package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/stockroomhq/stockroom-backend/pkg/enums"
)

// InventoryOperation is an immutable ledger entry for one stock-changing
// event. Rows are only ever inserted; the before/after quantities make the
// ledger the audit trail for every lot.
type InventoryOperation struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OperationType   enums.OperationType `gorm:"column:operation_type;type:operation_type;not null"`
	ProductID       uuid.UUID           `gorm:"column:product_id;type:uuid;not null;index"`
	InventoryItemID uuid.UUID           `gorm:"column:inventory_item_id;type:uuid;not null;index"`
	UserID          uuid.UUID           `gorm:"column:user_id;type:uuid;not null"`
	Quantity        int                 `gorm:"column:quantity;not null"`
	QuantityBefore  int                 `gorm:"column:quantity_before;not null"`
	QuantityAfter   int                 `gorm:"column:quantity_after;not null"`
	FromLocation    *string             `gorm:"column:from_location"`
	ToLocation      *string             `gorm:"column:to_location"`
	Notes           *string             `gorm:"column:notes"`
	OperationDate   time.Time           `gorm:"column:operation_date;type:timestamptz;not null"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
}
