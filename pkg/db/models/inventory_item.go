package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/stockroomhq/stockroom-backend/pkg/enums"
)

// InventoryItem is one stock lot of a product at one location.
//
// Invariant: 0 <= ReservedQuantity <= Quantity, enforced by the stock
// operation processor inside the same transaction that writes the ledger row.
type InventoryItem struct {
	ID               uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID        uuid.UUID           `gorm:"column:product_id;type:uuid;not null;index"`
	Location         string              `gorm:"column:location;not null;index"`
	Quantity         int                 `gorm:"column:quantity;not null;default:0"`
	ReservedQuantity int                 `gorm:"column:reserved_quantity;not null;default:0"`
	Condition        enums.ItemCondition `gorm:"column:condition;type:item_condition;not null;default:'good'"`
	FlowStatus       enums.FlowStatus    `gorm:"column:flow_status;type:flow_status;not null;default:'available'"`
	BatchNumber      *string             `gorm:"column:batch_number"`
	Supplier         *string             `gorm:"column:supplier"`
	ReceivedAt       *time.Time          `gorm:"column:received_at;type:timestamptz"`
	ExpiresAt        *time.Time          `gorm:"column:expires_at;type:timestamptz"`
	LastUpdatedBy    *uuid.UUID          `gorm:"column:last_updated_by;type:uuid"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// Available returns the free balance of the lot, floored at zero.
func (i InventoryItem) Available() int {
	available := i.Quantity - i.ReservedQuantity
	if available < 0 {
		return 0
	}
	return available
}
