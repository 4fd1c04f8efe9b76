package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stockroomhq/stockroom-backend/pkg/enums"
)

// Product is a catalog entry, independent of where its stock sits.
//
// MinStockLevel and ReorderPoint both feed the low-stock notifier; the larger
// of the two acts as the alert threshold. Zero on both disables alerting.
type Product struct {
	ID            uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SKU           string                `gorm:"column:sku;not null;uniqueIndex"`
	Name          string                `gorm:"column:name;not null"`
	Description   *string               `gorm:"column:description"`
	Category      enums.ProductCategory `gorm:"column:category;type:product_category;not null"`
	Unit          string                `gorm:"column:unit;not null;default:'unit'"`
	Price         decimal.Decimal       `gorm:"column:price;type:numeric(12,2);not null;default:0"`
	MinStockLevel int                   `gorm:"column:min_stock_level;not null;default:0"`
	ReorderPoint  int                   `gorm:"column:reorder_point;not null;default:0"`
	IsActive      bool                  `gorm:"column:is_active;not null;default:true"`
	Items         []InventoryItem       `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

// AlertThreshold returns the quantity at or below which the product is
// considered low on stock.
func (p Product) AlertThreshold() int {
	if p.MinStockLevel > p.ReorderPoint {
		return p.MinStockLevel
	}
	return p.ReorderPoint
}
