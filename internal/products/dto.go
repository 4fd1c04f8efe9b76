package products

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stockroomhq/stockroom-backend/pkg/db/models"
	"github.com/stockroomhq/stockroom-backend/pkg/enums"
)

// ProductDTO is the catalog read model. Available is set only on read paths
// that computed it.
type ProductDTO struct {
	ID            uuid.UUID             `json:"id"`
	SKU           string                `json:"sku"`
	Name          string                `json:"name"`
	Description   *string               `json:"description,omitempty"`
	Category      enums.ProductCategory `json:"category"`
	Unit          string                `json:"unit"`
	Price         decimal.Decimal       `json:"price"`
	MinStockLevel int                   `json:"min_stock_level"`
	ReorderPoint  int                   `json:"reorder_point"`
	IsActive      bool                  `json:"is_active"`
	Available     *int                  `json:"available,omitempty"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
}

// ListDTO wraps one page of products.
type ListDTO struct {
	Products   []ProductDTO `json:"products"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

// NewProductDTO maps the model onto the read DTO.
func NewProductDTO(product *models.Product, available *int) *ProductDTO {
	if product == nil {
		return nil
	}
	return &ProductDTO{
		ID:            product.ID,
		SKU:           product.SKU,
		Name:          product.Name,
		Description:   product.Description,
		Category:      product.Category,
		Unit:          product.Unit,
		Price:         product.Price,
		MinStockLevel: product.MinStockLevel,
		ReorderPoint:  product.ReorderPoint,
		IsActive:      product.IsActive,
		Available:     available,
		CreatedAt:     product.CreatedAt,
		UpdatedAt:     product.UpdatedAt,
	}
}
