package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stockroomhq/stockroom-backend/pkg/db/models"
	"github.com/stockroomhq/stockroom-backend/pkg/enums"
	"github.com/stockroomhq/stockroom-backend/pkg/pagination"
)

// Filter narrows ledger listings. Nil fields are ignored.
type Filter struct {
	ProductID *uuid.UUID
	ItemID    *uuid.UUID
	Type      *enums.OperationType
	From      *time.Time
	To        *time.Time
}

// ListResult is one cursor page of ledger rows.
type ListResult struct {
	Operations []models.InventoryOperation
	NextCursor string
}

// Repository manages persistence for the append-only operations ledger.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, op *models.InventoryOperation) error
	List(ctx context.Context, filter Filter, params pagination.Params) (*ListResult, error)
	ForEach(ctx context.Context, filter Filter, batchSize int, fn func(ops []models.InventoryOperation) error) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, op *models.InventoryOperation) error {
	return r.db.WithContext(ctx).Create(op).Error
}

func (r *repository) List(ctx context.Context, filter Filter, params pagination.Params) (*ListResult, error) {
	pageSize := pagination.NormalizeLimit(params.Limit)
	limitWithBuffer := pagination.LimitWithBuffer(params.Limit)

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}

	qb := applyFilter(r.db.WithContext(ctx).Model(&models.InventoryOperation{}), filter)
	if cursor != nil {
		qb = qb.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []models.InventoryOperation
	if err := qb.Order("created_at DESC").Order("id DESC").Limit(limitWithBuffer).Find(&rows).Error; err != nil {
		return nil, err
	}

	nextCursor := ""
	if len(rows) > pageSize {
		rows = rows[:pageSize]
		last := rows[len(rows)-1]
		nextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}

	return &ListResult{Operations: rows, NextCursor: nextCursor}, nil
}

// ForEach walks matching ledger rows in batches, oldest first. Used by the
// CSV exporter so the whole ledger never sits in memory.
func (r *repository) ForEach(ctx context.Context, filter Filter, batchSize int, fn func(ops []models.InventoryOperation) error) error {
	if batchSize <= 0 {
		batchSize = 500
	}

	var rows []models.InventoryOperation
	qb := applyFilter(r.db.WithContext(ctx).Model(&models.InventoryOperation{}), filter).
		Order("created_at ASC").Order("id ASC")

	return qb.FindInBatches(&rows, batchSize, func(tx *gorm.DB, batch int) error {
		return fn(rows)
	}).Error
}

func applyFilter(qb *gorm.DB, filter Filter) *gorm.DB {
	if filter.ProductID != nil {
		qb = qb.Where("product_id = ?", *filter.ProductID)
	}
	if filter.ItemID != nil {
		qb = qb.Where("inventory_item_id = ?", *filter.ItemID)
	}
	if filter.Type != nil {
		qb = qb.Where("operation_type = ?", *filter.Type)
	}
	if filter.From != nil {
		qb = qb.Where("operation_date >= ?", *filter.From)
	}
	if filter.To != nil {
		qb = qb.Where("operation_date <= ?", *filter.To)
	}
	return qb
}
