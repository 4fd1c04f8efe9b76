package inventory

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/stockroomhq/stockroom-backend/pkg/db/models"
	"github.com/stockroomhq/stockroom-backend/pkg/enums"
	"github.com/stockroomhq/stockroom-backend/pkg/pagination"
)

// ItemFilter narrows inventory listings. Nil fields are ignored.
type ItemFilter struct {
	ProductID  *uuid.UUID
	Location   *string
	FlowStatus *enums.FlowStatus
	Condition  *enums.ItemCondition
}

// ItemListResult is one cursor page of inventory items.
type ItemListResult struct {
	Items      []models.InventoryItem
	NextCursor string
}

// Repository defines persistence operations for inventory items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, item *models.InventoryItem) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.InventoryItem, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.InventoryItem, error)
	FindSiblingForUpdate(ctx context.Context, productID uuid.UUID, location string, condition enums.ItemCondition) (*models.InventoryItem, error)
	Save(ctx context.Context, item *models.InventoryItem) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter ItemFilter, params pagination.Params) (*ItemListResult, error)
	SumAvailability(ctx context.Context, productID uuid.UUID) (int, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, item *models.InventoryItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.InventoryItem, error) {
	var item models.InventoryItem
	if err := r.db.WithContext(ctx).First(&item, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// FindByIDForUpdate loads the item row under FOR UPDATE. Callers must hold an
// open transaction; the lock serializes concurrent stock operations per lot.
func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.InventoryItem, error) {
	var item models.InventoryItem
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&item, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// FindSiblingForUpdate locates the lot for the same product and condition at
// the given location, locking it when found. Returns gorm.ErrRecordNotFound
// when no such lot exists.
func (r *repository) FindSiblingForUpdate(ctx context.Context, productID uuid.UUID, location string, condition enums.ItemCondition) (*models.InventoryItem, error) {
	var item models.InventoryItem
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("product_id = ? AND location = ? AND condition = ?", productID, location, condition).
		Order("created_at ASC").
		First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) Save(ctx context.Context, item *models.InventoryItem) error {
	return r.db.WithContext(ctx).Save(item).Error
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.InventoryItem{}).Error
}

func (r *repository) List(ctx context.Context, filter ItemFilter, params pagination.Params) (*ItemListResult, error) {
	pageSize := pagination.NormalizeLimit(params.Limit)
	limitWithBuffer := pagination.LimitWithBuffer(params.Limit)

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}

	qb := r.db.WithContext(ctx).Model(&models.InventoryItem{})
	if filter.ProductID != nil {
		qb = qb.Where("product_id = ?", *filter.ProductID)
	}
	if filter.Location != nil {
		qb = qb.Where("location = ?", *filter.Location)
	}
	if filter.FlowStatus != nil {
		qb = qb.Where("flow_status = ?", *filter.FlowStatus)
	}
	if filter.Condition != nil {
		qb = qb.Where("condition = ?", *filter.Condition)
	}
	if cursor != nil {
		qb = qb.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []models.InventoryItem
	if err := qb.Order("created_at DESC").Order("id DESC").Limit(limitWithBuffer).Find(&rows).Error; err != nil {
		return nil, err
	}

	nextCursor := ""
	if len(rows) > pageSize {
		rows = rows[:pageSize]
		last := rows[len(rows)-1]
		nextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}

	return &ItemListResult{Items: rows, NextCursor: nextCursor}, nil
}

// SumAvailability computes the product's free balance across sellable lots.
// Lots in transit or damaged do not count; negative free balances clamp to 0.
func (r *repository) SumAvailability(ctx context.Context, productID uuid.UUID) (int, error) {
	var total int
	err := r.db.WithContext(ctx).
		Model(&models.InventoryItem{}).
		Select("COALESCE(SUM(CASE WHEN quantity - reserved_quantity > 0 THEN quantity - reserved_quantity ELSE 0 END), 0)").
		Where("product_id = ?", productID).
		Where("flow_status NOT IN ?", []enums.FlowStatus{enums.FlowStatusInTransit, enums.FlowStatusDamaged}).
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}
