package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stockroomhq/stockroom-backend/pkg/db/models"
	"github.com/stockroomhq/stockroom-backend/pkg/enums"
	"github.com/stockroomhq/stockroom-backend/pkg/pagination"
)

// Service defines read and append operations over the ledger. Ledger rows
// are never updated or deleted.
type Service interface {
	Record(ctx context.Context, input RecordOperationInput) (*models.InventoryOperation, error)
	ListByProduct(ctx context.Context, productID uuid.UUID, params pagination.Params) (*ListResult, error)
	ListByItem(ctx context.Context, itemID uuid.UUID, params pagination.Params) (*ListResult, error)
	ListAll(ctx context.Context, filter Filter, params pagination.Params) (*ListResult, error)
}

// RecordOperationInput captures the immutable data one ledger row requires.
type RecordOperationInput struct {
	Type            enums.OperationType
	ProductID       uuid.UUID
	InventoryItemID uuid.UUID
	UserID          uuid.UUID
	Quantity        int
	QuantityBefore  int
	QuantityAfter   int
	FromLocation    *string
	ToLocation      *string
	Notes           *string
	OperationDate   time.Time
}

type service struct {
	repo Repository
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Record(ctx context.Context, input RecordOperationInput) (*models.InventoryOperation, error) {
	op, err := BuildOperation(input)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, op); err != nil {
		return nil, err
	}
	return op, nil
}

// BuildOperation validates the input and materializes a ledger row without
// persisting it. The stock processor uses this to insert inside its own tx.
func BuildOperation(input RecordOperationInput) (*models.InventoryOperation, error) {
	if !input.Type.IsValid() {
		return nil, fmt.Errorf("invalid operation type %q", input.Type)
	}
	if input.ProductID == uuid.Nil {
		return nil, fmt.Errorf("product id is required")
	}
	if input.InventoryItemID == uuid.Nil {
		return nil, fmt.Errorf("inventory item id is required")
	}
	if input.UserID == uuid.Nil {
		return nil, fmt.Errorf("user id is required")
	}
	if input.Quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive")
	}

	operationDate := input.OperationDate
	if operationDate.IsZero() {
		operationDate = time.Now().UTC()
	}

	return &models.InventoryOperation{
		OperationType:   input.Type,
		ProductID:       input.ProductID,
		InventoryItemID: input.InventoryItemID,
		UserID:          input.UserID,
		Quantity:        input.Quantity,
		QuantityBefore:  input.QuantityBefore,
		QuantityAfter:   input.QuantityAfter,
		FromLocation:    input.FromLocation,
		ToLocation:      input.ToLocation,
		Notes:           input.Notes,
		OperationDate:   operationDate,
	}, nil
}

func (s *service) ListByProduct(ctx context.Context, productID uuid.UUID, params pagination.Params) (*ListResult, error) {
	if productID == uuid.Nil {
		return nil, fmt.Errorf("product id is required")
	}
	return s.repo.List(ctx, Filter{ProductID: &productID}, params)
}

func (s *service) ListByItem(ctx context.Context, itemID uuid.UUID, params pagination.Params) (*ListResult, error) {
	if itemID == uuid.Nil {
		return nil, fmt.Errorf("inventory item id is required")
	}
	return s.repo.List(ctx, Filter{ItemID: &itemID}, params)
}

func (s *service) ListAll(ctx context.Context, filter Filter, params pagination.Params) (*ListResult, error) {
	return s.repo.List(ctx, filter, params)
}
