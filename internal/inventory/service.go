package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stockroomhq/stockroom-backend/internal/ledger"
	"github.com/stockroomhq/stockroom-backend/pkg/db/models"
	"github.com/stockroomhq/stockroom-backend/pkg/enums"
	pkgerrors "github.com/stockroomhq/stockroom-backend/pkg/errors"
	"github.com/stockroomhq/stockroom-backend/pkg/logger"
	"github.com/stockroomhq/stockroom-backend/pkg/metrics"
	"github.com/stockroomhq/stockroom-backend/pkg/pagination"
)

// Reconciler recomputes stock alerts for one product. The stock processor
// invokes it after every committed operation; failures must never roll back
// or fail the operation itself.
type Reconciler interface {
	Reconcile(ctx context.Context, productID uuid.UUID) error
}

// Service exposes the stock operation processor and item management.
type Service interface {
	Apply(ctx context.Context, input ApplyInput) (*OperationResult, error)
	Transfer(ctx context.Context, input TransferInput) (*OperationResult, error)
	Available(ctx context.Context, productID uuid.UUID) (int, error)
	CreateItem(ctx context.Context, input CreateItemInput) (*models.InventoryItem, error)
	GetItem(ctx context.Context, id uuid.UUID) (*models.InventoryItem, error)
	ListItems(ctx context.Context, filter ItemFilter, params pagination.Params) (*ItemListResult, error)
	UpdateItem(ctx context.Context, id uuid.UUID, input UpdateItemInput) (*models.InventoryItem, error)
	DeleteItem(ctx context.Context, id uuid.UUID) error
}

// ApplyInput is one stock operation against a single lot. Quantity is
// positive except for adjustment, where a negative value decrements.
type ApplyInput struct {
	ItemID        uuid.UUID
	Type          enums.OperationType
	Quantity      int
	ActorID       uuid.UUID
	Notes         *string
	OperationDate time.Time
}

// TransferInput moves stock between locations for the same product.
type TransferInput struct {
	SourceItemID   uuid.UUID
	TargetLocation string
	Quantity       int
	ActorID        uuid.UUID
	Notes          *string
}

// CreateItemInput receives new stock into a location.
type CreateItemInput struct {
	ProductID   uuid.UUID
	Location    string
	Quantity    int
	Condition   enums.ItemCondition
	BatchNumber *string
	Supplier    *string
	ReceivedAt  *time.Time
	ExpiresAt   *time.Time
	ActorID     uuid.UUID
}

// UpdateItemInput mutates item metadata. Quantity changes go through Apply.
type UpdateItemInput struct {
	Location    *string
	Condition   *enums.ItemCondition
	FlowStatus  *enums.FlowStatus
	BatchNumber *string
	Supplier    *string
	ReceivedAt  *time.Time
	ExpiresAt   *time.Time
	ActorID     uuid.UUID
}

// OperationResult carries the committed ledger row and the touched lots.
// Item is nil when the operation drained and deleted the lot.
type OperationResult struct {
	Operation       *models.InventoryOperation
	Item            *models.InventoryItem
	DestinationItem *models.InventoryItem
	ItemDeleted     bool
}

type productLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

// txRunner is the transaction surface of db.Client the processor needs.
type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo       Repository
	ledgerRepo ledger.Repository
	products   productLoader
	dbClient   txRunner
	reconciler Reconciler
	logg       *logger.Logger
	stats      *metrics.StockMetrics
}

// NewService constructs the stock operation processor. The reconciler and
// stats sink are optional.
func NewService(repo Repository, ledgerRepo ledger.Repository, products productLoader, dbClient txRunner, reconciler Reconciler, logg *logger.Logger, stats *metrics.StockMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if ledgerRepo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("product loader required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:       repo,
		ledgerRepo: ledgerRepo,
		products:   products,
		dbClient:   dbClient,
		reconciler: reconciler,
		logg:       logg,
		stats:      stats,
	}, nil
}

// Apply executes one in/out/adjustment/reservation/release operation against
// a lot. The row lock, item update, and ledger insert commit atomically.
func (s *service) Apply(ctx context.Context, input ApplyInput) (*OperationResult, error) {
	if err := validateApplyInput(input); err != nil {
		return nil, err
	}

	var result OperationResult
	if err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		item, err := txRepo.FindByIDForUpdate(ctx, input.ItemID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "inventory item not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock inventory item")
		}

		before := item.Quantity
		if err := s.mutateItem(item, input); err != nil {
			return err
		}

		item.LastUpdatedBy = &input.ActorID
		if err := txRepo.Save(ctx, item); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update inventory item")
		}

		op, err := ledger.BuildOperation(ledger.RecordOperationInput{
			Type:            input.Type,
			ProductID:       item.ProductID,
			InventoryItemID: item.ID,
			UserID:          input.ActorID,
			Quantity:        absInt(input.Quantity),
			QuantityBefore:  before,
			QuantityAfter:   item.Quantity,
			Notes:           input.Notes,
			OperationDate:   input.OperationDate,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "build ledger row")
		}
		if err := s.ledgerRepo.WithTx(tx).Create(ctx, op); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert ledger row")
		}

		// Lots fully issued via `out` disappear from the floor.
		if input.Type == enums.OperationTypeOut && item.Quantity == 0 {
			if err := txRepo.Delete(ctx, item.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: delete drained item")
			}
			result = OperationResult{Operation: op, ItemDeleted: true}
			return nil
		}

		result = OperationResult{Operation: op, Item: item}
		return nil
	}); err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			s.countRejection(typed)
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply stock operation")
	}

	s.stats.IncOperation(input.Type)
	s.reconcileAfterCommit(ctx, result.Operation.ProductID)
	return &result, nil
}

func (s *service) mutateItem(item *models.InventoryItem, input ApplyInput) error {
	switch input.Type {
	case enums.OperationTypeIn:
		item.Quantity += input.Quantity

	case enums.OperationTypeOut:
		if item.FlowStatus.BlocksIssue() {
			return pkgerrors.New(pkgerrors.CodeItemBlocked,
				fmt.Sprintf("item is %s and cannot be issued", item.FlowStatus)).
				WithDetails(map[string]any{"flow_status": item.FlowStatus})
		}
		available := item.Available()
		if input.Quantity > available {
			return pkgerrors.New(pkgerrors.CodeInsufficientStock, "requested quantity exceeds available stock").
				WithDetails(map[string]any{"available": available, "requested": input.Quantity})
		}
		item.Quantity -= input.Quantity

	case enums.OperationTypeAdjustment:
		newQty := item.Quantity + input.Quantity
		if newQty < 0 {
			newQty = 0
		}
		item.Quantity = newQty
		if item.ReservedQuantity > item.Quantity {
			item.ReservedQuantity = item.Quantity
		}

	case enums.OperationTypeReservation:
		available := item.Available()
		if input.Quantity > available {
			return pkgerrors.New(pkgerrors.CodeInsufficientStock, "cannot reserve more than the free balance").
				WithDetails(map[string]any{"available": available, "requested": input.Quantity})
		}
		item.ReservedQuantity += input.Quantity

	case enums.OperationTypeRelease:
		if input.Quantity > item.ReservedQuantity {
			return pkgerrors.New(pkgerrors.CodeValidation, "cannot release more than the reserved balance").
				WithDetails(map[string]any{"reserved": item.ReservedQuantity, "requested": input.Quantity})
		}
		item.ReservedQuantity -= input.Quantity

	default:
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("operation type %q not allowed here", input.Type))
	}
	return nil
}

// Transfer moves stock to another location in a single transaction: lock
// source, debit, credit the destination lot (created on demand), one ledger
// row. The product's summed quantity is conserved.
func (s *service) Transfer(ctx context.Context, input TransferInput) (*OperationResult, error) {
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	target := strings.TrimSpace(input.TargetLocation)
	if target == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "target location is required")
	}
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor id is required")
	}

	var result OperationResult
	if err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		source, err := txRepo.FindByIDForUpdate(ctx, input.SourceItemID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "inventory item not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock source item")
		}

		if strings.EqualFold(source.Location, target) {
			return pkgerrors.New(pkgerrors.CodeValidation, "target location matches source location")
		}
		if source.FlowStatus.BlocksIssue() {
			return pkgerrors.New(pkgerrors.CodeItemBlocked,
				fmt.Sprintf("item is %s and cannot be transferred", source.FlowStatus)).
				WithDetails(map[string]any{"flow_status": source.FlowStatus})
		}
		available := source.Available()
		if input.Quantity > available {
			return pkgerrors.New(pkgerrors.CodeInsufficientStock, "requested quantity exceeds available stock").
				WithDetails(map[string]any{"available": available, "requested": input.Quantity})
		}

		before := source.Quantity
		source.Quantity -= input.Quantity
		source.LastUpdatedBy = &input.ActorID
		if err := txRepo.Save(ctx, source); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update source item")
		}

		dest, err := txRepo.FindSiblingForUpdate(ctx, source.ProductID, target, source.Condition)
		switch {
		case err == nil:
			dest.Quantity += input.Quantity
			dest.LastUpdatedBy = &input.ActorID
			if err := txRepo.Save(ctx, dest); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update destination item")
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			dest = &models.InventoryItem{
				ProductID:     source.ProductID,
				Location:      target,
				Quantity:      input.Quantity,
				Condition:     source.Condition,
				FlowStatus:    enums.FlowStatusAvailable,
				BatchNumber:   source.BatchNumber,
				Supplier:      source.Supplier,
				ExpiresAt:     source.ExpiresAt,
				LastUpdatedBy: &input.ActorID,
			}
			if err := txRepo.Create(ctx, dest); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: create destination item")
			}
		default:
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find destination item")
		}

		fromLocation := source.Location
		op, err := ledger.BuildOperation(ledger.RecordOperationInput{
			Type:            enums.OperationTypeTransfer,
			ProductID:       source.ProductID,
			InventoryItemID: source.ID,
			UserID:          input.ActorID,
			Quantity:        input.Quantity,
			QuantityBefore:  before,
			QuantityAfter:   source.Quantity,
			FromLocation:    &fromLocation,
			ToLocation:      &target,
			Notes:           input.Notes,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "build ledger row")
		}
		if err := s.ledgerRepo.WithTx(tx).Create(ctx, op); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert ledger row")
		}

		result = OperationResult{Operation: op, Item: source, DestinationItem: dest}
		return nil
	}); err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			s.countRejection(typed)
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "transfer stock")
	}

	s.stats.IncOperation(enums.OperationTypeTransfer)
	s.reconcileAfterCommit(ctx, result.Operation.ProductID)
	return &result, nil
}

// Available returns the product's aggregated free balance.
func (s *service) Available(ctx context.Context, productID uuid.UUID) (int, error) {
	if productID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	total, err := s.repo.SumAvailability(ctx, productID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum availability")
	}
	return total, nil
}

// CreateItem receives new stock: the item insert and its `in` ledger row
// commit together.
func (s *service) CreateItem(ctx context.Context, input CreateItemInput) (*models.InventoryItem, error) {
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if strings.TrimSpace(input.Location) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "location is required")
	}
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor id is required")
	}
	condition := input.Condition
	if condition == "" {
		condition = enums.ItemConditionGood
	}
	if !condition.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid condition %q", condition))
	}

	product, err := s.products.FindByID(ctx, input.ProductID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if !product.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "product is inactive")
	}

	item := &models.InventoryItem{
		ProductID:     product.ID,
		Location:      strings.TrimSpace(input.Location),
		Quantity:      input.Quantity,
		Condition:     condition,
		FlowStatus:    enums.FlowStatusAvailable,
		BatchNumber:   input.BatchNumber,
		Supplier:      input.Supplier,
		ReceivedAt:    input.ReceivedAt,
		ExpiresAt:     input.ExpiresAt,
		LastUpdatedBy: &input.ActorID,
	}

	if err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, item); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert inventory item")
		}
		op, err := ledger.BuildOperation(ledger.RecordOperationInput{
			Type:            enums.OperationTypeIn,
			ProductID:       item.ProductID,
			InventoryItemID: item.ID,
			UserID:          input.ActorID,
			Quantity:        input.Quantity,
			QuantityBefore:  0,
			QuantityAfter:   input.Quantity,
			ToLocation:      &item.Location,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "build ledger row")
		}
		if err := s.ledgerRepo.WithTx(tx).Create(ctx, op); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert ledger row")
		}
		return nil
	}); err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create inventory item")
	}

	s.stats.IncOperation(enums.OperationTypeIn)
	s.reconcileAfterCommit(ctx, item.ProductID)
	return item, nil
}

func (s *service) GetItem(ctx context.Context, id uuid.UUID) (*models.InventoryItem, error) {
	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "inventory item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inventory item")
	}
	return item, nil
}

func (s *service) ListItems(ctx context.Context, filter ItemFilter, params pagination.Params) (*ItemListResult, error) {
	result, err := s.repo.List(ctx, filter, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list inventory items")
	}
	return result, nil
}

// UpdateItem mutates metadata only. A flow status or location change can
// still move availability, so a reconcile follows.
func (s *service) UpdateItem(ctx context.Context, id uuid.UUID, input UpdateItemInput) (*models.InventoryItem, error) {
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor id is required")
	}
	if input.Condition != nil && !input.Condition.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid condition %q", *input.Condition))
	}
	if input.FlowStatus != nil && !input.FlowStatus.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid flow status %q", *input.FlowStatus))
	}
	if input.Location != nil && strings.TrimSpace(*input.Location) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "location cannot be empty")
	}

	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "inventory item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inventory item")
	}

	availabilityChanged := false
	if input.Location != nil {
		item.Location = strings.TrimSpace(*input.Location)
	}
	if input.Condition != nil {
		item.Condition = *input.Condition
	}
	if input.FlowStatus != nil && *input.FlowStatus != item.FlowStatus {
		item.FlowStatus = *input.FlowStatus
		availabilityChanged = true
	}
	if input.BatchNumber != nil {
		item.BatchNumber = input.BatchNumber
	}
	if input.Supplier != nil {
		item.Supplier = input.Supplier
	}
	if input.ReceivedAt != nil {
		item.ReceivedAt = input.ReceivedAt
	}
	if input.ExpiresAt != nil {
		item.ExpiresAt = input.ExpiresAt
	}
	item.LastUpdatedBy = &input.ActorID

	if err := s.repo.Save(ctx, item); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update inventory item")
	}

	if availabilityChanged {
		s.reconcileAfterCommit(ctx, item.ProductID)
	}
	return item, nil
}

// DeleteItem removes an empty lot. Lots still holding stock must be drained
// through `out` first.
func (s *service) DeleteItem(ctx context.Context, id uuid.UUID) error {
	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "inventory item not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inventory item")
	}
	if item.Quantity != 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "item still holds stock").
			WithDetails(map[string]any{"quantity": item.Quantity})
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: delete inventory item")
	}
	return nil
}

// reconcileAfterCommit runs the alert reconciler once per affected product.
// Errors are surfaced through logs and the failure counter only.
func (s *service) reconcileAfterCommit(ctx context.Context, productID uuid.UUID) {
	if s.reconciler == nil {
		return
	}
	lctx := s.logg.WithProductID(ctx, productID.String())
	if err := s.reconciler.Reconcile(ctx, productID); err != nil {
		s.stats.IncReconcileFailure()
		s.logg.Error(lctx, "alert reconcile failed after stock operation", err)
		return
	}
	s.stats.IncReconcileSuccess()
}

func (s *service) countRejection(err *pkgerrors.Error) {
	switch err.Code() {
	case pkgerrors.CodeInsufficientStock:
		s.stats.IncRejection("insufficient_stock")
	case pkgerrors.CodeItemBlocked:
		s.stats.IncRejection("item_blocked")
	}
}

func validateApplyInput(input ApplyInput) error {
	if input.ItemID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "item id is required")
	}
	if input.ActorID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "actor id is required")
	}
	if !input.Type.IsValid() || input.Type == enums.OperationTypeTransfer {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("operation type %q not allowed here", input.Type))
	}
	if input.Type == enums.OperationTypeAdjustment {
		if input.Quantity == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "adjustment quantity cannot be zero")
		}
		return nil
	}
	if input.Quantity <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	return nil
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
