package products

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/stockroomhq/stockroom-backend/pkg/db"
	"github.com/stockroomhq/stockroom-backend/pkg/db/models"
	"github.com/stockroomhq/stockroom-backend/pkg/enums"
	pkgerrors "github.com/stockroomhq/stockroom-backend/pkg/errors"
	"github.com/stockroomhq/stockroom-backend/pkg/logger"
	"github.com/stockroomhq/stockroom-backend/pkg/pagination"
)

// Service exposes product catalog management.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*ProductDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*ProductDTO, error)
	List(ctx context.Context, filter Filter, params pagination.Params) (*ListDTO, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*ProductDTO, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// CreateInput holds the validated payload to create a product.
type CreateInput struct {
	SKU           string
	Name          string
	Description   *string
	Category      enums.ProductCategory
	Unit          string
	Price         decimal.Decimal
	MinStockLevel int
	ReorderPoint  int
	IsActive      bool
}

// UpdateInput holds optional mutation values for a product.
type UpdateInput struct {
	Name          *string
	Description   *string
	Category      *enums.ProductCategory
	Unit          *string
	Price         *decimal.Decimal
	MinStockLevel *int
	ReorderPoint  *int
	IsActive      *bool
}

type availabilityReader interface {
	SumAvailability(ctx context.Context, productID uuid.UUID) (int, error)
}

type reconciler interface {
	Reconcile(ctx context.Context, productID uuid.UUID) error
}

type service struct {
	repo         Repository
	availability availabilityReader
	reconciler   reconciler
	logg         *logger.Logger
}

// NewService constructs a product service instance. The reconciler is
// optional; when present it runs after threshold changes and deletes.
func NewService(repo Repository, availability availabilityReader, reconciler reconciler, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if availability == nil {
		return nil, fmt.Errorf("availability reader required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:         repo,
		availability: availability,
		reconciler:   reconciler,
		logg:         logg,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*ProductDTO, error) {
	if err := validateCreateInput(input); err != nil {
		return nil, err
	}

	product := &models.Product{
		SKU:           strings.TrimSpace(input.SKU),
		Name:          strings.TrimSpace(input.Name),
		Description:   input.Description,
		Category:      input.Category,
		Unit:          normalizeUnit(input.Unit),
		Price:         input.Price,
		MinStockLevel: input.MinStockLevel,
		ReorderPoint:  input.ReorderPoint,
		IsActive:      input.IsActive,
	}

	if err := s.repo.Create(ctx, product); err != nil {
		if db.IsUniqueViolation(err, "idx_products_sku") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "sku already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert product")
	}

	return NewProductDTO(product, nil), nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*ProductDTO, error) {
	product, err := s.loadProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	available, err := s.availability.SumAvailability(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum availability")
	}
	return NewProductDTO(product, &available), nil
}

func (s *service) List(ctx context.Context, filter Filter, params pagination.Params) (*ListDTO, error) {
	result, err := s.repo.List(ctx, filter, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}

	items := make([]ProductDTO, 0, len(result.Products))
	for i := range result.Products {
		items = append(items, *NewProductDTO(&result.Products[i], nil))
	}
	return &ListDTO{Products: items, NextCursor: result.NextCursor}, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*ProductDTO, error) {
	if err := validateUpdateInput(input); err != nil {
		return nil, err
	}

	product, err := s.loadProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	thresholdBefore := product.AlertThreshold()
	applyUpdate(product, input)

	if err := s.repo.Save(ctx, product); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update product")
	}

	if product.AlertThreshold() != thresholdBefore {
		s.reconcileBestEffort(ctx, product.ID)
	}

	available, err := s.availability.SumAvailability(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum availability")
	}
	return NewProductDTO(product, &available), nil
}

// Delete removes a product with no remaining stock. Ledger rows cascade with
// the product; leftover alerts clear on the follow-up reconcile.
func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.loadProduct(ctx, id); err != nil {
		return err
	}

	hasStock, err := s.repo.HasStock(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check product stock")
	}
	if hasStock {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "product still has stock on hand")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: delete product")
	}

	s.reconcileBestEffort(ctx, id)
	return nil
}

func (s *service) loadProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return product, nil
}

func (s *service) reconcileBestEffort(ctx context.Context, productID uuid.UUID) {
	if s.reconciler == nil {
		return
	}
	if err := s.reconciler.Reconcile(ctx, productID); err != nil {
		lctx := s.logg.WithProductID(ctx, productID.String())
		s.logg.Warn(lctx, "alert reconcile failed after product change")
	}
}

func validateCreateInput(input CreateInput) error {
	if strings.TrimSpace(input.SKU) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "sku is required")
	}
	if strings.TrimSpace(input.Name) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if !input.Category.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid category %q", input.Category))
	}
	if input.Price.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "price must be non-negative")
	}
	if input.MinStockLevel < 0 || input.ReorderPoint < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "stock thresholds must be non-negative")
	}
	return nil
}

func validateUpdateInput(input UpdateInput) error {
	if input.Name != nil && strings.TrimSpace(*input.Name) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "name cannot be empty")
	}
	if input.Category != nil && !input.Category.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid category %q", *input.Category))
	}
	if input.Price != nil && input.Price.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "price must be non-negative")
	}
	if input.MinStockLevel != nil && *input.MinStockLevel < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "min_stock_level must be non-negative")
	}
	if input.ReorderPoint != nil && *input.ReorderPoint < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "reorder_point must be non-negative")
	}
	return nil
}

func applyUpdate(product *models.Product, input UpdateInput) {
	if input.Name != nil {
		product.Name = strings.TrimSpace(*input.Name)
	}
	if input.Description != nil {
		product.Description = input.Description
	}
	if input.Category != nil {
		product.Category = *input.Category
	}
	if input.Unit != nil {
		product.Unit = normalizeUnit(*input.Unit)
	}
	if input.Price != nil {
		product.Price = *input.Price
	}
	if input.MinStockLevel != nil {
		product.MinStockLevel = *input.MinStockLevel
	}
	if input.ReorderPoint != nil {
		product.ReorderPoint = *input.ReorderPoint
	}
	if input.IsActive != nil {
		product.IsActive = *input.IsActive
	}
}

func normalizeUnit(unit string) string {
	unit = strings.TrimSpace(strings.ToLower(unit))
	if unit == "" {
		return "unit"
	}
	return unit
}
