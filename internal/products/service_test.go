package products

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/stockroomhq/stockroom-backend/pkg/db/models"
	"github.com/stockroomhq/stockroom-backend/pkg/enums"
	pkgerrors "github.com/stockroomhq/stockroom-backend/pkg/errors"
	"github.com/stockroomhq/stockroom-backend/pkg/logger"
	"github.com/stockroomhq/stockroom-backend/pkg/pagination"
)

type fakeProductRepo struct {
	products map[uuid.UUID]*models.Product
	skus     map[string]uuid.UUID
	stocked  map[uuid.UUID]bool

	createErr error
	listFn    func(ctx context.Context, filter Filter, params pagination.Params) (*ListResult, error)
}

func newFakeProductRepo() *fakeProductRepo {
	return &fakeProductRepo{
		products: make(map[uuid.UUID]*models.Product),
		skus:     make(map[string]uuid.UUID),
		stocked:  make(map[uuid.UUID]bool),
	}
}

func (f *fakeProductRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeProductRepo) Create(ctx context.Context, product *models.Product) error {
	if f.createErr != nil {
		return f.createErr
	}
	if _, exists := f.skus[product.SKU]; exists {
		return errDuplicateSKU
	}
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}
	f.products[product.ID] = product
	f.skus[product.SKU] = product.ID
	return nil
}

func (f *fakeProductRepo) Save(ctx context.Context, product *models.Product) error {
	f.products[product.ID] = product
	return nil
}

func (f *fakeProductRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if product, ok := f.products[id]; ok {
		copied := *product
		return &copied, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeProductRepo) FindBySKU(ctx context.Context, sku string) (*models.Product, error) {
	if id, ok := f.skus[sku]; ok {
		return f.FindByID(ctx, id)
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeProductRepo) Delete(ctx context.Context, id uuid.UUID) error {
	delete(f.products, id)
	return nil
}

func (f *fakeProductRepo) List(ctx context.Context, filter Filter, params pagination.Params) (*ListResult, error) {
	if f.listFn != nil {
		return f.listFn(ctx, filter, params)
	}
	return &ListResult{}, nil
}

func (f *fakeProductRepo) HasStock(ctx context.Context, productID uuid.UUID) (bool, error) {
	return f.stocked[productID], nil
}

func (f *fakeProductRepo) ForEachAlertable(ctx context.Context, batchSize int, fn func(products []models.Product) error) error {
	return nil
}

type errUnique struct{}

func (errUnique) Error() string { return `duplicate key value violates unique constraint "idx_products_sku"` }

var errDuplicateSKU = errUnique{}

type stubAvailability struct {
	total int
	err   error
}

func (s *stubAvailability) SumAvailability(ctx context.Context, productID uuid.UUID) (int, error) {
	return s.total, s.err
}

type recordingReconciler struct {
	calls []uuid.UUID
	err   error
}

func (r *recordingReconciler) Reconcile(ctx context.Context, productID uuid.UUID) error {
	r.calls = append(r.calls, productID)
	return r.err
}

func newTestService(t *testing.T, repo Repository, availability availabilityReader, rec reconciler) Service {
	t.Helper()
	svc, err := NewService(repo, availability, rec, logger.New(logger.Options{ServiceName: "test", Output: io.Discard}))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func validCreateInput() CreateInput {
	return CreateInput{
		SKU:           "SKU-100",
		Name:          "M6 Bolt",
		Category:      enums.ProductCategoryComponent,
		Unit:          "unit",
		Price:         decimal.NewFromFloat(0.15),
		MinStockLevel: 10,
		ReorderPoint:  8,
		IsActive:      true,
	}
}

func expectCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != code {
		t.Fatalf("expected error code %s, got %v", code, err)
	}
}

func TestProductCreateAndGet(t *testing.T) {
	repo := newFakeProductRepo()
	svc := newTestService(t, repo, &stubAvailability{total: 42}, nil)

	created, err := svc.Create(context.Background(), validCreateInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.SKU != "SKU-100" || created.Available != nil {
		t.Fatalf("unexpected create result %+v", created)
	}

	got, err := svc.Get(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Available == nil || *got.Available != 42 {
		t.Fatalf("expected availability 42, got %+v", got.Available)
	}
}

func TestProductCreateDuplicateSKU(t *testing.T) {
	repo := newFakeProductRepo()
	svc := newTestService(t, repo, &stubAvailability{}, nil)

	if _, err := svc.Create(context.Background(), validCreateInput()); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err := svc.Create(context.Background(), validCreateInput())
	expectCode(t, err, pkgerrors.CodeConflict)
}

func TestProductCreateValidation(t *testing.T) {
	svc := newTestService(t, newFakeProductRepo(), &stubAvailability{}, nil)

	tests := []struct {
		name   string
		mutate func(*CreateInput)
	}{
		{"missing sku", func(in *CreateInput) { in.SKU = "  " }},
		{"missing name", func(in *CreateInput) { in.Name = "" }},
		{"bad category", func(in *CreateInput) { in.Category = enums.ProductCategory("gadget") }},
		{"negative price", func(in *CreateInput) { in.Price = decimal.NewFromInt(-1) }},
		{"negative threshold", func(in *CreateInput) { in.MinStockLevel = -1 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			input := validCreateInput()
			tc.mutate(&input)
			_, err := svc.Create(context.Background(), input)
			expectCode(t, err, pkgerrors.CodeValidation)
		})
	}
}

func TestProductUpdateReconcilesOnThresholdChange(t *testing.T) {
	repo := newFakeProductRepo()
	rec := &recordingReconciler{}
	svc := newTestService(t, repo, &stubAvailability{total: 5}, rec)

	created, err := svc.Create(context.Background(), validCreateInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	name := "M6 Bolt zinc"
	if _, err := svc.Update(context.Background(), created.ID, UpdateInput{Name: &name}); err != nil {
		t.Fatalf("update name: %v", err)
	}
	if len(rec.calls) != 0 {
		t.Fatal("name change must not trigger reconcile")
	}

	minStock := 20
	if _, err := svc.Update(context.Background(), created.ID, UpdateInput{MinStockLevel: &minStock}); err != nil {
		t.Fatalf("update threshold: %v", err)
	}
	if len(rec.calls) != 1 || rec.calls[0] != created.ID {
		t.Fatalf("expected one reconcile for %s, got %v", created.ID, rec.calls)
	}
}

func TestProductDeleteRefusedWhileStocked(t *testing.T) {
	repo := newFakeProductRepo()
	rec := &recordingReconciler{}
	svc := newTestService(t, repo, &stubAvailability{}, rec)

	created, err := svc.Create(context.Background(), validCreateInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	repo.stocked[created.ID] = true
	err = svc.Delete(context.Background(), created.ID)
	expectCode(t, err, pkgerrors.CodeStateConflict)

	repo.stocked[created.ID] = false
	if err := svc.Delete(context.Background(), created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := repo.products[created.ID]; ok {
		t.Fatal("product should be gone")
	}
	if len(rec.calls) != 1 {
		t.Fatalf("expected reconcile after delete, got %v", rec.calls)
	}
}

func TestProductGetNotFound(t *testing.T) {
	svc := newTestService(t, newFakeProductRepo(), &stubAvailability{}, nil)

	_, err := svc.Get(context.Background(), uuid.New())
	expectCode(t, err, pkgerrors.CodeNotFound)

	_, err = svc.Get(context.Background(), uuid.Nil)
	expectCode(t, err, pkgerrors.CodeValidation)
}
