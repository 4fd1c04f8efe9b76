package inventory

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stockroomhq/stockroom-backend/internal/ledger"
	"github.com/stockroomhq/stockroom-backend/pkg/db/models"
	"github.com/stockroomhq/stockroom-backend/pkg/enums"
	pkgerrors "github.com/stockroomhq/stockroom-backend/pkg/errors"
	"github.com/stockroomhq/stockroom-backend/pkg/logger"
	"github.com/stockroomhq/stockroom-backend/pkg/pagination"
)

type fakeItemRepo struct {
	items    map[uuid.UUID]*models.InventoryItem
	saved    []*models.InventoryItem
	deleted  []uuid.UUID
	sumTotal int
}

func newFakeItemRepo(items ...*models.InventoryItem) *fakeItemRepo {
	repo := &fakeItemRepo{items: make(map[uuid.UUID]*models.InventoryItem)}
	for _, item := range items {
		repo.items[item.ID] = item
	}
	return repo
}

func (f *fakeItemRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeItemRepo) Create(ctx context.Context, item *models.InventoryItem) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	f.items[item.ID] = item
	return nil
}

func (f *fakeItemRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.InventoryItem, error) {
	item, ok := f.items[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return item, nil
}

func (f *fakeItemRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.InventoryItem, error) {
	return f.FindByID(ctx, id)
}

func (f *fakeItemRepo) FindSiblingForUpdate(ctx context.Context, productID uuid.UUID, location string, condition enums.ItemCondition) (*models.InventoryItem, error) {
	for _, item := range f.items {
		if item.ProductID == productID && item.Location == location && item.Condition == condition {
			return item, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeItemRepo) Save(ctx context.Context, item *models.InventoryItem) error {
	f.items[item.ID] = item
	f.saved = append(f.saved, item)
	return nil
}

func (f *fakeItemRepo) Delete(ctx context.Context, id uuid.UUID) error {
	delete(f.items, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeItemRepo) List(ctx context.Context, filter ItemFilter, params pagination.Params) (*ItemListResult, error) {
	return &ItemListResult{}, nil
}

func (f *fakeItemRepo) SumAvailability(ctx context.Context, productID uuid.UUID) (int, error) {
	return f.sumTotal, nil
}

type fakeLedgerRepo struct {
	ops []*models.InventoryOperation
}

func (f *fakeLedgerRepo) WithTx(tx *gorm.DB) ledger.Repository { return f }

func (f *fakeLedgerRepo) Create(ctx context.Context, op *models.InventoryOperation) error {
	f.ops = append(f.ops, op)
	return nil
}

func (f *fakeLedgerRepo) List(ctx context.Context, filter ledger.Filter, params pagination.Params) (*ledger.ListResult, error) {
	return &ledger.ListResult{}, nil
}

func (f *fakeLedgerRepo) ForEach(ctx context.Context, filter ledger.Filter, batchSize int, fn func(ops []models.InventoryOperation) error) error {
	return nil
}

type fakeProductLoader struct{}

func (fakeProductLoader) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	return &models.Product{ID: id, IsActive: true}, nil
}

// passthroughTxRunner runs the callback directly; the fake repos ignore the
// transaction handle anyway.
type passthroughTxRunner struct{}

func (passthroughTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type trackingReconciler struct {
	calls []uuid.UUID
	err   error
}

func (r *trackingReconciler) Reconcile(ctx context.Context, productID uuid.UUID) error {
	r.calls = append(r.calls, productID)
	return r.err
}

func newTestService(t *testing.T, repo Repository, ledgerRepo ledger.Repository, rec Reconciler) Service {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "inventory-test", Output: io.Discard})
	svc, err := NewService(repo, ledgerRepo, fakeProductLoader{}, passthroughTxRunner{}, rec, logg, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func itemWith(qty, reserved int, status enums.FlowStatus) *models.InventoryItem {
	return &models.InventoryItem{
		ID:               uuid.New(),
		ProductID:        uuid.New(),
		Location:         "A-01",
		Quantity:         qty,
		ReservedQuantity: reserved,
		Condition:        enums.ItemConditionGood,
		FlowStatus:       status,
	}
}

func expectCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	typed := pkgerrors.As(err)
	if typed == nil {
		t.Fatalf("expected typed error with code %s, got %v", code, err)
	}
	if typed.Code() != code {
		t.Fatalf("expected code %s, got %s", code, typed.Code())
	}
}

func TestMutateItemOut(t *testing.T) {
	svc := &service{}

	t.Run("happy path", func(t *testing.T) {
		item := itemWith(10, 0, enums.FlowStatusAvailable)
		err := svc.mutateItem(item, ApplyInput{Type: enums.OperationTypeOut, Quantity: 4})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if item.Quantity != 6 {
			t.Fatalf("expected quantity 6, got %d", item.Quantity)
		}
	})

	t.Run("insufficient free balance", func(t *testing.T) {
		item := itemWith(10, 8, enums.FlowStatusAvailable)
		err := svc.mutateItem(item, ApplyInput{Type: enums.OperationTypeOut, Quantity: 3})
		expectCode(t, err, pkgerrors.CodeInsufficientStock)
		if item.Quantity != 10 {
			t.Fatalf("quantity must be untouched on rejection, got %d", item.Quantity)
		}
	})

	t.Run("damaged item blocked", func(t *testing.T) {
		item := itemWith(10, 0, enums.FlowStatusDamaged)
		err := svc.mutateItem(item, ApplyInput{Type: enums.OperationTypeOut, Quantity: 1})
		expectCode(t, err, pkgerrors.CodeItemBlocked)
	})

	t.Run("in transit item blocked", func(t *testing.T) {
		item := itemWith(10, 0, enums.FlowStatusInTransit)
		err := svc.mutateItem(item, ApplyInput{Type: enums.OperationTypeOut, Quantity: 1})
		expectCode(t, err, pkgerrors.CodeItemBlocked)
	})
}

func TestMutateItemInAndAdjustment(t *testing.T) {
	svc := &service{}

	t.Run("in increments", func(t *testing.T) {
		item := itemWith(3, 0, enums.FlowStatusAvailable)
		if err := svc.mutateItem(item, ApplyInput{Type: enums.OperationTypeIn, Quantity: 7}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if item.Quantity != 10 {
			t.Fatalf("expected quantity 10, got %d", item.Quantity)
		}
	})

	t.Run("adjustment decrements with floor", func(t *testing.T) {
		item := itemWith(5, 0, enums.FlowStatusAvailable)
		if err := svc.mutateItem(item, ApplyInput{Type: enums.OperationTypeAdjustment, Quantity: -9}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if item.Quantity != 0 {
			t.Fatalf("expected floor at 0, got %d", item.Quantity)
		}
	})

	t.Run("adjustment clamps reserved", func(t *testing.T) {
		item := itemWith(10, 8, enums.FlowStatusAvailable)
		if err := svc.mutateItem(item, ApplyInput{Type: enums.OperationTypeAdjustment, Quantity: -6}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if item.Quantity != 4 {
			t.Fatalf("expected quantity 4, got %d", item.Quantity)
		}
		if item.ReservedQuantity != 4 {
			t.Fatalf("expected reserved clamped to 4, got %d", item.ReservedQuantity)
		}
	})
}

func TestMutateItemReservationAndRelease(t *testing.T) {
	svc := &service{}

	t.Run("reservation moves free to reserved", func(t *testing.T) {
		item := itemWith(10, 2, enums.FlowStatusAvailable)
		if err := svc.mutateItem(item, ApplyInput{Type: enums.OperationTypeReservation, Quantity: 5}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if item.ReservedQuantity != 7 || item.Quantity != 10 {
			t.Fatalf("unexpected state qty=%d reserved=%d", item.Quantity, item.ReservedQuantity)
		}
	})

	t.Run("reservation beyond free balance rejected", func(t *testing.T) {
		item := itemWith(10, 8, enums.FlowStatusAvailable)
		err := svc.mutateItem(item, ApplyInput{Type: enums.OperationTypeReservation, Quantity: 3})
		expectCode(t, err, pkgerrors.CodeInsufficientStock)
	})

	t.Run("release returns reserved to free", func(t *testing.T) {
		item := itemWith(10, 6, enums.FlowStatusAvailable)
		if err := svc.mutateItem(item, ApplyInput{Type: enums.OperationTypeRelease, Quantity: 6}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if item.ReservedQuantity != 0 {
			t.Fatalf("expected reserved 0, got %d", item.ReservedQuantity)
		}
	})

	t.Run("release beyond reserved rejected", func(t *testing.T) {
		item := itemWith(10, 2, enums.FlowStatusAvailable)
		err := svc.mutateItem(item, ApplyInput{Type: enums.OperationTypeRelease, Quantity: 3})
		expectCode(t, err, pkgerrors.CodeValidation)
	})
}

func TestValidateApplyInput(t *testing.T) {
	base := ApplyInput{
		ItemID:   uuid.New(),
		Type:     enums.OperationTypeIn,
		Quantity: 1,
		ActorID:  uuid.New(),
	}

	tests := []struct {
		name   string
		mutate func(input *ApplyInput)
	}{
		{"missing item", func(i *ApplyInput) { i.ItemID = uuid.Nil }},
		{"missing actor", func(i *ApplyInput) { i.ActorID = uuid.Nil }},
		{"unknown type", func(i *ApplyInput) { i.Type = enums.OperationType("bogus") }},
		{"transfer not allowed", func(i *ApplyInput) { i.Type = enums.OperationTypeTransfer }},
		{"zero quantity", func(i *ApplyInput) { i.Quantity = 0 }},
		{"negative quantity for in", func(i *ApplyInput) { i.Quantity = -2 }},
		{"zero adjustment", func(i *ApplyInput) { i.Type = enums.OperationTypeAdjustment; i.Quantity = 0 }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			input := base
			tc.mutate(&input)
			err := validateApplyInput(input)
			expectCode(t, err, pkgerrors.CodeValidation)
		})
	}

	t.Run("negative adjustment allowed", func(t *testing.T) {
		input := base
		input.Type = enums.OperationTypeAdjustment
		input.Quantity = -4
		if err := validateApplyInput(input); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func TestDeleteItemRefusesStockedLot(t *testing.T) {
	item := itemWith(5, 0, enums.FlowStatusAvailable)
	repo := newFakeItemRepo(item)
	svc := &service{repo: repo}

	err := svc.DeleteItem(context.Background(), item.ID)
	expectCode(t, err, pkgerrors.CodeStateConflict)
	if len(repo.deleted) != 0 {
		t.Fatal("stocked lot must not be deleted")
	}
}

func TestDeleteItemRemovesEmptyLot(t *testing.T) {
	item := itemWith(0, 0, enums.FlowStatusAvailable)
	repo := newFakeItemRepo(item)
	svc := &service{repo: repo}

	if err := svc.DeleteItem(context.Background(), item.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.deleted) != 1 || repo.deleted[0] != item.ID {
		t.Fatalf("expected lot %s deleted, got %v", item.ID, repo.deleted)
	}
}

func TestDeleteItemNotFound(t *testing.T) {
	svc := &service{repo: newFakeItemRepo()}
	err := svc.DeleteItem(context.Background(), uuid.New())
	expectCode(t, err, pkgerrors.CodeNotFound)
}

func TestApplyOutUpdatesItemAndWritesLedgerRow(t *testing.T) {
	item := itemWith(10, 0, enums.FlowStatusAvailable)
	repo := newFakeItemRepo(item)
	ledgerRepo := &fakeLedgerRepo{}
	rec := &trackingReconciler{}
	svc := newTestService(t, repo, ledgerRepo, rec)

	result, err := svc.Apply(context.Background(), ApplyInput{
		ItemID:   item.ID,
		Type:     enums.OperationTypeOut,
		Quantity: 4,
		ActorID:  uuid.New(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Item == nil || result.Item.Quantity != 6 {
		t.Fatalf("expected quantity 6 after issue, got %+v", result.Item)
	}
	if len(ledgerRepo.ops) != 1 {
		t.Fatalf("expected one ledger row, got %d", len(ledgerRepo.ops))
	}
	op := ledgerRepo.ops[0]
	if op.OperationType != enums.OperationTypeOut || op.QuantityBefore != 10 || op.QuantityAfter != 6 {
		t.Fatalf("unexpected ledger row: type=%s before=%d after=%d", op.OperationType, op.QuantityBefore, op.QuantityAfter)
	}
	if len(rec.calls) != 1 || rec.calls[0] != item.ProductID {
		t.Fatalf("expected one reconcile for product %s, got %v", item.ProductID, rec.calls)
	}
}

func TestApplyOutDrainsAndDeletesLot(t *testing.T) {
	item := itemWith(4, 0, enums.FlowStatusAvailable)
	repo := newFakeItemRepo(item)
	ledgerRepo := &fakeLedgerRepo{}
	svc := newTestService(t, repo, ledgerRepo, nil)

	result, err := svc.Apply(context.Background(), ApplyInput{
		ItemID:   item.ID,
		Type:     enums.OperationTypeOut,
		Quantity: 4,
		ActorID:  uuid.New(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.ItemDeleted || result.Item != nil {
		t.Fatalf("expected drained lot to be deleted, got %+v", result)
	}
	if len(repo.deleted) != 1 || repo.deleted[0] != item.ID {
		t.Fatalf("expected lot %s deleted, got %v", item.ID, repo.deleted)
	}
	// The ledger row survives the lot.
	if len(ledgerRepo.ops) != 1 || ledgerRepo.ops[0].QuantityAfter != 0 {
		t.Fatalf("expected ledger row with quantity_after 0, got %+v", ledgerRepo.ops)
	}
}

func TestApplyReconcileFailureDoesNotFailOperation(t *testing.T) {
	item := itemWith(3, 0, enums.FlowStatusAvailable)
	repo := newFakeItemRepo(item)
	rec := &trackingReconciler{err: errors.New("notifier down")}
	svc := newTestService(t, repo, &fakeLedgerRepo{}, rec)

	result, err := svc.Apply(context.Background(), ApplyInput{
		ItemID:   item.ID,
		Type:     enums.OperationTypeIn,
		Quantity: 2,
		ActorID:  uuid.New(),
	})
	if err != nil {
		t.Fatalf("reconcile failure must not fail the operation: %v", err)
	}
	if result.Item.Quantity != 5 {
		t.Fatalf("expected quantity 5, got %d", result.Item.Quantity)
	}
	if len(rec.calls) != 1 {
		t.Fatalf("expected reconciler to be invoked once, got %d", len(rec.calls))
	}
}

func TestTransferMovesStockAndConservesTotal(t *testing.T) {
	source := itemWith(10, 0, enums.FlowStatusAvailable)
	repo := newFakeItemRepo(source)
	ledgerRepo := &fakeLedgerRepo{}
	svc := newTestService(t, repo, ledgerRepo, nil)

	result, err := svc.Transfer(context.Background(), TransferInput{
		SourceItemID:   source.ID,
		TargetLocation: "B-01",
		Quantity:       4,
		ActorID:        uuid.New(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Item.Quantity != 6 {
		t.Fatalf("expected source quantity 6, got %d", result.Item.Quantity)
	}
	dest := result.DestinationItem
	if dest == nil || dest.Quantity != 4 || dest.Location != "B-01" {
		t.Fatalf("expected destination lot of 4 at B-01, got %+v", dest)
	}
	if dest.ProductID != source.ProductID || dest.Condition != source.Condition {
		t.Fatal("destination lot must keep the source product and condition")
	}

	total := 0
	for _, item := range repo.items {
		total += item.Quantity
	}
	if total != 10 {
		t.Fatalf("transfer must conserve the summed quantity, got %d", total)
	}

	if len(ledgerRepo.ops) != 1 {
		t.Fatalf("expected one ledger row, got %d", len(ledgerRepo.ops))
	}
	op := ledgerRepo.ops[0]
	if op.OperationType != enums.OperationTypeTransfer || op.QuantityBefore != 10 || op.QuantityAfter != 6 {
		t.Fatalf("unexpected ledger row: type=%s before=%d after=%d", op.OperationType, op.QuantityBefore, op.QuantityAfter)
	}
	if op.FromLocation == nil || *op.FromLocation != "A-01" || op.ToLocation == nil || *op.ToLocation != "B-01" {
		t.Fatalf("expected from A-01 to B-01, got %v -> %v", op.FromLocation, op.ToLocation)
	}
}

func TestTransferCreditsExistingDestinationLot(t *testing.T) {
	source := itemWith(10, 0, enums.FlowStatusAvailable)
	dest := &models.InventoryItem{
		ID:         uuid.New(),
		ProductID:  source.ProductID,
		Location:   "B-01",
		Quantity:   3,
		Condition:  source.Condition,
		FlowStatus: enums.FlowStatusAvailable,
	}
	repo := newFakeItemRepo(source, dest)
	svc := newTestService(t, repo, &fakeLedgerRepo{}, nil)

	result, err := svc.Transfer(context.Background(), TransferInput{
		SourceItemID:   source.ID,
		TargetLocation: "B-01",
		Quantity:       5,
		ActorID:        uuid.New(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.DestinationItem.ID != dest.ID {
		t.Fatal("expected the existing sibling lot to be credited")
	}
	if dest.Quantity != 8 {
		t.Fatalf("expected destination quantity 8, got %d", dest.Quantity)
	}
	if len(repo.items) != 2 {
		t.Fatalf("no new lot may be created when a sibling exists, have %d", len(repo.items))
	}
}

func TestTransferRejectsBlockedSource(t *testing.T) {
	for _, status := range []enums.FlowStatus{enums.FlowStatusDamaged, enums.FlowStatusInTransit} {
		t.Run(string(status), func(t *testing.T) {
			source := itemWith(10, 0, status)
			repo := newFakeItemRepo(source)
			ledgerRepo := &fakeLedgerRepo{}
			svc := newTestService(t, repo, ledgerRepo, nil)

			_, err := svc.Transfer(context.Background(), TransferInput{
				SourceItemID:   source.ID,
				TargetLocation: "B-01",
				Quantity:       1,
				ActorID:        uuid.New(),
			})
			expectCode(t, err, pkgerrors.CodeItemBlocked)
			if len(repo.saved) != 0 || len(ledgerRepo.ops) != 0 {
				t.Fatal("a rejected transfer must not touch any row")
			}
		})
	}
}

func TestAvailableDelegatesToRepo(t *testing.T) {
	repo := newFakeItemRepo()
	repo.sumTotal = 42
	svc := &service{repo: repo}

	total, err := svc.Available(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 42 {
		t.Fatalf("expected 42, got %d", total)
	}

	if _, err := svc.Available(context.Background(), uuid.Nil); err == nil {
		t.Fatal("expected validation error for nil product id")
	}
}
