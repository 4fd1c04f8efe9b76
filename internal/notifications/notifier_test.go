package notifications

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stockroomhq/stockroom-backend/pkg/db/models"
	"github.com/stockroomhq/stockroom-backend/pkg/enums"
	"github.com/stockroomhq/stockroom-backend/pkg/pagination"
)

type fakeNotificationRepo struct {
	alerts        map[string]*models.Notification
	statesCleared []uuid.UUID
	deleteCalls   int
}

func alertKey(productID uuid.UUID, alertType enums.NotificationType) string {
	return productID.String() + "/" + string(alertType)
}

func newFakeNotificationRepo() *fakeNotificationRepo {
	return &fakeNotificationRepo{alerts: make(map[string]*models.Notification)}
}

func (f *fakeNotificationRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeNotificationRepo) Create(ctx context.Context, notification *models.Notification) error {
	if notification.ID == uuid.Nil {
		notification.ID = uuid.New()
	}
	f.alerts[alertKey(*notification.ProductID, notification.Type)] = notification
	return nil
}

func (f *fakeNotificationRepo) Save(ctx context.Context, notification *models.Notification) error {
	f.alerts[alertKey(*notification.ProductID, notification.Type)] = notification
	return nil
}

func (f *fakeNotificationRepo) FindStockAlert(ctx context.Context, productID uuid.UUID, alertType enums.NotificationType) (*models.Notification, error) {
	if alert, ok := f.alerts[alertKey(productID, alertType)]; ok {
		return alert, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeNotificationRepo) DeleteStockAlerts(ctx context.Context, productID uuid.UUID, alertTypes ...enums.NotificationType) error {
	f.deleteCalls++
	if len(alertTypes) == 0 {
		alertTypes = stockAlertTypes
	}
	for _, alertType := range alertTypes {
		delete(f.alerts, alertKey(productID, alertType))
	}
	return nil
}

func (f *fakeNotificationRepo) ClearStates(ctx context.Context, notificationID uuid.UUID) error {
	f.statesCleared = append(f.statesCleared, notificationID)
	return nil
}

func (f *fakeNotificationRepo) CountActiveStockAlerts(ctx context.Context) (int64, error) {
	return int64(len(f.alerts)), nil
}

func (f *fakeNotificationRepo) List(ctx context.Context, params listInboxParams) ([]InboxEntry, *pagination.Cursor, error) {
	return nil, nil, nil
}

func (f *fakeNotificationRepo) MarkRead(ctx context.Context, userID, notificationID uuid.UUID, role enums.UserRole, now time.Time) (markResult, error) {
	return markResult{}, nil
}

func (f *fakeNotificationRepo) MarkAllRead(ctx context.Context, userID uuid.UUID, role enums.UserRole, now time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeNotificationRepo) UnreadCount(ctx context.Context, userID uuid.UUID, role enums.UserRole) (int64, error) {
	return 0, nil
}

type fakeProducts struct {
	products map[uuid.UUID]*models.Product
}

func (f *fakeProducts) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if product, ok := f.products[id]; ok {
		return product, nil
	}
	return nil, gorm.ErrRecordNotFound
}

type fakeAvailability struct {
	total int
}

func (f *fakeAvailability) SumAvailability(ctx context.Context, productID uuid.UUID) (int, error) {
	return f.total, nil
}

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func newTestNotifier(repo Repository, product *models.Product, available, hysteresis int) *Notifier {
	products := &fakeProducts{products: map[uuid.UUID]*models.Product{}}
	if product != nil {
		products.products[product.ID] = product
	}
	return &Notifier{
		repo:         repo,
		products:     products,
		availability: &fakeAvailability{total: available},
		dbClient:     fakeTxRunner{},
		hysteresis:   hysteresis,
	}
}

func testProduct(minStock, reorder int) *models.Product {
	return &models.Product{
		ID:            uuid.New(),
		SKU:           "SKU-100",
		Name:          "M6 Bolt",
		Unit:          "unit",
		MinStockLevel: minStock,
		ReorderPoint:  reorder,
		IsActive:      true,
	}
}

func TestReconcileCreatesLowStockAlert(t *testing.T) {
	repo := newFakeNotificationRepo()
	product := testProduct(10, 8)
	notifier := newTestNotifier(repo, product, 7, 0)

	if err := notifier.Reconcile(context.Background(), product.ID); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	alert, ok := repo.alerts[alertKey(product.ID, enums.NotificationTypeLowStock)]
	if !ok {
		t.Fatal("expected low_stock alert")
	}
	if alert.Priority != enums.NotificationPriorityHigh {
		t.Fatalf("expected high priority, got %s", alert.Priority)
	}

	var meta alertMetadata
	if err := json.Unmarshal(alert.Metadata, &meta); err != nil {
		t.Fatalf("unmarshal metadata: %v", err)
	}
	if meta.Available != 7 || meta.Threshold != 10 {
		t.Fatalf("unexpected metadata %+v", meta)
	}
}

func TestReconcileEmptyStockReplacesLowStock(t *testing.T) {
	repo := newFakeNotificationRepo()
	product := testProduct(10, 0)
	notifier := newTestNotifier(repo, product, 4, 0)

	if err := notifier.Reconcile(context.Background(), product.ID); err != nil {
		t.Fatalf("first reconcile: %v", err)
	}
	if _, ok := repo.alerts[alertKey(product.ID, enums.NotificationTypeLowStock)]; !ok {
		t.Fatal("expected low_stock alert after first pass")
	}

	notifier.availability = &fakeAvailability{total: 0}
	if err := notifier.Reconcile(context.Background(), product.ID); err != nil {
		t.Fatalf("second reconcile: %v", err)
	}

	if _, ok := repo.alerts[alertKey(product.ID, enums.NotificationTypeLowStock)]; ok {
		t.Fatal("low_stock alert should be replaced")
	}
	alert, ok := repo.alerts[alertKey(product.ID, enums.NotificationTypeEmptyStock)]
	if !ok {
		t.Fatal("expected empty_stock alert")
	}
	if alert.Priority != enums.NotificationPriorityUrgent {
		t.Fatalf("expected urgent priority, got %s", alert.Priority)
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	repo := newFakeNotificationRepo()
	product := testProduct(10, 0)
	notifier := newTestNotifier(repo, product, 5, 0)

	if err := notifier.Reconcile(context.Background(), product.ID); err != nil {
		t.Fatalf("first reconcile: %v", err)
	}
	first := repo.alerts[alertKey(product.ID, enums.NotificationTypeLowStock)]

	if err := notifier.Reconcile(context.Background(), product.ID); err != nil {
		t.Fatalf("second reconcile: %v", err)
	}
	second := repo.alerts[alertKey(product.ID, enums.NotificationTypeLowStock)]

	if first != second {
		t.Fatal("unchanged stock must not replace the alert row")
	}
	if len(repo.statesCleared) != 0 {
		t.Fatal("unchanged stock must not reset read markers")
	}
}

func TestReconcileRefreshResetsReadMarkers(t *testing.T) {
	repo := newFakeNotificationRepo()
	product := testProduct(10, 0)
	notifier := newTestNotifier(repo, product, 6, 0)

	if err := notifier.Reconcile(context.Background(), product.ID); err != nil {
		t.Fatalf("first reconcile: %v", err)
	}

	notifier.availability = &fakeAvailability{total: 3}
	if err := notifier.Reconcile(context.Background(), product.ID); err != nil {
		t.Fatalf("second reconcile: %v", err)
	}

	alert := repo.alerts[alertKey(product.ID, enums.NotificationTypeLowStock)]
	if len(repo.statesCleared) != 1 || repo.statesCleared[0] != alert.ID {
		t.Fatalf("expected read markers cleared for %s, got %v", alert.ID, repo.statesCleared)
	}

	var meta alertMetadata
	if err := json.Unmarshal(alert.Metadata, &meta); err != nil {
		t.Fatalf("unmarshal metadata: %v", err)
	}
	if meta.Available != 3 {
		t.Fatalf("expected refreshed availability 3, got %d", meta.Available)
	}
}

func TestReconcileClearsWhenRecovered(t *testing.T) {
	repo := newFakeNotificationRepo()
	product := testProduct(10, 0)
	notifier := newTestNotifier(repo, product, 5, 0)

	if err := notifier.Reconcile(context.Background(), product.ID); err != nil {
		t.Fatalf("first reconcile: %v", err)
	}

	notifier.availability = &fakeAvailability{total: 11}
	if err := notifier.Reconcile(context.Background(), product.ID); err != nil {
		t.Fatalf("second reconcile: %v", err)
	}

	if len(repo.alerts) != 0 {
		t.Fatalf("expected alerts cleared, got %d", len(repo.alerts))
	}
}

func TestReconcileHysteresisKeepsAlertInBand(t *testing.T) {
	repo := newFakeNotificationRepo()
	product := testProduct(10, 0)
	notifier := newTestNotifier(repo, product, 5, 3)

	if err := notifier.Reconcile(context.Background(), product.ID); err != nil {
		t.Fatalf("first reconcile: %v", err)
	}

	// 12 is above threshold but inside threshold+hysteresis, alert stays.
	notifier.availability = &fakeAvailability{total: 12}
	if err := notifier.Reconcile(context.Background(), product.ID); err != nil {
		t.Fatalf("second reconcile: %v", err)
	}
	if _, ok := repo.alerts[alertKey(product.ID, enums.NotificationTypeLowStock)]; !ok {
		t.Fatal("alert inside hysteresis band must survive")
	}

	notifier.availability = &fakeAvailability{total: 14}
	if err := notifier.Reconcile(context.Background(), product.ID); err != nil {
		t.Fatalf("third reconcile: %v", err)
	}
	if len(repo.alerts) != 0 {
		t.Fatal("alert above hysteresis band must clear")
	}
}

func TestReconcileZeroThresholdClearsAlerts(t *testing.T) {
	repo := newFakeNotificationRepo()
	product := testProduct(0, 0)
	productID := product.ID
	repo.alerts[alertKey(productID, enums.NotificationTypeLowStock)] = &models.Notification{
		ID:        uuid.New(),
		Type:      enums.NotificationTypeLowStock,
		ProductID: &productID,
	}
	notifier := newTestNotifier(repo, product, 0, 0)

	if err := notifier.Reconcile(context.Background(), product.ID); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(repo.alerts) != 0 {
		t.Fatal("threshold 0 must clear all stock alerts")
	}
}

func TestReconcileMissingProductClearsAlerts(t *testing.T) {
	repo := newFakeNotificationRepo()
	orphan := uuid.New()
	repo.alerts[alertKey(orphan, enums.NotificationTypeEmptyStock)] = &models.Notification{
		ID:        uuid.New(),
		Type:      enums.NotificationTypeEmptyStock,
		ProductID: &orphan,
	}
	notifier := newTestNotifier(repo, nil, 0, 0)

	if err := notifier.Reconcile(context.Background(), orphan); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(repo.alerts) != 0 {
		t.Fatal("alerts for deleted products must clear")
	}
}
