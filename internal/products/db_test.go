package products

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/stockroomhq/stockroom-backend/pkg/db/models"
	"github.com/stockroomhq/stockroom-backend/pkg/enums"
	"github.com/stockroomhq/stockroom-backend/pkg/pagination"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := os.Getenv("STOCKROOM_DB_DSN")
	if dsn == "" {
		t.Skip("STOCKROOM_DB_DSN is not set")
	}

	conn, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	return conn
}

func mustCreateProduct(t *testing.T, tx *gorm.DB, name string, category enums.ProductCategory, active bool) *models.Product {
	t.Helper()
	product := &models.Product{
		SKU:      fmt.Sprintf("SKU-%s", uuid.NewString()),
		Name:     name,
		Category: category,
		Unit:     "unit",
		IsActive: active,
	}
	if err := tx.Create(product).Error; err != nil {
		t.Fatalf("create product: %v", err)
	}
	return product
}

func TestRepositoryListFilters(t *testing.T) {
	conn := openTestDB(t)
	tx := conn.Begin()
	defer tx.Rollback()

	mustCreateProduct(t, tx, "Hex Bolt M6", enums.ProductCategoryComponent, true)
	mustCreateProduct(t, tx, "Hex Bolt M8", enums.ProductCategoryComponent, false)
	mustCreateProduct(t, tx, "Machine Oil", enums.ProductCategoryConsumable, true)

	repo := NewRepository(tx)
	active := true
	category := enums.ProductCategoryComponent

	result, err := repo.List(context.Background(), Filter{Category: &category, IsActive: &active}, pagination.Params{Limit: 50})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, product := range result.Products {
		if product.Category != category || !product.IsActive {
			t.Fatalf("filter leaked row %+v", product)
		}
	}

	result, err = repo.List(context.Background(), Filter{Search: "hex bolt"}, pagination.Params{Limit: 50})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(result.Products) < 2 {
		t.Fatalf("expected both bolts, got %d rows", len(result.Products))
	}
}

func TestRepositoryHasStock(t *testing.T) {
	conn := openTestDB(t)
	tx := conn.Begin()
	defer tx.Rollback()

	product := mustCreateProduct(t, tx, "Washer", enums.ProductCategoryComponent, true)
	repo := NewRepository(tx)

	hasStock, err := repo.HasStock(context.Background(), product.ID)
	if err != nil {
		t.Fatalf("has stock: %v", err)
	}
	if hasStock {
		t.Fatal("fresh product must have no stock")
	}

	item := &models.InventoryItem{
		ProductID:  product.ID,
		Location:   "A-01",
		Quantity:   3,
		Condition:  enums.ItemConditionGood,
		FlowStatus: enums.FlowStatusAvailable,
	}
	if err := tx.Create(item).Error; err != nil {
		t.Fatalf("create item: %v", err)
	}

	hasStock, err = repo.HasStock(context.Background(), product.ID)
	if err != nil {
		t.Fatalf("has stock: %v", err)
	}
	if !hasStock {
		t.Fatal("stocked product must report stock")
	}
}

func TestRepositoryForEachAlertable(t *testing.T) {
	conn := openTestDB(t)
	tx := conn.Begin()
	defer tx.Rollback()

	alertable := mustCreateProduct(t, tx, "Bearing", enums.ProductCategorySparePart, true)
	alertable.MinStockLevel = 5
	if err := tx.Save(alertable).Error; err != nil {
		t.Fatalf("save product: %v", err)
	}
	mustCreateProduct(t, tx, "Scrap", enums.ProductCategoryRawMaterial, true)

	repo := NewRepository(tx)
	seen := map[uuid.UUID]bool{}
	err := repo.ForEachAlertable(context.Background(), 100, func(batch []models.Product) error {
		for _, product := range batch {
			seen[product.ID] = true
		}
		return nil
	})
	if err != nil {
		t.Fatalf("for each alertable: %v", err)
	}
	if !seen[alertable.ID] {
		t.Fatal("thresholded product must be visited")
	}
}
