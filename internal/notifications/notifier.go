package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stockroomhq/stockroom-backend/pkg/db"
	"github.com/stockroomhq/stockroom-backend/pkg/db/models"
	"github.com/stockroomhq/stockroom-backend/pkg/enums"
	pkgerrors "github.com/stockroomhq/stockroom-backend/pkg/errors"
	"github.com/stockroomhq/stockroom-backend/pkg/logger"
)

type productLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

type availabilityReader interface {
	SumAvailability(ctx context.Context, productID uuid.UUID) (int, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Notifier keeps stock alerts in sync with a product's availability. It is
// the Reconciler the stock processor calls after each committed operation.
type Notifier struct {
	repo         Repository
	products     productLoader
	availability availabilityReader
	dbClient     txRunner
	hysteresis   int
	logg         *logger.Logger
}

// alertMetadata is the snapshot stored on each stock alert.
type alertMetadata struct {
	Available int    `json:"available"`
	Threshold int    `json:"threshold"`
	SKU       string `json:"sku"`
	Product   string `json:"product"`
}

// NewNotifier wires the low-stock notifier.
func NewNotifier(repo Repository, products productLoader, availability availabilityReader, dbClient *db.Client, hysteresis int, logg *logger.Logger) (*Notifier, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("product loader required")
	}
	if availability == nil {
		return nil, fmt.Errorf("availability reader required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	if hysteresis < 0 {
		return nil, fmt.Errorf("hysteresis must be non-negative")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Notifier{
		repo:         repo,
		products:     products,
		availability: availability,
		dbClient:     dbClient,
		hysteresis:   hysteresis,
		logg:         logg,
	}, nil
}

// Reconcile recomputes the alert state for one product. Re-running with
// unchanged stock leaves the rows untouched.
func (n *Notifier) Reconcile(ctx context.Context, productID uuid.UUID) error {
	if productID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}

	product, err := n.products.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Product gone, so any leftover alerts go too.
			return n.repo.DeleteStockAlerts(ctx, productID)
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}

	threshold := product.AlertThreshold()
	if threshold == 0 {
		return n.repo.DeleteStockAlerts(ctx, productID)
	}

	available, err := n.availability.SumAvailability(ctx, productID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum availability")
	}

	switch {
	case available <= 0:
		return n.upsertAlert(ctx, product, enums.NotificationTypeEmptyStock, available, threshold)
	case available <= threshold:
		return n.upsertAlert(ctx, product, enums.NotificationTypeLowStock, available, threshold)
	default:
		return n.maybeClear(ctx, product.ID, available, threshold)
	}
}

// upsertAlert guarantees exactly one active stock alert for the product:
// the sibling type is removed, and a refresh resets every read marker.
func (n *Notifier) upsertAlert(ctx context.Context, product *models.Product, alertType enums.NotificationType, available, threshold int) error {
	sibling := enums.NotificationTypeLowStock
	if alertType == enums.NotificationTypeLowStock {
		sibling = enums.NotificationTypeEmptyStock
	}

	meta := alertMetadata{
		Available: available,
		Threshold: threshold,
		SKU:       product.SKU,
		Product:   product.Name,
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal alert metadata")
	}

	title, message := alertContent(alertType, product, available, threshold)
	priority := enums.NotificationPriorityHigh
	if alertType == enums.NotificationTypeEmptyStock {
		priority = enums.NotificationPriorityUrgent
	}

	return n.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := n.repo.WithTx(tx)

		if err := txRepo.DeleteStockAlerts(ctx, product.ID, sibling); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove sibling alert")
		}

		existing, err := txRepo.FindStockAlert(ctx, product.ID, alertType)
		switch {
		case err == nil:
			var current alertMetadata
			if json.Unmarshal(existing.Metadata, &current) == nil && current == meta {
				// Stock unchanged since the last pass, keep rows byte-equal.
				return nil
			}
			existing.Priority = priority
			existing.Title = title
			existing.Message = message
			existing.Metadata = metaJSON
			if err := txRepo.Save(ctx, existing); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "refresh alert")
			}
			return txRepo.ClearStates(ctx, existing.ID)
		case errors.Is(err, gorm.ErrRecordNotFound):
			productID := product.ID
			notification := &models.Notification{
				Type:      alertType,
				ProductID: &productID,
				Priority:  priority,
				Title:     title,
				Message:   message,
				Metadata:  metaJSON,
			}
			return txRepo.Create(ctx, notification)
		default:
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find stock alert")
		}
	})
}

// maybeClear removes alerts once availability recovers. With hysteresis
// configured, an existing alert survives until available exceeds
// threshold+hysteresis, which stops flapping near the boundary.
func (n *Notifier) maybeClear(ctx context.Context, productID uuid.UUID, available, threshold int) error {
	if n.hysteresis > 0 && available <= threshold+n.hysteresis {
		for _, alertType := range stockAlertTypes {
			if _, err := n.repo.FindStockAlert(ctx, productID, alertType); err == nil {
				return nil
			} else if !errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find stock alert")
			}
		}
	}
	return n.repo.DeleteStockAlerts(ctx, productID)
}

func alertContent(alertType enums.NotificationType, product *models.Product, available, threshold int) (string, string) {
	if alertType == enums.NotificationTypeEmptyStock {
		return fmt.Sprintf("Out of stock: %s", product.Name),
			fmt.Sprintf("Product %s (%s) has no available stock.", product.Name, product.SKU)
	}
	return fmt.Sprintf("Low stock: %s", product.Name),
		fmt.Sprintf("Product %s (%s) is down to %d %s (threshold %d).", product.Name, product.SKU, available, product.Unit, threshold)
}
