package sweep

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/stockroomhq/stockroom-backend/pkg/db/models"
	"github.com/stockroomhq/stockroom-backend/pkg/logger"
	"github.com/stockroomhq/stockroom-backend/pkg/metrics"
)

const lowStockBatchSize = 200

type alertableWalker interface {
	ForEachAlertable(ctx context.Context, batchSize int, fn func(products []models.Product) error) error
}

type reconciler interface {
	Reconcile(ctx context.Context, productID uuid.UUID) error
}

type activeAlertCounter interface {
	CountActiveStockAlerts(ctx context.Context) (int64, error)
}

// LowStockJobParams configures the periodic alert reconciliation pass.
type LowStockJobParams struct {
	Logger       *logger.Logger
	Products     alertableWalker
	Reconciler   reconciler
	AlertCounter activeAlertCounter
	Stats        *metrics.StockMetrics
}

// NewLowStockJob constructs the low-stock sweep job. The sweep is the
// safety net behind the post-operation reconcile: it catches products whose
// reconcile failed or whose thresholds changed outside the stock paths.
func NewLowStockJob(params LowStockJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Products == nil {
		return nil, fmt.Errorf("products walker required")
	}
	if params.Reconciler == nil {
		return nil, fmt.Errorf("reconciler required")
	}
	if params.AlertCounter == nil {
		return nil, fmt.Errorf("alert counter required")
	}
	return &lowStockJob{
		logg:         params.Logger,
		products:     params.Products,
		reconciler:   params.Reconciler,
		alertCounter: params.AlertCounter,
		stats:        params.Stats,
	}, nil
}

type lowStockJob struct {
	logg         *logger.Logger
	products     alertableWalker
	reconciler   reconciler
	alertCounter activeAlertCounter
	stats        *metrics.StockMetrics
}

func (j *lowStockJob) Name() string { return "low_stock_sweep" }

// Run reconciles every alertable product. A failing product does not stop
// the pass; failures are aggregated and reported once at the end.
func (j *lowStockJob) Run(ctx context.Context) error {
	var reconcileErrs error
	visited := 0

	err := j.products.ForEachAlertable(ctx, lowStockBatchSize, func(batch []models.Product) error {
		for i := range batch {
			visited++
			if err := j.reconciler.Reconcile(ctx, batch[i].ID); err != nil {
				reconcileErrs = multierr.Append(reconcileErrs, fmt.Errorf("product %s: %w", batch[i].ID, err))
			}
		}
		return ctx.Err()
	})
	if err != nil {
		return fmt.Errorf("walk alertable products: %w", err)
	}

	lctx := j.logg.WithField(ctx, "products_visited", visited)
	j.logg.Info(lctx, "low stock sweep pass finished")

	active, err := j.alertCounter.CountActiveStockAlerts(ctx)
	if err != nil {
		reconcileErrs = multierr.Append(reconcileErrs, fmt.Errorf("count active alerts: %w", err))
	} else {
		j.stats.SetActiveAlerts(int(active))
	}

	return reconcileErrs
}
