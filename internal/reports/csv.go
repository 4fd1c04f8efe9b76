package reports

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/stockroomhq/stockroom-backend/internal/ledger"
	"github.com/stockroomhq/stockroom-backend/pkg/db/models"
	pkgerrors "github.com/stockroomhq/stockroom-backend/pkg/errors"
)

const exportBatchSize = 500

var exportHeader = []string{
	"operation_id",
	"operation_type",
	"product_id",
	"inventory_item_id",
	"user_id",
	"quantity",
	"quantity_before",
	"quantity_after",
	"from_location",
	"to_location",
	"notes",
	"operation_date",
}

// Exporter streams the operations ledger as CSV.
type Exporter interface {
	ExportOperationsCSV(ctx context.Context, filter ledger.Filter, w io.Writer) error
}

type ledgerWalker interface {
	ForEach(ctx context.Context, filter ledger.Filter, batchSize int, fn func(ops []models.InventoryOperation) error) error
}

type exporter struct {
	ledger ledgerWalker
}

// NewExporter builds a CSV exporter over the ledger repository.
func NewExporter(ledger ledgerWalker) (Exporter, error) {
	if ledger == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &exporter{ledger: ledger}, nil
}

// ExportOperationsCSV writes matching ledger rows oldest first. Rows are
// flushed per batch so large exports never buffer fully in memory.
func (e *exporter) ExportOperationsCSV(ctx context.Context, filter ledger.Filter, w io.Writer) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(exportHeader); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "write csv header")
	}

	err := e.ledger.ForEach(ctx, filter, exportBatchSize, func(ops []models.InventoryOperation) error {
		for i := range ops {
			if err := writer.Write(operationRecord(&ops[i])); err != nil {
				return err
			}
		}
		writer.Flush()
		return writer.Error()
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "stream operations")
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "flush csv")
	}
	return nil
}

func operationRecord(op *models.InventoryOperation) []string {
	return []string{
		op.ID.String(),
		string(op.OperationType),
		op.ProductID.String(),
		op.InventoryItemID.String(),
		op.UserID.String(),
		strconv.Itoa(op.Quantity),
		strconv.Itoa(op.QuantityBefore),
		strconv.Itoa(op.QuantityAfter),
		derefString(op.FromLocation),
		derefString(op.ToLocation),
		derefString(op.Notes),
		op.OperationDate.UTC().Format(time.RFC3339),
	}
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

// ExportFilename names the download after the export date.
func ExportFilename(now time.Time) string {
	return fmt.Sprintf("inventory-operations-%s.csv", now.UTC().Format("2006-01-02"))
}
