package reports

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/stockroomhq/stockroom-backend/internal/ledger"
	"github.com/stockroomhq/stockroom-backend/pkg/db/models"
	"github.com/stockroomhq/stockroom-backend/pkg/enums"
)

type fakeLedgerWalker struct {
	batches [][]models.InventoryOperation
	err     error
}

func (f *fakeLedgerWalker) ForEach(ctx context.Context, filter ledger.Filter, batchSize int, fn func(ops []models.InventoryOperation) error) error {
	if f.err != nil {
		return f.err
	}
	for _, batch := range f.batches {
		if err := fn(batch); err != nil {
			return err
		}
	}
	return nil
}

func sampleOperation(opType enums.OperationType, qty, before, after int) models.InventoryOperation {
	from := "A-01"
	return models.InventoryOperation{
		ID:              uuid.New(),
		OperationType:   opType,
		ProductID:       uuid.New(),
		InventoryItemID: uuid.New(),
		UserID:          uuid.New(),
		Quantity:        qty,
		QuantityBefore:  before,
		QuantityAfter:   after,
		FromLocation:    &from,
		OperationDate:   time.Date(2026, 8, 20, 14, 30, 0, 0, time.UTC),
	}
}

func TestExportOperationsCSV(t *testing.T) {
	walker := &fakeLedgerWalker{
		batches: [][]models.InventoryOperation{
			{sampleOperation(enums.OperationTypeIn, 10, 0, 10)},
			{sampleOperation(enums.OperationTypeOut, 4, 10, 6)},
		},
	}
	exporter, err := NewExporter(walker)
	if err != nil {
		t.Fatalf("new exporter: %v", err)
	}

	var buf bytes.Buffer
	if err := exporter.ExportOperationsCSV(context.Background(), ledger.Filter{}, &buf); err != nil {
		t.Fatalf("export: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d", len(records))
	}
	if records[0][0] != "operation_id" || len(records[0]) != len(exportHeader) {
		t.Fatalf("unexpected header %v", records[0])
	}
	if records[1][1] != "in" || records[1][5] != "10" {
		t.Fatalf("unexpected first row %v", records[1])
	}
	if records[2][1] != "out" || records[2][7] != "6" {
		t.Fatalf("unexpected second row %v", records[2])
	}
	if records[1][11] != "2026-08-20T14:30:00Z" {
		t.Fatalf("unexpected operation date %q", records[1][11])
	}
}

func TestExportPropagatesLedgerError(t *testing.T) {
	exporter, err := NewExporter(&fakeLedgerWalker{err: errors.New("boom")})
	if err != nil {
		t.Fatalf("new exporter: %v", err)
	}

	var buf bytes.Buffer
	if err := exporter.ExportOperationsCSV(context.Background(), ledger.Filter{}, &buf); err == nil {
		t.Fatal("expected error")
	}
	// The header may already be out; no data rows follow it.
	if lines := strings.Count(buf.String(), "\n"); lines > 1 {
		t.Fatalf("expected at most the header line, got %d lines", lines)
	}
}

func TestExportFilename(t *testing.T) {
	name := ExportFilename(time.Date(2026, 8, 20, 23, 0, 0, 0, time.UTC))
	if name != "inventory-operations-2026-08-20.csv" {
		t.Fatalf("unexpected filename %s", name)
	}
}
