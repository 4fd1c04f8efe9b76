package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("row missing")
	err := Wrap(CodeNotFound, cause, "inventory item not found")

	if !errors.Is(err, cause) {
		t.Fatal("expected wrapped cause to survive errors.Is")
	}
	if As(err).Code() != CodeNotFound {
		t.Fatalf("expected NOT_FOUND, got %s", As(err).Code())
	}
}

func TestAsFindsNestedTypedError(t *testing.T) {
	inner := New(CodeInsufficientStock, "only 2 available")
	outer := fmt.Errorf("applying operation: %w", inner)

	typed := As(outer)
	if typed == nil {
		t.Fatal("expected typed error through wrapping")
	}
	if typed.Code() != CodeInsufficientStock {
		t.Fatalf("expected INSUFFICIENT_STOCK, got %s", typed.Code())
	}
}

func TestMetadataForDomainCodes(t *testing.T) {
	cases := map[Code]int{
		CodeValidation:        http.StatusBadRequest,
		CodeInsufficientStock: http.StatusUnprocessableEntity,
		CodeItemBlocked:       http.StatusUnprocessableEntity,
		CodeNotFound:          http.StatusNotFound,
		Code("BOGUS"):         http.StatusInternalServerError,
	}
	for code, want := range cases {
		if got := MetadataFor(code).HTTPStatus; got != want {
			t.Fatalf("code %s: expected %d, got %d", code, want, got)
		}
	}
}

func TestDumpWalksChain(t *testing.T) {
	err := Wrap(CodeDependency, errors.New("conn reset"), "db: update item")
	dump := Dump(err)

	if dump.Code != CodeDependency {
		t.Fatalf("expected DEPENDENCY_ERROR, got %s", dump.Code)
	}
	if len(dump.Chain) < 2 {
		t.Fatalf("expected chain to include cause, got %v", dump.Chain)
	}
}

func TestWithDetails(t *testing.T) {
	err := New(CodeInsufficientStock, "short").WithDetails(map[string]any{"available": 2})
	details, ok := err.Details().(map[string]any)
	if !ok || details["available"] != 2 {
		t.Fatalf("unexpected details %v", err.Details())
	}
}
