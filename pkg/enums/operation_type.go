package enums

import "fmt"

// OperationType describes the allowed values for the `operation_type` column in inventory_operations.
type OperationType string

const (
	OperationTypeIn          OperationType = "in"
	OperationTypeOut         OperationType = "out"
	OperationTypeTransfer    OperationType = "transfer"
	OperationTypeAdjustment  OperationType = "adjustment"
	OperationTypeReservation OperationType = "reservation"
	OperationTypeRelease     OperationType = "release"
)

var validOperationTypes = []OperationType{
	OperationTypeIn,
	OperationTypeOut,
	OperationTypeTransfer,
	OperationTypeAdjustment,
	OperationTypeReservation,
	OperationTypeRelease,
}

// String implements fmt.Stringer.
func (o OperationType) String() string {
	return string(o)
}

// IsValid reports whether the value matches the canonical operation type enum.
func (o OperationType) IsValid() bool {
	for _, candidate := range validOperationTypes {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParseOperationType converts the raw string to OperationType.
func ParseOperationType(value string) (OperationType, error) {
	for _, candidate := range validOperationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid operation type %q", value)
}
