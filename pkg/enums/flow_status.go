package enums

import "fmt"

// FlowStatus tags an inventory item's lifecycle state independent of its
// numeric quantity. Items in transit or damaged never count toward
// availability and cannot be issued from.
type FlowStatus string

const (
	FlowStatusAvailable FlowStatus = "available"
	FlowStatusInTransit FlowStatus = "in_transit"
	FlowStatusDamaged   FlowStatus = "damaged"
	FlowStatusReserved  FlowStatus = "reserved"
)

var validFlowStatuses = []FlowStatus{
	FlowStatusAvailable,
	FlowStatusInTransit,
	FlowStatusDamaged,
	FlowStatusReserved,
}

// String implements fmt.Stringer.
func (f FlowStatus) String() string {
	return string(f)
}

// IsValid reports whether the value is a known FlowStatus.
func (f FlowStatus) IsValid() bool {
	for _, candidate := range validFlowStatuses {
		if candidate == f {
			return true
		}
	}
	return false
}

// BlocksIssue reports whether stock in this status may leave the warehouse.
func (f FlowStatus) BlocksIssue() bool {
	return f == FlowStatusDamaged || f == FlowStatusInTransit
}

// CountsTowardAvailability reports whether the item participates in the
// product-level availability sum.
func (f FlowStatus) CountsTowardAvailability() bool {
	return f != FlowStatusDamaged && f != FlowStatusInTransit
}

// ParseFlowStatus converts the raw string to FlowStatus.
func ParseFlowStatus(value string) (FlowStatus, error) {
	for _, candidate := range validFlowStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid flow status %q", value)
}
