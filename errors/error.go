package errors

import (
	"fmt"
)

// NotFoundError occurs when a group key does not exist in a GroupIndex, or cannot be converted to the index's key type
type NotFoundError struct{ Key interface{} }

// Error returns a textual representation of this NotFoundError
func (e NotFoundError) Error() string {
	return fmt.Sprintf("Group key %v does not exist", e.Key)
}

// UnorderableError occurs when sorted enumeration is requested for keys which have no total order
type UnorderableError struct{ Key interface{} }

// Error returns a textual representation of this UnorderableError
func (e UnorderableError) Error() string {
	return fmt.Sprintf("Group key %v (%T) cannot be ordered", e.Key, e.Key)
}

// ProbeFailureError occurs when the liveness probe for a Partition fails
type ProbeFailureError struct {
	Position    int
	PartitionID string
	Err         error
}

// Error returns a textual representation of this ProbeFailureError
func (e ProbeFailureError) Error() string {
	return fmt.Sprintf("Probe of partition %s at position %d failed: %v", e.PartitionID, e.Position, e.Err)
}

// Unwrap returns the underlying cause of this ProbeFailureError
func (e ProbeFailureError) Unwrap() error {
	return e.Err
}

// InvalidStateError occurs when a grouped view or index would violate one of its invariants
type InvalidStateError struct{ Reason string }

// Error returns a textual representation of this InvalidStateError
func (e InvalidStateError) Error() string {
	return fmt.Sprintf("Invalid state: %s", e.Reason)
}
