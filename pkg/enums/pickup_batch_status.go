package enums

import "fmt"

// PickupBatchStatus tracks a grouped pickup run.
type PickupBatchStatus string

const (
	PickupBatchStatusPending    PickupBatchStatus = "pending"
	PickupBatchStatusInProgress PickupBatchStatus = "in_progress"
	PickupBatchStatusCompleted  PickupBatchStatus = "completed"
)

var validPickupBatchStatuses = []PickupBatchStatus{
	PickupBatchStatusPending,
	PickupBatchStatusInProgress,
	PickupBatchStatusCompleted,
}

// String implements fmt.Stringer.
func (p PickupBatchStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PickupBatchStatus.
func (p PickupBatchStatus) IsValid() bool {
	for _, candidate := range validPickupBatchStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// IsOpen reports whether the batch still accepts orchestration.
func (p PickupBatchStatus) IsOpen() bool {
	return p == PickupBatchStatusPending || p == PickupBatchStatusInProgress
}

// ParsePickupBatchStatus converts raw input into a PickupBatchStatus.
func ParsePickupBatchStatus(value string) (PickupBatchStatus, error) {
	for _, candidate := range validPickupBatchStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid pickup batch status %q", value)
}
