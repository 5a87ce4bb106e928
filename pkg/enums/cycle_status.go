package enums

import "fmt"

// CycleStatus tracks one rental cycle of an asset.
type CycleStatus string

const (
	CycleStatusClean         CycleStatus = "clean"
	CycleStatusOnTest        CycleStatus = "on_test"
	CycleStatusDirty         CycleStatus = "dirty"
	CycleStatusWaitingDriver CycleStatus = "waiting_driver"
	CycleStatusCompleted     CycleStatus = "completed"
)

var validCycleStatuses = []CycleStatus{
	CycleStatusClean,
	CycleStatusOnTest,
	CycleStatusDirty,
	CycleStatusWaitingDriver,
	CycleStatusCompleted,
}

// CycleStatuses returns every known status in lifecycle order.
func CycleStatuses() []CycleStatus {
	out := make([]CycleStatus, len(validCycleStatuses))
	copy(out, validCycleStatuses)
	return out
}

// String implements fmt.Stringer.
func (c CycleStatus) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CycleStatus.
func (c CycleStatus) IsValid() bool {
	for _, candidate := range validCycleStatuses {
		if candidate == c {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further mutation is permitted.
func (c CycleStatus) IsTerminal() bool {
	return c == CycleStatusCompleted
}

// ParseCycleStatus converts raw input into a CycleStatus.
func ParseCycleStatus(value string) (CycleStatus, error) {
	for _, candidate := range validCycleStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid cycle status %q", value)
}
