package enums

import "fmt"

// HistoryAction names the cycle transition recorded in the audit trail.
type HistoryAction string

const (
	HistoryActionTrialAssigned   HistoryAction = "trial_assigned"
	HistoryActionSoiled          HistoryAction = "soiled"
	HistoryActionContractSigned  HistoryAction = "contract_signed"
	HistoryActionPickupRequested HistoryAction = "pickup_requested"
	HistoryActionPickupCancelled HistoryAction = "pickup_cancelled"
	HistoryActionCompleted       HistoryAction = "completed"
	HistoryActionTrialExtended   HistoryAction = "trial_extended"
)

var validHistoryActions = []HistoryAction{
	HistoryActionTrialAssigned,
	HistoryActionSoiled,
	HistoryActionContractSigned,
	HistoryActionPickupRequested,
	HistoryActionPickupCancelled,
	HistoryActionCompleted,
	HistoryActionTrialExtended,
}

// String implements fmt.Stringer.
func (h HistoryAction) String() string {
	return string(h)
}

// IsValid reports whether the value is a known HistoryAction.
func (h HistoryAction) IsValid() bool {
	for _, candidate := range validHistoryActions {
		if candidate == h {
			return true
		}
	}
	return false
}

// ParseHistoryAction converts raw input into a HistoryAction.
func ParseHistoryAction(value string) (HistoryAction, error) {
	for _, candidate := range validHistoryActions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid history action %q", value)
}
