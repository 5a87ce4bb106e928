package cycles

import (
	"github.com/angelmondragon/matcycle-backend/pkg/enums"
)

type transition struct {
	from []enums.CycleStatus
	to   enums.CycleStatus
}

// transitions is the complete table of legal cycle moves keyed by action.
// Anything absent is rejected.
var transitions = map[enums.HistoryAction]transition{
	enums.HistoryActionTrialAssigned: {
		from: []enums.CycleStatus{enums.CycleStatusClean},
		to:   enums.CycleStatusOnTest,
	},
	enums.HistoryActionSoiled: {
		from: []enums.CycleStatus{enums.CycleStatusOnTest},
		to:   enums.CycleStatusDirty,
	},
	enums.HistoryActionContractSigned: {
		from: []enums.CycleStatus{enums.CycleStatusOnTest, enums.CycleStatusDirty},
		to:   enums.CycleStatusWaitingDriver,
	},
	enums.HistoryActionPickupRequested: {
		from: []enums.CycleStatus{enums.CycleStatusOnTest, enums.CycleStatusDirty},
		to:   enums.CycleStatusWaitingDriver,
	},
	enums.HistoryActionPickupCancelled: {
		from: []enums.CycleStatus{enums.CycleStatusWaitingDriver},
		to:   enums.CycleStatusDirty,
	},
	enums.HistoryActionCompleted: {
		from: []enums.CycleStatus{enums.CycleStatusWaitingDriver},
		to:   enums.CycleStatusCompleted,
	},
	enums.HistoryActionTrialExtended: {
		from: []enums.CycleStatus{enums.CycleStatusOnTest},
		to:   enums.CycleStatusOnTest,
	},
}

// Next returns the status reached by applying action from status.
func Next(status enums.CycleStatus, action enums.HistoryAction) (enums.CycleStatus, bool) {
	t, ok := transitions[action]
	if !ok {
		return "", false
	}
	for _, from := range t.from {
		if from == status {
			return t.to, true
		}
	}
	return "", false
}

// Allowed lists the statuses action may start from.
func Allowed(action enums.HistoryAction) []enums.CycleStatus {
	t, ok := transitions[action]
	if !ok {
		return nil
	}
	out := make([]enums.CycleStatus, len(t.from))
	copy(out, t.from)
	return out
}
