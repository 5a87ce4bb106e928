package payloads

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/matcycle-backend/pkg/enums"
)

// CycleChangedEvent is emitted after a committed cycle transition.
type CycleChangedEvent struct {
	CycleID   uuid.UUID          `json:"cycle_id"`
	AssetID   uuid.UUID          `json:"asset_id"`
	Action    string             `json:"action"`
	OldStatus *enums.CycleStatus `json:"old_status,omitempty"`
	Status    enums.CycleStatus  `json:"status"`
	BatchID   *uuid.UUID         `json:"batch_id,omitempty"`
}

// BatchChangedEvent is emitted after a committed pickup batch mutation.
// Status is empty when the batch was deleted by a cancel.
type BatchChangedEvent struct {
	BatchID  uuid.UUID               `json:"batch_id"`
	Op       string                  `json:"op"`
	Status   enums.PickupBatchStatus `json:"status,omitempty"`
	Deleted  bool                    `json:"deleted,omitempty"`
	CycleIDs []uuid.UUID             `json:"cycle_ids,omitempty"`
}

// AssetChangedEvent is emitted when an asset code changes availability.
type AssetChangedEvent struct {
	AssetID   uuid.UUID          `json:"asset_id"`
	Code      string             `json:"code"`
	OldStatus *enums.AssetStatus `json:"old_status,omitempty"`
	Status    enums.AssetStatus  `json:"status"`
}
