package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/angelmondragon/matcycle-backend/pkg/enums"
)

// HistoryEvent is an append-only record of one cycle transition.
type HistoryEvent struct {
	Seq         int64               `gorm:"column:seq;primaryKey;autoIncrement" json:"seq"`
	CycleID     uuid.UUID           `gorm:"column:cycle_id;type:uuid;not null" json:"cycleId"`
	Action      enums.HistoryAction `gorm:"column:action;not null" json:"action"`
	OldStatus   *enums.CycleStatus  `gorm:"column:old_status" json:"oldStatus,omitempty"`
	NewStatus   enums.CycleStatus   `gorm:"column:new_status;not null" json:"newStatus"`
	Metadata    datatypes.JSON      `gorm:"column:metadata" json:"metadata,omitempty"`
	PerformedBy uuid.UUID           `gorm:"column:performed_by;type:uuid;not null" json:"performedBy"`
	At          time.Time           `gorm:"column:at;not null" json:"at"`
}

func (HistoryEvent) TableName() string { return "cycle_history" }
