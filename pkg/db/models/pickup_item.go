package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PickupItem links one cycle to the batch collecting it. Open stays set until
// the batch completes; at most one open item may exist per cycle.
type PickupItem struct {
	ID         uuid.UUID  `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	BatchID    uuid.UUID  `gorm:"column:batch_id;type:uuid;not null;uniqueIndex:ux_pickup_items_batch_cycle" json:"batchId"`
	CycleID    uuid.UUID  `gorm:"column:cycle_id;type:uuid;not null;uniqueIndex:ux_pickup_items_batch_cycle" json:"cycleId"`
	PickedUp   bool       `gorm:"column:picked_up;not null" json:"pickedUp"`
	PickedUpAt *time.Time `gorm:"column:picked_up_at" json:"pickedUpAt,omitempty"`
	Open       bool       `gorm:"column:is_open;not null;default:true" json:"-"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}

func (PickupItem) TableName() string { return "pickup_items" }

func (i *PickupItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
