package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/matcycle-backend/pkg/enums"
)

// PickupBatch is one grouped collection run performed by a driver.
type PickupBatch struct {
	ID             uuid.UUID               `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Status         enums.PickupBatchStatus `gorm:"column:status;not null" json:"status"`
	ScheduledDate  *time.Time              `gorm:"column:scheduled_date" json:"scheduledDate,omitempty"`
	AssignedDriver *string                 `gorm:"column:assigned_driver" json:"assignedDriver,omitempty"`
	Notes          *string                 `gorm:"column:notes" json:"notes,omitempty"`
	CreatedBy      *uuid.UUID              `gorm:"column:created_by;type:uuid" json:"createdBy,omitempty"`
	CreatedAt      time.Time               `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	CompletedAt    *time.Time              `gorm:"column:completed_at" json:"completedAt,omitempty"`
}

func (PickupBatch) TableName() string { return "pickup_batches" }

func (b *PickupBatch) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}
