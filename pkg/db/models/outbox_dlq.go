package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/angelmondragon/matcycle-backend/pkg/enums"
)

// OutboxDLQ keeps a copy of every outbox event the publisher gave up on.
type OutboxDLQ struct {
	ID            uuid.UUID                  `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	EventID       uuid.UUID                  `gorm:"column:event_id;type:uuid;not null" json:"eventId"`
	EventType     enums.OutboxEventType      `gorm:"column:event_type;not null" json:"eventType"`
	AggregateType enums.OutboxAggregateType  `gorm:"column:aggregate_type;not null" json:"aggregateType"`
	AggregateID   uuid.UUID                  `gorm:"column:aggregate_id;type:uuid;not null" json:"aggregateId"`
	Payload       datatypes.JSON             `gorm:"column:payload;not null" json:"payload"`
	ErrorReason   enums.OutboxDLQErrorReason `gorm:"column:error_reason;not null" json:"errorReason"`
	ErrorMessage  *string                    `gorm:"column:error_message" json:"errorMessage,omitempty"`
	AttemptCount  int                        `gorm:"column:attempt_count;not null" json:"attemptCount"`
	FailedAt      time.Time                  `gorm:"column:failed_at;not null" json:"failedAt"`
}

func (OutboxDLQ) TableName() string { return "outbox_dead_letters" }

func (d *OutboxDLQ) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
