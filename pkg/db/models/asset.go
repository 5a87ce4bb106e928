package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/matcycle-backend/pkg/enums"
)

// Asset is a durable rental item identified by an immutable code.
type Asset struct {
	ID        uuid.UUID         `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Code      string            `gorm:"column:code;not null;uniqueIndex:ux_assets_code" json:"code"`
	Prefix    string            `gorm:"column:prefix;not null" json:"prefix"`
	OwnerID   uuid.UUID         `gorm:"column:owner_id;type:uuid;not null" json:"ownerId"`
	Status    enums.AssetStatus `gorm:"column:status;not null" json:"status"`
	CreatedAt time.Time         `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time         `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (Asset) TableName() string { return "assets" }

func (a *Asset) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
