package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/matcycle-backend/pkg/enums"
	"github.com/angelmondragon/matcycle-backend/pkg/types"
)

// Cycle is one rental lifecycle instance of an asset.
type Cycle struct {
	ID                uuid.UUID                `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	AssetID           uuid.UUID                `gorm:"column:asset_id;type:uuid;not null" json:"assetId"`
	Status            enums.CycleStatus        `gorm:"column:status;not null" json:"status"`
	CompanyID         *uuid.UUID               `gorm:"column:company_id;type:uuid" json:"companyId,omitempty"`
	ContactID         *uuid.UUID               `gorm:"column:contact_id;type:uuid" json:"contactId,omitempty"`
	TestStartAt       *time.Time               `gorm:"column:test_start_at" json:"testStartAt,omitempty"`
	TestEndAt         *time.Time               `gorm:"column:test_end_at" json:"testEndAt,omitempty"`
	PickupRequestedAt *time.Time               `gorm:"column:pickup_requested_at" json:"pickupRequestedAt,omitempty"`
	ContractSigned    bool                     `gorm:"column:contract_signed;not null" json:"contractSigned"`
	ContractSignedAt  *time.Time               `gorm:"column:contract_signed_at" json:"contractSignedAt,omitempty"`
	ContractFrequency *enums.ContractFrequency `gorm:"column:contract_frequency" json:"contractFrequency,omitempty"`
	ExtensionsCount   int                      `gorm:"column:extensions_count;not null" json:"extensionsCount"`
	LocationLat       *float64                 `gorm:"column:location_lat" json:"-"`
	LocationLng       *float64                 `gorm:"column:location_lng" json:"-"`
	CompletedAt       *time.Time               `gorm:"column:completed_at" json:"completedAt,omitempty"`
	CreatedAt         time.Time                `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt         time.Time                `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (Cycle) TableName() string { return "cycles" }

func (c *Cycle) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// Location returns the placement point when both coordinates are recorded.
func (c Cycle) Location() *types.Location {
	if c.LocationLat == nil || c.LocationLng == nil {
		return nil
	}
	return &types.Location{Lat: *c.LocationLat, Lng: *c.LocationLng}
}

// TrialDeadline is the implied end of the seven day trial window.
func (c Cycle) TrialDeadline(window time.Duration) *time.Time {
	if c.TestStartAt == nil {
		return nil
	}
	deadline := c.TestStartAt.Add(window)
	return &deadline
}
