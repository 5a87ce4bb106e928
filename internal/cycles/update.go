package cycles

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/matcycle-backend/pkg/db/models"
	"github.com/angelmondragon/matcycle-backend/pkg/enums"
	"github.com/angelmondragon/matcycle-backend/pkg/types"
)

// Update lists the cycle columns a transition writes. Unset fields are left
// untouched; Null fields are cleared.
type Update struct {
	Status            types.Field[enums.CycleStatus]
	CompanyID         types.Field[uuid.UUID]
	ContactID         types.Field[uuid.UUID]
	TestStartAt       types.Field[time.Time]
	TestEndAt         types.Field[time.Time]
	PickupRequestedAt types.Field[time.Time]
	ContractSigned    types.Field[bool]
	ContractSignedAt  types.Field[time.Time]
	ContractFrequency types.Field[enums.ContractFrequency]
	ExtensionsCount   types.Field[int]
	LocationLat       types.Field[float64]
	LocationLng       types.Field[float64]
	CompletedAt       types.Field[time.Time]
}

func (u Update) columns() map[string]any {
	cols := map[string]any{}
	add := func(name string, value any, ok bool) {
		if ok {
			cols[name] = value
		}
	}
	v, ok := u.Status.Column()
	add("status", v, ok)
	v, ok = u.CompanyID.Column()
	add("company_id", v, ok)
	v, ok = u.ContactID.Column()
	add("contact_id", v, ok)
	v, ok = u.TestStartAt.Column()
	add("test_start_at", v, ok)
	v, ok = u.TestEndAt.Column()
	add("test_end_at", v, ok)
	v, ok = u.PickupRequestedAt.Column()
	add("pickup_requested_at", v, ok)
	v, ok = u.ContractSigned.Column()
	add("contract_signed", v, ok)
	v, ok = u.ContractSignedAt.Column()
	add("contract_signed_at", v, ok)
	v, ok = u.ContractFrequency.Column()
	add("contract_frequency", v, ok)
	v, ok = u.ExtensionsCount.Column()
	add("extensions_count", v, ok)
	v, ok = u.LocationLat.Column()
	add("location_lat", v, ok)
	v, ok = u.LocationLng.Column()
	add("location_lng", v, ok)
	v, ok = u.CompletedAt.Column()
	add("completed_at", v, ok)
	return cols
}

// applyTo writes the set fields onto c, mirroring what columns sends to storage.
func (u Update) applyTo(c *models.Cycle) {
	setValue(u.Status, &c.Status)
	setPtr(u.CompanyID, &c.CompanyID)
	setPtr(u.ContactID, &c.ContactID)
	setPtr(u.TestStartAt, &c.TestStartAt)
	setPtr(u.TestEndAt, &c.TestEndAt)
	setPtr(u.PickupRequestedAt, &c.PickupRequestedAt)
	setValue(u.ContractSigned, &c.ContractSigned)
	setPtr(u.ContractSignedAt, &c.ContractSignedAt)
	setPtr(u.ContractFrequency, &c.ContractFrequency)
	setValue(u.ExtensionsCount, &c.ExtensionsCount)
	setPtr(u.LocationLat, &c.LocationLat)
	setPtr(u.LocationLng, &c.LocationLng)
	setPtr(u.CompletedAt, &c.CompletedAt)
}

func setValue[T any](f types.Field[T], dst *T) {
	if v := f.Value(); v != nil {
		*dst = *v
	}
}

func setPtr[T any](f types.Field[T], dst **T) {
	if !f.IsSet() {
		return
	}
	if v := f.Value(); v != nil {
		val := *v
		*dst = &val
		return
	}
	*dst = nil
}
