package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldStates(t *testing.T) {
	var unset Field[time.Time]
	_, ok := unset.Column()
	assert.False(t, ok)
	assert.False(t, unset.IsSet())

	null := Null[time.Time]()
	value, ok := null.Column()
	assert.True(t, ok)
	assert.Nil(t, value)
	assert.True(t, null.IsNull())

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	set := Set(now)
	value, ok = set.Column()
	assert.True(t, ok)
	assert.Equal(t, now, value)
	assert.False(t, set.IsNull())

	var nilPtr *int
	assert.True(t, SetPtr(nilPtr).IsNull())
	n := 3
	assert.Equal(t, 3, *SetPtr(&n).Value())
}

func TestFieldUnmarshalJSON(t *testing.T) {
	type payload struct {
		ContactID Field[uuid.UUID] `json:"contactId"`
		Notes     Field[string]    `json:"notes"`
	}

	id := uuid.New()
	var p payload
	require.NoError(t, json.Unmarshal([]byte(`{"contactId":"`+id.String()+`","notes":null}`), &p))
	assert.True(t, p.ContactID.IsSet())
	assert.Equal(t, id, *p.ContactID.Value())
	assert.True(t, p.Notes.IsNull())

	var empty payload
	require.NoError(t, json.Unmarshal([]byte(`{}`), &empty))
	assert.False(t, empty.ContactID.IsSet())
	assert.False(t, empty.Notes.IsSet())

	var bad payload
	assert.Error(t, json.Unmarshal([]byte(`{"contactId":"not-a-uuid"}`), &bad))
}

func TestLocationValidate(t *testing.T) {
	assert.NoError(t, Location{Lat: 48.85, Lng: 2.35}.Validate())
	assert.Error(t, Location{Lat: 91, Lng: 0}.Validate())
	assert.Error(t, Location{Lat: 0, Lng: -181}.Validate())
}
