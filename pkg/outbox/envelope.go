package outbox

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EnvelopeVersion is written on every new outbox row.
const EnvelopeVersion = 1

// ActorRef names the caller that triggered the mutation.
type ActorRef struct {
	ActorID uuid.UUID `json:"actorId"`
}

// PayloadEnvelope wraps every outbox payload; Data holds the event-specific body.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

var (
	errEnvelopeData    = errors.New("envelope data is empty")
	errEnvelopeEventID = errors.New("envelope event id is empty")
)

// DecodeEnvelope parses a stored payload and rejects envelopes the publisher cannot ship.
func DecodeEnvelope(raw []byte) (PayloadEnvelope, error) {
	var env PayloadEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return env, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Version < 1 || env.Version > EnvelopeVersion {
		return env, fmt.Errorf("unsupported envelope version %d", env.Version)
	}
	if env.EventID == "" {
		return env, errEnvelopeEventID
	}
	data := bytes.TrimSpace(env.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return env, errEnvelopeData
	}
	return env, nil
}
