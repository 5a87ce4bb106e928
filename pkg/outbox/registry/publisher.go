package registry

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/matcycle-backend/pkg/config"
	"github.com/angelmondragon/matcycle-backend/pkg/db/models"
	"github.com/angelmondragon/matcycle-backend/pkg/enums"
	"github.com/angelmondragon/matcycle-backend/pkg/outbox"
	"github.com/angelmondragon/matcycle-backend/pkg/outbox/payloads"
)

// decoder turns envelope data into a typed payload for one aggregate.
type decoder func(data json.RawMessage, aggregateID uuid.UUID) (interface{}, error)

// EventDescriptor binds an event type to its aggregate and destination topic.
type EventDescriptor struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string

	decode decoder
}

// ResolvedEvent is an outbox row that is safe to publish.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    interface{}
}

// NonRetryableError marks a row that will fail the same way on every attempt.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.Err }

// NewNonRetryableError wraps err so the publisher dead-letters instead of retrying.
func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

// EventRegistry resolves outbox rows against the known event catalogue.
type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NewEventRegistry routes every domain event to cfg.DomainTopic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	if cfg.DomainTopic == "" {
		return nil, errors.New("domain topic is required")
	}
	topic := cfg.DomainTopic
	reg := &EventRegistry{entries: map[enums.OutboxEventType]EventDescriptor{}}
	reg.add(enums.EventCycleChanged, enums.AggregateCycle, topic, typed(checkCycle))
	reg.add(enums.EventBatchChanged, enums.AggregatePickupBatch, topic, typed(checkBatch))
	reg.add(enums.EventAssetChanged, enums.AggregateAsset, topic, typed(checkAsset))
	return reg, nil
}

func (r *EventRegistry) add(eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType, topic string, decode decoder) {
	r.entries[eventType] = EventDescriptor{
		EventType:     eventType,
		AggregateType: aggregate,
		Topic:         topic,
		decode:        decode,
	}
}

// Topics lists the distinct topics the registry publishes to.
func (r *EventRegistry) Topics() []string {
	seen := map[string]struct{}{}
	var out []string
	for _, desc := range r.entries {
		if _, ok := seen[desc.Topic]; ok {
			continue
		}
		seen[desc.Topic] = struct{}{}
		out = append(out, desc.Topic)
	}
	return out
}

// Resolve checks the row against its descriptor and decodes the payload.
// Every error it returns is a NonRetryableError.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	if !ok {
		return nil, NewNonRetryableError(fmt.Errorf("unsupported event type %s", event.EventType))
	}
	if desc.AggregateType != event.AggregateType {
		return nil, NewNonRetryableError(fmt.Errorf("%s expects aggregate %s, row has %s", event.EventType, desc.AggregateType, event.AggregateType))
	}
	if event.AggregateID == uuid.Nil {
		return nil, NewNonRetryableError(errors.New("missing aggregate_id"))
	}
	env, err := outbox.DecodeEnvelope(event.Payload)
	if err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("%s: %w", event.EventType, err))
	}
	payload, err := desc.decode(env.Data, event.AggregateID)
	if err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("%s payload: %w", event.EventType, err))
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: env, Payload: payload}, nil
}

func typed[T any](check func(*T, uuid.UUID) error) decoder {
	return func(data json.RawMessage, aggregateID uuid.UUID) (interface{}, error) {
		out := new(T)
		if err := json.Unmarshal(data, out); err != nil {
			return nil, err
		}
		if err := check(out, aggregateID); err != nil {
			return nil, err
		}
		return out, nil
	}
}

func checkCycle(p *payloads.CycleChangedEvent, aggregateID uuid.UUID) error {
	if p.CycleID != aggregateID {
		return fmt.Errorf("cycle_id %s does not match aggregate %s", p.CycleID, aggregateID)
	}
	if !p.Status.IsValid() {
		return fmt.Errorf("invalid cycle status %q", p.Status)
	}
	return nil
}

func checkBatch(p *payloads.BatchChangedEvent, aggregateID uuid.UUID) error {
	if p.BatchID != aggregateID {
		return fmt.Errorf("batch_id %s does not match aggregate %s", p.BatchID, aggregateID)
	}
	if p.Op == "" {
		return errors.New("batch op is required")
	}
	if !p.Deleted && !p.Status.IsValid() {
		return fmt.Errorf("invalid batch status %q", p.Status)
	}
	return nil
}

func checkAsset(p *payloads.AssetChangedEvent, aggregateID uuid.UUID) error {
	if p.AssetID != aggregateID {
		return fmt.Errorf("asset_id %s does not match aggregate %s", p.AssetID, aggregateID)
	}
	if !p.Status.IsValid() {
		return fmt.Errorf("invalid asset status %q", p.Status)
	}
	return nil
}
