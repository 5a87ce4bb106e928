package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type column of outbox_events.
type OutboxAggregateType string

const (
	AggregateCycle       OutboxAggregateType = "cycle"
	AggregatePickupBatch OutboxAggregateType = "pickup_batch"
	AggregateAsset       OutboxAggregateType = "asset"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateCycle,
	AggregatePickupBatch,
	AggregateAsset,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type column of outbox_events.
type OutboxEventType string

const (
	EventCycleChanged OutboxEventType = "cycle_changed"
	EventBatchChanged OutboxEventType = "batch_changed"
	EventAssetChanged OutboxEventType = "asset_changed"
)

var validOutboxEventTypes = []OutboxEventType{
	EventCycleChanged,
	EventBatchChanged,
	EventAssetChanged,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
