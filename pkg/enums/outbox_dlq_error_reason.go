package enums

import "fmt"

// OutboxDLQErrorReason records why a row left the outbox without publishing.
type OutboxDLQErrorReason string

const (
	// OutboxDLQReasonMaxAttempts marks rows that kept failing transiently.
	OutboxDLQReasonMaxAttempts OutboxDLQErrorReason = "max_attempts"
	// OutboxDLQReasonNonRetryable marks rows that can never be published as stored.
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)

var validDLQReasons = map[OutboxDLQErrorReason]struct{}{
	OutboxDLQReasonMaxAttempts:  {},
	OutboxDLQReasonNonRetryable: {},
}

func (r OutboxDLQErrorReason) String() string { return string(r) }

// IsValid reports whether r is a known reason.
func (r OutboxDLQErrorReason) IsValid() bool {
	_, ok := validDLQReasons[r]
	return ok
}

// ParseOutboxDLQErrorReason converts a CLI filter into a reason.
func ParseOutboxDLQErrorReason(value string) (OutboxDLQErrorReason, error) {
	r := OutboxDLQErrorReason(value)
	if !r.IsValid() {
		return "", fmt.Errorf("invalid dead-letter reason %q", value)
	}
	return r, nil
}
