package core

import (
	"time"
)

// Operation event types
const (
	EventOperationStarted   = "operation.started"
	EventOperationCompleted = "operation.completed"
	EventOperationFailed    = "operation.failed"
	EventOperationFallback  = "operation.fallback"
)

// Fallback kinds carried by OperationFallbackEvent.
const (
	FallbackBypass     = "bypass"
	FallbackPrivileged = "privileged"
	FallbackCopyOnly   = "copy-only"
)

// OperationEventData contains common data for operation events
type OperationEventData struct {
	OperationID   string
	OperationType OperationType
	Path          string
	Items         int
}

// OperationStartedEvent is emitted when an engine call begins
type OperationStartedEvent struct {
	topic
	Operation OperationEventData
}

// NewOperationStartedEvent creates a new operation started event
func NewOperationStartedEvent(data OperationEventData) *OperationStartedEvent {
	return &OperationStartedEvent{
		topic:     EventOperationStarted,
		Operation: data,
	}
}

// OperationCompletedEvent is emitted when an engine call succeeds. Code may
// carry InProgress for partial successes.
type OperationCompletedEvent struct {
	topic
	Operation OperationEventData
	Code      ErrorCode
	Duration  time.Duration
}

// NewOperationCompletedEvent creates a new operation completed event
func NewOperationCompletedEvent(data OperationEventData, code ErrorCode, duration time.Duration) *OperationCompletedEvent {
	return &OperationCompletedEvent{
		topic:     EventOperationCompleted,
		Operation: data,
		Code:      code,
		Duration:  duration,
	}
}

// OperationFailedEvent is emitted when an engine call fails
type OperationFailedEvent struct {
	topic
	Operation OperationEventData
	Code      ErrorCode
	Error     error
	Duration  time.Duration
}

// NewOperationFailedEvent creates a new operation failed event
func NewOperationFailedEvent(data OperationEventData, code ErrorCode, err error, duration time.Duration) *OperationFailedEvent {
	return &OperationFailedEvent{
		topic:     EventOperationFailed,
		Operation: data,
		Code:      code,
		Error:     err,
		Duration:  duration,
	}
}

// OperationFallbackEvent is emitted when an item leaves the direct I/O path.
type OperationFallbackEvent struct {
	topic
	Operation OperationEventData
	Kind      string
}

// NewOperationFallbackEvent creates a new fallback event
func NewOperationFallbackEvent(data OperationEventData, kind string) *OperationFallbackEvent {
	return &OperationFallbackEvent{
		topic:     EventOperationFallback,
		Operation: data,
		Kind:      kind,
	}
}
