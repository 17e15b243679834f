package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateServiceTask OutboxAggregateType = "service_task"
	AggregateAssignment  OutboxAggregateType = "assignment"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateServiceTask,
	AggregateAssignment,
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

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventTaskCreated    OutboxEventType = "task_created"
	EventTaskAssigned   OutboxEventType = "task_assigned"
	EventTaskReassigned OutboxEventType = "task_reassigned"
	EventTaskUnassigned OutboxEventType = "task_unassigned"
	EventTaskStarted    OutboxEventType = "task_started"
	EventTaskCompleted  OutboxEventType = "task_completed"
)

var validOutboxEventTypes = []OutboxEventType{
	EventTaskCreated,
	EventTaskAssigned,
	EventTaskReassigned,
	EventTaskUnassigned,
	EventTaskStarted,
	EventTaskCompleted,
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
