package enums

import "fmt"

// TaskStatus tracks the lifecycle of a service task.
type TaskStatus string

const (
	TaskStatusUnassigned TaskStatus = "unassigned"
	TaskStatusAssigned   TaskStatus = "assigned"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
)

var validTaskStatuses = []TaskStatus{
	TaskStatusUnassigned,
	TaskStatusAssigned,
	TaskStatusInProgress,
	TaskStatusCompleted,
}

// AllTaskStatuses returns the canonical status set in lifecycle order.
func AllTaskStatuses() []TaskStatus {
	out := make([]TaskStatus, len(validTaskStatuses))
	copy(out, validTaskStatuses)
	return out
}

// String implements fmt.Stringer.
func (s TaskStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known TaskStatus.
func (s TaskStatus) IsValid() bool {
	for _, candidate := range validTaskStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status admits no further transitions.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted
}

// ParseTaskStatus converts raw input into a TaskStatus.
func ParseTaskStatus(value string) (TaskStatus, error) {
	for _, candidate := range validTaskStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid task status %q", value)
}
