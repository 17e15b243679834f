package enums

import "fmt"

// AssignmentAction labels a row in the append-only assignment audit log.
type AssignmentAction string

const (
	AssignmentActionCreated       AssignmentAction = "created"
	AssignmentActionReassigned    AssignmentAction = "reassigned"
	AssignmentActionCancelled     AssignmentAction = "cancelled"
	AssignmentActionCompleted     AssignmentAction = "completed"
	AssignmentActionStatusChanged AssignmentAction = "status_changed"
)

var validAssignmentActions = []AssignmentAction{
	AssignmentActionCreated,
	AssignmentActionReassigned,
	AssignmentActionCancelled,
	AssignmentActionCompleted,
	AssignmentActionStatusChanged,
}

// String implements fmt.Stringer.
func (a AssignmentAction) String() string {
	return string(a)
}

// IsValid reports whether the value is a known AssignmentAction.
func (a AssignmentAction) IsValid() bool {
	for _, candidate := range validAssignmentActions {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAssignmentAction converts raw input into an AssignmentAction.
func ParseAssignmentAction(value string) (AssignmentAction, error) {
	for _, candidate := range validAssignmentActions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid assignment action %q", value)
}
