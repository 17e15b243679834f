package dispatch

import (
	"time"

	"github.com/google/uuid"

	"github.com/fieldserve-app/fieldserve-backend/pkg/db/models"
	"github.com/fieldserve-app/fieldserve-backend/pkg/enums"
)

// TaskSortField names the columns the task list can sort on.
type TaskSortField string

const (
	TaskSortPriority  TaskSortField = "priority"
	TaskSortCreatedAt TaskSortField = "created_at"
	TaskSortStatus    TaskSortField = "status"
)

// SortOrder is the list sort direction.
type SortOrder string

const (
	SortOrderAsc  SortOrder = "asc"
	SortOrderDesc SortOrder = "desc"
)

// TaskFilters describe the inputs supported by the task list.
type TaskFilters struct {
	Status       *enums.TaskStatus
	Priority     *enums.TaskPriority
	TechnicianID *string
	Query        string
}

// TaskSort pairs a sort field with its direction. Zero values fall back to
// priority descending.
type TaskSort struct {
	Field TaskSortField
	Order SortOrder
}

// TaskSummary exposes the aggregated fields returned in the task list.
type TaskSummary struct {
	ID                   uuid.UUID          `json:"id"`
	Title                string             `json:"title"`
	ClientAddress        string             `json:"client_address"`
	Priority             enums.TaskPriority `json:"priority"`
	Status               enums.TaskStatus   `json:"status"`
	AssignedTechnicianID *string            `json:"assigned_technician_id,omitempty"`
	EstimatedDurationMin *int               `json:"estimated_duration_min,omitempty"`
	CreatedBy            string             `json:"created_by"`
	CreatedAt            time.Time          `json:"created_at"`
}

// TaskList wraps the paginated tasks plus page metadata and the status
// breakdown. StatusCounts always carries every status and ignores filters.
type TaskList struct {
	Tasks         []TaskSummary              `json:"tasks"`
	Page          int                        `json:"page"`
	PageSize      int                        `json:"page_size"`
	TotalElements int64                      `json:"total_elements"`
	TotalPages    int                        `json:"total_pages"`
	StatusCounts  map[enums.TaskStatus]int64 `json:"status_counts"`
}

// TaskDetail bundles a task with its assignment records and audit trail.
type TaskDetail struct {
	Task        models.ServiceTask         `json:"task"`
	Assignments []models.Assignment        `json:"assignments"`
	History     []models.AssignmentHistory `json:"history"`
}

// TechnicianTask is a task surfaced on a technician's work queue, annotated
// with when that technician was assigned to it.
type TechnicianTask struct {
	Task       models.ServiceTask `json:"task"`
	AssignedAt time.Time          `json:"assigned_at"`
}

// AssignmentResult reports the outcome of an assign or reassign operation.
// PreviousAssignment carries the superseded record so callers can surface
// the reassignment history without a second lookup.
type AssignmentResult struct {
	Task                 models.ServiceTask `json:"task"`
	Assignment           models.Assignment  `json:"assignment"`
	PreviousTechnicianID *string            `json:"previous_technician_id,omitempty"`
	PreviousAssignment   *models.Assignment `json:"previous_assignment,omitempty"`
	ActiveAssignments    int64              `json:"active_assignments"`
	WorkloadWarning      bool               `json:"workload_warning"`
	WorkloadMessage      string             `json:"workload_message,omitempty"`
}
