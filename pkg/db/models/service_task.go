package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/fieldserve-app/fieldserve-backend/pkg/enums"
)

// ServiceTask is a unit of field work moving through the dispatch lifecycle.
// Status is mutated only by the dispatch engine. AssignedTechnicianID always
// reflects the most recent technician, even after the task is unassigned.
type ServiceTask struct {
	ID                   uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Title                string             `gorm:"column:title;not null"`
	Description          *string            `gorm:"column:description"`
	ClientAddress        string             `gorm:"column:client_address;not null"`
	Priority             enums.TaskPriority `gorm:"column:priority;type:task_priority;not null;default:'medium'"`
	EstimatedDurationMin *int               `gorm:"column:estimated_duration_min"`
	Status               enums.TaskStatus   `gorm:"column:status;type:task_status;not null;default:'unassigned'"`
	AssignedTechnicianID *string            `gorm:"column:assigned_technician_id"`
	CreatedBy            string             `gorm:"column:created_by;not null"`
	StartedAt            *time.Time         `gorm:"column:started_at"`
	CompletedAt          *time.Time         `gorm:"column:completed_at"`
	WorkSummary          *string            `gorm:"column:work_summary"`
	Assignments          []Assignment       `gorm:"foreignKey:TaskID;constraint:OnDelete:CASCADE"`
	CreatedAt            time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
