package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/fieldserve-app/fieldserve-backend/pkg/enums"
)

// Assignment is the current task/technician pairing. At most one row per task
// carries status=active; superseded rows stay behind as terminal records.
type Assignment struct {
	ID           uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TaskID       uuid.UUID              `gorm:"column:task_id;type:uuid;not null"`
	TechnicianID string                 `gorm:"column:technician_id;not null"`
	AssignedBy   string                 `gorm:"column:assigned_by;not null"`
	AssignedAt   time.Time              `gorm:"column:assigned_at;not null"`
	Status       enums.AssignmentStatus `gorm:"column:status;type:assignment_status;not null;default:'active'"`
	Reason       *string                `gorm:"column:reason"`
	CreatedAt    time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
