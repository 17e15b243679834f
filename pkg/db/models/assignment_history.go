package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/fieldserve-app/fieldserve-backend/pkg/enums"
)

// AssignmentHistory is the append-only audit log of assignment-related state
// changes. Rows are written in the same transaction as the mutation they
// describe and are never updated or deleted.
type AssignmentHistory struct {
	ID           uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TaskID       uuid.UUID              `gorm:"column:task_id;type:uuid;not null"`
	TechnicianID string                 `gorm:"column:technician_id;not null"`
	Action       enums.AssignmentAction `gorm:"column:action;type:assignment_action;not null"`
	ActionBy     string                 `gorm:"column:action_by;not null"`
	Reason       *string                `gorm:"column:reason"`
	CreatedAt    time.Time              `gorm:"column:created_at;autoCreateTime"`
}
