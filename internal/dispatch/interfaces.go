package dispatch

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fieldserve-app/fieldserve-backend/pkg/db/models"
	"github.com/fieldserve-app/fieldserve-backend/pkg/enums"
	"github.com/fieldserve-app/fieldserve-backend/pkg/pagination"
)

// Repository defines persistence operations for the dispatch tables.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateTask(ctx context.Context, task *models.ServiceTask) (*models.ServiceTask, error)
	FindTask(ctx context.Context, taskID uuid.UUID) (*models.ServiceTask, error)
	UpdateTask(ctx context.Context, taskID uuid.UUID, updates map[string]any) error
	ListTasks(ctx context.Context, params pagination.Params, filters TaskFilters, sort TaskSort) (*TaskList, error)
	CountTasksByStatus(ctx context.Context) (map[enums.TaskStatus]int64, error)
	CreateAssignment(ctx context.Context, assignment *models.Assignment) (*models.Assignment, error)
	FindActiveAssignment(ctx context.Context, taskID uuid.UUID) (*models.Assignment, error)
	FindAssignmentsByTask(ctx context.Context, taskID uuid.UUID) ([]models.Assignment, error)
	UpdateAssignment(ctx context.Context, assignmentID uuid.UUID, updates map[string]any) error
	CountActiveAssignments(ctx context.Context, technicianID string) (int64, error)
	CreateHistory(ctx context.Context, entry *models.AssignmentHistory) error
	ListHistory(ctx context.Context, taskID uuid.UUID) ([]models.AssignmentHistory, error)
	ListTechnicianTasks(ctx context.Context, technicianID string, status *enums.TaskStatus) ([]TechnicianTask, error)
}
