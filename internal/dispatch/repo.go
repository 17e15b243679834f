package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fieldserve-app/fieldserve-backend/pkg/db/models"
	"github.com/fieldserve-app/fieldserve-backend/pkg/enums"
	"github.com/fieldserve-app/fieldserve-backend/pkg/pagination"
)

// priorityRankExpr orders priorities by urgency in SQL. Keep in sync with
// enums.TaskPriority.Rank.
const priorityRankExpr = "CASE priority WHEN 'urgent' THEN 4 WHEN 'high' THEN 3 WHEN 'medium' THEN 2 WHEN 'low' THEN 1 ELSE 0 END"

type repository struct {
	db *gorm.DB
}

// NewRepository builds a dispatch repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateTask(ctx context.Context, task *models.ServiceTask) (*models.ServiceTask, error) {
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return nil, err
	}
	return task, nil
}

func (r *repository) FindTask(ctx context.Context, taskID uuid.UUID) (*models.ServiceTask, error) {
	var task models.ServiceTask
	err := r.db.WithContext(ctx).
		Where("id = ?", taskID).
		First(&task).Error
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *repository) UpdateTask(ctx context.Context, taskID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.ServiceTask{}).
		Where("id = ?", taskID).
		Updates(updates).Error
}

func (r *repository) ListTasks(ctx context.Context, params pagination.Params, filters TaskFilters, sort TaskSort) (*TaskList, error) {
	params = pagination.Normalize(params)

	base := r.db.WithContext(ctx).Model(&models.ServiceTask{})
	base = applyTaskFilters(base, filters)

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, err
	}

	var tasks []models.ServiceTask
	err := base.Session(&gorm.Session{}).
		Order(orderClause(sort)).
		Offset(params.Offset()).
		Limit(params.PageSize).
		Find(&tasks).Error
	if err != nil {
		return nil, err
	}

	counts, err := r.CountTasksByStatus(ctx)
	if err != nil {
		return nil, err
	}

	summaries := make([]TaskSummary, 0, len(tasks))
	for _, task := range tasks {
		summaries = append(summaries, TaskSummary{
			ID:                   task.ID,
			Title:                task.Title,
			ClientAddress:        task.ClientAddress,
			Priority:             task.Priority,
			Status:               task.Status,
			AssignedTechnicianID: task.AssignedTechnicianID,
			EstimatedDurationMin: task.EstimatedDurationMin,
			CreatedBy:            task.CreatedBy,
			CreatedAt:            task.CreatedAt,
		})
	}

	return &TaskList{
		Tasks:         summaries,
		Page:          params.Page,
		PageSize:      params.PageSize,
		TotalElements: total,
		TotalPages:    pagination.TotalPages(total, params.PageSize),
		StatusCounts:  counts,
	}, nil
}

func applyTaskFilters(q *gorm.DB, filters TaskFilters) *gorm.DB {
	if filters.Status != nil {
		q = q.Where("status = ?", *filters.Status)
	}
	if filters.Priority != nil {
		q = q.Where("priority = ?", *filters.Priority)
	}
	if filters.TechnicianID != nil {
		q = q.Where("assigned_technician_id = ?", *filters.TechnicianID)
	}
	if query := strings.TrimSpace(filters.Query); query != "" {
		needle := "%" + strings.ToLower(query) + "%"
		q = q.Where(
			"LOWER(title) LIKE ? OR LOWER(client_address) LIKE ? OR LOWER(CAST(id AS TEXT)) LIKE ?",
			needle, needle, needle,
		)
	}
	return q
}

func orderClause(sort TaskSort) string {
	dir := "DESC"
	if sort.Order == SortOrderAsc {
		dir = "ASC"
	}

	switch sort.Field {
	case TaskSortStatus:
		return fmt.Sprintf("status %s, created_at DESC, id ASC", dir)
	case TaskSortCreatedAt:
		return fmt.Sprintf("created_at %s, id ASC", dir)
	default:
		// priority is the board's default ordering
		return fmt.Sprintf("%s %s, created_at DESC, id ASC", priorityRankExpr, dir)
	}
}

func (r *repository) CountTasksByStatus(ctx context.Context) (map[enums.TaskStatus]int64, error) {
	type statusCount struct {
		Status enums.TaskStatus
		Count  int64
	}
	var rows []statusCount
	err := r.db.WithContext(ctx).
		Model(&models.ServiceTask{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[enums.TaskStatus]int64, len(enums.AllTaskStatuses()))
	for _, status := range enums.AllTaskStatuses() {
		counts[status] = 0
	}
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

func (r *repository) CreateAssignment(ctx context.Context, assignment *models.Assignment) (*models.Assignment, error) {
	if err := r.db.WithContext(ctx).Create(assignment).Error; err != nil {
		return nil, err
	}
	return assignment, nil
}

func (r *repository) FindActiveAssignment(ctx context.Context, taskID uuid.UUID) (*models.Assignment, error) {
	var assignment models.Assignment
	err := r.db.WithContext(ctx).
		Where("task_id = ? AND status = ?", taskID, enums.AssignmentStatusActive).
		First(&assignment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &assignment, nil
}

func (r *repository) FindAssignmentsByTask(ctx context.Context, taskID uuid.UUID) ([]models.Assignment, error) {
	var assignments []models.Assignment
	err := r.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Order("assigned_at ASC").
		Find(&assignments).Error
	if err != nil {
		return nil, err
	}
	return assignments, nil
}

func (r *repository) UpdateAssignment(ctx context.Context, assignmentID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Assignment{}).
		Where("id = ?", assignmentID).
		Updates(updates).Error
}

func (r *repository) CountActiveAssignments(ctx context.Context, technicianID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Assignment{}).
		Where("technician_id = ? AND status = ?", technicianID, enums.AssignmentStatusActive).
		Count(&count).Error
	return count, err
}

func (r *repository) CreateHistory(ctx context.Context, entry *models.AssignmentHistory) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) ListHistory(ctx context.Context, taskID uuid.UUID) ([]models.AssignmentHistory, error) {
	var entries []models.AssignmentHistory
	err := r.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) ListTechnicianTasks(ctx context.Context, technicianID string, status *enums.TaskStatus) ([]TechnicianTask, error) {
	var assignments []models.Assignment
	err := r.db.WithContext(ctx).
		Where("technician_id = ?", technicianID).
		Order("assigned_at ASC").
		Find(&assignments).Error
	if err != nil {
		return nil, err
	}
	if len(assignments) == 0 {
		return []TechnicianTask{}, nil
	}

	assignedAt := make(map[uuid.UUID]models.Assignment, len(assignments))
	taskIDs := make([]uuid.UUID, 0, len(assignments))
	for _, assignment := range assignments {
		if _, seen := assignedAt[assignment.TaskID]; !seen {
			taskIDs = append(taskIDs, assignment.TaskID)
		}
		// ordered ASC, so the last write wins and keeps the latest pairing
		assignedAt[assignment.TaskID] = assignment
	}

	q := r.db.WithContext(ctx).Where("id IN ?", taskIDs)
	if status != nil {
		q = q.Where("status = ?", *status)
	}
	var tasks []models.ServiceTask
	if err := q.Find(&tasks).Error; err != nil {
		return nil, err
	}

	entries := make([]TechnicianTask, 0, len(tasks))
	for _, task := range tasks {
		entries = append(entries, TechnicianTask{
			Task:       task,
			AssignedAt: assignedAt[task.ID].AssignedAt,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		left, right := entries[i], entries[j]
		if left.Task.Priority.Rank() != right.Task.Priority.Rank() {
			return left.Task.Priority.Rank() > right.Task.Priority.Rank()
		}
		return left.AssignedAt.Before(right.AssignedAt)
	})

	return entries, nil
}
