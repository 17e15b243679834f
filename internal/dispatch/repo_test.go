package dispatch

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/fieldserve-app/fieldserve-backend/pkg/db/models"
	"github.com/fieldserve-app/fieldserve-backend/pkg/enums"
	"github.com/fieldserve-app/fieldserve-backend/pkg/pagination"
)

func setupDispatchTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	serviceTasks := `
CREATE TABLE IF NOT EXISTS service_tasks (
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  description TEXT,
  client_address TEXT NOT NULL,
  priority TEXT NOT NULL DEFAULT 'medium',
  estimated_duration_min INTEGER,
  status TEXT NOT NULL DEFAULT 'unassigned',
  assigned_technician_id TEXT,
  created_by TEXT NOT NULL,
  started_at DATETIME,
  completed_at DATETIME,
  work_summary TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	assignments := `
CREATE TABLE IF NOT EXISTS assignments (
  id TEXT PRIMARY KEY,
  task_id TEXT NOT NULL,
  technician_id TEXT NOT NULL,
  assigned_by TEXT NOT NULL,
  assigned_at DATETIME NOT NULL,
  status TEXT NOT NULL DEFAULT 'active',
  reason TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	assignmentHistory := `
CREATE TABLE IF NOT EXISTS assignment_history (
  id TEXT PRIMARY KEY,
  task_id TEXT NOT NULL,
  technician_id TEXT NOT NULL,
  action TEXT NOT NULL,
  action_by TEXT NOT NULL,
  reason TEXT,
  created_at DATETIME
);`
	require.NoError(t, db.Exec(serviceTasks).Error)
	require.NoError(t, db.Exec(assignments).Error)
	require.NoError(t, db.Exec(assignmentHistory).Error)
	return db
}

func newTask(t *testing.T, db *gorm.DB, title string, priority enums.TaskPriority, status enums.TaskStatus, created time.Time) *models.ServiceTask {
	t.Helper()

	task := &models.ServiceTask{
		ID:            uuid.New(),
		Title:         title,
		ClientAddress: "100 Service Rd",
		Priority:      priority,
		Status:        status,
		CreatedBy:     "usr-dispatch",
		CreatedAt:     created,
		UpdatedAt:     created,
	}
	require.NoError(t, db.Create(task).Error)
	return task
}

func newAssignment(t *testing.T, db *gorm.DB, task *models.ServiceTask, technicianID string, status enums.AssignmentStatus, assignedAt time.Time) *models.Assignment {
	t.Helper()

	assignment := &models.Assignment{
		ID:           uuid.New(),
		TaskID:       task.ID,
		TechnicianID: technicianID,
		AssignedBy:   "usr-dispatch",
		AssignedAt:   assignedAt,
		Status:       status,
		CreatedAt:    assignedAt,
		UpdatedAt:    assignedAt,
	}
	require.NoError(t, db.Create(assignment).Error)
	return assignment
}

func TestRepositoryListTasks_paginationAndCounts(t *testing.T) {
	db := setupDispatchTestDB(t)
	repo := NewRepository(db)

	now := time.Now().UTC()
	newTask(t, db, "Task A", enums.TaskPriorityLow, enums.TaskStatusUnassigned, now.Add(-3*time.Hour))
	newTask(t, db, "Task B", enums.TaskPriorityMedium, enums.TaskStatusAssigned, now.Add(-2*time.Hour))
	newTask(t, db, "Task C", enums.TaskPriorityHigh, enums.TaskStatusCompleted, now.Add(-time.Hour))

	list, err := repo.ListTasks(context.Background(), pagination.Params{Page: 0, PageSize: 2}, TaskFilters{}, TaskSort{})
	require.NoError(t, err)
	require.Len(t, list.Tasks, 2)
	assert.Equal(t, int64(3), list.TotalElements)
	assert.Equal(t, 2, list.TotalPages)
	assert.Equal(t, "Task C", list.Tasks[0].Title)

	second, err := repo.ListTasks(context.Background(), pagination.Params{Page: 1, PageSize: 2}, TaskFilters{}, TaskSort{})
	require.NoError(t, err)
	require.Len(t, second.Tasks, 1)
	assert.Equal(t, "Task A", second.Tasks[0].Title)

	require.Len(t, list.StatusCounts, 4)
	assert.Equal(t, int64(1), list.StatusCounts[enums.TaskStatusUnassigned])
	assert.Equal(t, int64(1), list.StatusCounts[enums.TaskStatusAssigned])
	assert.Equal(t, int64(0), list.StatusCounts[enums.TaskStatusInProgress])
	assert.Equal(t, int64(1), list.StatusCounts[enums.TaskStatusCompleted])
}

func TestRepositoryListTasks_filtersAndSearch(t *testing.T) {
	db := setupDispatchTestDB(t)
	repo := NewRepository(db)

	now := time.Now().UTC()
	match := newTask(t, db, "Boiler Repair", enums.TaskPriorityUrgent, enums.TaskStatusUnassigned, now)
	newTask(t, db, "Roof inspection", enums.TaskPriorityLow, enums.TaskStatusAssigned, now)

	status := enums.TaskStatusUnassigned
	priority := enums.TaskPriorityUrgent
	list, err := repo.ListTasks(context.Background(), pagination.Params{PageSize: 10}, TaskFilters{
		Status:   &status,
		Priority: &priority,
		Query:    "boiler",
	}, TaskSort{})
	require.NoError(t, err)
	require.Len(t, list.Tasks, 1)
	assert.Equal(t, match.ID, list.Tasks[0].ID)
	assert.Equal(t, int64(1), list.TotalElements)

	// status counts ignore filters
	assert.Equal(t, int64(1), list.StatusCounts[enums.TaskStatusAssigned])

	byID, err := repo.ListTasks(context.Background(), pagination.Params{PageSize: 10}, TaskFilters{
		Query: match.ID.String()[:8],
	}, TaskSort{})
	require.NoError(t, err)
	require.Len(t, byID.Tasks, 1)
	assert.Equal(t, match.ID, byID.Tasks[0].ID)
}

func TestRepositoryListTasks_prioritySort(t *testing.T) {
	db := setupDispatchTestDB(t)
	repo := NewRepository(db)

	now := time.Now().UTC()
	newTask(t, db, "Low", enums.TaskPriorityLow, enums.TaskStatusUnassigned, now.Add(-time.Minute))
	newTask(t, db, "Urgent", enums.TaskPriorityUrgent, enums.TaskStatusUnassigned, now.Add(-2*time.Minute))
	newTask(t, db, "High", enums.TaskPriorityHigh, enums.TaskStatusUnassigned, now.Add(-3*time.Minute))

	list, err := repo.ListTasks(context.Background(), pagination.Params{PageSize: 10}, TaskFilters{}, TaskSort{
		Field: TaskSortPriority,
		Order: SortOrderDesc,
	})
	require.NoError(t, err)
	require.Len(t, list.Tasks, 3)
	assert.Equal(t, "Urgent", list.Tasks[0].Title)
	assert.Equal(t, "High", list.Tasks[1].Title)
	assert.Equal(t, "Low", list.Tasks[2].Title)

	asc, err := repo.ListTasks(context.Background(), pagination.Params{PageSize: 10}, TaskFilters{}, TaskSort{
		Field: TaskSortPriority,
		Order: SortOrderAsc,
	})
	require.NoError(t, err)
	assert.Equal(t, "Low", asc.Tasks[0].Title)
}

func TestRepositoryListTasks_defaultSortIsPriority(t *testing.T) {
	db := setupDispatchTestDB(t)
	repo := NewRepository(db)

	now := time.Now().UTC()
	// newest task has the lowest priority so creation order cannot mask the sort
	newTask(t, db, "Urgent", enums.TaskPriorityUrgent, enums.TaskStatusUnassigned, now.Add(-3*time.Minute))
	newTask(t, db, "Medium", enums.TaskPriorityMedium, enums.TaskStatusUnassigned, now.Add(-2*time.Minute))
	newTask(t, db, "Low", enums.TaskPriorityLow, enums.TaskStatusUnassigned, now.Add(-time.Minute))

	list, err := repo.ListTasks(context.Background(), pagination.Params{PageSize: 10}, TaskFilters{}, TaskSort{})
	require.NoError(t, err)
	require.Len(t, list.Tasks, 3)
	assert.Equal(t, "Urgent", list.Tasks[0].Title)
	assert.Equal(t, "Medium", list.Tasks[1].Title)
	assert.Equal(t, "Low", list.Tasks[2].Title)
}

func TestRepositoryActiveAssignmentLifecycle(t *testing.T) {
	db := setupDispatchTestDB(t)
	repo := NewRepository(db)

	now := time.Now().UTC()
	task := newTask(t, db, "Pump swap", enums.TaskPriorityMedium, enums.TaskStatusAssigned, now)
	assignment := newAssignment(t, db, task, "tech-1", enums.AssignmentStatusActive, now)

	active, err := repo.FindActiveAssignment(context.Background(), task.ID)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, assignment.ID, active.ID)

	count, err := repo.CountActiveAssignments(context.Background(), "tech-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	require.NoError(t, repo.UpdateAssignment(context.Background(), assignment.ID, map[string]any{
		"status": enums.AssignmentStatusReassigned,
	}))

	active, err = repo.FindActiveAssignment(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Nil(t, active)

	count, err = repo.CountActiveAssignments(context.Background(), "tech-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestRepositoryListTechnicianTasks(t *testing.T) {
	db := setupDispatchTestDB(t)
	repo := NewRepository(db)

	now := time.Now().UTC()
	urgent := newTask(t, db, "Urgent leak", enums.TaskPriorityUrgent, enums.TaskStatusAssigned, now)
	low := newTask(t, db, "Filter change", enums.TaskPriorityLow, enums.TaskStatusInProgress, now)
	former := newTask(t, db, "Old install", enums.TaskPriorityHigh, enums.TaskStatusAssigned, now)
	other := newTask(t, db, "Someone else", enums.TaskPriorityUrgent, enums.TaskStatusAssigned, now)

	newAssignment(t, db, urgent, "tech-1", enums.AssignmentStatusActive, now.Add(-time.Hour))
	newAssignment(t, db, low, "tech-1", enums.AssignmentStatusActive, now.Add(-2*time.Hour))
	// tech-1 used to hold this task before it moved on
	newAssignment(t, db, former, "tech-1", enums.AssignmentStatusReassigned, now.Add(-3*time.Hour))
	newAssignment(t, db, former, "tech-2", enums.AssignmentStatusActive, now.Add(-30*time.Minute))
	newAssignment(t, db, other, "tech-2", enums.AssignmentStatusActive, now)

	entries, err := repo.ListTechnicianTasks(context.Background(), "tech-1", nil)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, urgent.ID, entries[0].Task.ID)
	assert.Equal(t, former.ID, entries[1].Task.ID)
	assert.Equal(t, low.ID, entries[2].Task.ID)

	status := enums.TaskStatusInProgress
	filtered, err := repo.ListTechnicianTasks(context.Background(), "tech-1", &status)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, low.ID, filtered[0].Task.ID)
}

func TestRepositoryHistoryOrdering(t *testing.T) {
	db := setupDispatchTestDB(t)
	repo := NewRepository(db)

	now := time.Now().UTC()
	task := newTask(t, db, "Audit trail", enums.TaskPriorityMedium, enums.TaskStatusAssigned, now)

	actions := []enums.AssignmentAction{
		enums.AssignmentActionCreated,
		enums.AssignmentActionReassigned,
		enums.AssignmentActionCompleted,
	}
	for i, action := range actions {
		entry := &models.AssignmentHistory{
			ID:           uuid.New(),
			TaskID:       task.ID,
			TechnicianID: "tech-1",
			Action:       action,
			ActionBy:     "usr-dispatch",
			CreatedAt:    now.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, repo.CreateHistory(context.Background(), entry))
	}

	history, err := repo.ListHistory(context.Background(), task.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	for i, action := range actions {
		assert.Equal(t, action, history[i].Action)
	}
}
