package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fieldserve-app/fieldserve-backend/pkg/config"
	"github.com/fieldserve-app/fieldserve-backend/pkg/db/models"
	"github.com/fieldserve-app/fieldserve-backend/pkg/enums"
	pkgerrors "github.com/fieldserve-app/fieldserve-backend/pkg/errors"
	"github.com/fieldserve-app/fieldserve-backend/pkg/logger"
	"github.com/fieldserve-app/fieldserve-backend/pkg/metrics"
	"github.com/fieldserve-app/fieldserve-backend/pkg/outbox"
	"github.com/fieldserve-app/fieldserve-backend/pkg/pagination"
)

const (
	minTitleLen = 3
	maxTitleLen = 200
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// technicianDirectory validates technicians against the external employee
// directory before dispatch touches the database.
type technicianDirectory interface {
	Validate(ctx context.Context, technicianID string) error
	FailOpen() bool
}

// Service defines the dispatch engine operations.
type Service interface {
	CreateTask(ctx context.Context, input CreateTaskInput) (*models.ServiceTask, error)
	GetTask(ctx context.Context, taskID uuid.UUID) (*TaskDetail, error)
	ListTasks(ctx context.Context, input ListTasksInput) (*TaskList, error)
	AssignTask(ctx context.Context, input AssignTaskInput) (*AssignmentResult, error)
	ReassignTask(ctx context.Context, input ReassignTaskInput) (*AssignmentResult, error)
	UpdateTaskStatus(ctx context.Context, input UpdateTaskStatusInput) (*models.ServiceTask, error)
	CompleteTask(ctx context.Context, input CompleteTaskInput) (*models.ServiceTask, error)
	UnassignTask(ctx context.Context, input UnassignTaskInput) (*models.ServiceTask, error)
	TechnicianTasks(ctx context.Context, input TechnicianTasksInput) ([]TechnicianTask, error)
	GetHistory(ctx context.Context, taskID uuid.UUID) ([]models.AssignmentHistory, error)
}

type service struct {
	repo      Repository
	tx        txRunner
	directory technicianDirectory
	outbox    outboxPublisher
	metrics   *metrics.DispatchMetrics
	logg      *logger.Logger
	cfg       config.DispatchConfig
	now       func() time.Time
}

// ActorContext identifies who is performing a dispatch operation.
type ActorContext struct {
	UserID string
	Role   enums.ActorRole
}

// CreateTaskInput captures the fields accepted when opening a task.
type CreateTaskInput struct {
	Title                string
	Description          *string
	ClientAddress        string
	Priority             enums.TaskPriority
	EstimatedDurationMin *int
	Actor                ActorContext
}

// ListTasksInput bundles pagination, filtering and sorting for the task list.
type ListTasksInput struct {
	Params  pagination.Params
	Filters TaskFilters
	Sort    TaskSort
}

// AssignTaskInput captures an assignment request for an unassigned or
// currently assigned task.
type AssignTaskInput struct {
	TaskID       uuid.UUID
	TechnicianID string
	Reason       *string
	Actor        ActorContext
}

// ReassignTaskInput moves an active assignment to a different technician.
type ReassignTaskInput struct {
	TaskID          uuid.UUID
	NewTechnicianID string
	Reason          *string
	Actor           ActorContext
}

// UpdateTaskStatusInput carries a lifecycle transition request.
type UpdateTaskStatusInput struct {
	TaskID uuid.UUID
	Status enums.TaskStatus
	Actor  ActorContext
}

// CompleteTaskInput closes out an in-progress task.
type CompleteTaskInput struct {
	TaskID      uuid.UUID
	WorkSummary string
	Actor       ActorContext
}

// UnassignTaskInput releases a task back to the dispatch pool.
type UnassignTaskInput struct {
	TaskID uuid.UUID
	Reason *string
	Actor  ActorContext
}

// TechnicianTasksInput selects the work queue for one technician.
type TechnicianTasksInput struct {
	TechnicianID string
	Status       *enums.TaskStatus
}

// TaskEventPayload is the event body emitted for task lifecycle changes.
type TaskEventPayload struct {
	TaskID               uuid.UUID          `json:"task_id"`
	Title                string             `json:"title"`
	Status               enums.TaskStatus   `json:"status"`
	Priority             enums.TaskPriority `json:"priority"`
	TechnicianID         *string            `json:"technician_id,omitempty"`
	PreviousTechnicianID *string            `json:"previous_technician_id,omitempty"`
	Reason               *string            `json:"reason,omitempty"`
}

// NewService builds the dispatch engine with the required dependencies.
func NewService(repo Repository, tx txRunner, directory technicianDirectory, outboxSvc outboxPublisher, dispatchMetrics *metrics.DispatchMetrics, logg *logger.Logger, cfg config.DispatchConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("dispatch repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if directory == nil {
		return nil, fmt.Errorf("technician directory required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if cfg.WorkloadWarningThreshold <= 0 {
		cfg.WorkloadWarningThreshold = 10
	}
	return &service{
		repo:      repo,
		tx:        tx,
		directory: directory,
		outbox:    outboxSvc,
		metrics:   dispatchMetrics,
		logg:      logg,
		cfg:       cfg,
		now:       time.Now,
	}, nil
}

func (s *service) CreateTask(ctx context.Context, input CreateTaskInput) (*models.ServiceTask, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title is required")
	}
	if n := utf8.RuneCountInString(title); n < minTitleLen || n > maxTitleLen {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("title must be between %d and %d characters", minTitleLen, maxTitleLen))
	}
	if strings.TrimSpace(input.ClientAddress) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "client address is required")
	}
	if input.Actor.UserID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	priority := input.Priority
	if priority == "" {
		priority = enums.TaskPriorityMedium
	}
	if !priority.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid priority %q", input.Priority))
	}
	if input.EstimatedDurationMin != nil && *input.EstimatedDurationMin <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "estimated duration must be positive")
	}

	task := &models.ServiceTask{
		ID:                   uuid.New(),
		Title:                title,
		Description:          input.Description,
		ClientAddress:        strings.TrimSpace(input.ClientAddress),
		Priority:             priority,
		EstimatedDurationMin: input.EstimatedDurationMin,
		Status:               enums.TaskStatusUnassigned,
		CreatedBy:            input.Actor.UserID,
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		created, err := repo.CreateTask(ctx, task)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create task")
		}
		task = created
		return s.emitTaskEvent(ctx, tx, enums.EventTaskCreated, task, input.Actor, nil, nil)
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithTaskID(ctx, task.ID.String()), "task created")
	}
	return task, nil
}

func (s *service) GetTask(ctx context.Context, taskID uuid.UUID) (*TaskDetail, error) {
	if taskID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "task id required")
	}
	task, err := s.loadTask(ctx, s.repo, taskID)
	if err != nil {
		return nil, err
	}
	assignments, err := s.repo.FindAssignmentsByTask(ctx, taskID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load assignments")
	}
	history, err := s.repo.ListHistory(ctx, taskID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load assignment history")
	}
	return &TaskDetail{Task: *task, Assignments: assignments, History: history}, nil
}

func (s *service) ListTasks(ctx context.Context, input ListTasksInput) (*TaskList, error) {
	if input.Sort.Field != "" {
		switch input.Sort.Field {
		case TaskSortPriority, TaskSortCreatedAt, TaskSortStatus:
		default:
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid sort field %q", input.Sort.Field))
		}
	}
	if input.Sort.Order != "" && input.Sort.Order != SortOrderAsc && input.Sort.Order != SortOrderDesc {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid sort order %q", input.Sort.Order))
	}

	started := s.now()
	list, err := s.repo.ListTasks(ctx, input.Params, input.Filters, input.Sort)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list tasks")
	}
	s.metrics.ObserveListDuration(s.now().Sub(started))
	return list, nil
}

func (s *service) AssignTask(ctx context.Context, input AssignTaskInput) (*AssignmentResult, error) {
	if input.TaskID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "task id required")
	}
	if strings.TrimSpace(input.TechnicianID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "technician id required")
	}
	if input.Actor.UserID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	if err := s.validateTechnician(ctx, input.TechnicianID); err != nil {
		return nil, err
	}

	var result *AssignmentResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		task, err := s.loadTask(ctx, repo, input.TaskID)
		if err != nil {
			return err
		}
		switch task.Status {
		case enums.TaskStatusCompleted:
			return pkgerrors.New(pkgerrors.CodeStateConflict, "task is already completed")
		case enums.TaskStatusInProgress:
			return pkgerrors.New(pkgerrors.CodeStateConflict, "task is in progress; reassignment requires a reason")
		}

		prior, err := repo.FindActiveAssignment(ctx, task.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active assignment")
		}
		if prior != nil && prior.TechnicianID == input.TechnicianID {
			return pkgerrors.New(pkgerrors.CodeConflict, "technician is already assigned to this task")
		}

		assigned, err := s.applyAssignment(ctx, repo, tx, task, prior, input.TechnicianID, input.Reason, input.Actor)
		if err != nil {
			return err
		}
		result = assigned
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncAssignment(historyActionFor(result.PreviousTechnicianID).String())
	if result.WorkloadWarning {
		s.metrics.IncWorkloadWarning()
		if s.logg != nil {
			s.logg.Warn(s.logg.WithTechnicianID(ctx, input.TechnicianID), result.WorkloadMessage)
		}
	}
	return result, nil
}

func (s *service) ReassignTask(ctx context.Context, input ReassignTaskInput) (*AssignmentResult, error) {
	if input.TaskID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "task id required")
	}
	if strings.TrimSpace(input.NewTechnicianID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "technician id required")
	}
	if input.Actor.UserID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	if err := s.validateTechnician(ctx, input.NewTechnicianID); err != nil {
		return nil, err
	}

	var result *AssignmentResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		task, err := s.loadTask(ctx, repo, input.TaskID)
		if err != nil {
			return err
		}
		if task.Status == enums.TaskStatusCompleted {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "task is already completed")
		}
		if task.Status == enums.TaskStatusInProgress && !hasReason(input.Reason) {
			return pkgerrors.New(pkgerrors.CodeValidation, "reason is required when reassigning an in-progress task")
		}

		prior, err := repo.FindActiveAssignment(ctx, task.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active assignment")
		}
		if prior == nil {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "task has no active assignment")
		}
		if prior.TechnicianID == input.NewTechnicianID {
			return pkgerrors.New(pkgerrors.CodeConflict, "technician is already assigned to this task")
		}

		assigned, err := s.applyAssignment(ctx, repo, tx, task, prior, input.NewTechnicianID, input.Reason, input.Actor)
		if err != nil {
			return err
		}
		result = assigned
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncAssignment(enums.AssignmentActionReassigned.String())
	if result.WorkloadWarning {
		s.metrics.IncWorkloadWarning()
		if s.logg != nil {
			s.logg.Warn(s.logg.WithTechnicianID(ctx, input.NewTechnicianID), result.WorkloadMessage)
		}
	}
	return result, nil
}

// applyAssignment supersedes the prior active assignment (when present),
// creates the new pairing, appends the audit row and updates the task. The
// caller has already validated the technician and the task state.
func (s *service) applyAssignment(ctx context.Context, repo Repository, tx *gorm.DB, task *models.ServiceTask, prior *models.Assignment, technicianID string, reason *string, actor ActorContext) (*AssignmentResult, error) {
	now := s.now().UTC()

	var previousTechnicianID *string
	var superseded *models.Assignment
	if prior != nil {
		previousTechnicianID = &prior.TechnicianID
		updates := map[string]any{"status": enums.AssignmentStatusReassigned}
		if reason != nil {
			updates["reason"] = *reason
		}
		if err := repo.UpdateAssignment(ctx, prior.ID, updates); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "supersede active assignment")
		}
		snapshot := *prior
		snapshot.Status = enums.AssignmentStatusReassigned
		if reason != nil {
			snapshot.Reason = reason
		}
		superseded = &snapshot
	}

	assignment := &models.Assignment{
		ID:           uuid.New(),
		TaskID:       task.ID,
		TechnicianID: technicianID,
		AssignedBy:   actor.UserID,
		AssignedAt:   now,
		Status:       enums.AssignmentStatusActive,
		Reason:       reason,
	}
	if _, err := repo.CreateAssignment(ctx, assignment); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create assignment")
	}

	action := historyActionFor(previousTechnicianID)
	if err := repo.CreateHistory(ctx, &models.AssignmentHistory{
		ID:           uuid.New(),
		TaskID:       task.ID,
		TechnicianID: technicianID,
		Action:       action,
		ActionBy:     actor.UserID,
		Reason:       reason,
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append assignment history")
	}

	taskUpdates := map[string]any{
		"assigned_technician_id": technicianID,
		"status":                 enums.TaskStatusAssigned,
		"started_at":             nil,
	}
	if err := repo.UpdateTask(ctx, task.ID, taskUpdates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update task assignment")
	}
	task.AssignedTechnicianID = &technicianID
	task.Status = enums.TaskStatusAssigned
	task.StartedAt = nil

	count, err := repo.CountActiveAssignments(ctx, technicianID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count active assignments")
	}

	eventType := enums.EventTaskAssigned
	if previousTechnicianID != nil {
		eventType = enums.EventTaskReassigned
	}
	if err := s.emitTaskEvent(ctx, tx, eventType, task, actor, previousTechnicianID, reason); err != nil {
		return nil, err
	}

	result := &AssignmentResult{
		Task:                 *task,
		Assignment:           *assignment,
		PreviousTechnicianID: previousTechnicianID,
		PreviousAssignment:   superseded,
		ActiveAssignments:    count,
	}
	if count > int64(s.cfg.WorkloadWarningThreshold) {
		result.WorkloadWarning = true
		result.WorkloadMessage = fmt.Sprintf("technician %s now has %d active assignments", technicianID, count)
	}
	return result, nil
}

func (s *service) UpdateTaskStatus(ctx context.Context, input UpdateTaskStatusInput) (*models.ServiceTask, error) {
	if input.TaskID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "task id required")
	}
	if !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid task status %q", input.Status))
	}
	if input.Actor.UserID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.Status == enums.TaskStatusCompleted {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "completion requires a work summary")
	}

	var updated *models.ServiceTask
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		task, err := s.loadTask(ctx, repo, input.TaskID)
		if err != nil {
			return err
		}
		if task.Status != enums.TaskStatusAssigned || input.Status != enums.TaskStatusInProgress {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cannot transition task from %s to %s", task.Status, input.Status))
		}

		assignment, err := repo.FindActiveAssignment(ctx, task.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active assignment")
		}
		if assignment == nil {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "task has no active assignment")
		}
		if assignment.TechnicianID != input.Actor.UserID {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only the assigned technician can start this task")
		}

		now := s.now().UTC()
		if err := repo.UpdateTask(ctx, task.ID, map[string]any{
			"status":     enums.TaskStatusInProgress,
			"started_at": now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update task status")
		}
		task.Status = enums.TaskStatusInProgress
		task.StartedAt = &now

		if err := repo.CreateHistory(ctx, &models.AssignmentHistory{
			ID:           uuid.New(),
			TaskID:       task.ID,
			TechnicianID: assignment.TechnicianID,
			Action:       enums.AssignmentActionStatusChanged,
			ActionBy:     input.Actor.UserID,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append assignment history")
		}

		updated = task
		return s.emitTaskEvent(ctx, tx, enums.EventTaskStarted, task, input.Actor, nil, nil)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) CompleteTask(ctx context.Context, input CompleteTaskInput) (*models.ServiceTask, error) {
	if input.TaskID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "task id required")
	}
	if strings.TrimSpace(input.WorkSummary) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "work summary is required")
	}
	if input.Actor.UserID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	var updated *models.ServiceTask
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		task, err := s.loadTask(ctx, repo, input.TaskID)
		if err != nil {
			return err
		}
		if task.Status != enums.TaskStatusInProgress {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cannot complete task from status %s", task.Status))
		}

		assignment, err := repo.FindActiveAssignment(ctx, task.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active assignment")
		}
		if assignment == nil {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "task has no active assignment")
		}
		if assignment.TechnicianID != input.Actor.UserID {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only the assigned technician can complete this task")
		}

		now := s.now().UTC()
		summary := strings.TrimSpace(input.WorkSummary)
		if err := repo.UpdateTask(ctx, task.ID, map[string]any{
			"status":       enums.TaskStatusCompleted,
			"completed_at": now,
			"work_summary": summary,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete task")
		}
		task.Status = enums.TaskStatusCompleted
		task.CompletedAt = &now
		task.WorkSummary = &summary

		if err := repo.UpdateAssignment(ctx, assignment.ID, map[string]any{
			"status": enums.AssignmentStatusCompleted,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "close assignment")
		}

		if err := repo.CreateHistory(ctx, &models.AssignmentHistory{
			ID:           uuid.New(),
			TaskID:       task.ID,
			TechnicianID: assignment.TechnicianID,
			Action:       enums.AssignmentActionCompleted,
			ActionBy:     input.Actor.UserID,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append assignment history")
		}

		updated = task
		return s.emitTaskEvent(ctx, tx, enums.EventTaskCompleted, task, input.Actor, nil, nil)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncAssignment(enums.AssignmentActionCompleted.String())
	return updated, nil
}

func (s *service) UnassignTask(ctx context.Context, input UnassignTaskInput) (*models.ServiceTask, error) {
	if input.TaskID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "task id required")
	}
	if input.Actor.UserID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	var updated *models.ServiceTask
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		task, err := s.loadTask(ctx, repo, input.TaskID)
		if err != nil {
			return err
		}
		if task.Status == enums.TaskStatusCompleted {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "task is already completed")
		}
		if task.Status == enums.TaskStatusInProgress && !hasReason(input.Reason) {
			return pkgerrors.New(pkgerrors.CodeValidation, "reason is required when unassigning an in-progress task")
		}

		assignment, err := repo.FindActiveAssignment(ctx, task.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active assignment")
		}
		if assignment == nil {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "task has no active assignment")
		}

		updates := map[string]any{"status": enums.AssignmentStatusCancelled}
		if input.Reason != nil {
			updates["reason"] = *input.Reason
		}
		if err := repo.UpdateAssignment(ctx, assignment.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel assignment")
		}

		// AssignedTechnicianID intentionally stays behind as the last-known pairing.
		if err := repo.UpdateTask(ctx, task.ID, map[string]any{
			"status":     enums.TaskStatusUnassigned,
			"started_at": nil,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release task")
		}
		task.Status = enums.TaskStatusUnassigned
		task.StartedAt = nil

		if err := repo.CreateHistory(ctx, &models.AssignmentHistory{
			ID:           uuid.New(),
			TaskID:       task.ID,
			TechnicianID: assignment.TechnicianID,
			Action:       enums.AssignmentActionCancelled,
			ActionBy:     input.Actor.UserID,
			Reason:       input.Reason,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append assignment history")
		}

		updated = task
		return s.emitTaskEvent(ctx, tx, enums.EventTaskUnassigned, task, input.Actor, &assignment.TechnicianID, input.Reason)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncAssignment(enums.AssignmentActionCancelled.String())
	return updated, nil
}

func (s *service) TechnicianTasks(ctx context.Context, input TechnicianTasksInput) ([]TechnicianTask, error) {
	if strings.TrimSpace(input.TechnicianID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "technician id required")
	}

	entries, err := s.repo.ListTechnicianTasks(ctx, input.TechnicianID, input.Status)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list technician tasks")
	}

	// Completed work disappears from the queue the day after completion.
	dayStart := startOfDay(s.now().UTC())
	visible := make([]TechnicianTask, 0, len(entries))
	for _, entry := range entries {
		if entry.Task.Status == enums.TaskStatusCompleted &&
			entry.Task.CompletedAt != nil &&
			entry.Task.CompletedAt.Before(dayStart) {
			continue
		}
		visible = append(visible, entry)
	}
	return visible, nil
}

func (s *service) GetHistory(ctx context.Context, taskID uuid.UUID) ([]models.AssignmentHistory, error) {
	if taskID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "task id required")
	}
	if _, err := s.loadTask(ctx, s.repo, taskID); err != nil {
		return nil, err
	}
	history, err := s.repo.ListHistory(ctx, taskID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load assignment history")
	}
	return history, nil
}

func (s *service) loadTask(ctx context.Context, repo Repository, taskID uuid.UUID) (*models.ServiceTask, error) {
	task, err := repo.FindTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "task not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load task")
	}
	return task, nil
}

func (s *service) validateTechnician(ctx context.Context, technicianID string) error {
	err := s.directory.Validate(ctx, technicianID)
	if err == nil {
		return nil
	}
	if pkgErr := pkgerrors.As(err); pkgErr != nil {
		switch pkgErr.Code() {
		case pkgerrors.CodeDependency:
			s.metrics.IncDirectoryFailure("fail_closed")
		case pkgerrors.CodeNotFound:
			s.metrics.IncDirectoryFailure("rejected")
		}
	}
	return err
}

func (s *service) emitTaskEvent(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, task *models.ServiceTask, actor ActorContext, previousTechnicianID *string, reason *string) error {
	event := outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateServiceTask,
		AggregateID:   task.ID,
		Version:       1,
		Actor:         &outbox.ActorRef{UserID: actor.UserID, Role: actor.Role.String()},
		Data: TaskEventPayload{
			TaskID:               task.ID,
			Title:                task.Title,
			Status:               task.Status,
			Priority:             task.Priority,
			TechnicianID:         task.AssignedTechnicianID,
			PreviousTechnicianID: previousTechnicianID,
			Reason:               reason,
		},
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue task event")
	}
	return nil
}

func historyActionFor(previousTechnicianID *string) enums.AssignmentAction {
	if previousTechnicianID != nil {
		return enums.AssignmentActionReassigned
	}
	return enums.AssignmentActionCreated
}

func hasReason(reason *string) bool {
	return reason != nil && strings.TrimSpace(*reason) != ""
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
