package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fieldserve-app/fieldserve-backend/api/middleware"
	"github.com/fieldserve-app/fieldserve-backend/api/responses"
	"github.com/fieldserve-app/fieldserve-backend/api/validators"
	"github.com/fieldserve-app/fieldserve-backend/internal/dispatch"
	"github.com/fieldserve-app/fieldserve-backend/pkg/enums"
	pkgerrors "github.com/fieldserve-app/fieldserve-backend/pkg/errors"
	"github.com/fieldserve-app/fieldserve-backend/pkg/logger"
	"github.com/fieldserve-app/fieldserve-backend/pkg/pagination"
)

// TaskCreate handles task creation by dispatchers.
func TaskCreate(svc dispatch.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createTaskRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toInput(actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		task, err := svc.CreateTask(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, task)
	}
}

// TaskList returns the filtered, sorted, paginated task board.
func TaskList(svc dispatch.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		input, err := listInputFromQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListTasks(r.Context(), *input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, list)
	}
}

// TaskDetail returns one task with its assignments and audit trail.
func TaskDetail(svc dispatch.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		taskID, err := taskIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		detail, err := svc.GetTask(r.Context(), taskID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, detail)
	}
}

// TaskHistory returns the append-only assignment audit log for a task.
func TaskHistory(svc dispatch.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		taskID, err := taskIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		history, err := svc.GetHistory(r.Context(), taskID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"history": history})
	}
}

// TaskAssign assigns a technician to a task.
func TaskAssign(svc dispatch.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		taskID, err := taskIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload assignTaskRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.AssignTask(r.Context(), dispatch.AssignTaskInput{
			TaskID:       taskID,
			TechnicianID: strings.TrimSpace(payload.TechnicianID),
			Reason:       payload.Reason,
			Actor:        actor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

// TaskReassign moves a task's active assignment to a different technician.
func TaskReassign(svc dispatch.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		taskID, err := taskIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload reassignTaskRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ReassignTask(r.Context(), dispatch.ReassignTaskInput{
			TaskID:          taskID,
			NewTechnicianID: strings.TrimSpace(payload.TechnicianID),
			Reason:          payload.Reason,
			Actor:           actor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

// TaskUnassign releases a task back to the dispatch pool.
func TaskUnassign(svc dispatch.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		taskID, err := taskIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload unassignTaskRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		task, err := svc.UnassignTask(r.Context(), dispatch.UnassignTaskInput{
			TaskID: taskID,
			Reason: payload.Reason,
			Actor:  actor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, task)
	}
}

// TaskStatusUpdate applies a lifecycle transition requested by the assigned
// technician.
func TaskStatusUpdate(svc dispatch.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		taskID, err := taskIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateStatusRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status, err := enums.ParseTaskStatus(strings.TrimSpace(payload.Status))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
			return
		}

		task, err := svc.UpdateTaskStatus(r.Context(), dispatch.UpdateTaskStatusInput{
			TaskID: taskID,
			Status: status,
			Actor:  actor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, task)
	}
}

// TaskComplete closes out an in-progress task with a work summary.
func TaskComplete(svc dispatch.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		taskID, err := taskIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload completeTaskRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		task, err := svc.CompleteTask(r.Context(), dispatch.CompleteTaskInput{
			TaskID:      taskID,
			WorkSummary: strings.TrimSpace(payload.WorkSummary),
			Actor:       actor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, task)
	}
}

type createTaskRequest struct {
	Title                string  `json:"title" validate:"required,min=3,max=200"`
	Description          *string `json:"description,omitempty"`
	ClientAddress        string  `json:"client_address" validate:"required"`
	Priority             *string `json:"priority,omitempty"`
	EstimatedDurationMin *int    `json:"estimated_duration_min,omitempty" validate:"omitempty,min=1"`
}

func (req createTaskRequest) toInput(actor dispatch.ActorContext) (dispatch.CreateTaskInput, error) {
	input := dispatch.CreateTaskInput{
		Title:                strings.TrimSpace(req.Title),
		Description:          req.Description,
		ClientAddress:        strings.TrimSpace(req.ClientAddress),
		EstimatedDurationMin: req.EstimatedDurationMin,
		Actor:                actor,
	}
	if req.Priority != nil {
		priority, err := enums.ParseTaskPriority(strings.TrimSpace(*req.Priority))
		if err != nil {
			return dispatch.CreateTaskInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid priority")
		}
		input.Priority = priority
	}
	return input, nil
}

type assignTaskRequest struct {
	TechnicianID string  `json:"technician_id" validate:"required"`
	Reason       *string `json:"reason,omitempty"`
}

type reassignTaskRequest struct {
	TechnicianID string  `json:"technician_id" validate:"required"`
	Reason       *string `json:"reason,omitempty"`
}

type unassignTaskRequest struct {
	Reason *string `json:"reason,omitempty"`
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type completeTaskRequest struct {
	WorkSummary string `json:"work_summary" validate:"required"`
}

func listInputFromQuery(r *http.Request) (*dispatch.ListTasksInput, error) {
	page, err := validators.ParseQueryInt(r, "page", 0, 0, 1_000_000)
	if err != nil {
		return nil, err
	}
	pageSize, err := validators.ParseQueryInt(r, "page_size", pagination.DefaultPageSize, 1, pagination.MaxPageSize)
	if err != nil {
		return nil, err
	}

	input := dispatch.ListTasksInput{
		Params: pagination.Params{Page: page, PageSize: pageSize},
	}

	q := r.URL.Query()
	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		status, err := enums.ParseTaskStatus(raw)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter")
		}
		input.Filters.Status = &status
	}
	if raw := strings.TrimSpace(q.Get("priority")); raw != "" {
		priority, err := enums.ParseTaskPriority(raw)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid priority filter")
		}
		input.Filters.Priority = &priority
	}
	if raw := strings.TrimSpace(q.Get("technician_id")); raw != "" {
		input.Filters.TechnicianID = &raw
	}
	input.Filters.Query = strings.TrimSpace(q.Get("q"))

	if raw := strings.TrimSpace(q.Get("sort")); raw != "" {
		input.Sort.Field = dispatch.TaskSortField(raw)
	}
	if raw := strings.TrimSpace(q.Get("order")); raw != "" {
		input.Sort.Order = dispatch.SortOrder(strings.ToLower(raw))
	}

	return &input, nil
}

func taskIDFromPath(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "taskId")
	taskID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid task id")
	}
	return taskID, nil
}

func actorFromContext(r *http.Request) (dispatch.ActorContext, error) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		return dispatch.ActorContext{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}

	role, err := enums.ParseActorRole(middleware.RoleFromContext(r.Context()))
	if err != nil {
		return dispatch.ActorContext{}, pkgerrors.Wrap(pkgerrors.CodeForbidden, err, "unknown actor role")
	}

	return dispatch.ActorContext{UserID: userID, Role: role}, nil
}
