package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jiweiyuan/muse/internal/api/shared"
	"github.com/jiweiyuan/muse/internal/domain"
	"github.com/jiweiyuan/muse/internal/service"
)

// TaskHandler handles task-related HTTP requests.
type TaskHandler struct {
	taskService service.TaskService
	validator   *validator.Validate
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(taskService service.TaskService) *TaskHandler {
	return &TaskHandler{
		taskService: taskService,
		validator:   validator.New(),
	}
}

// CreateTask handles POST /api/tasks requests. Tasks execute asynchronously,
// so success is 202 Accepted with the pending task.
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req CreateTaskRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, SanitizeValidationError(err))
		return
	}

	projectID, err := uuid.Parse(req.ProjectID)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid project_id")
		return
	}

	var shapeID *uuid.UUID
	if req.ShapeID != "" {
		parsed, err := uuid.Parse(req.ShapeID)
		if err != nil {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid shape_id")
			return
		}
		shapeID = &parsed
	}

	created, err := h.taskService.CreateTask(r.Context(), service.CreateTaskParams{
		OwnerID:    userID,
		ProjectID:  projectID,
		ShapeID:    shapeID,
		Type:       domain.TaskType(req.Type),
		Body:       req.Body,
		MaxRetries: req.MaxRetries,
	})
	if err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, taskToResponse(created))
}

// GetTask handles GET /api/tasks/{id} requests.
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	taskID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid task ID")
		return
	}

	found, err := h.taskService.GetTask(r.Context(), userID, taskID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, taskToResponse(found))
}

// ListTasks handles GET /api/tasks requests. The project_id query parameter
// is required; status and type accept comma-separated filters.
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	projectID, err := uuid.Parse(r.URL.Query().Get("project_id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid or missing project_id")
		return
	}

	statuses, err := parseStatusFilter(r.URL.Query().Get("status"))
	if err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	types, err := parseTypeFilter(r.URL.Query().Get("type"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid type filter")
		return
	}

	limit := parseIntParam(r.URL.Query().Get("limit"), 50)
	offset := parseIntParam(r.URL.Query().Get("offset"), 0)

	tasks, err := h.taskService.ListTasks(r.Context(), service.ListTasksParams{
		OwnerID:   userID,
		ProjectID: projectID,
		Types:     types,
		Statuses:  statuses,
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	responses := make([]TaskResponse, 0, len(tasks))
	for _, t := range tasks {
		responses = append(responses, taskToResponse(t))
	}

	shared.RespondWithJSON(w, r, http.StatusOK, TaskListResponse{
		Tasks:  responses,
		Limit:  limit,
		Offset: offset,
	})
}

// CancelTask handles DELETE /api/tasks/{id} requests.
func (h *TaskHandler) CancelTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	taskID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid task ID")
		return
	}

	if err := h.taskService.CancelTask(r.Context(), userID, taskID); err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// requireUserID pulls the authenticated user from the request context, set
// by the auth middleware.
func requireUserID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, ok := r.Context().Value(shared.UserIDContextKey).(uuid.UUID)
	if !ok || userID == uuid.Nil {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "User ID not found or invalid")
		return uuid.Nil, false
	}
	return userID, true
}

// parseStatusFilter parses a comma-separated status list.
func parseStatusFilter(raw string) ([]domain.TaskStatus, error) {
	if raw == "" {
		return nil, nil
	}

	parts := strings.Split(raw, ",")
	statuses := make([]domain.TaskStatus, 0, len(parts))
	for _, part := range parts {
		status, err := domain.ParseTaskStatus(strings.TrimSpace(part))
		if err != nil {
			return nil, service.ErrInvalidStatusFilter
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

// parseTypeFilter parses a comma-separated task type list.
func parseTypeFilter(raw string) ([]domain.TaskType, error) {
	if raw == "" {
		return nil, nil
	}

	parts := strings.Split(raw, ",")
	types := make([]domain.TaskType, 0, len(parts))
	for _, part := range parts {
		taskType := domain.TaskType(strings.TrimSpace(part))
		if !domain.IsValidTaskType(taskType) {
			return nil, domain.ErrInvalidTaskType
		}
		types = append(types, taskType)
	}
	return types, nil
}

// parseIntParam parses a non-negative integer query parameter, falling back
// to def on absence or garbage.
func parseIntParam(raw string, def int) int {
	if raw == "" {
		return def
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed < 0 {
		return def
	}
	return parsed
}
