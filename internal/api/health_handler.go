package api

import (
	"net/http"

	"github.com/jiweiyuan/muse/internal/api/shared"
	"github.com/jiweiyuan/muse/internal/service"
	"github.com/jiweiyuan/muse/internal/task"
)

// HealthHandler reports liveness plus worker and queue state. The endpoint
// is unauthenticated; it exposes counts, never task content.
type HealthHandler struct {
	taskService service.TaskService
	worker      *task.Worker
}

// NewHealthHandler creates a new HealthHandler. worker may be nil when the
// process runs API-only.
func NewHealthHandler(taskService service.TaskService, worker *task.Worker) *HealthHandler {
	return &HealthHandler{
		taskService: taskService,
		worker:      worker,
	}
}

// Health handles GET /healthz requests.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status: "ok",
		Queue:  map[string]int64{},
	}

	if h.worker != nil {
		status := h.worker.Status()
		resp.Worker = WorkerStatusBody{
			WorkerID:      status.WorkerID,
			Running:       status.Running,
			InFlight:      status.InFlight,
			UptimeSeconds: int64(status.Uptime.Seconds()),
		}
	}

	stats, err := h.taskService.Stats(r.Context())
	if err != nil {
		// Liveness should not flap on a stats failure; report degraded.
		resp.Status = "degraded"
	} else {
		for status, count := range stats {
			resp.Queue[string(status)] = count
		}
	}

	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}
