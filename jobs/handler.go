package jobs

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"

	"github.com/staffhub-hr/staffhub/internal/platform/httpx"
)

// Enqueuer submits tasks for background processing.
type Enqueuer interface {
	EnqueueAnomalyScan(ctx context.Context, payload AnomalyScanPayload) (*asynq.TaskInfo, error)
}

var _ Enqueuer = (*Client)(nil)

// Handler exposes on-demand job submission over HTTP. The caller gates
// the routes behind the audit permission.
type Handler struct {
	logger *slog.Logger
	queue  Enqueuer
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, queue Enqueuer) *Handler {
	return &Handler{logger: logger, queue: queue}
}

// MountRoutes registers the job trigger endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/anomaly-scan", h.triggerAnomalyScan)
}

type anomalyScanRequest struct {
	WindowHours int `json:"windowHours"`
	Threshold   int `json:"threshold"`
}

type anomalyScanResponse struct {
	TaskID string `json:"taskId"`
	Queue  string `json:"queue"`
}

// triggerAnomalyScan enqueues an immediate failed-login scan. The body
// is optional; zero values fall back to the job defaults.
func (h *Handler) triggerAnomalyScan(w http.ResponseWriter, r *http.Request) {
	var req anomalyScanRequest
	if r.ContentLength > 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
			return
		}
	}
	info, err := h.queue.EnqueueAnomalyScan(r.Context(), AnomalyScanPayload{
		WindowHours: req.WindowHours,
		Threshold:   req.Threshold,
	})
	if err != nil {
		h.logger.Error("enqueue anomaly scan", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "could not enqueue scan")
		return
	}
	httpx.JSON(w, http.StatusAccepted, anomalyScanResponse{TaskID: info.ID, Queue: info.Queue})
}
