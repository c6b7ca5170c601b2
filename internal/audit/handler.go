package audit

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/staffhub-hr/staffhub/internal/platform/httpx"
)

const (
	queryRateLimit  = 30
	queryRateWindow = time.Minute
)

// Handler serves the audit log query surface.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers audit routes on the provided router. The caller is
// responsible for gating them behind the AUDIT_READ permission.
func (h *Handler) MountRoutes(r chi.Router) {
	limiter := httprate.Limit(queryRateLimit, queryRateWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Problem(w, http.StatusTooManyRequests, "Too Many Requests", "")
		}),
	)
	r.Group(func(gr chi.Router) {
		gr.Use(limiter)
		gr.Get("/audit-logs", h.listAuditLogs)
	})
}

type auditLogResponse struct {
	ID           int64          `json:"id"`
	Timestamp    time.Time      `json:"timestamp"`
	ActorUserID  *int64         `json:"actorUserId"`
	Action       string         `json:"action"`
	ResourceType string         `json:"resourceType"`
	ResourceID   string         `json:"resourceId,omitempty"`
	Details      map[string]any `json:"details,omitempty"`
	IP           string         `json:"ip,omitempty"`
	UserAgent    string         `json:"userAgent,omitempty"`
	Impersonated bool           `json:"impersonated"`
}

type auditPageResponse struct {
	Items      []auditLogResponse `json:"items"`
	Page       int                `json:"page"`
	Size       int                `json:"size"`
	Total      int                `json:"total"`
	TotalPages int                `json:"totalPages"`
}

func (h *Handler) listAuditLogs(w http.ResponseWriter, r *http.Request) {
	filters, err := parseFilters(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	result, err := h.service.Query(r.Context(), filters)
	if err != nil {
		h.logger.Error("query audit logs", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	items := make([]auditLogResponse, 0, len(result.Logs))
	for _, log := range result.Logs {
		items = append(items, auditLogResponse{
			ID:           log.ID,
			Timestamp:    log.OccurredAt,
			ActorUserID:  log.ActorID,
			Action:       log.Action,
			ResourceType: log.ResourceType,
			ResourceID:   log.ResourceID,
			Details:      log.Details,
			IP:           log.IP,
			UserAgent:    log.UserAgent,
			Impersonated: log.Impersonated,
		})
	}
	httpx.JSON(w, http.StatusOK, auditPageResponse{
		Items:      items,
		Page:       result.Pagination.Page,
		Size:       result.Pagination.PerPage,
		Total:      result.Pagination.Total,
		TotalPages: result.Pagination.TotalPages,
	})
}

func parseFilters(r *http.Request) (Filters, error) {
	var filters Filters
	q := r.URL.Query()

	if raw := q.Get("actorUserId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Filters{}, errInvalidParam("actorUserId")
		}
		filters.ActorID = &id
	}
	filters.Action = strings.TrimSpace(q.Get("action"))
	filters.ResourceType = strings.TrimSpace(q.Get("resourceType"))

	if raw := q.Get("startDate"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return Filters{}, errInvalidParam("startDate")
		}
		filters.From = t
	}
	if raw := q.Get("endDate"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return Filters{}, errInvalidParam("endDate")
		}
		filters.To = t
	}
	if raw := q.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil {
			return Filters{}, errInvalidParam("page")
		}
		filters.Page = page
	}
	if raw := q.Get("size"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil {
			return Filters{}, errInvalidParam("size")
		}
		filters.PageSize = size
	}

	// sort takes "timestamp,desc" form; timestamp is the only sortable field.
	if raw := q.Get("sort"); raw != "" {
		parts := strings.Split(raw, ",")
		if parts[0] != "" && parts[0] != "timestamp" {
			return Filters{}, errInvalidParam("sort")
		}
		filters.SortAsc = len(parts) > 1 && strings.EqualFold(parts[1], "asc")
	}
	return filters, nil
}

type paramError string

func (e paramError) Error() string { return "invalid query parameter: " + string(e) }

func errInvalidParam(name string) error { return paramError(name) }
