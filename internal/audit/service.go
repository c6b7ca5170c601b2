package audit

import (
	"context"
	"errors"
	"log/slog"

	"github.com/staffhub-hr/staffhub/internal/shared"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Result wraps a page of audit records with paging metadata.
type Result struct {
	Logs       []Log
	Pagination shared.Pagination
}

// Service coordinates writing and querying the audit trail.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService constructs an audit service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Log appends a record with full request context.
func (s *Service) Log(ctx context.Context, actorID *int64, action, resourceType, resourceID string, details map[string]any, meta shared.RequestMeta, impersonated bool) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if action == "" || resourceType == "" {
		return errors.New("audit: action and resource type required")
	}
	return s.repo.Insert(ctx, Log{
		ActorID:      actorID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Details:      details,
		IP:           meta.IP,
		UserAgent:    meta.UserAgent,
		Impersonated: impersonated,
	})
}

// LogEvent appends a record for programmatic events without request context.
func (s *Service) LogEvent(ctx context.Context, actorID *int64, action, resourceType, resourceID string, details map[string]any) error {
	return s.Log(ctx, actorID, action, resourceType, resourceID, details, shared.RequestMeta{}, false)
}

// TryLog writes a record best-effort. A failed audit write must never fail
// the operation being audited; it is logged server-side instead.
func (s *Service) TryLog(ctx context.Context, actorID *int64, action, resourceType, resourceID string, details map[string]any, meta shared.RequestMeta, impersonated bool) {
	if err := s.Log(ctx, actorID, action, resourceType, resourceID, details, meta, impersonated); err != nil {
		if s.logger != nil {
			s.logger.Error("audit write failed",
				slog.String("action", action),
				slog.String("resource_type", resourceType),
				slog.Any("error", err))
		}
	}
}

// Query returns matching records, newest first unless SortAsc is set.
func (s *Service) Query(ctx context.Context, filters Filters) (Result, error) {
	if s.repo == nil {
		return Result{}, errors.New("audit: repository not configured")
	}
	if filters.Page <= 0 {
		filters.Page = 1
	}
	if filters.PageSize <= 0 {
		filters.PageSize = defaultPageSize
	}
	if filters.PageSize > maxPageSize {
		filters.PageSize = maxPageSize
	}
	logs, total, err := s.repo.Query(ctx, filters)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Logs:       logs,
		Pagination: shared.NewPagination(filters.Page, filters.PageSize, total),
	}, nil
}
