package rbac

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/staffhub-hr/staffhub/internal/platform/httpx"
	"github.com/staffhub-hr/staffhub/internal/shared"
)

// Handler wires the role administration endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountCatalogRoutes registers the read-only directory views. The
// caller gates them behind a read permission.
func (h *Handler) MountCatalogRoutes(r chi.Router) {
	r.Get("/roles", h.listRoles)
	r.Get("/permissions", h.listPermissions)
	r.Get("/users", h.listUsers)
	r.Get("/overview", h.overview)
}

// MountGrantRoutes registers the role mutation endpoints. The caller
// gates them behind the role administration permission.
func (h *Handler) MountGrantRoutes(r chi.Router) {
	r.Post("/users/assign-role", h.assignRole)
	r.Post("/users/remove-role", h.removeRole)
}

type roleResponse struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Permissions []string `json:"permissions"`
}

type permissionResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type userGrantsResponse struct {
	ID       int64    `json:"id"`
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.ListRoles(r.Context())
	if err != nil {
		h.logger.Error("list roles", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]roleResponse, 0, len(roles))
	for _, role := range roles {
		out = append(out, roleResponse{
			ID:          role.ID,
			Name:        role.Name,
			Description: role.Description,
			Permissions: role.Permissions,
		})
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) listPermissions(w http.ResponseWriter, r *http.Request) {
	permissions, err := h.service.ListPermissions(r.Context())
	if err != nil {
		h.logger.Error("list permissions", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]permissionResponse, 0, len(permissions))
	for _, p := range permissions {
		out = append(out, permissionResponse{ID: p.ID, Name: p.Name, Description: p.Description})
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUserGrants(r.Context())
	if err != nil {
		h.logger.Error("list users", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]userGrantsResponse, 0, len(users))
	for _, u := range users {
		out = append(out, userGrantsResponse{ID: u.UserID, Username: u.Username, Roles: u.Roles})
	}
	httpx.JSON(w, http.StatusOK, out)
}

type overviewResponse struct {
	Users []userGrantsResponse `json:"users"`
	Roles []roleResponse       `json:"roles"`
}

func (h *Handler) overview(w http.ResponseWriter, r *http.Request) {
	users, roles, err := h.service.Overview(r.Context())
	if err != nil {
		h.logger.Error("load overview", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := overviewResponse{
		Users: make([]userGrantsResponse, 0, len(users)),
		Roles: make([]roleResponse, 0, len(roles)),
	}
	for _, u := range users {
		out.Users = append(out.Users, userGrantsResponse{ID: u.UserID, Username: u.Username, Roles: u.Roles})
	}
	for _, role := range roles {
		out.Roles = append(out.Roles, roleResponse{
			ID:          role.ID,
			Name:        role.Name,
			Description: role.Description,
			Permissions: role.Permissions,
		})
	}
	httpx.JSON(w, http.StatusOK, out)
}

// roleGrantRequest is shared by assign-role and remove-role. A missing
// user or role is not a request error; the service answers false.
type roleGrantRequest struct {
	UserID   int64  `json:"userId" validate:"required,gt=0"`
	RoleName string `json:"roleName" validate:"required,min=2,max=64"`
}

func (h *Handler) assignRole(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeGrant(w, r)
	if !ok {
		return
	}
	actor := shared.PrincipalFromContext(r.Context())
	changed, err := h.service.AssignRole(r.Context(), actor, req.UserID, req.RoleName, shared.MetaFromRequest(r))
	if err != nil {
		h.logger.Error("assign role", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]bool{"assigned": changed})
}

func (h *Handler) removeRole(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeGrant(w, r)
	if !ok {
		return
	}
	actor := shared.PrincipalFromContext(r.Context())
	changed, err := h.service.RemoveRole(r.Context(), actor, req.UserID, req.RoleName, shared.MetaFromRequest(r))
	if err != nil {
		h.logger.Error("remove role", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]bool{"removed": changed})
}

func (h *Handler) decodeGrant(w http.ResponseWriter, r *http.Request) (roleGrantRequest, bool) {
	var req roleGrantRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return req, false
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return req, false
	}
	return req, true
}
