package auth

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/staffhub-hr/staffhub/internal/observability"
	"github.com/staffhub-hr/staffhub/internal/platform/httpx"
	"github.com/staffhub-hr/staffhub/internal/shared"
)

const (
	authRateLimit  = 10
	authRateWindow = time.Minute
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	metrics   *observability.Metrics
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, metrics *observability.Metrics) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		metrics:   metrics,
		validator: validator.New(),
	}
}

// MountRoutes registers the public auth routes on the provided router.
// Credential endpoints get a tighter rate limit than the rest of the app.
func (h *Handler) MountRoutes(r chi.Router) {
	limiter := httprate.Limit(authRateLimit, authRateWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Problem(w, http.StatusTooManyRequests, "Too Many Requests", "")
		}),
	)
	r.Group(func(gr chi.Router) {
		gr.Use(limiter)
		gr.Post("/register", h.handleRegister)
		gr.Post("/authenticate", h.handleAuthenticate)
		gr.Post("/reset-password", h.handleResetPassword)
	})
	r.Get("/verify-username/{username}", h.handleVerifyUsername)
}

// MountAdminRoutes registers the impersonation endpoint. The caller
// gates it behind the impersonation permission; the service re-checks
// the actor's live grants on top of that.
func (h *Handler) MountAdminRoutes(r chi.Router) {
	r.Post("/users/{id}/impersonate", h.handleImpersonate)
}

type registerResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

type sessionResponse struct {
	Token       string   `json:"token"`
	UserID      int64    `json:"userId"`
	Username    string   `json:"username"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var creds Credentials
	if err := httpx.DecodeJSON(r, &creds); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(creds); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	user, err := h.service.Register(r.Context(), creds, shared.MetaFromRequest(r))
	if err != nil {
		h.logger.Info("registration rejected", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, registerResponse{ID: user.ID, Username: user.Username})
}

func (h *Handler) handleAuthenticate(w http.ResponseWriter, r *http.Request) {
	var creds Credentials
	if err := httpx.DecodeJSON(r, &creds); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(creds); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	session, err := h.service.Authenticate(r.Context(), creds, shared.MetaFromRequest(r))
	if err != nil {
		h.metrics.RecordLogin("failure")
		httpx.RespondError(w, err)
		return
	}
	h.metrics.RecordLogin("success")
	httpx.JSON(w, http.StatusOK, sessionResponse{
		Token:       session.Token,
		UserID:      session.UserID,
		Username:    session.Username,
		Roles:       session.Roles,
		Permissions: session.Permissions,
	})
}

func (h *Handler) handleVerifyUsername(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	taken, err := h.service.VerifyUsername(r.Context(), username)
	if err != nil {
		h.logger.Error("verify username", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if !taken {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "username not registered")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]bool{"exists": true})
}

func (h *Handler) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req PasswordReset
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.ResetPassword(r.Context(), req, shared.MetaFromRequest(r)); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "password updated"})
}

func (h *Handler) handleImpersonate(w http.ResponseWriter, r *http.Request) {
	targetID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid user id")
		return
	}
	actor := shared.PrincipalFromContext(r.Context())
	if actor == nil {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "insufficient permissions")
		return
	}
	session, err := h.service.Impersonate(r.Context(), actor, targetID, shared.MetaFromRequest(r))
	if err != nil {
		h.logger.Warn("impersonation rejected",
			slog.Int64("actor_id", actor.UserID()), slog.Int64("target_id", targetID),
			slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sessionResponse{
		Token:       session.Token,
		UserID:      session.UserID,
		Username:    session.Username,
		Roles:       session.Roles,
		Permissions: session.Permissions,
	})
}
