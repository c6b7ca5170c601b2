package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/staffhub-hr/staffhub/internal/shared"
)

// Authenticator resolves bearer tokens into request principals. It
// never rejects a request itself; anything that fails to authenticate
// simply proceeds anonymously and is stopped later by the permission
// checks on protected routes.
type Authenticator struct {
	tokens *TokenService
	repo   Repository
	grants Grants
	logger *slog.Logger
}

func NewAuthenticator(tokens *TokenService, repo Repository, grants Grants, logger *slog.Logger) *Authenticator {
	return &Authenticator{tokens: tokens, repo: repo, grants: grants, logger: logger}
}

// Middleware attaches a principal to the request context when a valid
// bearer token is presented.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}
		claims, err := a.tokens.Parse(raw)
		if err != nil {
			a.logger.Debug("token rejected", slog.Any("error", err))
			next.ServeHTTP(w, r)
			return
		}
		principal := a.resolve(r, claims)
		if principal == nil {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithPrincipal(r.Context(), principal)))
	})
}

// resolve builds a principal from verified claims. Tokens minted before
// capability claims existed carry only a subject; those fall back to a
// live directory lookup.
func (a *Authenticator) resolve(r *http.Request, claims *Claims) shared.Principal {
	if len(claims.Roles) > 0 || len(claims.Permissions) > 0 {
		var impersonatorID int64
		if claims.ImpersonatorID != nil {
			impersonatorID = *claims.ImpersonatorID
		}
		return shared.TokenPrincipal{
			ID:             claims.UserID,
			Name:           claims.Subject,
			RoleNames:      claims.Roles,
			PermissionSet:  claims.Permissions,
			IsImpersonated: claims.Impersonated,
			ImpersonatorID: impersonatorID,
		}
	}

	ctx := r.Context()
	user, err := a.repo.FindByUsername(ctx, claims.Subject)
	if err != nil {
		a.logger.Debug("directory fallback failed",
			slog.String("subject", claims.Subject), slog.Any("error", err))
		return nil
	}
	roles, err := a.grants.RolesForUser(ctx, user.ID)
	if err != nil {
		a.logger.Warn("load roles for fallback principal", slog.Any("error", err))
		return nil
	}
	permissions, err := a.grants.EffectivePermissions(ctx, user.ID)
	if err != nil {
		a.logger.Warn("load permissions for fallback principal", slog.Any("error", err))
		return nil
	}
	return shared.DirectoryPrincipal{
		ID:            user.ID,
		Name:          user.Username,
		RoleNames:     roles,
		PermissionSet: permissions,
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
