package server

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/Prathameshworks247/AGILITY/internal/apierr"
	"github.com/Prathameshworks247/AGILITY/internal/engine"
	"github.com/Prathameshworks247/AGILITY/internal/session"
)

type AuthConfig struct {
	// JWTSecret validates interactive session tokens.
	JWTSecret string
	// ServiceSecret is the pre-shared bearer value used by the analysis
	// gateway. Empty disables service mode.
	ServiceSecret string
	// AllowDevLogin exposes POST /auth/dev/login.
	AllowDevLogin bool
	Logger        *slog.Logger
}

// Principal is the transport-level caller, classified once per request.
type Principal struct {
	Mode   engine.AuthMode
	UserID string
	Source string
}

type principalKey struct{}

func (c AuthConfig) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

func withPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func principalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

func principalFromRequest(ctx context.Context) (Principal, huma.StatusError) {
	if p, ok := principalFromContext(ctx); ok {
		return p, nil
	}
	return Principal{}, newAPIError(http.StatusUnauthorized, "authentication required")
}

// interactiveUser returns the session user or rejects service callers,
// which have no read access.
func interactiveUser(ctx context.Context) (string, huma.StatusError) {
	p, err := principalFromRequest(ctx)
	if err != nil {
		return "", err
	}
	if p.Mode == engine.ModeService {
		return "", newAPIError(http.StatusForbidden, "service credentials cannot read reviews")
	}
	return p.UserID, nil
}

func isServiceSecret(token, secret string) bool {
	if secret == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(secret)) == 1
}

// classify resolves the Authorization header. The service secret is checked
// first; anything else must be a valid session token.
func classify(authz string, cfg AuthConfig) (Principal, bool) {
	token, ok := session.BearerToken(authz)
	if !ok {
		return Principal{}, false
	}
	if isServiceSecret(token, cfg.ServiceSecret) {
		return Principal{Mode: engine.ModeService, Source: "service"}, true
	}
	claims, err := session.Parse(token, cfg.JWTSecret)
	if err != nil {
		return Principal{}, false
	}
	return Principal{Mode: engine.ModeInteractive, UserID: claims.Subject, Source: "jwt"}, true
}

func newAuthMiddleware(basePath string, cfg AuthConfig) func(http.Handler) http.Handler {
	public := map[string]bool{
		path.Join(basePath, "health"):         true,
		path.Join(basePath, "openapi.json"):   true,
		path.Join(basePath, "docs"):           true,
		path.Join(basePath, "auth/dev/login"): cfg.AllowDevLogin,
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if basePath != "" && !strings.HasPrefix(req.URL.Path, basePath) {
				next.ServeHTTP(w, req)
				return
			}
			if public[req.URL.Path] {
				next.ServeHTTP(w, req)
				return
			}
			authz := strings.TrimSpace(req.Header.Get("Authorization"))
			if authz == "" {
				respondStatusError(w, newAPIError(http.StatusUnauthorized, "authentication required"))
				return
			}
			principal, ok := classify(authz, cfg)
			if !ok {
				cfg.logger().Debug("rejected credentials", "path", req.URL.Path, "remote", req.RemoteAddr)
				respondStatusError(w, newAPIError(http.StatusUnauthorized, "invalid credentials"))
				return
			}
			next.ServeHTTP(w, req.WithContext(withPrincipal(req.Context(), principal)))
		})
	}
}

func respondStatusError(w http.ResponseWriter, err huma.StatusError) {
	apierr.Write(w, err)
}
