package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/JonMunkholm/shoestore/internal/config"
	"github.com/JonMunkholm/shoestore/internal/core"
)

// APIPrincipal is the principal of requests authenticated by API key.
var APIPrincipal = &core.Principal{Login: "api", FullName: "API client", Role: core.RoleAdmin}

// APIKeyAuth validates the X-API-Key header against configured keys and
// signs valid requests in as APIPrincipal. When RequireAPIKey is false the
// header is ignored and session roles apply. When it is true but no keys are
// configured, all requests are rejected.
func APIKeyAuth(cfg *config.SecurityConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.RequireAPIKey {
				next.ServeHTTP(w, r)
				return
			}

			apiKey := r.Header.Get("X-API-Key")
			if apiKey == "" {
				slog.Warn("auth: missing API key",
					"path", r.URL.Path,
					"method", r.Method,
					"remote_addr", r.RemoteAddr,
				)
				jsonError(w, http.StatusUnauthorized, "missing API key", "AUTH_MISSING_KEY")
				return
			}

			if !isValidAPIKey(apiKey, cfg.APIKeys) {
				slog.Warn("auth: invalid API key",
					"path", r.URL.Path,
					"method", r.Method,
					"remote_addr", r.RemoteAddr,
				)
				jsonError(w, http.StatusForbidden, "invalid API key", "AUTH_INVALID_KEY")
				return
			}

			ctx := core.ContextWithPrincipal(r.Context(), APIPrincipal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// isValidAPIKey checks if the provided key matches any configured key.
// Every key is compared in constant time, so timing does not reveal which
// key matched.
func isValidAPIKey(key string, validKeys []string) bool {
	valid := 0
	for _, validKey := range validKeys {
		valid |= subtle.ConstantTimeCompare([]byte(key), []byte(validKey))
	}
	return valid == 1
}

// RequireRole lets through requests whose principal has one of roles.
// Anonymous page requests are redirected to /login; anonymous API requests
// get 401. A principal with another role gets 403.
func RequireRole(roles ...core.Role) func(http.Handler) http.Handler {
	allowed := make(map[core.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := core.PrincipalFromContext(r.Context())
			switch {
			case p == nil && isAPI(r):
				jsonError(w, http.StatusUnauthorized, "not authenticated", "AUTH003")
			case p == nil:
				http.Redirect(w, r, "/login?next="+url.QueryEscape(r.URL.RequestURI()), http.StatusSeeOther)
			case len(allowed) > 0 && !allowed[p.Role]:
				slog.Warn("auth: role not permitted",
					"path", r.URL.Path,
					"login", p.Login,
					"role", p.Role,
				)
				if isAPI(r) {
					jsonError(w, http.StatusForbidden, "permission denied", "AUTH002")
					return
				}
				http.Error(w, "Недостаточно прав (AUTH002)", http.StatusForbidden)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

// RequireSignedIn lets through any principal, guests included.
func RequireSignedIn() func(http.Handler) http.Handler {
	return RequireRole()
}

func isAPI(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/api/")
}

func jsonError(w http.ResponseWriter, status int, msg, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + msg + `","code":"` + code + `"}`))
}
