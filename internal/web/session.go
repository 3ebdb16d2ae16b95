package web

import (
	"log/slog"
	"net/http"

	"github.com/JonMunkholm/shoestore/internal/config"
	"github.com/JonMunkholm/shoestore/internal/core"
	"github.com/gorilla/sessions"
)

const (
	keyUserID   = "user_id"
	keyLogin    = "login"
	keyFullName = "full_name"
	keyRole     = "role"
)

// newSessionStore creates the signed cookie store. Cookies are HttpOnly and
// SameSite=Lax, so cross-site form posts carry no session.
func newSessionStore(cfg config.SessionConfig) *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(cfg.Secret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.MaxAge.Seconds()),
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

// session returns the request's session. A cookie that fails verification
// yields a fresh empty session.
func (s *Server) session(r *http.Request) *sessions.Session {
	sess, err := s.sessions.Get(r, s.cfg.Session.Name)
	if err != nil {
		slog.Debug("discarding invalid session cookie", "error", err)
	}
	return sess
}

// loadPrincipal restores the signed-in principal from the session cookie.
func (s *Server) loadPrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p := principalFromSession(s.session(r)); p != nil {
			r = r.WithContext(core.ContextWithPrincipal(r.Context(), p))
		}
		next.ServeHTTP(w, r)
	})
}

func principalFromSession(sess *sessions.Session) *core.Principal {
	login, ok := sess.Values[keyLogin].(string)
	if !ok || login == "" {
		return nil
	}
	p := &core.Principal{Login: login}
	p.UserID, _ = sess.Values[keyUserID].(int32)
	p.FullName, _ = sess.Values[keyFullName].(string)
	role, _ := sess.Values[keyRole].(string)
	p.Role = core.ParseRole(role)
	return p
}

// signIn stores p in the session.
func (s *Server) signIn(w http.ResponseWriter, r *http.Request, p *core.Principal) error {
	sess := s.session(r)
	sess.Values[keyUserID] = p.UserID
	sess.Values[keyLogin] = p.Login
	sess.Values[keyFullName] = p.FullName
	sess.Values[keyRole] = string(p.Role)
	return sess.Save(r, w)
}

// signOut expires the session cookie.
func (s *Server) signOut(w http.ResponseWriter, r *http.Request) error {
	sess := s.session(r)
	sess.Options.MaxAge = -1
	return sess.Save(r, w)
}

// addFlash queues a one-time message for the next page.
func (s *Server) addFlash(w http.ResponseWriter, r *http.Request, msg string) {
	sess := s.session(r)
	sess.AddFlash(msg)
	if err := sess.Save(r, w); err != nil {
		slog.Error("save flash", "error", err)
	}
}

// flashes pops queued messages. It must run before the response is written.
func (s *Server) flashes(w http.ResponseWriter, r *http.Request) []string {
	sess := s.session(r)
	raw := sess.Flashes()
	if len(raw) == 0 {
		return nil
	}
	if err := sess.Save(r, w); err != nil {
		slog.Error("save session", "error", err)
	}
	out := make([]string, 0, len(raw))
	for _, f := range raw {
		if msg, ok := f.(string); ok {
			out = append(out, msg)
		}
	}
	return out
}
