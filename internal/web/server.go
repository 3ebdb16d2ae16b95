// Package web provides the HTTP back office: catalog browsing, product and
// order administration, and the JSON import API.
package web

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/JonMunkholm/shoestore/internal/config"
	"github.com/JonMunkholm/shoestore/internal/core"
	mw "github.com/JonMunkholm/shoestore/internal/web/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"
)

// Backend is what the handlers need from the domain service.
// *core.Service implements it.
type Backend interface {
	ResolveCredential(ctx context.Context, login, password string) (*core.Principal, error)

	ListProducts(ctx context.Context, f core.ProductFilter) ([]core.ProductView, error)
	GetProduct(ctx context.Context, article string) (*core.ProductView, error)
	UpsertProduct(ctx context.Context, in core.ProductInput) error
	DeleteProduct(ctx context.Context, article string) (bool, error)

	ListCategories(ctx context.Context) ([]core.RefItem, error)
	ListSuppliers(ctx context.Context) ([]core.RefItem, error)
	ListManufacturers(ctx context.Context) ([]core.RefItem, error)
	ListStatuses(ctx context.Context) ([]core.RefItem, error)
	ListPickupPoints(ctx context.Context) ([]core.RefItem, error)
	ListClients(ctx context.Context) ([]core.RefItem, error)

	ListOrders(ctx context.Context) ([]core.OrderView, error)
	GetOrder(ctx context.Context, id int32) (*core.OrderView, error)
	UpsertOrder(ctx context.Context, in core.OrderInput, items []core.LineItem) (int32, error)
	DeleteOrder(ctx context.Context, id int32) (bool, error)

	ImportAll(ctx context.Context, dir string) (*core.ImportReport, error)
	ImportFile(ctx context.Context, entity, fileName string, r io.Reader) (*core.FileResult, error)
	ImportHistory(ctx context.Context, entity string, limit int) ([]core.ImportRunEntry, error)
	ListEntities() []core.EntityInfo

	ListAudit(ctx context.Context, filter core.AuditLogFilter) ([]core.AuditEntry, error)
	Stats(ctx context.Context) ([]core.TableCount, error)
}

// Server is the HTTP server for the back office.
type Server struct {
	service  Backend
	cfg      *config.Config
	sessions *sessions.CookieStore
	router   *chi.Mux
	server   *http.Server
}

// NewServer creates a new Server instance.
func NewServer(service Backend, cfg *config.Config) *Server {
	s := &Server{
		service:  service,
		cfg:      cfg,
		sessions: newSessionStore(cfg.Session),
		router:   chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(s.loadPrincipal)
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
	s.router.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))

	// Security hardening
	s.router.Use(securityHeaders(s.cfg.Security.EnableCSP))

	if s.cfg.Rate.Enabled {
		limiter := newRateLimiter(s.cfg.Rate.RequestsPerMinute, time.Minute)
		s.router.Use(limiter.middleware)
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Handle("/photos/*", http.StripPrefix("/photos/", http.FileServer(http.Dir(s.cfg.Server.PhotoDir))))

	s.router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/products", http.StatusSeeOther)
	})

	// Sign in
	s.router.Get("/login", s.handleLoginPage)
	s.router.Group(func(r chi.Router) {
		if s.cfg.Rate.Enabled {
			r.Use(newRateLimiter(s.cfg.Rate.LoginLimit, time.Minute).middleware)
		}
		r.Post("/login", s.handleLogin)
	})
	s.router.Post("/login/guest", s.handleGuestLogin)
	s.router.Post("/logout", s.handleLogout)

	// Catalog, visible to everyone signed in
	s.router.Group(func(r chi.Router) {
		r.Use(mw.RequireSignedIn())
		r.Get("/products", s.handleCatalog)
	})

	// Orders, staff only
	s.router.Group(func(r chi.Router) {
		r.Use(mw.RequireRole(core.RoleAdmin, core.RoleManager))
		r.Get("/orders", s.handleOrders)
	})

	// Administration
	s.router.Group(func(r chi.Router) {
		r.Use(mw.RequireRole(core.RoleAdmin))

		r.Get("/products/new", s.handleProductForm)
		r.Get("/products/{article}/edit", s.handleProductForm)
		r.Post("/products", s.handleSaveProduct)
		r.Post("/products/{article}/delete", s.handleDeleteProduct)

		r.Get("/orders/new", s.handleOrderForm)
		r.Get("/orders/{id}/edit", s.handleOrderForm)
		r.Post("/orders", s.handleSaveOrder)
		r.Post("/orders/{id}/delete", s.handleDeleteOrder)
	})

	// API routes
	s.router.Route("/api", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(&s.cfg.Security))

		r.Group(func(r chi.Router) {
			r.Use(mw.RequireSignedIn())
			r.Get("/products", s.handleListProducts)
		})

		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(core.RoleAdmin, core.RoleManager))
			r.Get("/orders", s.handleListOrders)
			r.Get("/stats", s.handleStats)
		})

		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(core.RoleAdmin))

			r.Get("/entities", s.handleListEntities)

			// Import operations
			r.Post("/import", s.handleImportAll)
			r.Post("/import/{entity}", s.handleImportFile)
			r.Get("/import/history", s.handleImportHistory)

			// Audit log
			r.Get("/audit-log", s.handleAuditLog)
		})
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(enableCSP bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

			// Pages use inline styles and confirm() handlers.
			if enableCSP {
				w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'; img-src 'self' data:; form-action 'self'; frame-ancestors 'none'")
			}

			next.ServeHTTP(w, r)
		})
	}
}

// rateLimiter implements a simple fixed-window rate limiter per IP.
type rateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     int           // requests per window
	window   time.Duration // time window
	now      func() time.Time
}

type visitor struct {
	tokens    int
	lastReset time.Time
}

// newRateLimiter creates a rate limiter with the specified rate per window.
func newRateLimiter(rate int, window time.Duration) *rateLimiter {
	rl := &rateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate,
		window:   window,
		now:      time.Now,
	}
	go rl.cleanup()
	return rl
}

// cleanup removes stale visitor entries every window.
func (rl *rateLimiter) cleanup() {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()
	for range ticker.C {
		rl.mu.Lock()
		for ip, v := range rl.visitors {
			if rl.now().Sub(v.lastReset) > rl.window*2 {
				delete(rl.visitors, ip)
			}
		}
		rl.mu.Unlock()
	}
}

// allow checks if the request should be allowed and consumes a token if so.
func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	v, exists := rl.visitors[ip]
	if !exists || now.Sub(v.lastReset) > rl.window {
		rl.visitors[ip] = &visitor{tokens: rl.rate - 1, lastReset: now}
		return true
	}

	if v.tokens <= 0 {
		return false
	}
	v.tokens--
	return true
}

// middleware returns an HTTP middleware that rate limits by client IP.
func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(mw.ClientIP(r)) {
			w.Header().Set("Retry-After", "60")
			respondErrorJSON(w, core.MapError(errRateLimited), http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v as JSON and writes it to w.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
