package web

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/JonMunkholm/shoestore/internal/core"
	"github.com/JonMunkholm/shoestore/internal/logging"
	"github.com/JonMunkholm/shoestore/internal/web/templates"
)

// handleLoginPage renders the sign-in form. Signed-in users go straight to
// the catalog.
func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if principal(r) != nil {
		http.Redirect(w, r, "/products", http.StatusSeeOther)
		return
	}
	s.render(w, r, templates.LoginPage(templates.LoginData{
		Base: s.base(w, r, "Вход"),
		Next: r.URL.Query().Get("next"),
	}))
}

// handleLogin checks the credentials and starts a session.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	login := strings.TrimSpace(r.FormValue("login"))
	p, err := s.service.ResolveCredential(r.Context(), login, r.FormValue("password"))
	if errors.Is(err, core.ErrInvalidCredentials) {
		logging.FromContext(r.Context()).Warn("sign-in failed", "login", login)
		s.renderStatus(w, r, http.StatusUnauthorized, templates.LoginPage(templates.LoginData{
			Base:  s.base(w, r, "Вход"),
			Login: login,
			Next:  r.URL.Query().Get("next"),
			Error: "Неверный логин или пароль",
		}))
		return
	}
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if err := s.signIn(w, r, p); err != nil {
		s.respondError(w, r, err)
		return
	}
	logging.FromContext(r.Context()).Info("signed in", "login", p.Login, "role", p.Role)
	http.Redirect(w, r, safeNext(r.URL.Query().Get("next")), http.StatusSeeOther)
}

// handleGuestLogin starts a guest session.
func (s *Server) handleGuestLogin(w http.ResponseWriter, r *http.Request) {
	if err := s.signIn(w, r, core.Guest()); err != nil {
		s.respondError(w, r, err)
		return
	}
	http.Redirect(w, r, "/products", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.signOut(w, r); err != nil {
		s.respondError(w, r, err)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// safeNext keeps post-login redirects on this site.
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/products"
	}
	return next
}

// handleCatalog renders the product list for the signed-in role.
func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := principal(r)
	filter := productFilter(r, p.Role)

	products, err := s.service.ListProducts(ctx, filter)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	data := templates.CatalogData{
		Base:      s.base(w, r, "Товары"),
		Filter:    filter,
		Products:  products,
		Sorts:     sortOptions,
		Discounts: discountOptions,
	}

	// Filter choices are only shown to staff.
	if p.Role.CanFilter() {
		if data.Categories, err = s.service.ListCategories(ctx); err != nil {
			s.respondError(w, r, err)
			return
		}
		if data.Suppliers, err = s.service.ListSuppliers(ctx); err != nil {
			s.respondError(w, r, err)
			return
		}
	}

	s.render(w, r, templates.CatalogPage(data))
}

// handleOrders renders the order list.
func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := s.service.ListOrders(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.render(w, r, templates.OrdersPage(templates.OrdersData{
		Base:   s.base(w, r, "Заказы"),
		Orders: orders,
	}))
}

// isoDate renders a date for an <input type="date">.
func isoDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}
