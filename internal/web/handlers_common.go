// This file contains shared utilities and helper functions used across handlers.
package web

import (
	"bytes"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/JonMunkholm/shoestore/internal/core"
	"github.com/JonMunkholm/shoestore/internal/web/templates"
	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"
)

// MaxUploadSize is the maximum accepted multipart request size (100MB).
// The import layer applies its own, usually smaller, file limit.
const MaxUploadSize = 100 * 1024 * 1024

// articleParam returns the article route segment, unescaped.
func articleParam(r *http.Request) string {
	raw := chi.URLParam(r, "article")
	if article, err := url.PathUnescape(raw); err == nil {
		return article
	}
	return raw
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

// orderIDParam reads the {id} route parameter.
func orderIDParam(r *http.Request) (int32, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 32)
	if err != nil || id <= 0 {
		return 0, false
	}
	return int32(id), true
}

// formInt32 parses an optional integer form field; blank or invalid is 0.
func formInt32(r *http.Request, name string) int32 {
	n, err := strconv.ParseInt(strings.TrimSpace(r.FormValue(name)), 10, 32)
	if err != nil {
		return 0
	}
	return int32(n)
}

// productFilter builds a catalog filter from query parameters. Search and
// narrowing filters are dropped for roles that may not use them.
func productFilter(r *http.Request, role core.Role) core.ProductFilter {
	q := r.URL.Query()
	f := core.ProductFilter{
		Role:     role,
		Discount: core.DiscountFilter(q.Get("discount")),
		Sort:     core.ProductSort(q.Get("sort")),
	}
	if role.CanFilter() {
		f.Search = strings.TrimSpace(q.Get("q"))
		f.Category = strings.TrimSpace(q.Get("category"))
		f.Supplier = strings.TrimSpace(q.Get("supplier"))
	}
	return f
}

// principal returns the request's principal, or nil when signed out.
// Routes behind RequireRole always have one.
func principal(r *http.Request) *core.Principal {
	return core.PrincipalFromContext(r.Context())
}

// base fills the layout data and pops pending flash messages.
func (s *Server) base(w http.ResponseWriter, r *http.Request, title string) templates.Base {
	return templates.Base{
		Title: title,
		User:  principal(r),
		Flash: s.flashes(w, r),
	}
}

// render writes a page with status 200.
func (s *Server) render(w http.ResponseWriter, r *http.Request, c templ.Component) {
	s.renderStatus(w, r, http.StatusOK, c)
}

// renderStatus writes a page, reporting template failures as server errors.
// The page is buffered so a failed render never sends a partial body.
func (s *Server) renderStatus(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	var buf bytes.Buffer
	if err := c.Render(r.Context(), &buf); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

var sortOptions = []templates.Option{
	{Value: string(core.SortName), Label: "По названию"},
	{Value: string(core.SortPriceAsc), Label: "Цена по возрастанию"},
	{Value: string(core.SortPriceDesc), Label: "Цена по убыванию"},
	{Value: string(core.SortDiscountDesc), Label: "Скидка по убыванию"},
	{Value: string(core.SortDiscountAsc), Label: "Скидка по возрастанию"},
}

var discountOptions = []templates.Option{
	{Value: string(core.DiscountAny), Label: "Все скидки"},
	{Value: string(core.DiscountPresent), Label: "Со скидкой"},
	{Value: string(core.DiscountHigh), Label: "Скидка более 15%"},
}
