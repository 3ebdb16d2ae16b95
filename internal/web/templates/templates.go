// Package templates holds the back office pages as templ components.
// The *_templ.go files are generated from the .templ sources with
// `templ generate`; edit the .templ files, not the generated code.
package templates

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/JonMunkholm/shoestore/internal/core"
	"github.com/shopspring/decimal"
)

// Base carries what every page's layout needs.
type Base struct {
	Title string
	User  *core.Principal
	Flash []string
}

// Option is one entry of a select box.
type Option struct {
	Value string
	Label string
}

type LoginData struct {
	Base
	Login string
	Next  string
	Error string
}

type CatalogData struct {
	Base
	Filter     core.ProductFilter
	Products   []core.ProductView
	Categories []core.RefItem
	Suppliers  []core.RefItem
	Sorts      []Option
	Discounts  []Option
}

type ProductFormData struct {
	Base
	Editing       bool
	Input         core.ProductInput
	Categories    []core.RefItem
	Suppliers     []core.RefItem
	Manufacturers []core.RefItem
	Error         string
}

type OrdersData struct {
	Base
	Orders []core.OrderView
}

type OrderFormData struct {
	Base
	Editing  bool
	Input    core.OrderInput
	Items    string
	Statuses []core.RefItem
	Points   []core.RefItem
	Clients  []core.RefItem
	Error    string
}

type ErrorData struct {
	Base
	Message string
	Action  string
	Code    string
}

func money(d decimal.Decimal) string { return d.StringFixed(2) }

func itoa(n int32) string { return strconv.Itoa(int(n)) }

// short cuts s to n runes.
func short(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n])) + "…"
}

func loginAction(next string) string {
	if next == "" {
		return "/login"
	}
	return "/login?next=" + url.QueryEscape(next)
}

func photoURL(p core.ProductView) string {
	if p.Photo == "" {
		return "/photos/picture.png"
	}
	return "/photos/" + url.PathEscape(p.Photo)
}

func productPath(article, action string) string {
	return "/products/" + url.PathEscape(article) + "/" + action
}

func orderPath(id int32, action string) string {
	return "/orders/" + itoa(id) + "/" + action
}

func cardClass(p core.ProductView) string {
	switch {
	case p.HighDiscount:
		return "card high"
	case !p.InStock():
		return "card out"
	}
	return "card"
}
