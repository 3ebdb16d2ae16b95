package templates

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/JonMunkholm/shoestore/internal/core"
	"github.com/a-h/templ"
	"github.com/shopspring/decimal"
)

func renderString(t *testing.T, c templ.Component) string {
	t.Helper()
	var buf bytes.Buffer
	if err := c.Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	return buf.String()
}

func catalogData(role core.Role) CatalogData {
	return CatalogData{
		Base: Base{Title: "Товары", User: &core.Principal{FullName: "Тест", Role: role}, Flash: []string{"Товар сохранен"}},
		Filter: core.ProductFilter{Role: role, Category: "Женская обувь", Sort: core.SortPriceDesc},
		Products: []core.ProductView{
			{
				Article: "А112Т4", Name: "Ботинки <b>", Category: "Женская обувь", Unit: "шт.",
				Price: decimal.RequireFromString("4990"), FinalPrice: decimal.RequireFromString("3992"),
				Discount: 20, Quantity: 6, HighDiscount: true,
			},
			{Article: "F635R4", Name: "Туфли", Price: decimal.RequireFromString("3244"), FinalPrice: decimal.RequireFromString("3244")},
		},
		Categories: []core.RefItem{{ID: 1, Name: "Женская обувь"}, {ID: 2, Name: "Мужская обувь"}},
		Sorts:      []Option{{Value: "name", Label: "По названию"}, {Value: "price_desc", Label: "Цена по убыванию"}},
		Discounts:  []Option{{Value: "", Label: "Все"}},
	}
}

func TestCatalogPage(t *testing.T) {
	t.Run("guest", func(t *testing.T) {
		out := renderString(t, CatalogPage(catalogData(core.RoleGuest)))

		for _, want := range []string{
			"Ботинки &lt;b&gt;",
			`<div class="card high">`,
			`<div class="card out">`,
			`<span class="old">4990.00</span> 3992.00 руб.`,
			"Скидка 20%",
			`src="/photos/picture.png"`,
			`<div class="flash">Товар сохранен</div>`,
			"Найдено: 2",
		} {
			if !strings.Contains(out, want) {
				t.Errorf("missing %q in output", want)
			}
		}
		for _, unwanted := range []string{`name="q"`, "/products/new", "Ботинки <b>", `href="/orders"`} {
			if strings.Contains(out, unwanted) {
				t.Errorf("unexpected %q in guest output", unwanted)
			}
		}
	})

	t.Run("admin", func(t *testing.T) {
		out := renderString(t, CatalogPage(catalogData(core.RoleAdmin)))

		for _, want := range []string{
			`name="q"`,
			`<option value="Женская обувь" selected>Женская обувь</option>`,
			`<option value="Мужская обувь">Мужская обувь</option>`,
			`<option value="price_desc" selected>`,
			"/products/new",
			`href="/products/%D0%90112%D0%A24/edit"`,
			`href="/orders"`,
		} {
			if !strings.Contains(out, want) {
				t.Errorf("missing %q in output", want)
			}
		}
	})

	t.Run("empty", func(t *testing.T) {
		d := catalogData(core.RoleClient)
		d.Products = nil
		if out := renderString(t, CatalogPage(d)); !strings.Contains(out, "Товары не найдены.") {
			t.Error("missing empty-state message")
		}
	})
}

func TestLoginPage(t *testing.T) {
	out := renderString(t, LoginPage(LoginData{Login: `a"b`, Next: "/orders?x=1", Error: "Неверный логин или пароль"}))

	for _, want := range []string{
		`action="/login?next=%2Forders%3Fx%3D1"`,
		`value="a&#34;b"`,
		`<div class="error">Неверный логин или пароль</div>`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in output", want)
		}
	}
	if strings.Contains(out, "Выход") {
		t.Error("signed-out layout should not offer logout")
	}
}

func TestOrderPages(t *testing.T) {
	admin := Base{User: &core.Principal{Role: core.RoleAdmin}}

	t.Run("list", func(t *testing.T) {
		out := renderString(t, OrdersPage(OrdersData{Base: admin, Orders: []core.OrderView{{ID: 7, Status: "Новый", Summary: "А112Т4 (2 шт.)"}}}))
		for _, want := range []string{"<td>7</td>", `href="/orders/7/edit"`, `action="/orders/7/delete"`, "А112Т4 (2 шт.)"} {
			if !strings.Contains(out, want) {
				t.Errorf("missing %q in output", want)
			}
		}
	})

	t.Run("form", func(t *testing.T) {
		out := renderString(t, OrderFormPage(OrderFormData{
			Base:     admin,
			Editing:  true,
			Input:    core.OrderInput{ID: 7, StatusID: 2, UserID: 0},
			Statuses: []core.RefItem{{ID: 1, Name: "Новый"}, {ID: 2, Name: "Завершен"}},
			Clients:  []core.RefItem{{ID: 3, Name: "Иванов"}},
		}))
		for _, want := range []string{
			"<h1>Заказ 7</h1>",
			`<input type="hidden" name="id" value="7">`,
			`<option value="2" selected>Завершен</option>`,
			`<option value="0">не назначен</option>`,
			`<datalist id="clients"><option value="Иванов"></option></datalist>`,
		} {
			if !strings.Contains(out, want) {
				t.Errorf("missing %q in output", want)
			}
		}
	})
}

func TestErrorPage(t *testing.T) {
	out := renderString(t, ErrorPage(ErrorData{Message: "Record not found", Action: "Refresh", Code: "DB009"}))
	if !strings.Contains(out, "Код: DB009") || !strings.Contains(out, "<p>Refresh</p>") {
		t.Errorf("unexpected error page:\n%s", out)
	}
}

func TestShort(t *testing.T) {
	if got := short("Женские ботинки", 7); got != "Женские…" {
		t.Errorf("short() = %q", got)
	}
	if got := short("abc", 7); got != "abc" {
		t.Errorf("short() = %q", got)
	}
}
