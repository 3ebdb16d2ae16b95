package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/JonMunkholm/shoestore/internal/config"
	"github.com/JonMunkholm/shoestore/internal/core"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend serves canned data and records what handlers asked for.
type fakeBackend struct {
	mu sync.Mutex

	users    map[string]*core.Principal // login -> principal, password is "pw"
	products []core.ProductView
	orders   []core.OrderView

	lastFilter   core.ProductFilter
	savedProduct *core.ProductInput
	savedOrder   *core.OrderInput
	savedItems   []core.LineItem
	upsertErr    error
	deleteErr    error
	uploaded     struct{ entity, name, body string }
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		users: map[string]*core.Principal{
			"admin":   {UserID: 1, Login: "admin", FullName: "Админ", Role: core.RoleAdmin},
			"manager": {UserID: 2, Login: "manager", FullName: "Менеджер", Role: core.RoleManager},
			"client":  {UserID: 3, Login: "client", FullName: "Клиент", Role: core.RoleClient},
		},
		products: []core.ProductView{{
			Article:    "А112Т4",
			Name:       "Ботинки",
			Unit:       "шт.",
			Price:      decimal.NewFromInt(4990),
			Discount:   20,
			Quantity:   6,
			Category:   "Женская обувь",
			FinalPrice: core.FinalPrice(decimal.NewFromInt(4990), 20),
		}},
		orders: []core.OrderView{{ID: 1, ClientName: "Иванов", Status: "Новый", Summary: "А112Т4 (2 шт.)"}},
	}
}

func (f *fakeBackend) ResolveCredential(_ context.Context, login, password string) (*core.Principal, error) {
	if p, ok := f.users[login]; ok && password == "pw" {
		return p, nil
	}
	return nil, core.ErrInvalidCredentials
}

func (f *fakeBackend) ListProducts(_ context.Context, flt core.ProductFilter) ([]core.ProductView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastFilter = flt
	return f.products, nil
}

func (f *fakeBackend) GetProduct(_ context.Context, article string) (*core.ProductView, error) {
	for _, p := range f.products {
		if p.Article == article {
			return &p, nil
		}
	}
	return nil, core.ErrNotFound
}

func (f *fakeBackend) UpsertProduct(_ context.Context, in core.ProductInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.savedProduct = &in
	return nil
}

func (f *fakeBackend) DeleteProduct(_ context.Context, article string) (bool, error) {
	if f.deleteErr != nil {
		return false, f.deleteErr
	}
	return article == "А112Т4", nil
}

func refs(names ...string) []core.RefItem {
	out := make([]core.RefItem, len(names))
	for i, n := range names {
		out[i] = core.RefItem{ID: int32(i + 1), Name: n}
	}
	return out
}

func (f *fakeBackend) ListCategories(context.Context) ([]core.RefItem, error) {
	return refs("Женская обувь", "Мужская обувь"), nil
}
func (f *fakeBackend) ListSuppliers(context.Context) ([]core.RefItem, error) {
	return refs("Kari", "Обувь для вас"), nil
}
func (f *fakeBackend) ListManufacturers(context.Context) ([]core.RefItem, error) {
	return refs("Rieker"), nil
}
func (f *fakeBackend) ListStatuses(context.Context) ([]core.RefItem, error) {
	return refs("Новый", "Завершен"), nil
}
func (f *fakeBackend) ListPickupPoints(context.Context) ([]core.RefItem, error) {
	return refs("420151, г. Лесной, ул. Вишневая, 32"), nil
}
func (f *fakeBackend) ListClients(context.Context) ([]core.RefItem, error) {
	return refs("Иванов"), nil
}

func (f *fakeBackend) ListOrders(context.Context) ([]core.OrderView, error) {
	return f.orders, nil
}

func (f *fakeBackend) GetOrder(_ context.Context, id int32) (*core.OrderView, error) {
	for _, o := range f.orders {
		if o.ID == id {
			return &o, nil
		}
	}
	return nil, core.ErrNotFound
}

func (f *fakeBackend) UpsertOrder(_ context.Context, in core.OrderInput, items []core.LineItem) (int32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return 0, f.upsertErr
	}
	f.savedOrder = &in
	f.savedItems = items
	if in.ID == 0 {
		return 1000, nil
	}
	return in.ID, nil
}

func (f *fakeBackend) DeleteOrder(_ context.Context, id int32) (bool, error) {
	return id == 1, nil
}

func (f *fakeBackend) ImportAll(_ context.Context, dir string) (*core.ImportReport, error) {
	return &core.ImportReport{RunID: "run-1", Dir: dir, Files: []*core.FileResult{{Entity: "users", RowsSeen: 2, RowsInserted: 2}}}, nil
}

func (f *fakeBackend) ImportFile(_ context.Context, entity, fileName string, r io.Reader) (*core.FileResult, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.uploaded.entity, f.uploaded.name, f.uploaded.body = entity, fileName, string(body)
	f.mu.Unlock()
	return &core.FileResult{Entity: entity, File: fileName, RowsSeen: 1, RowsInserted: 1}, nil
}

func (f *fakeBackend) ImportHistory(context.Context, string, int) ([]core.ImportRunEntry, error) {
	return nil, nil
}

func (f *fakeBackend) ListEntities() []core.EntityInfo {
	return []core.EntityInfo{
		{Key: "users", Label: "Users", Order: 1},
		{Key: "points", Label: "Pickup points", Order: 2, Headerless: true},
		{Key: "products", Label: "Products", Order: 3},
		{Key: "orders", Label: "Orders", Order: 4},
	}
}

func (f *fakeBackend) ListAudit(context.Context, core.AuditLogFilter) ([]core.AuditEntry, error) {
	return []core.AuditEntry{{ID: "a1", Action: core.ActionImport, Entity: "users", Actor: "admin", RowsAffected: 2}}, nil
}

func (f *fakeBackend) Stats(context.Context) ([]core.TableCount, error) {
	return []core.TableCount{{Table: "product", Rows: 1}}, nil
}

func testConfig(t *testing.T, env map[string]string) *config.Config {
	t.Helper()
	base := map[string]string{
		"DATABASE_URL":       "postgres://localhost/shoestore_test",
		"SESSION_SECRET":     "0123456789abcdef0123456789abcdef",
		"RATE_LIMIT_ENABLED": "false",
	}
	for k, v := range env {
		base[k] = v
	}
	cfg, err := config.LoadFrom(config.MapLookup(base))
	require.NoError(t, err)
	return cfg
}

// testClient keeps cookies between requests and does not follow redirects.
type testClient struct {
	t    *testing.T
	base string
	http *http.Client
}

func newTestServer(t *testing.T, backend Backend, env map[string]string) *testClient {
	t.Helper()
	srv := httptest.NewServer(NewServer(backend, testConfig(t, env)).Router())
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &testClient{
		t:    t,
		base: srv.URL,
		http: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (c *testClient) do(req *http.Request) (*http.Response, string) {
	c.t.Helper()
	resp, err := c.http.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	return resp, string(body)
}

func (c *testClient) get(path string) (*http.Response, string) {
	c.t.Helper()
	req, err := http.NewRequest(http.MethodGet, c.base+path, nil)
	require.NoError(c.t, err)
	return c.do(req)
}

func (c *testClient) postForm(path string, form url.Values) (*http.Response, string) {
	c.t.Helper()
	req, err := http.NewRequest(http.MethodPost, c.base+path, strings.NewReader(form.Encode()))
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req)
}

func (c *testClient) login(login string) {
	c.t.Helper()
	resp, _ := c.postForm("/login", url.Values{"login": {login}, "password": {"pw"}})
	require.Equal(c.t, http.StatusSeeOther, resp.StatusCode)
}

func TestLogin(t *testing.T) {
	c := newTestServer(t, newFakeBackend(), nil)

	t.Run("wrong password", func(t *testing.T) {
		resp, body := c.postForm("/login", url.Values{"login": {"admin"}, "password": {"nope"}})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Contains(t, body, "Неверный логин или пароль")
		assert.Contains(t, body, `value="admin"`)
	})

	t.Run("signed out user is sent to login", func(t *testing.T) {
		resp, _ := c.get("/products")
		assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
		assert.Equal(t, "/login?next=%2Fproducts", resp.Header.Get("Location"))
	})

	t.Run("login page keeps next", func(t *testing.T) {
		resp, body := c.get("/login?next=/orders")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, body, `action="/login?next=%2Forders"`)
	})

	t.Run("success", func(t *testing.T) {
		resp, _ := c.postForm("/login?next=/orders", url.Values{"login": {"manager"}, "password": {"pw"}})
		assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
		assert.Equal(t, "/orders", resp.Header.Get("Location"))

		resp, body := c.get("/orders")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, body, "Иванов")
	})

	t.Run("logout", func(t *testing.T) {
		resp, _ := c.postForm("/logout", nil)
		assert.Equal(t, http.StatusSeeOther, resp.StatusCode)

		resp, _ = c.get("/orders")
		assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	})
}

func TestCatalog_Roles(t *testing.T) {
	t.Run("guest filters are ignored", func(t *testing.T) {
		backend := newFakeBackend()
		c := newTestServer(t, backend, nil)

		resp, _ := c.postForm("/login/guest", nil)
		require.Equal(t, http.StatusSeeOther, resp.StatusCode)

		resp, body := c.get("/products?q=boot&category=x&sort=price_desc")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, body, "Ботинки")
		assert.NotContains(t, body, `name="q"`)
		assert.Empty(t, backend.lastFilter.Search)
		assert.Empty(t, backend.lastFilter.Category)
		assert.Equal(t, core.SortPriceDesc, backend.lastFilter.Sort)
		assert.Equal(t, core.RoleGuest, backend.lastFilter.Role)
	})

	t.Run("manager gets filters", func(t *testing.T) {
		backend := newFakeBackend()
		c := newTestServer(t, backend, nil)
		c.login("manager")

		resp, body := c.get("/products?q=boot&supplier=Kari&discount=high")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, body, `name="q"`)
		assert.NotContains(t, body, "/products/new")
		assert.Equal(t, "boot", backend.lastFilter.Search)
		assert.Equal(t, "Kari", backend.lastFilter.Supplier)
		assert.Equal(t, core.DiscountHigh, backend.lastFilter.Discount)
	})

	t.Run("admin sees edit controls", func(t *testing.T) {
		c := newTestServer(t, newFakeBackend(), nil)
		c.login("admin")

		_, body := c.get("/products")
		assert.Contains(t, body, "/products/new")
		assert.Contains(t, body, "/edit")
	})
}

func TestAccessControl(t *testing.T) {
	tests := []struct {
		name   string
		login  string
		method string
		path   string
		want   int
	}{
		{name: "client cannot list orders", login: "client", method: http.MethodGet, path: "/orders", want: http.StatusForbidden},
		{name: "manager cannot edit products", login: "manager", method: http.MethodGet, path: "/products/new", want: http.StatusForbidden},
		{name: "manager cannot delete orders", login: "manager", method: http.MethodPost, path: "/orders/1/delete", want: http.StatusForbidden},
		{name: "admin opens order form", login: "admin", method: http.MethodGet, path: "/orders/1/edit", want: http.StatusOK},
		{name: "unknown product", login: "admin", method: http.MethodGet, path: "/products/NOPE/edit", want: http.StatusNotFound},
		{name: "bad order id", login: "admin", method: http.MethodGet, path: "/orders/abc/edit", want: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestServer(t, newFakeBackend(), nil)
			c.login(tt.login)

			req, err := http.NewRequest(tt.method, c.base+tt.path, nil)
			require.NoError(t, err)
			resp, _ := c.do(req)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestSaveProduct(t *testing.T) {
	form := url.Values{
		"article": {"B1"}, "name": {"Boot"}, "price": {"100"},
		"category": {"Женская обувь"}, "supplier": {"Kari"}, "manufacturer": {"Rieker"},
	}

	t.Run("created", func(t *testing.T) {
		backend := newFakeBackend()
		c := newTestServer(t, backend, nil)
		c.login("admin")

		resp, _ := c.postForm("/products", form)
		assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
		require.NotNil(t, backend.savedProduct)
		assert.Equal(t, "B1", backend.savedProduct.Article)

		_, body := c.get("/products")
		assert.Contains(t, body, "Товар B1 сохранен")
	})

	t.Run("existing article on add form", func(t *testing.T) {
		backend := newFakeBackend()
		c := newTestServer(t, backend, nil)
		c.login("admin")

		dup := url.Values{}
		for k, v := range form {
			dup[k] = v
		}
		dup.Set("article", "А112Т4")

		resp, body := c.postForm("/products", dup)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		assert.Contains(t, body, "уже существует")
		assert.Nil(t, backend.savedProduct)
	})

	t.Run("validation error re-renders form", func(t *testing.T) {
		backend := newFakeBackend()
		backend.upsertErr = &core.ValidationError{Field: "price", Reason: core.ReasonInvalidNumber}
		c := newTestServer(t, backend, nil)
		c.login("admin")

		resp, body := c.postForm("/products", form)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Contains(t, body, "price: ")
		assert.Contains(t, body, `value="Boot"`)
	})

	t.Run("price above column maximum", func(t *testing.T) {
		backend := newFakeBackend()
		backend.upsertErr = &core.ValidationError{Field: "price", Value: "10000000000", Reason: core.ReasonTooLarge}
		c := newTestServer(t, backend, nil)
		c.login("admin")

		resp, body := c.postForm("/products", form)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Contains(t, body, "price: exceeds the maximum value")
		assert.Contains(t, body, "VAL010")
	})
}

func TestDeleteProduct(t *testing.T) {
	tests := []struct {
		name      string
		article   string
		deleteErr error
		wantFlash string
	}{
		{name: "deleted", article: "А112Т4", wantFlash: "удален"},
		{name: "missing", article: "X1", wantFlash: "не найден"},
		{name: "in use", article: "А112Т4", deleteErr: core.ErrProductInUse, wantFlash: "входит в заказы"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := newFakeBackend()
			backend.deleteErr = tt.deleteErr
			c := newTestServer(t, backend, nil)
			c.login("admin")

			resp, _ := c.postForm("/products/"+url.PathEscape(tt.article)+"/delete", nil)
			require.Equal(t, http.StatusSeeOther, resp.StatusCode)

			_, body := c.get("/products")
			assert.Contains(t, body, tt.wantFlash)
		})
	}
}

func TestSaveOrder(t *testing.T) {
	backend := newFakeBackend()
	c := newTestServer(t, backend, nil)
	c.login("admin")

	resp, _ := c.postForm("/orders", url.Values{
		"items":         {"А112Т4, 2, F635R4, 1"},
		"order_date":    {"2025-03-05"},
		"delivery_date": {"2025-03-11"},
		"client_name":   {"Иванов"},
		"user_id":       {"0"},
		"point_id":      {"1"},
		"status_id":     {"1"},
		"pickup_code":   {"901"},
	})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/orders", resp.Header.Get("Location"))

	require.NotNil(t, backend.savedOrder)
	assert.Equal(t, int32(0), backend.savedOrder.ID)
	assert.Equal(t, int32(0), backend.savedOrder.UserID)
	assert.Equal(t, int32(1), backend.savedOrder.PointID)
	assert.Equal(t, []core.LineItem{{Article: "А112Т4", Quantity: 2}, {Article: "F635R4", Quantity: 1}}, backend.savedItems)

	_, body := c.get("/orders")
	assert.Contains(t, body, "Заказ 1000 сохранен")
}

func TestAPI_KeyAuth(t *testing.T) {
	c := newTestServer(t, newFakeBackend(), map[string]string{
		"REQUIRE_API_KEY": "true",
		"API_KEYS":        "secret-key",
	})

	request := func(key string) *http.Response {
		req, err := http.NewRequest(http.MethodGet, c.base+"/api/stats", nil)
		require.NoError(t, err)
		if key != "" {
			req.Header.Set("X-API-Key", key)
		}
		resp, _ := c.do(req)
		return resp
	}

	assert.Equal(t, http.StatusUnauthorized, request("").StatusCode)
	assert.Equal(t, http.StatusForbidden, request("wrong").StatusCode)
	assert.Equal(t, http.StatusOK, request("secret-key").StatusCode)
}

func TestAPI_SessionRoles(t *testing.T) {
	c := newTestServer(t, newFakeBackend(), nil)

	resp, body := c.get("/api/products")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, body, "AUTH003")

	c.login("client")
	resp, body = c.get("/api/products")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var products []core.ProductView
	require.NoError(t, json.Unmarshal([]byte(body), &products))
	require.Len(t, products, 1)
	assert.Equal(t, "3992.00", products[0].FinalPrice.StringFixed(2))

	resp, _ = c.get("/api/entities")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestAPI_Import(t *testing.T) {
	backend := newFakeBackend()
	c := newTestServer(t, backend, map[string]string{"IMPORT_DIR": "/data/import"})
	c.login("admin")

	t.Run("run all", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodPost, c.base+"/api/import", nil)
		require.NoError(t, err)
		resp, body := c.do(req)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var report core.ImportReport
		require.NoError(t, json.Unmarshal([]byte(body), &report))
		assert.Equal(t, "/data/import", report.Dir)
	})

	upload := func(entity string) (*http.Response, string) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, err := mw.CreateFormFile("file", "user_import.csv")
		require.NoError(t, err)
		_, _ = fw.Write([]byte("login,password\nu1,p1\n"))
		require.NoError(t, mw.Close())

		req, err := http.NewRequest(http.MethodPost, c.base+"/api/import/"+entity, &buf)
		require.NoError(t, err)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		return c.do(req)
	}

	t.Run("upload", func(t *testing.T) {
		resp, body := upload("users")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, body, `"rowsInserted":1`)
		assert.Equal(t, "users", backend.uploaded.entity)
		assert.Equal(t, "user_import.csv", backend.uploaded.name)
		assert.Contains(t, backend.uploaded.body, "u1,p1")
	})

	t.Run("unknown entity", func(t *testing.T) {
		resp, body := upload("shoes")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Contains(t, body, "IMP004")
	})

	t.Run("missing file field", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodPost, c.base+"/api/import/users", strings.NewReader(""))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
		resp, body := c.do(req)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Contains(t, body, "VAL003")
	})

	t.Run("audit csv", func(t *testing.T) {
		resp, body := c.get("/api/audit-log?format=csv")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, resp.Header.Get("Content-Type"), "text/csv")
		assert.True(t, strings.HasPrefix(body, "ID,Timestamp,Action"))
		assert.Contains(t, body, "a1,")
	})
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&core.ValidationError{Field: "price", Reason: core.ReasonRequired}, http.StatusBadRequest},
		{core.ErrNotFound, http.StatusNotFound},
		{core.ErrUnknownEntity, http.StatusNotFound},
		{core.ErrProductInUse, http.StatusConflict},
		{core.ErrForbidden, http.StatusForbidden},
		{core.ErrInvalidCredentials, http.StatusUnauthorized},
		{core.ErrTooManyImports, http.StatusServiceUnavailable},
		{core.ErrFileTooLarge, http.StatusRequestEntityTooLarge},
		{core.ErrEmptyFile, http.StatusUnprocessableEntity},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestSafeNext(t *testing.T) {
	tests := map[string]string{
		"":                     "/products",
		"/orders":              "/orders",
		"//evil.example":       "/products",
		"/\\evil.example":      "/products",
		"https://evil.example": "/products",
	}
	for in, want := range tests {
		assert.Equal(t, want, safeNext(in), "safeNext(%q)", in)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := &rateLimiter{visitors: make(map[string]*visitor), rate: 2, window: time.Minute, now: time.Now}

	assert.True(t, rl.allow("10.0.0.1"))
	assert.True(t, rl.allow("10.0.0.1"))
	assert.False(t, rl.allow("10.0.0.1"))
	assert.True(t, rl.allow("10.0.0.2"), "limits are per address")

	later := time.Now().Add(2 * time.Minute)
	rl.now = func() time.Time { return later }
	assert.True(t, rl.allow("10.0.0.1"), "window resets")
}
