package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// HighDiscountThreshold is the discount percentage above which a product is
// highlighted and matched by the "high" discount filter.
const HighDiscountThreshold = 15

// DiscountFilter narrows the catalog by discount.
type DiscountFilter string

const (
	DiscountAny     DiscountFilter = ""
	DiscountHigh    DiscountFilter = "high"    // discount > 15
	DiscountPresent DiscountFilter = "present" // discount > 0
)

// ProductSort is a catalog ordering.
type ProductSort string

const (
	SortName         ProductSort = "name"
	SortPriceAsc     ProductSort = "price_asc"
	SortPriceDesc    ProductSort = "price_desc"
	SortDiscountDesc ProductSort = "discount_desc"
	SortDiscountAsc  ProductSort = "discount_asc"
)

var productOrderBy = map[ProductSort]string{
	SortName:         "lower(p.name) ASC",
	SortPriceAsc:     "p.price ASC",
	SortPriceDesc:    "p.price DESC",
	SortDiscountDesc: "p.discount DESC",
	SortDiscountAsc:  "p.discount ASC",
}

// ProductSorts lists the accepted sort keys in display order.
var ProductSorts = []ProductSort{SortName, SortPriceAsc, SortPriceDesc, SortDiscountDesc, SortDiscountAsc}

// ProductFilter describes a catalog query. Search, Category and Supplier
// only apply to staff roles.
type ProductFilter struct {
	Role     Role
	Search   string
	Category string
	Supplier string
	Discount DiscountFilter
	Sort     ProductSort
}

// ProductView is one catalog entry.
type ProductView struct {
	Article      string          `json:"article"`
	Name         string          `json:"name"`
	Unit         string          `json:"unit"`
	Price        decimal.Decimal `json:"price"`
	Discount     int32           `json:"discount"`
	Quantity     int32           `json:"quantity"`
	Description  string          `json:"description"`
	Photo        string          `json:"photo"`
	Category     string          `json:"category"`
	Supplier     string          `json:"supplier"`
	Manufacturer string          `json:"manufacturer"`
	FinalPrice   decimal.Decimal `json:"finalPrice"`
	HighDiscount bool            `json:"highDiscount"`
}

// InStock reports whether any units are on hand.
func (p ProductView) InStock() bool {
	return p.Quantity > 0
}

// HasDiscount reports whether the final price differs from the list price.
func (p ProductView) HasDiscount() bool {
	return p.Discount > 0
}

// FinalPrice applies a percentage discount and rounds to kopecks.
// Discounts outside 0..100 are clamped.
func FinalPrice(price decimal.Decimal, discount int32) decimal.Decimal {
	if discount <= 0 {
		return price.Round(2)
	}
	if discount > 100 {
		discount = 100
	}
	factor := decimal.NewFromInt(int64(100 - discount)).Div(decimal.NewFromInt(100))
	return price.Mul(factor).Round(2)
}

const productSelect = `
	SELECT p.article, p.name, p.unit, p.price::text, p.discount, p.quantity,
	       p.description, p.photo, c.category_name, s.supplier_name, m.manufacturer_name
	FROM product p
	JOIN category c ON c.category_id = p.category_id
	JOIN supplier s ON s.supplier_id = p.supplier_id
	JOIN manufacturer m ON m.manufacturer_id = p.manufacturer_id`

// buildProductQuery returns the catalog SQL and its arguments.
func buildProductQuery(f ProductFilter) (string, []interface{}) {
	wb := NewWhereBuilder()

	if !f.Role.IsStaff() {
		wb.AddRaw("p.quantity > 0")
	}

	if f.Role.CanFilter() {
		wb.AddSearch(f.Search, "p.name", "p.description")
		wb.Add("c.category_name", strings.TrimSpace(f.Category))
		wb.Add("s.supplier_name", strings.TrimSpace(f.Supplier))
	}

	switch f.Discount {
	case DiscountHigh:
		wb.AddExpr("p.discount > ?", HighDiscountThreshold)
	case DiscountPresent:
		wb.AddRaw("p.discount > 0")
	}

	orderBy, ok := productOrderBy[f.Sort]
	if !ok {
		orderBy = productOrderBy[SortName]
	}

	where, args := wb.Build()
	return productSelect + where + " ORDER BY " + orderBy + ", p.article", args
}

// ListProducts returns the catalog visible to f.Role.
func (s *Service) ListProducts(ctx context.Context, f ProductFilter) ([]ProductView, error) {
	query, args := buildProductQuery(f)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []ProductView
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

// GetProduct returns one product or ErrNotFound.
func (s *Service) GetProduct(ctx context.Context, article string) (*ProductView, error) {
	row := s.pool.QueryRow(ctx, productSelect+" WHERE p.article = $1", strings.TrimSpace(article))
	p, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func scanProduct(row pgx.Row) (ProductView, error) {
	var p ProductView
	var price string
	err := row.Scan(&p.Article, &p.Name, &p.Unit, &price, &p.Discount, &p.Quantity,
		&p.Description, &p.Photo, &p.Category, &p.Supplier, &p.Manufacturer)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return p, err
		}
		return p, fmt.Errorf("scan product: %w", err)
	}

	p.Price, err = decimal.NewFromString(price)
	if err != nil {
		return p, fmt.Errorf("parse price %q of %s: %w", price, p.Article, err)
	}
	p.FinalPrice = FinalPrice(p.Price, p.Discount)
	p.HighDiscount = p.Discount > HighDiscountThreshold
	return p, nil
}

// RefItem is one row of a lookup table.
type RefItem struct {
	ID   int32  `json:"id"`
	Name string `json:"name"`
}

// ListCategories returns all categories by name.
func (s *Service) ListCategories(ctx context.Context) ([]RefItem, error) {
	return s.listRefs(ctx, RefCategory)
}

// ListSuppliers returns all suppliers by name.
func (s *Service) ListSuppliers(ctx context.Context) ([]RefItem, error) {
	return s.listRefs(ctx, RefSupplier)
}

// ListManufacturers returns all manufacturers by name.
func (s *Service) ListManufacturers(ctx context.Context) ([]RefItem, error) {
	return s.listRefs(ctx, RefManufacturer)
}

// ListStatuses returns order statuses in id order.
func (s *Service) ListStatuses(ctx context.Context) ([]RefItem, error) {
	return s.listRefs(ctx, RefStatus)
}

// ListPickupPoints returns pickup points in id order.
func (s *Service) ListPickupPoints(ctx context.Context) ([]RefItem, error) {
	return s.listRefs(ctx, RefPickupPoint)
}

func (s *Service) listRefs(ctx context.Context, ref RefTable) ([]RefItem, error) {
	info := refTables[ref]
	order := info.keyCol
	if ref == RefStatus || ref == RefPickupPoint {
		order = info.idCol
	}

	query := fmt.Sprintf("SELECT %s, %s FROM %s ORDER BY %s", info.idCol, info.keyCol, info.table, order)
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", info.label, err)
	}
	defer rows.Close()

	var items []RefItem
	for rows.Next() {
		var it RefItem
		if err := rows.Scan(&it.ID, &it.Name); err != nil {
			return nil, fmt.Errorf("scan %s: %w", info.label, err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// ListClients returns users that orders can be assigned to, by full name.
func (s *Service) ListClients(ctx context.Context) ([]RefItem, error) {
	rows, err := s.pool.Query(ctx, "SELECT user_id, full_name FROM app_user ORDER BY full_name, user_id")
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()

	var items []RefItem
	for rows.Next() {
		var it RefItem
		if err := rows.Scan(&it.ID, &it.Name); err != nil {
			return nil, fmt.Errorf("scan client: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
