package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

var (
	// ErrNotFound is returned when a product or order does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrProductInUse is returned when deleting a product that orders reference.
	ErrProductInUse = errors.New("product is referenced by orders")
)

// DefaultUnit is the unit stored when none is given.
const DefaultUnit = "шт."

// ProductInput is a product as submitted by the admin form. Numeric fields
// stay strings until validated.
type ProductInput struct {
	Article      string `json:"article"`
	Name         string `json:"name"`
	Unit         string `json:"unit"`
	Price        string `json:"price"`
	Discount     string `json:"discount"`
	Quantity     string `json:"quantity"`
	Description  string `json:"description"`
	Photo        string `json:"photo"`
	Category     string `json:"category"`
	Supplier     string `json:"supplier"`
	Manufacturer string `json:"manufacturer"`
}

// UpsertProduct validates in and inserts or updates the product with its
// article. Category, supplier and manufacturer are created when new.
func (s *Service) UpsertProduct(ctx context.Context, in ProductInput) error {
	article, err := requireText("article", in.Article)
	if err != nil {
		return err
	}
	name, err := requireText("name", in.Name)
	if err != nil {
		return err
	}
	category, err := requireText("category", in.Category)
	if err != nil {
		return err
	}
	supplier, err := requireText("supplier", in.Supplier)
	if err != nil {
		return err
	}
	manufacturer, err := requireText("manufacturer", in.Manufacturer)
	if err != nil {
		return err
	}
	price, err := requirePrice("price", in.Price)
	if err != nil {
		return err
	}
	discount, err := optionalInt("discount", in.Discount, true)
	if err != nil {
		return err
	}
	quantity, err := optionalInt("quantity", in.Quantity, false)
	if err != nil {
		return err
	}
	unit := strings.TrimSpace(in.Unit)
	if unit == "" {
		unit = DefaultUnit
	}

	var inserted bool
	err = WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		refs := []struct {
			ref  RefTable
			name string
		}{
			{RefCategory, category},
			{RefSupplier, supplier},
			{RefManufacturer, manufacturer},
		}
		ids := make([]int32, len(refs))
		for i, r := range refs {
			id, ok, err := NewReferenceCache(r.ref).ResolveOrCreate(ctx, tx, r.name)
			if err != nil {
				return err
			}
			if !ok {
				return &ValidationError{Field: r.ref.String(), Value: r.name, Reason: ReasonRequired}
			}
			ids[i] = id
		}

		const query = `
			INSERT INTO product (article, name, unit, price, discount, quantity, description, photo,
			                     category_id, supplier_id, manufacturer_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (article) DO UPDATE SET
				name = EXCLUDED.name,
				unit = EXCLUDED.unit,
				price = EXCLUDED.price,
				discount = EXCLUDED.discount,
				quantity = EXCLUDED.quantity,
				description = EXCLUDED.description,
				photo = EXCLUDED.photo,
				category_id = EXCLUDED.category_id,
				supplier_id = EXCLUDED.supplier_id,
				manufacturer_id = EXCLUDED.manufacturer_id
			RETURNING (xmax = 0)`

		return tx.QueryRow(ctx, query,
			article, name, unit, ToPgNumeric(price), discount, quantity,
			strings.TrimSpace(in.Description), strings.TrimSpace(in.Photo),
			ids[0], ids[1], ids[2],
		).Scan(&inserted)
	})
	if err != nil {
		return fmt.Errorf("save product %s: %w", article, err)
	}

	action := ActionProductUpdate
	if inserted {
		action = ActionProductCreate
	}
	s.recordAudit(ctx, AuditLogParams{
		Action:       action,
		Entity:       EntityProducts,
		EntityKey:    article,
		Detail:       name,
		RowsAffected: 1,
	})
	return nil
}

// DeleteProduct removes a product. It reports false when the article does
// not exist and ErrProductInUse when orders reference it.
func (s *Service) DeleteProduct(ctx context.Context, article string) (bool, error) {
	article = strings.TrimSpace(article)
	if article == "" {
		return false, &ValidationError{Field: "article", Reason: ReasonRequired}
	}

	var inUse bool
	if err := s.pool.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM order_product WHERE article = $1)", article,
	).Scan(&inUse); err != nil {
		return false, fmt.Errorf("check product %s usage: %w", article, err)
	}
	if inUse {
		return false, fmt.Errorf("delete product %s: %w", article, ErrProductInUse)
	}

	tag, err := s.pool.Exec(ctx, "DELETE FROM product WHERE article = $1", article)
	if err != nil {
		return false, fmt.Errorf("delete product %s: %w", article, err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	s.recordAudit(ctx, AuditLogParams{
		Action:       ActionProductDelete,
		Entity:       EntityProducts,
		EntityKey:    article,
		RowsAffected: 1,
	})
	return true, nil
}
