package core

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// OrderInput is an order as submitted by the admin form. ID 0 creates a new
// order numbered from the order sequence.
type OrderInput struct {
	ID           int32  `json:"id"`
	OrderDate    string `json:"orderDate"`
	DeliveryDate string `json:"deliveryDate"`
	PickupCode   string `json:"pickupCode"`
	ClientName   string `json:"clientName"`
	UserID       int32  `json:"userId,omitempty"`
	PointID      int32  `json:"pointId"`
	StatusID     int32  `json:"statusId"`
}

// OrderView is one order with its resolved names.
type OrderView struct {
	ID           int32      `json:"id"`
	OrderDate    time.Time  `json:"orderDate"`
	DeliveryDate time.Time  `json:"deliveryDate"`
	PickupCode   string     `json:"pickupCode"`
	ClientName   string     `json:"clientName"`
	UserID       int32      `json:"userId,omitempty"`
	UserName     string     `json:"userName,omitempty"`
	PointID      int32      `json:"pointId"`
	Address      string     `json:"address"`
	StatusID     int32      `json:"statusId"`
	Status       string     `json:"status"`
	Summary      string     `json:"summary"`
	Items        []LineItem `json:"items,omitempty"`
}

// FormatDate renders an order date as dd.mm.yyyy, or "" when unset.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("02.01.2006")
}

const orderSelect = `
	SELECT o.order_id, o.order_date, o.delivery_date, o.pickup_code, o.client_name,
	       COALESCE(o.user_id, 0), COALESCE(u.full_name, ''),
	       COALESCE(o.point_id, 0), COALESCE(pp.address, ''),
	       COALESCE(o.status_id, 0), COALESCE(st.status_name, ''),
	       COALESCE(string_agg(op.article || ' (' || op.quantity || ' шт.)', ', ' ORDER BY op.article), '')
	FROM shop_order o
	LEFT JOIN app_user u ON u.user_id = o.user_id
	LEFT JOIN pickup_point pp ON pp.point_id = o.point_id
	LEFT JOIN order_status st ON st.status_id = o.status_id
	LEFT JOIN order_product op ON op.order_id = o.order_id`

const orderGroupBy = " GROUP BY o.order_id, u.full_name, pp.address, st.status_name"

// ListOrders returns all orders, newest number first, with their line
// items summarised as "article (n шт.)".
func (s *Service) ListOrders(ctx context.Context) ([]OrderView, error) {
	rows, err := s.pool.Query(ctx, orderSelect+orderGroupBy+" ORDER BY o.order_id DESC")
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []OrderView
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// GetOrder returns one order with its line items, or ErrNotFound.
func (s *Service) GetOrder(ctx context.Context, id int32) (*OrderView, error) {
	o, err := scanOrder(s.pool.QueryRow(ctx, orderSelect+" WHERE o.order_id = $1"+orderGroupBy, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		"SELECT article, quantity FROM order_product WHERE order_id = $1 ORDER BY article", id)
	if err != nil {
		return nil, fmt.Errorf("get order %d items: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var it LineItem
		if err := rows.Scan(&it.Article, &it.Quantity); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		o.Items = append(o.Items, it)
	}
	return &o, rows.Err()
}

func scanOrder(row pgx.Row) (OrderView, error) {
	var o OrderView
	var orderDate, deliveryDate pgtype.Date
	err := row.Scan(&o.ID, &orderDate, &deliveryDate, &o.PickupCode, &o.ClientName,
		&o.UserID, &o.UserName, &o.PointID, &o.Address, &o.StatusID, &o.Status, &o.Summary)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return o, err
		}
		return o, fmt.Errorf("scan order: %w", err)
	}
	if orderDate.Valid {
		o.OrderDate = orderDate.Time
	}
	if deliveryDate.Valid {
		o.DeliveryDate = deliveryDate.Time
	}
	return o, nil
}

// UpsertOrder validates and saves an order with its line items in one
// transaction. Existing items are replaced by items; repeated articles are
// merged. It returns the order number.
func (s *Service) UpsertOrder(ctx context.Context, in OrderInput, items []LineItem) (int32, error) {
	client, err := requireText("client", in.ClientName)
	if err != nil {
		return 0, err
	}
	orderDate, err := requireDate("order_date", in.OrderDate)
	if err != nil {
		return 0, err
	}
	deliveryDate, err := requireDate("delivery_date", in.DeliveryDate)
	if err != nil {
		return 0, err
	}
	if in.StatusID <= 0 {
		return 0, &ValidationError{Field: "status", Reason: ReasonRequired}
	}
	if in.PointID <= 0 {
		return 0, &ValidationError{Field: "point", Reason: ReasonRequired}
	}

	var clean []LineItem
	for _, it := range items {
		it.Article = strings.TrimSpace(it.Article)
		if it.Article == "" || it.Quantity <= 0 {
			continue
		}
		clean = append(clean, it)
	}
	clean = MergeLineItems(clean)
	if len(clean) == 0 {
		return 0, &ValidationError{Field: "items", Reason: ReasonNoItems}
	}

	id := in.ID
	created := false
	err = WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		if err := requireRow(ctx, tx, "status", "SELECT EXISTS (SELECT 1 FROM order_status WHERE status_id = $1)", in.StatusID); err != nil {
			return err
		}
		if err := requireRow(ctx, tx, "point", "SELECT EXISTS (SELECT 1 FROM pickup_point WHERE point_id = $1)", in.PointID); err != nil {
			return err
		}
		for _, it := range clean {
			if err := requireRow(ctx, tx, "items", "SELECT EXISTS (SELECT 1 FROM product WHERE article = $1)", it.Article); err != nil {
				return err
			}
		}

		args := []interface{}{orderDate, deliveryDate, strings.TrimSpace(in.PickupCode), client,
			ToPgInt4(in.UserID), in.PointID, in.StatusID}

		if id > 0 {
			tag, err := tx.Exec(ctx, `
				UPDATE shop_order
				SET order_date = $2, delivery_date = $3, pickup_code = $4, client_name = $5,
				    user_id = $6, point_id = $7, status_id = $8
				WHERE order_id = $1`, append([]interface{}{id}, args...)...)
			if err != nil {
				return fmt.Errorf("update order: %w", err)
			}
			if tag.RowsAffected() == 0 {
				if _, err := tx.Exec(ctx, `
					INSERT INTO shop_order (order_id, order_date, delivery_date, pickup_code, client_name, user_id, point_id, status_id)
					VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`, append([]interface{}{id}, args...)...); err != nil {
					return fmt.Errorf("insert order: %w", err)
				}
				if err := SyncOrderSequence(ctx, tx); err != nil {
					return err
				}
				created = true
			}
		} else {
			if err := tx.QueryRow(ctx, `
				INSERT INTO shop_order (order_date, delivery_date, pickup_code, client_name, user_id, point_id, status_id)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
				RETURNING order_id`, args...).Scan(&id); err != nil {
				return fmt.Errorf("insert order: %w", err)
			}
			created = true
		}

		return ReplaceOrderItems(ctx, tx, id, clean)
	})
	if err != nil {
		return 0, fmt.Errorf("save order: %w", err)
	}

	action := ActionOrderUpdate
	if created {
		action = ActionOrderCreate
	}
	s.recordAudit(ctx, AuditLogParams{
		Action:       action,
		Entity:       EntityOrders,
		EntityKey:    strconv.Itoa(int(id)),
		Detail:       FormatLineItems(clean),
		RowsAffected: 1,
	})
	return id, nil
}

// DeleteOrder removes an order; its line items go with it.
func (s *Service) DeleteOrder(ctx context.Context, id int32) (bool, error) {
	tag, err := s.pool.Exec(ctx, "DELETE FROM shop_order WHERE order_id = $1", id)
	if err != nil {
		return false, fmt.Errorf("delete order %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	s.recordAudit(ctx, AuditLogParams{
		Action:       ActionOrderDelete,
		Entity:       EntityOrders,
		EntityKey:    strconv.Itoa(int(id)),
		RowsAffected: 1,
	})
	return true, nil
}

// ReplaceOrderItems deletes the order's line items and inserts items.
func ReplaceOrderItems(ctx context.Context, db DBTX, orderID int32, items []LineItem) error {
	if _, err := db.Exec(ctx, "DELETE FROM order_product WHERE order_id = $1", orderID); err != nil {
		return fmt.Errorf("clear order %d items: %w", orderID, err)
	}
	for _, it := range items {
		if _, err := db.Exec(ctx,
			"INSERT INTO order_product (order_id, article, quantity) VALUES ($1, $2, $3)",
			orderID, it.Article, it.Quantity,
		); err != nil {
			return fmt.Errorf("insert order %d item %s: %w", orderID, it.Article, err)
		}
	}
	return nil
}

// ReserveOrderNumbers moves the order sequence past upTo, so generated
// numbers never take a number an import is still going to insert.
func ReserveOrderNumbers(ctx context.Context, db DBTX, upTo int32) error {
	_, err := db.Exec(ctx, `
		SELECT setval('shop_order_id_seq', GREATEST((SELECT max(order_id) FROM shop_order), $1::int, 999))`, upTo)
	if err != nil {
		return fmt.Errorf("reserve order numbers: %w", err)
	}
	return nil
}

// SyncOrderSequence moves the order sequence past explicitly numbered orders.
func SyncOrderSequence(ctx context.Context, db DBTX) error {
	_, err := db.Exec(ctx, `
		SELECT setval('shop_order_id_seq', GREATEST((SELECT max(order_id) FROM shop_order), 999))`)
	if err != nil {
		return fmt.Errorf("sync order sequence: %w", err)
	}
	return nil
}

func requireDate(field, s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, &ValidationError{Field: field, Reason: ReasonRequired}
	}
	t, ok := ParseDate(s)
	if !ok {
		return time.Time{}, &ValidationError{Field: field, Value: s, Reason: ReasonInvalidDate}
	}
	return t, nil
}

// requireRow fails with ReasonUnknown when the EXISTS query is false.
func requireRow(ctx context.Context, db DBTX, field, query string, arg interface{}) error {
	var ok bool
	if err := db.QueryRow(ctx, query, arg).Scan(&ok); err != nil {
		return fmt.Errorf("check %s: %w", field, err)
	}
	if !ok {
		return &ValidationError{Field: field, Value: fmt.Sprint(arg), Reason: ReasonUnknown}
	}
	return nil
}
