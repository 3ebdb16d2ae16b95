package tables

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/shoestore/internal/core"
	"github.com/jackc/pgx/v5"
)

func init() {
	core.Register(core.ImportDefinition{
		Info: core.EntityInfo{
			Key:   core.EntityOrders,
			Label: "Orders",
			Order: orderOrders,
		},
		FieldSpecs: []core.FieldSpec{
			{Name: "number", Synonyms: []string{"Номер заказа", "Номер", "OrderID"}, Type: core.CellInteger},
			{Name: "items", Synonyms: []string{"Артикул заказа", "Состав заказа", "Items"}, Type: core.CellText, Required: true},
			{Name: "order_date", Synonyms: []string{"Дата заказа", "OrderDate"}, Type: core.CellDate, Required: true},
			{Name: "delivery_date", Synonyms: []string{"Дата доставки", "DeliveryDate"}, Type: core.CellDate},
			{Name: "point", Synonyms: []string{"Адрес пункта выдачи", "Пункт выдачи", "PointID"}, Type: core.CellInteger, Required: true},
			{Name: "client", Synonyms: []string{"ФИО авторизированного клиента", "ФИО клиента", "Клиент", "Client"}, Type: core.CellText},
			{Name: "pickup_code", Synonyms: []string{"Код для получения", "Код", "PickupCode"}, Type: core.CellText},
			{Name: "status", Synonyms: []string{"Статус заказа", "Статус", "Status"}, Type: core.CellIdentifier, Required: true},
		},
		Import: importOrders,
	})
}

// orderLookups holds what order rows are resolved against.
type orderLookups struct {
	statuses *core.ReferenceCache
	points   *core.ReferenceCache
	users    map[string]int32 // full name -> first user id
	articles map[string]bool
}

// importOrders creates the statuses named in the file, then inserts orders
// with their line items. Pickup points are referenced by id and must
// already exist; clients are matched to users by full name. Unnumbered
// orders are numbered above every number in the file.
func importOrders(ctx context.Context, ic *core.ImportContext) error {
	lk := &orderLookups{
		statuses: core.NewReferenceCache(core.RefStatus),
		points:   core.NewReferenceCache(core.RefPickupPoint),
	}
	if err := createReferences(ctx, ic, []refField{{field: "status", cache: lk.statuses}}); err != nil {
		return err
	}
	if err := lk.load(ctx, ic.DB); err != nil {
		return err
	}

	if err := core.WithTx(ctx, ic.DB, func(tx pgx.Tx) error {
		return core.ReserveOrderNumbers(ctx, tx, maxOrderNumber(ic))
	}); err != nil {
		return err
	}

	replace := ic.Options.ConflictFor(core.EntityOrders) == core.ConflictReplace

	err := core.InsertRows(ctx, ic, func(ctx context.Context, tx pgx.Tx, i int) (core.RowOutcome, error) {
		return importOrderRow(ctx, tx, ic, lk, i, replace)
	})
	if err != nil {
		return err
	}

	return core.WithTx(ctx, ic.DB, func(tx pgx.Tx) error {
		return core.SyncOrderSequence(ctx, tx)
	})
}

func importOrderRow(ctx context.Context, tx pgx.Tx, ic *core.ImportContext, lk *orderLookups, i int, replace bool) (core.RowOutcome, error) {
	line := ic.Line(i)

	statusID, ok, err := lk.statuses.Lookup(ctx, tx, ic.Text(i, "status"))
	if err != nil {
		return core.RowSkipped, err
	}
	if !ok {
		return core.RowSkipped, core.SkipRow("status", core.ReasonRequired)
	}

	point, issue := ic.Value(i, "point", core.CellInteger)
	if issue != nil {
		return core.RowSkipped, core.SkipRow("point", core.ReasonInvalidInteger)
	}
	if !point.Valid {
		return core.RowSkipped, core.SkipRow("point", core.ReasonRequired)
	}
	pointID, ok := toInt32(point.Int)
	if !ok || !lk.points.Has(pointID) {
		return core.RowSkipped, core.SkipRow("point", core.ErrUnresolvedReference.Error())
	}

	var number int32
	if v, issue := ic.Value(i, "number", core.CellInteger); issue != nil {
		return core.RowSkipped, core.SkipRow("number", core.ReasonInvalidInteger)
	} else if v.Valid {
		if number, ok = toInt32(v.Int); !ok || number <= 0 {
			return core.RowSkipped, core.SkipRow("number", core.ReasonInvalidInteger)
		}
	}

	orderDate := dateField(ic, i, "order_date")
	deliveryDate := dateField(ic, i, "delivery_date")

	client := ic.Text(i, "client")
	userID := lk.users[client]
	if client != "" && userID == 0 {
		ic.Result.Note(line, "client", "no user with this full name, order stored without user")
	}

	items := core.MergeLineItems(core.ParseLineItems(ic.Columns.Cell(ic.Table, i, "items")))
	if len(items) == 0 {
		ic.Result.Note(line, "items", "no valid line items")
	}
	for _, it := range items {
		if !lk.articles[it.Article] {
			ic.Result.Note(line, "items", "unknown article "+it.Article)
		}
	}

	args := []interface{}{orderDate, deliveryDate, ic.Text(i, "pickup_code"), client,
		core.ToPgInt4(userID), pointID, statusID}

	var query string
	switch {
	case number == 0:
		query = `
			INSERT INTO shop_order (order_date, delivery_date, pickup_code, client_name, user_id, point_id, status_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING order_id`
	case replace:
		args = append([]interface{}{number}, args...)
		query = `
			INSERT INTO shop_order (order_id, order_date, delivery_date, pickup_code, client_name, user_id, point_id, status_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (order_id) DO UPDATE SET
				order_date = EXCLUDED.order_date,
				delivery_date = EXCLUDED.delivery_date,
				pickup_code = EXCLUDED.pickup_code,
				client_name = EXCLUDED.client_name,
				user_id = EXCLUDED.user_id,
				point_id = EXCLUDED.point_id,
				status_id = EXCLUDED.status_id
			RETURNING order_id`
	default:
		args = append([]interface{}{number}, args...)
		query = `
			INSERT INTO shop_order (order_id, order_date, delivery_date, pickup_code, client_name, user_id, point_id, status_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (order_id) DO NOTHING
			RETURNING order_id`
	}

	var orderID int32
	if err := tx.QueryRow(ctx, query, args...).Scan(&orderID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return core.RowDuplicate, nil
		}
		return core.RowSkipped, fmt.Errorf("insert order: %w", err)
	}

	if err := core.ReplaceOrderItems(ctx, tx, orderID, items); err != nil {
		return core.RowSkipped, err
	}
	return core.RowInserted, nil
}

// maxOrderNumber returns the largest valid order number in the file, 0 when
// no row carries one. Rows without a number draw from the sequence, which
// must start above it.
func maxOrderNumber(ic *core.ImportContext) int32 {
	var max int32
	for i := 0; i < ic.Table.Len(); i++ {
		v, issue := ic.Value(i, "number", core.CellInteger)
		if issue != nil || !v.Valid {
			continue
		}
		if n, ok := toInt32(v.Int); ok && n > max {
			max = n
		}
	}
	return max
}

// dateField parses a date cell. Unparsable dates are stored as NULL with a
// diagnostic.
func dateField(ic *core.ImportContext, i int, field string) interface{} {
	v, issue := ic.Value(i, field, core.CellDate)
	if issue != nil {
		ic.Result.Note(ic.Line(i), field, issue.Error()+", stored as empty")
	}
	return core.ToPgDate(v)
}

// load reads pickup points, users and product articles.
func (lk *orderLookups) load(ctx context.Context, db core.TxBeginner) error {
	return core.WithTx(ctx, db, func(tx pgx.Tx) error {
		if err := lk.points.Preload(ctx, tx); err != nil {
			return err
		}

		lk.users = make(map[string]int32)
		rows, err := tx.Query(ctx, "SELECT user_id, full_name FROM app_user ORDER BY user_id")
		if err != nil {
			return fmt.Errorf("load users: %w", err)
		}
		for rows.Next() {
			var id int32
			var name string
			if err := rows.Scan(&id, &name); err != nil {
				rows.Close()
				return fmt.Errorf("scan user: %w", err)
			}
			name = strings.TrimSpace(name)
			if _, seen := lk.users[name]; !seen {
				lk.users[name] = id
			}
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("load users: %w", err)
		}

		lk.articles = make(map[string]bool)
		rows, err = tx.Query(ctx, "SELECT article FROM product")
		if err != nil {
			return fmt.Errorf("load articles: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var article string
			if err := rows.Scan(&article); err != nil {
				return fmt.Errorf("scan article: %w", err)
			}
			lk.articles[article] = true
		}
		return rows.Err()
	})
}
