package tables

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/shoestore/internal/core"
	"github.com/jackc/pgx/v5"
)

// pointColumns is how many leading columns may hold an address.
const pointColumns = 3

func init() {
	core.Register(core.ImportDefinition{
		Info: core.EntityInfo{
			Key:        core.EntityPoints,
			Label:      "Pickup points",
			Order:      orderPoints,
			Headerless: true,
		},
		Import: importPoints,
	})
}

// address is one accepted pickup point cell.
type address struct {
	Row   int
	Value string
}

// extractAddresses returns the accepted cells of the first pointColumns
// columns, column by column. The order decides the point ids.
func extractAddresses(t *core.SourceTable) []address {
	cols := t.Width()
	if cols > pointColumns {
		cols = pointColumns
	}

	var out []address
	for c := 0; c < cols; c++ {
		for r := 0; r < t.Len(); r++ {
			if v, ok := cleanAddress(t.Cell(r, c)); ok {
				out = append(out, address{Row: r, Value: v})
			}
		}
	}
	return out
}

// importPoints inserts every address not stored yet. A row counts as
// inserted when at least one of its cells created a point.
func importPoints(ctx context.Context, ic *core.ImportContext) error {
	addresses := extractAddresses(ic.Table)
	hasAddress := make(map[int]bool, len(addresses))
	for _, a := range addresses {
		hasAddress[a.Row] = true
	}

	inserted := make(map[int]bool)
	failed := make(map[int]string)
	err := core.WithTx(ctx, ic.DB, func(tx pgx.Tx) error {
		for i, a := range addresses {
			if i%core.ContextCheckInterval == 0 && ctx.Err() != nil {
				return fmt.Errorf("import cancelled: %w", ctx.Err())
			}

			savepoint := fmt.Sprintf("sp_%d", i)
			if _, err := tx.Exec(ctx, "SAVEPOINT "+savepoint); err != nil {
				return fmt.Errorf("create savepoint: %w", err)
			}

			tag, err := tx.Exec(ctx,
				"INSERT INTO pickup_point (address) VALUES ($1) ON CONFLICT (address) DO NOTHING", a.Value)
			if err != nil {
				_, _ = tx.Exec(ctx, "ROLLBACK TO SAVEPOINT "+savepoint)
				failed[a.Row] = "insert failed: " + err.Error()
				continue
			}
			_, _ = tx.Exec(ctx, "RELEASE SAVEPOINT "+savepoint)

			if tag.RowsAffected() > 0 {
				inserted[a.Row] = true
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for r := 0; r < ic.Table.Len(); r++ {
		switch {
		case inserted[r]:
			ic.Result.RowsInserted++
		case failed[r] != "":
			ic.Result.Skip(ic.Line(r), "address", failed[r])
		case hasAddress[r]:
			ic.Result.Duplicates++
		default:
			ic.Result.Skip(ic.Line(r), "address", "no address in row")
		}
	}
	return nil
}
