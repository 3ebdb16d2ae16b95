package tables

import (
	"context"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/JonMunkholm/shoestore/internal/core"
	"github.com/jackc/pgx/v5"
)

// minAddressLength is the shortest accepted pickup point address, in runes.
const minAddressLength = 4

// cleanAddress trims a pickup point cell and strips surrounding quotes.
// It reports false for missing values and fragments too short to be an
// address.
func cleanAddress(s string) (string, bool) {
	s = strings.Trim(strings.TrimSpace(s), `"' `)
	s = strings.TrimSpace(s)
	if core.IsMissing(s) || utf8.RuneCountInString(s) < minAddressLength {
		return "", false
	}
	return s, true
}

// toInt32 narrows an integer cell, reporting false when it does not fit.
func toInt32(n int64) (int32, bool) {
	if n > math.MaxInt32 || n < math.MinInt32 {
		return 0, false
	}
	return int32(n), true
}

// refField binds an identifier field to the cache of its lookup table.
type refField struct {
	field string
	cache *core.ReferenceCache
}

// createReferences inserts the distinct values of each identifier field
// into its lookup table and commits them before any row is imported.
func createReferences(ctx context.Context, ic *core.ImportContext, refs []refField) error {
	err := core.WithTx(ctx, ic.DB, func(tx pgx.Tx) error {
		for i := 0; i < ic.Table.Len(); i++ {
			if i%core.ContextCheckInterval == 0 && ctx.Err() != nil {
				return fmt.Errorf("import cancelled: %w", ctx.Err())
			}
			for _, r := range refs {
				if _, _, err := r.cache.ResolveOrCreate(ctx, tx, ic.Text(i, r.field)); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("create references: %w", err)
	}

	for _, r := range refs {
		if n := r.cache.Created(); n > 0 {
			ic.Log.Info("references created", "field", r.field, "count", n)
		}
	}
	return nil
}
