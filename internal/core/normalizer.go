package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
)

// ErrUnresolvedReference is returned when a reference value is absent or
// cannot be created.
var ErrUnresolvedReference = errors.New("unresolved reference")

// RefTable identifies one lookup table. The set is closed; table and column
// identifiers come from refTables, never from input.
type RefTable int

const (
	RefCategory RefTable = iota
	RefSupplier
	RefManufacturer
	RefRole
	RefStatus
	RefPickupPoint
)

type refTableInfo struct {
	label  string
	table  string
	idCol  string
	keyCol string
}

var refTables = map[RefTable]refTableInfo{
	RefCategory:     {label: "category", table: "category", idCol: "category_id", keyCol: "category_name"},
	RefSupplier:     {label: "supplier", table: "supplier", idCol: "supplier_id", keyCol: "supplier_name"},
	RefManufacturer: {label: "manufacturer", table: "manufacturer", idCol: "manufacturer_id", keyCol: "manufacturer_name"},
	RefRole:         {label: "role", table: "role", idCol: "role_id", keyCol: "role_name"},
	RefStatus:       {label: "status", table: "order_status", idCol: "status_id", keyCol: "status_name"},
	RefPickupPoint:  {label: "pickup point", table: "pickup_point", idCol: "point_id", keyCol: "address"},
}

func (r RefTable) String() string {
	return refTables[r].label
}

// missingTokens are textual stand-ins for "no value" left behind by
// spreadsheet tools and dataframe exports.
var missingTokens = map[string]struct{}{
	"nan":  {},
	"none": {},
	"null": {},
	"#n/a": {},
	"nat":  {},
}

// IsMissing reports whether a trimmed cell carries no value.
func IsMissing(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return true
	}
	_, ok := missingTokens[strings.ToLower(s)]
	return ok
}

// ReferenceCache deduplicates the values of one lookup table and maps
// display names to ids. It is scoped to one import run.
type ReferenceCache struct {
	ref     refTableInfo
	mu      sync.Mutex
	ids     map[string]int32
	created int
}

// NewReferenceCache returns an empty cache for ref.
func NewReferenceCache(ref RefTable) *ReferenceCache {
	info, ok := refTables[ref]
	if !ok {
		panic(fmt.Sprintf("unknown reference table %d", ref))
	}
	return &ReferenceCache{ref: info, ids: make(map[string]int32)}
}

// ResolveOrCreate returns the id for name, inserting it when it does not
// exist yet. ok is false for empty or missing values.
func (c *ReferenceCache) ResolveOrCreate(ctx context.Context, db DBTX, name string) (int32, bool, error) {
	name = strings.TrimSpace(name)
	if IsMissing(name) {
		return 0, false, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if id, ok := c.ids[name]; ok {
		return id, true, nil
	}

	insert := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES ($1) ON CONFLICT (%s) DO NOTHING",
		c.ref.table, c.ref.keyCol, c.ref.keyCol,
	)
	tag, err := db.Exec(ctx, insert, name)
	if err != nil {
		return 0, false, fmt.Errorf("insert %s %q: %w", c.ref.label, name, err)
	}
	if tag.RowsAffected() > 0 {
		c.created++
	}

	id, err := c.selectID(ctx, db, name)
	if err != nil {
		return 0, false, err
	}
	c.ids[name] = id
	return id, true, nil
}

// Lookup returns the id for name without creating it. Only existing rows
// and cached values are considered.
func (c *ReferenceCache) Lookup(ctx context.Context, db DBTX, name string) (int32, bool, error) {
	name = strings.TrimSpace(name)
	if IsMissing(name) {
		return 0, false, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if id, ok := c.ids[name]; ok {
		return id, true, nil
	}

	id, err := c.selectID(ctx, db, name)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	c.ids[name] = id
	return id, true, nil
}

// Preload warms the cache with every existing row.
func (c *ReferenceCache) Preload(ctx context.Context, db DBTX) error {
	query := fmt.Sprintf("SELECT %s, %s FROM %s", c.ref.idCol, c.ref.keyCol, c.ref.table)
	rows, err := db.Query(ctx, query)
	if err != nil {
		return fmt.Errorf("preload %s: %w", c.ref.label, err)
	}
	defer rows.Close()

	c.mu.Lock()
	defer c.mu.Unlock()

	for rows.Next() {
		var id int32
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return fmt.Errorf("scan %s: %w", c.ref.label, err)
		}
		c.ids[name] = id
	}
	return rows.Err()
}

// Has reports whether id belongs to a cached value.
func (c *ReferenceCache) Has(id int32) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, v := range c.ids {
		if v == id {
			return true
		}
	}
	return false
}

// Len returns the number of cached names.
func (c *ReferenceCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.ids)
}

// Created returns how many rows this cache inserted.
func (c *ReferenceCache) Created() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.created
}

func (c *ReferenceCache) selectID(ctx context.Context, db DBTX, name string) (int32, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1", c.ref.idCol, c.ref.table, c.ref.keyCol)
	var id int32
	if err := db.QueryRow(ctx, query, name).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, err
		}
		return 0, fmt.Errorf("select %s %q: %w", c.ref.label, name, err)
	}
	return id, nil
}
