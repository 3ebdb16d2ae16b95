package core

import (
	"context"
	"fmt"
	"time"

	"github.com/JonMunkholm/shoestore/internal/config"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Entity keys, in pipeline order.
const (
	EntityUsers    = "users"
	EntityPoints   = "points"
	EntityProducts = "products"
	EntityOrders   = "orders"
)

// DataTables lists every table holding shop data, parents first.
var DataTables = []string{
	"role",
	"app_user",
	"category",
	"supplier",
	"manufacturer",
	"product",
	"pickup_point",
	"order_status",
	"shop_order",
	"order_product",
}

// Options configures a Service.
type Options struct {
	// Dir is the default import directory.
	Dir string

	// Files maps an entity key to its source file name.
	Files map[string]string

	MaxFileSize   int64
	ImportTimeout time.Duration
	MaxWait       time.Duration

	Synonyms Synonyms
	Import   ImportOptions
}

// Service provides the import pipeline and the back-office operations.
type Service struct {
	pool    *pgxpool.Pool
	opts    Options
	limiter *ImportLimiter
}

// NewService creates a new Service instance.
func NewService(pool *pgxpool.Pool, opts Options) *Service {
	if opts.Dir == "" {
		opts.Dir = "."
	}
	if opts.MaxWait <= 0 {
		opts.MaxWait = DefaultMaxWaitTime
	}

	return &Service{
		pool:    pool,
		opts:    opts,
		limiter: NewImportLimiter(DefaultMaxConcurrentImports, opts.MaxWait),
	}
}

// NewServiceFromConfig builds a Service from the loaded configuration.
func NewServiceFromConfig(pool *pgxpool.Pool, cfg *config.Config) (*Service, error) {
	productConflict, err := ParseConflictPolicy(cfg.Import.ProductConflict)
	if err != nil {
		return nil, fmt.Errorf("IMPORT_PRODUCT_CONFLICT: %w", err)
	}
	orderConflict, err := ParseConflictPolicy(cfg.Import.OrderConflict)
	if err != nil {
		return nil, fmt.Errorf("IMPORT_ORDER_CONFLICT: %w", err)
	}
	coercion, err := ParseCoercionPolicy(cfg.Import.NumericPolicy)
	if err != nil {
		return nil, fmt.Errorf("IMPORT_NUMERIC_POLICY: %w", err)
	}

	var synonyms Synonyms
	if cfg.Import.SynonymsFile != "" {
		synonyms, err = LoadSynonyms(cfg.Import.SynonymsFile)
		if err != nil {
			return nil, err
		}
	}

	opts := Options{
		Dir: cfg.Import.Dir,
		Files: map[string]string{
			EntityUsers:    cfg.Import.UsersFile,
			EntityPoints:   cfg.Import.PointsFile,
			EntityProducts: cfg.Import.ProductsFile,
			EntityOrders:   cfg.Import.OrdersFile,
		},
		MaxFileSize:   cfg.Import.MaxFileSize,
		ImportTimeout: cfg.Import.Timeout,
		MaxWait:       cfg.Import.MaxWaitTime,
		Synonyms:      synonyms,
		Import: ImportOptions{
			Conflict: map[string]ConflictPolicy{
				EntityProducts: productConflict,
				EntityOrders:   orderConflict,
			},
			Coercion: coercion,
		},
	}
	if cfg.Security.HashPasswords {
		opts.Import.HashPassword = NewPasswordHasher(cfg.Security.BcryptCost)
	}

	return NewService(pool, opts), nil
}

// Limiter exposes the import slot so callers can wait for a running
// import during shutdown.
func (s *Service) Limiter() *ImportLimiter {
	return s.limiter
}

// ImportDir returns the default import directory.
func (s *Service) ImportDir() string {
	return s.opts.Dir
}

// ListEntities returns the registered import entities in pipeline order.
func (s *Service) ListEntities() []EntityInfo {
	defs := All()
	infos := make([]EntityInfo, len(defs))
	for i, def := range defs {
		infos[i] = def.Info
	}
	return infos
}

// TableCount is the row count of one table.
type TableCount struct {
	Table string `json:"table"`
	Rows  int64  `json:"rows"`
}

// Stats returns row counts for every data table.
func (s *Service) Stats(ctx context.Context) ([]TableCount, error) {
	counts := make([]TableCount, 0, len(DataTables))
	for _, table := range DataTables {
		var n int64
		if err := s.pool.QueryRow(ctx, "SELECT count(*) FROM "+pgx.Identifier{table}.Sanitize()).Scan(&n); err != nil {
			return nil, fmt.Errorf("count %s: %w", table, err)
		}
		counts = append(counts, TableCount{Table: table, Rows: n})
	}
	return counts, nil
}
