// Package postgres provides the Postgres-backed pricing store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/seapigy/procuro-site-sub000/internal/pricing"
)

var validSchemaName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	Schema          string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type dbtx interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Ping(context.Context) error
	Close()
}

// Store reads items and writes price records and alerts.
type Store struct {
	pool   dbtx
	schema string
}

var _ pricing.Store = (*Store)(nil)

// New connects a pool using cfg.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, errors.New("db.dsn is required")
	}
	schema, err := schemaName(cfg.Schema)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool, schema: schema}, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(pool dbtx, schema string) (*Store, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	name, err := schemaName(schema)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool, schema: name}, nil
}

func schemaName(schema string) (string, error) {
	if schema == "" {
		return "public", nil
	}
	if !validSchemaName.MatchString(schema) {
		return "", fmt.Errorf("invalid schema name %q", schema)
	}
	return schema, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return nil
}

// FindItem loads one item. Missing rows map to pricing.ErrItemNotFound.
func (s *Store) FindItem(ctx context.Context, id string) (pricing.Item, error) {
	query := fmt.Sprintf(`
SELECT id, name, reference_price::text, quantity_per_order, reorder_interval_days
FROM %s.items
WHERE id = $1`, s.schema)

	var (
		item     pricing.Item
		refPrice string
	)
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&item.ID,
		&item.Name,
		&refPrice,
		&item.QuantityPerOrder,
		&item.ReorderIntervalDays,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return pricing.Item{}, fmt.Errorf("%w: %s", pricing.ErrItemNotFound, id)
	}
	if err != nil {
		return pricing.Item{}, fmt.Errorf("select item: %w", err)
	}
	item.ReferencePrice, err = decimal.NewFromString(refPrice)
	if err != nil {
		return pricing.Item{}, fmt.Errorf("item %s reference price %q: %w", id, refPrice, err)
	}
	return item, nil
}

// CreatePriceRecord inserts one price observation.
func (s *Store) CreatePriceRecord(ctx context.Context, record pricing.PriceRecord) error {
	query := fmt.Sprintf(`
INSERT INTO %s.price_records (
	item_id,
	retailer,
	price,
	url,
	recorded_at
) VALUES (
	$1,$2,$3::numeric,$4,$5
)`, s.schema)

	_, err := s.pool.Exec(ctx, query,
		record.ItemID,
		record.Retailer,
		record.Price.String(),
		nullable(record.URL),
		record.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("insert price record: %w", err)
	}
	return nil
}

// CreateAlert inserts one savings alert.
func (s *Store) CreateAlert(ctx context.Context, alert pricing.Alert) error {
	query := fmt.Sprintf(`
INSERT INTO %s.alerts (
	item_id,
	retailer,
	old_price,
	new_price,
	savings_per_order,
	estimated_monthly_savings,
	url,
	seen,
	viewed,
	alert_date
) VALUES (
	$1,$2,$3::numeric,$4::numeric,$5::numeric,$6::numeric,$7,$8,$9,$10
)`, s.schema)

	_, err := s.pool.Exec(ctx, query,
		alert.ItemID,
		alert.Retailer,
		alert.OldPrice.String(),
		alert.NewPrice.String(),
		alert.SavingsPerOrder.StringFixed(2),
		alert.EstimatedMonthlySavings.StringFixed(2),
		nullable(alert.URL),
		alert.Seen,
		alert.Viewed,
		alert.AlertDate,
	)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
