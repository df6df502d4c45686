// Package postgres exports dataset snapshots into a Postgres table.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/JakeFAU/calfire-history/internal/dataset"
	"github.com/JakeFAU/calfire-history/internal/incident"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// DefaultTable receives snapshot rows when no table is configured.
const DefaultTable = "calfire_incidents"

// Columns are written in this order by CopyFrom.
var Columns = []string{
	"name", "start_date", "contained_date", "county", "acres_burned",
	"notes", "year", "source", "run_id", "captured_at",
}

// ExporterConfig controls the Postgres connection pool used for exports.
type ExporterConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type txBeginCloser interface {
	Begin(context.Context) (pgx.Tx, error)
	Close()
}

// Exporter replaces the table contents with each published snapshot.
type Exporter struct {
	pool   txBeginCloser
	table  string
	logger *zap.Logger
}

// NewExporter connects to Postgres using cfg.
func NewExporter(ctx context.Context, cfg ExporterConfig, logger *zap.Logger) (*Exporter, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	exp, err := NewExporterWithPool(pool, cfg.Table, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return exp, nil
}

// NewExporterWithPool constructs an exporter from an existing pool (primarily for testing).
func NewExporterWithPool(pool txBeginCloser, table string, logger *zap.Logger) (*Exporter, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = DefaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{pool: pool, table: table, logger: logger}, nil
}

// Close releases the underlying pool resources.
func (e *Exporter) Close() {
	if e == nil || e.pool == nil {
		return
	}
	e.pool.Close()
}

// Publish implements dataset.Sink. The table is created if needed and its
// rows are replaced in a single transaction.
func (e *Exporter) Publish(ctx context.Context, pub dataset.Publication) (err error) {
	tx, err := e.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin export: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				e.logger.Warn("rollback export failed", zap.Error(rbErr))
			}
		}
	}()

	if _, err = tx.Exec(ctx, e.createTableSQL()); err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	if _, err = tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s", e.table)); err != nil {
		return fmt.Errorf("clear table: %w", err)
	}
	records := pub.Snapshot.Records
	capturedAt := pub.Snapshot.CapturedAt.UTC()
	n, err := tx.CopyFrom(ctx, pgx.Identifier{e.table}, Columns, pgx.CopyFromSlice(len(records), func(i int) ([]any, error) {
		return rowValues(records[i], pub, capturedAt), nil
	}))
	if err != nil {
		return fmt.Errorf("copy rows: %w", err)
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit export: %w", err)
	}
	e.logger.Info("snapshot exported", zap.String("table", e.table), zap.Int64("rows", n))
	return nil
}

func (e *Exporter) createTableSQL() string {
	return fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	name           text NOT NULL,
	start_date     date,
	contained_date date,
	county         text,
	acres_burned   bigint,
	notes          text,
	year           integer NOT NULL,
	source         text NOT NULL,
	run_id         uuid,
	captured_at    date
)`, e.table)
}

func rowValues(rec incident.Record, pub dataset.Publication, capturedAt time.Time) []any {
	return []any{
		rec.Name,
		rec.StartDate,
		rec.ContainedDate,
		rec.County,
		rec.AcresBurned,
		rec.Notes,
		rec.Year,
		string(rec.Source),
		pub.RunID,
		capturedAt,
	}
}
