package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"horse.fit/tariqi/internal/config"
)

var ErrNoRows = sql.ErrNoRows

// Querier runs raw SQL with $N placeholders, either on the pool or inside a transaction.
type Querier interface {
	Query(ctx context.Context, query string, args ...any) (*Rows, error)
	QueryRow(ctx context.Context, query string, args ...any) *Row
	Exec(ctx context.Context, query string, args ...any) (int64, error)
}

type Row struct {
	row *sql.Row
	err error
}

func (r *Row) Scan(dest ...any) error {
	if r == nil {
		return ErrNoRows
	}
	if r.err != nil {
		return r.err
	}
	if r.row == nil {
		return ErrNoRows
	}
	return r.row.Scan(dest...)
}

type Rows struct {
	rows *sql.Rows
}

func (r *Rows) Next() bool {
	return r != nil && r.rows != nil && r.rows.Next()
}

func (r *Rows) Scan(dest ...any) error {
	if r == nil || r.rows == nil {
		return ErrNoRows
	}
	return r.rows.Scan(dest...)
}

func (r *Rows) Err() error {
	if r == nil || r.rows == nil {
		return nil
	}
	return r.rows.Err()
}

func (r *Rows) Close() {
	if r != nil && r.rows != nil {
		_ = r.rows.Close()
	}
}

// gormQuerier adapts a *gorm.DB session, which may be a transaction, to Querier.
type gormQuerier struct {
	db *gorm.DB
}

func (q gormQuerier) Query(ctx context.Context, query string, args ...any) (*Rows, error) {
	rows, err := q.db.WithContext(ctx).Raw(query, args...).Rows()
	if err != nil {
		return nil, err
	}
	return &Rows{rows: rows}, nil
}

func (q gormQuerier) QueryRow(ctx context.Context, query string, args ...any) *Row {
	return &Row{row: q.db.WithContext(ctx).Raw(query, args...).Row()}
}

func (q gormQuerier) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res := q.db.WithContext(ctx).Exec(query, args...)
	return res.RowsAffected, res.Error
}

// Pool is the shared database handle. Every store interface in the module is satisfied by it.
type Pool struct {
	gdb   *gorm.DB
	sqlDB *sql.DB
}

func NewPool(ctx context.Context, cfg *config.Config) (*Pool, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	gdb, err := gorm.Open(postgres.Open(cfg.DatabaseURL), gormConfig(cfg.LogLevel, cfg.Environment))
	if err != nil {
		return nil, fmt.Errorf("open gorm database: %w", err)
	}

	pool, err := newPoolFromGorm(gdb)
	if err != nil {
		return nil, err
	}

	maxOpen := int(cfg.DBMaxConns)
	if maxOpen <= 0 {
		maxOpen = 8
	}
	pool.sqlDB.SetMaxOpenConns(maxOpen)
	pool.sqlDB.SetMaxIdleConns(max(1, min(int(cfg.DBMinConns), maxOpen)))
	pool.sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	pool.sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if err := pool.sqlDB.PingContext(ctx); err != nil {
		_ = pool.sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := pool.Migrate(ctx); err != nil {
		_ = pool.sqlDB.Close()
		return nil, err
	}

	return pool, nil
}

func newPoolFromGorm(gdb *gorm.DB) (*Pool, error) {
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("get gorm sql db: %w", err)
	}
	return &Pool{gdb: gdb, sqlDB: sqlDB}, nil
}

func gormConfig(appLogLevel, environment string) *gorm.Config {
	return &gorm.Config{
		Logger:                 logger.Default.LogMode(resolveGormLogLevel(appLogLevel, environment)),
		SkipDefaultTransaction: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}
}

var errPoolNotInitialized = errors.New("database pool is not initialized")

func (p *Pool) querier() (gormQuerier, error) {
	if p == nil || p.gdb == nil {
		return gormQuerier{}, errPoolNotInitialized
	}
	return gormQuerier{db: p.gdb}, nil
}

// WithTx runs fn in one transaction. fn returning an error, or panicking, rolls it back.
func (p *Pool) WithTx(ctx context.Context, fn func(tx Querier) error) error {
	if p == nil || p.gdb == nil {
		return errPoolNotInitialized
	}
	return p.gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(gormQuerier{db: tx})
	})
}

func (p *Pool) Query(ctx context.Context, query string, args ...any) (*Rows, error) {
	q, err := p.querier()
	if err != nil {
		return nil, err
	}
	return q.Query(ctx, query, args...)
}

func (p *Pool) QueryRow(ctx context.Context, query string, args ...any) *Row {
	q, err := p.querier()
	if err != nil {
		return &Row{err: err}
	}
	return q.QueryRow(ctx, query, args...)
}

// Exec returns the number of affected rows.
func (p *Pool) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	q, err := p.querier()
	if err != nil {
		return 0, err
	}
	return q.Exec(ctx, query, args...)
}

// Ping checks connectivity. Used by health checks.
func (p *Pool) Ping(ctx context.Context) error {
	if p == nil || p.sqlDB == nil {
		return errPoolNotInitialized
	}
	return p.sqlDB.PingContext(ctx)
}

func (p *Pool) Close() error {
	if p == nil || p.sqlDB == nil {
		return nil
	}
	return p.sqlDB.Close()
}

func IsNoRows(err error) bool {
	return errors.Is(err, ErrNoRows)
}

func resolveGormLogLevel(appLogLevel, environment string) logger.LogLevel {
	switch strings.ToLower(strings.TrimSpace(appLogLevel)) {
	case "trace", "debug":
		return logger.Info
	case "warn", "warning", "info", "":
		return logger.Warn
	case "error":
		return logger.Error
	case "silent":
		return logger.Silent
	default:
		if strings.EqualFold(strings.TrimSpace(environment), "local") {
			return logger.Warn
		}
		return logger.Error
	}
}
