package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/joseph-ayodele/nfe-monitor/constants"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS dispatch_ledger (
	id            UUID PRIMARY KEY,
	content_hash  TEXT NOT NULL,
	file_id       TEXT NOT NULL,
	filename      TEXT NOT NULL,
	mime_type     TEXT NOT NULL,
	method        TEXT NOT NULL DEFAULT '',
	confidence    DOUBLE PRECISION,
	target        TEXT NOT NULL,
	status        TEXT NOT NULL,
	status_code   INTEGER NOT NULL DEFAULT 0,
	dispatched_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_dispatch_ledger_at ON dispatch_ledger (dispatched_at);
CREATE INDEX IF NOT EXISTS idx_dispatch_ledger_hash ON dispatch_ledger (content_hash);
`

type PostgresConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	DialTimeout     time.Duration
}

// PostgresStore writes the ledger through a pgx pool.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// OpenPostgres creates the pool, pings it and applies the schema.
func OpenPostgres(ctx context.Context, cfg PostgresConfig, logger *slog.Logger) (*PostgresStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxConns == 0 {
		cfg.MaxConns = 4
	}
	if cfg.MaxConnLifetime == 0 {
		cfg.MaxConnLifetime = 30 * time.Minute
	}
	if cfg.MaxConnIdleTime == 0 {
		cfg.MaxConnIdleTime = 5 * time.Minute
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 5 * time.Second
	}

	logger.Info("connecting to ledger database")
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		logger.Error("failed to parse ledger dsn", "error", err)
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	pc.MaxConns = cfg.MaxConns
	pc.MinConns = cfg.MinConns
	pc.MaxConnLifetime = cfg.MaxConnLifetime
	pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	pc.ConnConfig.RuntimeParams["application_name"] = "nfe-monitor"

	ctx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		logger.Error("failed to connect to ledger database", "error", err)
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	logger.Info("ledger database ready", "backend", "postgres")
	return &PostgresStore{pool: pool, logger: logger}, nil
}

func (s *PostgresStore) Record(ctx context.Context, e Entry) error {
	e = prepare(e)
	_, err := s.pool.Exec(ctx, `
		INSERT INTO dispatch_ledger (id, content_hash, file_id, filename, mime_type, method, confidence, target, status, status_code, dispatched_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		e.ID, e.ContentHash, e.FileID, e.Filename, e.MimeType, e.Method, e.Confidence, e.Target, string(e.Status), e.StatusCode, e.DispatchedAt,
	)
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, f Filter) ([]Entry, error) {
	query, args := listQuery(f,
		func(n int) string { return fmt.Sprintf("$%d", n) },
		func(t time.Time) any { return t.UTC() },
	)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query ledger: %w", err)
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Entry, error) {
		var (
			e      Entry
			status string
		)
		err := row.Scan(&e.ID, &e.ContentHash, &e.FileID, &e.Filename, &e.MimeType, &e.Method, &e.Confidence,
			&e.Target, &status, &e.StatusCode, &e.DispatchedAt)
		e.Status = constants.DispatchStatus(status)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan ledger: %w", err)
	}
	return entries, nil
}

func (s *PostgresStore) Close() error {
	s.logger.Info("closing ledger database")
	s.pool.Close()
	return nil
}
