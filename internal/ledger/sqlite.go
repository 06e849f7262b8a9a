package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/joseph-ayodele/nfe-monitor/constants"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS dispatch_ledger (
	id            TEXT PRIMARY KEY,
	content_hash  TEXT NOT NULL,
	file_id       TEXT NOT NULL,
	filename      TEXT NOT NULL,
	mime_type     TEXT NOT NULL,
	method        TEXT NOT NULL DEFAULT '',
	confidence    REAL,
	target        TEXT NOT NULL,
	status        TEXT NOT NULL,
	status_code   INTEGER NOT NULL DEFAULT 0,
	dispatched_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_dispatch_ledger_at ON dispatch_ledger(dispatched_at);
CREATE INDEX IF NOT EXISTS idx_dispatch_ledger_hash ON dispatch_ledger(content_hash);
`

// SQLiteStore writes the ledger to a local SQLite file. dispatched_at is stored as
// unix microseconds.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

func OpenSQLite(ctx context.Context, path string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer; avoids SQLITE_BUSY between pooled connections
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	logger.Info("ledger database ready", "backend", "sqlite", "path", path)
	return &SQLiteStore{db: db, logger: logger}, nil
}

func (s *SQLiteStore) Record(ctx context.Context, e Entry) error {
	e = prepare(e)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO dispatch_ledger (id, content_hash, file_id, filename, mime_type, method, confidence, target, status, status_code, dispatched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID.String(), e.ContentHash, e.FileID, e.Filename, e.MimeType, e.Method, nullFloat(e.Confidence), e.Target, string(e.Status), e.StatusCode, e.DispatchedAt.UnixMicro(),
	)
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context, f Filter) ([]Entry, error) {
	query, args := listQuery(f,
		func(int) string { return "?" },
		func(t time.Time) any { return t.UnixMicro() },
	)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query ledger: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e          Entry
			id, status string
			conf       sql.NullFloat64
			at         int64
		)
		if err := rows.Scan(&id, &e.ContentHash, &e.FileID, &e.Filename, &e.MimeType, &e.Method, &conf,
			&e.Target, &status, &e.StatusCode, &at); err != nil {
			return nil, fmt.Errorf("scan ledger: %w", err)
		}
		if e.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("scan ledger id %q: %w", id, err)
		}
		if conf.Valid {
			e.Confidence = &conf.Float64
		}
		e.Status = constants.DispatchStatus(status)
		e.DispatchedAt = time.UnixMicro(at).UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func nullFloat(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
