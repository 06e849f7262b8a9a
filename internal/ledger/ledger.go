// Package ledger keeps an audit trail of dispatched documents. It is write-mostly and
// is never consulted to decide whether a document was already processed.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/nfe-monitor/constants"
)

// Entry is one dispatched document.
type Entry struct {
	ID           uuid.UUID
	ContentHash  string
	FileID       string
	Filename     string
	MimeType     string
	Method       string
	Confidence   *float64 // PDFs only
	Target       string
	Status       constants.DispatchStatus
	StatusCode   int
	DispatchedAt time.Time
}

// Filter narrows List. Zero values mean "no constraint"; Limit 0 means all rows.
type Filter struct {
	Since  time.Time
	Until  time.Time
	Status constants.DispatchStatus
	Limit  int
}

type Store interface {
	Record(ctx context.Context, e Entry) error
	// List returns entries oldest first.
	List(ctx context.Context, f Filter) ([]Entry, error)
	Close() error
}

// Open picks a backend from dsn: postgres:// and postgresql:// use Postgres, any other
// non-empty value is a SQLite file path, and "" disables the ledger.
func Open(ctx context.Context, dsn string, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch {
	case dsn == "":
		logger.Info("ledger disabled")
		return Nop{}, nil
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		s, err := OpenPostgres(ctx, PostgresConfig{DSN: dsn}, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		s, err := OpenSQLite(ctx, strings.TrimPrefix(dsn, "sqlite://"), logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// Nop discards entries.
type Nop struct{}

func (Nop) Record(context.Context, Entry) error           { return nil }
func (Nop) List(context.Context, Filter) ([]Entry, error) { return nil, nil }
func (Nop) Close() error                                  { return nil }

// prepare fills the generated fields of e.
func prepare(e Entry) Entry {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.DispatchedAt.IsZero() {
		e.DispatchedAt = time.Now()
	}
	e.DispatchedAt = e.DispatchedAt.UTC()
	return e
}

const selectColumns = `SELECT id, content_hash, file_id, filename, mime_type, method, confidence, target, status, status_code, dispatched_at FROM dispatch_ledger`

// listQuery builds the List statement; placeholder renders the n-th (1-based) bind
// marker and ts converts times to the column's representation.
func listQuery(f Filter, placeholder func(n int) string, ts func(time.Time) any) (string, []any) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(cond, placeholder(len(args))))
	}
	if !f.Since.IsZero() {
		add("dispatched_at >= %s", ts(f.Since))
	}
	if !f.Until.IsZero() {
		add("dispatched_at < %s", ts(f.Until))
	}
	if f.Status != "" {
		add("status = %s", string(f.Status))
	}

	var b strings.Builder
	b.WriteString(selectColumns)
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY dispatched_at, id")
	if f.Limit > 0 {
		args = append(args, f.Limit)
		b.WriteString(" LIMIT " + placeholder(len(args)))
	}
	return b.String(), args
}
