package ledger

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/nfe-monitor/constants"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "ledger.db"), discard)
	if err != nil {
		t.Fatalf("OpenSQLite() = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func entryAt(hash string, at time.Time, status constants.DispatchStatus) Entry {
	return Entry{
		ContentHash:  hash,
		FileID:       "file-" + hash,
		Filename:     hash + ".xml",
		MimeType:     constants.MimeXML,
		Target:       "http",
		Status:       status,
		StatusCode:   200,
		DispatchedAt: at,
	}
}

func TestSQLiteRecordAndList(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	base := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)

	want := []Entry{
		entryAt("aa", base, constants.DispatchStatusSent),
		entryAt("bb", base.Add(time.Hour), constants.DispatchStatusDegraded),
		entryAt("cc", base.Add(2*time.Hour), constants.DispatchStatusLogged),
	}
	conf := 0.42
	want[0].MimeType, want[0].Method, want[0].Confidence = constants.MimePDF, "pdf-ocr", &conf
	// insert out of order; List sorts by dispatched_at
	for _, i := range []int{2, 0, 1} {
		if err := s.Record(ctx, want[i]); err != nil {
			t.Fatalf("Record(%d) = %v", i, err)
		}
	}

	got, err := s.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List() = %v", err)
	}
	ignoreID := cmpopts.IgnoreFields(Entry{}, "ID")
	if diff := cmp.Diff(want, got, ignoreID); diff != "" {
		t.Errorf("List mismatch (-want +got):\n%s", diff)
	}
	for _, e := range got {
		if e.ID == uuid.Nil {
			t.Errorf("entry %s has no id", e.ContentHash)
		}
	}
}

func TestSQLiteListFilter(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	base := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	for i, st := range []constants.DispatchStatus{
		constants.DispatchStatusSent, constants.DispatchStatusSent,
		constants.DispatchStatusLogged, constants.DispatchStatusSent,
	} {
		if err := s.Record(ctx, entryAt(string(rune('a'+i)), base.Add(time.Duration(i)*time.Hour), st)); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"all", Filter{}, []string{"a", "b", "c", "d"}},
		{"since", Filter{Since: base.Add(time.Hour)}, []string{"b", "c", "d"}},
		{"window", Filter{Since: base.Add(time.Hour), Until: base.Add(3 * time.Hour)}, []string{"b", "c"}},
		{"status", Filter{Status: constants.DispatchStatusSent}, []string{"a", "b", "d"}},
		{"limit", Filter{Status: constants.DispatchStatusSent, Limit: 2}, []string{"a", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() = %v", err)
			}
			var hashes []string
			for _, e := range got {
				hashes = append(hashes, e.ContentHash)
			}
			if diff := cmp.Diff(tt.want, hashes); diff != "" {
				t.Errorf("hashes mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestOpenSelectsBackend(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, "", discard)
	if err != nil {
		t.Fatalf("Open(\"\") = %v", err)
	}
	if _, ok := s.(Nop); !ok {
		t.Errorf("Open(\"\") = %T, want Nop", s)
	}

	s, err = Open(ctx, "sqlite://"+filepath.Join(t.TempDir(), "l.db"), discard)
	if err != nil {
		t.Fatalf("Open(sqlite) = %v", err)
	}
	defer s.Close()
	if _, ok := s.(*SQLiteStore); !ok {
		t.Errorf("Open(sqlite) = %T, want *SQLiteStore", s)
	}
}

func TestListQueryPlaceholders(t *testing.T) {
	at := time.Unix(100, 0)
	q, args := listQuery(Filter{Since: at, Status: constants.DispatchStatusSent, Limit: 5},
		func(n int) string { return "$" + string(rune('0'+n)) },
		func(t time.Time) any { return t.Unix() },
	)
	wantQ := selectColumns + " WHERE dispatched_at >= $1 AND status = $2 ORDER BY dispatched_at, id LIMIT $3"
	if q != wantQ {
		t.Errorf("query =\n%s\nwant\n%s", q, wantQ)
	}
	if diff := cmp.Diff([]any{int64(100), "SENT", 5}, args); diff != "" {
		t.Errorf("args mismatch (-want +got):\n%s", diff)
	}
}
