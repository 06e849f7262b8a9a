package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/nfe-monitor/internal/ledger"
)

const sheet = "Dispatches"

// Service renders ledger entries as XLSX.
type Service struct {
	store  ledger.Store
	logger *slog.Logger
}

func NewService(store ledger.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

// DateWindow turns inclusive calendar days into a ledger time window (UTC).
// If only from is provided -> from..today.
// If only to is provided   -> beginning..to.
// If neither is provided   -> everything.
func DateWindow(from, to *time.Time, now time.Time) (since, until time.Time) {
	day := func(t time.Time) time.Time {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
	if from != nil {
		since = day(*from)
		if to == nil {
			to = &now
		}
	}
	if to != nil {
		until = day(*to).AddDate(0, 0, 1)
	}
	return since, until
}

// LedgerXLSX returns a workbook with one row per ledger entry matching f.
func (s *Service) LedgerXLSX(ctx context.Context, f ledger.Filter) ([]byte, error) {
	start := time.Now()

	entries, err := s.store.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("query ledger: %w", err)
	}

	x := excelize.NewFile()
	defer func() {
		if err := x.Close(); err != nil {
			s.logger.Warn("xlsx close error", "error", err)
		}
	}()
	if err := x.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	headers := []string{
		"Dispatched At (UTC)",
		"Filename",
		"File ID",
		"MIME Type",
		"Extraction",
		"OCR Confidence",
		"Target",
		"Status",
		"HTTP Status",
		"Content Hash",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = x.SetCellValue(sheet, cell, h)
	}

	for i, e := range entries {
		row := i + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = x.SetCellValue(sheet, cell, v)
		}
		write(1, e.DispatchedAt.UTC().Format("2006-01-02 15:04:05"))
		write(2, e.Filename)
		write(3, e.FileID)
		write(4, e.MimeType)
		write(5, e.Method)
		if e.Confidence != nil {
			write(6, *e.Confidence)
		}
		write(7, e.Target)
		write(8, string(e.Status))
		if e.StatusCode != 0 {
			write(9, e.StatusCode)
		}
		write(10, e.ContentHash)
	}

	_ = x.SetColWidth(sheet, "A", "A", 20)
	_ = x.SetColWidth(sheet, "B", "C", 32)
	_ = x.SetColWidth(sheet, "D", "I", 14)
	_ = x.SetColWidth(sheet, "J", "J", 68)
	_ = x.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	buf, err := x.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(entries),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}
