package monitor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/nfe-monitor/internal/common"
	"github.com/joseph-ayodele/nfe-monitor/internal/pipeline"
	"github.com/joseph-ayodele/nfe-monitor/internal/source"
)

// DocumentProcessor is the per-document pipeline.
type DocumentProcessor interface {
	Process(ctx context.Context, doc pipeline.RawDocument) (pipeline.Outcome, error)
}

// CycleStats summarises one poll.
type CycleStats struct {
	Listed    int
	Processed int
	Skipped   int
	Failed    int
	Archived  int
}

// Monitor polls a source and feeds each file through the processor, one at a time.
type Monitor struct {
	src     source.Source
	proc    DocumentProcessor
	logger  *slog.Logger
	every   time.Duration
	timeout time.Duration
	wake    <-chan struct{}
	onCycle func(CycleStats)
}

type Option func(*Monitor)

func WithInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.every = d
		}
	}
}

func WithDocumentTimeout(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithWake starts a cycle early whenever ch fires.
func WithWake(ch <-chan struct{}) Option {
	return func(m *Monitor) {
		m.wake = ch
	}
}

// WithCycleHook is called after every cycle.
func WithCycleHook(fn func(CycleStats)) Option {
	return func(m *Monitor) {
		m.onCycle = fn
	}
}

func New(src source.Source, proc DocumentProcessor, logger *slog.Logger, opts ...Option) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Monitor{
		src:     src,
		proc:    proc,
		logger:  logger,
		every:   50 * time.Second,
		timeout: 3 * time.Minute,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Run polls until ctx is cancelled. The first cycle starts immediately.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Info("monitor started", "interval", m.every.String(), "document_timeout", m.timeout.String())
	ticker := time.NewTicker(m.every)
	defer ticker.Stop()

	wake := m.wake
	for {
		if ctx.Err() != nil {
			m.logger.Info("monitor stopped")
			return nil
		}
		stats, err := m.RunOnce(ctx)
		if err != nil && ctx.Err() == nil {
			m.logger.Error("poll cycle failed", "error", err)
		}
		if m.onCycle != nil {
			m.onCycle(stats)
		}

		select {
		case <-ctx.Done():
			m.logger.Info("monitor stopped")
			return nil
		case <-ticker.C:
		case _, ok := <-wake:
			if !ok {
				wake = nil
				continue
			}
			m.logger.Debug("inbox activity; polling early")
			ticker.Reset(m.every)
		}
	}
}

// RunOnce lists the source and processes every file sequentially. Per-file failures are
// logged and counted; only a list failure is returned.
func (m *Monitor) RunOnce(ctx context.Context) (CycleStats, error) {
	var stats CycleStats
	files, err := m.src.List(ctx)
	if err != nil {
		return stats, err
	}
	stats.Listed = len(files)
	if len(files) > 0 {
		m.logger.Info("files found", "count", len(files))
	}

	for _, f := range files {
		if ctx.Err() != nil {
			break
		}
		outcome, err := m.handle(ctx, f)
		switch {
		case err != nil:
			stats.Failed++
			m.logger.Error("document failed", "file_id", f.ID, "filename", f.Name, "error", err)
			continue
		case outcome.Skipped:
			stats.Skipped++
		default:
			stats.Processed++
		}
		if outcome.Archive {
			stats.Archived++
		}
	}

	if stats.Listed > 0 {
		m.logger.Info("poll cycle done",
			"listed", stats.Listed,
			"processed", stats.Processed,
			"skipped", stats.Skipped,
			"failed", stats.Failed,
			"archived", stats.Archived,
		)
	}
	return stats, nil
}

// handle downloads, processes and archives one file under the document timeout.
func (m *Monitor) handle(parent context.Context, f source.File) (pipeline.Outcome, error) {
	ctx, cancel := context.WithTimeout(parent, m.timeout)
	defer cancel()
	ctx = common.WithRequestID(ctx, uuid.New().String())

	m.logger.Info("processing file", "file_id", f.ID, "filename", f.Name, "mime_type", f.MimeType)
	data, err := m.src.Download(ctx, f)
	if err != nil {
		return pipeline.Outcome{}, err
	}

	outcome, err := m.proc.Process(ctx, pipeline.RawDocument{
		FileID:   f.ID,
		Filename: f.Name,
		MimeType: f.MimeType,
		Data:     data,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			m.logger.Warn("document timed out", "file_id", f.ID, "timeout", m.timeout.String())
		}
		return outcome, err
	}
	if !outcome.Archive {
		return outcome, nil
	}
	if err := m.src.Archive(ctx, f); err != nil {
		outcome.Archive = false
		return outcome, err
	}
	return outcome, nil
}
