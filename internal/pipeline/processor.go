package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/nfe-monitor/constants"
	"github.com/joseph-ayodele/nfe-monitor/internal/dedup"
	"github.com/joseph-ayodele/nfe-monitor/internal/dispatch"
	"github.com/joseph-ayodele/nfe-monitor/internal/ledger"
	"github.com/joseph-ayodele/nfe-monitor/internal/ocr"
)

// ErrUnsupportedMime is returned for documents that are neither PDF nor XML.
var ErrUnsupportedMime = errors.New("unsupported mime type")

// RawDocument is a downloaded file as handed over by a source.
type RawDocument struct {
	FileID   string
	Filename string
	MimeType string
	Data     []byte
}

// Outcome reports what Process did with a document. Archive is true only after the
// payload was dispatched and its hash marked.
type Outcome struct {
	Skipped bool
	Hash    dedup.ContentHash
	Payload dispatch.Payload
	Receipt dispatch.Receipt
	Archive bool
}

// TextExtractor is the PDF text stage.
type TextExtractor interface {
	ExtractPDF(ctx context.Context, data []byte) (ocr.Result, error)
}

// Processor coordinates hashing, extraction, dispatch and the dedup registry.
type Processor struct {
	logger     *slog.Logger
	extractor  TextExtractor
	registry   dedup.Registry
	dispatcher dispatch.Dispatcher
	ledger     ledger.Store
}

// NewProcessor wires the stages. A nil ledger disables the audit trail.
func NewProcessor(
	logger *slog.Logger,
	extractor TextExtractor,
	registry dedup.Registry,
	dispatcher dispatch.Dispatcher,
	store ledger.Store,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if store == nil {
		store = ledger.Nop{}
	}
	return &Processor{
		logger:     logger,
		extractor:  extractor,
		registry:   registry,
		dispatcher: dispatcher,
		ledger:     store,
	}
}

// Process runs one document through the pipeline. A returned error means the document
// was not dispatched and its hash was not marked, so it will be picked up again.
func (p *Processor) Process(ctx context.Context, doc RawDocument) (Outcome, error) {
	hash := dedup.Hash(doc.Data)
	log := p.logger.With("file_id", doc.FileID, "filename", doc.Filename, "content_hash", hash.String())

	if p.registry.Seen(hash) {
		log.Info("duplicate content; skipping")
		return Outcome{Skipped: true, Hash: hash}, nil
	}

	start := time.Now()
	payload, err := p.extract(ctx, doc, hash, log)
	if err != nil {
		log.Error("processor.extract.failed", "mime_type", doc.MimeType, "error", err)
		return Outcome{Hash: hash}, err
	}
	log.Debug("processor.extract.ok", "text_bytes", len(payload.Text), "elapsed_ms", time.Since(start).Milliseconds())

	rcpt, err := p.dispatcher.Dispatch(ctx, payload)
	if err != nil {
		log.Error("processor.dispatch.failed", "error", err)
		return Outcome{Hash: hash, Payload: payload}, fmt.Errorf("dispatch: %w", err)
	}
	p.registry.Mark(hash)

	status := rcpt.Status
	if payload.ParseError != "" {
		status = constants.DispatchStatusDegraded
	}
	entry := ledger.Entry{
		ContentHash: hash.String(),
		FileID:      doc.FileID,
		Filename:    doc.Filename,
		MimeType:    payload.MimeType,
		Method:      payload.ExtractionMethod,
		Confidence:  payload.OCRConfidence,
		Target:      rcpt.Target,
		Status:      status,
		StatusCode:  rcpt.StatusCode,
	}
	if err := p.ledger.Record(ctx, entry); err != nil {
		log.Warn("ledger record failed", "error", err)
	}

	log.Info("document dispatched",
		"target", rcpt.Target,
		"status", string(status),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return Outcome{Hash: hash, Payload: payload, Receipt: rcpt, Archive: true}, nil
}
