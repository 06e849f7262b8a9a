package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/joseph-ayodele/nfe-monitor/constants"
	"github.com/joseph-ayodele/nfe-monitor/internal/dedup"
	"github.com/joseph-ayodele/nfe-monitor/internal/dispatch"
	"github.com/joseph-ayodele/nfe-monitor/internal/nfe"
)

// extract type-dispatches on the declared MIME type and assembles the payload.
func (p *Processor) extract(ctx context.Context, doc RawDocument, hash dedup.ContentHash, log *slog.Logger) (dispatch.Payload, error) {
	payload := dispatch.Payload{
		FileID:      doc.FileID,
		Filename:    doc.Filename,
		MimeType:    constants.NormalizeMime(doc.MimeType),
		ContentHash: hash.String(),
	}

	switch constants.FormatForMime(doc.MimeType) {
	case constants.PDF:
		res, err := p.extractor.ExtractPDF(ctx, doc.Data)
		if err != nil {
			return payload, fmt.Errorf("extract pdf: %w", err)
		}
		for _, w := range res.Warnings {
			log.Warn("pdf extraction warning", "warning", w)
		}
		if res.Text == "" {
			log.Warn("no text found in pdf", "method", res.Method, "pages", res.Pages)
		}
		log.Debug("pdf extracted",
			"method", res.Method,
			"pages", res.Pages,
			"lang", res.Language,
			"confidence", res.Confidence,
			"extract_ms", res.Duration.Milliseconds(),
		)
		conf := math.Round(float64(res.Confidence)*1000) / 1000
		payload.Text = res.Text
		payload.ExtractionMethod = res.Method
		payload.Pages = res.Pages
		payload.OCRConfidence = &conf
		return payload, nil

	case constants.XML:
		rec := nfe.Parse(doc.Data)
		if rec.Failed() {
			log.Warn("nfe parse failed; sending raw text", "error", rec.Error)
		} else if rec.Structural != nil {
			log.Warn("nfe tree malformed; kept pattern fallback only", "error", rec.Structural)
		}
		fields := rec.Fields
		if fields.Installments == nil {
			fields.Installments = []nfe.Installment{}
		}
		payload.Text = rec.Text
		payload.NFe = &fields
		payload.ParseError = rec.Error
		return payload, nil

	default:
		return payload, fmt.Errorf("%w: %q", ErrUnsupportedMime, doc.MimeType)
	}
}
