package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/nfe-monitor/internal/common"
)

var (
	// ErrUnreadablePDF means neither the text layer nor the page-count fallback could open the document.
	ErrUnreadablePDF = errors.New("pdf unreadable")
	// ErrRecognition means rasterizing or recognizing a page failed.
	ErrRecognition = errors.New("ocr recognition failed")
)

// Extraction methods reported in Result.Method.
const (
	MethodText = "pdf-text"
	MethodOCR  = "pdf-ocr"
)

type Config struct {
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	TesseractLang string // default "por"
	DPI           int    // rasterization DPI for scanned PDFs, default 300
	MaxPages      int    // 0 = no limit

	TessdataDir         string
	EnableTSVConfidence bool

	PSM int // e.g., 6 is good for uniform block of text
	OEM int // 1 = LSTM; leave 0 to use default
}

type Result struct {
	Text       string
	Pages      int
	Method     string // MethodText | MethodOCR
	Language   string
	Duration   time.Duration
	Warnings   []string
	Confidence float32
}

type Extractor struct {
	cfg    Config
	runner Runner
	pages  PageReader
	logger *slog.Logger
}

type Option func(*Extractor)

// WithRunner replaces the exec runner used for pdftoppm and tesseract.
func WithRunner(r Runner) Option {
	return func(e *Extractor) {
		if r != nil {
			e.runner = r
		}
	}
}

// WithPageReader replaces the embedded-text reader.
func WithPageReader(p PageReader) Option {
	return func(e *Extractor) {
		if p != nil {
			e.pages = p
		}
	}
}

func NewExtractor(cfg Config, logger *slog.Logger, opts ...Option) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "por"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	e := &Extractor{cfg: cfg, runner: execRunner{}, pages: pdfPageReader{}, logger: logger}
	for _, o := range opts {
		o(e)
	}
	return e
}

// ExtractPDF returns the embedded text of every page when there is any, and only
// otherwise rasterizes and recognizes each page. An empty Text with a nil error means
// nothing was found; failures always come back as errors.
func (e *Extractor) ExtractPDF(ctx context.Context, data []byte) (Result, error) {
	start := time.Now()

	texts, textErr := e.pages.PageTexts(data)
	if textErr == nil {
		txt := strings.TrimSpace(strings.Join(texts, ""))
		if txt != "" {
			e.logger.Debug("pdf text layer found", "pages", len(texts), "bytes", len(txt))
			return Result{
				Text:       txt,
				Pages:      len(texts),
				Method:     MethodText,
				Duration:   time.Since(start),
				Confidence: 1,
			}, nil
		}
	}

	var pageCount int
	var warns []string
	if textErr == nil {
		pageCount = len(texts)
	} else {
		warns = append(warns, textErr.Error())
		e.logger.Warn("pdf text layer unreadable, counting pages for ocr", "error", textErr)
		n, err := e.pages.PageCount(data)
		if err != nil {
			return Result{Warnings: warns, Duration: time.Since(start)},
				fmt.Errorf("%w: text layer: %v; page count: %v", ErrUnreadablePDF, textErr, err)
		}
		pageCount = n
	}
	if pageCount == 0 {
		return Result{Warnings: warns, Duration: time.Since(start)}, fmt.Errorf("%w: document has no pages", ErrUnreadablePDF)
	}

	e.logger.Info("no embedded text in pdf, applying ocr", "pages", pageCount, "lang", e.cfg.TesseractLang)
	res, err := e.recognizePages(ctx, data, pageCount)
	res.Warnings = append(warns, res.Warnings...)
	res.Duration = time.Since(start)
	if err != nil {
		return res, err
	}
	e.logger.Debug("ocr finished", "pages", res.Pages, "bytes", len(res.Text), "confidence", res.Confidence)
	return res, nil
}

// ConfigFrom maps process configuration onto Config.
func ConfigFrom(c common.OCRConfig) Config {
	return Config{
		Pdftoppm:      c.Pdftoppm,
		Tesseract:     c.Tesseract,
		TesseractLang: c.Lang,
		DPI:           c.DPI,
		MaxPages:      c.MaxPages,
		TessdataDir:   c.TessdataDir,

		EnableTSVConfidence: c.TSVConfidence,
		PSM:                 c.PSM,
		OEM:                 c.OEM,
	}
}
