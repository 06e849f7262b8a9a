package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

func (e *Extractor) recognizePages(ctx context.Context, data []byte, pageCount int) (Result, error) {
	res := Result{Method: MethodOCR, Language: e.cfg.TesseractLang, Pages: pageCount}
	if e.cfg.MaxPages > 0 && pageCount > e.cfg.MaxPages {
		res.Warnings = append(res.Warnings, fmt.Sprintf("ocr limited to %d of %d pages", e.cfg.MaxPages, pageCount))
		pageCount = e.cfg.MaxPages
	}

	tmpDir, err := os.MkdirTemp("", "nfe-ocr-*")
	if err != nil {
		return res, fmt.Errorf("%w: temp dir: %v", ErrRecognition, err)
	}
	defer func(path string) {
		if err := os.RemoveAll(path); err != nil {
			e.logger.Warn("failed to remove ocr temp dir", "path", path, "error", err)
		}
	}(tmpDir)

	in := filepath.Join(tmpDir, "source.pdf")
	if err := os.WriteFile(in, data, 0o600); err != nil {
		return res, fmt.Errorf("%w: write temp pdf: %v", ErrRecognition, err)
	}

	var b strings.Builder
	var recognized bool
	var confSum float32
	var confN int
	for page := 1; page <= pageCount; page++ {
		img, err := e.renderPage(ctx, in, tmpDir, page)
		if err != nil {
			return res, err
		}
		txt, warns, err := e.tesseractOCR(ctx, img)
		res.Warnings = append(res.Warnings, warns...)
		if err != nil {
			return res, fmt.Errorf("%w: page %d: %v", ErrRecognition, page, err)
		}
		txt = normalizeOCR(txt)
		b.WriteString(pageMarker(page))
		b.WriteString(txt)
		if strings.TrimSpace(txt) != "" {
			recognized = true
		}

		if e.cfg.EnableTSVConfidence {
			if c, err := e.tesseractTSVConfidence(ctx, img); err == nil && c > 0 {
				confSum += c
				confN++
			} else if err != nil {
				res.Warnings = append(res.Warnings, err.Error())
			}
		}
		e.logger.Debug("ocr page done", "page", page, "bytes", len(txt))
	}

	// markers alone are not text
	if recognized {
		res.Text = strings.TrimSpace(b.String())
	}
	res.Confidence = heuristicConfidence(res.Text)
	if confN > 0 {
		// weight the engine's own word confidence higher than the heuristic
		res.Confidence = 0.7*(confSum/float32(confN)) + 0.3*res.Confidence
	}
	return res, nil
}

// pdftoppm -f N -l N -r DPI -png -singlefile <in.pdf> <tmp/page-N>
func (e *Extractor) renderPage(ctx context.Context, in, dir string, page int) (string, error) {
	prefix := filepath.Join(dir, "page-"+strconv.Itoa(page))
	n := strconv.Itoa(page)
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, e.logger,
		"-f", n, "-l", n, "-r", strconv.Itoa(e.cfg.DPI), "-png", "-singlefile", in, prefix)
	if err != nil {
		return "", fmt.Errorf("%w: render page %d: %v: %s", ErrRecognition, page, err, truncate(string(errb), 512))
	}
	return prefix + ".png", nil
}

// pageMarker precedes each page's recognized text, 1-indexed.
func pageMarker(page int) string {
	return "\n--- Page " + strconv.Itoa(page) + " ---\n"
}
