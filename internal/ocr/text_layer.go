package ocr

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PageReader reads a PDF's structure without rendering it.
type PageReader interface {
	// PageTexts returns the embedded text of every page in page order.
	PageTexts(data []byte) ([]string, error)
	// PageCount is used when PageTexts fails, so scanned pages can still be rendered.
	PageCount(data []byte) (int, error)
}

type pdfPageReader struct{}

func (pdfPageReader) PageTexts(data []byte) (texts []string, err error) {
	// the reader panics on some malformed xref tables
	defer func() {
		if r := recover(); r != nil {
			texts, err = nil, fmt.Errorf("read pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}
	n := r.NumPage()
	texts = make([]string, 0, n)
	for i := 1; i <= n; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			texts = append(texts, "")
			continue
		}
		txt, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d text: %w", i, err)
		}
		texts = append(texts, txt)
	}
	return texts, nil
}

func (pdfPageReader) PageCount(data []byte) (int, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	n, err := api.PageCount(bytes.NewReader(data), conf)
	if err != nil {
		return 0, fmt.Errorf("pdfcpu page count: %w", err)
	}
	return n, nil
}
