package ocr

import (
	"regexp"
	"strings"
)

var (
	reCRLF       = regexp.MustCompile(`\r\n?`)
	reTabs       = regexp.MustCompile(`\t+`)
	reMultiSpace = regexp.MustCompile(` {2,}`)
	reMultiBlank = regexp.MustCompile(`\n{3,}`)
)

// normalizeOCR collapses noisy whitespace in recognized page text. Line breaks are kept
// (at most one blank line in a row) and characters are never rewritten, so amounts and
// tax ids survive untouched.
func normalizeOCR(s string) string {
	if s == "" {
		return s
	}
	s = strings.ReplaceAll(s, "\f", "")
	s = reCRLF.ReplaceAllString(s, "\n")
	s = reTabs.ReplaceAllString(s, " ")
	s = reMultiSpace.ReplaceAllString(s, " ")
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], " ")
	}
	s = strings.Join(lines, "\n")
	return reMultiBlank.ReplaceAllString(s, "\n\n")
}
