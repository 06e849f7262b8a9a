package nfe

import (
	"bytes"
	"regexp"
	"strings"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var reDeclEncoding = regexp.MustCompile(`^\s*<\?xml[^>]*?\bencoding\s*=\s*["']([A-Za-z0-9._:-]+)["']`)

var (
	bomUTF16BE = []byte{0xfe, 0xff}
	bomUTF16LE = []byte{0xff, 0xfe}
)

// decodeText turns raw bytes into UTF-8 text without ever failing. A UTF-16 byte order
// mark wins over everything. Otherwise a declared 8-bit charset (ISO-8859-1 is common in
// older NF-e emitters) is honoured, and anything else is read as UTF-8 with invalid
// sequences replaced by U+FFFD and a leading BOM dropped.
func decodeText(data []byte) string {
	if bytes.HasPrefix(data, bomUTF16BE) || bytes.HasPrefix(data, bomUTF16LE) {
		if out, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), data); err == nil {
			return string(out)
		}
	}

	head := data
	if len(head) > 256 {
		head = head[:256]
	}
	if m := reDeclEncoding.FindSubmatch(head); m != nil {
		// a declaration readable as ASCII rules out UTF-16/32, whatever it says
		if enc, name := charset.Lookup(strings.ToLower(string(m[1]))); enc != nil && !strings.HasPrefix(name, "utf-") {
			if out, err := enc.NewDecoder().Bytes(data); err == nil {
				return string(out)
			}
		}
	}
	out, err := unicode.UTF8BOM.NewDecoder().Bytes(data)
	if err != nil {
		return strings.ToValidUTF8(string(data), "\uFFFD")
	}
	return string(out)
}
