package constants

import "strings"

// Document formats understood by the pipeline.
const (
	PDF = "PDF"
	XML = "XML"
)

// MIME types listed by the remote folder.
const (
	MimePDF     = "application/pdf"
	MimeXML     = "application/xml"
	MimeTextXML = "text/xml"
)

// SupportedMimeTypes holds the MIME types a source should list.
var SupportedMimeTypes = []string{MimePDF, MimeXML, MimeTextXML}

// AllowedExtensions holds the file extensions accepted by the local source.
var AllowedExtensions = map[string]struct{}{
	"pdf": {},
	"xml": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// NormalizeMime lowercases a MIME type and drops any parameters ("; charset=...").
func NormalizeMime(mime string) string {
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	return strings.ToLower(strings.TrimSpace(mime))
}

// FormatForMime maps a MIME type to PDF or XML; "" when unsupported.
func FormatForMime(mime string) string {
	switch NormalizeMime(mime) {
	case MimePDF:
		return PDF
	case MimeXML, MimeTextXML:
		return XML
	default:
		return ""
	}
}

// MimeForExt maps a file extension to the MIME type a remote folder would report.
func MimeForExt(ext string) string {
	switch NormalizeExt(ext) {
	case "pdf":
		return MimePDF
	case "xml":
		return MimeXML
	default:
		return ""
	}
}
