package dispatch

import (
	"github.com/joseph-ayodele/nfe-monitor/constants"
	"github.com/joseph-ayodele/nfe-monitor/internal/nfe"
)

// Payload is the JSON document handed to the downstream trigger.
type Payload struct {
	FileID      string `json:"file_id"`
	Filename    string `json:"filename"`
	MimeType    string `json:"mime_type"`
	ContentHash string `json:"content_hash"`
	Text        string `json:"text"`

	// XML only.
	NFe        *nfe.Fields `json:"nfe,omitempty"`
	ParseError string      `json:"parse_error,omitempty"`

	// PDF only.
	ExtractionMethod string   `json:"extraction_method,omitempty"`
	Pages            int      `json:"pages,omitempty"`
	OCRConfidence    *float64 `json:"ocr_confidence,omitempty"` // 1 for an embedded text layer
}

// Receipt describes where a payload went.
type Receipt struct {
	Target     string
	Status     constants.DispatchStatus
	StatusCode int
	RequestID  string
}

// Target names reported in Receipt.Target.
const (
	TargetHTTP  = "http"
	TargetKafka = "kafka"
	TargetLog   = "log"
)
