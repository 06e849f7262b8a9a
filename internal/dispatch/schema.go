package dispatch

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrInvalidPayload is returned before sending when the payload does not match payloadSchema.
var ErrInvalidPayload = errors.New("invalid payload")

// payloadSchema returns the JSON-Schema every outgoing payload must satisfy.
func payloadSchema() map[string]any {
	str := map[string]any{"type": "string"}
	supplier := object(map[string]any{"name": str, "tax_id": str}, "name", "tax_id")
	document := object(map[string]any{"number": str, "issue_date": str, "total_value": str},
		"number", "issue_date", "total_value")
	installment := object(map[string]any{"number": str, "value": str, "due_date": str},
		"number", "value", "due_date")

	props := map[string]any{
		"file_id":      map[string]any{"type": "string", "minLength": 1},
		"filename":     str,
		"mime_type":    map[string]any{"type": "string", "minLength": 1},
		"content_hash": map[string]any{"type": "string", "pattern": `^[0-9a-f]{64}$`},
		"text":         str,
		"nfe": object(map[string]any{
			"supplier":     supplier,
			"document":     document,
			"installments": map[string]any{"type": "array", "items": installment},
		}, "supplier", "document", "installments"),
		"parse_error":       str,
		"extraction_method": map[string]any{"type": "string", "enum": []string{"pdf-text", "pdf-ocr"}},
		"pages":             map[string]any{"type": "integer", "minimum": 0},
		"ocr_confidence":    map[string]any{"type": "number", "minimum": 0, "maximum": 1},
	}
	return object(props, "file_id", "filename", "mime_type", "content_hash", "text")
}

func object(props map[string]any, required ...string) map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
		"required":             required,
	}
}

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	return compileSchema(payloadSchema())
})

func compileSchema(schemaMap map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("payload.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	return compiler.Compile("payload.json")
}

// Encode validates p against the payload schema and returns its JSON encoding.
func Encode(p Payload) ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	schema, err := compiledSchema()
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return data, nil
}
