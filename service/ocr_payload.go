package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/cmdf/pdfnote-be/types"
)

// NormalizeOCRPayload decodes an OCR response body. Some OCR deployments
// wrap the JSON document in a JSON string, so a string result is decoded
// a second time. Anything that is not an object after that is rejected.
func NormalizeOCRPayload(body []byte) (*types.OCRResult, error) {
	var decoded interface{}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedUpstreamResponse, err)
	}

	doc := body
	if s, ok := decoded.(string); ok {
		doc = []byte(s)
		if err := json.Unmarshal(doc, &decoded); err != nil {
			return nil, fmt.Errorf("%w: inner payload: %v", ErrMalformedUpstreamResponse, err)
		}
	}

	if _, ok := decoded.(map[string]interface{}); !ok {
		return nil, fmt.Errorf("%w: expected a JSON object, got %s", ErrMalformedUpstreamResponse, jsonKind(decoded))
	}

	var result types.OCRResult
	if err := json.Unmarshal(doc, &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedUpstreamResponse, err)
	}
	return &result, nil
}

func jsonKind(v interface{}) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	case []interface{}:
		return "array"
	default:
		return "object"
	}
}

// figureKey identifies a figure by page and the elements of its box.
type figureKey struct {
	page int
	box  [4]string
}

// boxKey returns the lookup key of a four-element box. Numbers are
// compared by value, other elements by their compacted JSON.
func boxKey(raw json.RawMessage) ([4]string, bool) {
	var key [4]string
	items, ok := boxItems(raw)
	if !ok {
		return key, false
	}
	for i, item := range items {
		if f, ok := boxNumber(item); ok {
			key[i] = strconv.FormatFloat(f, 'g', -1, 64)
			continue
		}
		var buf bytes.Buffer
		if err := json.Compact(&buf, item); err != nil {
			return key, false
		}
		key[i] = buf.String()
	}
	return key, true
}

// normalizeFigureBox converts a four-number sequence into a BoundingBox.
// Any other value is returned unchanged and ok is false.
func normalizeFigureBox(raw json.RawMessage) (stored json.RawMessage, ok bool) {
	if isNull(raw) {
		return nil, false
	}
	coords, ok := boxCoords(raw)
	if !ok {
		return raw, false
	}
	encoded, err := json.Marshal(types.BoundingBox{
		MinX: coords[0],
		MinY: coords[1],
		MaxX: coords[2],
		MaxY: coords[3],
	})
	if err != nil {
		return raw, false
	}
	return encoded, true
}

func boxCoords(raw json.RawMessage) ([4]float64, bool) {
	var box [4]float64
	items, ok := boxItems(raw)
	if !ok {
		return box, false
	}
	for i, item := range items {
		f, ok := boxNumber(item)
		if !ok {
			return box, false
		}
		box[i] = f
	}
	return box, true
}

func boxItems(raw json.RawMessage) ([]json.RawMessage, bool) {
	if isNull(raw) {
		return nil, false
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil || len(items) != 4 {
		return nil, false
	}
	return items, true
}

// boxNumber reports whether item is a JSON number. Numeric strings are
// not coordinates.
func boxNumber(item json.RawMessage) (float64, bool) {
	item = bytes.TrimSpace(item)
	if len(item) == 0 || item[0] == '"' {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(item, &f); err != nil {
		return 0, false
	}
	return f, true
}

// joinText renders an OCR text field. Lists are joined with single spaces,
// missing values become empty and other scalars are stringified.
func joinText(raw json.RawMessage) string {
	if isNull(raw) {
		return ""
	}
	var v interface{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return string(raw)
	}
	return stringify(v)
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "true"
		}
		return "false"
	case []interface{}:
		parts := make([]string, len(t))
		for i, item := range t {
			parts[i] = stringify(item)
		}
		return strings.Join(parts, " ")
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
