package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// OCRResult is the structured body returned by the OCR service once any
// outer string encoding has been removed.
type OCRResult struct {
	Pages   []OCRPage   `json:"pages"`
	Figures []OCRFigure `json:"figures"`
	Matches []OCRMatch  `json:"matches"`
}

type OCRPage struct {
	PageNum PageNumber      `json:"page_num"`
	Text    json.RawMessage `json:"text"`
}

type OCRFigure struct {
	PageNum    PageNumber      `json:"page_num"`
	FigureType json.RawMessage `json:"figure_type"`
	FigureBox  json.RawMessage `json:"figure_box"`
}

type OCRMatch struct {
	PageNum    PageNumber      `json:"page_num"`
	FigurePage PageNumber      `json:"figure_page"`
	FigureBox  json.RawMessage `json:"figure_box"`
	RawText    json.RawMessage `json:"raw_text"`
	FigureText json.RawMessage `json:"figure_text"`
	// Older OCR builds send the figure side as matched_text.
	MatchedText json.RawMessage `json:"matched_text"`
}

// AssociatedText returns figure_text, falling back to matched_text.
func (m OCRMatch) AssociatedText() json.RawMessage {
	if len(m.FigureText) > 0 && !bytes.Equal(m.FigureText, []byte("null")) {
		return m.FigureText
	}
	return m.MatchedText
}

// PageNumber is a nullable page index. It accepts JSON integers, integral
// floats and numeric strings.
type PageNumber struct {
	Value int
	Valid bool
}

func (p *PageNumber) UnmarshalJSON(data []byte) error {
	*p = PageNumber{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch v := raw.(type) {
	case float64:
		if v != math.Trunc(v) {
			return fmt.Errorf("page number %v is not an integer", v)
		}
		if v < math.MinInt32 || v > math.MaxInt32 {
			return fmt.Errorf("page number %v is out of range", v)
		}
		p.Value, p.Valid = int(v), true
	case string:
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			return fmt.Errorf("page number %q is not an integer: %w", v, err)
		}
		p.Value, p.Valid = int(n), true
	default:
		return fmt.Errorf("unsupported page number %s", string(data))
	}
	return nil
}

func (p PageNumber) MarshalJSON() ([]byte, error) {
	if !p.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.Itoa(p.Value)), nil
}

// PageNum returns a valid page number.
func PageNum(n int) PageNumber {
	return PageNumber{Value: n, Valid: true}
}
