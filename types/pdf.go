package types

import (
	"encoding/json"
	"time"
)

// PDF is an uploaded source document owned by a single user.
type PDF struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Title     string    `json:"title"`
	S3Key     string    `json:"-"`
	S3URL     string    `json:"S3_url"`
	CreatedAt time.Time `json:"created_at"`
}

type Page struct {
	ID      int64  `json:"id"`
	PDFID   int64  `json:"pdf_id"`
	PageNum int    `json:"page_num"`
	Text    string `json:"text"`
}

// Figure is an image or table detected on a page. FigureBox holds either a
// BoundingBox object or whatever the OCR service sent when it was not a
// four-number sequence.
type Figure struct {
	ID         int64           `json:"id"`
	PageID     int64           `json:"page_id"`
	PageNum    int             `json:"page_num,omitempty"`
	FigureType string          `json:"figure_type"`
	FigureBox  json.RawMessage `json:"figure_box"`
}

type BoundingBox struct {
	MinX float64 `json:"min_x"`
	MinY float64 `json:"min_y"`
	MaxX float64 `json:"max_x"`
	MaxY float64 `json:"max_y"`
}

// TextFigureMatch links a block of page text to the figure it describes.
type TextFigureMatch struct {
	ID          int64     `json:"id"`
	PageID      int64     `json:"page_id"`
	FigureID    int64     `json:"figure_id"`
	RawText     string    `json:"raw_text"`
	MatchedText string    `json:"matched_text"`
	CreatedAt   time.Time `json:"created_at"`

	// Populated by list queries only.
	PageNum int     `json:"page_num,omitempty"`
	Figure  *Figure `json:"figure,omitempty"`
}

type Tag struct {
	ID        int64  `json:"id"`
	PDFID     int64  `json:"pdf_id"`
	Color     string `json:"color"`
	TagDetail string `json:"tag_detail"`
}

type Highlight struct {
	ID        int64           `json:"id"`
	PageID    int64           `json:"page_id"`
	TagID     *int64          `json:"tag_id"`
	Text      string          `json:"text"`
	Color     string          `json:"color"`
	Rects     json.RawMessage `json:"rects"`
	CreatedAt time.Time       `json:"created_at"`
}

type User struct {
	ID           int64     `json:"user_id"`
	Username     string    `json:"username"`
	Email        *string   `json:"email"`
	Field        *string   `json:"field"`
	PasswordHash string    `json:"-"`
	IsActive     bool      `json:"-"`
	DateJoined   time.Time `json:"date_joined"`
}
