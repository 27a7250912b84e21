package types

type DetailResponse struct {
	Detail string `json:"detail"`
}

type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

type AccessTokenResponse struct {
	Access string `json:"access"`
}

// OCRImportResponse reports the rows written by one OCR import.
type OCRImportResponse struct {
	Detail         string `json:"detail"`
	PDFID          int64  `json:"pdf_id"`
	PagesCreated   int    `json:"pages_created"`
	FiguresCreated int    `json:"figures_created"`
	MatchesCreated int    `json:"matches_created"`
}

// OCRErrorResponse carries the upstream status and body when the OCR
// service answered with something other than success.
type OCRErrorResponse struct {
	Detail    string  `json:"detail"`
	OCRStatus *int    `json:"ocr_status,omitempty"`
	OCRRaw    *string `json:"ocr_raw,omitempty"`
}

type SearchResult struct {
	PDFID      int64   `json:"pdf_id"`
	PageNum    int     `json:"page_num"`
	ChunkIndex int     `json:"chunk_index"`
	Content    string  `json:"content"`
	Score      float32 `json:"score,omitempty"`
}
