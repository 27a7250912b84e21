package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/cmdf/pdfnote-be/database"
	"github.com/cmdf/pdfnote-be/types"
)

// OCRTx writes the rows produced by one OCR import. All calls share a
// single transaction.
type OCRTx interface {
	DeletePages(ctx context.Context, pdfID int64) (int64, error)
	CreatePage(ctx context.Context, page *types.Page) error
	CreateFigure(ctx context.Context, figure *types.Figure) error
	CreateMatch(ctx context.Context, match *types.TextFigureMatch) error
	CountMatches(ctx context.Context, pdfID int64) (int, error)
}

type OCRRepo interface {
	// WithTx commits when fn returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(tx OCRTx) error) error
	ListPages(ctx context.Context, pdfID int64) ([]*types.Page, error)
	ListFigures(ctx context.Context, pdfID int64) ([]*types.Figure, error)
	ListMatchedTexts(ctx context.Context, pdfID int64) ([]*types.TextFigureMatch, error)
	SearchPages(ctx context.Context, pdfID int64, query string, limit int) ([]*types.Page, error)
	// PageOwner returns the owner of the document a page belongs to.
	PageOwner(ctx context.Context, pageID int64) (int64, error)
}

type ocrRepo struct {
	db *sql.DB
}

func NewOCRRepo(db *sql.DB) OCRRepo {
	return &ocrRepo{db: db}
}

func (r *ocrRepo) WithTx(ctx context.Context, fn func(tx OCRTx) error) error {
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		return fn(&ocrTx{db: tx})
	})
}

type ocrTx struct {
	db DBTX
}

func (t *ocrTx) DeletePages(ctx context.Context, pdfID int64) (int64, error) {
	res, err := t.db.ExecContext(ctx, `DELETE FROM pdf_pages WHERE pdf_id = $1`, pdfID)
	if err != nil {
		return 0, mapError(err)
	}
	return res.RowsAffected()
}

func (t *ocrTx) CreatePage(ctx context.Context, page *types.Page) error {
	err := t.db.QueryRowContext(ctx,
		`INSERT INTO pdf_pages (pdf_id, page_num, text) VALUES ($1, $2, $3) RETURNING id`,
		page.PDFID, page.PageNum, page.Text,
	).Scan(&page.ID)
	return mapError(err)
}

func (t *ocrTx) CreateFigure(ctx context.Context, figure *types.Figure) error {
	err := t.db.QueryRowContext(ctx,
		`INSERT INTO pdf_figures (page_id, figure_type, figure_box) VALUES ($1, $2, $3) RETURNING id`,
		figure.PageID, figure.FigureType, nullableJSON(figure.FigureBox),
	).Scan(&figure.ID)
	return mapError(err)
}

func (t *ocrTx) CreateMatch(ctx context.Context, match *types.TextFigureMatch) error {
	err := t.db.QueryRowContext(ctx,
		`INSERT INTO matched_texts (page_id, figure_id, raw_text, matched_text) VALUES ($1, $2, $3, $4) RETURNING id, created_at`,
		match.PageID, match.FigureID, match.RawText, match.MatchedText,
	).Scan(&match.ID, &match.CreatedAt)
	return mapError(err)
}

func (t *ocrTx) CountMatches(ctx context.Context, pdfID int64) (int, error) {
	var n int
	err := t.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM matched_texts m JOIN pdf_pages p ON p.id = m.page_id WHERE p.pdf_id = $1`,
		pdfID,
	).Scan(&n)
	return n, mapError(err)
}

func (r *ocrRepo) ListPages(ctx context.Context, pdfID int64) ([]*types.Page, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, pdf_id, page_num, text FROM pdf_pages WHERE pdf_id = $1 ORDER BY page_num, id`, pdfID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()
	return scanPages(rows)
}

func (r *ocrRepo) SearchPages(ctx context.Context, pdfID int64, query string, limit int) ([]*types.Page, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, pdf_id, page_num, text FROM pdf_pages
		 WHERE pdf_id = $1 AND text ILIKE '%' || $2 || '%'
		 ORDER BY page_num, id LIMIT $3`,
		pdfID, query, limit)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()
	return scanPages(rows)
}

func scanPages(rows *sql.Rows) ([]*types.Page, error) {
	pages := make([]*types.Page, 0)
	for rows.Next() {
		var p types.Page
		if err := rows.Scan(&p.ID, &p.PDFID, &p.PageNum, &p.Text); err != nil {
			return nil, err
		}
		pages = append(pages, &p)
	}
	return pages, rows.Err()
}

func (r *ocrRepo) ListFigures(ctx context.Context, pdfID int64) ([]*types.Figure, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT f.id, f.page_id, p.page_num, f.figure_type, f.figure_box
		 FROM pdf_figures f JOIN pdf_pages p ON p.id = f.page_id
		 WHERE p.pdf_id = $1 ORDER BY p.page_num, f.id`, pdfID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	figures := make([]*types.Figure, 0)
	for rows.Next() {
		var (
			f   types.Figure
			box []byte
		)
		if err := rows.Scan(&f.ID, &f.PageID, &f.PageNum, &f.FigureType, &box); err != nil {
			return nil, err
		}
		f.FigureBox = rawOrNull(box)
		figures = append(figures, &f)
	}
	return figures, rows.Err()
}

func (r *ocrRepo) ListMatchedTexts(ctx context.Context, pdfID int64) ([]*types.TextFigureMatch, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT m.id, m.page_id, m.figure_id, m.raw_text, m.matched_text, m.created_at,
		        p.page_num, f.page_id, fp.page_num, f.figure_type, f.figure_box
		 FROM matched_texts m
		 JOIN pdf_pages p ON p.id = m.page_id
		 JOIN pdf_figures f ON f.id = m.figure_id
		 JOIN pdf_pages fp ON fp.id = f.page_id
		 WHERE p.pdf_id = $1 ORDER BY p.page_num, m.id`, pdfID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	matches := make([]*types.TextFigureMatch, 0)
	for rows.Next() {
		var (
			m   types.TextFigureMatch
			f   types.Figure
			box []byte
		)
		if err := rows.Scan(&m.ID, &m.PageID, &m.FigureID, &m.RawText, &m.MatchedText, &m.CreatedAt,
			&m.PageNum, &f.PageID, &f.PageNum, &f.FigureType, &box); err != nil {
			return nil, err
		}
		f.ID = m.FigureID
		f.FigureBox = rawOrNull(box)
		m.Figure = &f
		matches = append(matches, &m)
	}
	return matches, rows.Err()
}

func (r *ocrRepo) PageOwner(ctx context.Context, pageID int64) (int64, error) {
	var userID int64
	err := r.db.QueryRowContext(ctx,
		`SELECT d.user_id FROM pdf_pages p JOIN pdfs d ON d.id = p.pdf_id WHERE p.id = $1`, pageID,
	).Scan(&userID)
	return userID, mapError(err)
}

func rawOrNull(b []byte) json.RawMessage {
	if len(b) == 0 {
		return json.RawMessage("null")
	}
	return json.RawMessage(b)
}
