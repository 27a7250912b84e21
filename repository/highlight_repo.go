package repository

import (
	"context"
	"time"

	"github.com/cmdf/pdfnote-be/types"
)

// HighlightRepo covers tags and highlights. Every lookup is scoped to the
// owner of the parent document.
type HighlightRepo interface {
	ListTags(ctx context.Context, userID, pdfID int64) ([]*types.Tag, error)
	GetTag(ctx context.Context, userID, id int64) (*types.Tag, error)
	CreateTag(ctx context.Context, tag *types.Tag) error
	UpdateTag(ctx context.Context, tag *types.Tag) error
	DeleteTag(ctx context.Context, userID, id int64) error

	ListHighlights(ctx context.Context, userID, pageID int64) ([]*types.Highlight, error)
	GetHighlight(ctx context.Context, userID, id int64) (*types.Highlight, error)
	CreateHighlight(ctx context.Context, h *types.Highlight) error
	UpdateHighlight(ctx context.Context, h *types.Highlight) error
	DeleteHighlight(ctx context.Context, userID, id int64) error
}

type highlightRepo struct {
	db DBTX
}

func NewHighlightRepo(db DBTX) HighlightRepo {
	return &highlightRepo{db: db}
}

func (r *highlightRepo) ListTags(ctx context.Context, userID, pdfID int64) ([]*types.Tag, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT t.id, t.pdf_id, t.color, t.tag_detail FROM tags t JOIN pdfs d ON d.id = t.pdf_id
		 WHERE d.user_id = $1 AND ($2::bigint = 0 OR t.pdf_id = $2) ORDER BY t.id`, userID, pdfID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	tags := make([]*types.Tag, 0)
	for rows.Next() {
		var t types.Tag
		if err := rows.Scan(&t.ID, &t.PDFID, &t.Color, &t.TagDetail); err != nil {
			return nil, err
		}
		tags = append(tags, &t)
	}
	return tags, rows.Err()
}

func (r *highlightRepo) GetTag(ctx context.Context, userID, id int64) (*types.Tag, error) {
	var t types.Tag
	err := r.db.QueryRowContext(ctx,
		`SELECT t.id, t.pdf_id, t.color, t.tag_detail FROM tags t JOIN pdfs d ON d.id = t.pdf_id
		 WHERE t.id = $1 AND d.user_id = $2`, id, userID,
	).Scan(&t.ID, &t.PDFID, &t.Color, &t.TagDetail)
	if err != nil {
		return nil, mapError(err)
	}
	return &t, nil
}

func (r *highlightRepo) CreateTag(ctx context.Context, tag *types.Tag) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO tags (pdf_id, color, tag_detail) VALUES ($1, $2, $3) RETURNING id`,
		tag.PDFID, tag.Color, tag.TagDetail,
	).Scan(&tag.ID)
	return mapError(err)
}

func (r *highlightRepo) UpdateTag(ctx context.Context, tag *types.Tag) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE tags SET color = $2, tag_detail = $3 WHERE id = $1`, tag.ID, tag.Color, tag.TagDetail)
	if err != nil {
		return mapError(err)
	}
	return requireAffected(res)
}

func (r *highlightRepo) DeleteTag(ctx context.Context, userID, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM tags t USING pdfs d WHERE t.pdf_id = d.id AND t.id = $1 AND d.user_id = $2`, id, userID)
	if err != nil {
		return mapError(err)
	}
	return requireAffected(res)
}

const highlightSelect = `SELECT h.id, h.page_id, h.tag_id, h.text, h.color, h.rects, h.created_at
	FROM highlights h JOIN pdf_pages p ON p.id = h.page_id JOIN pdfs d ON d.id = p.pdf_id`

func scanHighlight(row interface{ Scan(...interface{}) error }) (*types.Highlight, error) {
	var (
		h     types.Highlight
		tagID *int64
		rects []byte
	)
	if err := row.Scan(&h.ID, &h.PageID, &tagID, &h.Text, &h.Color, &rects, &h.CreatedAt); err != nil {
		return nil, mapError(err)
	}
	h.TagID = tagID
	h.Rects = rawOrNull(rects)
	return &h, nil
}

func (r *highlightRepo) ListHighlights(ctx context.Context, userID, pageID int64) ([]*types.Highlight, error) {
	rows, err := r.db.QueryContext(ctx,
		highlightSelect+` WHERE d.user_id = $1 AND ($2::bigint = 0 OR h.page_id = $2) ORDER BY h.id`, userID, pageID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	highlights := make([]*types.Highlight, 0)
	for rows.Next() {
		h, err := scanHighlight(rows)
		if err != nil {
			return nil, err
		}
		highlights = append(highlights, h)
	}
	return highlights, rows.Err()
}

func (r *highlightRepo) GetHighlight(ctx context.Context, userID, id int64) (*types.Highlight, error) {
	row := r.db.QueryRowContext(ctx, highlightSelect+` WHERE h.id = $1 AND d.user_id = $2`, id, userID)
	return scanHighlight(row)
}

func (r *highlightRepo) CreateHighlight(ctx context.Context, h *types.Highlight) error {
	if len(h.Rects) == 0 {
		h.Rects = []byte("[]")
	}
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now().UTC()
	}
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO highlights (page_id, tag_id, text, color, rects, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		h.PageID, h.TagID, h.Text, h.Color, string(h.Rects), h.CreatedAt,
	).Scan(&h.ID)
	return mapError(err)
}

func (r *highlightRepo) UpdateHighlight(ctx context.Context, h *types.Highlight) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE highlights SET tag_id = $2, text = $3, color = $4, rects = $5 WHERE id = $1`,
		h.ID, h.TagID, h.Text, h.Color, string(h.Rects))
	if err != nil {
		return mapError(err)
	}
	return requireAffected(res)
}

func (r *highlightRepo) DeleteHighlight(ctx context.Context, userID, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM highlights h USING pdf_pages p, pdfs d
		 WHERE h.page_id = p.id AND p.pdf_id = d.id AND h.id = $1 AND d.user_id = $2`, id, userID)
	if err != nil {
		return mapError(err)
	}
	return requireAffected(res)
}
