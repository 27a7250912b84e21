package repository

import (
	"context"
	"time"

	"github.com/cmdf/pdfnote-be/types"
)

type PDFRepo interface {
	CreatePDF(ctx context.Context, pdf *types.PDF) error
	// GetPDFForOwner returns ErrNotFound when the document does not exist or
	// belongs to another user.
	GetPDFForOwner(ctx context.Context, id, userID int64) (*types.PDF, error)
	ListPDFsByOwner(ctx context.Context, userID int64) ([]*types.PDF, error)
}

type pdfRepo struct {
	db DBTX
}

func NewPDFRepo(db DBTX) PDFRepo {
	return &pdfRepo{db: db}
}

func (r *pdfRepo) CreatePDF(ctx context.Context, pdf *types.PDF) error {
	if pdf.CreatedAt.IsZero() {
		pdf.CreatedAt = time.Now().UTC()
	}
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO pdfs (user_id, title, s3_key, s3_url, created_at)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		pdf.UserID, pdf.Title, pdf.S3Key, pdf.S3URL, pdf.CreatedAt,
	).Scan(&pdf.ID)
	return mapError(err)
}

func (r *pdfRepo) GetPDFForOwner(ctx context.Context, id, userID int64) (*types.PDF, error) {
	var pdf types.PDF
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, title, s3_key, s3_url, created_at FROM pdfs WHERE id = $1 AND user_id = $2`,
		id, userID,
	).Scan(&pdf.ID, &pdf.UserID, &pdf.Title, &pdf.S3Key, &pdf.S3URL, &pdf.CreatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &pdf, nil
}

func (r *pdfRepo) ListPDFsByOwner(ctx context.Context, userID int64) ([]*types.PDF, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, title, s3_key, s3_url, created_at FROM pdfs WHERE user_id = $1 ORDER BY created_at DESC, id DESC`,
		userID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	pdfs := make([]*types.PDF, 0)
	for rows.Next() {
		var pdf types.PDF
		if err := rows.Scan(&pdf.ID, &pdf.UserID, &pdf.Title, &pdf.S3Key, &pdf.S3URL, &pdf.CreatedAt); err != nil {
			return nil, err
		}
		pdfs = append(pdfs, &pdf)
	}
	return pdfs, rows.Err()
}
