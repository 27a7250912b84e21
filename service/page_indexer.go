package service

import (
	"context"
	"fmt"

	"github.com/cmdf/pdfnote-be/database"
	"github.com/cmdf/pdfnote-be/types"
)

// PageIndexer keeps OCR page text searchable for chat context.
type PageIndexer interface {
	IndexPages(ctx context.Context, pdf *types.PDF, pages []*types.Page, replace bool) error
	Search(ctx context.Context, pdfID int64, query string, limit int) ([]types.SearchResult, error)
}

type VectorPageIndexer struct {
	store   database.ChunkStore
	chunker *PDFService
}

func NewVectorPageIndexer(store database.ChunkStore, chunker *PDFService) *VectorPageIndexer {
	return &VectorPageIndexer{store: store, chunker: chunker}
}

func (i *VectorPageIndexer) IndexPages(ctx context.Context, pdf *types.PDF, pages []*types.Page, replace bool) error {
	if replace {
		if err := i.store.DeleteByPDF(ctx, pdf.ID); err != nil {
			return err
		}
	}
	chunks := i.chunker.ChunkPages(pdf, pages)
	if len(chunks) == 0 {
		return nil
	}
	if err := i.store.BatchInsertChunks(ctx, chunks); err != nil {
		return fmt.Errorf("failed to index %d chunks: %w", len(chunks), err)
	}
	return nil
}

func (i *VectorPageIndexer) Search(ctx context.Context, pdfID int64, query string, limit int) ([]types.SearchResult, error) {
	return i.store.SearchChunks(ctx, pdfID, query, limit)
}
