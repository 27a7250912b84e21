package database

import (
	"context"

	"github.com/cmdf/pdfnote-be/types"
)

// ChunkStore is the vector index used for chat context retrieval.
type ChunkStore interface {
	BatchInsertChunks(ctx context.Context, chunks []types.DocumentChunk) error
	DeleteByPDF(ctx context.Context, pdfID int64) error
	SearchChunks(ctx context.Context, pdfID int64, query string, limit int) ([]types.SearchResult, error)
}

var _ ChunkStore = (*WeaviateStore)(nil)
