package service

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/cmdf/pdfnote-be/logger"
	"github.com/cmdf/pdfnote-be/repository"
	"github.com/cmdf/pdfnote-be/types"
	"github.com/cmdf/pdfnote-be/utils"
	"github.com/rs/zerolog"
)

const defaultSearchLimit = 5

// UploadFile is what multipart.File provides.
type UploadFile interface {
	io.Reader
	io.ReaderAt
	io.Seeker
}

type DocumentUpload struct {
	Title       string
	Filename    string
	ContentType string
	File        UploadFile
	Size        int64
}

type DocumentService interface {
	Upload(ctx context.Context, userID int64, upload *DocumentUpload) (*types.PDF, error)
	List(ctx context.Context, userID int64) ([]*types.PDF, error)
	Get(ctx context.Context, userID, pdfID int64) (*types.PDF, error)
	Pages(ctx context.Context, userID, pdfID int64) ([]*types.Page, error)
	Figures(ctx context.Context, userID, pdfID int64) ([]*types.Figure, error)
	MatchedTexts(ctx context.Context, userID, pdfID int64) ([]*types.TextFigureMatch, error)
	Search(ctx context.Context, userID int64, req *types.SearchRequest) ([]types.SearchResult, error)
}

type documentService struct {
	pdfRepo    repository.PDFRepo
	ocrRepo    repository.OCRRepo
	storage    ObjectStorage
	pdfService *PDFService
	indexer    PageIndexer
	log        zerolog.Logger
}

// NewDocumentService wires document storage. indexer may be nil, in which
// case search falls back to a text match over page content.
func NewDocumentService(
	pdfRepo repository.PDFRepo,
	ocrRepo repository.OCRRepo,
	storage ObjectStorage,
	pdfService *PDFService,
	indexer PageIndexer,
) DocumentService {
	return &documentService{
		pdfRepo:    pdfRepo,
		ocrRepo:    ocrRepo,
		storage:    storage,
		pdfService: pdfService,
		indexer:    indexer,
		log:        logger.WithComponent("documents"),
	}
}

func (s *documentService) Upload(ctx context.Context, userID int64, upload *DocumentUpload) (*types.PDF, error) {
	if upload == nil || upload.File == nil {
		return nil, validationError("file is required")
	}
	info, err := s.pdfService.InspectPDF(upload.File, upload.Size)
	if err != nil {
		return nil, err
	}
	if _, err := upload.File.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to rewind upload: %w", err)
	}

	title := strings.TrimSpace(upload.Title)
	if title == "" {
		title = utils.TitleFromFilename(upload.Filename)
	}
	key := utils.ObjectKey(upload.Filename)

	url, err := s.storage.Upload(ctx, key, upload.File, utils.ContentTypeOrDefault(upload.ContentType))
	if err != nil {
		return nil, err
	}

	doc := &types.PDF{
		UserID: userID,
		Title:  title,
		S3Key:  key,
		S3URL:  url,
	}
	if err := s.pdfRepo.CreatePDF(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to save pdf: %w", err)
	}

	s.log.Info().
		Int64("pdf_id", doc.ID).
		Int64("user_id", userID).
		Str("key", key).
		Int("num_pages", info.NumPages).
		Msg("pdf uploaded")
	return doc, nil
}

func (s *documentService) List(ctx context.Context, userID int64) ([]*types.PDF, error) {
	docs, err := s.pdfRepo.ListPDFsByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pdfs: %w", err)
	}
	return docs, nil
}

func (s *documentService) Get(ctx context.Context, userID, pdfID int64) (*types.PDF, error) {
	doc, err := s.pdfRepo.GetPDFForOwner(ctx, pdfID, userID)
	if err != nil {
		return nil, notFoundOr(err, "pdf %d", pdfID)
	}
	return doc, nil
}

func (s *documentService) Pages(ctx context.Context, userID, pdfID int64) ([]*types.Page, error) {
	if _, err := s.Get(ctx, userID, pdfID); err != nil {
		return nil, err
	}
	pages, err := s.ocrRepo.ListPages(ctx, pdfID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}
	return pages, nil
}

func (s *documentService) Figures(ctx context.Context, userID, pdfID int64) ([]*types.Figure, error) {
	if _, err := s.Get(ctx, userID, pdfID); err != nil {
		return nil, err
	}
	figures, err := s.ocrRepo.ListFigures(ctx, pdfID)
	if err != nil {
		return nil, fmt.Errorf("failed to list figures: %w", err)
	}
	return figures, nil
}

func (s *documentService) MatchedTexts(ctx context.Context, userID, pdfID int64) ([]*types.TextFigureMatch, error) {
	if _, err := s.Get(ctx, userID, pdfID); err != nil {
		return nil, err
	}
	matches, err := s.ocrRepo.ListMatchedTexts(ctx, pdfID)
	if err != nil {
		return nil, fmt.Errorf("failed to list matched texts: %w", err)
	}
	return matches, nil
}

// Search queries the vector index and falls back to a plain text match
// when no index is configured or the index fails.
func (s *documentService) Search(ctx context.Context, userID int64, req *types.SearchRequest) ([]types.SearchResult, error) {
	if _, err := s.Get(ctx, userID, req.PDFID); err != nil {
		return nil, err
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	if s.indexer != nil {
		results, err := s.indexer.Search(ctx, req.PDFID, req.Query, limit)
		if err == nil {
			return results, nil
		}
		s.log.Warn().Err(err).Int64("pdf_id", req.PDFID).Msg("vector search failed, falling back to text search")
	}

	pages, err := s.ocrRepo.SearchPages(ctx, req.PDFID, req.Query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search pages: %w", err)
	}
	results := make([]types.SearchResult, 0, len(pages))
	for _, p := range pages {
		results = append(results, types.SearchResult{
			PDFID:   p.PDFID,
			PageNum: p.PageNum,
			Content: p.Text,
		})
	}
	return results, nil
}
