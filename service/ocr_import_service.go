package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cmdf/pdfnote-be/logger"
	"github.com/cmdf/pdfnote-be/repository"
	"github.com/cmdf/pdfnote-be/types"
	"github.com/rs/zerolog"
)

const ocrImportDetail = "OCR result imported"

type ImportOptions struct {
	// Replace deletes the document's existing pages, and everything hanging
	// off them, in the same transaction before inserting.
	Replace bool
}

type OCRImportService interface {
	// Import runs the OCR service against the stored document and saves
	// its output.
	Import(ctx context.Context, userID, pdfID int64, opts ImportOptions) (*types.OCRImportResponse, error)
	// ImportPayload saves an OCR response obtained elsewhere.
	ImportPayload(ctx context.Context, userID, pdfID int64, body []byte, opts ImportOptions) (*types.OCRImportResponse, error)
}

// URLPresigner hands out temporary read URLs for stored objects.
type URLPresigner interface {
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

type ocrImportService struct {
	pdfRepo    repository.PDFRepo
	ocrRepo    repository.OCRRepo
	presigner  URLPresigner
	ocr        OCRClient
	locker     ImportLocker
	indexer    PageIndexer
	presignTTL time.Duration
	log        zerolog.Logger
}

// NewOCRImportService wires the importer. locker and indexer may be nil.
func NewOCRImportService(
	pdfRepo repository.PDFRepo,
	ocrRepo repository.OCRRepo,
	presigner URLPresigner,
	ocr OCRClient,
	locker ImportLocker,
	indexer PageIndexer,
	presignTTL time.Duration,
) OCRImportService {
	if locker == nil {
		locker = NoopImportLocker()
	}
	if presignTTL <= 0 {
		presignTTL = 5 * time.Minute
	}
	return &ocrImportService{
		pdfRepo:    pdfRepo,
		ocrRepo:    ocrRepo,
		presigner:  presigner,
		ocr:        ocr,
		locker:     locker,
		indexer:    indexer,
		presignTTL: presignTTL,
		log:        logger.WithComponent("ocr_import"),
	}
}

func (s *ocrImportService) Import(ctx context.Context, userID, pdfID int64, opts ImportOptions) (resp *types.OCRImportResponse, err error) {
	defer s.observe(time.Now(), &err)

	pdf, err := s.loadPDF(ctx, userID, pdfID)
	if err != nil {
		return nil, err
	}
	if pdf.S3Key == "" {
		return nil, fmt.Errorf("%w: document has no stored file", ErrInvalidState)
	}

	release, err := s.locker.Acquire(ctx, pdf.ID)
	if err != nil {
		return nil, err
	}
	defer release()

	fileURL, err := s.presigner.PresignGet(ctx, pdf.S3Key, s.presignTTL)
	if err != nil {
		// A presign failure is local; it must not look like a storage 403.
		return nil, fmt.Errorf("failed to presign document url: %v", err)
	}

	body, err := s.ocr.Analyze(ctx, fileURL)
	if err != nil {
		return nil, err
	}

	result, err := NormalizeOCRPayload(body)
	if err != nil {
		s.log.Error().Err(err).Int64("pdf_id", pdf.ID).Str("body", truncateString(string(body), 2000)).Msg("unusable ocr payload")
		return nil, err
	}

	return s.reconcile(ctx, pdf, result, opts)
}

func (s *ocrImportService) ImportPayload(ctx context.Context, userID, pdfID int64, body []byte, opts ImportOptions) (resp *types.OCRImportResponse, err error) {
	defer s.observe(time.Now(), &err)

	pdf, err := s.loadPDF(ctx, userID, pdfID)
	if err != nil {
		return nil, err
	}

	release, err := s.locker.Acquire(ctx, pdf.ID)
	if err != nil {
		return nil, err
	}
	defer release()

	result, err := NormalizeOCRPayload(body)
	if err != nil {
		return nil, err
	}
	return s.reconcile(ctx, pdf, result, opts)
}

func (s *ocrImportService) loadPDF(ctx context.Context, userID, pdfID int64) (*types.PDF, error) {
	pdf, err := s.pdfRepo.GetPDFForOwner(ctx, pdfID, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: pdf %d", ErrNotFound, pdfID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load pdf: %w", err)
	}
	return pdf, nil
}

// reconcile writes pages, then figures, then matches in one transaction.
func (s *ocrImportService) reconcile(ctx context.Context, pdf *types.PDF, result *types.OCRResult, opts ImportOptions) (*types.OCRImportResponse, error) {
	resp := &types.OCRImportResponse{
		Detail: ocrImportDetail,
		PDFID:  pdf.ID,
	}
	var (
		createdPages    []*types.Page
		matchesInserted int
	)

	err := s.ocrRepo.WithTx(ctx, func(tx repository.OCRTx) error {
		if opts.Replace {
			deleted, err := tx.DeletePages(ctx, pdf.ID)
			if err != nil {
				return fmt.Errorf("delete previous pages: %w", err)
			}
			s.log.Info().Int64("pdf_id", pdf.ID).Int64("pages_deleted", deleted).Msg("replacing previous ocr result")
		}

		// Later pages with the same number shadow earlier ones.
		pagesByNum := make(map[int]*types.Page, len(result.Pages))
		for _, p := range result.Pages {
			if !p.PageNum.Valid {
				continue
			}
			page := &types.Page{
				PDFID:   pdf.ID,
				PageNum: p.PageNum.Value,
				Text:    joinText(p.Text),
			}
			if err := tx.CreatePage(ctx, page); err != nil {
				return fmt.Errorf("create page %d: %w", page.PageNum, err)
			}
			pagesByNum[page.PageNum] = page
			createdPages = append(createdPages, page)
		}
		resp.PagesCreated = len(createdPages)

		figures := make(map[figureKey]*types.Figure, len(result.Figures))
		for _, f := range result.Figures {
			if !f.PageNum.Valid {
				continue
			}
			page, ok := pagesByNum[f.PageNum.Value]
			if !ok {
				continue
			}
			stored, _ := normalizeFigureBox(f.FigureBox)
			figure := &types.Figure{
				PageID:     page.ID,
				FigureType: joinText(f.FigureType),
				FigureBox:  stored,
			}
			if err := tx.CreateFigure(ctx, figure); err != nil {
				return fmt.Errorf("create figure on page %d: %w", page.PageNum, err)
			}
			resp.FiguresCreated++
			if box, ok := boxKey(f.FigureBox); ok {
				figures[figureKey{page: page.PageNum, box: box}] = figure
			}
		}

		for _, m := range result.Matches {
			if !m.PageNum.Valid {
				continue
			}
			page, ok := pagesByNum[m.PageNum.Value]
			if !ok {
				continue
			}
			figure := resolveFigure(figures, m.FigurePage, m.FigureBox)
			if figure == nil {
				continue
			}
			match := &types.TextFigureMatch{
				PageID:      page.ID,
				FigureID:    figure.ID,
				RawText:     joinText(m.RawText),
				MatchedText: joinText(m.AssociatedText()),
			}
			if err := tx.CreateMatch(ctx, match); err != nil {
				return fmt.Errorf("create match on page %d: %w", page.PageNum, err)
			}
			matchesInserted++
		}

		count, err := tx.CountMatches(ctx, pdf.ID)
		if err != nil {
			return fmt.Errorf("count matches: %w", err)
		}
		resp.MatchesCreated = count
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	ocrRowsCreated.WithLabelValues("pages").Add(float64(resp.PagesCreated))
	ocrRowsCreated.WithLabelValues("figures").Add(float64(resp.FiguresCreated))
	ocrRowsCreated.WithLabelValues("matches").Add(float64(matchesInserted))

	s.log.Info().
		Int64("pdf_id", pdf.ID).
		Int("pages_created", resp.PagesCreated).
		Int("figures_created", resp.FiguresCreated).
		Int("matches_created", resp.MatchesCreated).
		Bool("replace", opts.Replace).
		Msg("ocr result imported")

	if s.indexer != nil && len(createdPages) > 0 {
		go s.indexPages(context.WithoutCancel(ctx), pdf, createdPages, opts.Replace)
	}

	return resp, nil
}

// figurePageOffsets is the lookup order used when OCR reports a figure
// page that is off by one from where the figure was detected.
var figurePageOffsets = []int{0, 1, -1}

func resolveFigure(figures map[figureKey]*types.Figure, figurePage types.PageNumber, rawBox []byte) *types.Figure {
	if !figurePage.Valid {
		return nil
	}
	box, ok := boxKey(rawBox)
	if !ok {
		return nil
	}
	for _, off := range figurePageOffsets {
		if fig, ok := figures[figureKey{page: figurePage.Value + off, box: box}]; ok {
			return fig
		}
	}
	return nil
}

func (s *ocrImportService) indexPages(ctx context.Context, pdf *types.PDF, pages []*types.Page, replace bool) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	if err := s.indexer.IndexPages(ctx, pdf, pages, replace); err != nil {
		s.log.Error().Err(err).Int64("pdf_id", pdf.ID).Msg("failed to index pages")
	}
}

func (s *ocrImportService) observe(start time.Time, errp *error) {
	ocrImportDuration.Observe(time.Since(start).Seconds())
	ocrImportsTotal.WithLabelValues(importOutcome(*errp)).Inc()
}

func importOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrImportInProgress):
		return "in_progress"
	case errors.Is(err, ErrUpstreamUnavailable):
		return "upstream_error"
	case errors.Is(err, ErrMalformedUpstreamResponse):
		return "malformed_response"
	case errors.Is(err, ErrPersistence):
		return "persistence_error"
	default:
		return "error"
	}
}
