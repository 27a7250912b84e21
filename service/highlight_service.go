package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cmdf/pdfnote-be/repository"
	"github.com/cmdf/pdfnote-be/types"
)

type HighlightService interface {
	ListTags(ctx context.Context, userID, pdfID int64) ([]*types.Tag, error)
	CreateTag(ctx context.Context, userID int64, req *types.CreateTagRequest) (*types.Tag, error)
	UpdateTag(ctx context.Context, userID, id int64, req *types.UpdateTagRequest) (*types.Tag, error)
	DeleteTag(ctx context.Context, userID, id int64) error

	ListHighlights(ctx context.Context, userID, pageID int64) ([]*types.Highlight, error)
	CreateHighlight(ctx context.Context, userID int64, req *types.CreateHighlightRequest) (*types.Highlight, error)
	UpdateHighlight(ctx context.Context, userID, id int64, req *types.UpdateHighlightRequest) (*types.Highlight, error)
	DeleteHighlight(ctx context.Context, userID, id int64) error
}

type highlightService struct {
	repo    repository.HighlightRepo
	pdfRepo repository.PDFRepo
	ocrRepo repository.OCRRepo
}

func NewHighlightService(repo repository.HighlightRepo, pdfRepo repository.PDFRepo, ocrRepo repository.OCRRepo) HighlightService {
	return &highlightService{
		repo:    repo,
		pdfRepo: pdfRepo,
		ocrRepo: ocrRepo,
	}
}

func (s *highlightService) ListTags(ctx context.Context, userID, pdfID int64) ([]*types.Tag, error) {
	tags, err := s.repo.ListTags(ctx, userID, pdfID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	return tags, nil
}

func (s *highlightService) CreateTag(ctx context.Context, userID int64, req *types.CreateTagRequest) (*types.Tag, error) {
	if _, err := s.pdfRepo.GetPDFForOwner(ctx, req.PDFID, userID); err != nil {
		return nil, notFoundOr(err, "pdf %d", req.PDFID)
	}
	tag := &types.Tag{
		PDFID:     req.PDFID,
		Color:     req.Color,
		TagDetail: req.TagDetail,
	}
	if err := s.repo.CreateTag(ctx, tag); err != nil {
		return nil, fmt.Errorf("failed to create tag: %w", err)
	}
	return tag, nil
}

func (s *highlightService) UpdateTag(ctx context.Context, userID, id int64, req *types.UpdateTagRequest) (*types.Tag, error) {
	tag, err := s.repo.GetTag(ctx, userID, id)
	if err != nil {
		return nil, notFoundOr(err, "tag %d", id)
	}
	if req.Color != nil {
		tag.Color = *req.Color
	}
	if req.TagDetail != nil {
		tag.TagDetail = *req.TagDetail
	}
	if err := s.repo.UpdateTag(ctx, tag); err != nil {
		return nil, notFoundOr(err, "tag %d", id)
	}
	return tag, nil
}

func (s *highlightService) DeleteTag(ctx context.Context, userID, id int64) error {
	return notFoundOr(s.repo.DeleteTag(ctx, userID, id), "tag %d", id)
}

func (s *highlightService) ListHighlights(ctx context.Context, userID, pageID int64) ([]*types.Highlight, error) {
	highlights, err := s.repo.ListHighlights(ctx, userID, pageID)
	if err != nil {
		return nil, fmt.Errorf("failed to list highlights: %w", err)
	}
	return highlights, nil
}

func (s *highlightService) CreateHighlight(ctx context.Context, userID int64, req *types.CreateHighlightRequest) (*types.Highlight, error) {
	if err := s.checkPage(ctx, userID, req.PageID); err != nil {
		return nil, err
	}
	if err := s.checkTag(ctx, userID, req.TagID); err != nil {
		return nil, err
	}
	if err := validateRects(req.Rects); err != nil {
		return nil, err
	}

	h := &types.Highlight{
		PageID: req.PageID,
		TagID:  nonZero(req.TagID),
		Text:   req.Text,
		Color:  req.Color,
		Rects:  req.Rects,
	}
	if err := s.repo.CreateHighlight(ctx, h); err != nil {
		return nil, fmt.Errorf("failed to create highlight: %w", err)
	}
	return h, nil
}

// UpdateHighlight applies the fields present in req. A tag_id of 0 detaches
// the highlight from its tag.
func (s *highlightService) UpdateHighlight(ctx context.Context, userID, id int64, req *types.UpdateHighlightRequest) (*types.Highlight, error) {
	h, err := s.repo.GetHighlight(ctx, userID, id)
	if err != nil {
		return nil, notFoundOr(err, "highlight %d", id)
	}
	if req.TagID != nil {
		if err := s.checkTag(ctx, userID, req.TagID); err != nil {
			return nil, err
		}
		h.TagID = nonZero(req.TagID)
	}
	if req.Text != nil {
		h.Text = *req.Text
	}
	if req.Color != nil {
		h.Color = *req.Color
	}
	if len(req.Rects) > 0 {
		if err := validateRects(req.Rects); err != nil {
			return nil, err
		}
		h.Rects = req.Rects
	}
	if err := s.repo.UpdateHighlight(ctx, h); err != nil {
		return nil, notFoundOr(err, "highlight %d", id)
	}
	return h, nil
}

func (s *highlightService) DeleteHighlight(ctx context.Context, userID, id int64) error {
	return notFoundOr(s.repo.DeleteHighlight(ctx, userID, id), "highlight %d", id)
}

func (s *highlightService) checkPage(ctx context.Context, userID, pageID int64) error {
	owner, err := s.ocrRepo.PageOwner(ctx, pageID)
	if err != nil {
		return notFoundOr(err, "page %d", pageID)
	}
	if owner != userID {
		return fmt.Errorf("%w: page %d", ErrNotFound, pageID)
	}
	return nil
}

func (s *highlightService) checkTag(ctx context.Context, userID int64, tagID *int64) error {
	if tagID == nil || *tagID == 0 {
		return nil
	}
	if _, err := s.repo.GetTag(ctx, userID, *tagID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return validationError("tag %d does not exist", *tagID)
		}
		return fmt.Errorf("failed to load tag: %w", err)
	}
	return nil
}

func validateRects(raw json.RawMessage) error {
	if len(raw) == 0 {
		return nil
	}
	var rects []json.RawMessage
	if err := json.Unmarshal(raw, &rects); err != nil {
		return validationError("rects must be a list")
	}
	return nil
}

func nonZero(id *int64) *int64 {
	if id == nil || *id == 0 {
		return nil
	}
	return id
}

// notFoundOr maps repository.ErrNotFound to ErrNotFound and wraps anything
// else. A nil err stays nil.
func notFoundOr(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	what := fmt.Sprintf(format, args...)
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	}
	return fmt.Errorf("failed to access %s: %w", what, err)
}
