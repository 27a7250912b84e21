package service

import (
	"context"
	"testing"

	"github.com/cmdf/pdfnote-be/repository"
	"github.com/cmdf/pdfnote-be/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeHighlightRepo scopes rows by owner through the shared pdf and page
// fakes.
type fakeHighlightRepo struct {
	pdfs       *fakePDFRepo
	ocr        *fakeOCRRepo
	nextID     int64
	tags       map[int64]*types.Tag
	highlights map[int64]*types.Highlight
}

func (r *fakeHighlightRepo) ownsPDF(userID, pdfID int64) bool {
	_, err := r.pdfs.GetPDFForOwner(context.Background(), pdfID, userID)
	return err == nil
}

func (r *fakeHighlightRepo) ListTags(_ context.Context, userID, pdfID int64) ([]*types.Tag, error) {
	out := make([]*types.Tag, 0)
	for _, t := range r.tags {
		if r.ownsPDF(userID, t.PDFID) && (pdfID == 0 || t.PDFID == pdfID) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *fakeHighlightRepo) GetTag(_ context.Context, userID, id int64) (*types.Tag, error) {
	t, ok := r.tags[id]
	if !ok || !r.ownsPDF(userID, t.PDFID) {
		return nil, repository.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *fakeHighlightRepo) CreateTag(_ context.Context, tag *types.Tag) error {
	r.nextID++
	tag.ID = r.nextID
	cp := *tag
	r.tags[tag.ID] = &cp
	return nil
}

func (r *fakeHighlightRepo) UpdateTag(_ context.Context, tag *types.Tag) error {
	cp := *tag
	r.tags[tag.ID] = &cp
	return nil
}

func (r *fakeHighlightRepo) DeleteTag(ctx context.Context, userID, id int64) error {
	if _, err := r.GetTag(ctx, userID, id); err != nil {
		return err
	}
	delete(r.tags, id)
	for _, h := range r.highlights {
		if h.TagID != nil && *h.TagID == id {
			h.TagID = nil
		}
	}
	return nil
}

func (r *fakeHighlightRepo) ownsPage(userID, pageID int64) bool {
	owner, err := r.ocr.PageOwner(context.Background(), pageID)
	return err == nil && owner == userID
}

func (r *fakeHighlightRepo) ListHighlights(_ context.Context, userID, pageID int64) ([]*types.Highlight, error) {
	out := make([]*types.Highlight, 0)
	for _, h := range r.highlights {
		if r.ownsPage(userID, h.PageID) && (pageID == 0 || h.PageID == pageID) {
			out = append(out, h)
		}
	}
	return out, nil
}

func (r *fakeHighlightRepo) GetHighlight(_ context.Context, userID, id int64) (*types.Highlight, error) {
	h, ok := r.highlights[id]
	if !ok || !r.ownsPage(userID, h.PageID) {
		return nil, repository.ErrNotFound
	}
	cp := *h
	return &cp, nil
}

func (r *fakeHighlightRepo) CreateHighlight(_ context.Context, h *types.Highlight) error {
	if len(h.Rects) == 0 {
		h.Rects = []byte("[]")
	}
	r.nextID++
	h.ID = r.nextID
	cp := *h
	r.highlights[h.ID] = &cp
	return nil
}

func (r *fakeHighlightRepo) UpdateHighlight(_ context.Context, h *types.Highlight) error {
	cp := *h
	r.highlights[h.ID] = &cp
	return nil
}

func (r *fakeHighlightRepo) DeleteHighlight(ctx context.Context, userID, id int64) error {
	if _, err := r.GetHighlight(ctx, userID, id); err != nil {
		return err
	}
	delete(r.highlights, id)
	return nil
}

type highlightFixture struct {
	repo   *fakeHighlightRepo
	svc    HighlightService
	pageID int64
}

func newHighlightFixture(t *testing.T) *highlightFixture {
	t.Helper()
	pdfs := newFakePDFRepo(&types.PDF{ID: docID, UserID: ownerID, Title: "Lecture"})
	ocr := &fakeOCRRepo{owners: map[int64]int64{docID: ownerID}}
	pages, err := ocr.seedPages(docID, "page one")
	require.NoError(t, err)

	repo := &fakeHighlightRepo{
		pdfs:       pdfs,
		ocr:        ocr,
		tags:       make(map[int64]*types.Tag),
		highlights: make(map[int64]*types.Highlight),
	}
	return &highlightFixture{
		repo:   repo,
		svc:    NewHighlightService(repo, pdfs, ocr),
		pageID: pages[0].ID,
	}
}

func TestTagLifecycle(t *testing.T) {
	f := newHighlightFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateTag(ctx, 2, &types.CreateTagRequest{PDFID: docID, Color: "red"})
	assert.ErrorIs(t, err, ErrNotFound)

	tag, err := f.svc.CreateTag(ctx, ownerID, &types.CreateTagRequest{PDFID: docID, Color: "red", TagDetail: "important"})
	require.NoError(t, err)

	blue := "blue"
	updated, err := f.svc.UpdateTag(ctx, ownerID, tag.ID, &types.UpdateTagRequest{Color: &blue})
	require.NoError(t, err)
	assert.Equal(t, "blue", updated.Color)
	assert.Equal(t, "important", updated.TagDetail)

	_, err = f.svc.UpdateTag(ctx, 2, tag.ID, &types.UpdateTagRequest{Color: &blue})
	assert.ErrorIs(t, err, ErrNotFound)

	tags, err := f.svc.ListTags(ctx, ownerID, docID)
	require.NoError(t, err)
	assert.Len(t, tags, 1)

	require.NoError(t, f.svc.DeleteTag(ctx, ownerID, tag.ID))
	assert.ErrorIs(t, f.svc.DeleteTag(ctx, ownerID, tag.ID), ErrNotFound)
}

func TestHighlightLifecycle(t *testing.T) {
	f := newHighlightFixture(t)
	ctx := context.Background()
	tag, err := f.svc.CreateTag(ctx, ownerID, &types.CreateTagRequest{PDFID: docID, Color: "red"})
	require.NoError(t, err)

	_, err = f.svc.CreateHighlight(ctx, 2, &types.CreateHighlightRequest{PageID: f.pageID})
	assert.ErrorIs(t, err, ErrNotFound)

	missingTag := int64(999)
	_, err = f.svc.CreateHighlight(ctx, ownerID, &types.CreateHighlightRequest{PageID: f.pageID, TagID: &missingTag})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.CreateHighlight(ctx, ownerID, &types.CreateHighlightRequest{PageID: f.pageID, Rects: []byte(`{"x":1}`)})
	assert.ErrorIs(t, err, ErrValidation)

	h, err := f.svc.CreateHighlight(ctx, ownerID, &types.CreateHighlightRequest{
		PageID: f.pageID,
		TagID:  &tag.ID,
		Text:   "mitochondria",
		Color:  "yellow",
		Rects:  []byte(`[{"x":1,"y":2,"w":3,"h":4}]`),
	})
	require.NoError(t, err)
	require.NotNil(t, h.TagID)

	detach := int64(0)
	text := "mitochondrion"
	updated, err := f.svc.UpdateHighlight(ctx, ownerID, h.ID, &types.UpdateHighlightRequest{TagID: &detach, Text: &text})
	require.NoError(t, err)
	assert.Nil(t, updated.TagID)
	assert.Equal(t, "mitochondrion", updated.Text)
	assert.JSONEq(t, `[{"x":1,"y":2,"w":3,"h":4}]`, string(updated.Rects))

	list, err := f.svc.ListHighlights(ctx, ownerID, f.pageID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, f.svc.DeleteHighlight(ctx, ownerID, h.ID))
	assert.ErrorIs(t, f.svc.DeleteHighlight(ctx, ownerID, h.ID), ErrNotFound)
}
