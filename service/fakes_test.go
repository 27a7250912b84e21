package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/cmdf/pdfnote-be/repository"
	"github.com/cmdf/pdfnote-be/types"
)

type fakePDFRepo struct {
	mu     sync.Mutex
	nextID int64
	pdfs   map[int64]*types.PDF
	err    error
}

func newFakePDFRepo(pdfs ...*types.PDF) *fakePDFRepo {
	r := &fakePDFRepo{pdfs: make(map[int64]*types.PDF), nextID: 100}
	for _, p := range pdfs {
		r.pdfs[p.ID] = p
	}
	return r
}

func (r *fakePDFRepo) CreatePDF(_ context.Context, pdf *types.PDF) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.nextID++
	pdf.ID = r.nextID
	pdf.CreatedAt = time.Now()
	r.pdfs[pdf.ID] = pdf
	return nil
}

func (r *fakePDFRepo) GetPDFForOwner(_ context.Context, id, userID int64) (*types.PDF, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	p, ok := r.pdfs[id]
	if !ok || p.UserID != userID {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *fakePDFRepo) ListPDFsByOwner(_ context.Context, userID int64) ([]*types.PDF, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*types.PDF
	for _, p := range r.pdfs {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

// fakeOCRRepo keeps rows in memory. Writes made inside WithTx only become
// visible when the callback succeeds.
type fakeOCRRepo struct {
	mu      sync.Mutex
	nextID  int64
	pages   []*types.Page
	figures []*types.Figure
	matches []*types.TextFigureMatch
	failOn  string
	owners  map[int64]int64 // pdf id -> user id
}

func (r *fakeOCRRepo) WithTx(ctx context.Context, fn func(tx repository.OCRTx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx := &fakeOCRTx{
		repo:    r,
		nextID:  r.nextID,
		pages:   append([]*types.Page(nil), r.pages...),
		figures: append([]*types.Figure(nil), r.figures...),
		matches: append([]*types.TextFigureMatch(nil), r.matches...),
	}
	if err := fn(tx); err != nil {
		return err
	}
	r.nextID = tx.nextID
	r.pages, r.figures, r.matches = tx.pages, tx.figures, tx.matches
	return nil
}

func (r *fakeOCRRepo) ListPages(_ context.Context, pdfID int64) ([]*types.Page, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*types.Page
	for _, p := range r.pages {
		if p.PDFID == pdfID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *fakeOCRRepo) pageByID(id int64) *types.Page {
	for _, p := range r.pages {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (r *fakeOCRRepo) ListFigures(_ context.Context, pdfID int64) ([]*types.Figure, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*types.Figure
	for _, f := range r.figures {
		if p := r.pageByID(f.PageID); p != nil && p.PDFID == pdfID {
			cp := *f
			cp.PageNum = p.PageNum
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeOCRRepo) ListMatchedTexts(_ context.Context, pdfID int64) ([]*types.TextFigureMatch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*types.TextFigureMatch
	for _, m := range r.matches {
		if p := r.pageByID(m.PageID); p != nil && p.PDFID == pdfID {
			cp := *m
			cp.PageNum = p.PageNum
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeOCRRepo) SearchPages(_ context.Context, pdfID int64, query string, limit int) ([]*types.Page, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*types.Page
	for _, p := range r.pages {
		if p.PDFID == pdfID && strings.Contains(strings.ToLower(p.Text), strings.ToLower(query)) {
			out = append(out, p)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (r *fakeOCRRepo) PageOwner(_ context.Context, pageID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.pageByID(pageID)
	if p == nil {
		return 0, repository.ErrNotFound
	}
	owner, ok := r.owners[p.PDFID]
	if !ok {
		return 0, repository.ErrNotFound
	}
	return owner, nil
}

// seedPages stores one page per text, numbered from 1.
func (r *fakeOCRRepo) seedPages(pdfID int64, texts ...string) ([]*types.Page, error) {
	var pages []*types.Page
	err := r.WithTx(context.Background(), func(tx repository.OCRTx) error {
		for i, text := range texts {
			page := &types.Page{PDFID: pdfID, PageNum: i + 1, Text: text}
			if err := tx.CreatePage(context.Background(), page); err != nil {
				return err
			}
			pages = append(pages, page)
		}
		return nil
	})
	return pages, err
}

func (r *fakeOCRRepo) pagesFor(pdfID int64) []*types.Page {
	pages, _ := r.ListPages(context.Background(), pdfID)
	return pages
}

type fakeOCRTx struct {
	repo    *fakeOCRRepo
	nextID  int64
	pages   []*types.Page
	figures []*types.Figure
	matches []*types.TextFigureMatch
}

func (t *fakeOCRTx) id() int64 {
	t.nextID++
	return t.nextID
}

func (t *fakeOCRTx) DeletePages(_ context.Context, pdfID int64) (int64, error) {
	gone := make(map[int64]bool)
	var kept []*types.Page
	for _, p := range t.pages {
		if p.PDFID == pdfID {
			gone[p.ID] = true
			continue
		}
		kept = append(kept, p)
	}
	t.pages = kept

	goneFigures := make(map[int64]bool)
	var keptFigures []*types.Figure
	for _, f := range t.figures {
		if gone[f.PageID] {
			goneFigures[f.ID] = true
			continue
		}
		keptFigures = append(keptFigures, f)
	}
	t.figures = keptFigures

	var keptMatches []*types.TextFigureMatch
	for _, m := range t.matches {
		if gone[m.PageID] || goneFigures[m.FigureID] {
			continue
		}
		keptMatches = append(keptMatches, m)
	}
	t.matches = keptMatches
	return int64(len(gone)), nil
}

func (t *fakeOCRTx) CreatePage(_ context.Context, page *types.Page) error {
	if t.repo.failOn == "page" {
		return errors.New("insert page failed")
	}
	page.ID = t.id()
	cp := *page
	t.pages = append(t.pages, &cp)
	return nil
}

func (t *fakeOCRTx) CreateFigure(_ context.Context, figure *types.Figure) error {
	if t.repo.failOn == "figure" {
		return errors.New("insert figure failed")
	}
	figure.ID = t.id()
	cp := *figure
	t.figures = append(t.figures, &cp)
	return nil
}

func (t *fakeOCRTx) CreateMatch(_ context.Context, match *types.TextFigureMatch) error {
	if t.repo.failOn == "match" {
		return errors.New("insert match failed")
	}
	match.ID = t.id()
	match.CreatedAt = time.Now()
	cp := *match
	t.matches = append(t.matches, &cp)
	return nil
}

func (t *fakeOCRTx) CountMatches(_ context.Context, pdfID int64) (int, error) {
	pdfPages := make(map[int64]bool)
	for _, p := range t.pages {
		if p.PDFID == pdfID {
			pdfPages[p.ID] = true
		}
	}
	n := 0
	for _, m := range t.matches {
		if pdfPages[m.PageID] {
			n++
		}
	}
	return n, nil
}

type fakePresigner struct {
	ttl  time.Duration
	key  string
	err  error
	url  string
	hits int
}

func (p *fakePresigner) PresignGet(_ context.Context, key string, ttl time.Duration) (string, error) {
	p.hits++
	p.key, p.ttl = key, ttl
	if p.err != nil {
		return "", p.err
	}
	if p.url != "" {
		return p.url, nil
	}
	return "https://bucket.example/" + key + "?X-Amz-Signature=sig", nil
}

type fakeOCRClient struct {
	body  []byte
	err   error
	calls int
	url   string
}

func (c *fakeOCRClient) Analyze(_ context.Context, fileURL string) ([]byte, error) {
	c.calls++
	c.url = fileURL
	if c.err != nil {
		return nil, c.err
	}
	return c.body, nil
}

type fakeLocker struct {
	held     map[int64]bool
	released int
}

func (l *fakeLocker) Acquire(_ context.Context, pdfID int64) (func(), error) {
	if l.held == nil {
		l.held = make(map[int64]bool)
	}
	if l.held[pdfID] {
		return nil, ErrImportInProgress
	}
	l.held[pdfID] = true
	return func() {
		l.released++
		delete(l.held, pdfID)
	}, nil
}

type fakeIndexer struct {
	indexed chan []*types.Page
	results []types.SearchResult
	err     error
}

func (i *fakeIndexer) IndexPages(_ context.Context, _ *types.PDF, pages []*types.Page, _ bool) error {
	if i.indexed != nil {
		i.indexed <- pages
	}
	return i.err
}

func (i *fakeIndexer) Search(context.Context, int64, string, int) ([]types.SearchResult, error) {
	return i.results, i.err
}
