package service

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/cmdf/pdfnote-be/types"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	ownerID = int64(1)
	docID   = int64(7)
)

type importFixture struct {
	pdfs      *fakePDFRepo
	repo      *fakeOCRRepo
	presigner *fakePresigner
	ocr       *fakeOCRClient
	locker    *fakeLocker
	svc       OCRImportService
}

func newImportFixture(t *testing.T, body string) *importFixture {
	t.Helper()
	f := &importFixture{
		pdfs:      newFakePDFRepo(&types.PDF{ID: docID, UserID: ownerID, Title: "Lecture", S3Key: "pdfs/abc.pdf"}),
		repo:      &fakeOCRRepo{},
		presigner: &fakePresigner{},
		ocr:       &fakeOCRClient{body: []byte(body)},
		locker:    &fakeLocker{},
	}
	f.svc = NewOCRImportService(f.pdfs, f.repo, f.presigner, f.ocr, f.locker, nil, 0)
	return f
}

const basicPayload = `{
	"pages":   [{"page_num": 1, "text": "hello"}],
	"figures": [{"page_num": 1, "figure_type": "image", "figure_box": [0, 0, 10, 10]}],
	"matches": [{"page_num": 1, "figure_page": 1, "figure_box": [0, 0, 10, 10],
	             "raw_text": ["a", "b"], "figure_text": "Figure 1"}]
}`

func TestImportBasicScenario(t *testing.T) {
	f := newImportFixture(t, basicPayload)

	resp, err := f.svc.Import(context.Background(), ownerID, docID, ImportOptions{})
	require.NoError(t, err)

	assert.Equal(t, &types.OCRImportResponse{
		Detail:         ocrImportDetail,
		PDFID:          docID,
		PagesCreated:   1,
		FiguresCreated: 1,
		MatchesCreated: 1,
	}, resp)

	require.Len(t, f.repo.matches, 1)
	assert.Equal(t, "a b", f.repo.matches[0].RawText)
	assert.Equal(t, "Figure 1", f.repo.matches[0].MatchedText)
	assert.Equal(t, f.repo.figures[0].ID, f.repo.matches[0].FigureID)
	assert.Equal(t, f.repo.pages[0].ID, f.repo.matches[0].PageID)
	assert.JSONEq(t, `{"min_x":0,"min_y":0,"max_x":10,"max_y":10}`, string(f.repo.figures[0].FigureBox))
	assert.Equal(t, "hello", f.repo.pages[0].Text)

	assert.Equal(t, "pdfs/abc.pdf", f.presigner.key)
	assert.Equal(t, 5*time.Minute, f.presigner.ttl)
	assert.Equal(t, "https://bucket.example/pdfs/abc.pdf?X-Amz-Signature=sig", f.ocr.url)
	assert.Equal(t, 1, f.locker.released)
}

func TestImportResolvesFigurePageOffByOne(t *testing.T) {
	f := newImportFixture(t, `{
		"pages":   [{"page_num": 1, "text": "p1"}, {"page_num": 2, "text": "p2"}, {"page_num": 3, "text": "p3"}],
		"figures": [{"page_num": 2, "figure_type": "image", "figure_box": [1, 2, 3, 4]},
		            {"page_num": 2, "figure_type": "table", "figure_box": [5, 6, 7, 8]}],
		"matches": [{"page_num": 1, "figure_page": 1, "figure_box": [1, 2, 3, 4], "raw_text": "forward"},
		            {"page_num": 3, "figure_page": 3, "figure_box": [5, 6, 7, 8], "raw_text": "backward"},
		            {"page_num": 3, "figure_page": 5, "figure_box": [5, 6, 7, 8], "raw_text": "too far"}]
	}`)

	resp, err := f.svc.Import(context.Background(), ownerID, docID, ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, resp.PagesCreated)
	assert.Equal(t, 2, resp.FiguresCreated)
	assert.Equal(t, 2, resp.MatchesCreated)

	require.Len(t, f.repo.matches, 2)
	assert.Equal(t, f.repo.figures[0].ID, f.repo.matches[0].FigureID)
	assert.Equal(t, f.repo.figures[1].ID, f.repo.matches[1].FigureID)
}

func TestImportPrefersExactFigurePage(t *testing.T) {
	f := newImportFixture(t, `{
		"pages":   [{"page_num": 1, "text": ""}, {"page_num": 2, "text": ""}],
		"figures": [{"page_num": 2, "figure_type": "next", "figure_box": [0, 0, 1, 1]},
		            {"page_num": 1, "figure_type": "exact", "figure_box": [0, 0, 1, 1]}],
		"matches": [{"page_num": 1, "figure_page": 1, "figure_box": [0, 0, 1, 1], "raw_text": "x"}]
	}`)

	_, err := f.svc.Import(context.Background(), ownerID, docID, ImportOptions{})
	require.NoError(t, err)
	require.Len(t, f.repo.matches, 1)

	var exact *types.Figure
	for _, fig := range f.repo.figures {
		if fig.FigureType == "exact" {
			exact = fig
		}
	}
	require.NotNil(t, exact)
	assert.Equal(t, exact.ID, f.repo.matches[0].FigureID)
}

func TestImportLinksNonNumericBoxes(t *testing.T) {
	f := newImportFixture(t, `{
		"pages":   [{"page_num": 1, "text": "p1"}],
		"figures": [{"page_num": 1, "figure_type": "image", "figure_box": ["0", "0", "10", "10"]},
		            {"page_num": 1, "figure_type": "chart", "figure_box": [0, 0, 10, 10]}],
		"matches": [{"page_num": 1, "figure_page": 1, "figure_box": ["0","0","10","10"], "raw_text": "strings"},
		            {"page_num": 1, "figure_page": 1, "figure_box": [0.0, 0, 10.0, 10], "raw_text": "numbers"}]
	}`)

	resp, err := f.svc.Import(context.Background(), ownerID, docID, ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.FiguresCreated)
	assert.Equal(t, 2, resp.MatchesCreated)

	require.Len(t, f.repo.matches, 2)
	assert.Equal(t, f.repo.figures[0].ID, f.repo.matches[0].FigureID)
	assert.Equal(t, f.repo.figures[1].ID, f.repo.matches[1].FigureID)
	assert.JSONEq(t, `["0", "0", "10", "10"]`, string(f.repo.figures[0].FigureBox))
}

func TestImportRejectsOutOfRangePageNumbers(t *testing.T) {
	f := newImportFixture(t, `{"pages": [{"page_num": 1e30, "text": "a"}, {"page_num": -1e30, "text": "b"}]}`)

	_, err := f.svc.Import(context.Background(), ownerID, docID, ImportOptions{})
	assert.ErrorIs(t, err, ErrMalformedUpstreamResponse)
	assert.Empty(t, f.repo.pages)
}

func TestImportCountsInsertedMatches(t *testing.T) {
	f := newImportFixture(t, basicPayload)
	matches := ocrRowsCreated.WithLabelValues("matches")

	_, err := f.svc.Import(context.Background(), ownerID, docID, ImportOptions{})
	require.NoError(t, err)
	before := testutil.ToFloat64(matches)

	resp, err := f.svc.Import(context.Background(), ownerID, docID, ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.MatchesCreated)
	assert.Equal(t, before+1, testutil.ToFloat64(matches))
}

func TestImportDoubleEncodedPayload(t *testing.T) {
	f := newImportFixture(t, `"{\"pages\":[]}"`)

	resp, err := f.svc.Import(context.Background(), ownerID, docID, ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, resp.PagesCreated)
	assert.Equal(t, 0, resp.FiguresCreated)
	assert.Equal(t, 0, resp.MatchesCreated)
}

func TestImportUpstreamFailurePersistsNothing(t *testing.T) {
	f := newImportFixture(t, "")
	f.ocr.err = &OCRGatewayError{Op: "ocr response", Status: http.StatusBadGateway, Raw: "bad", Err: ErrUpstreamUnavailable}

	_, err := f.svc.Import(context.Background(), ownerID, docID, ImportOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)

	var gwErr *OCRGatewayError
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, http.StatusBadGateway, gwErr.Status)
	assert.Empty(t, f.repo.pages)
	assert.Equal(t, 1, f.locker.released)
}

func TestImportMalformedPayload(t *testing.T) {
	for name, body := range map[string]string{
		"array":        `[1, 2]`,
		"not json":     `<html>`,
		"string":       `"just text"`,
		"bad page_num": `{"pages":[{"page_num":"one"}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			f := newImportFixture(t, body)
			_, err := f.svc.Import(context.Background(), ownerID, docID, ImportOptions{})
			assert.ErrorIs(t, err, ErrMalformedUpstreamResponse)
			assert.Empty(t, f.repo.pages)
		})
	}
}

func TestImportUnknownDocument(t *testing.T) {
	f := newImportFixture(t, basicPayload)

	_, err := f.svc.Import(context.Background(), ownerID, 999, ImportOptions{})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.Import(context.Background(), 2, docID, ImportOptions{})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, f.ocr.calls)
	assert.Zero(t, f.presigner.hits)
}

func TestImportDocumentWithoutStorageKey(t *testing.T) {
	f := newImportFixture(t, basicPayload)
	f.pdfs.pdfs[docID].S3Key = ""

	_, err := f.svc.Import(context.Background(), ownerID, docID, ImportOptions{})
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Zero(t, f.ocr.calls)
}

func TestImportPresignFailure(t *testing.T) {
	f := newImportFixture(t, basicPayload)
	f.presigner.err = ErrStorageForbidden

	_, err := f.svc.Import(context.Background(), ownerID, docID, ImportOptions{})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrStorageForbidden)
	assert.Zero(t, f.ocr.calls)
}

func TestImportSkipsOrphanedEntries(t *testing.T) {
	f := newImportFixture(t, `{
		"pages":   [{"page_num": null, "text": "skipped"}, {"text": "no number"}, {"page_num": 1, "text": "kept"}],
		"figures": [{"page_num": 4, "figure_type": "image", "figure_box": [0, 0, 1, 1]},
		            {"page_num": 1, "figure_type": "image", "figure_box": {"x": 1}},
		            {"page_num": 1, "figure_type": "image", "figure_box": [0, 0, 1, 1]}],
		"matches": [{"page_num": 9, "figure_page": 1, "figure_box": [0, 0, 1, 1]},
		            {"page_num": 1, "figure_page": 1, "figure_box": [9, 9, 9, 9]},
		            {"page_num": 1, "figure_page": 1, "figure_box": {"x": 1}},
		            {"page_num": 1, "figure_page": 1, "figure_box": [0, 0, 1, 1]}]
	}`)

	resp, err := f.svc.Import(context.Background(), ownerID, docID, ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.PagesCreated)
	assert.Equal(t, 2, resp.FiguresCreated)
	assert.Equal(t, 1, resp.MatchesCreated)

	assert.JSONEq(t, `{"x": 1}`, string(f.repo.figures[0].FigureBox))
	assert.Equal(t, "", f.repo.matches[0].RawText)
	assert.Equal(t, "", f.repo.matches[0].MatchedText)
}

func TestImportDuplicatePageNumbersKeepLast(t *testing.T) {
	f := newImportFixture(t, `{
		"pages":   [{"page_num": 1, "text": "first"}, {"page_num": 1, "text": "second"}],
		"figures": [{"page_num": 1, "figure_type": "image", "figure_box": [0, 0, 1, 1]}]
	}`)

	resp, err := f.svc.Import(context.Background(), ownerID, docID, ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.PagesCreated)
	require.Len(t, f.repo.figures, 1)
	assert.Equal(t, f.repo.pages[1].ID, f.repo.figures[0].PageID)
}

func TestImportAppendsByDefault(t *testing.T) {
	f := newImportFixture(t, basicPayload)

	_, err := f.svc.Import(context.Background(), ownerID, docID, ImportOptions{})
	require.NoError(t, err)
	resp, err := f.svc.Import(context.Background(), ownerID, docID, ImportOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, resp.PagesCreated)
	assert.Equal(t, 2, resp.MatchesCreated)
	assert.Len(t, f.repo.pagesFor(docID), 2)
}

func TestImportReplaceLeavesOneSet(t *testing.T) {
	f := newImportFixture(t, basicPayload)

	_, err := f.svc.Import(context.Background(), ownerID, docID, ImportOptions{})
	require.NoError(t, err)
	resp, err := f.svc.Import(context.Background(), ownerID, docID, ImportOptions{Replace: true})
	require.NoError(t, err)

	assert.Equal(t, 1, resp.MatchesCreated)
	assert.Len(t, f.repo.pagesFor(docID), 1)
	assert.Len(t, f.repo.figures, 1)
	assert.Len(t, f.repo.matches, 1)
}

func TestImportRollsBackOnPersistenceError(t *testing.T) {
	for _, stage := range []string{"page", "figure", "match"} {
		t.Run(stage, func(t *testing.T) {
			f := newImportFixture(t, basicPayload)
			f.repo.failOn = stage

			_, err := f.svc.Import(context.Background(), ownerID, docID, ImportOptions{})
			assert.ErrorIs(t, err, ErrPersistence)
			assert.Empty(t, f.repo.pages)
			assert.Empty(t, f.repo.figures)
			assert.Empty(t, f.repo.matches)
		})
	}
}

func TestImportLockHeld(t *testing.T) {
	f := newImportFixture(t, basicPayload)
	f.locker.held = map[int64]bool{docID: true}

	_, err := f.svc.Import(context.Background(), ownerID, docID, ImportOptions{})
	assert.ErrorIs(t, err, ErrImportInProgress)
	assert.Zero(t, f.ocr.calls)
}

func TestImportIndexesCreatedPages(t *testing.T) {
	f := newImportFixture(t, basicPayload)
	indexer := &fakeIndexer{indexed: make(chan []*types.Page, 1), err: errors.New("weaviate down")}
	f.svc = NewOCRImportService(f.pdfs, f.repo, f.presigner, f.ocr, f.locker, indexer, time.Minute)

	_, err := f.svc.Import(context.Background(), ownerID, docID, ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, time.Minute, f.presigner.ttl)

	select {
	case pages := <-indexer.indexed:
		require.Len(t, pages, 1)
		assert.Equal(t, "hello", pages[0].Text)
	case <-time.After(2 * time.Second):
		t.Fatal("pages were not indexed")
	}
}

func TestImportPayloadSkipsOCRService(t *testing.T) {
	f := newImportFixture(t, "")
	f.pdfs.pdfs[docID].S3Key = ""

	resp, err := f.svc.ImportPayload(context.Background(), ownerID, docID, []byte(basicPayload), ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.MatchesCreated)
	assert.Zero(t, f.ocr.calls)
	assert.Zero(t, f.presigner.hits)
}

func TestImportOutcomeLabels(t *testing.T) {
	assert.Equal(t, "success", importOutcome(nil))
	assert.Equal(t, "upstream_error", importOutcome(&OCRGatewayError{Err: ErrUpstreamUnavailable}))
	assert.Equal(t, "in_progress", importOutcome(ErrImportInProgress))
	assert.Equal(t, "error", importOutcome(errors.New("x")))
}
