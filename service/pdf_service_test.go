package service

import (
	"strings"
	"testing"

	"github.com/cmdf/pdfnote-be/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateChunksShortText(t *testing.T) {
	s := NewPDFService(types.ChunkerConfig{MaxChunkSize: 100, OverlapSize: 10})
	assert.Equal(t, []string{"short text"}, s.createChunks("short text"))
}

func TestCreateChunksPrefersSentenceBoundary(t *testing.T) {
	s := NewPDFService(types.ChunkerConfig{MaxChunkSize: 40, OverlapSize: 5})
	text := "First sentence is here. Second sentence follows it. Third one ends."

	chunks := s.createChunks(text)
	require.NotEmpty(t, chunks)
	assert.Equal(t, "First sentence is here.", chunks[0])
	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c)), 40)
	}
	assert.True(t, strings.HasSuffix(chunks[len(chunks)-1], "Third one ends."))
}

func TestCreateChunksTerminatesWithoutBoundaries(t *testing.T) {
	s := NewPDFService(types.ChunkerConfig{MaxChunkSize: 10, OverlapSize: 9})
	text := strings.Repeat("x", 95)

	chunks := s.createChunks(text)
	require.NotEmpty(t, chunks)
	assert.Equal(t, strings.Repeat("x", 10), chunks[0])
}

func TestCreateChunksCountsRunes(t *testing.T) {
	s := NewPDFService(types.ChunkerConfig{MaxChunkSize: 5, OverlapSize: 1})
	chunks := s.createChunks("가나다라마바사아자차")
	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c)), 5)
	}
	assert.Equal(t, "가나다라마", chunks[0])
}

func TestNewPDFServiceSanitisesConfig(t *testing.T) {
	s := NewPDFService(types.ChunkerConfig{MaxChunkSize: 0, OverlapSize: 5000})
	assert.Equal(t, DefaultChunkerConfig.MaxChunkSize, s.maxChunkSize)
	assert.Equal(t, DefaultChunkerConfig.MaxChunkSize/10, s.overlapSize)
}

func TestChunkPages(t *testing.T) {
	s := NewPDFService(DefaultChunkerConfig)
	doc := &types.PDF{ID: 3, Title: "Notes"}
	pages := []*types.Page{
		{PageNum: 1, Text: "  hello\tworld \r\n"},
		{PageNum: 2, Text: "\u0000 �"},
		{PageNum: 3, Text: "last page"},
	}

	chunks := s.ChunkPages(doc, pages)
	require.Len(t, chunks, 2)
	assert.Equal(t, types.DocumentChunk{Content: "hello world", Title: "Notes", PDFID: 3, PageNum: 1}, chunks[0])
	assert.Equal(t, 3, chunks[1].PageNum)
	assert.Equal(t, 0, chunks[1].ChunkIndex)
}

func TestInspectPDFRejectsNonPDF(t *testing.T) {
	s := NewPDFService(DefaultChunkerConfig)

	for _, body := range []string{"", "%PD", "hello world, not a pdf", "%PDF-1.4 garbage"} {
		r := strings.NewReader(body)
		_, err := s.InspectPDF(r, int64(len(body)))
		assert.ErrorIs(t, err, ErrValidation, body)
	}
}
