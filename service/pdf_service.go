package service

import (
	"bytes"
	"io"
	"strings"

	"github.com/cmdf/pdfnote-be/types"
	"github.com/ledongthuc/pdf"
)

// PDFService validates uploaded PDFs and splits page text into chunks for
// the vector index.
type PDFService struct {
	maxChunkSize int // in runes
	overlapSize  int
}

var DefaultChunkerConfig = types.ChunkerConfig{
	MaxChunkSize: 1000,
	OverlapSize:  100,
}

func NewPDFService(config types.ChunkerConfig) *PDFService {
	if config.MaxChunkSize <= 0 {
		config.MaxChunkSize = DefaultChunkerConfig.MaxChunkSize
	}
	if config.OverlapSize < 0 || config.OverlapSize >= config.MaxChunkSize {
		config.OverlapSize = config.MaxChunkSize / 10
	}
	return &PDFService{
		maxChunkSize: config.MaxChunkSize,
		overlapSize:  config.OverlapSize,
	}
}

type PDFInfo struct {
	NumPages int
}

// InspectPDF parses the document structure and reports its page count.
// The parser panics on some malformed inputs, so those are turned into
// validation errors.
func (s *PDFService) InspectPDF(r io.ReaderAt, size int64) (info PDFInfo, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = validationError("file is not a readable PDF: %v", p)
		}
	}()

	if size < 5 {
		return info, validationError("file is not a PDF")
	}
	header := make([]byte, 5)
	if _, err := r.ReadAt(header, 0); err != nil || !bytes.Equal(header, []byte("%PDF-")) {
		return info, validationError("file is not a PDF")
	}

	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return info, validationError("file is not a readable PDF: %v", err)
	}
	info.NumPages = reader.NumPage()
	if info.NumPages == 0 {
		return info, validationError("PDF has no pages")
	}
	return info, nil
}

// ChunkPages turns page text into index chunks. Chunk indexes restart on
// every page.
func (s *PDFService) ChunkPages(doc *types.PDF, pages []*types.Page) []types.DocumentChunk {
	var chunks []types.DocumentChunk
	for _, page := range pages {
		text := s.cleanText(page.Text)
		if text == "" {
			continue
		}
		for i, content := range s.createChunks(text) {
			chunks = append(chunks, types.DocumentChunk{
				Content:    content,
				Title:      doc.Title,
				PDFID:      doc.ID,
				PageNum:    page.PageNum,
				ChunkIndex: i,
			})
		}
	}
	return chunks
}

// createChunks splits text into overlapping chunks, preferring sentence
// and then word boundaries.
func (s *PDFService) createChunks(text string) []string {
	runes := []rune(text)
	textLen := len(runes)
	if textLen <= s.maxChunkSize {
		return []string{text}
	}

	var chunks []string
	currentPos := 0
	for currentPos < textLen {
		chunkEnd := currentPos + s.maxChunkSize
		if chunkEnd >= textLen {
			if chunk := strings.TrimSpace(string(runes[currentPos:])); chunk != "" {
				chunks = append(chunks, chunk)
			}
			break
		}

		// Find nearest sentence end
		sentenceEnd := chunkEnd
		for i := chunkEnd - 1; i > currentPos; i-- {
			if runes[i] == '.' || runes[i] == '?' || runes[i] == '!' {
				sentenceEnd = i + 1
				break
			}
		}

		// If no sentence end found, use word boundary
		if sentenceEnd == chunkEnd {
			for i := chunkEnd - 1; i > currentPos; i-- {
				if runes[i] == ' ' || runes[i] == '\n' {
					sentenceEnd = i
					break
				}
			}
		}

		if chunk := strings.TrimSpace(string(runes[currentPos:sentenceEnd])); chunk != "" {
			chunks = append(chunks, chunk)
		}

		next := sentenceEnd - s.overlapSize
		if next <= currentPos {
			next = sentenceEnd
		}
		currentPos = next
	}

	return chunks
}

func (s *PDFService) cleanText(text string) string {
	replacer := strings.NewReplacer(
		"\u0000", "",
		"\ufffd", "",
		"\u001b", "",
		"\r", "",
		"\f", "\n",
	)
	cleaned := replacer.Replace(text)
	cleaned = strings.Join(strings.FieldsFunc(cleaned, func(r rune) bool { return r == ' ' || r == '\t' }), " ")
	return strings.TrimSpace(cleaned)
}
