package types

// DocumentChunk is a slice of page text stored in the vector index.
type DocumentChunk struct {
	Content    string `json:"content"`
	Title      string `json:"title"`
	PDFID      int64  `json:"pdfId"`
	PageNum    int    `json:"pageNum"`
	ChunkIndex int    `json:"chunkIndex"`
}

type ChunkerConfig struct {
	MaxChunkSize int
	OverlapSize  int
}
