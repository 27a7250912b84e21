package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/cmdf/pdfnote-be/config"
	"github.com/cmdf/pdfnote-be/logger"
	"github.com/cmdf/pdfnote-be/types"
	"github.com/rs/zerolog"
	"github.com/weaviate/weaviate-go-client/v4/weaviate"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/auth"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
)

const BATCH_SIZE = 200

var (
	PAGE_CHUNK_CLASS = "PdfPageChunk"
)

func pageChunkClass(cfg config.WeaviateStoreConfig) *models.Class {
	return &models.Class{
		Class: PAGE_CHUNK_CLASS,
		Properties: []*models.Property{
			{Name: "content", DataType: []string{"text"}},
			{Name: "title", DataType: []string{"text"}},
			{Name: "pdfId", DataType: []string{"int"}},
			{Name: "pageNum", DataType: []string{"int"}},
			{Name: "chunkIndex", DataType: []string{"int"}},
		},
		Vectorizer:      cfg.Text2Vec,
		ModuleConfig:    map[string]interface{}(cfg.ModuleConfig),
		VectorIndexType: "hnsw",
	}
}

type WeaviateStore struct {
	client *weaviate.Client
	log    zerolog.Logger
}

func NewWeaviateStore(ctx context.Context, config config.WeaviateStoreConfig) (*WeaviateStore, error) {
	var scheme string
	if strings.HasPrefix(config.Host, "https") {
		scheme = "https"
	} else {
		scheme = "http"
	}
	host := strings.TrimPrefix(config.Host, scheme+"://")
	cfg := weaviate.Config{
		Host:   host,
		Scheme: scheme,
	}
	if config.APIKey != "" {
		cfg.AuthConfig = auth.ApiKey{
			Value: config.APIKey,
		}
		cfg.Headers = map[string]string{
			"X-Weaviate-Api-Key":     config.APIKey,
			"X-Weaviate-Cluster-Url": fmt.Sprintf("%s://%s", scheme, host),
		}
	}
	client, err := weaviate.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create weaviate client: %w", err)
	}

	schema, err := client.Schema().Getter().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get schema: %w", err)
	}

	hasClass := false
	for _, class := range schema.Classes {
		if class.Class == PAGE_CHUNK_CLASS {
			hasClass = true
			break
		}
	}
	if !hasClass {
		err = client.Schema().ClassCreator().WithClass(pageChunkClass(config)).Do(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s class: %w", PAGE_CHUNK_CLASS, err)
		}
	}
	return &WeaviateStore{
		client: client,
		log:    logger.WithComponent("weaviate"),
	}, nil
}

func (s *WeaviateStore) BatchInsertChunks(ctx context.Context, chunks []types.DocumentChunk) error {
	total := len(chunks)
	for i := 0; i < total; i += BATCH_SIZE {
		end := i + BATCH_SIZE
		if end > total {
			end = total
		}

		batcher := s.client.Batch().ObjectsBatcher()
		for j := i; j < end; j++ {
			batcher = batcher.WithObjects(&models.Object{
				Class: PAGE_CHUNK_CLASS,
				Properties: map[string]interface{}{
					"content":    chunks[j].Content,
					"title":      chunks[j].Title,
					"pdfId":      chunks[j].PDFID,
					"pageNum":    chunks[j].PageNum,
					"chunkIndex": chunks[j].ChunkIndex,
				},
			})
		}

		resp, err := batcher.Do(ctx)
		if err != nil {
			return fmt.Errorf("failed to insert batch %d-%d: %w", i, end, err)
		}
		for _, obj := range resp {
			if obj.Result != nil && obj.Result.Errors != nil && len(obj.Result.Errors.Error) > 0 {
				return fmt.Errorf("failed to insert batch %d-%d: %s", i, end, obj.Result.Errors.Error[0].Message)
			}
		}

		s.log.Debug().Int("from", i).Int("to", end).Int("total", total).Msg("inserted chunk batch")
	}

	return nil
}

func (s *WeaviateStore) DeleteByPDF(ctx context.Context, pdfID int64) error {
	_, err := s.client.Batch().ObjectsBatchDeleter().
		WithClassName(PAGE_CHUNK_CLASS).
		WithOutput("minimal").
		WithWhere(pdfFilter(pdfID)).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete chunks of pdf %d: %w", pdfID, err)
	}
	return nil
}

func (s *WeaviateStore) SearchChunks(ctx context.Context, pdfID int64, query string, limit int) ([]types.SearchResult, error) {
	fields := []graphql.Field{
		{Name: "content"},
		{Name: "pdfId"},
		{Name: "pageNum"},
		{Name: "chunkIndex"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "distance"}}},
	}
	nearText := s.client.GraphQL().NearTextArgBuilder().
		WithConcepts([]string{query})

	getBuilder := s.client.GraphQL().Get().
		WithClassName(PAGE_CHUNK_CLASS).
		WithFields(fields...).
		WithNearText(nearText).
		WithWhere(pdfFilter(pdfID))
	if limit > 0 {
		getBuilder = getBuilder.WithLimit(limit)
	}

	result, err := getBuilder.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("search failed: %s", result.Errors[0].Message)
	}

	return parseChunkResults(result.Data), nil
}

func parseChunkResults(data map[string]models.JSONObject) []types.SearchResult {
	get, ok := data["Get"].(map[string]interface{})
	if !ok {
		return nil
	}
	items, ok := get[PAGE_CHUNK_CLASS].([]interface{})
	if !ok {
		return nil
	}

	results := make([]types.SearchResult, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		res := types.SearchResult{
			Content:    asString(obj["content"]),
			PDFID:      int64(asFloat(obj["pdfId"])),
			PageNum:    int(asFloat(obj["pageNum"])),
			ChunkIndex: int(asFloat(obj["chunkIndex"])),
		}
		if additional, ok := obj["_additional"].(map[string]interface{}); ok {
			res.Score = float32(1 - asFloat(additional["distance"]))
		}
		results = append(results, res)
	}
	return results
}

func pdfFilter(pdfID int64) *filters.WhereBuilder {
	return filters.Where().
		WithPath([]string{"pdfId"}).
		WithOperator(filters.Equal).
		WithValueInt(pdfID)
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func asFloat(v interface{}) float64 {
	f, _ := v.(float64)
	return f
}
