package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cmdf/pdfnote-be/config"
	"github.com/cmdf/pdfnote-be/database"
	"github.com/cmdf/pdfnote-be/logger"
	"github.com/cmdf/pdfnote-be/repository"
	"github.com/cmdf/pdfnote-be/service"
	"github.com/cmdf/pdfnote-be/types"
	"github.com/redis/go-redis/v9"
)

// lockGrace is added to the OCR timeout so a lock outlives the request
// holding it.
const lockGrace = 60 * time.Second

// core holds the document and OCR services shared by the server and the
// one-shot commands.
type core struct {
	db        *sql.DB
	redis     *redis.Client
	pdfRepo   repository.PDFRepo
	ocrRepo   repository.OCRRepo
	storage   *service.S3Storage
	chunker   *service.PDFService
	indexer   service.PageIndexer
	documents service.DocumentService
	importer  service.OCRImportService
}

func newCore(ctx context.Context, cfg *config.Config) (*core, error) {
	log := logger.WithComponent("setup")

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return nil, err
	}
	c := &core{db: db}

	c.storage, err = service.NewS3Storage(ctx, cfg.S3)
	if err != nil {
		c.Close()
		return nil, err
	}

	c.chunker = service.NewPDFService(types.ChunkerConfig{
		MaxChunkSize: 1000,
		OverlapSize:  100,
	})

	if cfg.WeaviateStoreConfig.Host != "" {
		store, err := database.NewWeaviateStore(ctx, cfg.WeaviateStoreConfig)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to connect to weaviate: %w", err)
		}
		c.indexer = service.NewVectorPageIndexer(store, c.chunker)
	} else {
		log.Info().Msg("weaviate not configured, search falls back to text match")
	}

	var locker service.ImportLocker
	if cfg.Redis.URL != "" {
		c.redis, err = service.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			c.Close()
			return nil, err
		}
		locker = service.NewRedisImportLocker(c.redis, cfg.OCR.Timeout+lockGrace)
	}

	c.pdfRepo = repository.NewPDFRepo(db)
	c.ocrRepo = repository.NewOCRRepo(db)
	c.documents = service.NewDocumentService(c.pdfRepo, c.ocrRepo, c.storage, c.chunker, c.indexer)
	c.importer = service.NewOCRImportService(
		c.pdfRepo,
		c.ocrRepo,
		c.storage,
		service.NewHTTPOCRClient(cfg.OCR),
		locker,
		c.indexer,
		cfg.OCR.PresignTTL,
	)
	return c, nil
}

func (c *core) Close() {
	if c.redis != nil {
		_ = c.redis.Close()
	}
	if c.db != nil {
		_ = c.db.Close()
	}
}
