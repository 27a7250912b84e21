package service

import (
	"context"
	"fmt"
	"time"

	"github.com/cmdf/pdfnote-be/logger"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ImportLocker serialises OCR imports of the same document across
// processes. The returned release func is safe to call once.
type ImportLocker interface {
	Acquire(ctx context.Context, pdfID int64) (release func(), err error)
}

type noopLocker struct{}

func (noopLocker) Acquire(context.Context, int64) (func(), error) {
	return func() {}, nil
}

// NoopImportLocker is used when no Redis is configured.
func NoopImportLocker() ImportLocker {
	return noopLocker{}
}

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisImportLocker struct {
	client redis.UniversalClient
	ttl    time.Duration
	log    zerolog.Logger
}

func NewRedisImportLocker(client redis.UniversalClient, ttl time.Duration) *RedisImportLocker {
	return &RedisImportLocker{
		client: client,
		ttl:    ttl,
		log:    logger.WithComponent("import_lock"),
	}
}

// NewRedisClient parses a redis:// URL and checks connectivity.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

func importLockKey(pdfID int64) string {
	return fmt.Sprintf("pdfnote:ocr-import:%d", pdfID)
}

func (l *RedisImportLocker) Acquire(ctx context.Context, pdfID int64) (func(), error) {
	key := importLockKey(pdfID)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire import lock: %w", err)
	}
	if !ok {
		return nil, ErrImportInProgress
	}

	return func() {
		// The request context may already be cancelled.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err(); err != nil {
			l.log.Warn().Err(err).Int64("pdf_id", pdfID).Dur("ttl", l.ttl).Msg("failed to release import lock, it expires with its ttl")
		}
	}, nil
}
