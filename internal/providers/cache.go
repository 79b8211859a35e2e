package providers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"personal-color-workers/internal/common/logger"
	"personal-color-workers/internal/common/metrics"
	"personal-color-workers/internal/ensemble"
)

const cacheKeyPrefix = "color:reply:"

// CachedAdapter memoizes successful Analyze replies in Redis, keyed by
// provider and image hash. Judge calls are never cached. Redis failures
// degrade to a direct call.
type CachedAdapter struct {
	next   ensemble.ModelAdapter
	redis  redis.Cmdable
	ttl    time.Duration
	logger logger.Logger
}

// NewCachedAdapter wraps next with a reply cache.
func NewCachedAdapter(next ensemble.ModelAdapter, rdb redis.Cmdable, ttl time.Duration, log logger.Logger) *CachedAdapter {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &CachedAdapter{
		next:   next,
		redis:  rdb,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"provider": string(next.Provider())}),
	}
}

// CacheKey returns the Redis key for a provider's reply to image.
func CacheKey(provider ensemble.ProviderID, image []byte) string {
	sum := sha256.Sum256(image)
	return cacheKeyPrefix + string(provider) + ":" + hex.EncodeToString(sum[:])
}

func (a *CachedAdapter) Provider() ensemble.ProviderID {
	return a.next.Provider()
}

func (a *CachedAdapter) Analyze(ctx context.Context, image []byte) (ensemble.RawColorResult, error) {
	key := CacheKey(a.Provider(), image)

	if raw, ok := a.lookup(ctx, key); ok {
		metrics.RecordCacheLookup(a.Provider(), true)
		return raw, nil
	}
	metrics.RecordCacheLookup(a.Provider(), false)

	raw, err := a.next.Analyze(ctx, image)
	if err != nil {
		return nil, err
	}
	a.store(ctx, key, raw)
	return raw, nil
}

func (a *CachedAdapter) Judge(ctx context.Context, image []byte, candidates []ensemble.ColorAnalysisResult) (ensemble.RawColorResult, error) {
	return a.next.Judge(ctx, image, candidates)
}

func (a *CachedAdapter) lookup(ctx context.Context, key string) (ensemble.RawColorResult, bool) {
	data, err := a.redis.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			a.logger.Warn("reply cache read failed", map[string]interface{}{"error": err.Error()})
		}
		return nil, false
	}

	var raw ensemble.RawColorResult
	if err := json.Unmarshal(data, &raw); err != nil {
		a.logger.Warn("discarding corrupt cache entry", map[string]interface{}{"key": key})
		return nil, false
	}
	return raw, true
}

func (a *CachedAdapter) store(ctx context.Context, key string, raw ensemble.RawColorResult) {
	data, err := json.Marshal(raw)
	if err != nil {
		return
	}
	if err := a.redis.Set(ctx, key, data, a.ttl).Err(); err != nil {
		a.logger.Warn("reply cache write failed", map[string]interface{}{"error": err.Error()})
	}
}
