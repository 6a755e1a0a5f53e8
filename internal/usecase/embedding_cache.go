package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/healthshop/clerk/internal/domain"
)

// CachedEmbedder memoizes query embeddings under a normalized key.
// Cache errors are logged and never fail the embedding.
type CachedEmbedder struct {
	next         domain.Embedder
	cache        domain.CacheRepository
	preprocessor *QueryPreprocessor
	ttl          time.Duration
	logger       *zap.Logger
}

// NewCachedEmbedder wraps next with cache. A zero ttl defaults to 24 hours.
func NewCachedEmbedder(next domain.Embedder, cache domain.CacheRepository, ttl time.Duration, logger *zap.Logger) *CachedEmbedder {
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	return &CachedEmbedder{
		next:         next,
		cache:        cache,
		preprocessor: NewQueryPreprocessor(logger),
		ttl:          ttl,
		logger:       logger,
	}
}

// Embed returns the cached vector for text or asks the wrapped embedder
func (e *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := e.preprocessor.CacheKey(text)

	if value, err := e.cache.Get(ctx, key); err == nil {
		if vec, ok := value.([]float32); ok && len(vec) > 0 {
			return vec, nil
		}
	}

	vec, err := e.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	if err := e.cache.Set(ctx, key, vec, e.ttl); err != nil {
		e.logger.Warn("failed to cache embedding", zap.String("key", key), zap.Error(err))
	}
	return vec, nil
}
