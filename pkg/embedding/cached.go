package embedding

import (
	"crypto/md5"
	"encoding/hex"
	"time"

	"github.com/patrickmn/go-cache"
)

// CachedProvider is a read-through cache over another provider. The same
// accumulated query is embedded once per gate, retrieval and backfill, so
// a short TTL removes most duplicate provider calls inside a session.
type CachedProvider struct {
	inner EmbeddingProvider
	cache *cache.Cache
}

func NewCachedProvider(inner EmbeddingProvider) EmbeddingProvider {
	// Default expiration of 1 hour, purge of expired items every 10 minutes
	return &CachedProvider{
		inner: inner,
		cache: cache.New(1*time.Hour, 10*time.Minute),
	}
}

func (p *CachedProvider) Generate(text string, taskType string) (*EmbeddingResponse, error) {
	key := cacheKey(text, taskType)
	if x, found := p.cache.Get(key); found {
		return x.(*EmbeddingResponse), nil
	}

	resp, err := p.inner.Generate(text, taskType)
	if err != nil {
		return nil, err
	}
	p.cache.Set(key, resp, cache.DefaultExpiration)
	return resp, nil
}

func cacheKey(text, taskType string) string {
	sum := md5.Sum([]byte(text))
	return taskType + ":" + hex.EncodeToString(sum[:])
}
