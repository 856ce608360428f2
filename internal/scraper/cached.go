package scraper

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"

	"sjsage522/postscraper/logger"
	"sjsage522/postscraper/services/cache"
)

// CachedRenderer serves recently rendered markup from a cache
type CachedRenderer struct {
	next  Renderer
	cache cache.CacheService
	ttl   time.Duration
	log   *logger.Logger
}

// NewCachedRenderer wraps next with cache lookups
func NewCachedRenderer(next Renderer, cacheSvc cache.CacheService, ttl time.Duration, log *logger.Logger) *CachedRenderer {
	if log == nil {
		log = logger.Nop()
	}
	return &CachedRenderer{next: next, cache: cacheSvc, ttl: ttl, log: log}
}

// Render returns cached markup when present; cache failures never fail a render.
// Empty entries are evicted and the page rendered again.
func (c *CachedRenderer) Render(ctx context.Context, url string, timeout time.Duration) (string, error) {
	key := PageCacheKey(url)

	data, err := c.cache.Get(key)
	switch {
	case err == nil && len(data) > 0:
		c.log.Debug().Str("url", url).Msg("Render cache hit")
		return string(data), nil
	case err == nil:
		// an empty entry is never a rendered page
		if delErr := c.cache.Delete(key); delErr != nil {
			c.log.Debug().Str("url", url).Err(delErr).Msg("Render cache evict failed")
		}
	case !errors.Is(err, cache.ErrMiss):
		c.log.Warn().Str("url", url).Err(err).Msg("Render cache lookup failed")
	}

	markup, err := c.next.Render(ctx, url, timeout)
	if err != nil {
		return "", err
	}

	if err := c.cache.Set(key, []byte(markup), c.ttl); err != nil {
		c.log.Debug().Str("url", url).Err(err).Msg("Render cache store failed")
	}
	return markup, nil
}

// PageCacheKey derives a memcache-safe key from a url
func PageCacheKey(url string) string {
	return "page:" + strconv.FormatUint(xxhash.Sum64String(url), 16)
}
