package catalog

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/jfoltran/moduleguide/internal/cache"
)

// Cache is the subset of *cache.Cache that Cached needs.
type Cache interface {
	Get(ctx context.Context, key string, dst any) error
	Set(ctx context.Context, key string, v any) error
}

// Cached serves catalog reads from a cache and fills it on miss. Cache
// failures are logged and fall through to the wrapped catalog.
type Cached struct {
	next   Catalog
	cache  Cache
	logger zerolog.Logger
}

func NewCached(next Catalog, c Cache, logger zerolog.Logger) *Cached {
	return &Cached{
		next:   next,
		cache:  c,
		logger: logger.With().Str("component", "catalog-cache").Logger(),
	}
}

func (c *Cached) SearchByCode(ctx context.Context, code string) ([]Module, error) {
	return through(ctx, c, "modules:code:"+code, func() ([]Module, error) {
		return c.next.SearchByCode(ctx, code)
	})
}

func (c *Cached) SearchByName(ctx context.Context, term string) ([]Module, error) {
	return through(ctx, c, "modules:q:"+strings.ToLower(term), func() ([]Module, error) {
		return c.next.SearchByName(ctx, term)
	})
}

func (c *Cached) Courses(ctx context.Context) ([]Course, error) {
	return through(ctx, c, "courses", func() ([]Course, error) {
		return c.next.Courses(ctx)
	})
}

// ModuleInfo caches found modules only.
func (c *Cached) ModuleInfo(ctx context.Context, moduleID int) (YearsInfo, bool, error) {
	key := "module-info:" + strconv.Itoa(moduleID)

	var info YearsInfo
	if c.get(ctx, key, &info) {
		return info, true, nil
	}

	info, ok, err := c.next.ModuleInfo(ctx, moduleID)
	if err != nil || !ok {
		return info, ok, err
	}
	c.set(ctx, key, info)
	return info, true, nil
}

func through[T any](ctx context.Context, c *Cached, key string, load func() (T, error)) (T, error) {
	var v T
	if c.get(ctx, key, &v) {
		return v, nil
	}
	v, err := load()
	if err != nil {
		return v, err
	}
	c.set(ctx, key, v)
	return v, nil
}

func (c *Cached) get(ctx context.Context, key string, dst any) bool {
	err := c.cache.Get(ctx, key, dst)
	switch {
	case err == nil:
		c.logger.Debug().Str("key", key).Msg("cache hit")
		return true
	case errors.Is(err, cache.ErrMiss):
	default:
		c.logger.Warn().Err(err).Str("key", key).Msg("cache read failed")
	}
	return false
}

func (c *Cached) set(ctx context.Context, key string, v any) {
	if err := c.cache.Set(ctx, key, v); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}
