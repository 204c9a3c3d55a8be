package infra

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"request-guard/middleware/guard/domain"

	"github.com/tidwall/tinylru"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultCacheTTL        = 5 * time.Minute
	DefaultCacheMaxEntries = 10_000
)

// Cache é um cache-aside com TTL fixo por chave.
//
//   - expiração preguiçosa: checada na leitura; StartJanitor varre as expiradas
//   - limite de entradas com LRU (tinylru) para o mapa não crescer sem fim
//   - misses concorrentes na mesma chave compartilham uma única computação
//     (singleflight); erro da computação vai para todos e nada é guardado
//   - valores que implementam domain.Storable só são guardados quando
//     Cacheable() é true; os outros chegam aos waiters e não contam como falha
//
// *Cache[domain.Response] implementa domain.ResponseCache.
type Cache[V any] struct {
	mu      sync.Mutex
	entries tinylru.LRU
	group   singleflight.Group

	cfg cacheConfig

	hits         atomic.Int64
	misses       atomic.Int64
	computations atomic.Int64
	failures     atomic.Int64
	uncacheable  atomic.Int64
}

type cacheConfig struct {
	defaultTTL   time.Duration
	maxEntries   int
	cleanupEvery time.Duration
	now          func() time.Time
	logger       *zap.Logger
}

type CacheOption func(*cacheConfig)

// WithDefaultTTL é usado quando GetOrCompute recebe ttl <= 0.
func WithDefaultTTL(d time.Duration) CacheOption {
	return func(c *cacheConfig) { c.defaultTTL = d }
}

func WithMaxEntries(n int) CacheOption {
	return func(c *cacheConfig) { c.maxEntries = n }
}

func WithCacheCleanupEvery(d time.Duration) CacheOption {
	return func(c *cacheConfig) { c.cleanupEvery = d }
}

func WithCacheClock(now func() time.Time) CacheOption {
	return func(c *cacheConfig) { c.now = now }
}

func WithCacheLogger(l *zap.Logger) CacheOption {
	return func(c *cacheConfig) { c.logger = l }
}

func NewCache[V any](opts ...CacheOption) *Cache[V] {
	cfg := cacheConfig{
		defaultTTL:   DefaultCacheTTL,
		maxEntries:   DefaultCacheMaxEntries,
		cleanupEvery: time.Minute,
		now:          time.Now,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.defaultTTL <= 0 {
		cfg.defaultTTL = DefaultCacheTTL
	}
	if cfg.maxEntries <= 0 {
		cfg.maxEntries = DefaultCacheMaxEntries
	}

	c := &Cache[V]{cfg: cfg}
	c.entries.Resize(cfg.maxEntries)
	return c
}

// GetOrCompute retorna o valor válido de `key` ou computa, guarda e retorna.
//
// Se ctx encerrar enquanto espera, só esta chamada desiste (ctx.Err());
// a computação compartilhada continua e popula o cache para os demais.
func (c *Cache[V]) GetOrCompute(ctx context.Context, key string, ttl time.Duration, compute func(context.Context) (V, error)) (V, error) {
	if v, ok := c.lookup(key); ok {
		c.hits.Add(1)
		return v, nil
	}
	c.misses.Add(1)

	if ttl <= 0 {
		ttl = c.cfg.defaultTTL
	}
	flightCtx := context.WithoutCancel(ctx)

	ch := c.group.DoChan(key, func() (any, error) {
		// outra flight pode ter populado a chave entre o lookup e o DoChan
		if v, ok := c.lookup(key); ok {
			return v, nil
		}
		return c.run(flightCtx, key, ttl, compute)
	})

	var zero V
	select {
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		v, _ := res.Val.(V)
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (c *Cache[V]) run(ctx context.Context, key string, ttl time.Duration, compute func(context.Context) (V, error)) (any, error) {
	c.computations.Add(1)
	start := time.Now()

	v, err := safeCompute(ctx, compute)
	if err != nil {
		c.failures.Add(1)
		c.cfg.logger.Debug("cache computation failed",
			zap.String("key", key),
			zap.Error(err),
		)
		return nil, err
	}

	if st, ok := any(v).(domain.Storable); ok && !st.Cacheable() {
		c.uncacheable.Add(1)
		c.cfg.logger.Debug("cache value not stored",
			zap.String("key", key),
			zap.Duration("took", time.Since(start)),
		)
		return v, nil
	}

	c.set(key, v, ttl)
	c.cfg.logger.Debug("cache populated",
		zap.String("key", key),
		zap.Duration("ttl", ttl),
		zap.Duration("took", time.Since(start)),
	)
	return v, nil
}

// safeCompute converte panic em erro: dentro do DoChan um panic derrubaria o processo.
func safeCompute[V any](ctx context.Context, compute func(context.Context) (V, error)) (v V, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &domain.PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return compute(ctx)
}

func (c *Cache[V]) lookup(key string) (V, bool) {
	var zero V

	c.mu.Lock()
	defer c.mu.Unlock()

	raw, ok := c.entries.Get(key)
	if !ok {
		return zero, false
	}
	ent := raw.(domain.CacheEntry[V])
	if !ent.Valid(c.cfg.now()) {
		c.entries.Delete(key)
		return zero, false
	}
	return ent.Value, true
}

func (c *Cache[V]) set(key string, v V, ttl time.Duration) {
	ent := domain.CacheEntry[V]{Key: key, Value: v, ExpiresAt: c.cfg.now().Add(ttl)}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Set(key, ent)
}

// Peek retorna a entrada guardada (mesmo expirada) sem alterar a ordem do LRU.
func (c *Cache[V]) Peek(key string) (domain.CacheEntry[V], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	raw, ok := c.entries.Peek(key)
	if !ok {
		return domain.CacheEntry[V]{}, false
	}
	return raw.(domain.CacheEntry[V]), true
}

func (c *Cache[V]) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, deleted := c.entries.Delete(key)
	return deleted
}

func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

// Cleanup remove as entradas expiradas e retorna quantas foram removidas.
func (c *Cache[V]) Cleanup() int {
	now := c.cfg.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	var expired []any
	c.entries.Range(func(key, value any) bool {
		if !value.(domain.CacheEntry[V]).Valid(now) {
			expired = append(expired, key)
		}
		return true
	})
	for _, k := range expired {
		c.entries.Delete(k)
	}
	return len(expired)
}

func (c *Cache[V]) StartJanitor(ctx DoneContext) {
	startJanitor(ctx, c.cfg.cleanupEvery, func() { c.Cleanup() })
}

func (c *Cache[V]) Stats() domain.CacheStats {
	return domain.CacheStats{
		Hits:         c.hits.Load(),
		Misses:       c.misses.Load(),
		Computations: c.computations.Load(),
		Failures:     c.failures.Load(),
		Uncacheable:  c.uncacheable.Load(),
		Entries:      c.Len(),
	}
}
