package infra

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"request-guard/middleware/guard/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counting[V any](calls *atomic.Int64, v V) func(context.Context) (V, error) {
	return func(context.Context) (V, error) {
		calls.Add(1)
		return v, nil
	}
}

func TestCache_ComputesOnceWithinTTL(t *testing.T) {
	c := NewCache[string]()
	var calls atomic.Int64

	v1, err := c.GetOrCompute(context.Background(), "k", time.Minute, counting(&calls, "v"))
	require.NoError(t, err)
	v2, err := c.GetOrCompute(context.Background(), "k", time.Minute, counting(&calls, "other"))
	require.NoError(t, err)

	assert.Equal(t, "v", v1)
	assert.Equal(t, "v", v2)
	assert.Equal(t, int64(1), calls.Load())

	st := c.Stats()
	assert.Equal(t, int64(1), st.Hits)
	assert.Equal(t, int64(1), st.Misses)
	assert.Equal(t, int64(1), st.Computations)
	assert.Equal(t, 1, st.Entries)
}

// Cenário: TTL=300s, cálculo em t=0, leitura em t=100 sem recomputar, t=301 recomputa.
func TestCache_ProductsExportScenario(t *testing.T) {
	clock := newFakeClock()
	t0 := clock.Now()
	c := NewCache[map[string]any](WithCacheClock(clock.Now))

	var calls atomic.Int64
	compute := func(context.Context) (map[string]any, error) {
		n := calls.Add(1)
		return map[string]any{"products": []string{"p1", "p2"}, "generation": n}, nil
	}

	v, err := c.GetOrCompute(context.Background(), "product_data_export", 300*time.Second, compute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v["generation"])

	clock.At(t0, 100*time.Second)
	v, err = c.GetOrCompute(context.Background(), "product_data_export", 300*time.Second, compute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v["generation"])
	assert.Equal(t, int64(1), calls.Load())

	clock.At(t0, 301*time.Second)
	v, err = c.GetOrCompute(context.Background(), "product_data_export", 300*time.Second, compute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v["generation"])
	assert.Equal(t, int64(2), calls.Load())
}

func TestCache_ExpiredEntryIsAbsentEvenIfPresent(t *testing.T) {
	clock := newFakeClock()
	c := NewCache[int](WithCacheClock(clock.Now))
	var calls atomic.Int64

	_, err := c.GetOrCompute(context.Background(), "k", time.Second, counting(&calls, 1))
	require.NoError(t, err)

	clock.Advance(time.Second) // exatamente expiresAt: já não vale
	_, err = c.GetOrCompute(context.Background(), "k", time.Second, counting(&calls, 2))
	require.NoError(t, err)

	assert.Equal(t, int64(2), calls.Load())
	ent, ok := c.Peek("k")
	require.True(t, ok)
	assert.Equal(t, 2, ent.Value)
}

func TestCache_ConcurrentMissesShareOneComputation(t *testing.T) {
	c := NewCache[string]()

	const n = 50
	var calls atomic.Int64
	release := make(chan struct{})
	compute := func(context.Context) (string, error) {
		calls.Add(1)
		<-release
		return "payload", nil
	}

	var wg sync.WaitGroup
	results := make([]string, n)
	errs := make([]error, n)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			results[i], errs[i] = c.GetOrCompute(context.Background(), "k", time.Minute, compute)
		}()
	}

	// todos precisam estar esperando a mesma flight antes de liberar
	require.Eventually(t, func() bool { return c.Stats().Misses == n }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int64(1), calls.Load())
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "payload", results[i])
	}
}

func TestCache_FailureReachesAllWaitersAndIsNotStored(t *testing.T) {
	c := NewCache[string]()
	boom := errors.New("origin down")

	const n = 20
	var calls atomic.Int64
	release := make(chan struct{})
	failing := func(context.Context) (string, error) {
		calls.Add(1)
		<-release
		return "", boom
	}

	var wg sync.WaitGroup
	errs := make([]error, n)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, errs[i] = c.GetOrCompute(context.Background(), "k", time.Minute, failing)
		}()
	}
	require.Eventually(t, func() bool { return c.Stats().Misses == n }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond) // deixa os últimos entrarem na flight
	close(release)
	wg.Wait()

	assert.Equal(t, int64(1), calls.Load())
	for _, err := range errs {
		assert.ErrorIs(t, err, boom)
	}
	_, ok := c.Peek("k")
	assert.False(t, ok, "failed computation must not be cached")
	assert.Equal(t, int64(1), c.Stats().Failures)

	// próxima chamada tenta de novo
	var retry atomic.Int64
	v, err := c.GetOrCompute(context.Background(), "k", time.Minute, counting(&retry, "ok"))
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, int64(1), retry.Load())
}

func TestCache_CallerCancellationDoesNotCancelComputation(t *testing.T) {
	c := NewCache[string]()

	release := make(chan struct{})
	computeErr := make(chan error, 1)
	compute := func(ctx context.Context) (string, error) {
		<-release
		computeErr <- ctx.Err()
		return "late", nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := c.GetOrCompute(ctx, "k", time.Minute, compute)
		done <- err
	}()

	require.Eventually(t, func() bool { return c.Stats().Misses == 1 }, time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	close(release)
	assert.NoError(t, <-computeErr, "shared computation must not see the caller's cancellation")
	assert.Eventually(t, func() bool {
		ent, ok := c.Peek("k")
		return ok && ent.Value == "late"
	}, time.Second, time.Millisecond)
}

func TestCache_PanicBecomesError(t *testing.T) {
	c := NewCache[string]()

	_, err := c.GetOrCompute(context.Background(), "k", time.Minute, func(context.Context) (string, error) {
		panic("kaboom")
	})

	var pe *domain.PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "kaboom", pe.Value)
	assert.Zero(t, c.Len())
}

func TestCache_KeysAreIndependent(t *testing.T) {
	c := NewCache[string]()
	var calls atomic.Int64

	a, _ := c.GetOrCompute(context.Background(), "user_orders_export:1", time.Minute, counting(&calls, "orders-1"))
	b, _ := c.GetOrCompute(context.Background(), "user_orders_export:2", time.Minute, counting(&calls, "orders-2"))

	assert.Equal(t, "orders-1", a)
	assert.Equal(t, "orders-2", b)
	assert.Equal(t, int64(2), calls.Load())
}

func TestCache_DefaultTTLWhenZero(t *testing.T) {
	clock := newFakeClock()
	c := NewCache[int](WithCacheClock(clock.Now), WithDefaultTTL(10*time.Second))

	_, err := c.GetOrCompute(context.Background(), "k", 0, func(context.Context) (int, error) { return 1, nil })
	require.NoError(t, err)

	ent, ok := c.Peek("k")
	require.True(t, ok)
	assert.Equal(t, clock.Now().Add(10*time.Second), ent.ExpiresAt)
}

func TestCache_MaxEntriesEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewCache[int](WithMaxEntries(2))
	ctx := context.Background()
	val := func(n int) func(context.Context) (int, error) {
		return func(context.Context) (int, error) { return n, nil }
	}

	_, _ = c.GetOrCompute(ctx, "a", time.Minute, val(1))
	_, _ = c.GetOrCompute(ctx, "b", time.Minute, val(2))
	_, _ = c.GetOrCompute(ctx, "a", time.Minute, val(1)) // "a" passa a ser o mais recente
	_, _ = c.GetOrCompute(ctx, "c", time.Minute, val(3))

	assert.Equal(t, 2, c.Len())
	_, ok := c.Peek("b")
	assert.False(t, ok)
	_, ok = c.Peek("a")
	assert.True(t, ok)
}

func TestCache_CleanupSweepsExpired(t *testing.T) {
	clock := newFakeClock()
	c := NewCache[int](WithCacheClock(clock.Now))
	ctx := context.Background()

	_, _ = c.GetOrCompute(ctx, "short", time.Second, func(context.Context) (int, error) { return 1, nil })
	_, _ = c.GetOrCompute(ctx, "long", time.Hour, func(context.Context) (int, error) { return 2, nil })

	clock.Advance(time.Minute)
	assert.Equal(t, 1, c.Cleanup())
	assert.Equal(t, 1, c.Len())
	assert.True(t, c.Delete("long"))
	assert.Zero(t, c.Len())
}

func TestCache_ImplementsResponseCache(t *testing.T) {
	var _ domain.ResponseCache = NewCache[domain.Response]()
}

type page struct {
	body   string
	shared bool
}

func (p page) Cacheable() bool { return p.shared }

func TestCache_UncacheableValueIsReturnedButNotStored(t *testing.T) {
	c := NewCache[page]()
	var calls atomic.Int64
	compute := func(context.Context) (page, error) {
		calls.Add(1)
		return page{body: "hello alice"}, nil
	}

	for range 2 {
		v, err := c.GetOrCompute(context.Background(), "page:/me", time.Minute, compute)
		require.NoError(t, err)
		assert.Equal(t, "hello alice", v.body)
	}

	assert.Equal(t, int64(2), calls.Load())
	assert.Zero(t, c.Len())
	st := c.Stats()
	assert.Zero(t, st.Failures)
	assert.Equal(t, int64(2), st.Uncacheable)
	assert.Equal(t, int64(2), st.Computations)
}

func TestCache_StorableValueIsStoredWhenCacheable(t *testing.T) {
	c := NewCache[page]()

	_, err := c.GetOrCompute(context.Background(), "page:/", time.Minute, func(context.Context) (page, error) {
		return page{body: "home", shared: true}, nil
	})
	require.NoError(t, err)

	ent, ok := c.Peek("page:/")
	require.True(t, ok)
	assert.Equal(t, "home", ent.Value.body)
	assert.Zero(t, c.Stats().Uncacheable)
}
