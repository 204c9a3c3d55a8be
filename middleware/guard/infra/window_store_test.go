package infra

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"request-guard/middleware/guard/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindowStore_FirstHitOpensWindow(t *testing.T) {
	s := NewWindowStore()
	now := time.Now()

	st := s.Hit("a", now, time.Minute)

	assert.Equal(t, int64(1), st.Count)
	assert.Equal(t, now, st.WindowStart)
	assert.Equal(t, domain.Key("a"), st.Key)
	assert.Equal(t, 1, s.Len())
}

func TestWindowStore_KeysAreIsolated(t *testing.T) {
	s := NewWindowStore()
	now := time.Now()

	for i := 0; i < 5; i++ {
		s.Hit("a", now, time.Minute)
	}
	st := s.Hit("b", now, time.Minute)

	assert.Equal(t, int64(1), st.Count)
	a, ok := s.Peek("a")
	require.True(t, ok)
	assert.Equal(t, int64(5), a.Count)
}

func TestWindowStore_ConcurrentHitsCountEveryRequest(t *testing.T) {
	s := NewWindowStore()
	now := time.Now()

	const n = 500
	var wg sync.WaitGroup
	var admitted atomic.Int64
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			if s.Hit("hot", now, time.Minute).Count <= 100 {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	st, ok := s.Peek("hot")
	require.True(t, ok)
	assert.Equal(t, int64(n), st.Count)
	assert.Equal(t, int64(100), admitted.Load(), "exactly max requests must observe a count within the limit")
}

func TestWindowStore_CleanupRemovesOnlyElapsedWindows(t *testing.T) {
	clock := newFakeClock()
	s := NewWindowStore(WithIdleTTL(time.Millisecond), WithWindowClock(clock.Now), WithCleanupEvery(0))

	start := clock.Now()
	s.Hit("old", start, time.Minute)
	s.Hit("fresh", start.Add(30*time.Second), time.Minute)

	// idle TTL menor que a janela: a janela em uso prevalece
	clock.Advance(61 * time.Second)
	removed := s.Cleanup()

	assert.Equal(t, 1, removed)
	_, ok := s.Peek("old")
	assert.False(t, ok)
	_, ok = s.Peek("fresh")
	assert.True(t, ok)
}

func TestWindowStore_EvictedKeyStartsOver(t *testing.T) {
	clock := newFakeClock()
	s := NewWindowStore(WithIdleTTL(0), WithWindowClock(clock.Now))

	start := clock.Now()
	for i := 0; i < 10; i++ {
		s.Hit("a", start, time.Minute)
	}
	clock.Advance(2 * time.Minute)
	require.Equal(t, 1, s.Cleanup())

	st := s.Hit("a", clock.Now(), time.Minute)
	assert.Equal(t, int64(1), st.Count)
}

func TestWindowStore_StartJanitorStopsWithContext(t *testing.T) {
	s := NewWindowStore(WithIdleTTL(time.Nanosecond), WithCleanupEvery(5*time.Millisecond))
	s.Hit("a", time.Now().Add(-time.Hour), time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.StartJanitor(ctx)

	assert.Eventually(t, func() bool { return s.Len() == 0 }, time.Second, 5*time.Millisecond)
}
