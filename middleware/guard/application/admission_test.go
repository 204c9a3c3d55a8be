package application

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"request-guard/middleware/guard/domain"
	"request-guard/middleware/guard/infra"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

var t0 = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func TestAdmissionService_AllowsWhenNoStore(t *testing.T) {
	svc := AdmissionService{}

	dec := svc.Decide("1.2.3.4")

	assert.True(t, dec.Allowed)
	assert.Equal(t, domain.Key("1.2.3.4"), dec.Key)
	assert.Zero(t, dec.Limit)
}

func TestAdmissionService_FixedWindowScenario(t *testing.T) {
	clock := &stepClock{now: t0}
	svc := AdmissionService{
		Store:       infra.NewWindowStore(),
		Window:      60 * time.Second,
		MaxRequests: 3,
		Now:         clock.Now,
	}

	for i, at := range []time.Duration{0, time.Second, 2 * time.Second} {
		clock.Set(t0.Add(at))
		dec := svc.Decide("A")
		require.True(t, dec.Allowed, "request %d should be allowed", i+1)
		assert.Equal(t, int64(i+1), dec.Count)
		assert.Equal(t, int64(2-i), dec.Remaining())
	}

	clock.Set(t0.Add(3 * time.Second))
	dec := svc.Decide("A")
	assert.False(t, dec.Allowed)
	assert.Equal(t, t0.Add(60*time.Second), dec.ResetAt)
	assert.Equal(t, 57*time.Second, dec.RetryAfter)

	// outra identidade não é afetada
	assert.True(t, svc.Decide("B").Allowed)

	clock.Set(t0.Add(61 * time.Second))
	dec = svc.Decide("A")
	assert.True(t, dec.Allowed)
	assert.Equal(t, int64(1), dec.Count)
	assert.Equal(t, t0.Add(121*time.Second), dec.ResetAt)
}

func TestAdmissionService_AppliesDefaults(t *testing.T) {
	clock := &stepClock{now: t0}
	svc := AdmissionService{Store: infra.NewWindowStore(), Now: clock.Now}

	var last domain.Decision
	for range DefaultMaxRequests + 1 {
		last = svc.Decide("A")
	}

	assert.False(t, last.Allowed)
	assert.Equal(t, int64(DefaultMaxRequests), last.Limit)
	assert.Equal(t, t0.Add(DefaultWindow), last.ResetAt)
}

func TestAdmissionService_ConcurrentHitsNeverOvershoot(t *testing.T) {
	svc := AdmissionService{
		Store:       infra.NewWindowStore(),
		Window:      time.Minute,
		MaxRequests: 100,
	}

	var allowed atomic.Int64
	var wg sync.WaitGroup
	for range 1000 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if svc.Decide("shared").Allowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(100), allowed.Load())
}
