package infra

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSemaphorePool_BlocksWhenFullUntilRelease(t *testing.T) {
	p := NewSemaphorePool(1)

	release, ok := p.Acquire(context.Background())
	require.True(t, ok)
	assert.Equal(t, int64(1), p.InUse())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, ok = p.Acquire(ctx)
	assert.False(t, ok, "second acquire should time out while the slot is held")

	release()
	release() // segunda chamada não pode liberar vaga extra
	assert.Equal(t, int64(0), p.InUse())

	r2, ok := p.Acquire(context.Background())
	require.True(t, ok)
	r2()

	assert.True(t, p.sem.TryAcquire(1))
	assert.False(t, p.sem.TryAcquire(1), "double release must not grow capacity")
}
