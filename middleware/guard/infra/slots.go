package infra

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// SemaphorePool implementa domain.SlotPool com um semaphore.Weighted.
// Waiters são atendidos em ordem de chegada.
type SemaphorePool struct {
	sem   *semaphore.Weighted
	size  int64
	inUse atomic.Int64
}

func NewSemaphorePool(size int64) *SemaphorePool {
	return &SemaphorePool{sem: semaphore.NewWeighted(size), size: size}
}

func (p *SemaphorePool) Acquire(ctx context.Context) (func(), bool) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, false
	}
	p.inUse.Add(1)

	var once sync.Once
	return func() {
		once.Do(func() {
			p.inUse.Add(-1)
			p.sem.Release(1)
		})
	}, true
}

func (p *SemaphorePool) Size() int64  { return p.size }
func (p *SemaphorePool) InUse() int64 { return p.inUse.Load() }
