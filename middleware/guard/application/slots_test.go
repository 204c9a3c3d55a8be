package application

import (
	"context"
	"testing"
	"time"
)

type blockingPool struct{}

func (blockingPool) Acquire(ctx context.Context) (func(), bool) {
	select {
	case <-ctx.Done():
		return nil, false
	case <-time.After(5 * time.Second):
		// não deve chegar aqui nos testes
		return nil, false
	}
}

type immediatePool struct {
	acquired int
}

func (p *immediatePool) Acquire(context.Context) (func(), bool) {
	p.acquired++
	return func() {}, true
}

func TestConcurrencyService_AllowsWhenNoPool(t *testing.T) {
	release, ok := ConcurrencyService{}.Acquire(context.Background())
	if !ok {
		t.Fatalf("expected ok")
	}
	release()
}

func TestConcurrencyService_UsesTimeout(t *testing.T) {
	svc := ConcurrencyService{Pool: blockingPool{}, AcquireTimeout: 10 * time.Millisecond}

	if _, ok := svc.Acquire(context.Background()); ok {
		t.Fatalf("expected timeout and ok=false")
	}
}

func TestConcurrencyService_NoTimeoutDelegatesToPool(t *testing.T) {
	pool := &immediatePool{}
	svc := ConcurrencyService{Pool: pool}

	if _, ok := svc.Acquire(context.Background()); !ok {
		t.Fatalf("expected ok")
	}
	if pool.acquired != 1 {
		t.Fatalf("expected pool Acquire to be called once, got %d", pool.acquired)
	}
}
