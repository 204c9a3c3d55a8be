package application

import (
	"context"
	"time"

	"request-guard/middleware/guard/domain"
)

// ConcurrencyService aplica o timeout de espera por vaga, sem saber nada de HTTP.
//
// Pool nil => sem limite. AcquireTimeout <= 0 => espera até ctx encerrar.
type ConcurrencyService struct {
	Pool           domain.SlotPool
	AcquireTimeout time.Duration
}

func (s ConcurrencyService) Acquire(ctx context.Context) (func(), bool) {
	if s.Pool == nil {
		return func() {}, true
	}
	if s.AcquireTimeout <= 0 {
		return s.Pool.Acquire(ctx)
	}

	acqCtx, cancel := context.WithTimeout(ctx, s.AcquireTimeout)
	defer cancel()
	return s.Pool.Acquire(acqCtx)
}
