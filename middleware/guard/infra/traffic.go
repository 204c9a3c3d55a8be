package infra

import (
	"sync/atomic"

	"request-guard/middleware/guard/domain"

	"go.uber.org/zap"
)

// TrafficCounters implementa domain.TrafficRecorder com três contadores atômicos
// independentes. Nenhum outro componente altera esses valores.
type TrafficCounters struct {
	started    atomic.Int64
	completed  atomic.Int64
	exceptions atomic.Int64

	logger *zap.Logger
}

type TrafficOption func(*TrafficCounters)

func WithTrafficLogger(l *zap.Logger) TrafficOption {
	return func(c *TrafficCounters) { c.logger = l }
}

func NewTrafficCounters(opts ...TrafficOption) *TrafficCounters {
	c := &TrafficCounters{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *TrafficCounters) RequestStarted()    { c.started.Add(1) }
func (c *TrafficCounters) ResponseCompleted() { c.completed.Add(1) }

// ExceptionRaised conta e loga o erro. O erro segue intacto para quem chamou.
func (c *TrafficCounters) ExceptionRaised(err error) {
	n := c.exceptions.Add(1)
	c.logger.Warn("request raised an error",
		zap.Error(err),
		zap.Int64("exceptions_total", n),
	)
}

func (c *TrafficCounters) Snapshot() domain.TrafficSnapshot {
	return domain.TrafficSnapshot{
		RequestsStarted:    c.started.Load(),
		ResponsesCompleted: c.completed.Load(),
		ExceptionsRaised:   c.exceptions.Load(),
	}
}
