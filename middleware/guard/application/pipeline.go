package application

import (
	"context"
	"errors"
	"runtime/debug"
	"time"

	"request-guard/middleware/guard/domain"

	"go.uber.org/zap"
)

// ErrNoHandler é retornado quando o pipeline não tem handler configurado.
var ErrNoHandler = errors.New("pipeline: no handler configured")

// Pipeline compõe contador de tráfego, admissão e cache em volta de um handler.
//
// Os componentes são compartilhados por referência: vários pipelines (um por
// endpoint) podem usar o mesmo Admitter, Traffic e Cache.
type Pipeline struct {
	Admission Admitter
	Traffic   domain.TrafficRecorder
	Stats     domain.StatsStore

	// Cache é usado quando CacheKey retorna chave não vazia.
	Cache    domain.ResponseCache
	CacheKey func(domain.Request) string
	CacheTTL time.Duration

	Handler domain.Handler
	Logger  *zap.Logger
}

// Process executa o fluxo de uma requisição:
//
//	RequestStarted -> Decide -> (deny) ResponseCompleted + RejectedError
//	                         -> (allow) handler/cache -> ResponseCompleted | ExceptionRaised
//
// Erros do handler são devolvidos sem alteração. Um panic que atravessa o
// pipeline (ex.: http.ErrAbortHandler) conta como exceção e segue propagando.
func (p Pipeline) Process(ctx context.Context, req domain.Request) (domain.Outcome, error) {
	traffic := p.Traffic
	if traffic == nil {
		traffic = nopTraffic{}
	}
	traffic.RequestStarted()

	defer func() {
		if v := recover(); v != nil {
			traffic.ExceptionRaised(&domain.PanicError{Value: v, Stack: debug.Stack()})
			panic(v)
		}
	}()

	key := req.Identity()
	dec := domain.Decision{Allowed: true, Key: key}
	if p.Admission != nil {
		dec = p.Admission.Decide(key)
	}
	p.record(ctx, req, dec)

	if !dec.Allowed {
		traffic.ResponseCompleted()
		return domain.Outcome{Decision: dec}, &domain.RejectedError{Key: key, RetryAfter: dec.RetryAfter}
	}

	resp, err := p.handle(ctx, req)
	if err != nil {
		traffic.ExceptionRaised(err)
		return domain.Outcome{Decision: dec}, err
	}
	traffic.ResponseCompleted()
	return domain.Outcome{Response: resp, Decision: dec}, nil
}

func (p Pipeline) handle(ctx context.Context, req domain.Request) (domain.Response, error) {
	if p.Handler == nil {
		return domain.Response{}, ErrNoHandler
	}

	var key string
	if p.Cache != nil && p.CacheKey != nil {
		key = p.CacheKey(req)
	}
	if key == "" {
		return p.Handler.Handle(ctx, req)
	}

	// o cache só guarda respostas com Cacheable() == true; as demais voltam
	// para quem chamou sem contar como falha
	return p.Cache.GetOrCompute(ctx, key, p.CacheTTL, func(cctx context.Context) (domain.Response, error) {
		return p.Handler.Handle(cctx, req)
	})
}

func (p Pipeline) record(ctx context.Context, req domain.Request, dec domain.Decision) {
	if p.Stats == nil {
		return
	}
	at := dec.At
	if at.IsZero() {
		at = time.Now()
	}
	err := p.Stats.Record(ctx, domain.StatsEvent{
		Key:     dec.Key,
		Allowed: dec.Allowed,
		Count:   dec.Count,
		Method:  req.Method,
		Path:    req.Path,
		At:      at,
	})
	if err != nil && p.Logger != nil {
		p.Logger.Debug("admission stats not recorded", zap.Error(err))
	}
}

type nopTraffic struct{}

func (nopTraffic) RequestStarted()       {}
func (nopTraffic) ResponseCompleted()    {}
func (nopTraffic) ExceptionRaised(error) {}
