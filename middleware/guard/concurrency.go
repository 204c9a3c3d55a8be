package guard

import (
	"net/http"
	"time"

	"request-guard/middleware/guard/application"
	"request-guard/middleware/guard/domain"
	"request-guard/middleware/guard/infra"

	"go.uber.org/zap"
)

// ConcurrencyOptions limita quantas requisições chegam ao handler ao mesmo tempo.
//
// Colocado dentro de Middleware, só as computações (cache miss ou rota sem
// cache) ocupam vaga; hits do cache respondem sem esperar.
type ConcurrencyOptions struct {
	// Pool tem prioridade sobre Max. Com os dois vazios o middleware não faz nada.
	Pool           domain.SlotPool
	Max            int64
	RejectStatus   int
	AcquireTimeout time.Duration
	Logger         *zap.Logger
}

func ConcurrencyMiddleware(opts ConcurrencyOptions) func(next http.Handler) http.Handler {
	if opts.Pool == nil && opts.Max > 0 {
		opts.Pool = infra.NewSemaphorePool(opts.Max)
	}
	if opts.Pool == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusServiceUnavailable
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	svc := application.ConcurrencyService{
		Pool:           opts.Pool,
		AcquireTimeout: opts.AcquireTimeout,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			release, ok := svc.Acquire(r.Context())
			if !ok {
				opts.Logger.Debug("no free slot", zap.String("path", r.URL.Path))
				w.Header().Set("Retry-After", "1")
				http.Error(w, http.StatusText(opts.RejectStatus), opts.RejectStatus)
				return
			}
			defer release()

			next.ServeHTTP(w, r)
		})
	}
}
