package guard

import (
	"context"
	"errors"
	"net/http"
	"time"

	"request-guard/middleware/guard/application"
	"request-guard/middleware/guard/domain"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type Options struct {
	// Admission nil => sem limite (tudo passa).
	Admission application.Admitter
	Traffic   domain.TrafficRecorder
	Stats     domain.StatsStore

	Cache    domain.ResponseCache
	CacheKey CacheKeyFunc
	CacheTTL time.Duration

	KeyFn               KeyFunc
	KeyHeader           string
	RejectStatus        int
	AddRateLimitHeaders bool

	Logger *zap.Logger
}

// Middleware monta um application.Pipeline em volta de next.
//
// Só as rotas com chave de cache têm a resposta capturada em memória (para ir
// ao cache e ser reenviada). As demais escrevem direto no cliente, com
// Flush/Hijack disponíveis; erros e panics contam do mesmo jeito.
func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusTooManyRequests
	}
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultKeyFunc(opts.KeyHeader)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	// no máximo uma linha de log de bloqueio por segundo
	denyLog := &rate.Sometimes{Interval: time.Second}

	return func(next http.Handler) http.Handler {
		p := application.Pipeline{
			Traffic:  opts.Traffic,
			Stats:    opts.Stats,
			Cache:    opts.Cache,
			CacheTTL: opts.CacheTTL,
			Handler:  FromHTTP(next),
			Logger:   opts.Logger,
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rp := p
			rp.Admission = headerAdmitter{opts: &opts, w: w}

			var cacheKey string
			if opts.Cache != nil && opts.CacheKey != nil {
				cacheKey = opts.CacheKey(r)
			}
			var pt *passthrough
			if cacheKey == "" {
				pt = &passthrough{ResponseWriter: w}
				rp.Handler = streamTo(next, pt)
			} else {
				rp.CacheKey = func(domain.Request) string { return cacheKey }
			}

			out, err := rp.Process(r.Context(), requestFrom(r, opts.KeyFn))

			var rej *domain.RejectedError
			switch {
			case errors.As(err, &rej):
				w.Header().Set("Retry-After", formatInt64(retryAfterSeconds(rej.RetryAfter)))
				denyLog.Do(func() {
					opts.Logger.Info("request rejected",
						zap.String("key", string(rej.Key)),
						zap.Int64("count", out.Decision.Count),
						zap.Duration("retry_after", rej.RetryAfter),
					)
				})
				http.Error(w, http.StatusText(opts.RejectStatus), opts.RejectStatus)

			case err != nil:
				if errors.Is(err, context.Canceled) && r.Context().Err() != nil {
					// cliente foi embora; não há para quem responder
					return
				}
				if errors.Is(err, http.ErrAbortHandler) {
					// no caminho com cache o panic chega como *domain.PanicError;
					// já contado como exceção, volta a ser abort para o servidor
					panic(http.ErrAbortHandler)
				}
				opts.Logger.Error("request failed",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Error(err),
				)
				if pt != nil && pt.wrote {
					// status já foi enviado
					return
				}
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)

			case pt == nil:
				writeResponse(w, out.Response)
			}
		})
	}
}

// headerAdmitter coloca os headers X-RateLimit-* antes do handler rodar; na
// rota sem cache ele escreve direto no cliente.
type headerAdmitter struct {
	opts *Options
	w    http.ResponseWriter
}

func (a headerAdmitter) Decide(key domain.Key) domain.Decision {
	dec := domain.Decision{Allowed: true, Key: key}
	if a.opts.Admission != nil {
		dec = a.opts.Admission.Decide(key)
	}
	if a.opts.AddRateLimitHeaders {
		setRateLimitHeaders(a.w.Header(), dec)
	}
	return dec
}

func setRateLimitHeaders(h http.Header, dec domain.Decision) {
	h.Set("X-RateLimit-Key", string(dec.Key))
	if dec.Limit <= 0 {
		return
	}
	h.Set("X-RateLimit-Limit", formatInt64(dec.Limit))
	h.Set("X-RateLimit-Remaining", formatInt64(dec.Remaining()))
	h.Set("X-RateLimit-Reset", formatInt64(dec.ResetAt.Unix()))
}
