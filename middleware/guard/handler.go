package guard

import (
	"context"
	"errors"
	"net/http"
	"runtime/debug"

	"request-guard/middleware/guard/domain"
)

var errNoHTTPRequest = errors.New("guard: request does not carry an *http.Request")

// HandlerFunc é um handler HTTP que pode falhar. O erro chega intacto ao
// pipeline (conta como exceção e vira 500 no middleware).
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

// ServeHTTPErr implementa ErrorHandler.
func (f HandlerFunc) ServeHTTPErr(w http.ResponseWriter, r *http.Request) error {
	return f(w, r)
}

// ServeHTTP permite usar o HandlerFunc fora do middleware.
func (f HandlerFunc) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := f(w, r); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

type ErrorHandler interface {
	ServeHTTPErr(w http.ResponseWriter, r *http.Request) error
}

// FromHTTP adapta um http.Handler para domain.Handler.
//
// A resposta é capturada em memória. Se next implementa ErrorHandler o erro é
// devolvido; panics viram *domain.PanicError (exceto http.ErrAbortHandler).
func FromHTTP(next http.Handler) domain.Handler {
	return domain.HandlerFunc(func(ctx context.Context, req domain.Request) (domain.Response, error) {
		rec := newCapture()
		if err := serveTo(ctx, req, next, rec); err != nil {
			return domain.Response{}, err
		}
		return rec.response(), nil
	})
}

// streamTo é o FromHTTP sem buffer: next escreve direto em pt. A Response
// devolvida só leva o status; corpo e headers já foram para o cliente.
func streamTo(next http.Handler, pt *passthrough) domain.Handler {
	return domain.HandlerFunc(func(ctx context.Context, req domain.Request) (domain.Response, error) {
		if err := serveTo(ctx, req, next, pt); err != nil {
			return domain.Response{}, err
		}
		return domain.Response{Status: pt.statusCode()}, nil
	})
}

func serveTo(ctx context.Context, req domain.Request, next http.Handler, w http.ResponseWriter) (err error) {
	r, ok := req.Raw.(*http.Request)
	if !ok || r == nil {
		return errNoHTTPRequest
	}
	r = r.WithContext(ctx)

	defer func() {
		if v := recover(); v != nil {
			if v == http.ErrAbortHandler {
				panic(v)
			}
			err = &domain.PanicError{Value: v, Stack: debug.Stack()}
		}
	}()

	if eh, ok := next.(ErrorHandler); ok {
		return eh.ServeHTTPErr(w, r)
	}
	next.ServeHTTP(w, r)
	return nil
}
