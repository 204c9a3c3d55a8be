package guard

import (
	"net/http"
	"strings"

	"request-guard/middleware/guard/domain"
)

// KeyFunc extrai a identidade de admissão de uma requisição.
type KeyFunc func(r *http.Request) string

// DefaultKeyFunc usa o header keyHeader quando presente; senão o primeiro IP do
// X-Forwarded-For e por fim o host de RemoteAddr.
func DefaultKeyFunc(keyHeader string) KeyFunc {
	return func(r *http.Request) string {
		if keyHeader != "" {
			if v := strings.TrimSpace(r.Header.Get(keyHeader)); v != "" {
				return v
			}
		}
		return string(domain.ClientIdentity(r.Header.Get("X-Forwarded-For"), r.RemoteAddr))
	}
}

func requestFrom(r *http.Request, keyFn KeyFunc) domain.Request {
	return domain.Request{
		Method:       r.Method,
		Path:         r.URL.Path,
		Query:        r.URL.RawQuery,
		ForwardedFor: r.Header.Get("X-Forwarded-For"),
		RemoteAddr:   r.RemoteAddr,
		UserAgent:    r.UserAgent(),
		Key:          domain.Key(keyFn(r)),
		Raw:          r,
	}
}
