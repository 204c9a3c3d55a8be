package guard

import (
	"net/http"
	"strings"
)

// CacheKeyFunc decide a chave de cache de uma requisição. "" => não usa cache.
type CacheKeyFunc func(r *http.Request) string

// CacheByPath faz cache de página para GET em qualquer um dos prefixos
// informados (todos os GET quando nenhum prefixo é passado).
// A chave inclui a query string e, quando presente, o Accept-Encoding (única
// variação que domain.Response.Cacheable aceita em Vary).
func CacheByPath(prefixes ...string) CacheKeyFunc {
	return func(r *http.Request) string {
		if r.Method != http.MethodGet {
			return ""
		}
		if len(prefixes) > 0 && !hasAnyPrefix(r.URL.Path, prefixes) {
			return ""
		}
		key := "page:" + r.URL.RequestURI()
		if ae := strings.ToLower(strings.TrimSpace(r.Header.Get("Accept-Encoding"))); ae != "" {
			key += "|ae=" + ae
		}
		return key
	}
}

func hasAnyPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// CacheByKey usa sempre a mesma chave (endpoints de exportação).
func CacheByKey(key string) CacheKeyFunc {
	return func(*http.Request) string { return key }
}
