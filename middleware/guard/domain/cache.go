package domain

import (
	"context"
	"time"
)

// CacheEntry é um valor memoizado. Válido estritamente antes de ExpiresAt;
// depois disso deve ser tratado como ausente, mesmo que ainda esteja no mapa.
type CacheEntry[V any] struct {
	Key       string
	Value     V
	ExpiresAt time.Time
}

func (e CacheEntry[V]) Valid(now time.Time) bool { return now.Before(e.ExpiresAt) }

// ResponseCache é o cache-aside usado pelo pipeline para endpoints caros.
//
// GetOrCompute chama compute no máximo uma vez por episódio de miss, mesmo com
// chamadas concorrentes na mesma chave. Falhas não são guardadas, e respostas
// com Cacheable() == false são entregues sem ir para o cache.
type ResponseCache interface {
	GetOrCompute(ctx context.Context, key string, ttl time.Duration, compute func(context.Context) (Response, error)) (Response, error)
}

// CacheStats são contadores do cache para inspeção.
type CacheStats struct {
	Hits         int64 `json:"hits"`
	Misses       int64 `json:"misses"`
	Computations int64 `json:"computations"`
	Failures     int64 `json:"failures"`
	// Uncacheable conta valores computados com sucesso mas não guardados.
	Uncacheable  int64 `json:"uncacheable"`
	Entries      int   `json:"entries"`
}

// Storable é implementado por valores que decidem se podem ser guardados
// (ex.: Response.Cacheable). Valores sem o método são sempre guardados.
type Storable interface {
	Cacheable() bool
}

type CacheStatsSource interface {
	Stats() CacheStats
}
