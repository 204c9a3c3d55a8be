package domain

import (
	"context"
	"time"
)

// StatsEvent representa uma decisão de admissão.
//
// Method/Path são strings genéricas, sem depender de HTTP.
//
// Observação: cuidado com cardinalidade (salvar Key/Path sem controle pode
// explodir o número de chaves em Redis/Prometheus).
type StatsEvent struct {
	Key     Key
	Allowed bool
	// Count é a posição da requisição na janela corrente.
	Count int64

	Method string
	Path   string

	At time.Time
}

// StatsStore persiste estatísticas de admissão.
//
// O pipeline trata erro como best-effort: loga e segue, nunca derruba a request.
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}
