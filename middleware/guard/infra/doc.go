// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
// Exemplos:
//   - WindowStore: janela fixa por chave sobre concurrent-map (locks por shard)
//   - Cache: cache-aside com TTL, LRU (tinylru) e singleflight nos misses
//   - TrafficCounters: contadores atômicos de requests/responses/exceções
//   - MemoryStatsStore / RedisStatsStore: estatísticas das decisões de admissão
//   - SemaphorePool: vagas de concorrência (x/sync/semaphore)
//   - RegisterMetrics: exposição dos contadores em Prometheus
package infra
