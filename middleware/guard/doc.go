// Package guard fornece o adapter HTTP (net/http) do request guard:
// admissão por janela fixa, contadores de tráfego e cache de respostas caras.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos (sem dependência de net/http)
//   - application: regra de admissão e o Pipeline que compõe tudo
//   - infra: implementações concretas (janela em mapa shardado, cache LRU com
//     singleflight, contadores atômicos, stats em memória/Redis, métricas)
//   - guard (este pacote): middleware HTTP, extração de chave, captura e replay
//     de respostas, tradução para status/headers
//
// Fluxo no gateway:
//
//  1. Extrai a chave do cliente (header configurado, X-Forwarded-For ou RemoteAddr)
//  2. Pipeline.Process: conta a requisição e decide allow/deny
//  3. Se bloqueado, responde 429 com Retry-After
//  4. Se permitido, chama o próximo handler (ou reaproveita a resposta do cache)
//
// Variáveis de ambiente do binário gateway (cmd/gateway) controlam o comportamento,
// como RATE_WINDOW, RATE_MAX_REQUESTS, CACHE_PATHS e CACHE_TTL.
package guard
