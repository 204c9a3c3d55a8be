// Package application contém os casos de uso do guard: decisão de admissão por
// janela fixa e a composição do pipeline (contadores, admissão, cache, handler).
//
// Ele depende apenas do pacote domain e não conhece net/http.
// Ex.: AdmissionService.Decide(key) retorna uma Decision; Pipeline.Process(ctx, req)
// executa o fluxo completo e devolve Outcome ou erro.
package application
