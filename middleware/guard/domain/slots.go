package domain

import "context"

// SlotPool limita quantas requisições chegam ao handler ao mesmo tempo.
//
// Acquire bloqueia até conseguir uma vaga ou até ctx encerrar. A função de
// release devolve a vaga; chamadas repetidas não devolvem duas vezes.
type SlotPool interface {
	Acquire(ctx context.Context) (release func(), ok bool)
}
