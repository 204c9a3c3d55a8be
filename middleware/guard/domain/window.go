package domain

// Regras da janela fixa de admissão.

import (
	"math"
	"time"
)

// WindowState é o estado por identidade da janela fixa.
//
// Invariantes: Count >= 0 e WindowStart nunca anda para trás para a mesma chave.
type WindowState struct {
	Key         Key
	Count       int64
	WindowStart time.Time
}

// Elapsed informa se a janela iniciada em WindowStart já passou em `now`.
// O limite é exclusivo: exatamente `window` depois ainda pertence à janela.
func (s WindowState) Elapsed(now time.Time, window time.Duration) bool {
	return now.Sub(s.WindowStart) > window
}

// ResetAt é o instante a partir do qual a próxima requisição abre uma nova janela.
func (s WindowState) ResetAt(window time.Duration) time.Time {
	return s.WindowStart.Add(window)
}

// Advance aplica uma requisição em `now` e retorna o novo estado.
//
// Estado vazio ou janela expirada => nova janela com Count=1.
// Caso contrário incrementa Count, saturando em math.MaxInt64.
// Quem chama é responsável por executar Advance de forma atômica por chave.
func (s WindowState) Advance(now time.Time, window time.Duration) WindowState {
	if s.Count <= 0 || s.Elapsed(now, window) {
		start := now
		if start.Before(s.WindowStart) {
			// relógio voltou: mantém o início para não andar para trás
			start = s.WindowStart
		}
		return WindowState{Key: s.Key, Count: 1, WindowStart: start}
	}
	if s.Count < math.MaxInt64 {
		s.Count++
	}
	return s
}

// WindowStore mantém um WindowState por chave.
//
// Hit deve aplicar Advance de forma atômica (ler, decidir e gravar sob o mesmo lock)
// e retornar o estado resultante. Uma implementação distribuída (ex.: Redis
// INCR + PEXPIRE) entraria aqui sem alterar a camada application.
type WindowStore interface {
	Hit(key Key, now time.Time, window time.Duration) WindowState
}

// Decision é o resultado da admissão para uma requisição.
type Decision struct {
	Allowed bool
	Key     Key

	// Count e Limit descrevem a janela corrente. Limit == 0 significa sem limite.
	Count int64
	Limit int64

	ResetAt time.Time
	// RetryAfter é o tempo até a janela reiniciar. Só é preenchido quando bloqueado.
	RetryAfter time.Duration

	// At é o instante da decisão, no relógio de quem decidiu.
	At time.Time
}

// Remaining é quantas requisições ainda cabem na janela corrente.
func (d Decision) Remaining() int64 {
	if d.Count >= d.Limit {
		return 0
	}
	return d.Limit - d.Count
}
