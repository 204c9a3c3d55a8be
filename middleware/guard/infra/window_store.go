package infra

import (
	"sync/atomic"
	"time"

	"request-guard/middleware/guard/domain"

	cmap "github.com/orcaman/concurrent-map/v2"
	"go.uber.org/zap"
)

// WindowStore guarda o estado da janela fixa por chave.
//
// O mapa é particionado em shards (concurrent-map); Hit executa o
// ler-decidir-gravar inteiro sob o lock do shard da chave, então duas
// requisições concorrentes da mesma identidade nunca observam o mesmo Count.
// A limpeza remove entradas pelo mesmo lock, rechecando a expiração.
type WindowStore struct {
	windows cmap.ConcurrentMap[string, domain.WindowState]

	idleTTL      time.Duration
	cleanupEvery time.Duration
	now          func() time.Time
	logger       *zap.Logger

	// maior janela já usada em Hit; a limpeza nunca remove uma janela ativa.
	maxWindow atomic.Int64
}

type WindowStoreOption func(*WindowStore)

// WithIdleTTL define há quanto tempo uma janela precisa ter começado para ser
// removida. Valores menores que a janela em uso são elevados a ela.
func WithIdleTTL(d time.Duration) WindowStoreOption {
	return func(s *WindowStore) { s.idleTTL = d }
}

func WithCleanupEvery(d time.Duration) WindowStoreOption {
	return func(s *WindowStore) { s.cleanupEvery = d }
}

func WithWindowClock(now func() time.Time) WindowStoreOption {
	return func(s *WindowStore) { s.now = now }
}

func WithWindowLogger(l *zap.Logger) WindowStoreOption {
	return func(s *WindowStore) { s.logger = l }
}

func NewWindowStore(opts ...WindowStoreOption) *WindowStore {
	s := &WindowStore{
		windows:      cmap.New[domain.WindowState](),
		idleTTL:      15 * time.Minute,
		cleanupEvery: 2 * time.Minute,
		now:          time.Now,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *WindowStore) CleanupEvery() time.Duration { return s.cleanupEvery }

// Hit implementa domain.WindowStore.
func (s *WindowStore) Hit(key domain.Key, now time.Time, window time.Duration) domain.WindowState {
	for {
		cur := s.maxWindow.Load()
		if int64(window) <= cur || s.maxWindow.CompareAndSwap(cur, int64(window)) {
			break
		}
	}

	return s.windows.Upsert(string(key), domain.WindowState{}, func(exists bool, inMap, _ domain.WindowState) domain.WindowState {
		if !exists {
			inMap = domain.WindowState{Key: key}
		}
		return inMap.Advance(now, window)
	})
}

// Peek retorna o estado atual sem contar uma requisição.
func (s *WindowStore) Peek(key domain.Key) (domain.WindowState, bool) {
	return s.windows.Get(string(key))
}

func (s *WindowStore) Len() int { return s.windows.Count() }

// Cleanup remove janelas inativas e retorna quantas foram removidas.
//
// Uma janela só é removida depois de expirada, e uma janela expirada é
// equivalente a ausente para Advance: remover não muda nenhuma decisão futura.
func (s *WindowStore) Cleanup() int {
	now := s.now()
	idle := s.idleTTL
	if w := time.Duration(s.maxWindow.Load()); w > idle {
		idle = w
	}
	stale := func(st domain.WindowState) bool { return now.Sub(st.WindowStart) > idle }

	var keys []string
	s.windows.IterCb(func(k string, st domain.WindowState) {
		if stale(st) {
			keys = append(keys, k)
		}
	})

	removed := 0
	for _, k := range keys {
		// recheca sob o lock do shard: um Hit pode ter reaberto a janela
		if s.windows.RemoveCb(k, func(_ string, st domain.WindowState, exists bool) bool {
			return exists && stale(st)
		}) {
			removed++
		}
	}
	if removed > 0 {
		s.logger.Debug("evicted idle admission windows", zap.Int("removed", removed), zap.Int("remaining", s.Len()))
	}
	return removed
}

// StartJanitor inicia uma goroutine que limpa chaves inativas periodicamente.
// Pare cancelando o contexto.
func (s *WindowStore) StartJanitor(ctx DoneContext) {
	startJanitor(ctx, s.cleanupEvery, func() { s.Cleanup() })
}
