package application

import (
	"time"

	"request-guard/middleware/guard/domain"
)

const (
	DefaultWindow      = 60 * time.Second
	DefaultMaxRequests = 100
)

// Admitter decide allow/deny por identidade.
type Admitter interface {
	Decide(key domain.Key) domain.Decision
}

// AdmissionService concentra a regra de admissão por janela fixa.
//
// Ele não sabe nada sobre HTTP (headers/status), apenas retorna uma decisão.
// São admitidas exatamente MaxRequests requisições por janela; a seguinte é negada.
type AdmissionService struct {
	Store       domain.WindowStore
	Window      time.Duration
	MaxRequests int64
	// Now permite injetar o relógio nos testes. Nil => time.Now.
	Now func() time.Time
}

func (s AdmissionService) Decide(key domain.Key) domain.Decision {
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}
	if s.Store == nil {
		return domain.Decision{Allowed: true, Key: key, At: now}
	}
	if s.Window <= 0 {
		s.Window = DefaultWindow
	}
	if s.MaxRequests <= 0 {
		s.MaxRequests = DefaultMaxRequests
	}

	st := s.Store.Hit(key, now, s.Window)
	dec := domain.Decision{
		Allowed: st.Count <= s.MaxRequests,
		Key:     key,
		Count:   st.Count,
		Limit:   s.MaxRequests,
		ResetAt: st.ResetAt(s.Window),
		At:      now,
	}
	if !dec.Allowed {
		dec.RetryAfter = max(dec.ResetAt.Sub(now), 0)
	}
	return dec
}
