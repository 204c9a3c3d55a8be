package domain

import (
	"context"
	"strings"
)

const statusOK = 200

// Request são os metadados da requisição que o guard precisa.
//
// Raw carrega a requisição original do transporte (ex.: *http.Request) para o
// handler embrulhado; o domínio nunca a inspeciona.
type Request struct {
	Method string
	Path   string
	Query  string

	ForwardedFor string
	RemoteAddr   string
	UserAgent    string

	// Key é a identidade já resolvida pelo adapter. Vazia => ClientIdentity.
	Key Key

	Raw any
}

// Identity retorna a chave de admissão da requisição.
func (r Request) Identity() Key {
	if r.Key != "" {
		return r.Key
	}
	return ClientIdentity(r.ForwardedFor, r.RemoteAddr)
}

// Response é o payload produzido pelo handler. É o valor guardado no cache,
// por isso não deve ser alterado depois de retornado.
type Response struct {
	Status int
	Header map[string][]string
	Body   []byte
}

// StatusCode retorna Status, assumindo 200 quando não informado.
func (r Response) StatusCode() int {
	if r.Status == 0 {
		return statusOK
	}
	return r.Status
}

// Cacheable informa se a resposta pode ser reaproveitada para outros clientes.
//
// Só 200, e nunca respostas que sejam de um usuário específico: Set-Cookie,
// Cache-Control private/no-store, ou Vary em qualquer header além de
// Accept-Encoding (que entra na chave de página).
func (r Response) Cacheable() bool {
	if r.StatusCode() != statusOK {
		return false
	}
	if len(r.Header["Set-Cookie"]) > 0 {
		return false
	}
	for _, d := range headerTokens(r.Header["Cache-Control"]) {
		if d == "private" || d == "no-store" || strings.HasPrefix(d, "private=") {
			return false
		}
	}
	for _, v := range headerTokens(r.Header["Vary"]) {
		if v != "accept-encoding" {
			return false
		}
	}
	return true
}

// headerTokens separa valores de header em tokens minúsculos ("a, B" => a, b).
func headerTokens(values []string) []string {
	var out []string
	for _, v := range values {
		for _, tok := range strings.Split(v, ",") {
			if tok = strings.ToLower(strings.TrimSpace(tok)); tok != "" {
				out = append(out, tok)
			}
		}
	}
	return out
}

// Handler é o colaborador externo embrulhado pelo pipeline.
type Handler interface {
	Handle(ctx context.Context, req Request) (Response, error)
}

type HandlerFunc func(ctx context.Context, req Request) (Response, error)

func (f HandlerFunc) Handle(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}

// Outcome é o que o pipeline devolve para quem chamou.
type Outcome struct {
	Response Response
	Decision Decision
}
