package domain

import (
	"net"
	"strings"
)

// Key identifica o cliente para fins de admissão (IP, API key, usuário).
type Key string

// UnknownKey é o bucket compartilhado por todos os clientes sem identidade resolvível.
const UnknownKey Key = "unknown"

// ClientIdentity deriva a chave do cliente a partir dos metadados da requisição.
//
// Ordem: primeiro IP do X-Forwarded-For (cliente original atrás de proxy),
// depois o host do endereço do peer. Nunca retorna chave vazia.
func ClientIdentity(forwardedFor, remoteAddr string) Key {
	if forwardedFor != "" {
		first, _, _ := strings.Cut(forwardedFor, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return Key(ip)
		}
	}

	addr := strings.TrimSpace(remoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil && host != "" {
		return Key(host)
	}
	if addr != "" {
		return Key(addr)
	}
	return UnknownKey
}
