package guard

import (
	"bufio"
	"net"
	"net/http"
)

// passthrough repassa a resposta direto ao cliente (rotas sem chave de cache)
// e lembra o status para o pipeline. Flush e Hijack chegam ao writer original,
// então SSE e upgrade de WebSocket funcionam atrás do middleware.
type passthrough struct {
	http.ResponseWriter
	status int
	wrote  bool
}

func (p *passthrough) WriteHeader(code int) {
	if !p.wrote {
		p.status = code
		// 1xx não fecha o cabeçalho
		p.wrote = code >= http.StatusOK || code == http.StatusSwitchingProtocols
	}
	p.ResponseWriter.WriteHeader(code)
}

func (p *passthrough) Write(b []byte) (int, error) {
	if !p.wrote {
		p.WriteHeader(http.StatusOK)
	}
	return p.ResponseWriter.Write(b)
}

func (p *passthrough) Flush() {
	if !p.wrote {
		p.WriteHeader(http.StatusOK)
	}
	_ = http.NewResponseController(p.ResponseWriter).Flush()
}

func (p *passthrough) FlushError() error {
	if !p.wrote {
		p.WriteHeader(http.StatusOK)
	}
	return http.NewResponseController(p.ResponseWriter).Flush()
}

func (p *passthrough) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	conn, rw, err := http.NewResponseController(p.ResponseWriter).Hijack()
	if err == nil {
		p.status, p.wrote = http.StatusSwitchingProtocols, true
	}
	return conn, rw, err
}

func (p *passthrough) Unwrap() http.ResponseWriter { return p.ResponseWriter }

func (p *passthrough) statusCode() int {
	if p.status == 0 {
		return http.StatusOK
	}
	return p.status
}
