package guard

import (
	"bytes"
	"net/http"

	"request-guard/middleware/guard/domain"
)

// capture é um http.ResponseWriter que guarda status, headers e corpo em memória
// para que a resposta possa ir para o cache e ser reenviada depois.
type capture struct {
	header      http.Header
	status      int
	wroteHeader bool
	body        bytes.Buffer
}

func newCapture() *capture {
	return &capture{header: make(http.Header)}
}

func (c *capture) Header() http.Header { return c.header }

func (c *capture) WriteHeader(code int) {
	if c.wroteHeader {
		return
	}
	c.wroteHeader = true
	c.status = code
}

func (c *capture) Write(b []byte) (int, error) {
	if !c.wroteHeader {
		c.WriteHeader(http.StatusOK)
	}
	return c.body.Write(b)
}

func (c *capture) response() domain.Response {
	status := c.status
	if status == 0 {
		status = http.StatusOK
	}
	return domain.Response{
		Status: status,
		Header: c.header.Clone(),
		Body:   c.body.Bytes(),
	}
}

// writeResponse reenvia uma resposta capturada. resp pode estar no cache e ser
// compartilhada entre requisições, então nada dela é alterado.
func writeResponse(w http.ResponseWriter, resp domain.Response) {
	dst := w.Header()
	for k, vs := range resp.Header {
		dst[k] = append([]string(nil), vs...)
	}
	w.WriteHeader(resp.StatusCode())
	if len(resp.Body) > 0 {
		_, _ = w.Write(resp.Body)
	}
}
