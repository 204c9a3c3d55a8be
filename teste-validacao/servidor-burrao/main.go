// servidor-burrao é um upstream propositalmente lento para validar o gateway
// na mão: com CACHE_PATHS=/shop a segunda chamada volta na hora, e com
// RATE_MAX_REQUESTS baixo as chamadas extras recebem 429 sem chegar aqui.
package main

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	var hits atomic.Int64

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			n := hits.Add(1)
			logger.Info("upstream hit",
				zap.Int64("hit", n),
				zap.String("path", r.URL.Path),
				zap.String("x_forwarded_for", r.Header.Get("X-Forwarded-For")),
			)
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/showTela", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, "<h1>Tela do Sistema</h1><p>Requisição recebida com sucesso!</p>")
	})

	// /shop/... demora `ms` milissegundos (padrão 1500) para simular consulta pesada
	r.Get("/shop/*", func(w http.ResponseWriter, r *http.Request) {
		delay := 1500 * time.Millisecond
		if ms, err := strconv.Atoi(r.URL.Query().Get("ms")); err == nil && ms >= 0 {
			delay = time.Duration(ms) * time.Millisecond
		}
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"path":%q,"generated_at":%q,"hit":%d}`+"\n",
			r.URL.Path, time.Now().UTC().Format(time.RFC3339Nano), hits.Load())
	})

	r.Get("/erro", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "falha simulada", http.StatusInternalServerError)
	})

	addr := ":8081"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		addr = v
	}
	logger.Info("servidor rodando", zap.String("addr", "http://localhost"+addr))
	if err := http.ListenAndServe(addr, r); err != nil {
		logger.Fatal("erro ao subir o servidor", zap.Error(err))
	}
}
