package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"request-guard/middleware/guard"
	"request-guard/middleware/guard/application"
	"request-guard/middleware/guard/domain"
	"request-guard/middleware/guard/infra"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	pageCacheTTL   = 2 * time.Minute
	exportCacheTTL = 5 * time.Minute
)

func main() {
	// Exemplo: guard injetado direto nas rotas do seu webserver (sem proxy)
	v := viper.New()
	v.SetDefault("listen_addr", ":8081")
	v.SetDefault("rate_window", time.Minute)
	v.SetDefault("rate_max_requests", 30)
	v.SetDefault("export_delay", 300*time.Millisecond)
	v.AutomaticEnv()

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app := newApp(appConfig{
		window:      v.GetDuration("rate_window"),
		maxRequests: v.GetInt64("rate_max_requests"),
		exportDelay: v.GetDuration("export_delay"),
	}, logger)
	app.startJanitors(ctx)

	addr := v.GetString("listen_addr")
	srv := &http.Server{
		Addr:              addr,
		Handler:           app.router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("example server listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
}

type appConfig struct {
	window      time.Duration
	maxRequests int64
	exportDelay time.Duration
}

// app junta os componentes compartilhados por todas as rotas: uma janela de
// admissão por cliente, um contador de tráfego e um cache.
type app struct {
	logger    *zap.Logger
	shop      *shop
	windows   *infra.WindowStore
	admission application.AdmissionService
	traffic   *infra.TrafficCounters
	stats     *infra.MemoryStatsStore
	cache     *infra.Cache[domain.Response]
	registry  *prometheus.Registry
}

func newApp(cfg appConfig, logger *zap.Logger) *app {
	windows := infra.NewWindowStore(infra.WithWindowLogger(logger))
	a := &app{
		logger:  logger,
		shop:    newShop(cfg.exportDelay),
		windows: windows,
		admission: application.AdmissionService{
			Store:       windows,
			Window:      cfg.window,
			MaxRequests: cfg.maxRequests,
		},
		traffic:  infra.NewTrafficCounters(infra.WithTrafficLogger(logger)),
		stats:    infra.NewMemoryStatsStore(infra.WithTrackKeys(true)),
		cache:    infra.NewCache[domain.Response](infra.WithCacheLogger(logger)),
		registry: prometheus.NewRegistry(),
	}
	if err := infra.RegisterMetrics(a.registry, "shop", a.sources()); err != nil {
		// registry novo e nomes fixos: só falha por erro de programação
		panic(err)
	}
	return a
}

func (a *app) sources() infra.MetricsSources {
	return infra.MetricsSources{
		Traffic:   a.traffic,
		Admission: a.stats,
		Caches:    map[string]domain.CacheStatsSource{"shop": a.cache},
	}
}

func (a *app) startJanitors(ctx context.Context) {
	a.windows.StartJanitor(ctx)
	a.cache.StartJanitor(ctx)
}

func (a *app) guarded(key guard.CacheKeyFunc, ttl time.Duration) func(http.Handler) http.Handler {
	return guard.Middleware(guard.Options{
		Admission:           a.admission,
		Traffic:             a.traffic,
		Stats:               a.stats,
		Cache:               a.cache,
		CacheKey:            key,
		CacheTTL:            ttl,
		KeyHeader:           "X-Api-Key", // ou vazio para usar IP
		AddRateLimitHeaders: true,
		Logger:              a.logger,
	})
}

// userOrdersKey: uma entrada de cache por usuário.
func userOrdersKey(r *http.Request) string {
	id := chi.URLParam(r, "id")
	if _, err := strconv.Atoi(id); err != nil {
		return ""
	}
	return "user_orders_export:" + id
}

func (a *app) router() http.Handler {
	r := chi.NewRouter()
	r.Use(guard.RequestLogger(a.logger))

	r.Route("/shop", func(r chi.Router) {
		r.With(a.guarded(guard.CacheByPath(), pageCacheTTL)).
			Method(http.MethodGet, "/products", guard.HandlerFunc(a.shop.listProducts))
		r.With(a.guarded(guard.CacheByKey("product_data_export"), exportCacheTTL)).
			Method(http.MethodGet, "/products/export", guard.HandlerFunc(a.shop.exportProducts))
		r.With(a.guarded(userOrdersKey, exportCacheTTL)).
			Method(http.MethodGet, "/users/{id}/orders/export", guard.HandlerFunc(a.shop.exportUserOrders))
		r.With(a.guarded(nil, 0)).
			Method(http.MethodGet, "/fail", guard.HandlerFunc(a.shop.fail))
	})

	r.Method(http.MethodGet, "/debug/traffic", guard.TrafficHandler(a.sources()))
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	return r
}
