package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"request-guard/middleware/guard"
	"request-guard/middleware/guard/application"
	"request-guard/middleware/guard/domain"
	"request-guard/middleware/guard/infra"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "gateway",
		Short: "Reverse proxy com admissão por janela fixa, contadores de tráfego e cache de páginas",
		Long: `Reverse proxy na frente de UPSTREAM_URL.

Cada cliente (header RATE_KEY_HEADER, X-Forwarded-For ou IP) pode fazer até
RATE_MAX_REQUESTS requisições por RATE_WINDOW; as seguintes recebem 429.
GETs sob CACHE_PATHS são reaproveitados por CACHE_TTL.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(v, cfgFile)
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			logger, err := newLogger(cfg.LogLevel, cfg.LogFormat)
			if err != nil {
				return fmt.Errorf("logger: %w", err)
			}
			defer func() { _ = logger.Sync() }()

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return run(ctx, cfg, logger)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfgFile, "config", "", "config file (yaml, json ou toml)")
	flags.String("listen", "", "endereço do proxy (LISTEN_ADDR)")
	flags.String("upstream", "", "URL do upstream (UPSTREAM_URL)")
	flags.String("admin", "", "endereço de /metrics e /debug/traffic (ADMIN_ADDR)")
	flags.String("log-level", "", "debug, info, warn, error (LOG_LEVEL)")
	_ = v.BindPFlag("listen_addr", flags.Lookup("listen"))
	_ = v.BindPFlag("upstream_url", flags.Lookup("upstream"))
	_ = v.BindPFlag("admin_addr", flags.Lookup("admin"))
	_ = v.BindPFlag("log_level", flags.Lookup("log-level"))

	return cmd
}

func newLogger(level, format string) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if format == "console" {
		zcfg = zap.NewDevelopmentConfig()
	}
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	zcfg.Level = lvl
	return zcfg.Build()
}

func run(ctx context.Context, cfg config, logger *zap.Logger) error {
	target, err := url.Parse(cfg.UpstreamURL)
	if err != nil {
		return fmt.Errorf("invalid UPSTREAM_URL: %w", err)
	}

	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.Warn("proxy error", zap.String("path", r.URL.Path), zap.Error(err))
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}

	traffic := infra.NewTrafficCounters(infra.WithTrafficLogger(logger))
	admissionStats := infra.NewMemoryStatsStore(infra.WithTrackKeys(cfg.RateStatsTrackKeys))
	pages := infra.NewCache[domain.Response](
		infra.WithDefaultTTL(cfg.CacheTTL),
		infra.WithMaxEntries(cfg.CacheMaxEntries),
		infra.WithCacheLogger(logger.Named("cache")),
	)
	pages.StartJanitor(ctx)

	var stats domain.StatsStore = admissionStats
	if cfg.RateStatsEnabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RateStatsRedisAddr,
			Password: cfg.RateStatsRedisPassword,
			DB:       cfg.RateStatsRedisDB,
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		cancel()
		if err != nil {
			return fmt.Errorf("redis stats ping error: %w", err)
		}

		stats = infra.MultiStatsStore{
			admissionStats,
			infra.NewRedisStatsStore(
				rdb,
				infra.WithStatsPrefix(cfg.RateStatsPrefix),
				infra.WithStatsTTL(cfg.RateStatsTTL),
				infra.WithStatsBucket(cfg.RateStatsBucket),
				infra.WithStatsTrackKeys(cfg.RateStatsTrackKeys),
			),
		}
	}

	opts := guard.Options{
		Traffic:             traffic,
		Stats:               stats,
		Cache:               pages,
		CacheTTL:            cfg.CacheTTL,
		KeyHeader:           cfg.RateKeyHeader,
		AddRateLimitHeaders: cfg.AddHeaders,
		Logger:              logger.Named("guard"),
	}
	if prefixes := cfg.cachePrefixes(); len(prefixes) > 0 {
		opts.CacheKey = guard.CacheByPath(prefixes...)
	}
	if cfg.RateEnabled {
		windows := infra.NewWindowStore(
			infra.WithCleanupEvery(cfg.RateCleanupEvery),
			infra.WithWindowLogger(logger.Named("windows")),
		)
		windows.StartJanitor(ctx)
		opts.Admission = application.AdmissionService{
			Store:       windows,
			Window:      cfg.RateWindow,
			MaxRequests: cfg.RateMaxRequests,
		}
	}

	var slots *infra.SemaphorePool
	if cfg.ConcurrencyMax > 0 {
		slots = infra.NewSemaphorePool(cfg.ConcurrencyMax)
	}

	// o limite de concorrência fica dentro do guard: hits do cache não ocupam vaga
	h := http.Handler(proxy)
	if slots != nil {
		h = guard.ConcurrencyMiddleware(guard.ConcurrencyOptions{
			Pool:           slots,
			AcquireTimeout: cfg.ConcurrencyTimeout,
			Logger:         logger.Named("slots"),
		})(h)
	}
	h = guard.Middleware(opts)(h)
	h = guard.RequestLogger(logger.Named("access"))(h)

	servers := []*http.Server{newServer(cfg.ListenAddr, h)}

	if cfg.AdminAddr != "" {
		admin, err := adminRouter(infra.MetricsSources{
			Traffic:   traffic,
			Admission: admissionStats,
			Caches:    map[string]domain.CacheStatsSource{"pages": pages},
			Slots:     slots,
		})
		if err != nil {
			return err
		}
		servers = append(servers, newServer(cfg.AdminAddr, admin))
	}

	logger.Info("gateway listening",
		zap.String("addr", cfg.ListenAddr),
		zap.String("upstream", target.String()),
		zap.String("admin_addr", cfg.AdminAddr),
	)
	logger.Info("admission",
		zap.Bool("enabled", cfg.RateEnabled),
		zap.Duration("window", cfg.RateWindow),
		zap.Int64("max_requests", cfg.RateMaxRequests),
		zap.String("key_header", cfg.RateKeyHeader),
	)
	logger.Info("page cache",
		zap.Strings("paths", cfg.cachePrefixes()),
		zap.Duration("ttl", cfg.CacheTTL),
		zap.Int("max_entries", cfg.CacheMaxEntries),
	)
	logger.Info("concurrency",
		zap.Int64("max", cfg.ConcurrencyMax),
		zap.Duration("acquire_timeout", cfg.ConcurrencyTimeout),
	)
	logger.Info("admission stats",
		zap.Bool("redis", cfg.RateStatsEnabled),
		zap.String("redis_addr", cfg.RateStatsRedisAddr),
		zap.String("bucket", cfg.RateStatsBucket),
		zap.Duration("ttl", cfg.RateStatsTTL),
	)

	return serveAll(ctx, servers...)
}

func newServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}
}

func adminRouter(src infra.MetricsSources) (http.Handler, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if err := infra.RegisterMetrics(reg, "gateway", src); err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok\n"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	r.Method(http.MethodGet, "/debug/traffic", guard.TrafficHandler(src))
	return r, nil
}

// serveAll sobe os servidores e faz shutdown de todos quando ctx encerra ou
// quando qualquer um falha.
func serveAll(ctx context.Context, servers ...*http.Server) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server %s: %w", srv.Addr, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		for _, srv := range servers {
			_ = srv.Shutdown(shutdownCtx)
		}
		return nil
	})
	return g.Wait()
}
