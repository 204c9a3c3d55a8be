package main

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// config do gateway. As chaves são os nomes das variáveis de ambiente em
// minúsculas (viper.AutomaticEnv faz o caminho inverso).
type config struct {
	ListenAddr  string `mapstructure:"listen_addr"`
	UpstreamURL string `mapstructure:"upstream_url"`
	// AdminAddr vazio desliga /metrics, /debug/traffic e /healthz.
	AdminAddr string `mapstructure:"admin_addr"`

	RateEnabled      bool          `mapstructure:"rate_enabled"`
	RateWindow       time.Duration `mapstructure:"rate_window"`
	RateMaxRequests  int64         `mapstructure:"rate_max_requests"`
	RateKeyHeader    string        `mapstructure:"rate_key_header"`
	AddHeaders       bool          `mapstructure:"add_ratelimit_headers"`
	RateCleanupEvery time.Duration `mapstructure:"rate_cleanup_every"`

	// CachePaths são prefixos separados por vírgula; vazio desliga o cache.
	CachePaths      string        `mapstructure:"cache_paths"`
	CacheTTL        time.Duration `mapstructure:"cache_ttl"`
	CacheMaxEntries int           `mapstructure:"cache_max_entries"`

	// ConcurrencyMax <= 0 desliga o limite de requisições simultâneas no upstream.
	ConcurrencyMax     int64         `mapstructure:"concurrency_max"`
	ConcurrencyTimeout time.Duration `mapstructure:"concurrency_timeout"`

	RateStatsEnabled       bool          `mapstructure:"rate_stats_enabled"`
	RateStatsRedisAddr     string        `mapstructure:"rate_stats_redis_addr"`
	RateStatsRedisPassword string        `mapstructure:"rate_stats_redis_password"`
	RateStatsRedisDB       int           `mapstructure:"rate_stats_redis_db"`
	RateStatsPrefix        string        `mapstructure:"rate_stats_prefix"`
	RateStatsTTL           time.Duration `mapstructure:"rate_stats_ttl"`
	RateStatsBucket        string        `mapstructure:"rate_stats_bucket"`
	RateStatsTrackKeys     bool          `mapstructure:"rate_stats_track_keys"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("upstream_url", "")
	v.SetDefault("admin_addr", ":9090")

	v.SetDefault("rate_enabled", true)
	v.SetDefault("rate_window", 60*time.Second)
	v.SetDefault("rate_max_requests", 100)
	v.SetDefault("rate_key_header", "")
	v.SetDefault("add_ratelimit_headers", false)
	v.SetDefault("rate_cleanup_every", 2*time.Minute)

	v.SetDefault("cache_paths", "")
	v.SetDefault("cache_ttl", 2*time.Minute)
	v.SetDefault("cache_max_entries", 10_000)

	v.SetDefault("concurrency_max", 100)
	v.SetDefault("concurrency_timeout", time.Duration(0))

	v.SetDefault("rate_stats_enabled", false)
	v.SetDefault("rate_stats_redis_addr", "")
	v.SetDefault("rate_stats_redis_password", "")
	v.SetDefault("rate_stats_redis_db", 0)
	v.SetDefault("rate_stats_prefix", "guard:stats")
	v.SetDefault("rate_stats_ttl", 24*time.Hour)
	v.SetDefault("rate_stats_bucket", "minute")
	v.SetDefault("rate_stats_track_keys", false)

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
}

// loadConfig lê defaults, arquivo opcional e variáveis de ambiente (nessa ordem
// de precedência crescente; flags ligadas ao viper ganham de todos).
func loadConfig(v *viper.Viper, file string) (config, error) {
	setDefaults(v)
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return config{}, fmt.Errorf("read config file %s: %w", file, err)
		}
	}

	var cfg config
	if err := v.Unmarshal(&cfg); err != nil {
		return config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return config{}, err
	}
	return cfg, nil
}

func (c config) validate() error {
	if strings.TrimSpace(c.UpstreamURL) == "" {
		return errors.New("UPSTREAM_URL is required")
	}
	u, err := url.Parse(c.UpstreamURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("UPSTREAM_URL must be an absolute URL, got %q", c.UpstreamURL)
	}
	if c.RateEnabled {
		if c.RateWindow <= 0 {
			return errors.New("RATE_WINDOW must be > 0")
		}
		if c.RateMaxRequests <= 0 {
			return errors.New("RATE_MAX_REQUESTS must be > 0")
		}
	}
	if c.CachePaths != "" && c.CacheTTL <= 0 {
		return errors.New("CACHE_TTL must be > 0 when CACHE_PATHS is set")
	}
	if c.CacheMaxEntries < 0 {
		return errors.New("CACHE_MAX_ENTRIES must be >= 0")
	}
	if c.ConcurrencyTimeout < 0 {
		return errors.New("CONCURRENCY_TIMEOUT must be >= 0")
	}
	if c.RateStatsEnabled && strings.TrimSpace(c.RateStatsRedisAddr) == "" {
		return errors.New("RATE_STATS_REDIS_ADDR is required when RATE_STATS_ENABLED=true")
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.LogFormat)
	}
	return nil
}

func (c config) cachePrefixes() []string {
	var out []string
	for _, p := range strings.Split(c.CachePaths, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
