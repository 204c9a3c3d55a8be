package infra

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"request-guard/middleware/guard/domain"

	"github.com/redis/go-redis/v9"
)

// RedisStatsStore grava as decisões de admissão em hashes no Redis.
//
// É só um destino de estatísticas: a decisão continua sendo local (WindowStore).
type RedisStatsStore struct {
	rdb redis.UniversalClient

	prefix string
	// ttl aplica apenas em chaves de série temporal / por key.
	// total é cumulativo e não expira.
	ttl time.Duration

	bucket string // "minute" (padrão) ou "none"

	trackKeys bool
}

type RedisStatsOption func(*RedisStatsStore)

func WithStatsPrefix(prefix string) RedisStatsOption {
	return func(s *RedisStatsStore) {
		s.prefix = strings.Trim(prefix, ":")
	}
}

func WithStatsTTL(d time.Duration) RedisStatsOption {
	return func(s *RedisStatsStore) { s.ttl = d }
}

func WithStatsBucket(bucket string) RedisStatsOption {
	return func(s *RedisStatsStore) { s.bucket = strings.ToLower(strings.TrimSpace(bucket)) }
}

func WithStatsTrackKeys(track bool) RedisStatsOption {
	return func(s *RedisStatsStore) { s.trackKeys = track }
}

func NewRedisStatsStore(rdb redis.UniversalClient, opts ...RedisStatsOption) *RedisStatsStore {
	s := &RedisStatsStore{
		rdb:    rdb,
		prefix: "guard:stats",
		ttl:    24 * time.Hour,
		bucket: "minute",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func field(allowed bool) string {
	if allowed {
		return "allowed"
	}
	return "denied"
}

func (s *RedisStatsStore) totalKey() string { return s.prefix + ":total" }

func (s *RedisStatsStore) minuteKey(at time.Time) string {
	return fmt.Sprintf("%s:minute:%s", s.prefix, at.UTC().Format("200601021504"))
}

func (s *RedisStatsStore) Record(ctx context.Context, ev domain.StatsEvent) error {
	if s == nil || s.rdb == nil {
		return nil
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	f := field(ev.Allowed)

	pipe := s.rdb.Pipeline()
	pipe.HIncrBy(ctx, s.totalKey(), f, 1)

	if s.bucket == "minute" {
		bucketKey := s.minuteKey(at)
		pipe.HIncrBy(ctx, bucketKey, f, 1)
		if s.ttl > 0 {
			pipe.Expire(ctx, bucketKey, s.ttl)
		}
	}

	if route := strings.TrimSpace(strings.TrimSpace(ev.Method) + " " + strings.TrimSpace(ev.Path)); route != "" {
		pipe.HIncrBy(ctx, s.prefix+":route", route+":"+f, 1)
	}

	if s.trackKeys {
		if k := strings.TrimSpace(string(ev.Key)); k != "" {
			keyKey := s.prefix + ":key:" + k
			pipe.HIncrBy(ctx, keyKey, f, 1)
			if s.ttl > 0 {
				pipe.Expire(ctx, keyKey, s.ttl)
			}
		}
	}

	_, err := pipe.Exec(ctx)
	return err
}

// Total lê o acumulado de decisões gravado no Redis.
func (s *RedisStatsStore) Total(ctx context.Context) (AdmissionCounters, error) {
	if s == nil || s.rdb == nil {
		return AdmissionCounters{}, nil
	}
	vals, err := s.rdb.HGetAll(ctx, s.totalKey()).Result()
	if err != nil {
		return AdmissionCounters{}, err
	}
	return parseCounters(vals)
}

func parseCounters(vals map[string]string) (AdmissionCounters, error) {
	var out AdmissionCounters
	for f, dst := range map[string]*int64{"allowed": &out.Allowed, "denied": &out.Denied} {
		raw, ok := vals[f]
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return AdmissionCounters{}, fmt.Errorf("stats field %q: %w", f, err)
		}
		*dst = n
	}
	return out, nil
}
