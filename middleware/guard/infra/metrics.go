package infra

import (
	"errors"

	"request-guard/middleware/guard/domain"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsSources reúne o que RegisterMetrics expõe. Campos nil são ignorados.
type MetricsSources struct {
	Traffic   domain.TrafficSource
	Admission *MemoryStatsStore
	// Caches por nome (vira o label "cache").
	Caches map[string]domain.CacheStatsSource
	Slots  *SemaphorePool
}

// RegisterMetrics registra coletores que leem os contadores no momento do scrape.
//
// Os valores continuam pertencendo aos componentes; o Prometheus só lê.
func RegisterMetrics(reg prometheus.Registerer, namespace string, src MetricsSources) error {
	var cs []prometheus.Collector

	if t := src.Traffic; t != nil {
		cs = append(cs,
			counterFunc(namespace, "traffic", "requests_started_total", "Requests that entered the guard.", nil,
				func() float64 { return float64(t.Snapshot().RequestsStarted) }),
			counterFunc(namespace, "traffic", "responses_completed_total", "Responses returned by the guard, denials included.", nil,
				func() float64 { return float64(t.Snapshot().ResponsesCompleted) }),
			counterFunc(namespace, "traffic", "exceptions_raised_total", "Requests whose handler returned an error.", nil,
				func() float64 { return float64(t.Snapshot().ExceptionsRaised) }),
		)
	}

	if a := src.Admission; a != nil {
		cs = append(cs,
			counterFunc(namespace, "admission", "allowed_total", "Admitted requests.", nil,
				func() float64 { return float64(a.Total().Allowed) }),
			counterFunc(namespace, "admission", "denied_total", "Requests rejected with too many requests.", nil,
				func() float64 { return float64(a.Total().Denied) }),
		)
	}

	for name, c := range src.Caches {
		labels := prometheus.Labels{"cache": name}
		cs = append(cs,
			counterFunc(namespace, "cache", "hits_total", "Cache hits.", labels,
				func() float64 { return float64(c.Stats().Hits) }),
			counterFunc(namespace, "cache", "misses_total", "Cache misses.", labels,
				func() float64 { return float64(c.Stats().Misses) }),
			counterFunc(namespace, "cache", "computations_total", "Computations executed on misses.", labels,
				func() float64 { return float64(c.Stats().Computations) }),
			counterFunc(namespace, "cache", "failures_total", "Computations that failed and were not stored.", labels,
				func() float64 { return float64(c.Stats().Failures) }),
			counterFunc(namespace, "cache", "uncacheable_total", "Computed values returned without being stored.", labels,
				func() float64 { return float64(c.Stats().Uncacheable) }),
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace:   namespace,
				Subsystem:   "cache",
				Name:        "entries",
				Help:        "Entries currently held, expired ones included until swept.",
				ConstLabels: labels,
			}, func() float64 { return float64(c.Stats().Entries) }),
		)
	}

	if p := src.Slots; p != nil {
		cs = append(cs,
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "slots",
				Name:      "in_use",
				Help:      "Requests currently holding a concurrency slot.",
			}, func() float64 { return float64(p.InUse()) }),
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "slots",
				Name:      "capacity",
				Help:      "Configured concurrency slots.",
			}, func() float64 { return float64(p.Size()) }),
		)
	}

	var errs []error
	for _, c := range cs {
		if err := reg.Register(c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func counterFunc(ns, sub, name, help string, labels prometheus.Labels, fn func() float64) prometheus.CounterFunc {
	return prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace:   ns,
		Subsystem:   sub,
		Name:        name,
		Help:        help,
		ConstLabels: labels,
	}, fn)
}
