package guard

import (
	"encoding/json"
	"net/http"

	"request-guard/middleware/guard/domain"
	"request-guard/middleware/guard/infra"
)

type trafficReport struct {
	Traffic   *domain.TrafficSnapshot            `json:"traffic,omitempty"`
	Admission *infra.AdmissionCounters           `json:"admission,omitempty"`
	Routes    map[string]infra.AdmissionCounters `json:"routes,omitempty"`
	Caches    map[string]domain.CacheStats       `json:"caches,omitempty"`
}

// TrafficHandler responde em JSON a leitura atual dos contadores.
// Usa as mesmas fontes de infra.RegisterMetrics.
func TrafficHandler(src infra.MetricsSources) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var rep trafficReport
		if src.Traffic != nil {
			snap := src.Traffic.Snapshot()
			rep.Traffic = &snap
		}
		if src.Admission != nil {
			total := src.Admission.Total()
			rep.Admission = &total
			rep.Routes = src.Admission.ByRoute()
		}
		if len(src.Caches) > 0 {
			rep.Caches = make(map[string]domain.CacheStats, len(src.Caches))
			for name, c := range src.Caches {
				rep.Caches[name] = c.Stats()
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		_ = json.NewEncoder(w).Encode(rep)
	})
}
