package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

var (
	Mutations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "gogotex", Subsystem: "history", Name: "mutations_total", Help: "Number of versioned mutations by operation and outcome."},
		[]string{"op", "outcome"},
	)
	TimelineCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "gogotex", Subsystem: "history", Name: "timeline_cache_total", Help: "Rendered timeline cache lookups by result."},
		[]string{"result"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(Mutations)
	reg.MustRegister(TimelineCache)
}

// Push sends the history collectors to a Prometheus pushgateway under job.
// Short-lived processes call it once before exiting.
func Push(url, job string) error {
	reg := prometheus.NewRegistry()
	RegisterCollectors(reg)
	return push.New(url, job).Gatherer(reg).Push()
}
