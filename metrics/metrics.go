package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	OutcomeOK           = "ok"
	OutcomeQueryError   = "query_error"
	OutcomeConnectivity = "connectivity_error"
	OutcomeCanceled     = "canceled"
)

var (
	Queries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "paceutils", Name: "queries_total", Help: "Executed queries by operation and outcome",
	}, []string{"op", "outcome"})
	QueryDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "paceutils", Name: "query_duration_seconds", Help: "Query latency including connection setup",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})
	IndicatorErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "paceutils", Name: "indicator_errors_total", Help: "Failed indicator evaluations",
	}, []string{"indicator"})
)

func init() {
	prometheus.MustRegister(Queries, QueryDuration, IndicatorErrors)
}

func Handler() http.Handler { return promhttp.Handler() }

func ObserveQuery(op, outcome string, d time.Duration) {
	Queries.WithLabelValues(op, outcome).Inc()
	QueryDuration.WithLabelValues(op).Observe(d.Seconds())
}

func IndicatorFailed(name string) { IndicatorErrors.WithLabelValues(name).Inc() }
