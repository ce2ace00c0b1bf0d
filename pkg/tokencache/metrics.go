package tokencache

import "github.com/prometheus/client_golang/prometheus"

var (
	cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "semtokd_token_cache_lookups_total",
			Help: "Token cache reads for a snapshot, partitioned by result i.e. hit, miss",
		}, []string{"result"},
	)

	cacheIncremental = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "semtokd_token_cache_incremental_total",
			Help: "Attempts to adjust cached tokens across an edit, partitioned by result i.e. applied, aborted, missing, superseded",
		}, []string{"result"},
	)

	cacheDocuments = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "semtokd_token_cache_documents",
			Help: "Documents with at least one cached token set",
		},
	)
)

func init() {
	prometheus.MustRegister(cacheLookups, cacheIncremental, cacheDocuments)
}
