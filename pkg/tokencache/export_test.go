package tokencache

import "github.com/prometheus/client_golang/prometheus"

func LookupsCounter(result string) prometheus.Counter {
	return cacheLookups.WithLabelValues(result)
}

func IncrementalCounter(result string) prometheus.Counter {
	return cacheIncremental.WithLabelValues(result)
}
