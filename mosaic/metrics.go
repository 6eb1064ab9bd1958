package mosaic

import "github.com/prometheus/client_golang/prometheus"

// Metrics groups the Prometheus collectors backends and the STAC
// paginator report against, grounded on pmtiles/server_metrics.go's
// *_metrics structs of CounterVecs/HistogramVecs keyed by backend/op.
var (
	backendReadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mosaicjson", Subsystem: "backend", Name: "reads_total", Help: "Backend read operations.",
	}, []string{"kind", "result"})

	backendWritesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mosaicjson", Subsystem: "backend", Name: "writes_total", Help: "Backend write operations.",
	}, []string{"kind", "result"})

	stacPageFetchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mosaicjson", Subsystem: "stac", Name: "page_fetches_total", Help: "STAC search pages fetched.",
	}, []string{"result"})

	stacItemsReturnedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mosaicjson", Subsystem: "stac", Name: "items_returned_total", Help: "STAC items returned across all searches.",
	})
)

func init() {
	prometheus.MustRegister(backendReadsTotal, backendWritesTotal, stacPageFetchesTotal, stacItemsReturnedTotal)
}

func recordBackendRead(kind string, err error) {
	if err != nil {
		backendReadsTotal.WithLabelValues(kind, "error").Inc()
		return
	}
	backendReadsTotal.WithLabelValues(kind, "ok").Inc()
}

func recordBackendWrite(kind string, err error) {
	if err != nil {
		backendWritesTotal.WithLabelValues(kind, "error").Inc()
		return
	}
	backendWritesTotal.WithLabelValues(kind, "ok").Inc()
}
