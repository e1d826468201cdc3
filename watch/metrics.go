package watch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Sample results, used as the "result" label of samples_total.
const (
	ResultChanged     = "changed"
	ResultUnchanged   = "unchanged"
	ResultMissing     = "missing"
	ResultUnavailable = "unavailable"
	ResultNotFound    = "not_found"
	ResultStoreError  = "store_error"
	ResultDiscarded   = "discarded"
)

// Metrics holds the scheduler's Prometheus collectors.
type Metrics struct {
	samples   *prometheus.CounterVec
	changes   prometheus.Counter
	scheduled prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		samples: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "shelfwatch",
				Name:      "samples_total",
				Help:      "Total number of sampling cycles by result",
			},
			[]string{"result"},
		),
		changes: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "shelfwatch",
				Name:      "price_changes_total",
				Help:      "Total number of price changes detected",
			},
		),
		scheduled: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "shelfwatch",
				Name:      "scheduled_items",
				Help:      "Number of items with an armed sampling schedule",
			},
		),
	}
}
