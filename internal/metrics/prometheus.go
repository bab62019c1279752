package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "aero_room_signaling_relay"

var eventsDesc = prometheus.NewDesc(
	namespace+"_events_total",
	"Internal event counters.",
	[]string{"event"},
	nil,
)

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	ch <- eventsDesc
}

// Collect implements prometheus.Collector. Every counter is exported as a
// single metric family with an `event` label.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	for name, v := range m.Snapshot() {
		ch <- prometheus.MustNewConstMetric(eventsDesc, prometheus.CounterValue, float64(v), name)
	}
}

// Occupancy reports live registry sizes for the gauge metrics.
type Occupancy interface {
	RoomCount() int
	PeerCount() int
}

// PrometheusHandler serves m, plus room and peer gauges when occ is non-nil,
// in the Prometheus exposition format.
func PrometheusHandler(m *Metrics, occ Occupancy) http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "metrics not configured", http.StatusInternalServerError)
		})
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(m)
	if occ != nil {
		reg.MustRegister(
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "rooms",
				Help:      "Rooms with at least one member.",
			}, func() float64 { return float64(occ.RoomCount()) }),
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "peers",
				Help:      "Peers admitted across all rooms.",
			}, func() float64 { return float64(occ.PeerCount()) }),
		)
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
