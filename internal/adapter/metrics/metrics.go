package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// RelayMetrics holds all Prometheus metrics for the log relay.
type RelayMetrics struct {
	RecordsCaptured     *prometheus.CounterVec
	RecordsFlushed      prometheus.Counter
	Renders             prometheus.Counter
	StreamClients       prometheus.Gauge
	StreamEvents        prometheus.Counter
	DeliveriesDropped   prometheus.Counter
	HandlerPanics       prometheus.Counter
	RemotePublishErrors prometheus.Counter
	ArchivedRecords     prometheus.Counter
}

// NewRelayMetrics initializes the metrics and registers them with reg.
// Pass prometheus.DefaultRegisterer in production and a fresh registry in tests.
func NewRelayMetrics(reg prometheus.Registerer) *RelayMetrics {
	factory := promauto.With(reg)
	return &RelayMetrics{
		RecordsCaptured: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "devrelay",
			Subsystem: "relay",
			Name:      "records_captured_total",
			Help:      "Total number of captured log records by type.",
		}, []string{"type"}), // type: log, info, warn, error, debug, trace, fatal
		RecordsFlushed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "devrelay",
			Subsystem: "relay",
			Name:      "records_flushed_total",
			Help:      "Total number of records embedded into rendered pages.",
		}),
		Renders: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "devrelay",
			Subsystem: "render",
			Name:      "renders_total",
			Help:      "Total number of render cycles that received a log snapshot.",
		}),
		StreamClients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "devrelay",
			Subsystem: "stream",
			Name:      "clients",
			Help:      "Number of currently connected event stream clients.",
		}),
		StreamEvents: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "devrelay",
			Subsystem: "stream",
			Name:      "events_total",
			Help:      "Total number of events written to stream clients.",
		}),
		DeliveriesDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "devrelay",
			Subsystem: "stream",
			Name:      "deliveries_dropped_total",
			Help:      "Total number of records dropped for slow stream clients.",
		}),
		HandlerPanics: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "devrelay",
			Subsystem: "relay",
			Name:      "handler_panics_total",
			Help:      "Total number of subscriber panics recovered during broadcast.",
		}),
		RemotePublishErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "devrelay",
			Subsystem: "remote",
			Name:      "publish_errors_total",
			Help:      "Total number of records that could not be published to the shared stream.",
		}),
		ArchivedRecords: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "devrelay",
			Subsystem: "archive",
			Name:      "records_total",
			Help:      "Total number of records written to the archive.",
		}),
	}
}
