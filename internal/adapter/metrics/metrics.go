package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "hekad_gateway"

// GatewayMetrics holds all Prometheus metrics for the gateway.
type GatewayMetrics struct {
	RecordsTotal    *prometheus.CounterVec
	EncodeErrors    prometheus.Counter
	SinkErrors      prometheus.Counter
	Launches        prometheus.Counter
	Exits           *prometheus.CounterVec
	OutputLines     *prometheus.CounterVec
	DaemonUp        prometheus.Gauge
	StaleKilled     prometheus.Counter
	AssetsExtracted prometheus.Counter
}

// NewGatewayMetrics initializes the metrics and registers them with reg.
// Pass prometheus.DefaultRegisterer to expose them on the default /metrics
// handler, or a fresh registry in tests.
func NewGatewayMetrics(reg prometheus.Registerer) *GatewayMetrics {
	factory := promauto.With(reg)
	return &GatewayMetrics{
		RecordsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gelf",
			Name:      "records_total",
			Help:      "Total number of GELF records written, by severity.",
		}, []string{"level"}),
		EncodeErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gelf",
			Name:      "encode_errors_total",
			Help:      "Total number of log events that could not be encoded.",
		}),
		SinkErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gelf",
			Name:      "sink_errors_total",
			Help:      "Total number of GELF records that failed to reach a sink.",
		}),
		Launches: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "daemon",
			Name:      "launches_total",
			Help:      "Total number of daemon processes spawned.",
		}),
		Exits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "daemon",
			Name:      "exits_total",
			Help:      "Total number of daemon runs that ended, by final state.",
		}, []string{"state"}), // state: stopped, crashed
		OutputLines: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "daemon",
			Name:      "output_lines_total",
			Help:      "Total number of lines read from the daemon, by stream.",
		}, []string{"stream"}),
		DaemonUp: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "daemon",
			Name:      "up",
			Help:      "1 while the supervised daemon is running, 0 otherwise.",
		}),
		StaleKilled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "daemon",
			Name:      "stale_killed_total",
			Help:      "Total number of stale daemon instances killed during preflight.",
		}),
		AssetsExtracted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stage",
			Name:      "assets_extracted_total",
			Help:      "Total number of bundled assets copied into the working directory.",
		}),
	}
}
