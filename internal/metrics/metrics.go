package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all Atelier metrics
const namespace = "atelier"

// Registry is the global Prometheus registry for all metrics
var Registry = prometheus.NewRegistry()

// AppInfo is a gauge that exposes application version information as labels
var AppInfo = promauto.With(Registry).NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "app_info",
		Help:      "Application version information (always set to 1, version info in labels)",
	},
	[]string{"version", "commit", "build_date"},
)

// ActiveConnections tracks the number of currently registered push connections
var ActiveConnections = promauto.With(Registry).NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_connections",
		Help:      "Number of currently registered event stream connections",
	},
)

// EventsDelivered counts events written to client connections, by event type
var EventsDelivered = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_delivered_total",
		Help:      "Total events delivered to stream connections",
	},
	[]string{"type"},
)

// ConnectionsPruned counts connections removed because a delivery failed or stalled
var ConnectionsPruned = promauto.With(Registry).NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "connections_pruned_total",
		Help:      "Total connections removed after a failed or stalled delivery",
	},
)

// ChangefeedEvents counts change-feed notifications by processing result (ok, decode_error)
var ChangefeedEvents = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "changefeed_events_total",
		Help:      "Total database change-feed notifications received",
	},
	[]string{"result"},
)

// BroadcastsReceived counts messages received on the distributed broadcast channel
var BroadcastsReceived = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "broadcasts_received_total",
		Help:      "Total messages received on the distributed broadcast channel",
	},
	[]string{"result"},
)

// CacheRequests counts cache operations by operation and outcome (hit, miss, error)
var CacheRequests = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_requests_total",
		Help:      "Total cache operations by outcome",
	},
	[]string{"op", "result"},
)

// SignedURLVerifications counts signed URL checks by outcome (valid, expired, invalid)
var SignedURLVerifications = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "signed_url_verifications_total",
		Help:      "Total signed URL verifications by outcome",
	},
	[]string{"result"},
)

// Init sets version info and registers the standard Go runtime collectors.
func Init(version, commit, buildDate string) {
	AppInfo.WithLabelValues(version, commit, buildDate).Set(1)

	Registry.MustRegister(collectors.NewGoCollector())
	Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
}
