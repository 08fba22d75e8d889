package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var TotalRequests = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "deployinsights_http_requests_total",
		Help: "Number of HTTP requests served.",
	},
	[]string{"path", "code", "method"},
)

var HttpDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name: "deployinsights_http_request_duration_seconds",
		Help: "HTTP request latency.",
		Buckets: []float64{
			0.05,
			0.1, // 100 ms
			0.25,
			0.5,
			1,
			2.5,
			5,
			10,
			30,
		},
	},
	[]string{"path", "code", "method"},
)

var UpstreamRequests = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "jenkins_upstream_requests_total",
		Help: "Requests issued to Jenkins by endpoint and outcome.",
	},
	[]string{"endpoint", "outcome"},
)

var UpstreamDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "jenkins_upstream_request_duration_seconds",
		Help:    "Latency of requests issued to Jenkins.",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"endpoint"},
)

var TrackedServices = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "deployinsights_tracked_services",
		Help: "Number of services in the startup snapshot.",
	},
)

// Registry holds every collector of the service. It is separate from the
// default registerer so tests can build routers repeatedly.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(
		TotalRequests,
		HttpDuration,
		UpstreamRequests,
		UpstreamDuration,
		TrackedServices,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}
