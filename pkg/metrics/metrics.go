// Package metrics はGatewayのPrometheusメトリクスを提供する。
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "edugate"

// Collector はGatewayが記録するメトリクスの集合。
type Collector struct {
	inFlight         prometheus.Gauge
	requests         *prometheus.CounterVec
	duration         *prometheus.HistogramVec
	policyRejections *prometheus.CounterVec
}

// NewCollector はメトリクスを生成してregに登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		}, []string{"method", "route"}),
		policyRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "policy",
			Name:      "rejections_total",
			Help:      "Total number of requests rejected by a policy.",
		}, []string{"policy"}),
	}
	reg.MustRegister(c.inFlight, c.requests, c.duration, c.policyRejections)
	return c
}

// NewRegistry はGoランタイムとプロセスのコレクタを含むレジストリを生成する。
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler はメトリクスを公開するHTTPハンドラを返す。
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// RequestStarted は処理中リクエスト数を増やす。
func (c *Collector) RequestStarted() {
	c.inFlight.Inc()
}

// RequestFinished はリクエストの完了を記録する。
func (c *Collector) RequestFinished(method, route, status string, seconds float64) {
	c.inFlight.Dec()
	c.requests.WithLabelValues(method, route, status).Inc()
	c.duration.WithLabelValues(method, route).Observe(seconds)
}

// PolicyRejected はポリシーによる拒否を記録する。
func (c *Collector) PolicyRejected(policy string) {
	c.policyRejections.WithLabelValues(policy).Inc()
}
