package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService owns the Prometheus registry for the gateway: HTTP timings,
// broadcast delivery counts and save throughput.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	broadcastSent   *prometheus.CounterVec
	savesTotal      *prometheus.CounterVec
	saveDuration    prometheus.Observer
}

// NewMetricsService registers the gateway's collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	broadcastSent := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "broadcast_deliveries_total",
		Help: "Events delivered to room members, by event name",
	}, []string{"event"})

	savesTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "record_saves_total",
		Help: "Accepted record mutations, by kind",
	}, []string{"kind"})

	saveDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "record_save_duration_seconds",
		Help:    "Duration of record persistence operations",
		Buckets: prometheus.DefBuckets,
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, broadcastSent, savesTotal, saveDuration, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		broadcastSent:   broadcastSent,
		savesTotal:      savesTotal,
		saveDuration:    saveDuration,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records one request's timing.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// ObserveBroadcast counts delivered copies of one event.
func (m *MetricsService) ObserveBroadcast(event string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.broadcastSent.WithLabelValues(event).Add(float64(count))
}

// ObserveSave records an accepted record mutation.
func (m *MetricsService) ObserveSave(kind string, duration time.Duration) {
	if m == nil {
		return
	}
	m.savesTotal.WithLabelValues(kind).Inc()
	m.saveDuration.Observe(duration.Seconds())
}
