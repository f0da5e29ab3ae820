package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Message outcomes recorded by ObserveMessage.
const (
	MessageSucceeded     = "succeeded"
	MessageRetry         = "retry"
	MessageUnprocessable = "unprocessable"
)

// MetricsService encapsulates Prometheus instrumentation for the reporter.
type MetricsService struct {
	registry          *prometheus.Registry
	handler           http.Handler
	messagesReceived  prometheus.Counter
	messagesProcessed *prometheus.CounterVec
	emptyPolls        prometheus.Counter
	reportsTotal      *prometheus.CounterVec
	reportDuration    *prometheus.HistogramVec
	cacheHits         prometheus.Counter
	cacheMisses       prometheus.Counter
	cacheHitRatio     prometheus.Gauge
	cacheWrite        prometheus.Observer
	requestDuration   *prometheus.HistogramVec

	cacheHitCount  uint64
	cacheMissCount uint64
}

// NewMetricsService registers the reporter's collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	messagesReceived := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reporter_messages_received_total",
		Help: "Report request messages received from the queue",
	})

	messagesProcessed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reporter_messages_processed_total",
		Help: "Report request messages by processing outcome",
	}, []string{"result"})

	emptyPolls := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reporter_empty_polls_total",
		Help: "Queue receives that returned no messages",
	})

	reportsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reporter_reports_total",
		Help: "Per-study report generations by schedule type and result",
	}, []string{"schedule_type", "result"})

	reportDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "reporter_report_duration_seconds",
		Help:    "Time to generate and publish one study report",
		Buckets: prometheus.DefBuckets,
	}, []string{"schedule_type"})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of ops HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(messagesReceived, messagesProcessed, emptyPolls, reportsTotal, reportDuration,
		cacheHits, cacheMisses, cacheHitRatio, cacheWrite, requestDuration, goroutines)

	return &MetricsService{
		registry:          registry,
		handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		messagesReceived:  messagesReceived,
		messagesProcessed: messagesProcessed,
		emptyPolls:        emptyPolls,
		reportsTotal:      reportsTotal,
		reportDuration:    reportDuration,
		cacheHits:         cacheHits,
		cacheMisses:       cacheMisses,
		cacheHitRatio:     cacheHitRatio,
		cacheWrite:        cacheWrite,
		requestDuration:   requestDuration,
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

// Registry exposes the underlying registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *MetricsService) ObserveReceived(count int) {
	if m == nil {
		return
	}
	if count == 0 {
		m.emptyPolls.Inc()
		return
	}
	m.messagesReceived.Add(float64(count))
}

func (m *MetricsService) ObserveMessage(result string) {
	if m == nil {
		return
	}
	m.messagesProcessed.WithLabelValues(result).Inc()
}

// ObserveReport records one study's generate+publish attempt.
func (m *MetricsService) ObserveReport(scheduleType string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	result := "succeeded"
	if err != nil {
		result = "failed"
	}
	m.reportsTotal.WithLabelValues(scheduleType, result).Inc()
	m.reportDuration.WithLabelValues(scheduleType).Observe(duration.Seconds())
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	if total := hits + misses; total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveHTTPRequest records ops endpoint latency.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(method, path, fmt.Sprintf("%d", status)).Observe(duration.Seconds())
}
