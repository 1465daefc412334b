// Package metrics provides Prometheus metrics collection for HTTP traffic
// and the conversational memory engine.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/Patelhetu-177/AvatarAI/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	subsystem = "avatarai"
)

// Metrics holds the Prometheus registry and the collectors used by the
// service.
type Metrics struct {
	reg *prometheus.Registry

	TotalHTTPRequestsCounter prometheus.Counter
	HTTPRequestsCounters     map[int]prometheus.Counter
	HTTPDurationHistogram    prometheus.Histogram

	// Memory engine collectors
	EmbeddingCacheHits      prometheus.Counter
	EmbeddingCacheMisses    prometheus.Counter
	EmbeddingCacheEvictions prometheus.Counter
	RetrievalFallbacks      prometheus.Counter
	RetrievalEmptyResults   prometheus.Counter
	RateLimitDecisions      *prometheus.CounterVec
	RateLimitLatency        prometheus.Histogram

	server *http.Server
	errCh  chan error
	mu     sync.Mutex
	log    logger.Logger
}

// New creates a Metrics instance with all collectors registered.
func New(l logger.Logger) *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		log: l,
	}

	m.TotalHTTPRequestsCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Subsystem: subsystem,
		Name:      "total_http_requests",
		Help:      "Total HTTP requests",
	})
	m.reg.MustRegister(m.TotalHTTPRequestsCounter)
	m.HTTPRequestsCounters = make(map[int]prometheus.Counter)

	m.HTTPDurationHistogram = prometheus.NewHistogram(prometheus.HistogramOpts{
		Subsystem: subsystem,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds",
		Buckets:   []float64{0.1, 0.3, 0.5, 0.7, 1.0, 3.0, 5.0, 7.0, 10.0},
	})
	m.reg.MustRegister(m.HTTPDurationHistogram)

	m.EmbeddingCacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Subsystem: subsystem,
		Name:      "embedding_cache_hits_total",
		Help:      "Embedding cache hits",
	})
	m.EmbeddingCacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Subsystem: subsystem,
		Name:      "embedding_cache_misses_total",
		Help:      "Embedding cache misses",
	})
	m.EmbeddingCacheEvictions = prometheus.NewCounter(prometheus.CounterOpts{
		Subsystem: subsystem,
		Name:      "embedding_cache_evictions_total",
		Help:      "Corrupt embedding cache entries purged",
	})
	m.RetrievalFallbacks = prometheus.NewCounter(prometheus.CounterOpts{
		Subsystem: subsystem,
		Name:      "retrieval_fallbacks_total",
		Help:      "Similarity searches that fell back to the unfiltered query",
	})
	m.RetrievalEmptyResults = prometheus.NewCounter(prometheus.CounterOpts{
		Subsystem: subsystem,
		Name:      "retrieval_empty_results_total",
		Help:      "Similarity searches that returned no passages",
	})
	m.RateLimitDecisions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Subsystem: subsystem,
		Name:      "rate_limit_decisions_total",
		Help:      "Rate limit decisions by outcome",
	}, []string{"outcome"}) // allowed | denied | cached | fail_open
	m.RateLimitLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Subsystem: subsystem,
		Name:      "rate_limit_remote_check_seconds",
		Help:      "Latency of the remote sliding-window check",
		Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.3, 0.5, 1.0},
	})
	m.reg.MustRegister(
		m.EmbeddingCacheHits,
		m.EmbeddingCacheMisses,
		m.EmbeddingCacheEvictions,
		m.RetrievalFallbacks,
		m.RetrievalEmptyResults,
		m.RateLimitDecisions,
		m.RateLimitLatency,
	)

	return m
}

// Register registers an additional custom Prometheus collector.
func (m *Metrics) Register(c prometheus.Collector) {
	m.reg.MustRegister(c)
}

// Handler returns the HTTP handler serving the metrics registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Listen starts the metrics HTTP server on the specified port.
// Server errors are delivered on the returned channel.
func (m *Metrics) Listen(port int) <-chan error {
	m.log.Info("Starting metrics listener", logger.IntField("port", port))

	mux := http.NewServeMux()
	mux.Handle("/", http.NotFoundHandler())
	mux.Handle("/metrics", m.Handler())
	m.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	m.errCh = make(chan error, 1)
	go func() {
		if err := m.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			m.errCh <- err
		}
		close(m.errCh)
	}()
	return m.errCh
}

// Shutdown stops the metrics HTTP server.
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m.server == nil {
		return nil
	}
	m.log.Info("Stopping metrics listener")
	return m.server.Shutdown(ctx)
}

// IncrementHTTPResponseCounter increments the counter for the given HTTP status code.
func (m *Metrics) IncrementHTTPResponseCounter(code int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.HTTPRequestsCounters[code]; !ok {
		m.HTTPRequestsCounters[code] = prometheus.NewCounter(prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      fmt.Sprintf("total_http_%d_responses", code),
			Help:      fmt.Sprintf("Total HTTP responses with code %d", code),
		})
		m.reg.MustRegister(m.HTTPRequestsCounters[code])
	}
	m.HTTPRequestsCounters[code].Inc()
}

// HTTPMiddleware records request counts, response codes and durations.
func (m *Metrics) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.TotalHTTPRequestsCounter.Inc()

		wrapped := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		m.HTTPDurationHistogram.Observe(time.Since(start).Seconds())
		m.IncrementHTTPResponseCounter(wrapped.status)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}
