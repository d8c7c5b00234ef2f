package metrics

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all the Prometheus metrics for edgeprobe
type Metrics struct {
	// Counters
	Probes         *prometheus.CounterVec
	ProbeFailures  *prometheus.CounterVec
	ProbeRetries   prometheus.Counter
	ReportsEmitted *prometheus.CounterVec
	SinkErrors     *prometheus.CounterVec
	HTTPRequests   *prometheus.CounterVec

	// Gauges
	QueueDepth *prometheus.GaugeVec

	// Histograms
	ProbeDuration     prometheus.Histogram
	BatchFlushLatency *prometheus.HistogramVec
	HTTPDuration      *prometheus.HistogramVec
}

// Config holds configuration for the metrics server
type Config struct {
	Enabled    bool
	Addr       string
	TLSCert    string
	TLSKey     string
	ClientCA   string
	RequireTLS bool
}

// LoadConfig loads metrics configuration from environment variables
func LoadConfig() Config {
	return Config{
		Enabled:    getBool("METRICS_ENABLED", false),
		Addr:       getOr("METRICS_ADDR", "127.0.0.1:9091"),
		TLSCert:    getOr("METRICS_TLS_CERT", ""),
		TLSKey:     getOr("METRICS_TLS_KEY", ""),
		ClientCA:   getOr("METRICS_CLIENT_CA", ""),
		RequireTLS: getBool("METRICS_REQUIRE_TLS", false),
	}
}

// NewMetrics creates the metrics and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Probes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "edgeprobe_probes_total",
				Help: "Successful classifications by provider and cache status",
			},
			[]string{"provider", "cache"},
		),

		ProbeFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "edgeprobe_probe_failures_total",
				Help: "Probes abandoned after exhausting retries, by reason",
			},
			[]string{"reason"},
		),

		ProbeRetries: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "edgeprobe_probe_retries_total",
				Help: "Failed HEAD attempts that were retried",
			},
		),

		ReportsEmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "edgeprobe_reports_emitted_total",
				Help: "Reports accepted by sink type",
			},
			[]string{"sink"},
		),

		SinkErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "edgeprobe_sink_errors_total",
				Help: "Total errors writing to a sink",
			},
			[]string{"sink", "error_type"},
		),

		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "edgeprobe_http_requests_total",
				Help: "Total HTTP requests by endpoint and status",
			},
			[]string{"endpoint", "method", "status"},
		),

		QueueDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "edgeprobe_queue_depth",
				Help: "Reports buffered in a sink awaiting flush",
			},
			[]string{"sink"},
		),

		ProbeDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "edgeprobe_probe_duration_seconds",
				Help:    "Time from first attempt to classification, retries included",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
		),

		BatchFlushLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "edgeprobe_batch_flush_latency_seconds",
				Help:    "Latency of flushing a batch to sinks",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"sink"},
		),

		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "edgeprobe_http_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"endpoint", "method"},
		),
	}

	reg.MustRegister(
		m.Probes,
		m.ProbeFailures,
		m.ProbeRetries,
		m.ReportsEmitted,
		m.SinkErrors,
		m.HTTPRequests,
		m.QueueDepth,
		m.ProbeDuration,
		m.BatchFlushLatency,
		m.HTTPDuration,
	)

	return m
}

// Server represents the metrics HTTP server
type Server struct {
	server *http.Server
	config Config
}

// NewServer creates a new metrics server
func NewServer(config Config) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	srv := &http.Server{
		Addr:         config.Addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if config.RequireTLS && config.TLSCert != "" && config.TLSKey != "" {
		tlsConfig := &tls.Config{
			MinVersion: tls.VersionTLS12,
		}

		if config.ClientCA != "" {
			clientCAs, err := loadCertPool(config.ClientCA)
			if err != nil {
				log.Printf("metrics: failed to load client CA: %v", err)
			} else {
				tlsConfig.ClientCAs = clientCAs
				tlsConfig.ClientAuth = tls.RequireAndVerifyClientCert
				log.Printf("metrics: mTLS enabled with client CA: %s", config.ClientCA)
			}
		}

		srv.TLSConfig = tlsConfig
	}

	return &Server{
		server: srv,
		config: config,
	}
}

// Start starts the metrics server in a separate goroutine
func (s *Server) Start(ctx context.Context) error {
	if !s.config.Enabled {
		log.Printf("metrics: disabled (METRICS_ENABLED=false)")
		return nil
	}

	go func() {
		var err error
		if s.config.RequireTLS && s.config.TLSCert != "" && s.config.TLSKey != "" {
			log.Printf("metrics: HTTPS server listening on %s", s.config.Addr)
			err = s.server.ListenAndServeTLS(s.config.TLSCert, s.config.TLSKey)
		} else {
			log.Printf("metrics: HTTP server listening on %s", s.config.Addr)
			err = s.server.ListenAndServe()
		}

		if err != nil && err != http.ErrServerClosed {
			log.Printf("metrics: server error: %v", err)
		}
	}()

	return nil
}

// Shutdown gracefully shuts down the metrics server
func (s *Server) Shutdown(ctx context.Context) error {
	if !s.config.Enabled {
		return nil
	}

	log.Printf("metrics: shutting down server...")
	return s.server.Shutdown(ctx)
}

func getOr(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func loadCertPool(certFile string) (*x509.CertPool, error) {
	pem, err := os.ReadFile(certFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", certFile, err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no certificates found in %s", certFile)
	}
	return pool, nil
}

var (
	defaultMetrics *Metrics
	defaultOnce    sync.Once
)

// InitMetrics returns the process-wide metrics, registering them with the
// default Prometheus registry on first use.
func InitMetrics() *Metrics {
	defaultOnce.Do(func() {
		defaultMetrics = NewMetrics(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

// The helpers below tolerate a nil receiver so callers can run without metrics.

func (m *Metrics) ObserveProbe(provider, cache string, duration time.Duration) {
	if m == nil {
		return
	}
	m.Probes.WithLabelValues(provider, cache).Inc()
	m.ProbeDuration.Observe(duration.Seconds())
}

func (m *Metrics) IncrementProbeFailures(reason string) {
	if m == nil {
		return
	}
	m.ProbeFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncrementProbeRetries() {
	if m == nil {
		return
	}
	m.ProbeRetries.Inc()
}

func (m *Metrics) IncrementReportsEmitted(sink string) {
	if m == nil {
		return
	}
	m.ReportsEmitted.WithLabelValues(sink).Inc()
}

func (m *Metrics) IncrementSinkErrors(sink, errorType string) {
	if m == nil {
		return
	}
	m.SinkErrors.WithLabelValues(sink, errorType).Inc()
}

func (m *Metrics) IncrementHTTPRequests(endpoint, method, status string) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(endpoint, method, status).Inc()
}

func (m *Metrics) SetQueueDepth(sink string, depth float64) {
	if m == nil {
		return
	}
	m.QueueDepth.WithLabelValues(sink).Set(depth)
}

func (m *Metrics) ObserveBatchFlushLatency(sink string, duration time.Duration) {
	if m == nil {
		return
	}
	m.BatchFlushLatency.WithLabelValues(sink).Observe(duration.Seconds())
}

func (m *Metrics) ObserveHTTPDuration(endpoint, method string, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPDuration.WithLabelValues(endpoint, method).Observe(duration.Seconds())
}
