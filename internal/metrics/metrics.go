// Package metrics exposes workflow counters to Prometheus.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"SiteAuditor/internal/domain"
	"SiteAuditor/internal/ports"
)

// Collector records workflow events as Prometheus metrics.
type Collector struct {
	submissions     *prometheus.CounterVec
	rejections      *prometheus.CounterVec
	degraded        prometheus.Counter
	analysisLatency prometheus.Histogram
	notifications   *prometheus.CounterVec
	narrationLines  prometheus.Counter
}

var _ ports.Metrics = (*Collector)(nil)

// NewCollector registers the metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "siteauditor_submissions_total",
			Help: "Stored analysis records by priority.",
		}, []string{"priority"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "siteauditor_rejections_total",
			Help: "Submissions rejected before analysis, by reason.",
		}, []string{"reason"}),
		degraded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "siteauditor_analysis_degraded_total",
			Help: "Analyses that fell back to the offline result.",
		}),
		analysisLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "siteauditor_analysis_latency_seconds",
			Help:    "Latency of calls to the analysis service.",
			Buckets: prometheus.DefBuckets,
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "siteauditor_notifications_total",
			Help: "Notification attempts by mode and result.",
		}, []string{"mode", "result"}),
		narrationLines: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "siteauditor_narration_lines_total",
			Help: "Lines enqueued for narration.",
		}),
	}

	reg.MustRegister(
		c.submissions,
		c.rejections,
		c.degraded,
		c.analysisLatency,
		c.notifications,
		c.narrationLines,
	)

	return c
}

func (c *Collector) RecordSubmission(p domain.Priority) {
	c.submissions.WithLabelValues(string(p)).Inc()
}

func (c *Collector) RecordRejection(reason string) {
	c.rejections.WithLabelValues(reason).Inc()
}

func (c *Collector) RecordAnalysisDegraded() {
	c.degraded.Inc()
}

func (c *Collector) RecordAnalysisLatency(d time.Duration) {
	c.analysisLatency.Observe(d.Seconds())
}

func (c *Collector) RecordNotification(mode, result string) {
	c.notifications.WithLabelValues(mode, result).Inc()
}

func (c *Collector) RecordNarrationLine() {
	c.narrationLines.Inc()
}

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute mounts Handler on /metrics.
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}

// Server serves /metrics until it is shut down.
type Server struct {
	srv    *http.Server
	logger *slog.Logger
	done   chan error
}

// Serve starts listening on addr in the background.
func Serve(addr string, gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	s := &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           SetupMetricsRoute(gatherer),
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
		done:   make(chan error, 1),
	}

	go func() {
		logger.Info("metrics listener started", "addr", addr)
		err := s.srv.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		if err != nil {
			logger.Error("metrics listener failed", "error", err)
		}
		s.done <- err
	}()

	return s
}

// Shutdown stops the listener and waits for it to exit.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown metrics listener: %w", err)
	}
	select {
	case err := <-s.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
