package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nao1215/corpuscrawl/internal/crawler"
	"github.com/nao1215/corpuscrawl/internal/model"
)

// adHocSource labels runs that were started from seeds rather than a
// configured source.
const adHocSource = "adhoc"

// Compile-time interface check.
var _ crawler.Recorder = (*SourceRecorder)(nil)

// Collector holds the crawl metrics in a private registry.
// Metrics are written to a node_exporter textfile after the runs finish.
type Collector struct {
	registry *prometheus.Registry

	// Counters
	pagesSaved    *prometheus.CounterVec
	rejections    *prometheus.CounterVec
	visitsTotal   *prometheus.CounterVec
	runsTotal     *prometheus.CounterVec
	interruptions *prometheus.CounterVec

	// Gauges
	runDuration   *prometheus.GaugeVec
	pending       *prometheus.GaugeVec
	lastRunFinish *prometheus.GaugeVec

	// Histograms
	contentChars *prometheus.HistogramVec
}

// NewCollector creates a Collector with all metrics registered.
func NewCollector() (*Collector, error) {
	c := &Collector{
		registry: prometheus.NewRegistry(),
	}
	if err := c.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}
	return c, nil
}

// initMetrics creates and registers all metrics.
func (c *Collector) initMetrics() error {
	c.pagesSaved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "corpuscrawl_pages_saved_total",
			Help: "Total number of pages written to the corpus",
		},
		[]string{"source"},
	)

	c.rejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "corpuscrawl_rejections_total",
			Help: "Total number of frontier entries rejected, by reason",
		},
		[]string{"source", "reason"},
	)

	c.visitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "corpuscrawl_visits_total",
			Help: "Total number of frontier entries processed",
		},
		[]string{"source"},
	)

	c.runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "corpuscrawl_runs_total",
			Help: "Total number of finished crawl runs",
		},
		[]string{"source"},
	)

	c.interruptions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "corpuscrawl_runs_interrupted_total",
			Help: "Total number of crawl runs cancelled before their natural end",
		},
		[]string{"source"},
	)

	c.runDuration = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "corpuscrawl_run_duration_seconds",
			Help: "Duration of the last crawl run in seconds",
		},
		[]string{"source"},
	)

	c.pending = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "corpuscrawl_frontier_pending",
			Help: "Frontier entries left unprocessed by the last run",
		},
		[]string{"source"},
	)

	c.lastRunFinish = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "corpuscrawl_last_run_finished_timestamp_seconds",
			Help: "Unix time the last crawl run finished",
		},
		[]string{"source"},
	)

	c.contentChars = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "corpuscrawl_page_content_characters",
			Help:    "Extracted text length of saved pages",
			Buckets: []float64{200, 500, 1000, 2500, 5000, 10000, 25000, 50000, 100000},
		},
		[]string{"source"},
	)

	collectors := []prometheus.Collector{
		c.pagesSaved,
		c.rejections,
		c.visitsTotal,
		c.runsTotal,
		c.interruptions,
		c.runDuration,
		c.pending,
		c.lastRunFinish,
		c.contentChars,
	}

	for _, col := range collectors {
		if err := c.registry.Register(col); err != nil {
			return err
		}
	}

	return nil
}

// ForSource returns a crawler.Recorder that labels visits with source.
func (c *Collector) ForSource(source string) *SourceRecorder {
	return &SourceRecorder{collector: c, source: sourceLabel(source)}
}

// ObserveRun records the run-level values of a finished summary.
// Per-visit counters are fed by SourceRecorder during the crawl.
func (c *Collector) ObserveRun(summary *model.RunSummary) {
	if summary == nil {
		return
	}

	source := sourceLabel(summary.Source)
	c.runsTotal.WithLabelValues(source).Inc()
	if summary.Interrupted {
		c.interruptions.WithLabelValues(source).Inc()
	}
	c.runDuration.WithLabelValues(source).Set(summary.Duration().Seconds())
	c.pending.WithLabelValues(source).Set(float64(summary.Pending))
	if !summary.FinishedAt.IsZero() {
		c.lastRunFinish.WithLabelValues(source).Set(float64(summary.FinishedAt.Unix()))
	}
}

// WriteTextfile writes every metric in the text exposition format.
// The file is written atomically so node_exporter never reads a partial file.
func (c *Collector) WriteTextfile(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create metrics directory: %w", err)
		}
	}
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}

// SourceRecorder feeds per-visit counters for one source.
type SourceRecorder struct {
	collector *Collector
	source    string
}

// RecordVisit implements crawler.Recorder.
func (r *SourceRecorder) RecordVisit(visit model.Visit) {
	c := r.collector

	c.visitsTotal.WithLabelValues(r.source).Inc()
	if visit.Accepted {
		c.pagesSaved.WithLabelValues(r.source).Inc()
		c.contentChars.WithLabelValues(r.source).Observe(float64(visit.ContentLength))
		return
	}
	c.rejections.WithLabelValues(r.source, visit.Reason.String()).Inc()
}

// sourceLabel maps an empty source name to the ad-hoc label.
func sourceLabel(source string) string {
	if source == "" {
		return adHocSource
	}
	return source
}
