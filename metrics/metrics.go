// Package metrics exposes discovery decisions and file scans as Prometheus
// metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ncdiscover"

// Decision label values.
const (
	DecisionConfirmed     = "confirmed"
	DecisionDiscovered    = "discovered"
	DecisionPassedThrough = "passed_through"
)

// Collector holds all metrics. It implements discovery.Recorder.
type Collector struct {
	Decisions    *prometheus.CounterVec
	Skips        *prometheus.CounterVec
	FailedPasses *prometheus.CounterVec

	FilesScanned *prometheus.CounterVec
	ScanDuration *prometheus.HistogramVec
}

// New creates a collector with all metrics registered on reg.
func New(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		Decisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "decisions_total",
				Help:      "Catalog entries emitted by discovery passes",
			},
			[]string{"file_type", "decision"},
		),
		Skips: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "skipped_total",
				Help:      "Candidate arrays not reported as datasets",
			},
			[]string{"file_type", "reason"},
		),
		FailedPasses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "failed_passes_total",
				Help:      "Discovery passes aborted for lack of a reference shape",
			},
			[]string{"file_type"},
		),
		FilesScanned: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "files_scanned_total",
				Help:      "Files scanned, by outcome",
			},
			[]string{"file_type", "result"},
		),
		ScanDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "scan_duration_seconds",
				Help:      "Time to open and scan one file",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"file_type"},
		),
	}
}

func (c *Collector) Confirmed(fileType string) {
	c.Decisions.WithLabelValues(fileType, DecisionConfirmed).Inc()
}

func (c *Collector) Discovered(fileType string) {
	c.Decisions.WithLabelValues(fileType, DecisionDiscovered).Inc()
}

func (c *Collector) PassedThrough(fileType string) {
	c.Decisions.WithLabelValues(fileType, DecisionPassedThrough).Inc()
}

func (c *Collector) Skipped(fileType string, reason string) {
	c.Skips.WithLabelValues(fileType, reason).Inc()
}

func (c *Collector) PassFailed(fileType string) {
	c.FailedPasses.WithLabelValues(fileType).Inc()
}

// FileScanned records one scanned file. fileType may be empty when no file
// type matched.
func (c *Collector) FileScanned(fileType string, err error, took time.Duration) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.FilesScanned.WithLabelValues(fileType, result).Inc()
	c.ScanDuration.WithLabelValues(fileType).Observe(took.Seconds())
}

// WriteTextfile writes everything g gathers to path in the text exposition
// format, for node_exporter's textfile collector.
func WriteTextfile(g prometheus.Gatherer, path string) error {
	return prometheus.WriteToTextfile(path, g)
}
