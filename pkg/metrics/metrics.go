// Package metrics exposes prometheus collectors for scrape runs, the events
// they emit and the downloads they make.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"profilegrab/internal/downloader"
	"profilegrab/pkg/events"
	"profilegrab/pkg/models"
)

const Namespace = "profilegrab"

// Metrics holds every collector
type Metrics struct {
	RunsStarted      *prometheus.CounterVec
	RunsFinished     *prometheus.CounterVec
	RunDuration      *prometheus.HistogramVec
	RunsActive       prometheus.Gauge
	EventsEmitted    *prometheus.CounterVec
	MediaFound       *prometheus.GaugeVec
	Downloads        *prometheus.CounterVec
	DownloadDuration prometheus.Histogram
	DownloadBytes    prometheus.Counter
}

// New registers the collectors on reg, or on the default registerer when
// reg is nil. Registering twice on the same registerer panics.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		RunsStarted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "scrape",
			Name:      "runs_started_total",
			Help:      "Scrape runs started",
		}, []string{"platform"}),
		RunsFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "scrape",
			Name:      "runs_finished_total",
			Help:      "Scrape runs finished, by outcome",
		}, []string{"platform", "outcome"}),
		RunDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "scrape",
			Name:      "run_duration_seconds",
			Help:      "Wall time of a scrape run",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~34min
		}, []string{"platform"}),
		RunsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "scrape",
			Name:      "runs_active",
			Help:      "Scrape runs in progress",
		}),
		EventsEmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "scrape",
			Name:      "events_total",
			Help:      "Events emitted on run streams",
		}, []string{"platform", "type"}),
		MediaFound: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "scrape",
			Name:      "media_found",
			Help:      "Media records found by the latest progress event",
		}, []string{"platform"}),
		Downloads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "download",
			Name:      "files_total",
			Help:      "Media files handled by the download engine, by outcome",
		}, []string{"outcome"}),
		DownloadDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "download",
			Name:      "duration_seconds",
			Help:      "Time spent fetching one media file, retries included",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		DownloadBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "download",
			Name:      "bytes_total",
			Help:      "Bytes written to media files",
		}),
	}
}

func (m *Metrics) RunStarted(p models.Platform) {
	m.RunsStarted.WithLabelValues(string(p)).Inc()
	m.RunsActive.Inc()
}

func (m *Metrics) EventEmitted(p models.Platform, e events.Event) {
	m.EventsEmitted.WithLabelValues(string(p), string(e.Type)).Inc()
	if e.Type == events.TypeProgress {
		m.MediaFound.WithLabelValues(string(p)).Set(float64(e.Found()))
	}
}

func (m *Metrics) RunFinished(p models.Platform, outcome string, d time.Duration) {
	m.RunsActive.Dec()
	m.RunsFinished.WithLabelValues(string(p), outcome).Inc()
	m.RunDuration.WithLabelValues(string(p)).Observe(d.Seconds())
}

// RecordDownload counts one engine outcome. Only real fetches carry a
// duration worth observing.
func (m *Metrics) RecordDownload(outcome downloader.Outcome, d time.Duration, bytes int64) {
	m.Downloads.WithLabelValues(string(outcome)).Inc()
	if outcome == downloader.OutcomeDownloaded || outcome == downloader.OutcomeFailed {
		m.DownloadDuration.Observe(d.Seconds())
	}
	if bytes > 0 {
		m.DownloadBytes.Add(float64(bytes))
	}
}
