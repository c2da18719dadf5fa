// file: internal/metrics/metrics.go
// version: 2.0.0
// guid: 85dfbe43-9896-4b70-8eee-3caf1d95285f

package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "music_catalog"

// Extraction result labels.
const (
	ResultSuccess    = "success"
	ResultInvalidURL = "invalid_url"
	ResultDownload   = "download"
	ResultUnreadable = "unreadable"
	ResultCached     = "cached"
)

var (
	registerOnce sync.Once

	extractions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "extractions_total",
		Help:      "Total number of metadata extractions by result",
	}, []string{"result"})
	extractionDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "extraction_duration_seconds",
		Help:      "Histogram of metadata extraction durations in seconds",
		Buckets:   prometheus.ExponentialBuckets(0.05, 1.6, 12),
	})
	downloadBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "download_bytes_total",
		Help:      "Total bytes streamed from remote audio URLs",
	})
	transientArtifacts = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "transient_artifacts",
		Help:      "Number of temporary files currently held by extractions",
	})
	coverArt = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cover_art_total",
		Help:      "Cover art lookups by whether a picture was found",
	}, []string{"found"})

	songsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "songs",
		Help:      "Current number of songs in the catalog",
	})
	songOperations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "song_operations_total",
		Help:      "Catalog write operations by type",
	}, []string{"op"})
)

// Register initializes metrics with the global Prometheus registry (idempotent)
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(extractions, extractionDuration, downloadBytes, transientArtifacts, coverArt,
			songsGauge, songOperations)
	})
}

// Extraction helpers
func IncExtraction(result string) { extractions.WithLabelValues(result).Inc() }
func ObserveExtractionDuration(d time.Duration) {
	extractionDuration.Observe(d.Seconds())
}
func AddDownloadBytes(n int64) {
	if n > 0 {
		downloadBytes.Add(float64(n))
	}
}
func IncTransientArtifacts() { transientArtifacts.Inc() }
func DecTransientArtifacts() { transientArtifacts.Dec() }
func ObserveCoverArt(found bool) {
	if found {
		coverArt.WithLabelValues("true").Inc()
		return
	}
	coverArt.WithLabelValues("false").Inc()
}

// Catalog helpers
func SetSongs(n int)             { songsGauge.Set(float64(n)) }
func IncSongOperation(op string) { songOperations.WithLabelValues(op).Inc() }
