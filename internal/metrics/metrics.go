package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the profile editor
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Upload metrics
	UploadsTotal     *prometheus.CounterVec
	UploadBytesTotal prometheus.Counter
	UploadDuration   *prometheus.HistogramVec

	// Profile metrics
	ProfilePatchesTotal *prometheus.CounterVec
	ProfileCacheTotal   *prometheus.CounterVec

	// Edit session state machine
	EditorTransitionsTotal *prometheus.CounterVec
}

var (
	instance *Metrics
	once     sync.Once
)

// Initialize creates and registers all Prometheus metrics
func Initialize() *Metrics {
	once.Do(func() {
		instance = &Metrics{
			HTTPRequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "http_requests_total",
					Help: "Total number of HTTP requests",
				},
				[]string{"method", "path", "status"},
			),
			HTTPRequestDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "http_request_duration_seconds",
					Help:    "HTTP request latency in seconds",
					Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
				},
				[]string{"method", "path", "status"},
			),

			UploadsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "profile_media_uploads_total",
					Help: "Profile media uploads by terminal result and failure kind",
				},
				[]string{"result", "kind"},
			),
			UploadBytesTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "profile_media_upload_bytes_total",
					Help: "Bytes of profile media successfully stored",
				},
			),
			UploadDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "profile_media_upload_duration_seconds",
					Help:    "Time from upload start to terminal result",
					Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
				},
				[]string{"result"},
			),

			ProfilePatchesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "profile_patches_total",
					Help: "Profile patches applied, by field and outcome",
				},
				[]string{"field", "status"},
			),
			ProfileCacheTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "profile_cache_lookups_total",
					Help: "Profile cache lookups by result",
				},
				[]string{"result"},
			),

			EditorTransitionsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "profile_editor_transitions_total",
					Help: "Profile edit session state transitions",
				},
				[]string{"from", "to"},
			),
		}
	})
	return instance
}

// Get returns the metrics instance, initializing it on first use
func Get() *Metrics {
	return Initialize()
}
