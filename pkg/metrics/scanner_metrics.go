package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ScanTotal tracks resource scans by scanner type and verdict
	ScanTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "antivirus_scan_total",
			Help: "Total number of resource scans by scanner type and verdict",
		},
		[]string{"scanner_type", "verdict"},
	)

	// ScanDuration tracks overall resource scan duration by scanner type
	ScanDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "antivirus_scan_duration_seconds",
			Help:    "Duration of resource scans in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
		},
		[]string{"scanner_type"},
	)

	// DetectionsTotal tracks error codes produced by detection routines
	DetectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "antivirus_detections_total",
			Help: "Total number of error codes produced by scanners",
		},
		[]string{"scanner_type", "error_code"},
	)

	// AssetsProcessed tracks assets handed to the scanner by storage type
	AssetsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "antivirus_assets_processed_total",
			Help: "Total number of assets scanned by storage type",
		},
		[]string{"storage_type"},
	)

	// InfectedRemoved tracks assets removed after a detection
	InfectedRemoved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "antivirus_infected_removed_total",
			Help: "Total number of infected assets removed at their origin",
		},
		[]string{"storage_type"},
	)

	// TempFilesCreated tracks temporary copies made for scanning
	TempFilesCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "antivirus_temp_files_created_total",
			Help: "Total number of temporary files materialized for scanning",
		},
	)

	// TempFilesRemoved tracks temporary copies deleted after scanning
	TempFilesRemoved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "antivirus_temp_files_removed_total",
			Help: "Total number of temporary files removed after scanning",
		},
	)

	// BackendConstructions tracks backend instances built by the registry
	BackendConstructions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "antivirus_backend_constructions_total",
			Help: "Total number of backend instances constructed by kind and type",
		},
		[]string{"kind", "type"},
	)

	// ScannerAPIDuration tracks scan API call duration in seconds
	ScannerAPIDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "antivirus_scanner_api_duration_seconds",
			Help:    "Duration of scan API calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "status_code"},
	)

	// ScannerAPIErrors tracks scan API errors by type
	ScannerAPIErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "antivirus_scanner_api_errors_total",
			Help: "Total number of scan API errors by type",
		},
		[]string{"error_type", "status_code"},
	)

	// QueueDepth tracks scan jobs waiting for the worker
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "antivirus_queue_depth",
			Help: "Number of scan jobs waiting in the queue",
		},
	)
)

// RecordScan records a completed resource scan
func RecordScan(scannerType string, infected bool, duration float64) {
	verdict := "clean"
	if infected {
		verdict = "infected"
	}
	ScanTotal.WithLabelValues(scannerType, verdict).Inc()
	ScanDuration.WithLabelValues(scannerType).Observe(duration)
}

// RecordDetection records an error code appended by a detection routine
func RecordDetection(scannerType, code string) {
	DetectionsTotal.WithLabelValues(scannerType, code).Inc()
}

// RecordAssetProcessed records an asset handed to the scanner
func RecordAssetProcessed(storageType string) {
	AssetsProcessed.WithLabelValues(storageType).Inc()
}

// RecordInfectedRemoved records an infected asset removal
func RecordInfectedRemoved(storageType string) {
	InfectedRemoved.WithLabelValues(storageType).Inc()
}

// RecordTempFileCreated records a temporary file materialized for scanning
func RecordTempFileCreated() {
	TempFilesCreated.Inc()
}

// RecordTempFileRemoved records a temporary file removed after scanning
func RecordTempFileRemoved() {
	TempFilesRemoved.Inc()
}

// RecordBackendConstruction records a backend instance built by the registry
func RecordBackendConstruction(kind, backendType string) {
	BackendConstructions.WithLabelValues(kind, backendType).Inc()
}

// RecordScannerAPIDuration records the duration of a scan API call
func RecordScannerAPIDuration(endpoint string, statusCode int, duration float64) {
	ScannerAPIDuration.WithLabelValues(endpoint, fmt.Sprintf("%d", statusCode)).Observe(duration)
}

// RecordScannerAPIError records a scan API error
func RecordScannerAPIError(errorType string, statusCode int) {
	ScannerAPIErrors.WithLabelValues(errorType, fmt.Sprintf("%d", statusCode)).Inc()
}

// SetQueueDepth records the current scan queue depth
func SetQueueDepth(depth int) {
	QueueDepth.Set(float64(depth))
}
