package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

var (
	ErrorsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "importer_errors_total",
			Help: "Total number of occurred errors.",
		},
		[]string{"type"},
	)
	RunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "importer_run_duration_seconds",
			Help:    "Duration of each feed import run in seconds.",
			Buckets: []float64{1, 5, 15, 60, 300, 900},
		},
	)
	ImportedJobsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "importer_jobs_imported_total",
			Help: "Total number of successfully upserted job records.",
		},
		[]string{"result"}, // created or updated
	)
	FailedItemsCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "importer_items_failed_total",
			Help: "Total number of feed items that failed to import.",
		},
	)
	QueueWaiting = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "importer_queue_waiting_units",
			Help: "Number of batches waiting in the import queue.",
		},
	)
	QueueActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "importer_queue_active_units",
			Help: "Number of batches currently being processed.",
		},
	)
)

func StartMetricsServer() {

	prometheus.MustRegister(ErrorsCounter)
	prometheus.MustRegister(RunDuration)
	prometheus.MustRegister(ImportedJobsCounter)
	prometheus.MustRegister(FailedItemsCounter)
	prometheus.MustRegister(QueueWaiting)
	prometheus.MustRegister(QueueActive)

	http.Handle("/metrics", promhttp.Handler())
	go func() {
		log.Fatal(http.ListenAndServe(":8080", nil))
	}()
}
