package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Worker holds the per-process worker collectors. Collectors are registered
// against an explicit registry so independent workers (and tests) never
// collide on the default one.
type Worker struct {
	JobsInProgress prometheus.Gauge
	JobsDone       prometheus.Counter
	JobsFailed     prometheus.Counter
	QueueDepth     prometheus.Gauge
	LastTick       prometheus.Gauge
}

func NewWorker(reg prometheus.Registerer, workerID string) *Worker {
	labels := prometheus.Labels{"worker_id": workerID}
	w := &Worker{
		JobsInProgress: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "worker_jobs_in_progress",
			Help:        "Current jobs in progress",
			ConstLabels: labels,
		}),
		JobsDone: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "worker_jobs_done_total",
			Help:        "Jobs finished",
			ConstLabels: labels,
		}),
		JobsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "worker_jobs_failed_total",
			Help:        "Jobs failed",
			ConstLabels: labels,
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "worker_queue_depth",
			Help:        "Current conversion queue depth",
			ConstLabels: labels,
		}),
		LastTick: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "worker_last_tick_seconds",
			Help:        "Unix time of the last idle liveness tick",
			ConstLabels: labels,
		}),
	}
	reg.MustRegister(w.JobsInProgress, w.JobsDone, w.JobsFailed, w.QueueDepth, w.LastTick)
	return w
}

// API holds the enqueue-side collectors.
type API struct {
	JobsEnqueued *prometheus.CounterVec
	MediaUploads prometheus.Counter
}

func NewAPI(reg prometheus.Registerer) *API {
	a := &API{
		JobsEnqueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "api_jobs_enqueued_total",
			Help: "Total conversion jobs enqueued",
		}, []string{"target_format"}),
		MediaUploads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "api_media_uploads_total",
			Help: "Total media files uploaded",
		}),
	}
	reg.MustRegister(a.JobsEnqueued, a.MediaUploads)
	return a
}
