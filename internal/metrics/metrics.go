package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "stablegen"

var (
	GenerationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "generations_total",
		Help:      "Generation requests by outcome.",
	}, []string{"status"})

	GenerationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "generation_duration_seconds",
		Help:      "Time spent waiting on the remote worker.",
		Buckets:   []float64{1, 2.5, 5, 10, 20, 30, 60, 120, 300, 900},
	})

	WorkerInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "worker_in_flight",
		Help:      "Worker calls currently outstanding.",
	})

	ArtifactsSwept = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "artifacts_swept_total",
		Help:      "Artifacts removed by the retention sweeper.",
	})
)

// Generation statuses used as label values.
const (
	StatusSuccess  = "success"
	StatusInvalid  = "invalid"
	StatusRejected = "rejected"
)
