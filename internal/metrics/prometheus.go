package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ScenesDetectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "framesearch_scenes_detected_total",
		Help: "Total number of scenes detected across all runs",
	})

	FramesExtractedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "framesearch_frames_extracted_total",
		Help: "Total number of key frames extracted",
	})

	FramesAnnotatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "framesearch_frames_annotated_total",
		Help: "Total number of frames annotated, by status",
	}, []string{"status"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "framesearch_stage_duration_seconds",
		Help:    "Duration of pipeline stages",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"stage"})

	CallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "framesearch_call_duration_seconds",
		Help:    "Duration of external calls made while annotating a frame",
		Buckets: prometheus.DefBuckets,
	}, []string{"step"})

	RetryTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "framesearch_retry_total",
		Help: "Total number of retried external calls, by step",
	}, []string{"step"})

	ActiveWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "framesearch_active_workers",
		Help: "Number of workers currently annotating a frame",
	})

	SearchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "framesearch_searches_total",
		Help: "Total number of queries answered, by status",
	}, []string{"status"})
)
