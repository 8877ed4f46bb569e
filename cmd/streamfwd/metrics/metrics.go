package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "streamfwd"
	subsystem = "sink"
)

var (
	enqueuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "enqueued_total",
			Help:      "Total number of forwarded lines accepted into sink buffers.",
		},
		[]string{"sink", "stream"},
	)
	droppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "dropped_total",
			Help:      "Total number of forwarded lines not enqueued (filtered or buffer_full).",
		},
		[]string{"sink", "stream", "reason"},
	)
	flushTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "flush_total",
			Help:      "Total number of flush attempts with at least one record.",
		},
		[]string{"sink"},
	)
	flushFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "flush_failures_total",
			Help:      "Total number of failed flushes.",
		},
		[]string{"sink"},
	)
	batchSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "flush_batch_size",
			Help:      "Number of records per flush.",
			Buckets:   []float64{1, 2, 5, 10, 20, 50, 100, 200, 500, 1000},
		},
		[]string{"sink"},
	)
	flushDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "flush_duration_seconds",
			Help:      "Duration of sink flush operations in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"sink"},
	)
)

// Register registers sink metrics to r. AlreadyRegistered is ignored.
func Register(r prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		enqueuedTotal, droppedTotal, flushTotal, flushFailuresTotal, batchSize, flushDuration,
	} {
		if err := r.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				continue
			}
			return err
		}
	}
	return nil
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

// SinkEnqueued counts a line of the given child stream accepted by sink.
func SinkEnqueued(sink, stream string) {
	enqueuedTotal.WithLabelValues(orUnknown(sink), orUnknown(stream)).Inc()
}

// SinkDropped counts a line not handed to sink; reason is "filtered" or "buffer_full".
func SinkDropped(sink, stream, reason string) {
	droppedTotal.WithLabelValues(orUnknown(sink), orUnknown(stream), orUnknown(reason)).Inc()
}

// SinkFlushObserve records batch size, duration and success of one flush.
func SinkFlushObserve(sink string, size int, dur time.Duration, success bool) {
	sink = orUnknown(sink)
	if size > 0 {
		batchSize.WithLabelValues(sink).Observe(float64(size))
		flushTotal.WithLabelValues(sink).Inc()
	}
	flushDuration.WithLabelValues(sink).Observe(dur.Seconds())
	if !success {
		flushFailuresTotal.WithLabelValues(sink).Inc()
	}
}
