package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	linesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "streamfwd",
		Name:      "lines_total",
		Help:      "Total number of complete lines flushed to sinks.",
	}, []string{"stream"})
	chunksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "streamfwd",
		Name:      "chunks_total",
		Help:      "Total number of raw chunks flushed to sinks.",
	}, []string{"stream"})
	bytesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "streamfwd",
		Name:      "bytes_total",
		Help:      "Total number of bytes read from source streams.",
	}, []string{"stream"})
	readErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "streamfwd",
		Name:      "read_errors_total",
		Help:      "Total number of source read failures.",
	}, []string{"stream"})
	activeStreams = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "streamfwd",
		Name:      "active_streams",
		Help:      "Current number of streams being forwarded.",
	})
	runsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "streamfwd",
		Name:      "runs_total",
		Help:      "Total number of child processes run, by outcome.",
	}, []string{"outcome"})
)

// Register registers all streamfwd metrics to the provided Prometheus registerer.
// It is safe to call multiple times; AlreadyRegisteredError will be ignored.
func Register(r prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		linesTotal, chunksTotal, bytesTotal, readErrorsTotal, activeStreams, runsTotal,
	}
	for _, c := range collectors {
		if err := r.Register(c); err != nil {
			var alreadyRegisteredError prometheus.AlreadyRegisteredError
			if errors.As(err, &alreadyRegisteredError) {
				continue
			}
			return err
		}
	}
	return nil
}

func streamLabel(stream string) string {
	if stream == "" {
		return "unknown"
	}
	return stream
}

// IncLines increments the flushed lines counter for a stream.
func IncLines(stream string) { linesTotal.WithLabelValues(streamLabel(stream)).Inc() }

// IncChunks increments the flushed chunks counter for a stream.
func IncChunks(stream string) { chunksTotal.WithLabelValues(streamLabel(stream)).Inc() }

// AddBytes adds n to the bytes counter for a stream.
func AddBytes(stream string, n int) {
	if n > 0 {
		bytesTotal.WithLabelValues(streamLabel(stream)).Add(float64(n))
	}
}

// IncReadErrors increments the read errors counter for a stream.
func IncReadErrors(stream string) { readErrorsTotal.WithLabelValues(streamLabel(stream)).Inc() }

func IncActiveStreams() { activeStreams.Inc() }

func DecActiveStreams() { activeStreams.Dec() }

// IncRuns counts a finished child process; outcome is "success", "failure" or "error".
func IncRuns(outcome string) { runsTotal.WithLabelValues(outcome).Inc() }
