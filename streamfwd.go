// Package streamfwd provides a simplified, stable root-level API for external users.
//
// Instead of importing internal subpackages, consumers can just:
//
//	import "github.com/loykin/streamfwd"
//
// and then use streamfwd.New to forward any io.Reader, or streamfwd.RunCommand
// to forward the output streams of a child process.
package streamfwd

import (
	"context"

	"github.com/loykin/streamfwd/internal/forwarder"
	"github.com/loykin/streamfwd/internal/metrics"
	"github.com/loykin/streamfwd/internal/process"
	"github.com/prometheus/client_golang/prometheus"
)

// Forwarder re-exports forwarder.Forwarder for root-level usage.
type Forwarder = forwarder.Forwarder

// Config re-exports forwarder.Config. This is a type alias, so it's fully
// compatible with the underlying type.
type Config = forwarder.Config

type (
	Policy       = forwarder.Policy
	ChunkFunc    = forwarder.ChunkFunc
	LineFunc     = forwarder.LineFunc
	ReadError    = forwarder.ReadError
	Stats        = forwarder.Stats
	ProcessSinks = process.Sinks
)

// Flushing policies re-exported for convenient configuration.
const (
	PolicyAuto         = forwarder.PolicyAuto
	PolicyChunked      = forwarder.PolicyChunked
	PolicyLineBuffered = forwarder.PolicyLineBuffered
)

// ErrNoLineSink re-exports forwarder.ErrNoLineSink.
var ErrNoLineSink = forwarder.ErrNoLineSink

// DefaultBufferSize is the block size used when Config.BufferSize is zero.
const DefaultBufferSize = forwarder.DefaultBufferSize

// New constructs a Forwarder using the provided configuration.
func New(cfg Config) (*Forwarder, error) { return forwarder.New(cfg) }

// NewWithBufferSize constructs a Forwarder with default settings and the given block size.
func NewWithBufferSize(bufferSize int) (*Forwarder, error) {
	return forwarder.NewWithBufferSize(bufferSize)
}

// WriteChunkTo, WriteLineTo and LogLinesTo re-export the ready-made sinks.
var (
	WriteChunkTo = forwarder.WriteChunkTo
	WriteLineTo  = forwarder.WriteLineTo
	LogLinesTo   = forwarder.LogLinesTo
)

// LineAssembler re-exports forwarder.LineAssembler.
type LineAssembler = forwarder.LineAssembler

func NewLineAssembler(next LineFunc) *LineAssembler { return forwarder.NewLineAssembler(next) }

// ProcessConfig re-exports process.Config.
type ProcessConfig = process.Config

// Result re-exports process.Result.
type Result = process.Result

// RunCommand runs name with args and forwards its stdout and stderr according to cfg.
// It is a thin wrapper around process.Run.
func RunCommand(ctx context.Context, cfg ProcessConfig, name string, args ...string) (*Result, error) {
	return process.Run(ctx, cfg, name, args...)
}

// StartMetrics registers streamfwd metrics on the default Prometheus registry and starts an HTTP server.
// It returns a stop function to gracefully shut down the metrics server.
func StartMetrics(addr string) (func() error, error) {
	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return nil, err
	}
	srv, err := metrics.Start(addr)
	if err != nil {
		return nil, err
	}
	return srv.Stop, nil
}
