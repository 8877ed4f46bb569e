package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	cmdmetrics "github.com/loykin/streamfwd/cmd/streamfwd/metrics"
	"github.com/loykin/streamfwd/cmd/streamfwd/sink/common"
	"github.com/loykin/streamfwd/internal/forwarder"
	"github.com/loykin/streamfwd/internal/metrics"
	"github.com/loykin/streamfwd/internal/process"
	"github.com/loykin/streamfwd/internal/store"

	"github.com/prometheus/client_golang/prometheus"
)

// exitError carries the child's exit status up to main.
type exitError struct {
	code int
}

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

// runCommand runs args[0] with the remaining args, echoing its output to
// stdout/stderr and forwarding lines to the configured sink. It returns the
// child's exit code.
func runCommand(ctx context.Context, cfg *Config, stdout, stderr io.Writer, args []string) (int, error) {
	if len(args) == 0 {
		return -1, fmt.Errorf("no command given")
	}

	// Optionally start Prometheus metrics endpoint
	if cfg.Prometheus.Enable {
		// Register our metrics explicitly to the default registry to avoid library init-time side effects
		if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
			return -1, fmt.Errorf("failed to register prometheus metrics: %w", err)
		}
		if err := cmdmetrics.Register(prometheus.DefaultRegisterer); err != nil {
			return -1, fmt.Errorf("failed to register sink metrics: %w", err)
		}
		srv, err := metrics.Start(cfg.Prometheus.Addr)
		if err != nil {
			return -1, fmt.Errorf("failed to start prometheus endpoint: %w", err)
		}
		slog.Info("prometheus metrics endpoint started", "addr", srv.Addr())
		defer func() {
			if err := srv.Stop(); err != nil {
				slog.Warn("failed to stop metrics server", "error", err)
			}
		}()
	}

	var history store.Store
	if cfg.History.Enable {
		s, err := store.NewSQLiteStore(cfg.History.DBPath)
		if err != nil {
			return -1, err
		}
		defer func() { _ = s.Close() }()
		history = s
	}

	sink, err := buildSink(cfg, strings.Join(args, " "))
	if err != nil {
		return -1, fmt.Errorf("failed to build sink: %w", err)
	}

	var pcfg process.Config
	pcfg.Default()
	pcfg.BufferSize = cfg.Forward.BufferSize
	if cfg.Forward.LineBuffered {
		pcfg.Policy = forwarder.PolicyLineBuffered
	}
	pcfg.Capture = cfg.History.Enable || cfg.Forward.ResultFile != ""

	var assemblers []*forwarder.LineAssembler
	streamSinks := func(name string, echo io.Writer) []process.Sinks {
		var sinks []process.Sinks
		if !cfg.Forward.Quiet {
			s := process.Sinks{Line: forwarder.WriteLineTo(echo, "")}
			if !cfg.Forward.LineBuffered {
				s.Chunk = forwarder.WriteChunkTo(echo)
			}
			sinks = append(sinks, s)
		}
		if sink != nil {
			asm := forwarder.NewLineAssembler(func(line string) error {
				sink.Enqueue(common.Record{Stream: name, Text: line})
				return nil
			})
			assemblers = append(assemblers, asm)
			sinks = append(sinks, process.Sinks{Chunk: asm.Chunk, Line: asm.Line})
		}
		return sinks
	}
	pcfg.Stdout = streamSinks("stdout", stdout)
	pcfg.Stderr = streamSinks("stderr", stderr)

	res, runErr := process.Run(ctx, pcfg, args[0], args[1:]...)

	flushAssemblers(assemblers, cfg.Sink.Type)
	if sink != nil {
		if err := sink.Stop(); err != nil {
			slog.Warn("failed to stop sink", "type", cfg.Sink.Type, "error", err)
		}
	}

	if res == nil {
		return -1, runErr
	}
	if history != nil {
		id, err := history.Save(store.Run{
			Command:   res.CommandLine(),
			ExitCode:  res.ExitCode,
			StdOut:    res.StdOut,
			StdErr:    res.StdErr,
			StartedAt: res.StartedAt,
			Duration:  res.Duration,
		})
		if err != nil {
			slog.Error("failed to record run", "error", err)
		} else {
			slog.Debug("run recorded", "id", id)
		}
	}
	if cfg.Forward.ResultFile != "" {
		if err := writeResult(cfg.Forward.ResultFile, res); err != nil {
			return res.ExitCode, err
		}
	}
	return res.ExitCode, runErr
}

// flushAssemblers hands unterminated trailing lines to the sink.
func flushAssemblers(assemblers []*forwarder.LineAssembler, sinkType string) {
	for _, asm := range assemblers {
		if err := asm.Flush(); err != nil {
			slog.Warn("failed to flush trailing line to sink", "type", sinkType, "error", err)
		}
	}
}

func writeResult(path string, res *process.Result) error {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write result file: %w", err)
	}
	return nil
}
