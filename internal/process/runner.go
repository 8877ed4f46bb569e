// Package process runs a child process and forwards its stdout and stderr
// through two independent forwarders.
package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"time"

	"github.com/loykin/streamfwd/internal/forwarder"
	"github.com/loykin/streamfwd/internal/metrics"
	"golang.org/x/sync/errgroup"
)

// Run starts name with args, forwards both output streams until they close
// and waits for the child to exit. A non-zero exit status is reported in
// Result.ExitCode, not as an error. When forwarding fails the child is killed
// and the forwarding error is returned together with the partial Result.
func Run(ctx context.Context, cfg Config, name string, args ...string) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	stdoutFwd, err := newForwarder(cfg, "stdout", cfg.Stdout)
	if err != nil {
		return nil, err
	}
	stderrFwd, err := newForwarder(cfg, "stderr", cfg.Stderr)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	cmd := exec.CommandContext(runCtx, name, args...)
	cmd.Dir = cfg.Dir
	if len(cfg.Env) > 0 {
		cmd.Env = cfg.Env
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}

	res := &Result{Command: name, Args: args, StartedAt: time.Now()}
	if err := cmd.Start(); err != nil {
		metrics.IncRuns("error")
		return nil, fmt.Errorf("failed to start %s: %w", name, err)
	}
	slog.Debug("process started", "command", name, "pid", cmd.Process.Pid)

	// A grandchild can hold the pipes open after the child is killed, so
	// cancellation closes our ends to unblock the forwarders.
	stopClose := context.AfterFunc(runCtx, func() {
		_ = stdout.Close()
		_ = stderr.Close()
	})
	defer stopClose()

	var g errgroup.Group
	g.Go(func() error { return drive(runCtx, stdoutFwd, stdout, cancel) })
	g.Go(func() error { return drive(runCtx, stderrFwd, stderr, cancel) })
	fwdErr := g.Wait()
	waitErr := cmd.Wait()

	res.Duration = time.Since(res.StartedAt)
	res.StdOut = stdoutFwd.CapturedOutput()
	res.StdErr = stderrFwd.CapturedOutput()

	if fwdErr != nil {
		metrics.IncRuns("error")
		res.ExitCode = exitCode(waitErr)
		return res, fwdErr
	}
	if ctx.Err() != nil {
		metrics.IncRuns("error")
		res.ExitCode = exitCode(waitErr)
		return res, fmt.Errorf("process %s: %w", name, ctx.Err())
	}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			metrics.IncRuns("error")
			return res, fmt.Errorf("failed to wait for %s: %w", name, waitErr)
		}
		res.ExitCode = exitErr.ExitCode()
	}

	if res.Success() {
		metrics.IncRuns("success")
	} else {
		metrics.IncRuns("failure")
	}
	slog.Debug("process finished", "command", name, "exitCode", res.ExitCode, "duration", res.Duration)
	return res, nil
}

func newForwarder(cfg Config, stream string, sinks []Sinks) (*forwarder.Forwarder, error) {
	f, err := forwarder.New(forwarder.Config{
		Name:       stream,
		BufferSize: cfg.BufferSize,
		Policy:     cfg.Policy,
	})
	if err != nil {
		return nil, err
	}
	for _, s := range sinks {
		f.ForwardTo(s.Chunk, s.Line)
	}
	if cfg.Capture {
		f.Capture()
	}
	return f, nil
}

// drive reads r to the end or until ctx is done. A failure kills the child
// so the sibling stream stops as well.
func drive(ctx context.Context, f *forwarder.Forwarder, r io.Reader, kill context.CancelFunc) error {
	if err := f.ReadContext(ctx, r); err != nil {
		kill()
		return err
	}
	return nil
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
