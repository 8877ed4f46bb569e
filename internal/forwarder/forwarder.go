package forwarder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"unicode/utf8"

	"github.com/loykin/streamfwd/internal/metrics"
)

// ChunkFunc receives raw text with no implied line terminator.
type ChunkFunc func(chunk string) error

// LineFunc receives one complete line with its terminator stripped.
type LineFunc func(line string) error

// Stats counts what a Forwarder has delivered so far.
type Stats struct {
	Lines  int
	Chunks int
	Bytes  int64
}

// Forwarder relays a character stream to line and chunk sinks and can
// capture the whole stream with normalized terminators.
//
// A Forwarder serves one read operation. It is not safe for concurrent use;
// run one instance per stream.
type Forwarder struct {
	cfg    Config
	policy Policy

	pending   []byte // current line, not yet flushed
	pendingCR bool   // a '\r' ended the last block and awaits the next byte
	exhausted bool

	chunkSinks []ChunkFunc
	lineSinks  []LineFunc
	capture    *bytes.Buffer

	stats Stats
}

// New creates a Forwarder; a zero BufferSize or empty Newline takes the default.
func New(cfg Config) (*Forwarder, error) {
	if cfg.BufferSize == 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	if cfg.Newline == "" {
		cfg.Newline = PlatformNewline()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Forwarder{cfg: cfg}, nil
}

// NewWithBufferSize creates a Forwarder with default settings and the given block size.
func NewWithBufferSize(bufferSize int) (*Forwarder, error) {
	var cfg Config
	cfg.Default()
	cfg.BufferSize = bufferSize
	return New(cfg)
}

// ForwardTo registers a chunk sink, a line sink, both or neither.
// Sinks accumulate across calls and are invoked in registration order.
func (f *Forwarder) ForwardTo(chunk ChunkFunc, line LineFunc) {
	if chunk != nil {
		f.chunkSinks = append(f.chunkSinks, chunk)
	}
	if line != nil {
		f.lineSinks = append(f.lineSinks, line)
	}
}

// Capture turns on capture of the stream. Text read before the call is not captured.
func (f *Forwarder) Capture() {
	if f.capture == nil {
		f.capture = &bytes.Buffer{}
	}
}

func (f *Forwarder) Capturing() bool { return f.capture != nil }

// CapturedOutput returns everything captured so far, or "" when capture is off.
func (f *Forwarder) CapturedOutput() string {
	if f.capture == nil {
		return ""
	}
	return f.capture.String()
}

// Policy reports the flushing policy in effect for the current registration.
// Chunked flushing needs a chunk sink, so without one it falls back to
// line-buffered.
func (f *Forwarder) Policy() Policy {
	if f.cfg.Policy == PolicyLineBuffered {
		return PolicyLineBuffered
	}
	if len(f.chunkSinks) > 0 {
		return PolicyChunked
	}
	return PolicyLineBuffered
}

// Stats returns the delivery counters accumulated so far.
func (f *Forwarder) Stats() Stats { return f.stats }

// Exhausted reports whether the source has signalled end of input.
func (f *Forwarder) Exhausted() bool { return f.exhausted }

// Read is ReadContext without cancellation.
func (f *Forwarder) Read(r io.Reader) error {
	return f.ReadContext(context.Background(), r)
}

// ReadContext drives r to end of input. When ctx is cancelled the loop stops
// after the block in progress, flushes the remainder as end of input would,
// and returns nil. A read failure after cancellation is treated the same way,
// so closing r is a valid way to unblock a pending read.
func (f *Forwarder) ReadContext(ctx context.Context, r io.Reader) error {
	f.policy = f.Policy()
	if f.policy == PolicyLineBuffered && len(f.chunkSinks) > 0 && len(f.lineSinks) == 0 {
		return ErrNoLineSink
	}
	buf := make([]byte, f.cfg.BufferSize)

	metrics.IncActiveStreams()
	defer metrics.DecActiveStreams()

	for {
		if ctx.Err() != nil {
			slog.Debug("stream forwarding cancelled", "stream", f.cfg.Name, "error", ctx.Err())
			return f.finish()
		}
		n, err := r.Read(buf)
		if n > 0 {
			f.stats.Bytes += int64(n)
			metrics.AddBytes(f.cfg.Name, n)
			if cerr := f.consume(buf[:n]); cerr != nil {
				return cerr
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return f.finish()
			}
			if ctx.Err() != nil {
				slog.Debug("stream forwarding cancelled", "stream", f.cfg.Name, "error", ctx.Err())
				return f.finish()
			}
			metrics.IncReadErrors(f.cfg.Name)
			return &ReadError{Stream: f.cfg.Name, Err: err}
		}
	}
}

func (f *Forwarder) consume(block []byte) error {
	for _, b := range block {
		if f.pendingCR {
			f.pendingCR = false
			if b == '\n' {
				if err := f.terminate(); err != nil {
					return err
				}
				continue
			}
			f.appendContent('\r')
		}
		switch b {
		case '\n':
			if err := f.terminate(); err != nil {
				return err
			}
		case '\r':
			f.pendingCR = true
		default:
			f.appendContent(b)
		}
	}
	if f.policy == PolicyChunked && len(f.pending) >= f.cfg.BufferSize {
		return f.flushChunk(false)
	}
	return nil
}

func (f *Forwarder) appendContent(b byte) {
	f.pending = append(f.pending, b)
	if f.capture != nil {
		f.capture.WriteByte(b)
	}
}

func (f *Forwarder) terminate() error {
	if f.capture != nil {
		f.capture.WriteString(f.cfg.Newline)
	}
	return f.flushLine()
}

func (f *Forwarder) finish() error {
	if f.pendingCR {
		f.pendingCR = false
		f.appendContent('\r')
	}
	f.exhausted = true
	slog.Debug("stream forwarding finished", "stream", f.cfg.Name,
		"lines", f.stats.Lines, "chunks", f.stats.Chunks, "bytes", f.stats.Bytes)
	if len(f.pending) == 0 {
		return nil
	}
	if f.policy == PolicyChunked {
		return f.flushChunk(true)
	}
	return f.flushLine()
}

func (f *Forwarder) flushLine() error {
	line := string(f.pending)
	f.pending = f.pending[:0]
	f.stats.Lines++
	metrics.IncLines(f.cfg.Name)
	for _, sink := range f.lineSinks {
		if err := sink(line); err != nil {
			return fmt.Errorf("line sink: %w", err)
		}
	}
	return nil
}

// flushChunk delivers the pending text as a raw chunk. Unless final, an
// incomplete UTF-8 sequence at the tail stays pending for the next block.
func (f *Forwarder) flushChunk(final bool) error {
	n := len(f.pending)
	if !final {
		n -= incompleteRuneSuffix(f.pending)
	}
	if n == 0 {
		return nil
	}
	chunk := string(f.pending[:n])
	f.pending = append(f.pending[:0], f.pending[n:]...)
	f.stats.Chunks++
	metrics.IncChunks(f.cfg.Name)
	for _, sink := range f.chunkSinks {
		if err := sink(chunk); err != nil {
			return fmt.Errorf("chunk sink: %w", err)
		}
	}
	return nil
}

// incompleteRuneSuffix returns the length of a truncated UTF-8 sequence at the end of b.
func incompleteRuneSuffix(b []byte) int {
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if utf8.RuneStart(b[i]) {
			if utf8.FullRune(b[i:]) {
				return 0
			}
			return len(b) - i
		}
	}
	return 0
}
