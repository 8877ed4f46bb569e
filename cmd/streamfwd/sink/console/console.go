package console

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/loykin/streamfwd/cmd/streamfwd/sink/common"
	"gopkg.in/natefinch/lumberjack.v2"
)

// writerSink batches records and writes them, prefixed with their stream, to w.
type writerSink struct {
	batcher *common.Batcher
	w       io.Writer
	closer  io.Closer
}

// New returns a console sink writing to stdout or stderr depending on stream.
// stream: "stdout" (default) or "stderr".
func New(stream string, batchSize int, batchInterval time.Duration, includes, excludes []string) common.Sink {
	var w io.Writer = os.Stdout
	if stream == "stderr" {
		w = os.Stderr
	}
	return newWriterSink(w, nil, common.NewBatcher(batchSize, batchInterval, includes, excludes, "console"))
}

// NewFile creates a rotating file sink and starts it.
func NewFile(cfg FileConfig, batchSize int, batchInterval time.Duration, includes, excludes []string) (common.Sink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	lj := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
	return newWriterSink(lj, lj, common.NewBatcher(batchSize, batchInterval, includes, excludes, "file")), nil
}

func newWriterSink(w io.Writer, closer io.Closer, b *common.Batcher) *writerSink {
	s := &writerSink{batcher: b, w: w, closer: closer}
	b.Start(s.flush)
	return s
}

func (s *writerSink) flush(recs []common.Record) error {
	for _, rec := range recs {
		if _, err := fmt.Fprintln(s.w, FormatRecord(rec)); err != nil {
			return err
		}
	}
	return nil
}

func (s *writerSink) Enqueue(rec common.Record) { s.batcher.Enqueue(rec) }

func (s *writerSink) Stop() error {
	s.batcher.Stop()
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

// FormatRecord renders a record as "[stream] text".
func FormatRecord(rec common.Record) string {
	if rec.Stream == "" {
		return rec.Text
	}
	return "[" + rec.Stream + "] " + rec.Text
}
