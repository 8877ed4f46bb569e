package forwarder

import (
	"io"
	"log/slog"
)

// WriteChunkTo echoes raw chunks to w unchanged.
func WriteChunkTo(w io.Writer) ChunkFunc {
	return func(chunk string) error {
		_, err := io.WriteString(w, chunk)
		return err
	}
}

// WriteLineTo echoes each line to w followed by newline. An empty newline
// selects the platform terminator.
func WriteLineTo(w io.Writer, newline string) LineFunc {
	if newline == "" {
		newline = PlatformNewline()
	}
	return func(line string) error {
		_, err := io.WriteString(w, line+newline)
		return err
	}
}

// LogLinesTo emits every line as a log record at info level.
func LogLinesTo(logger *slog.Logger, msg, stream string) LineFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(line string) error {
		logger.Info(msg, "stream", stream, "line", line)
		return nil
	}
}
