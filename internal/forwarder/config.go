package forwarder

import (
	"errors"
	"fmt"
	"runtime"
)

// DefaultBufferSize is the block size used when none is configured.
const DefaultBufferSize = 4096

// Policy selects when pending text is flushed to sinks.
type Policy int

const (
	// PolicyAuto is chunked when a chunk sink is registered and line-buffered otherwise.
	PolicyAuto Policy = iota
	// PolicyChunked flushes lines on terminators and raw chunks whenever the
	// pending buffer reaches the buffer size.
	PolicyChunked
	// PolicyLineBuffered flushes only on terminators or end of input.
	PolicyLineBuffered
)

func (p Policy) String() string {
	switch p {
	case PolicyAuto:
		return "auto"
	case PolicyChunked:
		return "chunked"
	case PolicyLineBuffered:
		return "line-buffered"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// ParsePolicy maps a configuration string to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "auto":
		return PolicyAuto, nil
	case "chunked", "unbuffered":
		return PolicyChunked, nil
	case "line-buffered", "line":
		return PolicyLineBuffered, nil
	default:
		return PolicyAuto, fmt.Errorf("unknown forwarding policy: %q", s)
	}
}

// PlatformNewline is the host's canonical line terminator.
func PlatformNewline() string {
	if runtime.GOOS == "windows" {
		return "\r\n"
	}
	return "\n"
}

type Config struct {
	// Name labels log records and metrics, e.g. "stdout".
	Name string
	// BufferSize bounds each block read and, under the chunked policy,
	// the pending size that triggers a raw chunk flush.
	BufferSize int
	Policy     Policy
	// Newline replaces every terminator in captured output. Empty means PlatformNewline.
	Newline string
}

func (c *Config) Default() {
	c.BufferSize = DefaultBufferSize
	c.Policy = PolicyAuto
	c.Newline = PlatformNewline()
}

func (c *Config) Validate() error {
	if c.BufferSize < 1 {
		return errors.New("buffer size must be >= 1")
	}
	switch c.Policy {
	case PolicyAuto, PolicyChunked, PolicyLineBuffered:
	default:
		return fmt.Errorf("invalid policy: %s", c.Policy)
	}
	return nil
}
