package process

import (
	"errors"

	"github.com/loykin/streamfwd/internal/forwarder"
)

// Sinks are the callbacks one output stream is forwarded to.
type Sinks struct {
	Chunk forwarder.ChunkFunc
	Line  forwarder.LineFunc
}

type Config struct {
	// BufferSize is the forwarder block size for both streams.
	BufferSize int
	Policy     forwarder.Policy
	// Capture keeps the full normalized stdout and stderr in the Result.
	Capture bool
	// Stdout and Stderr sinks are registered in order on each stream's forwarder.
	Stdout []Sinks
	Stderr []Sinks
	// Dir and Env are passed to the child; empty values inherit from this process.
	Dir string
	Env []string
}

func (c *Config) Default() {
	c.BufferSize = forwarder.DefaultBufferSize
	c.Policy = forwarder.PolicyAuto
	c.Capture = true
}

func (c *Config) Validate() error {
	if c.BufferSize < 1 {
		return errors.New("buffer size must be >= 1")
	}
	return nil
}
