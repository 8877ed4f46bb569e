package forwarder

import "strings"

// LineAssembler joins chunked deliveries back into whole lines for consumers
// that only accept complete records. Register Chunk and Line with a
// chunked Forwarder and call Flush once reading is done.
type LineAssembler struct {
	next    LineFunc
	partial strings.Builder
}

func NewLineAssembler(next LineFunc) *LineAssembler {
	return &LineAssembler{next: next}
}

func (a *LineAssembler) Chunk(chunk string) error {
	a.partial.WriteString(chunk)
	return nil
}

func (a *LineAssembler) Line(line string) error {
	if a.partial.Len() > 0 {
		line = a.partial.String() + line
		a.partial.Reset()
	}
	return a.next(line)
}

// Flush delivers a trailing unterminated line, if any.
func (a *LineAssembler) Flush() error {
	if a.partial.Len() == 0 {
		return nil
	}
	line := a.partial.String()
	a.partial.Reset()
	return a.next(line)
}
