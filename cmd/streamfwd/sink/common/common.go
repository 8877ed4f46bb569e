package common

// Record is one forwarded line of child output.
type Record struct {
	Stream string // "stdout" or "stderr"
	Text   string
}

// Sink specifies the minimal interface for a line-forwarding backend.
type Sink interface {
	Enqueue(rec Record)
	Stop() error
}
