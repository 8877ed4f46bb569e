package forwarder

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type forwardOptions int

const (
	optNone      forwardOptions = 0x0
	optCapture   forwardOptions = 0x1
	optWrite     forwardOptions = 0x2
	optWriteLine forwardOptions = 0x4
)

// forward runs the input through every combination of capture and forwarding
// and checks the writes (lines are recorded with a trailing "\n").
func forward(t *testing.T, bufferSize int, unbuffered bool, input string, expectedWrites ...string) {
	t.Helper()
	expectedCaptured := strings.ReplaceAll(strings.ReplaceAll(input, "\r", ""), "\n", PlatformNewline())
	if expectedWrites == nil {
		expectedWrites = []string{}
	}

	forwardWith(t, bufferSize, optNone, input, "", []string{})
	forwardWith(t, bufferSize, optCapture, input, expectedCaptured, []string{})

	writeOptions := optWriteLine
	if unbuffered {
		writeOptions |= optWrite
	}
	forwardWith(t, bufferSize, writeOptions, input, "", expectedWrites)
	forwardWith(t, bufferSize, writeOptions|optCapture, input, expectedCaptured, expectedWrites)
}

func forwardWith(t *testing.T, bufferSize int, options forwardOptions, input, expectedCaptured string, expectedWrites []string) {
	t.Helper()
	f, err := NewWithBufferSize(bufferSize)
	require.NoError(t, err)

	writes := []string{}
	if options&optWriteLine != 0 {
		var write ChunkFunc
		if options&optWrite != 0 {
			write = func(s string) error {
				writes = append(writes, s)
				return nil
			}
		}
		f.ForwardTo(write, func(s string) error {
			writes = append(writes, s+"\n")
			return nil
		})
	}
	if options&optCapture != 0 {
		f.Capture()
	}

	require.NoError(t, f.Read(strings.NewReader(input)))
	assert.Equal(t, expectedWrites, writes, "size=%d options=%d input=%q", bufferSize, options, input)
	assert.Equal(t, expectedCaptured, f.CapturedOutput(), "size=%d options=%d input=%q", bufferSize, options, input)
	assert.True(t, f.Exhausted())
}

func TestForwarder_Unbuffered(t *testing.T) {
	forward(t, 4, true, "")
	forward(t, 4, true, "123", "123")
	forward(t, 4, true, "1234", "1234")
	forward(t, 3, true, "123456789", "123", "456", "789")
	forward(t, 4, true, "\r\n", "\n")
	forward(t, 4, true, "\r\n34", "\n", "34")
	forward(t, 4, true, "1\r\n4", "1\n", "4")
	forward(t, 4, true, "12\r\n", "12\n")
	forward(t, 4, true, "123\r\n", "123\n")
	forward(t, 4, true, "1234\r\n", "1234", "\n")
	forward(t, 3, true, "\r\n3456\r\n9", "\n", "3456", "\n", "9")
	forward(t, 4, true, "\n", "\n")
	forward(t, 4, true, "\n234", "\n", "234")
	forward(t, 4, true, "1\n34", "1\n", "34")
	forward(t, 4, true, "12\n4", "12\n", "4")
	forward(t, 4, true, "123\n", "123\n")
	forward(t, 4, true, "1234\n", "1234", "\n")
	forward(t, 3, true, "\n23456\n89", "\n", "23456", "\n", "89")
}

func TestForwarder_LineBuffered(t *testing.T) {
	forward(t, 4, false, "")
	forward(t, 4, false, "123", "123\n")
	forward(t, 4, false, "1234", "1234\n")
	forward(t, 3, false, "123456789", "123456789\n")
	forward(t, 4, false, "\r\n", "\n")
	forward(t, 4, false, "\r\n34", "\n", "34\n")
	forward(t, 4, false, "1\r\n4", "1\n", "4\n")
	forward(t, 4, false, "12\r\n", "12\n")
	forward(t, 4, false, "123\r\n", "123\n")
	forward(t, 4, false, "1234\r\n", "1234\n")
	forward(t, 3, false, "\r\n3456\r\n9", "\n", "3456\n", "9\n")
	forward(t, 4, false, "\n", "\n")
	forward(t, 4, false, "\n234", "\n", "234\n")
	forward(t, 4, false, "1\n34", "1\n", "34\n")
	forward(t, 4, false, "12\n4", "12\n", "4\n")
	forward(t, 4, false, "123\n", "123\n")
	forward(t, 4, false, "1234\n", "1234\n")
	forward(t, 3, false, "\n23456\n89", "\n", "23456\n", "89\n")
}

type recorder struct {
	events []string
}

func (r *recorder) chunk(s string) error {
	r.events = append(r.events, "chunk:"+s)
	return nil
}

func (r *recorder) line(s string) error {
	r.events = append(r.events, "line:"+s)
	return nil
}

func newTestForwarder(t *testing.T, size int, policy Policy) *Forwarder {
	t.Helper()
	f, err := New(Config{Name: "test", BufferSize: size, Policy: policy, Newline: "\n"})
	require.NoError(t, err)
	return f
}

func TestForwarder_CRLFSplitAcrossBlocks(t *testing.T) {
	// "\r" ends the first block of 3 and "\n" starts the second
	rec := &recorder{}
	f := newTestForwarder(t, 3, PolicyAuto)
	f.ForwardTo(rec.chunk, rec.line)
	f.Capture()

	require.NoError(t, f.Read(strings.NewReader("12\r\n56")))
	assert.Equal(t, []string{"line:12", "chunk:56"}, rec.events)
	assert.Equal(t, "12\n56", f.CapturedOutput())
}

func TestForwarder_CRHeldBackFromChunk(t *testing.T) {
	rec := &recorder{}
	f := newTestForwarder(t, 4, PolicyChunked)
	f.ForwardTo(rec.chunk, rec.line)

	require.NoError(t, f.Read(strings.NewReader("abcd\r\nef")))
	assert.Equal(t, []string{"chunk:abcd", "line:", "chunk:ef"}, rec.events)
}

func TestForwarder_LoneCarriageReturnIsContent(t *testing.T) {
	rec := &recorder{}
	f := newTestForwarder(t, 2, PolicyLineBuffered)
	f.ForwardTo(nil, rec.line)
	f.Capture()

	require.NoError(t, f.Read(strings.NewReader("a\rb\r\nc\r")))
	assert.Equal(t, []string{"line:a\rb", "line:c\r"}, rec.events)
	assert.Equal(t, "a\rb\nc\r", f.CapturedOutput())
}

func TestForwarder_MixedTerminators(t *testing.T) {
	rec := &recorder{}
	f, err := New(Config{BufferSize: 16, Newline: "\r\n"})
	require.NoError(t, err)
	f.ForwardTo(nil, rec.line)
	f.Capture()

	require.NoError(t, f.Read(strings.NewReader("one\ntwo\r\nthree\n")))
	assert.Equal(t, []string{"line:one", "line:two", "line:three"}, rec.events)
	assert.Equal(t, "one\r\ntwo\r\nthree\r\n", f.CapturedOutput())
}

func TestForwarder_ChunksDoNotSplitRunes(t *testing.T) {
	var chunks []string
	f := newTestForwarder(t, 4, PolicyChunked)
	f.ForwardTo(func(s string) error {
		chunks = append(chunks, s)
		return nil
	}, nil)

	// "ab€" is 5 bytes: the first block ends inside the euro sign.
	require.NoError(t, f.Read(strings.NewReader("ab€cd")))
	assert.Equal(t, []string{"ab", "€cd"}, chunks)
}

func TestForwarder_SinksInRegistrationOrder(t *testing.T) {
	var order []string
	f := newTestForwarder(t, 8, PolicyAuto)
	f.ForwardTo(nil, func(s string) error {
		order = append(order, "first:"+s)
		return nil
	})
	f.ForwardTo(nil, func(s string) error {
		order = append(order, "second:"+s)
		return nil
	})

	require.NoError(t, f.Read(strings.NewReader("x\ny\n")))
	assert.Equal(t, []string{"first:x", "second:x", "first:y", "second:y"}, order)
	assert.Equal(t, PolicyLineBuffered, f.Policy())
}

func TestForwarder_PolicySelection(t *testing.T) {
	f := newTestForwarder(t, 4, PolicyAuto)
	assert.Equal(t, PolicyLineBuffered, f.Policy())
	f.ForwardTo(func(string) error { return nil }, nil)
	assert.Equal(t, PolicyChunked, f.Policy())

	explicit := newTestForwarder(t, 4, PolicyLineBuffered)
	explicit.ForwardTo(func(string) error { return nil }, nil)
	assert.Equal(t, PolicyLineBuffered, explicit.Policy())

	chunked := newTestForwarder(t, 4, PolicyChunked)
	assert.Equal(t, PolicyLineBuffered, chunked.Policy())
	chunked.ForwardTo(func(string) error { return nil }, nil)
	assert.Equal(t, PolicyChunked, chunked.Policy())
}

func TestForwarder_ExplicitPolicyWithSinkShapes(t *testing.T) {
	tests := []struct {
		name      string
		policy    Policy
		withChunk bool
		withLine  bool
		wantErr   error
		want      []string
	}{
		{"chunked, line sink only", PolicyChunked, false, true, nil,
			[]string{"line:abcdef", "line:xyz"}},
		{"chunked, chunk sink only", PolicyChunked, true, false, nil,
			[]string{"chunk:abcd", "chunk:xyz"}},
		{"chunked, both sinks", PolicyChunked, true, true, nil,
			[]string{"chunk:abcd", "line:ef", "chunk:xyz"}},
		{"line-buffered, line sink only", PolicyLineBuffered, false, true, nil,
			[]string{"line:abcdef", "line:xyz"}},
		{"line-buffered, both sinks", PolicyLineBuffered, true, true, nil,
			[]string{"line:abcdef", "line:xyz"}},
		{"line-buffered, chunk sink only", PolicyLineBuffered, true, false, ErrNoLineSink, nil},
		{"auto, line sink only", PolicyAuto, false, true, nil,
			[]string{"line:abcdef", "line:xyz"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			f := newTestForwarder(t, 4, tt.policy)
			var chunk ChunkFunc
			var line LineFunc
			if tt.withChunk {
				chunk = rec.chunk
			}
			if tt.withLine {
				line = rec.line
			}
			f.ForwardTo(chunk, line)
			f.Capture()

			err := f.Read(strings.NewReader("abcdef\nxyz"))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, rec.events)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, rec.events)
			assert.Equal(t, "abcdef\nxyz", f.CapturedOutput())
		})
	}
}

func TestForwarder_NoSinksOnlyCapture(t *testing.T) {
	f := newTestForwarder(t, 1, PolicyAuto)
	f.Capture()
	require.NoError(t, f.Read(strings.NewReader("a\r\nb")))
	assert.Equal(t, "a\nb", f.CapturedOutput())
	assert.Equal(t, Stats{Lines: 2, Chunks: 0, Bytes: 4}, f.Stats())
}

func TestForwarder_CaptureDisabled(t *testing.T) {
	f := newTestForwarder(t, 4, PolicyAuto)
	require.NoError(t, f.Read(strings.NewReader("data\n")))
	assert.False(t, f.Capturing())
	assert.Equal(t, "", f.CapturedOutput())
}

func TestForwarder_ReadError(t *testing.T) {
	errBoom := errors.New("boom")
	rec := &recorder{}
	f := newTestForwarder(t, 8, PolicyAuto)
	f.ForwardTo(nil, rec.line)
	f.Capture()

	src := io.MultiReader(strings.NewReader("ab\ncd"), iotest.ErrReader(errBoom))
	err := f.Read(src)
	require.Error(t, err)
	assert.True(t, IsReadError(err))
	assert.ErrorIs(t, err, errBoom)

	var re *ReadError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "test", re.Stream)

	// flushed and captured content up to the failure remains
	assert.Equal(t, []string{"line:ab"}, rec.events)
	assert.Equal(t, "ab\ncd", f.CapturedOutput())
	assert.False(t, f.Exhausted())
}

func TestForwarder_SinkErrorAborts(t *testing.T) {
	errSink := errors.New("sink failed")
	var seen []string
	f := newTestForwarder(t, 16, PolicyAuto)
	f.ForwardTo(nil, func(s string) error {
		seen = append(seen, s)
		if s == "two" {
			return errSink
		}
		return nil
	})

	err := f.Read(strings.NewReader("one\ntwo\nthree\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, errSink)
	assert.False(t, IsReadError(err))
	assert.Equal(t, []string{"one", "two"}, seen)
}

func TestForwarder_ChunkSinkErrorAborts(t *testing.T) {
	errSink := errors.New("chunk sink failed")
	f := newTestForwarder(t, 2, PolicyAuto)
	f.ForwardTo(func(string) error { return errSink }, nil)

	err := f.Read(strings.NewReader("abcdef"))
	assert.ErrorIs(t, err, errSink)
}

type cancelAfterRead struct {
	r      io.Reader
	cancel context.CancelFunc
}

func (c *cancelAfterRead) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.cancel()
	return n, err
}

func TestForwarder_ReadContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := &recorder{}
	f := newTestForwarder(t, 4, PolicyAuto)
	f.ForwardTo(nil, rec.line)
	f.Capture()

	src := &cancelAfterRead{r: strings.NewReader("ab\ncdefgh\n"), cancel: cancel}
	require.NoError(t, f.ReadContext(ctx, src))
	assert.Equal(t, []string{"line:ab", "line:c"}, rec.events)
	assert.Equal(t, "ab\nc", f.CapturedOutput())
}

// closedOnCancel returns its data, then fails the next read the way a pipe
// closed by another goroutine does, cancelling ctx first.
type closedOnCancel struct {
	data   string
	cancel context.CancelFunc
}

func (c *closedOnCancel) Read(p []byte) (int, error) {
	if c.data != "" {
		n := copy(p, c.data)
		c.data = c.data[n:]
		return n, nil
	}
	c.cancel()
	return 0, os.ErrClosed
}

func TestForwarder_ReadFailureAfterCancelFlushes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := &recorder{}
	f := newTestForwarder(t, 16, PolicyAuto)
	f.ForwardTo(nil, rec.line)

	err := f.ReadContext(ctx, &closedOnCancel{data: "done\npartial", cancel: cancel})
	require.NoError(t, err)
	assert.Equal(t, []string{"line:done", "line:partial"}, rec.events)
	assert.True(t, f.Exhausted())
}

func TestForwarder_ReadContextAlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := &recorder{}
	f := newTestForwarder(t, 4, PolicyAuto)
	f.ForwardTo(rec.chunk, rec.line)
	require.NoError(t, f.ReadContext(ctx, strings.NewReader("never read")))
	assert.Empty(t, rec.events)
}

func TestForwarder_OneByteReads(t *testing.T) {
	rec := &recorder{}
	f := newTestForwarder(t, 8, PolicyLineBuffered)
	f.ForwardTo(nil, rec.line)

	require.NoError(t, f.Read(iotest.OneByteReader(strings.NewReader("ab\r\ncd\r\n"))))
	assert.Equal(t, []string{"line:ab", "line:cd"}, rec.events)
}

func TestConfig_Validate(t *testing.T) {
	var cfg Config
	cfg.Default()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultBufferSize, cfg.BufferSize)

	cfg.BufferSize = 0
	assert.Error(t, cfg.Validate())

	cfg.BufferSize = 1
	cfg.Policy = Policy(42)
	assert.Error(t, cfg.Validate())

	_, err := NewWithBufferSize(-1)
	assert.Error(t, err)
}

func TestParsePolicy(t *testing.T) {
	cases := map[string]Policy{
		"":              PolicyAuto,
		"auto":          PolicyAuto,
		"chunked":       PolicyChunked,
		"unbuffered":    PolicyChunked,
		"line-buffered": PolicyLineBuffered,
		"line":          PolicyLineBuffered,
	}
	for in, want := range cases {
		got, err := ParsePolicy(in)
		assert.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParsePolicy("sometimes")
	assert.Error(t, err)
	assert.Equal(t, "line-buffered", PolicyLineBuffered.String())
}
