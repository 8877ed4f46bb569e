package common

import (
	"log/slog"
	"sync"
	"time"

	cmdmetrics "github.com/loykin/streamfwd/cmd/streamfwd/metrics"
)

// Batcher provides buffering, timing, and stop coordination for sinks.
type Batcher struct {
	Ch            chan Record
	BatchSize     int
	BatchInterval time.Duration
	Name          string
	filter        *filter
	Wg            sync.WaitGroup
	StopOnce      sync.Once
	StopCh        chan struct{}
}

func NewBatcher(size int, interval time.Duration, includes, excludes []string, name string) *Batcher {
	return &Batcher{
		Ch:            make(chan Record, size*2),
		BatchSize:     size,
		BatchInterval: interval,
		Name:          name,
		filter:        newFilter(includes, excludes),
		StopCh:        make(chan struct{}),
	}
}

// Enqueue never blocks: a record that does not fit the buffer is dropped so
// a slow backend cannot stall draining of the child's output.
func (b *Batcher) Enqueue(rec Record) {
	if !b.filter.allow(rec) {
		cmdmetrics.SinkDropped(b.Name, rec.Stream, "filtered")
		return
	}
	select {
	case b.Ch <- rec:
		cmdmetrics.SinkEnqueued(b.Name, rec.Stream)
	default:
		cmdmetrics.SinkDropped(b.Name, rec.Stream, "buffer_full")
		slog.Warn("sink buffer full; dropping line", "sink", b.Name, "stream", rec.Stream)
	}
}

// Start runs the batching loop in a goroutine, handing full batches, ticker
// batches and the final batch on Stop to flush.
func (b *Batcher) Start(flush func([]Record) error) {
	b.Wg.Add(1)
	go func() {
		defer b.Wg.Done()
		buf := make([]Record, 0, b.BatchSize)
		ticker := time.NewTicker(b.BatchInterval)
		defer ticker.Stop()
		doFlush := func() {
			if len(buf) == 0 {
				return
			}
			start := time.Now()
			err := flush(buf)
			if err != nil {
				slog.Error("sink flush failed", "sink", b.Name, "records", len(buf), "error", err)
			}
			cmdmetrics.SinkFlushObserve(b.Name, len(buf), time.Since(start), err == nil)
			buf = buf[:0]
		}
		for {
			select {
			case <-b.StopCh:
				// drain whatever is still queued
				for {
					select {
					case rec := <-b.Ch:
						buf = append(buf, rec)
						if len(buf) >= b.BatchSize {
							doFlush()
						}
					default:
						doFlush()
						return
					}
				}
			case <-ticker.C:
				doFlush()
			case rec := <-b.Ch:
				buf = append(buf, rec)
				if len(buf) >= b.BatchSize {
					doFlush()
				}
			}
		}
	}()
}

// Stop signals the loop to flush and waits for it to finish.
func (b *Batcher) Stop() {
	b.StopOnce.Do(func() { close(b.StopCh) })
	b.Wg.Wait()
}
