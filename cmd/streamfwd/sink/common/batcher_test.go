package common

import (
	"sync"
	"testing"
	"time"
)

func drain(ch <-chan Record, max int, timeout time.Duration) []Record {
	out := []Record{}
	deadline := time.After(timeout)
	for len(out) < max {
		select {
		case r := <-ch:
			out = append(out, r)
		case <-deadline:
			return out
		}
	}
	return out
}

func TestBatcher_Enqueue_FilterAndBuffer(t *testing.T) {
	b := NewBatcher(10, 10*time.Millisecond, []string{"ok"}, []string{"drop"}, "test")
	b.Enqueue(Record{Stream: "stdout", Text: "ok-first"})
	b.Enqueue(Record{Stream: "stdout", Text: "no-include-here"}) // filtered by include
	b.Enqueue(Record{Stream: "stderr", Text: "ok-but-drop-tag"}) // exclude wins

	got := drain(b.Ch, 3, 20*time.Millisecond)
	if len(got) != 1 || got[0].Text != "ok-first" || got[0].Stream != "stdout" {
		t.Fatalf("expected only the allowed record to be in channel, got %+v", got)
	}
}

func TestBatcher_BufferFullDrops(t *testing.T) {
	// BatchSize=1 => channel capacity = size*2 = 2
	b := NewBatcher(1, 10*time.Millisecond, nil, nil, "test")
	b.Enqueue(Record{Text: "a"})
	b.Enqueue(Record{Text: "b"})
	b.Enqueue(Record{Text: "c"}) // dropped

	got := drain(b.Ch, 10, 20*time.Millisecond)
	if len(got) != 2 {
		t.Fatalf("expected 2 items in buffer, got %d: %+v", len(got), got)
	}
	if got[0].Text != "a" || got[1].Text != "b" {
		t.Fatalf("unexpected channel content: %+v", got)
	}
}

func TestBatcher_StartFlushesOnSizeAndStop(t *testing.T) {
	var mu sync.Mutex
	var batches [][]string
	b := NewBatcher(2, time.Hour, nil, nil, "test")
	b.Start(func(recs []Record) error {
		mu.Lock()
		defer mu.Unlock()
		batch := make([]string, 0, len(recs))
		for _, r := range recs {
			batch = append(batch, r.Text)
		}
		batches = append(batches, batch)
		return nil
	})

	b.Enqueue(Record{Text: "1"})
	b.Enqueue(Record{Text: "2"})
	b.Enqueue(Record{Text: "3"})
	b.Stop()

	mu.Lock()
	defer mu.Unlock()
	total := 0
	for _, batch := range batches {
		total += len(batch)
		if len(batch) > 2 {
			t.Fatalf("batch larger than BatchSize: %v", batch)
		}
	}
	if total != 3 {
		t.Fatalf("expected 3 records flushed, got %d in %v", total, batches)
	}
}
