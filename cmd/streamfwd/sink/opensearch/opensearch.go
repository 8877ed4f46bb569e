package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/loykin/streamfwd/cmd/streamfwd/sink/common"
	osclient "github.com/opensearch-project/opensearch-go"
	"github.com/opensearch-project/opensearch-go/opensearchutil"
)

type Sink struct {
	batcher *common.Batcher
	client  *osclient.Client
	index   string
	timeout time.Duration
	retry   time.Duration
	host    string
	command string
	labels  map[string]string
}

// document is the indexed form of one forwarded line.
type document struct {
	Timestamp string            `json:"@timestamp"`
	Message   string            `json:"message"`
	Stream    string            `json:"stream"`
	Command   string            `json:"command,omitempty"`
	Host      string            `json:"host"`
	Labels    map[string]string `json:"labels,omitempty"`
}

func New(cfg Config, host, command string, labels map[string]string, batchSize int, batchInterval time.Duration, includes, excludes []string) (common.Sink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	clientCfg := osclient.Config{Addresses: []string{cfg.URL}}
	if cfg.User != "" {
		clientCfg.Username = cfg.User
		clientCfg.Password = cfg.Password
	}
	cli, err := osclient.NewClient(clientCfg)
	if err != nil {
		return nil, err
	}
	s := &Sink{
		batcher: common.NewBatcher(batchSize, batchInterval, includes, excludes, "opensearch"),
		client:  cli,
		index:   cfg.Index,
		timeout: cfg.requestTimeout(),
		retry:   cfg.maxRetry(),
		host:    host,
		command: command,
		labels:  labels,
	}
	s.batcher.Start(s.flushWithRetry)
	return s, nil
}

func (s *Sink) Enqueue(rec common.Record) { s.batcher.Enqueue(rec) }

func (s *Sink) Stop() error {
	s.batcher.Stop()
	return nil
}

func (s *Sink) flushWithRetry(recs []common.Record) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxInterval = 2 * time.Second
	bo.MaxElapsedTime = s.retry
	return backoff.Retry(func() error { return s.flush(recs) }, bo)
}

func (s *Sink) flush(recs []common.Record) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	bi, err := opensearchutil.NewBulkIndexer(opensearchutil.BulkIndexerConfig{
		Client: s.client,
		Index:  s.index,
	})
	if err != nil {
		return backoff.Permanent(err)
	}
	ts := time.Now().UTC().Format(time.RFC3339Nano)
	for _, rec := range recs {
		b, err := json.Marshal(document{
			Timestamp: ts,
			Message:   rec.Text,
			Stream:    rec.Stream,
			Command:   s.command,
			Host:      s.host,
			Labels:    s.labels,
		})
		if err != nil {
			return backoff.Permanent(err)
		}
		err = bi.Add(ctx, opensearchutil.BulkIndexerItem{
			Action: "index",
			Body:   bytes.NewReader(b),
			OnFailure: func(ctx context.Context, item opensearchutil.BulkIndexerItem, resp opensearchutil.BulkIndexerResponseItem, err error) {
				if err != nil {
					slog.Error("opensearch bulk item error", "error", err)
					return
				}
				slog.Error("opensearch bulk item failed", "status", resp.Status, "error", resp.Error)
			},
		})
		if err != nil {
			return err
		}
	}
	if err := bi.Close(ctx); err != nil {
		return err
	}
	if stats := bi.Stats(); stats.NumFailed > 0 {
		return fmt.Errorf("opensearch bulk failed items: %d", stats.NumFailed)
	}
	return nil
}
