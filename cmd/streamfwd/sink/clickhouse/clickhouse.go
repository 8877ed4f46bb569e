package clickhouse

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"strings"
	"time"

	ch "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/cenkalti/backoff/v4"
	"github.com/loykin/streamfwd/cmd/streamfwd/sink/common"
)

type Sink struct {
	batcher *common.Batcher
	conn    ch.Conn
	table   string
	host    string
	command string
	labels  map[string]string
}

// options builds driver options for either the HTTP or the native protocol.
func options(cfg Config) (*ch.Options, error) {
	auth := ch.Auth{Username: cfg.User, Password: cfg.Password, Database: cfg.Database}
	if !strings.Contains(cfg.Addr, "://") {
		return &ch.Options{Addr: []string{cfg.Addr}, Auth: auth}, nil
	}
	u, err := url.Parse(cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("invalid ch addr: %w", err)
	}
	opts := &ch.Options{Addr: []string{u.Host}, Protocol: ch.HTTP, Auth: auth}
	if u.Scheme == "https" {
		opts.TLS = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return opts, nil
}

// New connects, ensures the table exists and starts the batching loop.
// command is stored with every line to tell runs apart.
func New(cfg Config, host, command string, labels map[string]string, batchSize int, batchInterval time.Duration, includes, excludes []string) (common.Sink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts, err := options(cfg)
	if err != nil {
		return nil, err
	}
	if err := runMigrations(opts, cfg.FullTable()); err != nil {
		return nil, err
	}
	conn, err := ch.Open(opts)
	if err != nil {
		return nil, err
	}
	s := &Sink{
		batcher: common.NewBatcher(batchSize, batchInterval, includes, excludes, "clickhouse"),
		conn:    conn,
		table:   cfg.FullTable(),
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
	return s.conn.Close()
}

// flushWithRetry retries transient insert failures for a bounded time.
func (s *Sink) flushWithRetry(recs []common.Record) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxInterval = 2 * time.Second
	bo.MaxElapsedTime = 10 * time.Second
	return backoff.Retry(func() error { return s.flush(recs) }, bo)
}

func (s *Sink) flush(recs []common.Record) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	batch, err := s.conn.PrepareBatch(ctx, "INSERT INTO "+s.table+" (ts, host, command, stream, labels, message)")
	if err != nil {
		return err
	}
	now := time.Now()
	for _, rec := range recs {
		if err := batch.Append(now, s.host, s.command, rec.Stream, s.labels, rec.Text); err != nil {
			return backoff.Permanent(err)
		}
	}
	return batch.Send()
}
