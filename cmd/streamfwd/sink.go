package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/loykin/streamfwd/cmd/streamfwd/sink/clickhouse"
	"github.com/loykin/streamfwd/cmd/streamfwd/sink/common"
	"github.com/loykin/streamfwd/cmd/streamfwd/sink/console"
	"github.com/loykin/streamfwd/cmd/streamfwd/sink/opensearch"
)

// Sink is the common sink interface from subpackages.
type Sink = common.Sink

// buildSink constructs and starts a sink based on Config. Returns nil when Sink is disabled.
// command identifies the forwarded child in remote sinks.
func buildSink(cfg *Config, command string) (Sink, error) {
	sc := cfg.Sink
	switch sc.Type {
	case "":
		return nil, nil
	case "console":
		stream := strings.ToLower(sc.Console.Stream)
		return console.New(stream, sc.BatchSize, sc.BatchInterval, sc.Include, sc.Exclude), nil
	case "file":
		return console.NewFile(sc.File, sc.BatchSize, sc.BatchInterval, sc.Include, sc.Exclude)
	case "clickhouse":
		return clickhouse.New(sc.ClickHouse, sinkHost(sc), command, sc.Labels, sc.BatchSize, sc.BatchInterval, sc.Include, sc.Exclude)
	case "opensearch":
		return opensearch.New(sc.OpenSearch, sinkHost(sc), command, sc.Labels, sc.BatchSize, sc.BatchInterval, sc.Include, sc.Exclude)
	default:
		return nil, fmt.Errorf("unsupported sink: %s", sc.Type)
	}
}

func sinkHost(sc SinkConfig) string {
	if sc.Host != "" {
		return sc.Host
	}
	if h, err := os.Hostname(); err == nil {
		return h
	}
	return ""
}
