package main

import (
	"fmt"
	"strings"
	"time"

	cmdmetrics "github.com/loykin/streamfwd/cmd/streamfwd/metrics"
	"github.com/loykin/streamfwd/cmd/streamfwd/sink/clickhouse"
	"github.com/loykin/streamfwd/cmd/streamfwd/sink/console"
	"github.com/loykin/streamfwd/cmd/streamfwd/sink/opensearch"
	"github.com/loykin/streamfwd/internal/forwarder"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// ForwardConfig controls how the child's output streams are forwarded.
type ForwardConfig struct {
	BufferSize   int  `mapstructure:"buffer-size"`
	LineBuffered bool `mapstructure:"line-buffered"`
	// Quiet disables echoing the child's output to this process's stdout/stderr.
	Quiet bool `mapstructure:"quiet"`
	// ResultFile receives the run result, including captured output, as JSON.
	ResultFile string `mapstructure:"result-file"`
}

// HistoryConfig controls the SQLite run history.
type HistoryConfig struct {
	Enable bool   `mapstructure:"enable"`
	DBPath string `mapstructure:"db-path"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // text or json
}

type SinkConfig struct {
	Type          string            `mapstructure:"type"` // "" (disabled), "console", "file", "clickhouse", "opensearch"
	Include       []string          `mapstructure:"include"`
	Exclude       []string          `mapstructure:"exclude"`
	BatchSize     int               `mapstructure:"batch-size"`
	BatchInterval time.Duration     `mapstructure:"batch-interval"`
	Host          string            `mapstructure:"host"`   // override host; default os.Hostname()
	Labels        map[string]string `mapstructure:"labels"` // optional key-value labels

	Console    console.Config     `mapstructure:"console"`
	File       console.FileConfig `mapstructure:"file"`
	ClickHouse clickhouse.Config  `mapstructure:"clickhouse"`
	OpenSearch opensearch.Config  `mapstructure:"opensearch"`
}

// Config holds all configuration options for the streamfwd application.
type Config struct {
	// Optional config file path (flag/env only)
	ConfigFile string
	Forward    ForwardConfig     `mapstructure:"forward"`
	History    HistoryConfig     `mapstructure:"history"`
	Sink       SinkConfig        `mapstructure:"sink"`
	Prometheus cmdmetrics.Config `mapstructure:"prometheus"`
	Log        LogConfig         `mapstructure:"log"`
}

// flagKeys maps command line flags to their nested configuration keys.
var flagKeys = map[string]string{
	"buffer-size":       "forward.buffer-size",
	"line-buffered":     "forward.line-buffered",
	"quiet":             "forward.quiet",
	"result-file":       "forward.result-file",
	"history.enable":    "history.enable",
	"history.db-path":   "history.db-path",
	"prometheus.enable": "prometheus.enable",
	"prometheus.addr":   "prometheus.addr",
	"log-level":         "log.level",
	"log-format":        "log.format",
}

// LoadFromViper binds flags to viper, reads file/env, and populates the Config fields via mapstructure.
func (c *Config) LoadFromViper(cmd *cobra.Command) error {
	v := viper.New()
	v.SetEnvPrefix("STREAMFWD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	for name, key := range flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return err
			}
		}
	}

	// Sink settings have no flags; seed the keys so env variables are picked up on Unmarshal.
	v.SetDefault("sink.type", c.Sink.Type)
	v.SetDefault("sink.batch-size", c.Sink.BatchSize)
	v.SetDefault("sink.batch-interval", c.Sink.BatchInterval)
	v.SetDefault("sink.console.stream", c.Sink.Console.Stream)
	v.SetDefault("sink.file.path", c.Sink.File.Path)
	v.SetDefault("sink.file.max-size", c.Sink.File.MaxSizeMB)
	v.SetDefault("sink.file.max-backups", c.Sink.File.MaxBackups)
	v.SetDefault("sink.file.max-age", c.Sink.File.MaxAgeDays)
	v.SetDefault("sink.clickhouse.addr", "")
	v.SetDefault("sink.clickhouse.table", "")
	v.SetDefault("sink.opensearch.url", "")
	v.SetDefault("sink.opensearch.index", "")

	// Determine config file path: --config flag or STREAMFWD_CONFIG env; no auto-defaults
	if c.ConfigFile == "" {
		c.ConfigFile = v.GetString("config")
	}
	if c.ConfigFile != "" {
		v.SetConfigFile(c.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return v.Unmarshal(c)
}

// DefaultConfig returns a Config with default values
func DefaultConfig() *Config {
	return &Config{
		Forward: ForwardConfig{
			BufferSize: forwarder.DefaultBufferSize,
		},
		History: HistoryConfig{Enable: false, DBPath: "streamfwd.db"},
		Sink: SinkConfig{
			Type:          "", // echo only; set sink.type to forward lines elsewhere
			Include:       []string{},
			Exclude:       []string{},
			BatchSize:     200,
			BatchInterval: 2 * time.Second,
			Labels:        map[string]string{},
			Console:       console.Config{Stream: "stdout"},
			File:          console.FileConfig{MaxSizeMB: 100, MaxBackups: 5, MaxAgeDays: 7},
		},
		Prometheus: cmdmetrics.Config{Enable: false, Addr: ":2112"},
		Log:        LogConfig{Level: "info", Format: "text"},
	}
}

// SetupFlags adds all command line flags to the provided cobra command
func (c *Config) SetupFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&c.ConfigFile, "config", c.ConfigFile, "Path to config file (yaml/json/toml)")

	flags.IntVarP(&c.Forward.BufferSize, "buffer-size", "b", c.Forward.BufferSize, "Forwarder block size in bytes; also the raw chunk flush threshold")
	flags.BoolVarP(&c.Forward.LineBuffered, "line-buffered", "l", c.Forward.LineBuffered, "Only forward complete lines (no partial-line chunks)")
	flags.BoolVarP(&c.Forward.Quiet, "quiet", "q", c.Forward.Quiet, "Do not echo the child's output")
	flags.StringVar(&c.Forward.ResultFile, "result-file", c.Forward.ResultFile, "Write the run result with captured output as JSON to this path")

	flags.BoolVar(&c.History.Enable, "history.enable", c.History.Enable, "Record runs with their captured output in the history DB")
	flags.StringVar(&c.History.DBPath, "history.db-path", c.History.DBPath, "Path to the run history SQLite DB")

	// Sink-related options are intentionally not exposed as command-line flags.
	// Configure them via config file or environment variables
	// (STREAMFWD_SINK_TYPE, STREAMFWD_SINK_CLICKHOUSE_ADDR, etc.).

	flags.BoolVar(&c.Prometheus.Enable, "prometheus.enable", c.Prometheus.Enable, "Enable Prometheus metrics HTTP endpoint")
	flags.StringVar(&c.Prometheus.Addr, "prometheus.addr", c.Prometheus.Addr, "Prometheus metrics listen address (e.g., :2112)")

	flags.StringVar(&c.Log.Level, "log-level", c.Log.Level, "Log level (debug, info, warn, error)")
	flags.StringVar(&c.Log.Format, "log-format", c.Log.Format, "Log format (text or json)")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Forward.BufferSize < 1 {
		return fmt.Errorf("forward.buffer-size must be >= 1")
	}
	if c.History.Enable && c.History.DBPath == "" {
		return fmt.Errorf("history.db-path must be set when history.enable is true")
	}

	switch c.Sink.Type {
	case "", "console", "file", "clickhouse", "opensearch":
	default:
		return fmt.Errorf("invalid sink.type: %s", c.Sink.Type)
	}
	if c.Sink.Type != "" {
		if c.Sink.BatchSize <= 0 {
			return fmt.Errorf("sink.batch-size must be > 0")
		}
		if c.Sink.BatchInterval <= 0 {
			return fmt.Errorf("sink.batch-interval must be > 0")
		}
		var err error
		switch c.Sink.Type {
		case "console":
			err = c.Sink.Console.Validate()
		case "file":
			err = c.Sink.File.Validate()
		case "clickhouse":
			err = c.Sink.ClickHouse.Validate()
		case "opensearch":
			err = c.Sink.OpenSearch.Validate()
		}
		if err != nil {
			return err
		}
	}

	if err := c.Prometheus.Validate(); err != nil {
		return err
	}

	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("log.format must be 'text' or 'json'")
	}
	return nil
}
