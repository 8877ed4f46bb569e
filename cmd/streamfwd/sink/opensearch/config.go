package opensearch

import (
	"fmt"
	"time"
)

const (
	defaultRequestTimeout = 15 * time.Second
	defaultMaxRetry       = 15 * time.Second
)

// Config holds OpenSearch sink connection settings.
type Config struct {
	URL      string `mapstructure:"url"` // http(s)://host:9200
	Index    string `mapstructure:"index"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	// RequestTimeout bounds one bulk request; MaxRetry bounds all retries of a batch.
	RequestTimeout time.Duration `mapstructure:"request-timeout"`
	MaxRetry       time.Duration `mapstructure:"max-retry"`
}

func (c Config) Validate() error {
	if c.URL == "" || c.Index == "" {
		return fmt.Errorf("sink.opensearch requires url and index")
	}
	if c.RequestTimeout < 0 || c.MaxRetry < 0 {
		return fmt.Errorf("sink.opensearch timeouts must not be negative")
	}
	return nil
}

func (c Config) requestTimeout() time.Duration {
	if c.RequestTimeout == 0 {
		return defaultRequestTimeout
	}
	return c.RequestTimeout
}

func (c Config) maxRetry() time.Duration {
	if c.MaxRetry == 0 {
		return defaultMaxRetry
	}
	return c.MaxRetry
}
