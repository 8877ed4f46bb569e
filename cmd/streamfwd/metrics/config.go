package metrics

import "errors"

// Config holds metrics endpoint options.
type Config struct {
	Enable bool   `mapstructure:"enable"`
	Addr   string `mapstructure:"addr"`
}

func (c Config) Validate() error {
	if c.Enable && c.Addr == "" {
		return errors.New("prometheus.addr must be set when prometheus.enable is true")
	}
	return nil
}
