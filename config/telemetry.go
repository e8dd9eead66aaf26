package config

import (
	"fmt"
	"time"
)

// TracingConfig enables OTLP/HTTP trace export when Endpoint is set.
type TracingConfig struct {
	Endpoint    string `json:"endpoint"`
	ServiceName string `json:"service_name"`
}

// TriggersConfig configures the trigger notification poller.
type TriggersConfig struct {
	Enabled        bool `json:"enabled"`
	PollIntervalMS int  `json:"poll_interval_ms"`
}

func (c *TriggersConfig) SetDefaults() {
	if c.PollIntervalMS == 0 {
		c.PollIntervalMS = 30000
	}
}

func (c TriggersConfig) Validate() error {
	if c.PollIntervalMS < 100 {
		return fmt.Errorf("poll_interval_ms must be at least 100, got %d", c.PollIntervalMS)
	}
	return nil
}

// Interval returns the poll interval.
func (c TriggersConfig) Interval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}
