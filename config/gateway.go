package config

import (
	"fmt"
	"time"
)

// GatewayConfig holds explicit gateway settings. Zero connection fields fall
// through to the ConnectionResolver sources.
type GatewayConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
	// Token is sent as a bearer token when non-empty.
	Token string `json:"token"`
	// ConfigFile overrides the gateway configuration file location.
	ConfigFile string `json:"config_file"`
	// TimeoutSeconds bounds a single gateway call.
	TimeoutSeconds int `json:"timeout_seconds"`
	// Action is the nodes tool action used for invocations: "invoke" or "run".
	Action string `json:"action"`
}

// SetDefaults applies the 30 second timeout and the invoke action.
func (c *GatewayConfig) SetDefaults() {
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	if c.Action == "" {
		c.Action = "invoke"
	}
}

// Validate checks the action and port range.
func (c GatewayConfig) Validate() error {
	if c.Action != "invoke" && c.Action != "run" {
		return fmt.Errorf("unknown action %s", c.Action)
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	return nil
}

// Timeout returns the per-call timeout.
func (c GatewayConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// CLIConfig configures the local command-line fallback.
type CLIConfig struct {
	// Binary is looked up on PATH once per process.
	Binary string `json:"binary"`
	// Disabled turns the fallback path off entirely.
	Disabled bool `json:"disabled"`
	// WakeSettleMS is the fixed delay between a wake request and the re-probe.
	WakeSettleMS int `json:"wake_settle_ms"`
}

func (c *CLIConfig) SetDefaults() {
	if c.Binary == "" {
		c.Binary = "tescmd"
	}
	if c.WakeSettleMS <= 0 {
		c.WakeSettleMS = 5000
	}
}

// WakeSettle returns the settle delay.
func (c CLIConfig) WakeSettle() time.Duration {
	return time.Duration(c.WakeSettleMS) * time.Millisecond
}
