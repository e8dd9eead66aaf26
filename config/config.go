package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/vcmd/core/catalog"
	"github.com/kilianp07/vcmd/core/metrics"
	"github.com/kilianp07/vcmd/infra/mqtt"
)

// EnvPrefix prefixes environment overrides: VCMD_GATEWAY__PORT sets gateway.port.
const EnvPrefix = "VCMD_"

type Config struct {
	Debug    bool           `json:"debug"`
	Platform string         `json:"platform"`
	Gateway  GatewayConfig  `json:"gateway"`
	CLI      CLIConfig      `json:"cli"`
	Audit    AuditConfig    `json:"audit"`
	Metrics  metrics.Config `json:"metrics"`
	MQTT     mqtt.Config    `json:"mqtt"`
	Sentry   SentryConfig   `json:"sentry"`
	Tracing  TracingConfig  `json:"tracing"`
	Triggers TriggersConfig `json:"triggers"`
}

// Load reads the service configuration from path (YAML or JSON) and applies
// VCMD_ environment overrides. An empty path loads defaults and environment
// only.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		var parser koanf.Parser
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", filepath.Ext(path))
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, err
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults fills every section with its defaults.
func (c *Config) SetDefaults() {
	if c.Platform == "" {
		c.Platform = catalog.Platform
	}
	c.Gateway.SetDefaults()
	c.CLI.SetDefaults()
	c.Audit.SetDefaults()
	c.Triggers.SetDefaults()
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = "vcmd"
	}
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := c.Gateway.Validate(); err != nil {
		return fmt.Errorf("gateway: %w", err)
	}
	if err := c.Audit.Validate(); err != nil {
		return fmt.Errorf("audit: %w", err)
	}
	if err := c.Triggers.Validate(); err != nil {
		return fmt.Errorf("triggers: %w", err)
	}
	return nil
}
