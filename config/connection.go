package config

import (
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Defaults used when no source provides a value.
const (
	DefaultGatewayHost = "127.0.0.1"
	DefaultGatewayPort = 18789
	// GatewayEnvPrefix prefixes OPENCLAW_GATEWAY_HOST, _PORT and _TOKEN.
	GatewayEnvPrefix = "OPENCLAW_GATEWAY_"
)

// Connection is the resolved gateway address and credentials.
type Connection struct {
	Host  string
	Port  int
	Token string
}

// Addr returns host:port.
func (c Connection) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// BaseURL returns the gateway HTTP base URL.
func (c Connection) BaseURL() string {
	return "http://" + c.Addr()
}

// ConnectionResolver resolves the gateway connection once per process.
// Per field, explicit overrides beat the environment, which beats the
// gateway configuration file, which beats the defaults. Read errors are
// swallowed and the remaining sources still apply.
type ConnectionResolver struct {
	overrides GatewayConfig
	filePath  string

	once sync.Once
	conn Connection
}

// NewConnectionResolver creates a resolver. Non-zero fields of overrides take
// precedence over every other source; overrides.ConfigFile replaces the
// default file location.
func NewConnectionResolver(overrides GatewayConfig) *ConnectionResolver {
	path := overrides.ConfigFile
	if path == "" {
		path = DefaultGatewayConfigFile()
	}
	return &ConnectionResolver{overrides: overrides, filePath: path}
}

// DefaultGatewayConfigFile returns ~/.openclaw/openclaw.json, or an empty
// string when the home directory is unknown.
func DefaultGatewayConfigFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".openclaw", "openclaw.json")
}

// Resolve returns the cached connection, loading it on first use.
func (r *ConnectionResolver) Resolve() Connection {
	r.once.Do(func() { r.conn = r.load() })
	return r.conn
}

func (r *ConnectionResolver) load() Connection {
	k := koanf.New(".")
	_ = k.Load(confmap.Provider(map[string]any{
		"gateway.host":  DefaultGatewayHost,
		"gateway.port":  DefaultGatewayPort,
		"gateway.token": "",
	}, "."), nil)

	if r.filePath != "" {
		// A missing or malformed file leaves the defaults in place.
		_ = k.Load(file.Provider(r.filePath), json.Parser())
	}

	_ = k.Load(env.Provider(GatewayEnvPrefix, ".", func(s string) string {
		return "gateway." + strings.ToLower(strings.TrimPrefix(s, GatewayEnvPrefix))
	}), nil)

	explicit := map[string]any{}
	if r.overrides.Host != "" {
		explicit["gateway.host"] = r.overrides.Host
	}
	if r.overrides.Port != 0 {
		explicit["gateway.port"] = r.overrides.Port
	}
	if r.overrides.Token != "" {
		explicit["gateway.token"] = r.overrides.Token
	}
	_ = k.Load(confmap.Provider(explicit, "."), nil)

	conn := Connection{
		Host:  k.String("gateway.host"),
		Port:  k.Int("gateway.port"),
		Token: k.String("gateway.token"),
	}
	if conn.Token == "" {
		conn.Token = k.String("gateway.auth.token")
	}
	if conn.Host == "" {
		conn.Host = DefaultGatewayHost
	}
	if conn.Port <= 0 || conn.Port > 65535 {
		conn.Port = DefaultGatewayPort
	}
	return conn
}
