// Package infra holds the adapters behind the core interfaces: the gateway
// HTTP client, the local CLI runner, the MQTT bridge, the MCP server and the
// metrics, tracing and error reporting backends. They depend on core, never
// the other way around.
package infra
