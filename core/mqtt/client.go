// Package mqtt defines the broker contract used by the MQTT bridge.
package mqtt

import "errors"

// ErrNotConnected is returned by clients that never reached the broker.
var ErrNotConnected = errors.New("mqtt client not connected")

// Client publishes and receives payloads on topics relative to the
// configured topic prefix.
type Client interface {
	// Publish sends payload to <prefix>/<suffix>.
	Publish(suffix string, payload []byte) error

	// Subscribe registers handler for messages on <prefix>/<suffix>.
	Subscribe(suffix string, handler func(payload []byte)) error
}
