package gateway

import (
	"errors"
	"net/url"
	"strings"

	"github.com/kilianp07/vcmd/core/model"
)

// Structured error types the gateway uses for unknown or disconnected nodes.
var staleErrorTypes = map[string]bool{
	"NODE_NOT_FOUND": true,
	"NODE_OFFLINE":   true,
}

// Message fragments recognised when no structured type is available.
var staleFragments = []string{"node not found", "offline"}

// IsStale reports whether an error type or message designates a stale node.
// This is the only place where gateway error text is interpreted.
func IsStale(errType, message string) bool {
	if isStaleType(errType) {
		return true
	}
	msg := strings.ToLower(message)
	for _, f := range staleFragments {
		if strings.Contains(msg, f) {
			return true
		}
	}
	return false
}

// classify returns KindStaleNode for stale-node errors and fallback otherwise.
func classify(errType, message string, fallback model.Kind) model.Kind {
	if IsStale(errType, message) {
		return model.KindStaleNode
	}
	return fallback
}

func isStaleType(errType string) bool {
	return staleErrorTypes[strings.ToUpper(strings.TrimSpace(errType))]
}

// classifyReply handles ok:false envelopes. The node ran the command, so
// only a structured node error marks it stale; message text never does.
func classifyReply(errType string) model.Kind {
	if isStaleType(errType) {
		return model.KindStaleNode
	}
	return model.KindCommandFailed
}

// transportMessage strips the request URL from *url.Error so that host or
// path text cannot match a stale fragment.
func transportMessage(err error) string {
	var uerr *url.Error
	if errors.As(err, &uerr) && uerr.Err != nil {
		return uerr.Err.Error()
	}
	return err.Error()
}
