package model

import (
	"errors"
	"fmt"
)

// Kind classifies dispatch failures.
type Kind int

const (
	KindNone Kind = iota
	KindNoNodeConnected
	KindStaleNode
	KindTransportError
	KindCommandFailed
	KindUnsupported
	KindWakeRequired
	KindWakeFailed
)

func (k Kind) String() string {
	switch k {
	case KindNoNodeConnected:
		return "NoNodeConnected"
	case KindStaleNode:
		return "StaleNode"
	case KindTransportError:
		return "TransportError"
	case KindCommandFailed:
		return "CommandFailed"
	case KindUnsupported:
		return "Unsupported"
	case KindWakeRequired:
		return "WakeRequired"
	case KindWakeFailed:
		return "WakeFailed"
	default:
		return "None"
	}
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Connectivity reports whether the kind may trigger re-resolution or the CLI
// fallback. Logical failures never do.
func (k Kind) Connectivity() bool {
	return k == KindStaleNode || k == KindNoNodeConnected
}

// DispatchError carries a Kind alongside a human readable message.
type DispatchError struct {
	Kind    Kind
	Message string
	Err     error
}

// Sentinels for errors.Is comparisons.
var (
	ErrNoNodeConnected = &DispatchError{Kind: KindNoNodeConnected}
	ErrStaleNode       = &DispatchError{Kind: KindStaleNode}
	ErrTransport       = &DispatchError{Kind: KindTransportError}
	ErrCommandFailed   = &DispatchError{Kind: KindCommandFailed}
	ErrUnsupported     = &DispatchError{Kind: KindUnsupported}
	ErrWakeFailed      = &DispatchError{Kind: KindWakeFailed}
)

// NewError builds a DispatchError. err may be nil.
func NewError(kind Kind, msg string, err error) *DispatchError {
	return &DispatchError{Kind: kind, Message: msg, Err: err}
}

// Errorf builds a DispatchError with a formatted message.
func Errorf(kind Kind, format string, args ...any) *DispatchError {
	return &DispatchError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func (e *DispatchError) Error() string {
	switch {
	case e.Message == "" && e.Err == nil:
		return e.Kind.String()
	case e.Message == "":
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Err == nil:
		return e.Message
	default:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
}

func (e *DispatchError) Unwrap() error { return e.Err }

// Is matches any DispatchError of the same kind.
func (e *DispatchError) Is(target error) bool {
	t, ok := target.(*DispatchError)
	return ok && t.Kind == e.Kind
}

// KindOf extracts the Kind of err, TransportError for foreign errors and
// KindNone for nil.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	var de *DispatchError
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindTransportError
}
