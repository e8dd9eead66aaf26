package model

import "strings"

// Command is a logical vehicle command. Method is forwarded unchanged, in
// either dotted ("door.lock") or flat ("door_lock") form.
type Command struct {
	Method string         `json:"method"`
	Params map[string]any `json:"params,omitempty"`
}

// Wake authorization flags accepted in Command.Params.
const (
	ParamForceWake = "force_wake"
	ParamAllowWake = "allow_wake"
)

// WakeAuthorized reports whether the caller explicitly allowed waking the
// vehicle for this command.
func (c Command) WakeAuthorized() bool {
	return truthy(c.Params[ParamForceWake]) || truthy(c.Params[ParamAllowWake])
}

// ParamsOrEmpty never returns nil so the params always encode as an object.
func (c Command) ParamsOrEmpty() map[string]any {
	if c.Params == nil {
		return map[string]any{}
	}
	return c.Params
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		s := strings.ToLower(strings.TrimSpace(t))
		return s == "true" || s == "1" || s == "yes"
	case float64:
		return t != 0
	case int:
		return t != 0
	}
	return false
}

// NodeDescriptor is one entry of the gateway node listing.
type NodeDescriptor struct {
	ID        string `json:"id"`
	Platform  string `json:"platform"`
	Connected bool   `json:"connected"`
}
