package model

import "encoding/json"

// Status tags the variant held by an Outcome.
type Status int

const (
	StatusSuccess Status = iota
	StatusRequiresWakeConfirmation
	StatusFailure
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusRequiresWakeConfirmation:
		return "requires_wake_confirmation"
	default:
		return "failure"
	}
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Outcome is the result of one dispatch. Exactly one of the variants is
// meaningful, selected by Status:
//   - Success: Value, plus Fallback/Note when the CLI path served it
//   - RequiresWakeConfirmation: Command and State, Message explains the cost
//   - Failure: Kind and Message
type Outcome struct {
	Status   Status  `json:"status"`
	Value    any     `json:"value,omitempty"`
	Fallback bool    `json:"fallback,omitempty"`
	Note     string  `json:"note,omitempty"`
	Command  Command `json:"command"`
	State    string  `json:"state,omitempty"`
	Kind     Kind    `json:"kind,omitempty"`
	Message  string  `json:"message,omitempty"`
}

// Success wraps a normalized result value.
func Success(v any) Outcome {
	return Outcome{Status: StatusSuccess, Value: v}
}

// RequiresWake asks the caller to confirm waking the vehicle.
func RequiresWake(cmd Command, state, msg string) Outcome {
	return Outcome{
		Status:  StatusRequiresWakeConfirmation,
		Command: cmd,
		State:   state,
		Kind:    KindWakeRequired,
		Message: msg,
	}
}

// Failure reports a terminal failure of the given kind.
func Failure(kind Kind, msg string) Outcome {
	return Outcome{Status: StatusFailure, Kind: kind, Message: msg}
}

// FailureFromError converts err into a Failure outcome.
func FailureFromError(err error) Outcome {
	return Failure(KindOf(err), err.Error())
}

// OK reports whether the outcome is a success.
func (o Outcome) OK() bool { return o.Status == StatusSuccess }

// Err returns the failure as an error, nil for other statuses.
func (o Outcome) Err() error {
	if o.Status != StatusFailure {
		return nil
	}
	return &DispatchError{Kind: o.Kind, Message: o.Message}
}

// MarshalJSON omits the command unless a wake confirmation is requested.
func (o Outcome) MarshalJSON() ([]byte, error) {
	type alias Outcome
	if o.Status != StatusRequiresWakeConfirmation {
		return json.Marshal(struct {
			alias
			Command *Command `json:"command,omitempty"`
		}{alias: alias(o)})
	}
	return json.Marshal(alias(o))
}

// Path names the execution path that produced an outcome.
type Path string

const (
	PathNone    Path = "none"
	PathGateway Path = "gateway"
	PathCLI     Path = "cli"
)
