package events

import (
	"time"

	"github.com/kilianp07/vcmd/core/model"
)

// DispatchEvent is published once per dispatch with its terminal outcome.
type DispatchEvent struct {
	ID       string
	Command  model.Command
	NodeID   string
	Path     model.Path
	Attempts int
	Outcome  model.Outcome
	Duration time.Duration
	Time     time.Time
}
