package events

import "time"

// TriggerNotification is one fired trigger reported by the vehicle node.
type TriggerNotification struct {
	TriggerID string `json:"trigger_id"`
	Field     string `json:"field"`
	Value     any    `json:"value"`
	FiredAt   string `json:"fired_at"`
}

// TriggerEvent reports one poll: the drained notifications, or Err when the
// poll failed.
type TriggerEvent struct {
	Notifications []TriggerNotification
	Err           string
	Time          time.Time
}
