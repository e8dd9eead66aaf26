// Package events defines the events emitted on the event bus.
//
// Available event types:
//   - DispatchEvent: terminal outcome of one dispatch
//   - NodeEvent: node id resolved or invalidated by the registry
//   - TriggerEvent: trigger notifications drained from the vehicle node
package events
