// Package catalog lists the commands whitelisted for the vehicle platform.
//
// The dispatcher never consults the catalog: methods are forwarded
// unchanged. It backs the command listing surfaces (CLI and MCP tools).
package catalog

import "sort"

// Platform is the node platform tag served by the vehicle node.
const Platform = "tesla"

// Direction distinguishes read-only queries from state-changing commands.
type Direction string

const (
	Read  Direction = "read"
	Write Direction = "write"
)

// Entry describes one whitelisted command.
type Entry struct {
	Method    string    `json:"method" yaml:"method"`
	Label     string    `json:"label" yaml:"label"`
	Direction Direction `json:"direction" yaml:"direction"`
}

var entries = []Entry{
	{"location.get", "Get Location", Read},
	{"battery.get", "Get Battery", Read},
	{"temperature.get", "Get Temperature", Read},
	{"speed.get", "Get Speed", Read},
	{"charge_state.get", "Get Charge State", Read},
	{"security.get", "Get Security", Read},
	{"trigger.list", "List Triggers", Read},
	{"trigger.poll", "Poll Triggers", Read},

	{"door.lock", "Lock Doors", Write},
	{"door.unlock", "Unlock Doors", Write},
	{"climate.on", "Climate On", Write},
	{"climate.off", "Climate Off", Write},
	{"climate.set_temp", "Set Climate Temperature", Write},
	{"charge.start", "Start Charging", Write},
	{"charge.stop", "Stop Charging", Write},
	{"charge.set_limit", "Set Charge Limit", Write},
	{"trunk.open", "Open Trunk", Write},
	{"frunk.open", "Open Frunk", Write},
	{"flash_lights", "Flash Lights", Write},
	{"honk_horn", "Honk Horn", Write},
	{"sentry.on", "Sentry Mode On", Write},
	{"sentry.off", "Sentry Mode Off", Write},
	{"trigger.create", "Create Trigger", Write},
	{"trigger.delete", "Delete Trigger", Write},
	{"cabin_temp.trigger", "Cabin Temp Trigger", Write},
	{"outside_temp.trigger", "Outside Temp Trigger", Write},
	{"battery.trigger", "Battery Trigger", Write},
	{"location.trigger", "Location Trigger", Write},
	{"system.run", "Run Command", Write},
}

// All returns a copy of the catalog in declaration order.
func All() []Entry {
	out := make([]Entry, len(entries))
	copy(out, entries)
	return out
}

// ByDirection returns the entries with direction d.
func ByDirection(d Direction) []Entry {
	var out []Entry
	for _, e := range entries {
		if e.Direction == d {
			out = append(out, e)
		}
	}
	return out
}

// Lookup finds an entry by method name.
func Lookup(method string) (Entry, bool) {
	for _, e := range entries {
		if e.Method == method {
			return e, true
		}
	}
	return Entry{}, false
}

// Methods returns all method names sorted alphabetically.
func Methods() []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Method)
	}
	sort.Strings(out)
	return out
}
