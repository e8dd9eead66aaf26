package cli

import "sort"

// actions maps methods to `vehicle <subcommand>` invocations. Both the dotted
// and the legacy flat spellings are listed since methods arrive unchanged.
var actions = map[string]string{
	"door.lock":               "door-lock",
	"door.unlock":             "door-unlock",
	"climate.on":              "climate-on",
	"climate.off":             "climate-off",
	"charge.start":            "charge-start",
	"charge.stop":             "charge-stop",
	"trunk.open":              "actuate-trunk",
	"frunk.open":              "actuate-frunk",
	"flash_lights":            "flash-lights",
	"honk_horn":               "honk-horn",
	"sentry.on":               "sentry-on",
	"sentry.off":              "sentry-off",
	"door_lock":               "door-lock",
	"door_unlock":             "door-unlock",
	"auto_conditioning_start": "climate-on",
	"auto_conditioning_stop":  "climate-off",
	"charge_start":            "charge-start",
	"charge_stop":             "charge-stop",
	"actuate_trunk":           "actuate-trunk",
}

// dataQuery is a read served by `vehicle data --endpoints <endpoint>`.
type dataQuery struct {
	endpoint string
	parse    func(section map[string]any) any
}

var queries = map[string]dataQuery{
	"location.get": {"drive_state", func(s map[string]any) any {
		return pick(s, "latitude", "longitude", "heading", "speed")
	}},
	"battery.get": {"charge_state", func(s map[string]any) any {
		return map[string]any{"battery_level": s["battery_level"], "range_miles": s["battery_range"]}
	}},
	"temperature.get": {"climate_state", func(s map[string]any) any {
		return map[string]any{"inside_temp_c": s["inside_temp"], "outside_temp_c": s["outside_temp"]}
	}},
	"speed.get": {"drive_state", func(s map[string]any) any {
		return map[string]any{"speed_mph": s["speed"]}
	}},
	"charge_state.get": {"charge_state", func(s map[string]any) any {
		return map[string]any{"charge_state": s["charging_state"]}
	}},
	"security.get": {"vehicle_state", func(s map[string]any) any {
		return pick(s, "locked", "sentry_mode")
	}},
}

// wakeRequired holds every method that needs an online vehicle. Every mapped
// command does, since the Fleet API rejects commands to a sleeping car.
var wakeRequired = func() map[string]bool {
	m := make(map[string]bool, len(actions)+len(queries))
	for k := range actions {
		m[k] = true
	}
	for k := range queries {
		m[k] = true
	}
	return m
}()

// RequiresWake reports whether method needs the vehicle to be online.
func RequiresWake(method string) bool { return wakeRequired[method] }

// Methods lists the methods the fallback can serve, sorted.
func Methods() []string {
	out := make([]string, 0, len(actions)+len(queries))
	for k := range actions {
		out = append(out, k)
	}
	for k := range queries {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func pick(m map[string]any, keys ...string) map[string]any {
	out := make(map[string]any, len(keys))
	for _, k := range keys {
		out[k] = m[k]
	}
	return out
}

// section extracts the endpoint payload from `vehicle data` output, which may
// or may not be wrapped in a "response" object.
func section(out any, endpoint string) map[string]any {
	m, _ := out.(map[string]any)
	if resp, ok := m["response"].(map[string]any); ok {
		m = resp
	}
	if s, ok := m[endpoint].(map[string]any); ok {
		return s
	}
	return map[string]any{}
}
