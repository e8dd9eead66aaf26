package config

// SentryConfig configures error reporting. Reporting is off without a DSN.
type SentryConfig struct {
	DSN              string   `json:"dsn"`
	Environment      string   `json:"environment"`
	Release          string   `json:"release"`
	TracesSampleRate float64  `json:"traces_sample_rate"`
	IgnoreKinds      []string `json:"ignore_kinds"`
}

// Enabled reports whether a DSN is set.
func (c SentryConfig) Enabled() bool { return c.DSN != "" }

// Ignored reports whether failures of the named kind should not be reported.
func (c SentryConfig) Ignored(kind string) bool {
	for _, k := range c.IgnoreKinds {
		if k == kind {
			return true
		}
	}
	return false
}
