package config

import "github.com/gravito-framework/helioscope-go/pkg/types"

// ProbeConfig is an immutable set of probe enablement flags. Names that
// were never set are disabled.
type ProbeConfig struct {
	enabled map[string]bool
}

// NewProbeConfig copies flags. Unknown probe names are dropped.
func NewProbeConfig(flags map[string]bool) ProbeConfig {
	enabled := make(map[string]bool, len(flags))
	for name, on := range flags {
		if types.IsKnownProbe(name) {
			enabled[name] = on
		}
	}
	return ProbeConfig{enabled: enabled}
}

// Enabled reports whether the named probe should run.
func (p ProbeConfig) Enabled(name string) bool {
	return p.enabled[name]
}

// Names returns the enabled probes in canonical order.
func (p ProbeConfig) Names() []string {
	var names []string
	for _, kp := range types.KnownProbes {
		if p.enabled[kp.Name] {
			names = append(names, kp.Name)
		}
	}
	return names
}
