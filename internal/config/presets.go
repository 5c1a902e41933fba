package config

import "sort"

var Presets = map[string]*Config{
	"stable_spiral": {
		Name: "stable_spiral", D1: 0.1, D2: 0.1, Beta: 1.0,
		L: 20, N: 128, TStart: 0, TEnd: 200, Dt: 0.5, Arms: 1,
	},
	"turbulent_spiral": {
		Name: "turbulent_spiral", D1: 0.1, D2: 0.02, Beta: 1.5,
		L: 40, N: 256, TStart: 0, TEnd: 300, Dt: 0.5, Arms: 1,
	},
	"triple_spiral": {
		Name: "triple_spiral", D1: 0.1, D2: 0.1, Beta: 1.0,
		L: 30, N: 128, TStart: 0, TEnd: 200, Dt: 0.5, Arms: 3,
	},
	"quick": {
		Name: "quick", D1: 0.1, D2: 0.1, Beta: 1.0,
		L: 20, N: 32, TStart: 0, TEnd: 10, Dt: 0.5, Arms: 1,
	},
}

// GetPreset returns a fresh copy of the named preset with every
// unspecified option at its default, or nil when the name is unknown.
func GetPreset(name string) *Config {
	p, ok := Presets[name]
	if !ok {
		return nil
	}

	cfg := DefaultConfig()
	cfg.Name = p.Name
	cfg.D1, cfg.D2, cfg.Beta = p.D1, p.D2, p.Beta
	cfg.L, cfg.N = p.L, p.N
	cfg.TStart, cfg.TEnd, cfg.Dt = p.TStart, p.TEnd, p.Dt
	cfg.Arms = p.Arms
	return cfg
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
