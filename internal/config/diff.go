package config

import "reflect"

// Changes lists the top-level sections that differ between two configs.
// restart holds the subset that a running process cannot pick up: only
// logging and poll are applied live.
func Changes(oldCfg, newCfg *Config) (changed, restart []string) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	sections := []struct {
		name string
		old  any
		new  any
		live bool
	}{
		{"practicum", oldCfg.Practicum, newCfg.Practicum, false},
		{"telegram", oldCfg.Telegram, newCfg.Telegram, false},
		{"poll", oldCfg.Poll, newCfg.Poll, true},
		{"logging", oldCfg.Logging, newCfg.Logging, true},
		{"storage", oldCfg.Storage, newCfg.Storage, false},
		{"ops", oldCfg.Ops, newCfg.Ops, false},
	}
	for _, s := range sections {
		if reflect.DeepEqual(s.old, s.new) {
			continue
		}
		changed = append(changed, s.name)
		if !s.live {
			restart = append(restart, s.name)
		}
	}
	return changed, restart
}
