package config

import "github.com/opswatch/updateworker/timespec"

// defaultUpdateRateSeconds is the conventional Munin fallback of five
// minutes, used only when no field, service, or global rate resolves.
const defaultUpdateRateSeconds = 300

// ResolveUpdateRate applies the field > service > global > built-in
// default precedence implied, but not spelled out, by
// NestedServiceConfig.global: a field-level "update_rate" wins, then a
// service-level one, then the worker-wide default, then five minutes.
func ResolveUpdateRate(global string, serviceConfig map[string]string, fieldConfig map[string]string) (seconds int64, aligned bool) {
	if fieldConfig != nil {
		if v, ok := fieldConfig["update_rate"]; ok {
			if s, a := timespec.ParseUpdateRate(v); s > 0 {
				return s, a
			}
		}
	}
	if serviceConfig != nil {
		if v, ok := serviceConfig["update_rate"]; ok {
			if s, a := timespec.ParseUpdateRate(v); s > 0 {
				return s, a
			}
		}
	}
	if global != "" {
		if s, a := timespec.ParseUpdateRate(global); s > 0 {
			return s, a
		}
	}
	return defaultUpdateRateSeconds, false
}

// ResolveGraphDataSize applies the same field > service > global
// precedence for the resolution-profile selector ("normal", "huge", or
// "custom <spec>").
func ResolveGraphDataSize(global string, serviceConfig map[string]string, fieldConfig map[string]string) string {
	if fieldConfig != nil {
		if v, ok := fieldConfig["graph_data_size"]; ok && v != "" {
			return v
		}
	}
	if serviceConfig != nil {
		if v, ok := serviceConfig["graph_data_size"]; ok && v != "" {
			return v
		}
	}
	if global != "" {
		return global
	}
	return "normal"
}
