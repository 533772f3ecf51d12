// Package config loads the update worker's configuration via Viper,
// following the same load/override pattern the teacher repository
// uses for its own core configuration.
package config

import (
	"strings"

	"github.com/spf13/viper"

	"github.com/opswatch/updateworker/errors"
)

// Config is the full set of options recognised by the worker (§6).
type Config struct {
	CarbonServer string `mapstructure:"carbon_server"`
	CarbonPort   int    `mapstructure:"carbon_port"`
	CarbonPrefix string `mapstructure:"carbon_prefix"`

	DBDir           string   `mapstructure:"dbdir"`
	RRDCachedSocket string   `mapstructure:"rrdcached_socket"`
	LimitServices   []string `mapstructure:"limit_services"`

	GraphDataSize string `mapstructure:"graph_data_size"`
	UpdateRate    string `mapstructure:"update_rate"`

	OldConfig struct {
		Version string `mapstructure:"version"`
	} `mapstructure:"oldconfig"`

	SessionTimeoutSeconds int `mapstructure:"session_timeout_seconds"`
	PluginTimeoutSeconds  int `mapstructure:"plugin_timeout_seconds"`
}

var globalConfig *Config
var viperInstance *viper.Viper

// SetDefaults establishes the built-in defaults, applied before any
// file or environment override.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("dbdir", "/var/lib/updateworker")
	v.SetDefault("carbon_port", 2003)
	v.SetDefault("graph_data_size", "normal")
	v.SetDefault("update_rate", "5m")
	v.SetDefault("session_timeout_seconds", 180)
	v.SetDefault("plugin_timeout_seconds", 30)
}

// initViper builds a process-wide Viper instance bound to the
// UPDATEWORKER_ environment prefix, with "." replaced by "_" so
// nested keys like oldconfig.version map to
// UPDATEWORKER_OLDCONFIG_VERSION.
func initViper() *viper.Viper {
	if viperInstance != nil {
		return viperInstance
	}

	v := viper.New()
	v.SetEnvPrefix("UPDATEWORKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	v.SetConfigName("updateworker")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/updateworker")
	_ = v.ReadInConfig() // absence of a config file is not an error; defaults + env apply

	viperInstance = v
	return v
}

// Load returns the process-wide configuration, building and caching it
// on first call.
func Load() (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}
	v := initViper()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal configuration")
	}
	globalConfig = &c
	return globalConfig, nil
}

// LoadFromFile loads configuration from a specific TOML file, bypassing
// the process-wide cache and environment binding — used by tests and
// by explicit `--config` invocations.
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %s", path)
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal config from %s", path)
	}
	return &c, nil
}

// Reset clears the cached configuration. Used by tests.
func Reset() {
	globalConfig = nil
	viperInstance = nil
}

// LimitSet returns LimitServices as a lookup set, or nil if no
// allowlist is configured (meaning every plugin is eligible).
func (c *Config) LimitSet() map[string]struct{} {
	if len(c.LimitServices) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(c.LimitServices))
	for _, name := range c.LimitServices {
		set[name] = struct{}{}
	}
	return set
}
