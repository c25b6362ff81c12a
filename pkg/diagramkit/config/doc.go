/*
Package config provides typed access to loosely typed maps and the
diagramkit service settings.

# Accessors

Config wraps a map[string]any (decoded YAML, JSON or TOML, or a node's data
bag) and returns defaults for missing keys or mismatched types:

	cfg := config.New(map[string]any{
	    "timeout": "30s",
	    "repository": map[string]any{"driver": "sqlite"},
	})

	timeout := cfg.Duration("timeout", 10*time.Second)  // 30s
	driver := cfg.String("repository.driver", "memory")  // "sqlite"
	missing := cfg.Int("retries", 3)                     // 3

Dotted keys walk nested maps. Int only converts a float64 without a
fractional part; JSON numbers decode as float64 and TOML integers as int64,
both are accepted.

# Files

FromFile picks a decoder by extension (.yaml, .yml, .json, .toml).
LoadSettingsFile layers a file over DefaultSettings:

	settings, err := config.LoadSettingsFile("diagramkit.toml")

# Thread Safety

Config is safe for concurrent reads. It does not copy the wrapped map.
*/
package config
