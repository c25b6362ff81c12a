package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/diagramkit/pkg/diagramkit/config"
)

// TestString verifies string extraction with defaults and dotted paths.
func TestString(t *testing.T) {
	tests := []struct {
		name       string
		data       map[string]any
		key        string
		defaultVal string
		want       string
	}{
		{"key exists", map[string]any{"name": "alice"}, "name", "default", "alice"},
		{"key missing", map[string]any{"other": "value"}, "name", "default", "default"},
		{"empty string", map[string]any{"name": ""}, "name", "default", ""},
		{"wrong type int", map[string]any{"name": 123}, "name", "default", "default"},
		{"nil map", nil, "name", "default", "default"},
		{"dotted path", map[string]any{"repository": map[string]any{"driver": "redis"}}, "repository.driver", "memory", "redis"},
		{"dotted path yaml map", map[string]any{"repository": map[any]any{"driver": "sqlite"}}, "repository.driver", "memory", "sqlite"},
		{"literal dotted key wins", map[string]any{"a.b": "literal", "a": map[string]any{"b": "nested"}}, "a.b", "", "literal"},
		{"dotted path through scalar", map[string]any{"a": "x"}, "a.b", "default", "default"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.New(tt.data)
			assert.Equal(t, tt.want, cfg.String(tt.key, tt.defaultVal))
		})
	}
}

// TestDuration verifies duration extraction with various input types.
func TestDuration(t *testing.T) {
	tests := []struct {
		name string
		val  any
		want time.Duration
	}{
		{"string", "30s", 30 * time.Second},
		{"compound string", "1h30m", 90 * time.Minute},
		{"invalid string", "soon", 10 * time.Second},
		{"int seconds", 5, 5 * time.Second},
		{"int64 seconds", int64(7), 7 * time.Second},
		{"float seconds", 1.5, 1500 * time.Millisecond},
		{"duration", 2 * time.Minute, 2 * time.Minute},
		{"bool", true, 10 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.New(map[string]any{"timeout": tt.val})
			assert.Equal(t, tt.want, cfg.Duration("timeout", 10*time.Second))
		})
	}
}

// TestInt verifies integer extraction and float truncation rules.
func TestInt(t *testing.T) {
	tests := []struct {
		name string
		val  any
		want int
	}{
		{"int", 42, 42},
		{"int64", int64(42), 42},
		{"whole float", 42.0, 42},
		{"fractional float", 42.5, -1},
		{"string", "42", -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.New(map[string]any{"n": tt.val})
			assert.Equal(t, tt.want, cfg.Int("n", -1))
		})
	}
}

// TestFloat verifies float extraction from numeric types.
func TestFloat(t *testing.T) {
	tests := []struct {
		name string
		val  any
		want float64
	}{
		{"float64", 0.7, 0.7},
		{"int", 2, 2},
		{"int64", int64(3), 3},
		{"string", "0.7", -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.New(map[string]any{"f": tt.val})
			assert.InDelta(t, tt.want, cfg.Float("f", -1), 1e-9)
		})
	}
}

func TestBoolAndStringSlice(t *testing.T) {
	cfg := config.New(map[string]any{
		"on":    true,
		"off":   "false",
		"tags":  []any{"a", "b"},
		"mixed": []any{"a", 1},
		"typed": []string{"x"},
	})

	assert.True(t, cfg.Bool("on", false))
	assert.True(t, cfg.Bool("off", true), "non-bool falls back to default")
	assert.Equal(t, []string{"a", "b"}, cfg.StringSlice("tags", nil))
	assert.Equal(t, []string{"d"}, cfg.StringSlice("mixed", []string{"d"}))
	assert.Equal(t, []string{"x"}, cfg.StringSlice("typed", nil))
	assert.Nil(t, cfg.StringSlice("missing", nil))
}

func TestSubAndHas(t *testing.T) {
	cfg := config.New(map[string]any{
		"server": map[string]any{"addr": ":9000"},
		"flat":   1,
	})

	assert.Equal(t, ":9000", cfg.Sub("server").String("addr", ""))
	assert.Empty(t, cfg.Sub("flat").Raw())
	assert.Empty(t, cfg.Sub("missing").Raw())
	assert.True(t, cfg.Has("server.addr"))
	assert.False(t, cfg.Has("server.port"))
	assert.Equal(t, 1, cfg.Any("flat", nil))
	assert.Equal(t, "d", cfg.Any("missing", "d"))
}

func TestFromDecoders(t *testing.T) {
	t.Run("yaml", func(t *testing.T) {
		cfg, err := config.FromYAML([]byte("server:\n  addr: \":1\"\nn: 3\n"))
		require.NoError(t, err)
		assert.Equal(t, ":1", cfg.String("server.addr", ""))
		assert.Equal(t, 3, cfg.Int("n", 0))
	})

	t.Run("json", func(t *testing.T) {
		cfg, err := config.FromJSON([]byte(`{"server":{"addr":":2"},"n":3}`))
		require.NoError(t, err)
		assert.Equal(t, ":2", cfg.String("server.addr", ""))
		assert.Equal(t, 3, cfg.Int("n", 0))
	})

	t.Run("toml", func(t *testing.T) {
		cfg, err := config.FromTOML([]byte("n = 3\n[server]\naddr = \":3\"\n"))
		require.NoError(t, err)
		assert.Equal(t, ":3", cfg.String("server.addr", ""))
		assert.Equal(t, 3, cfg.Int("n", 0))
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := config.FromYAML([]byte("a: [unclosed"))
		assert.Error(t, err)
		_, err = config.FromJSON([]byte("{"))
		assert.Error(t, err)
		_, err = config.FromTOML([]byte("= nope"))
		assert.Error(t, err)
	})
}

func TestFromFile(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		file    string
		content string
		wantErr bool
	}{
		{"yaml", "c.yaml", "log:\n  level: debug\n", false},
		{"yml upper case", "c.YML", "log:\n  level: debug\n", false},
		{"json", "c.json", `{"log":{"level":"debug"}}`, false},
		{"toml", "c.toml", "[log]\nlevel = \"debug\"\n", false},
		{"unknown extension", "c.ini", "level=debug", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.file)
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))

			cfg, err := config.FromFile(path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "debug", cfg.String("log.level", ""))
		})
	}

	t.Run("missing file", func(t *testing.T) {
		_, err := config.FromFile(filepath.Join(dir, "nope.yaml"))
		assert.Error(t, err)
	})
}

func TestLoadSettings(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		s, err := config.LoadSettings(config.New(nil))
		require.NoError(t, err)
		assert.Equal(t, config.DefaultSettings(), s)
	})

	t.Run("overrides", func(t *testing.T) {
		cfg, err := config.FromTOML([]byte(`
[log]
level = "debug"

[server]
addr = ":9999"
read_timeout = "3s"

[repository]
driver = "redis"
redis_addr = "cache:6379"
ttl = "1h"

[export]
position_grid = 10

[store]
duplicate_policy = "reject"
`))
		require.NoError(t, err)

		s, err := config.LoadSettings(cfg)
		require.NoError(t, err)
		assert.Equal(t, "debug", s.LogLevel)
		assert.Equal(t, ":9999", s.Server.Addr)
		assert.Equal(t, 3*time.Second, s.Server.ReadTimeout)
		assert.Equal(t, config.DriverRedis, s.Repository.Driver)
		assert.Equal(t, "cache:6379", s.Repository.RedisAddr)
		assert.Equal(t, time.Hour, s.Repository.TTL)
		assert.InDelta(t, 10.0, s.Export.PositionGrid, 1e-9)
		assert.Equal(t, config.DuplicateReject, s.DuplicatePolicy)
	})

	tests := []struct {
		name string
		data map[string]any
	}{
		{"bad driver", map[string]any{"repository": map[string]any{"driver": "etcd"}}},
		{"bad policy", map[string]any{"store": map[string]any{"duplicate_policy": "merge"}}},
		{"negative grid", map[string]any{"export": map[string]any{"position_grid": -1.0}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.LoadSettings(config.New(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestLoadSettingsFile(t *testing.T) {
	s, err := config.LoadSettingsFile("")
	require.NoError(t, err)
	assert.Equal(t, config.DefaultSettings(), s)

	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("repository:\n  driver: sqlite\n  path: /tmp/x.db\n"), 0o600))
	s, err = config.LoadSettingsFile(path)
	require.NoError(t, err)
	assert.Equal(t, config.DriverSQLite, s.Repository.Driver)
	assert.Equal(t, "/tmp/x.db", s.Repository.Path)
}
