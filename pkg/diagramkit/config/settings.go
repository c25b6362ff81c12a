package config

import (
	"fmt"
	"time"
)

// Repository drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

// Duplicate id policies for building a store from an array diagram.
const (
	DuplicateOverwrite = "overwrite"
	DuplicateReject    = "reject"
)

// Settings is the typed configuration of the CLI and the HTTP service.
type Settings struct {
	LogLevel        string
	Server          ServerSettings
	Repository      RepositorySettings
	Export          ExportSettings
	DuplicatePolicy string
}

// ServerSettings configures the HTTP conversion service.
type ServerSettings struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	MaxBodyBytes int
}

// RepositorySettings selects and configures diagram persistence.
type RepositorySettings struct {
	Driver    string
	Path      string
	RedisAddr string
	KeyPrefix string
	TTL       time.Duration
}

// ExportSettings tunes serializers.
type ExportSettings struct {
	// PositionGrid snaps light YAML positions to multiples of this many
	// pixels. Zero keeps exact positions.
	PositionGrid float64
}

// DefaultSettings returns the settings used when no file is given.
func DefaultSettings() Settings {
	return Settings{
		LogLevel: "info",
		Server: ServerSettings{
			Addr:         ":8080",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			MaxBodyBytes: 4 << 20,
		},
		Repository: RepositorySettings{
			Driver:    DriverMemory,
			Path:      "diagrams.db",
			RedisAddr: "localhost:6379",
			KeyPrefix: "diagramkit:",
		},
		DuplicatePolicy: DuplicateOverwrite,
	}
}

// LoadSettings overlays c onto DefaultSettings and validates the result.
//
// Recognized keys:
//
//	log.level
//	server.addr, server.read_timeout, server.write_timeout, server.max_body_bytes
//	repository.driver, repository.path, repository.redis_addr,
//	repository.key_prefix, repository.ttl
//	export.position_grid
//	store.duplicate_policy
func LoadSettings(c Config) (Settings, error) {
	s := DefaultSettings()

	s.LogLevel = c.String("log.level", s.LogLevel)

	s.Server.Addr = c.String("server.addr", s.Server.Addr)
	s.Server.ReadTimeout = c.Duration("server.read_timeout", s.Server.ReadTimeout)
	s.Server.WriteTimeout = c.Duration("server.write_timeout", s.Server.WriteTimeout)
	s.Server.MaxBodyBytes = c.Int("server.max_body_bytes", s.Server.MaxBodyBytes)

	repo := c.Sub("repository")
	s.Repository.Driver = repo.String("driver", s.Repository.Driver)
	s.Repository.Path = repo.String("path", s.Repository.Path)
	s.Repository.RedisAddr = repo.String("redis_addr", s.Repository.RedisAddr)
	s.Repository.KeyPrefix = repo.String("key_prefix", s.Repository.KeyPrefix)
	s.Repository.TTL = repo.Duration("ttl", s.Repository.TTL)

	s.Export.PositionGrid = c.Float("export.position_grid", s.Export.PositionGrid)
	s.DuplicatePolicy = c.String("store.duplicate_policy", s.DuplicatePolicy)

	switch s.Repository.Driver {
	case DriverMemory, DriverSQLite, DriverRedis:
	default:
		return Settings{}, fmt.Errorf("unknown repository driver %q", s.Repository.Driver)
	}
	switch s.DuplicatePolicy {
	case DuplicateOverwrite, DuplicateReject:
	default:
		return Settings{}, fmt.Errorf("unknown duplicate policy %q", s.DuplicatePolicy)
	}
	if s.Export.PositionGrid < 0 {
		return Settings{}, fmt.Errorf("export.position_grid must not be negative")
	}
	return s, nil
}

// LoadSettingsFile reads path with FromFile and applies LoadSettings.
// An empty path returns DefaultSettings.
func LoadSettingsFile(path string) (Settings, error) {
	if path == "" {
		return DefaultSettings(), nil
	}
	c, err := FromFile(path)
	if err != nil {
		return Settings{}, err
	}
	return LoadSettings(c)
}
