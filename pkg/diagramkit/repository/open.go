package repository

import (
	"context"
	"fmt"

	"github.com/randalmurphal/diagramkit/pkg/diagramkit/config"
)

// Open builds the store selected by settings.Driver.
func Open(ctx context.Context, settings config.RepositorySettings, opts ...Option) (Store, error) {
	switch settings.Driver {
	case config.DriverMemory, "":
		return NewMemoryStore(opts...), nil
	case config.DriverSQLite:
		s, err := NewSQLiteStore(settings.Path, opts...)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.DriverRedis:
		opts = append([]Option{WithKeyPrefix(settings.KeyPrefix), WithTTL(settings.TTL)}, opts...)
		s, err := OpenRedis(ctx, settings.RedisAddr, opts...)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown repository driver %q", settings.Driver)
	}
}
