package repository

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/randalmurphal/diagramkit/pkg/diagramkit"
)

// Hash fields of a stored diagram.
const (
	fieldData     = "data"
	fieldName     = "name"
	fieldModified = "modified"
	fieldSize     = "size"
)

// RedisStore persists diagrams in Redis. Each diagram is a hash under
// {prefix}diagram:{id}; the set {prefix}diagrams indexes the ids.
//
// With WithTTL the hashes expire on their own. Ids whose hash is gone are
// pruned from the index by List.
type RedisStore struct {
	client redis.UniversalClient
	owned  bool
	opts   options

	mu     sync.RWMutex
	closed bool
}

// NewRedisStore wraps an existing client. The caller keeps ownership of
// client; Close does not close it.
func NewRedisStore(client redis.UniversalClient, opts ...Option) *RedisStore {
	return &RedisStore{client: client, opts: buildOptions(opts)}
}

// OpenRedis connects to addr and verifies the connection with PING.
// The returned store closes its client on Close.
func OpenRedis(ctx context.Context, addr string, opts ...Option) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", addr, err)
	}
	s := NewRedisStore(client, opts...)
	s.owned = true
	return s, nil
}

func (s *RedisStore) diagramKey(id diagramkit.DiagramID) string {
	return s.opts.keyPrefix + "diagram:" + string(id)
}

func (s *RedisStore) indexKey() string {
	return s.opts.keyPrefix + "diagrams"
}

func (s *RedisStore) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Save implements Store.
func (s *RedisStore) Save(ctx context.Context, id diagramkit.DiagramID, d diagramkit.Diagram) error {
	data, name, err := s.opts.encode(id, d)
	if err != nil {
		return err
	}
	if s.isClosed() {
		return ErrStoreClosed
	}

	key := s.diagramKey(id)
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key,
		fieldData, data,
		fieldName, name,
		fieldModified, time.Now().UTC().Format(time.RFC3339Nano),
		fieldSize, len(data),
	)
	if s.opts.ttl > 0 {
		pipe.Expire(ctx, key, s.opts.ttl)
	}
	pipe.SAdd(ctx, s.indexKey(), string(id))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save diagram: %w", err)
	}
	return nil
}

// Load implements Store.
func (s *RedisStore) Load(ctx context.Context, id diagramkit.DiagramID) (diagramkit.Diagram, error) {
	if s.isClosed() {
		return diagramkit.Diagram{}, ErrStoreClosed
	}

	data, err := s.client.HGet(ctx, s.diagramKey(id), fieldData).Bytes()
	if errors.Is(err, redis.Nil) {
		return diagramkit.Diagram{}, ErrNotFound
	}
	if err != nil {
		return diagramkit.Diagram{}, fmt.Errorf("load diagram: %w", err)
	}
	return s.opts.decode(id, data)
}

// List implements Store.
func (s *RedisStore) List(ctx context.Context) ([]Info, error) {
	if s.isClosed() {
		return nil, ErrStoreClosed
	}

	ids, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list diagrams: %w", err)
	}
	slices.Sort(ids)

	pipe := s.client.Pipeline()
	cmds := make([]*redis.SliceCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HMGet(ctx, s.diagramKey(diagramkit.DiagramID(id)), fieldName, fieldModified, fieldSize)
	}
	if len(ids) > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, fmt.Errorf("list diagrams: %w", err)
		}
	}

	infos := []Info{}
	var stale []any
	for i, cmd := range cmds {
		vals := cmd.Val()
		if len(vals) != 3 || vals[2] == nil {
			stale = append(stale, ids[i])
			continue
		}
		info := Info{ID: diagramkit.DiagramID(ids[i])}
		info.Name, _ = vals[0].(string)
		if m, ok := vals[1].(string); ok {
			info.Modified, _ = time.Parse(time.RFC3339Nano, m)
		}
		if sz, ok := vals[2].(string); ok {
			info.Size, _ = strconv.ParseInt(sz, 10, 64)
		}
		infos = append(infos, info)
	}

	if len(stale) > 0 {
		if err := s.client.SRem(ctx, s.indexKey(), stale...).Err(); err != nil {
			s.opts.logger.Warn("prune diagram index", "error", err)
		} else {
			s.opts.logger.Debug("pruned expired diagrams from index", "count", len(stale))
		}
	}
	return infos, nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, id diagramkit.DiagramID) error {
	if s.isClosed() {
		return ErrStoreClosed
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.diagramKey(id))
	pipe.SRem(ctx, s.indexKey(), string(id))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete diagram: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *RedisStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.owned {
		return s.client.Close()
	}
	return nil
}
