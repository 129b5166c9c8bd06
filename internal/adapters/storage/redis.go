package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alejandrodnm/predictstats/internal/ports"
)

// RedisStore guarda cada blob como un string bajo prefix+key, sin TTL. La
// fecha de actualización va en una key hermana (prefix+key+":updated").
type RedisStore struct {
	Client *redis.Client
	prefix string
}

var (
	_ ports.BlobStore  = (*RedisStore)(nil)
	_ ports.BlobLister = (*RedisStore)(nil)
)

const updatedSuffix = ":updated"

func NewRedisStore(opt *redis.Options, prefix string) *RedisStore {
	return &RedisStore{Client: redis.NewClient(opt), prefix: prefix}
}

// Ping comprueba la conexión al arrancar.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("storage.RedisStore.Ping: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := s.Client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("storage.RedisStore.Get: %s: %w", key, err)
	}
	return b, true, nil
}

func (s *RedisStore) Put(ctx context.Context, key string, data []byte) error {
	_, err := s.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.prefix+key, data, 0)
		pipe.Set(ctx, s.prefix+key+updatedSuffix, time.Now().UTC().Format(time.RFC3339Nano), 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("storage.RedisStore.Put: %s: %w", key, err)
	}
	return nil
}

// List recorre las keys con SCAN; nunca KEYS, que bloquea el servidor.
func (s *RedisStore) List(ctx context.Context) ([]ports.BlobInfo, error) {
	var out []ports.BlobInfo
	iter := s.Client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		full := iter.Val()
		if strings.HasSuffix(full, updatedSuffix) {
			continue
		}
		key := strings.TrimPrefix(full, s.prefix)
		size, err := s.Client.StrLen(ctx, full).Result()
		if err != nil {
			return nil, fmt.Errorf("storage.RedisStore.List: strlen %s: %w", key, err)
		}
		info := ports.BlobInfo{Key: key, Size: int(size), ContentType: ContentType(key)}
		if ts, err := s.Client.Get(ctx, full+updatedSuffix).Result(); err == nil {
			info.UpdatedAt, _ = time.Parse(time.RFC3339Nano, ts)
		}
		out = append(out, info)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("storage.RedisStore.List: scan: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *RedisStore) Close() error {
	return s.Client.Close()
}
