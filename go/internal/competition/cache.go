package competition

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "racetime:competition:"

// setIfNotOlder writes ARGV[1] under KEYS[1] unless the stored snapshot
// carries a higher version than ARGV[2]. ARGV[3] is the ttl in ms, 0 for none.
var setIfNotOlder = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if current then
  local ok, decoded = pcall(cjson.decode, current)
  if ok and type(decoded) == 'table' and tonumber(decoded.version) ~= nil
      and tonumber(decoded.version) > tonumber(ARGV[2]) then
    return 0
  end
end
if tonumber(ARGV[3]) > 0 then
  redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
else
  redis.call('SET', KEYS[1], ARGV[1])
end
return 1
`)

// RedisCache stores snapshots in Redis so that every gateway instance
// reads the same state after a transition.
type RedisCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedisCache creates a snapshot cache. A zero ttl keeps entries until
// they are overwritten or deleted.
func NewRedisCache(client redis.Cmdable, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

type cachedSnapshot struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Lifecycle  Lifecycle `json:"lifecycle"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Version    int64     `json:"version"`
}

func (c *RedisCache) Get(ctx context.Context, id int64) (Snapshot, bool, error) {
	data, err := c.client.Get(ctx, cacheKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("redis get: %w", err)
	}

	var cs cachedSnapshot
	if err := json.Unmarshal(data, &cs); err != nil {
		return Snapshot{}, false, fmt.Errorf("decode cached snapshot: %w", err)
	}
	if cs.ID != id || !cs.Lifecycle.Valid() {
		return Snapshot{}, false, fmt.Errorf("cached snapshot for competition %d is corrupt", id)
	}
	return Snapshot(cs), true, nil
}

// Set stores snap unless the cache already holds a newer version of it.
func (c *RedisCache) Set(ctx context.Context, snap Snapshot) error {
	data, err := json.Marshal(cachedSnapshot(snap))
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	err = setIfNotOlder.Run(ctx, c.client, []string{cacheKey(snap.ID)}, data, snap.Version, c.ttl.Milliseconds()).Err()
	if err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, id int64) error {
	if err := c.client.Del(ctx, cacheKey(id)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func cacheKey(id int64) string {
	return fmt.Sprintf("%s%d", cacheKeyPrefix, id)
}
