package quota

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/entitlekit/pkg/entitlement"
)

// counterTTLSeconds keeps a day's counter around for two days after its
// first use. Correctness does not depend on expiry - the day is part of the
// key, so a new day always starts at zero - the TTL only stops dead keys
// from accumulating.
const counterTTLSeconds = 2 * 24 * 60 * 60

// incrementScript performs the conditional check-and-increment server-side
// so the read and the write cannot interleave with another client.
// Returns {count, granted}.
var incrementScript = redis.NewScript(`
local current = tonumber(redis.call("GET", KEYS[1]) or "0")
local limit = tonumber(ARGV[1])
if current >= limit then
	return {current, 0}
end
current = redis.call("INCR", KEYS[1])
if current == 1 then
	redis.call("EXPIRE", KEYS[1], ARGV[2])
end
return {current, 1}
`)

// RedisStore is a Redis-backed usage counter store for deployments that
// keep hot counters out of the primary database. It satisfies UsageStore
// and matches the semantics of entitlement.Store.IncrementUsage.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore creates a Redis-backed usage store.
// Panics on a nil client to fail fast during initialization.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	if client == nil {
		panic("quota: redis client is required")
	}
	return &RedisStore{client: client, prefix: "quota:usage"}
}

// IncrementUsage atomically increments the (userID, day) counter while it
// is below limit.
func (s *RedisStore) IncrementUsage(ctx context.Context, userID uuid.UUID, day entitlement.Day, limit int64) (int64, bool, error) {
	if userID == uuid.Nil {
		return 0, false, entitlement.ErrUserIDRequired
	}
	if limit <= 0 {
		return 0, false, nil
	}

	key := fmt.Sprintf("%s:%s:%s", s.prefix, userID, day)
	res, err := incrementScript.Run(ctx, s.client, []string{key}, limit, counterTTLSeconds).Int64Slice()
	if err != nil {
		return 0, false, err
	}
	if len(res) != 2 {
		return 0, false, fmt.Errorf("quota: unexpected script result %v", res)
	}

	return res[0], res[1] == 1, nil
}
