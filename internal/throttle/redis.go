package throttle

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// reserveScript advances the shared last-slot timestamp atomically and
// returns the wait in milliseconds. KEYS[1] holds the slot, ARGV[1] is the
// interval in ms, ARGV[2] the caller's now in ms.
var reserveScript = redis.NewScript(`
local last = tonumber(redis.call('GET', KEYS[1]) or '0')
local interval = tonumber(ARGV[1])
local now = tonumber(ARGV[2])
local next = last + interval
if next < now then
  next = now
end
redis.call('SET', KEYS[1], next, 'PX', interval * 10)
return next - now
`)

// Redis is a cluster-wide limiter backed by a single Redis key, shared by
// every sender worker.
type Redis struct {
	rdb      *redis.Client
	key      string
	interval time.Duration
}

func NewRedis(rdb *redis.Client, key string, interval time.Duration) *Redis {
	if key == "" {
		key = "throttle:send:last"
	}
	return &Redis{rdb: rdb, key: key, interval: interval}
}

var _ Limiter = (*Redis)(nil)

func (r *Redis) Reserve(ctx context.Context) (time.Duration, error) {
	if r.interval <= 0 {
		return 0, nil
	}
	ms, err := reserveScript.Run(ctx, r.rdb, []string{r.key},
		r.interval.Milliseconds(), time.Now().UnixMilli()).Int64()
	if err != nil {
		return 0, err
	}
	return time.Duration(ms) * time.Millisecond, nil
}
