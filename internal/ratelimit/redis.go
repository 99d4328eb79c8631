package ratelimit

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// cooldownScript mirrors CooldownLimiter.Check: the stored value is the last
// accepted action in unix millis and the window comes from the caller, so a
// later call with a different cooldown is judged against its own window.
// ARGV: now, cooldown, retention (all milliseconds).
var cooldownScript = redis.NewScript(`
local last = redis.call('GET', KEYS[1])
if last and (tonumber(ARGV[1]) - tonumber(last)) < tonumber(ARGV[2]) then
  return 1
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
return 0
`)

// RedisCooldown implements the cooldown ledger on Redis. A Lua script reads
// the last accepted action and records the new one in a single round trip.
// Keys expire after the retention window, like a memory sweep.
type RedisCooldown struct {
	client          *redis.Client
	prefix          string
	defaultCooldown time.Duration
	retention       time.Duration
}

// NewRedisCooldown constructs a RedisCooldown with the memory ledger defaults.
func NewRedisCooldown(client *redis.Client, prefix string) *RedisCooldown {
	return &RedisCooldown{
		client:          client,
		prefix:          strings.TrimSpace(prefix),
		defaultCooldown: DefaultCooldown,
		retention:       DefaultRetention,
	}
}

// Check implements Backend. A non-positive cooldown takes the default.
func (l *RedisCooldown) Check(ctx context.Context, key string, cooldown time.Duration, now time.Time) (bool, error) {
	if key == "" || l == nil || l.client == nil {
		return false, nil
	}
	limited, errRun := cooldownScript.Run(ctx, l.client, []string{l.buildKey(key)}, l.scriptArgs(cooldown, now)...).Int()
	if errRun != nil {
		return false, errRun
	}
	return limited == 1, nil
}

func (l *RedisCooldown) scriptArgs(cooldown time.Duration, now time.Time) []any {
	if cooldown <= 0 {
		cooldown = l.defaultCooldown
	}
	if cooldown < time.Millisecond {
		cooldown = time.Millisecond
	}
	ttl := l.retention
	if ttl < cooldown {
		ttl = cooldown
	}
	return []any{now.UTC().UnixMilli(), cooldown.Milliseconds(), ttl.Milliseconds()}
}

// Close releases the Redis client.
func (l *RedisCooldown) Close() error {
	if l == nil || l.client == nil {
		return nil
	}
	return l.client.Close()
}

func (l *RedisCooldown) buildKey(key string) string {
	if l.prefix == "" {
		return key
	}
	return l.prefix + ":" + key
}
