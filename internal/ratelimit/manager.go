package ratelimit

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const redisBreakerDuration = 30 * time.Second

// SettingsProvider supplies the latest settings snapshot.
type SettingsProvider func() SettingsConfig

// RedisClientFactory constructs a Redis client for the given options.
type RedisClientFactory func(options *redis.Options) *redis.Client

type redisConfig struct {
	addr     string
	password string
	prefix   string
	db       int
}

// Manager selects a cooldown backend and answers IsRateLimited.
// Redis is used when enabled and reachable; otherwise the in-memory ledger.
type Manager struct {
	provider       SettingsProvider
	nowFn          func() time.Time
	memory         *CooldownLimiter
	newRedisClient RedisClientFactory
	mu             sync.Mutex
	redisLimiter   *RedisCooldown
	redisCfg       redisConfig
	breakerUntil   time.Time
}

// NewManager constructs a Manager with default dependencies when nil.
func NewManager(memory *CooldownLimiter, provider SettingsProvider, nowFn func() time.Time, newRedisClient RedisClientFactory) *Manager {
	if provider == nil {
		provider = func() SettingsConfig { return LoadSettingsConfig(SettingsConfig{}) }
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	if newRedisClient == nil {
		newRedisClient = redis.NewClient
	}
	if memory == nil {
		memory = NewCooldownLimiter(CooldownOptions{Now: nowFn})
	}
	return &Manager{
		provider:       provider,
		nowFn:          nowFn,
		memory:         memory,
		newRedisClient: newRedisClient,
	}
}

// Memory returns the in-memory ledger used as primary or fallback backend.
func (m *Manager) Memory() *CooldownLimiter {
	if m == nil {
		return nil
	}
	return m.memory
}

// IsRateLimited reports whether key is still inside cooldown, recording the
// action when it is not. Backend failures never surface; the memory ledger answers instead.
func (m *Manager) IsRateLimited(ctx context.Context, key string, cooldown time.Duration) bool {
	if m == nil || key == "" {
		return false
	}
	now := m.nowFn()
	cfg := m.provider()

	if cfg.RedisEnabled {
		if limited, ok := m.checkRedis(ctx, key, cooldown, now, cfg); ok {
			return limited
		}
	}
	limited, _ := m.memory.Check(ctx, key, cooldown, now)
	return limited
}

// Close releases the Redis client, if any.
func (m *Manager) Close() error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.redisLimiter == nil {
		return nil
	}
	errClose := m.redisLimiter.Close()
	m.redisLimiter = nil
	m.redisCfg = redisConfig{}
	return errClose
}

func (m *Manager) checkRedis(ctx context.Context, key string, cooldown time.Duration, now time.Time, cfg SettingsConfig) (bool, bool) {
	if ctx == nil {
		ctx = context.Background()
	}
	if m.isBreakerActive(now) {
		return false, false
	}
	limiter, errEnsure := m.ensureRedis(ctx, cfg)
	if errEnsure != nil {
		m.tripBreaker(errEnsure, now)
		return false, false
	}
	if limiter == nil {
		return false, false
	}
	limited, errCheck := limiter.Check(ctx, key, cooldown, now)
	if errCheck != nil {
		m.tripBreaker(errCheck, now)
		return false, false
	}
	return limited, true
}

func (m *Manager) isBreakerActive(now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.breakerUntil.IsZero() {
		return false
	}
	if now.Before(m.breakerUntil) {
		return true
	}
	m.breakerUntil = time.Time{}
	return false
}

func (m *Manager) tripBreaker(err error, now time.Time) {
	if err == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.breakerUntil.IsZero() && now.Before(m.breakerUntil) {
		return
	}
	m.breakerUntil = now.Add(redisBreakerDuration)
	log.WithError(err).Warn("rate limit: redis unavailable, falling back to memory")
}

func (m *Manager) ensureRedis(ctx context.Context, cfg SettingsConfig) (*RedisCooldown, error) {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis: missing address")
	}

	nextCfg := redisConfig{
		addr:     addr,
		password: strings.TrimSpace(cfg.RedisPassword),
		prefix:   strings.TrimSpace(cfg.RedisPrefix),
		db:       cfg.RedisDB,
	}
	if nextCfg.db < 0 {
		nextCfg.db = 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.redisLimiter != nil && m.redisCfg == nextCfg {
		return m.redisLimiter, nil
	}
	if m.redisLimiter != nil {
		_ = m.redisLimiter.Close()
		m.redisLimiter = nil
	}

	client := m.newRedisClient(&redis.Options{
		Addr:     nextCfg.addr,
		Password: nextCfg.password,
		DB:       nextCfg.db,
	})
	ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if errPing := client.Ping(ctxPing).Err(); errPing != nil {
		_ = client.Close()
		return nil, errPing
	}
	m.redisLimiter = NewRedisCooldown(client, nextCfg.prefix)
	m.redisLimiter.defaultCooldown = m.memory.defaultCooldown
	m.redisLimiter.retention = m.memory.retention
	m.redisCfg = nextCfg
	return m.redisLimiter, nil
}
