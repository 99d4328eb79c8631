package ratelimit

import (
	"strings"

	internalsettings "github.com/fixturedesk/leaddesk/internal/settings"
)

// SettingsConfig captures the Redis backend settings for cooldowns.
type SettingsConfig struct {
	RedisEnabled  bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}

// LoadSettingsConfig overlays DB settings on top of base.
func LoadSettingsConfig(base SettingsConfig) SettingsConfig {
	cfg := base
	if cfg.RedisPrefix == "" {
		cfg.RedisPrefix = internalsettings.DefaultRateLimitRedisPrefix
	}

	cfg.RedisEnabled = internalsettings.Bool(internalsettings.RateLimitRedisEnabledKey, cfg.RedisEnabled)
	cfg.RedisAddr = internalsettings.String(internalsettings.RateLimitRedisAddrKey, cfg.RedisAddr)
	cfg.RedisPassword = internalsettings.String(internalsettings.RateLimitRedisPasswordKey, cfg.RedisPassword)
	cfg.RedisDB = internalsettings.Int(internalsettings.RateLimitRedisDBKey, cfg.RedisDB)
	cfg.RedisPrefix = internalsettings.String(internalsettings.RateLimitRedisPrefixKey, cfg.RedisPrefix)

	cfg.RedisAddr = strings.TrimSpace(cfg.RedisAddr)
	cfg.RedisPassword = strings.TrimSpace(cfg.RedisPassword)
	cfg.RedisPrefix = strings.TrimSpace(cfg.RedisPrefix)
	if cfg.RedisPrefix == "" {
		cfg.RedisPrefix = internalsettings.DefaultRateLimitRedisPrefix
	}
	if cfg.RedisDB < 0 {
		cfg.RedisDB = 0
	}
	return cfg
}
