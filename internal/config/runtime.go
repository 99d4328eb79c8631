package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultPort              = 8318
	defaultLogDir            = "./logs"
	defaultRateCardExpiry    = 5 * time.Minute
	defaultCooldown          = time.Minute
	defaultRetention         = time.Hour
	defaultSweepInterval     = 5 * time.Minute
	defaultSheetsTimeout     = 15 * time.Second
	defaultSheetsInterval    = 30 * time.Minute
	defaultSheetsRPS         = 1.0
	defaultRedisPrefix       = "leaddesk:cd"
	defaultLockTTL           = 2 * time.Minute
	defaultFunctionCooldown  = time.Second
	defaultCORSAllowedOrigin = "*"
)

// CacheConfig controls in-process caches.
type CacheConfig struct {
	RateCardExpiry time.Duration `yaml:"rate-card-expiry"`
}

// RedisConfig is the connection used for distributed cooldowns and locks.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// RateLimitConfig controls the cooldown limiter.
type RateLimitConfig struct {
	Cooldown      time.Duration `yaml:"cooldown"`
	Retention     time.Duration `yaml:"retention"`
	SweepInterval time.Duration `yaml:"sweep-interval"`
	Redis         RedisConfig   `yaml:"redis"`
}

// SheetSource is a spreadsheet synced on a schedule.
type SheetSource struct {
	Name  string `yaml:"name"`
	URL   string `yaml:"url"`
	Range string `yaml:"range"`
	Kind  string `yaml:"kind"`
}

// SheetsConfig controls the spreadsheet client and syncer.
type SheetsConfig struct {
	APIKey            string        `yaml:"api-key"`
	Endpoint          string        `yaml:"endpoint"`
	Timeout           time.Duration `yaml:"timeout"`
	SyncInterval      time.Duration `yaml:"sync-interval"`
	RequestsPerSecond float64       `yaml:"requests-per-second"`
	LockTTL           time.Duration `yaml:"lock-ttl"`
	FunctionCooldown  time.Duration `yaml:"function-cooldown"`
	Sources           []SheetSource `yaml:"sources"`
}

// CORSConfig controls cross-origin access to the public API.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed-origins"`
}

// RuntimeConfig is everything the server reads from the config file besides
// the database DSN and JWT settings.
type RuntimeConfig struct {
	Port          int             `yaml:"port"`
	Debug         bool            `yaml:"debug"`
	LoggingToFile bool            `yaml:"logging-to-file"`
	LogDir        string          `yaml:"log-dir"`
	Cache         CacheConfig     `yaml:"cache"`
	RateLimit     RateLimitConfig `yaml:"rate-limit"`
	Sheets        SheetsConfig    `yaml:"sheets"`
	CORS          CORSConfig      `yaml:"cors"`
}

// LoadRuntimeConfig reads the runtime sections of the config file. A missing
// file yields defaults; a malformed one is an error.
func LoadRuntimeConfig(configPath string) (RuntimeConfig, error) {
	var cfg RuntimeConfig
	data, errRead := os.ReadFile(configPath)
	switch {
	case errRead == nil:
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
			return RuntimeConfig{}, fmt.Errorf("parse config file: %w", errUnmarshal)
		}
	case os.IsNotExist(errRead):
	default:
		return RuntimeConfig{}, fmt.Errorf("read config file: %w", errRead)
	}

	if key := strings.TrimSpace(os.Getenv(EnvSheetsAPIKey)); key != "" {
		cfg.Sheets.APIKey = key
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *RuntimeConfig) applyDefaults() {
	if c.Port <= 0 {
		c.Port = defaultPort
	}
	if strings.TrimSpace(c.LogDir) == "" {
		c.LogDir = defaultLogDir
	}
	if c.Cache.RateCardExpiry <= 0 {
		c.Cache.RateCardExpiry = defaultRateCardExpiry
	}
	if c.RateLimit.Cooldown <= 0 {
		c.RateLimit.Cooldown = defaultCooldown
	}
	if c.RateLimit.Retention <= 0 {
		c.RateLimit.Retention = defaultRetention
	}
	if c.RateLimit.SweepInterval <= 0 {
		c.RateLimit.SweepInterval = defaultSweepInterval
	}
	if strings.TrimSpace(c.RateLimit.Redis.Prefix) == "" {
		c.RateLimit.Redis.Prefix = defaultRedisPrefix
	}
	if c.Sheets.Timeout <= 0 {
		c.Sheets.Timeout = defaultSheetsTimeout
	}
	if c.Sheets.SyncInterval <= 0 {
		c.Sheets.SyncInterval = defaultSheetsInterval
	}
	if c.Sheets.RequestsPerSecond <= 0 {
		c.Sheets.RequestsPerSecond = defaultSheetsRPS
	}
	if c.Sheets.LockTTL <= 0 {
		c.Sheets.LockTTL = defaultLockTTL
	}
	if c.Sheets.FunctionCooldown < 0 {
		c.Sheets.FunctionCooldown = 0
	} else if c.Sheets.FunctionCooldown == 0 {
		c.Sheets.FunctionCooldown = defaultFunctionCooldown
	}
	origins := c.CORS.AllowedOrigins[:0]
	for _, origin := range c.CORS.AllowedOrigins {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	if len(origins) == 0 {
		origins = []string{defaultCORSAllowedOrigin}
	}
	c.CORS.AllowedOrigins = origins
}
