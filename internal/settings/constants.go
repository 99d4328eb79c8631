package settings

// DB config keys and defaults for settings.
const (
	// SiteNameKey is the DB config key for the dashboard site name.
	SiteNameKey = "SITE_NAME"
	// DefaultSiteName is the fallback site name.
	DefaultSiteName = "LeadDesk"
	// QuotationPrefixKey controls the prefix of generated quotation numbers.
	QuotationPrefixKey = "QUOTATION_PREFIX"
	// DefaultQuotationPrefix is the fallback quotation number prefix.
	DefaultQuotationPrefix = "QT"
	// DefaultTaxPercentKey sets the tax applied when a quotation omits one.
	DefaultTaxPercentKey = "DEFAULT_TAX_PERCENT"
	// DefaultTaxPercent is the fallback tax percent.
	DefaultTaxPercent = "0"
	// ContactCooldownSecondsKey sets the per-email contact form cooldown.
	ContactCooldownSecondsKey = "CONTACT_COOLDOWN_SECONDS"
	// DefaultContactCooldownSeconds is the fallback contact cooldown.
	DefaultContactCooldownSeconds = 60
	// RateLimitRedisEnabledKey toggles Redis-backed cooldowns.
	RateLimitRedisEnabledKey = "RATE_LIMIT_REDIS_ENABLED"
	// RateLimitRedisAddrKey defines the Redis address for cooldowns.
	RateLimitRedisAddrKey = "RATE_LIMIT_REDIS_ADDR"
	// RateLimitRedisPasswordKey defines the Redis password for cooldowns.
	RateLimitRedisPasswordKey = "RATE_LIMIT_REDIS_PASSWORD"
	// RateLimitRedisDBKey defines the Redis DB index for cooldowns.
	RateLimitRedisDBKey = "RATE_LIMIT_REDIS_DB"
	// RateLimitRedisPrefixKey defines the Redis key prefix for cooldowns.
	RateLimitRedisPrefixKey = "RATE_LIMIT_REDIS_PREFIX"
	// DefaultRateLimitRedisPrefix is the fallback Redis key prefix.
	DefaultRateLimitRedisPrefix = "leaddesk:cd"
)
