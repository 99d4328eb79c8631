package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables that override the config file.
const (
	EnvConfigPath   = "CONFIG_PATH"
	EnvDBConnection = "DB_CONNECTION"
	EnvJWTSecret    = "JWT_SECRET"
	EnvJWTExpiry    = "JWT_EXPIRY"
	EnvSheetsAPIKey = "SHEETS_API_KEY"
)

const defaultConfigPath = "./config.yaml"

// defaultJWTExpiry applies when neither the file nor JWT_EXPIRY sets a usable expiry.
const defaultJWTExpiry = 30 * 24 * time.Hour

// ErrMissingDatabaseDSN indicates neither DB_CONNECTION nor the config file provides a DSN.
var ErrMissingDatabaseDSN = errors.New("missing database dsn (set `database-dsn` or `database.dsn` in config file)")

// AppConfig locates the config file.
type AppConfig struct {
	ConfigPath string
}

// LoadFromEnv reads CONFIG_PATH.
func LoadFromEnv() (AppConfig, error) {
	return AppConfig{ConfigPath: ResolveConfigPath(os.Getenv(EnvConfigPath))}, nil
}

// ResolveConfigPath returns an absolute config path, defaulting to ./config.yaml.
func ResolveConfigPath(p string) string {
	trimmed := strings.TrimSpace(p)
	if trimmed == "" {
		trimmed = defaultConfigPath
	}
	if abs, err := filepath.Abs(trimmed); err == nil {
		return abs
	}
	return trimmed
}

// JWTConfig holds the admin token signing secret and lifetime.
type JWTConfig struct {
	Secret string        `yaml:"secret"`
	Expiry time.Duration `yaml:"expiry"`
}

// secretSections are the parts of config.yaml holding credentials. The
// init server writes `database-dsn`; hand-written files may nest it.
type secretSections struct {
	DatabaseDSN string `yaml:"database-dsn"`
	Database    struct {
		DSN string `yaml:"dsn"`
	} `yaml:"database"`
	JWT JWTConfig `yaml:"jwt"`
}

func (s secretSections) dsn() string {
	if dsn := strings.TrimSpace(s.DatabaseDSN); dsn != "" {
		return dsn
	}
	return strings.TrimSpace(s.Database.DSN)
}

func readSecretSections(configPath string) (secretSections, error) {
	var sections secretSections
	data, err := os.ReadFile(configPath)
	if err != nil {
		return sections, fmt.Errorf("read config file: %w", err)
	}
	if errUnmarshal := yaml.Unmarshal(data, &sections); errUnmarshal != nil {
		return sections, fmt.Errorf("parse config file: %w", errUnmarshal)
	}
	return sections, nil
}

// LoadDatabaseDSN returns DB_CONNECTION when set, otherwise the DSN from the
// config file.
func LoadDatabaseDSN(configPath string) (string, error) {
	if dsn := strings.TrimSpace(os.Getenv(EnvDBConnection)); dsn != "" {
		return dsn, nil
	}
	sections, err := readSecretSections(configPath)
	if err != nil {
		return "", err
	}
	if dsn := sections.dsn(); dsn != "" {
		return dsn, nil
	}
	return "", ErrMissingDatabaseDSN
}

// LoadJWTConfig merges the jwt section with JWT_SECRET and JWT_EXPIRY. An
// unreadable file is not an error; the environment may carry everything.
func LoadJWTConfig(configPath string) (JWTConfig, error) {
	result := JWTConfig{Expiry: defaultJWTExpiry}
	if sections, err := readSecretSections(configPath); err == nil {
		result = sections.JWT
	}

	if secret := strings.TrimSpace(os.Getenv(EnvJWTSecret)); secret != "" {
		result.Secret = secret
	}
	if raw := strings.TrimSpace(os.Getenv(EnvJWTExpiry)); raw != "" {
		if expiry, errParse := time.ParseDuration(raw); errParse == nil && expiry > 0 {
			result.Expiry = expiry
		}
	}
	if result.Expiry <= 0 {
		result.Expiry = defaultJWTExpiry
	}
	return result, nil
}
