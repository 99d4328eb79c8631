package app

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5"
)

// initPrefill describes the configured database without revealing secrets.
type initPrefill struct {
	DatabaseType        string `json:"database_type"`
	DatabaseHost        string `json:"database_host,omitempty"`
	DatabasePort        int    `json:"database_port,omitempty"`
	DatabaseUser        string `json:"database_user,omitempty"`
	DatabaseName        string `json:"database_name,omitempty"`
	DatabaseSSLMode     string `json:"database_ssl_mode,omitempty"`
	DatabasePath        string `json:"database_path,omitempty"`
	DatabasePasswordSet bool   `json:"database_password_set"`
}

func initPrefillFromDSN(dsn string) (initPrefill, error) {
	trimmed := strings.TrimSpace(dsn)
	if trimmed == "" {
		return initPrefill{}, fmt.Errorf("empty dsn")
	}
	if strings.HasPrefix(strings.ToLower(trimmed), "file:") {
		path, _, _ := strings.Cut(trimmed[len("file:"):], "?")
		return initPrefill{DatabaseType: "sqlite", DatabasePath: strings.TrimSpace(path)}, nil
	}

	pgCfg, errParse := pgx.ParseConfig(trimmed)
	if errParse != nil {
		return initPrefill{}, fmt.Errorf("parse dsn: %w", errParse)
	}
	return initPrefill{
		DatabaseType:        "postgres",
		DatabaseHost:        pgCfg.Host,
		DatabasePort:        int(pgCfg.Port),
		DatabaseUser:        pgCfg.User,
		DatabaseName:        pgCfg.Database,
		DatabaseSSLMode:     sslModeOf(trimmed),
		DatabasePasswordSet: pgCfg.Password != "",
	}, nil
}

// sslModeOf reads sslmode from a URL or keyword/value DSN.
func sslModeOf(dsn string) string {
	if u, err := url.Parse(dsn); err == nil && u.Scheme != "" {
		if mode := strings.TrimSpace(u.Query().Get("sslmode")); mode != "" {
			return mode
		}
		return "prefer"
	}
	for _, field := range strings.Fields(dsn) {
		if value, ok := strings.CutPrefix(field, "sslmode="); ok {
			return value
		}
	}
	return "prefer"
}
