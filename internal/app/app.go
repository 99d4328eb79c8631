package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/bsm/redislock"
	"github.com/fixturedesk/leaddesk/internal/cache"
	"github.com/fixturedesk/leaddesk/internal/config"
	"github.com/fixturedesk/leaddesk/internal/db"
	"github.com/fixturedesk/leaddesk/internal/http/api/admin"
	"github.com/fixturedesk/leaddesk/internal/http/api/front"
	"github.com/fixturedesk/leaddesk/internal/logging"
	"github.com/fixturedesk/leaddesk/internal/quote"
	"github.com/fixturedesk/leaddesk/internal/ratelimit"
	internalsettings "github.com/fixturedesk/leaddesk/internal/settings"
	"github.com/fixturedesk/leaddesk/internal/sheets"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, cfg config.AppConfig) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return err
	}
	return db.Migrate(conn.WithContext(ctx))
}

// RunServer boots the admin and public APIs with their background workers
// and blocks until ctx is cancelled.
func RunServer(ctx context.Context, cfg config.AppConfig) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	runtimeCfg, err := config.LoadRuntimeConfig(configPath)
	if err != nil {
		return err
	}
	logCloser, err := logging.Setup(logging.Options{
		Debug:  runtimeCfg.Debug,
		ToFile: runtimeCfg.LoggingToFile,
		Dir:    runtimeCfg.LogDir,
	})
	if err != nil {
		return err
	}
	defer closeQuietly("log file", logCloser)

	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return err
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}
	if errRefresh := internalsettings.Refresh(ctx, conn); errRefresh != nil {
		return errRefresh
	}
	jwtConfig, err := config.LoadJWTConfig(configPath)
	if err != nil {
		return err
	}

	initialized, errInit := HasAdminInitialized(conn)
	if errInit != nil {
		return errInit
	}
	var initState atomic.Bool
	initState.Store(initialized)

	memory := ratelimit.NewCooldownLimiter(ratelimit.CooldownOptions{
		DefaultCooldown: runtimeCfg.RateLimit.Cooldown,
		Retention:       runtimeCfg.RateLimit.Retention,
		SweepInterval:   runtimeCfg.RateLimit.SweepInterval,
	})
	memory.Start(ctx)
	defer memory.Stop()

	redisBase := ratelimit.SettingsConfig{
		RedisEnabled:  runtimeCfg.RateLimit.Redis.Enabled,
		RedisAddr:     runtimeCfg.RateLimit.Redis.Addr,
		RedisPassword: runtimeCfg.RateLimit.Redis.Password,
		RedisDB:       runtimeCfg.RateLimit.Redis.DB,
		RedisPrefix:   runtimeCfg.RateLimit.Redis.Prefix,
	}
	limiter := ratelimit.NewManager(memory, func() ratelimit.SettingsConfig {
		return ratelimit.LoadSettingsConfig(redisBase)
	}, nil, nil)
	defer closeQuietly("rate limiter", limiter)

	rates := cache.NewLoader(runtimeCfg.Cache.RateCardExpiry, nil, func(ctx context.Context) ([]quote.Rate, error) {
		return quote.LoadRates(ctx, conn)
	})

	adminDeps := admin.Deps{DB: conn, JWT: jwtConfig, Limiter: limiter, Invalidator: rates}
	frontDeps := front.Deps{
		DB:             conn,
		Rates:          rates,
		Limiter:        limiter,
		SheetCooldown:  runtimeCfg.Sheets.FunctionCooldown,
		AllowedOrigins: runtimeCfg.CORS.AllowedOrigins,
	}

	sheetClient, errClient := sheets.NewClient(ctx, sheets.ClientConfig{
		APIKey:            runtimeCfg.Sheets.APIKey,
		Endpoint:          runtimeCfg.Sheets.Endpoint,
		Timeout:           runtimeCfg.Sheets.Timeout,
		RequestsPerSecond: runtimeCfg.Sheets.RequestsPerSecond,
	})
	if errClient != nil {
		log.WithError(errClient).Warn("spreadsheet client unavailable, sheet features disabled")
	} else {
		frontDeps.Fetcher = sheetClient
		syncer, lockClient := buildSyncer(conn, sheetClient, runtimeCfg, rates)
		if lockClient != nil {
			defer closeQuietly("sync lock redis", lockClient)
		}
		if syncer != nil {
			syncer.Start(ctx)
			defer syncer.Stop()
			adminDeps.Syncer = syncer
		}
	}

	if !runtimeCfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger())
	admin.RegisterAdminRoutes(engine, adminDeps)
	front.RegisterFrontRoutes(engine, frontDeps)
	registerInitRoutes(engine, conn, dsn, &initState)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", runtimeCfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		log.Infof("starting leaddesk on %s with config=%s", srv.Addr, configPath)
		if errListen := srv.ListenAndServe(); errListen != nil && !errors.Is(errListen, http.ErrServerClosed) {
			serveErr <- errListen
		}
		close(serveErr)
	}()

	select {
	case errServe := <-serveErr:
		return errServe
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if errShutdown := srv.Shutdown(shutdownCtx); errShutdown != nil {
		return fmt.Errorf("shutdown: %w", errShutdown)
	}
	log.Info("leaddesk stopped")
	return nil
}

// buildSyncer returns nil when no sources are configured. The Redis client,
// when one is created for the sync lock, must be closed by the caller.
func buildSyncer(conn *gorm.DB, fetcher sheets.Fetcher, runtimeCfg config.RuntimeConfig, rates *cache.Loader[[]quote.Rate]) (*sheets.Syncer, *redis.Client) {
	if len(runtimeCfg.Sheets.Sources) == 0 {
		return nil, nil
	}
	sources := make([]sheets.Source, 0, len(runtimeCfg.Sheets.Sources))
	for _, src := range runtimeCfg.Sheets.Sources {
		sources = append(sources, sheets.Source{
			Name:  strings.TrimSpace(src.Name),
			URL:   strings.TrimSpace(src.URL),
			Range: strings.TrimSpace(src.Range),
			Kind:  strings.TrimSpace(src.Kind),
		})
	}
	opts := []sheets.SyncerOption{
		sheets.WithInterval(runtimeCfg.Sheets.SyncInterval),
		sheets.WithImportHook(func(source string, result sheets.ImportResult) {
			log.WithFields(log.Fields{
				"source":   source,
				"imported": result.Imported,
				"skipped":  result.Skipped,
			}).Info("rate cards imported from sheet")
			rates.Invalidate()
		}),
	}
	var client *redis.Client
	if redisCfg := runtimeCfg.RateLimit.Redis; redisCfg.Enabled && strings.TrimSpace(redisCfg.Addr) != "" {
		client = redis.NewClient(&redis.Options{
			Addr:     strings.TrimSpace(redisCfg.Addr),
			Password: redisCfg.Password,
			DB:       redisCfg.DB,
		})
		opts = append(opts, sheets.WithLocker(redislock.New(client), runtimeCfg.Sheets.LockTTL))
	}
	return sheets.NewSyncer(conn, fetcher, sources, opts...), client
}

// requestLogger logs one line per request through logrus.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		entry := log.WithFields(log.Fields{
			"status":  c.Writer.Status(),
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"latency": time.Since(start).String(),
			"client":  c.ClientIP(),
		})
		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			entry.Error("request failed")
		case status >= http.StatusBadRequest:
			entry.Warn("request rejected")
		default:
			entry.Debug("request served")
		}
	}
}

func closeQuietly(name string, closer io.Closer) {
	if closer == nil {
		return
	}
	if errClose := closer.Close(); errClose != nil {
		log.WithError(errClose).Warnf("close %s", name)
	}
}
