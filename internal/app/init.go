package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fixturedesk/leaddesk/internal/config"
	"github.com/fixturedesk/leaddesk/internal/db"
	"github.com/fixturedesk/leaddesk/internal/models"
	"github.com/fixturedesk/leaddesk/internal/security"
	internalsettings "github.com/fixturedesk/leaddesk/internal/settings"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrInitCompleted signals that initialization finished and the main server
// should start.
var ErrInitCompleted = errors.New("init completed")

const (
	defaultSQLitePath      = "leaddesk.db"
	minAdminPasswordLength = 6
)

// InitRequest contains parameters for initial system setup.
type InitRequest struct {
	DatabaseType     string `json:"database_type"`
	DatabaseHost     string `json:"database_host"`
	DatabasePort     int    `json:"database_port"`
	DatabaseUser     string `json:"database_user"`
	DatabasePassword string `json:"database_password"`
	DatabaseName     string `json:"database_name"`
	DatabasePath     string `json:"database_path"`
	DatabaseSSLMode  string `json:"database_ssl_mode"`
	SiteName         string `json:"site_name"`
	AdminUsername    string `json:"admin_username" binding:"required"`
	AdminPassword    string `json:"admin_password" binding:"required"`
}

// InitStatusResponse reports whether initialization is complete.
type InitStatusResponse struct {
	Initialized bool `json:"initialized"`
}

// ConfigExists reports whether the config file exists at the path.
func ConfigExists(configPath string) bool {
	_, err := os.Stat(configPath)
	return !os.IsNotExist(err)
}

// BuildDSN builds a database DSN from the init request.
func BuildDSN(req InitRequest) (string, error) {
	switch strings.ToLower(strings.TrimSpace(req.DatabaseType)) {
	case "", "postgres":
		sslMode := req.DatabaseSSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
			req.DatabaseUser, req.DatabasePassword, req.DatabaseHost, req.DatabasePort, req.DatabaseName, sslMode), nil
	case "sqlite":
		return buildSQLiteDSN(req.DatabasePath), nil
	default:
		return "", fmt.Errorf("unsupported database type")
	}
}

func buildSQLiteDSN(path string) string {
	dsn := strings.TrimSpace(path)
	if dsn == "" {
		dsn = defaultSQLitePath
	}
	if !strings.HasPrefix(strings.ToLower(dsn), "file:") {
		dsn = "file:" + dsn
	}
	separator := "?"
	if strings.Contains(dsn, "?") {
		separator = "&"
	}
	return dsn + separator + "_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on&_synchronous=NORMAL"
}

// CheckDatabaseConnection opens the DSN and pings it.
func CheckDatabaseConnection(ctx context.Context, dsn string) error {
	conn, err := db.Open(dsn)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	defer func() {
		if errClose := sqlDB.Close(); errClose != nil {
			log.Errorf("sql db close error: %v", errClose)
		}
	}()
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return sqlDB.PingContext(pingCtx)
}

func validateInitRequest(req *InitRequest) error {
	dbType := strings.ToLower(strings.TrimSpace(req.DatabaseType))
	if dbType == "" {
		dbType = "postgres"
	}
	req.DatabaseType = dbType

	switch dbType {
	case "postgres":
		switch {
		case strings.TrimSpace(req.DatabaseHost) == "":
			return errors.New("database host is required")
		case req.DatabasePort <= 0 || req.DatabasePort > 65535:
			return errors.New("invalid database port")
		case strings.TrimSpace(req.DatabaseUser) == "":
			return errors.New("database username is required")
		case strings.TrimSpace(req.DatabaseName) == "":
			return errors.New("database name is required")
		}
	case "sqlite":
		if strings.TrimSpace(req.DatabasePath) == "" {
			req.DatabasePath = defaultSQLitePath
		}
	default:
		return errors.New("unsupported database type")
	}
	return validateAdminInput(req)
}

func validateAdminInput(req *InitRequest) error {
	req.AdminUsername = strings.TrimSpace(req.AdminUsername)
	if req.AdminUsername == "" {
		return errors.New("admin username is required")
	}
	if len(req.AdminPassword) < minAdminPasswordLength {
		return fmt.Errorf("password must be at least %d characters", minAdminPasswordLength)
	}
	req.SiteName = strings.TrimSpace(req.SiteName)
	if req.SiteName == "" {
		req.SiteName = internalsettings.DefaultSiteName
	}
	return nil
}

// generatedConfig is the config file written by the init server.
type generatedConfig struct {
	Port          int    `yaml:"port"`
	DatabaseDSN   string `yaml:"database-dsn"`
	Debug         bool   `yaml:"debug"`
	LoggingToFile bool   `yaml:"logging-to-file"`
	JWT           struct {
		Secret string `yaml:"secret"`
		Expiry string `yaml:"expiry"`
	} `yaml:"jwt"`
	CORS struct {
		AllowedOrigins []string `yaml:"allowed-origins"`
	} `yaml:"cors"`
}

// WriteConfigFile writes the initial config file with a fresh JWT secret.
func WriteConfigFile(configPath string, dsn string, port int) error {
	secret, errSecret := security.GenerateRandomString(32)
	if errSecret != nil {
		return fmt.Errorf("generate jwt secret: %w", errSecret)
	}
	var cfg generatedConfig
	cfg.Port = port
	cfg.DatabaseDSN = dsn
	cfg.JWT.Secret = secret
	cfg.JWT.Expiry = "720h"
	cfg.CORS.AllowedOrigins = []string{"*"}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if errMkdir := os.MkdirAll(filepath.Dir(configPath), 0o755); errMkdir != nil {
		return fmt.Errorf("create config dir: %w", errMkdir)
	}
	if errWrite := os.WriteFile(configPath, data, 0o600); errWrite != nil {
		return fmt.Errorf("write config file: %w", errWrite)
	}
	return nil
}

// CreateAdminUser migrates the database behind dsn and creates the first admin.
func CreateAdminUser(dsn string, username, password, siteName string) error {
	conn, err := db.Open(dsn)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return fmt.Errorf("migrate database: %w", errMigrate)
	}
	return CreateAdminUserWithConn(conn, username, password, siteName)
}

// CreateAdminUserWithConn creates a super admin and stores the site name.
func CreateAdminUserWithConn(conn *gorm.DB, username, password, siteName string) error {
	if conn == nil {
		return fmt.Errorf("open database: nil connection")
	}
	hashedPassword, errHash := security.HashPassword(password)
	if errHash != nil {
		return fmt.Errorf("hash password: %w", errHash)
	}
	siteName = strings.TrimSpace(siteName)
	if siteName == "" {
		siteName = internalsettings.DefaultSiteName
	}
	siteValue, errMarshal := json.Marshal(siteName)
	if errMarshal != nil {
		return fmt.Errorf("marshal site name: %w", errMarshal)
	}

	return conn.Transaction(func(tx *gorm.DB) error {
		admin := models.Admin{
			Username:     username,
			Password:     hashedPassword,
			Active:       true,
			IsSuperAdmin: true,
			Permissions:  datatypes.JSON("[]"),
		}
		if errCreate := tx.Create(&admin).Error; errCreate != nil {
			return fmt.Errorf("create admin: %w", errCreate)
		}
		setting := models.Setting{
			Key:       internalsettings.SiteNameKey,
			Value:     models.SettingValue(siteValue),
			UpdatedAt: time.Now().UTC(),
		}
		if errSite := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).Create(&setting).Error; errSite != nil {
			return fmt.Errorf("store site name: %w", errSite)
		}
		return nil
	})
}

// registerInitRoutes serves init status and lets the first admin be created
// when the database exists but has no admin yet.
func registerInitRoutes(engine *gin.Engine, conn *gorm.DB, dsn string, initState *atomic.Bool) {
	engine.GET("/v0/init/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, InitStatusResponse{Initialized: initState.Load()})
	})
	engine.GET("/v0/init/prefill", func(c *gin.Context) {
		prefill, errPrefill := initPrefillFromDSN(dsn)
		if errPrefill != nil {
			c.JSON(http.StatusOK, gin.H{"locked": true})
			return
		}
		c.JSON(http.StatusOK, struct {
			Locked bool `json:"locked"`
			initPrefill
		}{Locked: true, initPrefill: prefill})
	})
	engine.POST("/v0/init/setup", func(c *gin.Context) {
		ok, errCheck := HasAdminInitialized(conn)
		if errCheck != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "check admin status failed"})
			return
		}
		if ok {
			initState.Store(true)
			c.JSON(http.StatusBadRequest, gin.H{"error": "system already initialized"})
			return
		}
		var req InitRequest
		if errBind := c.ShouldBindJSON(&req); errBind != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "admin_username and admin_password are required"})
			return
		}
		if errValidate := validateAdminInput(&req); errValidate != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": errValidate.Error()})
			return
		}
		if errAdmin := CreateAdminUserWithConn(conn.WithContext(c.Request.Context()), req.AdminUsername, req.AdminPassword, req.SiteName); errAdmin != nil {
			log.WithError(errAdmin).Error("create first admin failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create admin"})
			return
		}
		if errRefresh := internalsettings.Refresh(c.Request.Context(), conn); errRefresh != nil {
			log.WithError(errRefresh).Warn("refresh settings after init failed")
		}
		initState.Store(true)
		c.JSON(http.StatusOK, gin.H{"message": "initialization successful"})
	})
}

// newInitEngine builds the router used while no config file exists.
// done is closed once setup succeeds.
func newInitEngine(configPath string, port int, done chan<- struct{}) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept", "Authorization"},
		MaxAge:          24 * time.Hour,
	}))

	var completed atomic.Bool
	engine.GET("/v0/init/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, InitStatusResponse{Initialized: ConfigExists(configPath)})
	})
	engine.POST("/v0/init/setup", func(c *gin.Context) {
		if ConfigExists(configPath) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "system already initialized"})
			return
		}
		var req InitRequest
		if errBind := c.ShouldBindJSON(&req); errBind != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "admin_username and admin_password are required"})
			return
		}
		if errValidate := validateInitRequest(&req); errValidate != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": errValidate.Error()})
			return
		}
		dsn, errBuild := BuildDSN(req)
		if errBuild != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": errBuild.Error()})
			return
		}
		if errCheck := CheckDatabaseConnection(c.Request.Context(), dsn); errCheck != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("database connection failed: %v", errCheck)})
			return
		}
		if errWrite := WriteConfigFile(configPath, dsn, port); errWrite != nil {
			log.WithError(errWrite).Error("write config failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to write config"})
			return
		}
		if errAdmin := CreateAdminUser(dsn, req.AdminUsername, req.AdminPassword, req.SiteName); errAdmin != nil {
			if errRemove := os.Remove(configPath); errRemove != nil {
				log.Errorf("remove config file error: %v", errRemove)
			}
			log.WithError(errAdmin).Error("create first admin failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create admin"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "initialization successful"})
		if completed.CompareAndSwap(false, true) {
			close(done)
		}
	})
	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "system is not initialized, POST /v0/init/setup first"})
	})
	return engine
}

// RunInitServer serves the setup API until setup succeeds or ctx ends.
// It returns ErrInitCompleted after a successful setup.
func RunInitServer(ctx context.Context, cfg config.AppConfig, port int) error {
	gin.SetMode(gin.ReleaseMode)
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	initDone := make(chan struct{})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           newInitEngine(configPath, port, initDone),
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Infof("starting init server on %s (config not found at %s)", srv.Addr, configPath)

	go func() {
		select {
		case <-ctx.Done():
		case <-initDone:
			// Let the setup response flush before closing the listener.
			time.Sleep(500 * time.Millisecond)
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if errShutdown := srv.Shutdown(shutdownCtx); errShutdown != nil {
			log.Errorf("init server shutdown error: %v", errShutdown)
		}
	}()

	if errListen := srv.ListenAndServe(); errListen != nil && !errors.Is(errListen, http.ErrServerClosed) {
		return errListen
	}
	select {
	case <-initDone:
		return ErrInitCompleted
	default:
		return nil
	}
}
