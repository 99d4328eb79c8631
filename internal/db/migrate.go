package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fixturedesk/leaddesk/internal/models"
	internalsettings "github.com/fixturedesk/leaddesk/internal/settings"
	"gorm.io/gorm"
)

// schemaModels lists every table managed by Migrate, parents first.
func schemaModels() []any {
	return []any{
		&models.Admin{},
		&models.Setting{},
		&models.Lead{},
		&models.Project{},
		&models.WashroomDesign{},
		&models.Product{},
		&models.Vendor{},
		&models.RateCard{},
		&models.Quotation{},
		&models.QuotationItem{},
		&models.SheetSnapshot{},
	}
}

// Migrate runs database migrations for the current dialect.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	var errMigrate error
	switch DialectName(conn) {
	case DialectSQLite:
		errMigrate = migrateSQLite(conn)
	case DialectPostgres, "":
		errMigrate = migratePostgres(conn)
	default:
		return fmt.Errorf("db: unsupported dialect: %s", DialectName(conn))
	}
	if errMigrate != nil {
		return errMigrate
	}
	return ensureDefaultSettings(conn)
}

// migratePostgres applies PostgreSQL-specific schema updates and indexes.
func migratePostgres(conn *gorm.DB) error {
	if errAutoMigrate := conn.AutoMigrate(schemaModels()...); errAutoMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errAutoMigrate)
	}

	statements := []struct {
		name string
		sql  string
	}{
		{"leads email index", `CREATE INDEX IF NOT EXISTS idx_leads_lower_email ON leads (LOWER(email))`},
		{"leads status index", `CREATE INDEX IF NOT EXISTS idx_leads_status_created ON leads (status, created_at DESC)`},
		{"products price check", `
			DO $$
			BEGIN
				IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_products_base_price') THEN
					ALTER TABLE products ADD CONSTRAINT chk_products_base_price CHECK (base_price >= 0);
				END IF;
			END $$;
		`},
		{"rate cards price check", `
			DO $$
			BEGIN
				IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_rate_cards_prices') THEN
					ALTER TABLE rate_cards ADD CONSTRAINT chk_rate_cards_prices CHECK (unit_price >= 0 AND install_price >= 0);
				END IF;
			END $$;
		`},
	}
	for _, stmt := range statements {
		if errExec := conn.Exec(stmt.sql).Error; errExec != nil {
			return fmt.Errorf("db: %s: %w", stmt.name, errExec)
		}
	}
	return nil
}

// migrateSQLite applies SQLite schema updates.
func migrateSQLite(conn *gorm.DB) error {
	if errFix := fixSQLiteTimestampColumns(conn); errFix != nil {
		return errFix
	}
	if errAutoMigrate := conn.AutoMigrate(schemaModels()...); errAutoMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errAutoMigrate)
	}
	if errIndex := conn.Exec(`CREATE INDEX IF NOT EXISTS idx_leads_lower_email ON leads (LOWER(email))`).Error; errIndex != nil {
		return fmt.Errorf("db: leads email index: %w", errIndex)
	}
	return nil
}

// ensureDefaultSettings seeds runtime settings that have no value yet.
func ensureDefaultSettings(conn *gorm.DB) error {
	defaults := []struct {
		key   string
		value any
	}{
		{internalsettings.SiteNameKey, internalsettings.DefaultSiteName},
		{internalsettings.QuotationPrefixKey, internalsettings.DefaultQuotationPrefix},
		{internalsettings.DefaultTaxPercentKey, internalsettings.DefaultTaxPercent},
		{internalsettings.ContactCooldownSecondsKey, internalsettings.DefaultContactCooldownSeconds},
	}
	for _, d := range defaults {
		if errEnsure := ensureSetting(conn, d.key, d.value); errEnsure != nil {
			return errEnsure
		}
	}
	return nil
}

// ensureSetting ensures a setting exists and defaults when empty.
func ensureSetting(conn *gorm.DB, key string, value any) error {
	payload, errMarshal := json.Marshal(value)
	if errMarshal != nil {
		return fmt.Errorf("db: marshal %s setting: %w", key, errMarshal)
	}
	rawValue := json.RawMessage(payload)

	var existing models.Setting
	if errFind := conn.Where("key = ?", key).First(&existing).Error; errFind == nil {
		trimmed := strings.TrimSpace(string(existing.Value))
		if len(existing.Value) == 0 || trimmed == "" || trimmed == "null" {
			if errUpdate := conn.Model(&existing).Updates(map[string]any{
				"value":      models.SettingValue(rawValue),
				"updated_at": time.Now().UTC(),
			}).Error; errUpdate != nil {
				return fmt.Errorf("db: update %s setting: %w", key, errUpdate)
			}
		}
		return nil
	} else if !errors.Is(errFind, gorm.ErrRecordNotFound) {
		return fmt.Errorf("db: query %s setting: %w", key, errFind)
	}

	setting := models.Setting{
		Key:       key,
		Value:     models.SettingValue(rawValue),
		UpdatedAt: time.Now().UTC(),
	}
	if errCreate := conn.Create(&setting).Error; errCreate != nil {
		return fmt.Errorf("db: create %s setting: %w", key, errCreate)
	}
	return nil
}

// sqliteTableInfo maps PRAGMA table_info rows.
type sqliteTableInfo struct {
	CID          int            `gorm:"column:cid"`        // Column index.
	Name         string         `gorm:"column:name"`       // Column name.
	Type         string         `gorm:"column:type"`       // Declared type.
	NotNull      int            `gorm:"column:notnull"`    // Not-null flag.
	DefaultValue sql.NullString `gorm:"column:dflt_value"` // Default value string.
	PK           int            `gorm:"column:pk"`         // Primary key flag.
}

// fixSQLiteTimestampColumns rebuilds tables created with a timestamptz
// column type, which the SQLite driver cannot scan into time.Time.
func fixSQLiteTimestampColumns(conn *gorm.DB) error {
	if errDisable := conn.Exec("PRAGMA foreign_keys=OFF").Error; errDisable != nil {
		return fmt.Errorf("db: disable foreign keys: %w", errDisable)
	}
	defer func() {
		_ = conn.Exec("PRAGMA foreign_keys=ON").Error
	}()

	for _, model := range schemaModels() {
		if errFix := rebuildSQLiteTableIfNeeded(conn, model); errFix != nil {
			return errFix
		}
	}
	return nil
}

// rebuildSQLiteTableIfNeeded recreates a SQLite table when legacy types are detected.
func rebuildSQLiteTableIfNeeded(conn *gorm.DB, model any) error {
	tableName, err := tableNameForModel(conn, model)
	if err != nil {
		return err
	}
	migrator := conn.Migrator()
	if !migrator.HasTable(tableName) {
		return nil
	}

	var info []sqliteTableInfo
	pragmaSQL := fmt.Sprintf("PRAGMA table_info(%s)", quoteSQLiteIdentifier(tableName))
	if errQuery := conn.Raw(pragmaSQL).Scan(&info).Error; errQuery != nil {
		return fmt.Errorf("db: read sqlite table info %s: %w", tableName, errQuery)
	}

	needsRebuild := false
	oldColumns := make([]string, 0, len(info))
	for _, col := range info {
		if col.Name == "" {
			continue
		}
		oldColumns = append(oldColumns, col.Name)
		if strings.Contains(strings.ToLower(col.Type), "timestamptz") {
			needsRebuild = true
		}
	}
	if !needsRebuild {
		return nil
	}

	legacyName := tableName + "_legacy_tz"
	if errRename := migrator.RenameTable(tableName, legacyName); errRename != nil {
		return fmt.Errorf("db: rename sqlite table %s: %w", tableName, errRename)
	}
	if errCreate := conn.Table(tableName).AutoMigrate(model); errCreate != nil {
		return fmt.Errorf("db: recreate sqlite table %s: %w", tableName, errCreate)
	}

	newColumns := map[string]struct{}{}
	if colTypes, errCols := migrator.ColumnTypes(tableName); errCols == nil {
		for _, col := range colTypes {
			newColumns[col.Name()] = struct{}{}
		}
	}
	quoted := make([]string, 0, len(oldColumns))
	for _, col := range oldColumns {
		if _, ok := newColumns[col]; ok {
			quoted = append(quoted, quoteSQLiteIdentifier(col))
		}
	}
	if len(quoted) > 0 {
		columnList := strings.Join(quoted, ", ")
		copySQL := fmt.Sprintf(
			"INSERT INTO %s (%s) SELECT %s FROM %s",
			quoteSQLiteIdentifier(tableName), columnList, columnList, quoteSQLiteIdentifier(legacyName),
		)
		if errCopy := conn.Exec(copySQL).Error; errCopy != nil {
			return fmt.Errorf("db: copy sqlite data for %s: %w", tableName, errCopy)
		}
	}
	if errDrop := migrator.DropTable(legacyName); errDrop != nil {
		return fmt.Errorf("db: drop sqlite legacy table %s: %w", legacyName, errDrop)
	}
	return nil
}

// tableNameForModel resolves the table name for the provided model.
func tableNameForModel(conn *gorm.DB, model any) (string, error) {
	stmt := &gorm.Statement{DB: conn}
	if err := stmt.Parse(model); err != nil {
		return "", fmt.Errorf("db: parse model: %w", err)
	}
	if stmt.Schema == nil || stmt.Schema.Table == "" {
		return "", fmt.Errorf("db: resolve table name")
	}
	return stmt.Schema.Table, nil
}

func quoteSQLiteIdentifier(name string) string {
	return "\"" + strings.ReplaceAll(name, "\"", "\"\"") + "\""
}
