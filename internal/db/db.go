package db

import (
	"fmt"
	"strings"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"authapi/internal/model"
)

// Dialect names the SQL backend selected from DB_URL.
func Dialect(url string) string {
	lower := strings.ToLower(url)
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return "postgres"
	}
	return "mysql"
}

// Open returns a connected GORM DB instance for a MySQL DSN or a postgres URL.
// Driver errors are translated so unique violations surface as gorm.ErrDuplicatedKey.
func Open(url string, debug bool) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch Dialect(url) {
	case "postgres":
		dialector = postgres.Open(url)
	default:
		dialector = mysql.Open(strings.TrimPrefix(url, "mysql://"))
	}

	level := logger.Warn
	if debug {
		level = logger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", Dialect(url), err)
	}
	return db, nil
}

// Migrate creates or updates the tables owned by this service.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&model.User{}, &model.AuthEvent{}); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
