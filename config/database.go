package config

import (
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// MySQLDSN builds the DSN from its parts unless DB_DSN overrides it.
func (d DatabaseConfig) MySQLDSN() string {
	if d.DSN != "" {
		return d.DSN
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

func (d DatabaseConfig) SQLiteDSN() string {
	if d.DSN != "" {
		return d.DSN
	}
	return "billiard.db?_busy_timeout=5000&_foreign_keys=on"
}

// InitDB opens the configured database. Driver errors are translated so
// duplicate keys surface as gorm.ErrDuplicatedKey.
func InitDB(d DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch d.Driver {
	case "mysql":
		dialector = mysql.Open(d.MySQLDSN())
	case "sqlite":
		dialector = sqlite.Open(d.SQLiteDSN())
	default:
		return nil, fmt.Errorf("unsupported database driver %q", d.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	maxOpen := d.MaxOpenConns
	if d.Driver == "sqlite" {
		// SQLite allows one writer; a single connection avoids SQLITE_BUSY
		// between concurrent transactions.
		maxOpen = 1
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping %s: %w", d.Driver, err)
	}
	return db, nil
}
