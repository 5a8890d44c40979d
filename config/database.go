package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// InitDatabase opens the configured database and auto-migrates the given models.
func InitDatabase(c AppConfig, modelDefs ...interface{}) (*gorm.DB, error) {
	dialector, err := dialectorFor(c)
	if err != nil {
		return nil, err
	}

	// Derive level from app LogLevel and raise slow-sql threshold to reduce noise
	gLogger := logger.New(
		log.New(os.Stdout, "", log.LstdFlags),
		logger.Config{
			SlowThreshold:             2 * time.Second,
			LogLevel:                  toGormLogLevel(c.LogLevel),
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gLogger,
		// timestamps are written by the stores in UTC
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}

	if c.DBDriver == "sqlite" {
		// sqlite serialises writers; a single connection avoids SQLITE_BUSY
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetMaxOpenConns(20)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
		sqlDB.SetConnMaxIdleTime(10 * time.Minute)
	}

	// Ping once at boot so network/auth problems surface before the first query
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("database ping: %w", err)
	}

	if len(modelDefs) > 0 {
		if err := db.AutoMigrate(modelDefs...); err != nil {
			return nil, fmt.Errorf("auto migrate: %w", err)
		}
	}

	return db, nil
}

func dialectorFor(c AppConfig) (gorm.Dialector, error) {
	switch strings.ToLower(c.DBDriver) {
	case "sqlite", "sqlite3", "":
		path := c.DBPath
		if c.DatabaseURI != "" {
			path = c.DatabaseURI
		}
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
		if !strings.Contains(path, "?") {
			path += "?_foreign_keys=on&_busy_timeout=5000"
		}
		return sqlite.Open(path), nil
	case "mysql":
		dsn := c.DatabaseURI
		if dsn == "" {
			port := c.DBPort
			if port == "" {
				port = "3306"
			}
			dsn = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
				c.DBUser, c.DBPassword, c.DBHost, port, c.DBName)
		}
		return mysql.Open(dsn), nil
	case "postgres", "postgresql":
		dsn := c.DatabaseURI
		if dsn == "" {
			port := c.DBPort
			if port == "" {
				port = "5432"
			}
			dsn = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable TimeZone=UTC",
				c.DBHost, port, c.DBUser, c.DBPassword, c.DBName)
		}
		return postgres.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", c.DBDriver)
	}
}

// toGormLogLevel maps application LogLevel to GORM's logger level.
func toGormLogLevel(level string) logger.LogLevel {
	switch level {
	case "debug":
		// GORM 'Info' shows SQL; use with caution
		return logger.Info
	case "info", "", "warn":
		return logger.Warn
	case "error":
		return logger.Error
	case "silent":
		return logger.Silent
	default:
		return logger.Warn
	}
}
