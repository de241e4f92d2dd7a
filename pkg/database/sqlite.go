package database

import (
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewSQLiteDB opens a sqlite database for local runs and tests, e.g.
// "file:review?mode=memory&cache=shared". A single connection keeps an
// in-memory database alive and serializes writers.
func NewSQLiteDB(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	return db, nil
}

// Open picks the driver by name; "sqlite" is meant for development only.
func Open(driver, dsn string, pool PoolConfig) (*gorm.DB, error) {
	if driver == "sqlite" {
		db, err := NewSQLiteDB(dsn)
		if err != nil {
			return nil, err
		}
		return db, AutoMigrate(db)
	}
	return NewGormDBFromDSN(dsn, pool)
}
