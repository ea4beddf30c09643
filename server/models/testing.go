package models

import (
	"log"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// InitializeTestStore returns a fresh in-memory store for tests. The single
// connection keeps sqlite's per-connection memory database stable across
// queries.
func InitializeTestStore() *Store {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		log.Panic(err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Panic(err)
	}
	sqlDB.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.AutoMigrate(); err != nil {
		log.Panic(err)
	}

	return store
}
