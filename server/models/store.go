package models

import (
	"errors"

	pkgerrors "github.com/pkg/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// ErrNotFound is returned whenever a lookup matches no record. Callers must
// branch on it before using the result - a missing record is never modeled
// as a nil that flows into the next step.
var ErrNotFound = errors.New("record not found")

// Store wraps the gorm handle so every consumer receives it explicitly,
// instead of reaching for a shared package-level db.
type Store struct {
	db *gorm.DB
}

func NewStore(dbPath string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(err, "NewStore")
	}

	return &Store{db: db}, nil
}

func (store *Store) AutoMigrate() error {
	return store.db.AutoMigrate(&User{}, &Contact{}, &Message{})
}

// notFoundOr converts gorm's record-not-found into the store's own error so
// transport errors never leak past this package.
func notFoundOr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}

	return err
}
