// Package dbtest opens migrated in-memory SQLite databases for tests
package dbtest

import (
	"fmt"
	"testing"

	"github.com/a2s-dz/gestion/internal/database"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Open returns a fresh, fully migrated in-memory database private to t
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	url := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := database.Connect(url, database.Options{MaxOpenConns: 1})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := database.RunMigrations(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}
