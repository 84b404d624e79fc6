// Package dbtest provides an in-memory SQLite-backed gorm.DB for tests across the
// store, executor, cleanup, reuse, and scheduler packages, mirroring
// core/pkg/database/test_helper.go's NewTestHelper shape (sqlite.Open(":memory:") +
// AutoMigrate, silenced logger). Not a _test.go file so every package's tests can
// import it.
package dbtest

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/primus-bench/orchestrator/pkg/model"
)

// Open returns a fresh in-memory database with the campaign controller's schema
// migrated, closed automatically via t.Cleanup.
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err, "opening in-memory sqlite database")

	err = db.AutoMigrate(
		&model.Campaign{},
		&model.EngineRelease{},
		&model.ReuseRecord{},
	)
	require.NoError(t, err, "auto-migrating schema")

	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err == nil {
			sqlDB.Close()
		}
	})

	return db
}
