// Package testutil holds the SQLite test database, fixtures for users,
// published rows and changes, and workflow assertions.
package testutil

import (
	"fmt"
	"os"
	"sync/atomic"
	"testing"

	"casei/internal/models"
	"casei/internal/registry"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// coreModels are the non-domain tables; domain tables come from the registry.
var coreModels = []interface{}{
	&models.User{},
	&models.Group{},
	&models.Permission{},
	&models.Change{},
	&models.ApprovalLog{},
	&models.Recommendation{},
	&models.AuditLog{},
}

// AllModels returns every GORM model the application uses.
func AllModels() []interface{} {
	return append(append([]interface{}{}, coreModels...), registry.Models()...)
}

var dbCounter atomic.Int64

// testLogWriter sends gorm output to the test log.
type testLogWriter struct{ t *testing.T }

func (w testLogWriter) Printf(format string, args ...interface{}) {
	w.t.Helper()
	w.t.Logf(format, args...)
}

// SetupTestDB opens a private in-memory SQLite database with every table
// migrated. It is closed automatically when the test ends. Set TEST_SQL_LOG
// to see the statements a test runs.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	level := logger.Silent
	if os.Getenv("TEST_SQL_LOG") != "" {
		level = logger.Info
	}

	dsn := fmt.Sprintf("file:casei_test_%d?mode=memory&cache=shared", dbCounter.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.New(testLogWriter{t}, logger.Config{LogLevel: level}),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(AllModels()...); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	t.Cleanup(func() { TeardownTestDB(t, db) })
	return db
}

// TeardownTestDB closes the database. Closing twice is harmless, so tests
// may still defer it explicitly.
func TeardownTestDB(t *testing.T, db *gorm.DB) {
	t.Helper()

	sqlDB, err := db.DB()
	if err != nil {
		t.Errorf("failed to get underlying DB for teardown: %v", err)
		return
	}
	if err := sqlDB.Close(); err != nil {
		t.Errorf("failed to close test database: %v", err)
	}
}
