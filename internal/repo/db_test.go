package repo

import (
	"fmt"
	"path/filepath"
	"testing"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-sitemap-backend/internal/domain"
)

func newTestDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()
	// Unique DB per test to avoid schema leaking across tests.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

// newFullDB migrates every model, matching AutoMigrate in production.
func newFullDB(t *testing.T) *gorm.DB {
	t.Helper()
	return newTestDB(t,
		&domain.Entry{}, &domain.Segment{}, &domain.Batch{},
		&domain.Config{}, &domain.Idempotency{},
	)
}

func TestOpenSQLite_CreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sitemap.db")
	db, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	// A migrated store must accept a segment row.
	if err := db.Create(&domain.Segment{
		ID: "s1", Name: "locations", Family: domain.FamilyLocations,
		Ordinal: 1, Capacity: 50000, Active: true,
	}).Error; err != nil {
		t.Fatalf("create segment after migrate: %v", err)
	}
}

func TestOpenSQLite_BadPath(t *testing.T) {
	if _, err := OpenSQLite(filepath.Join(t.TempDir(), "missing", "nested", "x.db")); err == nil {
		t.Fatal("expected error for unreachable database path")
	}
}
