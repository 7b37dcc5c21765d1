package services

import (
	"context"
	"fmt"
	"testing"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-sitemap-backend/internal/domain"
	"github.com/tbourn/go-sitemap-backend/internal/repo"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	// Unique DB per test to avoid schema leaking across tests.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&domain.Entry{}, &domain.Segment{}, &domain.Batch{},
		&domain.Config{}, &domain.Idempotency{},
	); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// seedCaps pins small segment capacities so tests overflow without
// thousands of candidates.
func seedCaps(t *testing.T, db *gorm.DB, companyCap, defaultCap int) {
	t.Helper()
	if err := repo.SeedCapacities(context.Background(), db, companyCap, defaultCap); err != nil {
		t.Fatalf("seed capacities: %v", err)
	}
}

func seedSegment(t *testing.T, db *gorm.DB, seg *domain.Segment) {
	t.Helper()
	seg.Active = true
	if err := repo.CreateSegment(context.Background(), db, seg); err != nil {
		t.Fatalf("seed segment %s: %v", seg.Name, err)
	}
}

func candidates(prefix string, n int) []Candidate {
	out := make([]Candidate, n)
	for i := range out {
		out[i] = Candidate{
			ID:   fmt.Sprintf("%s-%d", prefix, i),
			Slug: fmt.Sprintf("companies/%s-%d", prefix, i),
		}
	}
	return out
}
