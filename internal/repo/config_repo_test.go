package repo

import (
	"context"
	"testing"
	"time"

	"github.com/tbourn/go-sitemap-backend/internal/domain"
)

func TestGetConfig_CreatesDefaults(t *testing.T) {
	db := newTestDB(t, &domain.Config{})
	ctx := context.Background()

	cfg, err := GetConfig(ctx, db)
	if err != nil {
		t.Fatalf("GetConfig: %v", err)
	}
	if cfg.CompanyCap != 10000 || cfg.DefaultCap != 50000 {
		t.Errorf("default caps = %d/%d, want 10000/50000", cfg.CompanyCap, cfg.DefaultCap)
	}

	again, err := GetConfig(ctx, db)
	if err != nil {
		t.Fatalf("second GetConfig: %v", err)
	}
	if again.ID != cfg.ID {
		t.Error("GetConfig must reuse the singleton row")
	}
}

func TestSeedCapacities_NeverOverwrites(t *testing.T) {
	db := newTestDB(t, &domain.Config{})
	ctx := context.Background()

	if err := SeedCapacities(ctx, db, 500, 2000); err != nil {
		t.Fatalf("SeedCapacities: %v", err)
	}
	cfg, err := GetConfig(ctx, db)
	if err != nil {
		t.Fatalf("GetConfig: %v", err)
	}
	if cfg.CompanyCap != 500 || cfg.DefaultCap != 2000 {
		t.Errorf("seeded caps = %d/%d, want 500/2000", cfg.CompanyCap, cfg.DefaultCap)
	}

	// A second seed with different values must leave the row alone.
	if err := SeedCapacities(ctx, db, 9, 9); err != nil {
		t.Fatalf("second SeedCapacities: %v", err)
	}
	cfg, _ = GetConfig(ctx, db)
	if cfg.CompanyCap != 500 || cfg.DefaultCap != 2000 {
		t.Errorf("caps changed on reseed: %d/%d", cfg.CompanyCap, cfg.DefaultCap)
	}
}

func TestRefreshTotals(t *testing.T) {
	db := newFullDB(t)
	ctx := context.Background()

	seg := &domain.Segment{Name: "locations", Family: domain.FamilyLocations, Ordinal: 1, Capacity: 10, Active: true}
	if err := CreateSegment(ctx, db, seg); err != nil {
		t.Fatalf("seed segment: %v", err)
	}
	entries := []domain.Entry{
		testEntry("c1", "https://example.com/a", "locations", 1),
		testEntry("c2", "https://example.com/b", "locations", 2),
	}
	if _, err := InsertEntries(ctx, db, entries); err != nil {
		t.Fatalf("seed entries: %v", err)
	}

	cfg, err := RefreshTotals(ctx, db)
	if err != nil {
		t.Fatalf("RefreshTotals: %v", err)
	}
	if cfg.TotalURLs != 2 || cfg.TotalSegments != 1 {
		t.Errorf("totals = %d urls / %d segments, want 2/1", cfg.TotalURLs, cfg.TotalSegments)
	}
}

func TestSetLastFullRebuild(t *testing.T) {
	db := newTestDB(t, &domain.Config{})
	ctx := context.Background()

	at := time.Date(2026, 8, 30, 6, 0, 0, 0, time.UTC)
	if err := SetLastFullRebuild(ctx, db, at); err != nil {
		t.Fatalf("SetLastFullRebuild: %v", err)
	}
	cfg, err := GetConfig(ctx, db)
	if err != nil {
		t.Fatalf("GetConfig: %v", err)
	}
	if cfg.LastFullRebuildAt == nil || !cfg.LastFullRebuildAt.Equal(at) {
		t.Errorf("LastFullRebuildAt = %v, want %v", cfg.LastFullRebuildAt, at)
	}
}
