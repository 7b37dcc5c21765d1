// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file manages the singleton sitemap_config row: a
// derived read-cache of totals, never the source of truth for per-segment
// counts.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-sitemap-backend/internal/domain"
)

// configRowID pins the singleton row.
const configRowID = 1

// GetConfig returns the singleton config row, creating it with defaults on
// first access.
func GetConfig(ctx context.Context, db *gorm.DB) (*domain.Config, error) {
	var c domain.Config
	err := db.WithContext(ctx).Where("id = ?", configRowID).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c = domain.Config{
			ID:         configRowID,
			CompanyCap: 10000,
			DefaultCap: 50000,
			UpdatedAt:  time.Now().UTC(),
		}
		if err := db.WithContext(ctx).Create(&c).Error; err != nil {
			return nil, err
		}
		return &c, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// SeedCapacities creates the config row with the given capacities when no row
// exists yet. Capacities of an existing row are left alone: segments already
// packed against them must not shift.
func SeedCapacities(ctx context.Context, db *gorm.DB, companyCap, defaultCap int) error {
	var c domain.Config
	err := db.WithContext(ctx).Where("id = ?", configRowID).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c = domain.Config{
			ID:         configRowID,
			CompanyCap: companyCap,
			DefaultCap: defaultCap,
			UpdatedAt:  time.Now().UTC(),
		}
		return db.WithContext(ctx).Create(&c).Error
	}
	return err
}

// RefreshTotals recomputes cached totals from the live entry and segment
// tables. Called opportunistically after mutations; failures are reported
// but harmless since the cache is never authoritative.
func RefreshTotals(ctx context.Context, db *gorm.DB) (*domain.Config, error) {
	urls, err := CountActiveEntries(ctx, db)
	if err != nil {
		return nil, err
	}
	segments, err := CountActiveSegments(ctx, db)
	if err != nil {
		return nil, err
	}
	if _, err := GetConfig(ctx, db); err != nil {
		return nil, err
	}
	err = db.WithContext(ctx).
		Model(&domain.Config{}).
		Where("id = ?", configRowID).
		Updates(map[string]any{
			"total_urls":     urls,
			"total_segments": segments,
			"updated_at":     time.Now().UTC(),
		}).Error
	if err != nil {
		return nil, err
	}
	return GetConfig(ctx, db)
}

// SetLastFullRebuild stamps the config row after a FULL rebuild.
func SetLastFullRebuild(ctx context.Context, db *gorm.DB, at time.Time) error {
	if _, err := GetConfig(ctx, db); err != nil {
		return err
	}
	return db.WithContext(ctx).
		Model(&domain.Config{}).
		Where("id = ?", configRowID).
		Update("last_full_rebuild_at", at).Error
}
