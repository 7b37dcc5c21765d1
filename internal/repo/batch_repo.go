// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Batch
// ledger: the immutable provenance record of bulk ingestions.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-sitemap-backend/internal/domain"
)

// CreateBatch inserts a new ledger row with status PROCESSING. The batch
// number is assigned by the database (auto-increment) and is monotonically
// increasing.
func CreateBatch(ctx context.Context, db *gorm.DB, b *domain.Batch) (*domain.Batch, error) {
	b.Status = domain.BatchProcessing
	b.CreatedAt = time.Now().UTC()
	if err := db.WithContext(ctx).Create(b).Error; err != nil {
		return nil, err
	}
	return b, nil
}

// FinalizeBatch transitions a ledger row to its terminal status and records
// the added/skipped counts. The distribution map is never rewritten here;
// duplicate skips live in skipped_count only.
func FinalizeBatch(ctx context.Context, db *gorm.DB, number int, status domain.BatchStatus, added, skipped int, notes string) error {
	now := time.Now().UTC()
	updates := map[string]any{
		"status":        status,
		"added_count":   added,
		"skipped_count": skipped,
		"completed_at":  now,
	}
	if notes != "" {
		updates["notes"] = notes
	}
	res := db.WithContext(ctx).
		Model(&domain.Batch{}).
		Where("batch_number = ?", number).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// GetBatch fetches one ledger row by batch number, or ErrNotFound.
func GetBatch(ctx context.Context, db *gorm.DB, number int) (*domain.Batch, error) {
	var b domain.Batch
	if err := db.WithContext(ctx).Where("batch_number = ?", number).First(&b).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

// LastBatch returns the most recent ledger row, or ErrNotFound when the
// ledger is empty.
func LastBatch(ctx context.Context, db *gorm.DB) (*domain.Batch, error) {
	var b domain.Batch
	if err := db.WithContext(ctx).Order("batch_number desc").First(&b).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

// CountBatches returns the total number of ledger rows.
func CountBatches(ctx context.Context, db *gorm.DB) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Batch{}).Count(&n).Error
	return n, err
}

// ListBatchesPage returns a page of ledger rows, newest first.
func ListBatchesPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Batch, error) {
	var out []domain.Batch
	err := db.WithContext(ctx).
		Order("batch_number desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
