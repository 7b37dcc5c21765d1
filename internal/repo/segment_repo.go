// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Segment
// model: the capacity-bounded buckets entries are packed into.
//
// Segments are append-only state: they are created lazily when a family's
// last segment fills up, updated by ingestion and the regenerator, and
// deactivated rather than deleted.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-sitemap-backend/internal/domain"
)

// CreateSegment inserts a new segment row with a generated UUID.
func CreateSegment(ctx context.Context, db *gorm.DB, seg *domain.Segment) error {
	if seg.ID == "" {
		seg.ID = uuid.NewString()
	}
	seg.CreatedAt = time.Now().UTC()
	return db.WithContext(ctx).Create(seg).Error
}

// GetSegmentByName fetches one segment by its unique name, or ErrNotFound.
func GetSegmentByName(ctx context.Context, db *gorm.DB, name string) (*domain.Segment, error) {
	var s domain.Segment
	if err := db.WithContext(ctx).Where("name = ?", name).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// ListFamilySegments returns the active segments of a family in ordinal
// order. This is the snapshot the distributor plans against.
func ListFamilySegments(ctx context.Context, db *gorm.DB, fam domain.Family) ([]domain.Segment, error) {
	var out []domain.Segment
	err := db.WithContext(ctx).
		Where("family = ? AND active = ?", fam, true).
		Order("ordinal asc").
		Find(&out).Error
	return out, err
}

// ListActiveSegments returns every active segment ordered by family then
// ordinal, matching the root index ordering.
func ListActiveSegments(ctx context.Context, db *gorm.DB) ([]domain.Segment, error) {
	var out []domain.Segment
	err := db.WithContext(ctx).
		Where("active = ?", true).
		Order("family asc, ordinal asc").
		Find(&out).Error
	return out, err
}

// ListDirtySegments returns the active segments flagged for rebuild.
func ListDirtySegments(ctx context.Context, db *gorm.DB) ([]domain.Segment, error) {
	var out []domain.Segment
	err := db.WithContext(ctx).
		Where("needs_rebuild = ? AND active = ?", true, true).
		Order("family asc, ordinal asc").
		Find(&out).Error
	return out, err
}

// ApplyAllocation updates a segment's packing stats after an ingestion slice
// committed. dirty marks the segment for rebuild and is only set when rows
// were actually inserted.
func ApplyAllocation(ctx context.Context, db *gorm.DB, name string, newCount int, isFull, dirty bool) error {
	updates := map[string]any{
		"current_count": newCount,
		"is_full":       isFull,
	}
	if dirty {
		updates["needs_rebuild"] = true
	}
	res := db.WithContext(ctx).
		Model(&domain.Segment{}).
		Where("name = ?", name).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// MarkSegmentDirty flags a segment for rebuild. Missing segments are ignored:
// sync hooks may race with segment creation and the sweep picks up the entry
// on its next pass regardless.
func MarkSegmentDirty(ctx context.Context, db *gorm.DB, name string) error {
	return db.WithContext(ctx).
		Model(&domain.Segment{}).
		Where("name = ?", name).
		Update("needs_rebuild", true).Error
}

// FinishGeneration records a successful artifact write: the recounted live
// entry total, artifact size, wall-clock duration, and the generation
// timestamp. It also clears the dirty flag.
func FinishGeneration(ctx context.Context, db *gorm.DB, name string, liveCount int, sizeBytes, elapsedMS int64, at time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.Segment{}).
		Where("name = ?", name).
		Updates(map[string]any{
			"current_count":        liveCount,
			"generated_size_bytes": sizeBytes,
			"generation_time_ms":   elapsedMS,
			"last_generated_at":    at,
			"needs_rebuild":        false,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CountActiveSegments returns the number of active segments.
func CountActiveSegments(ctx context.Context, db *gorm.DB) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Segment{}).
		Where("active = ?", true).
		Count(&n).Error
	return n, err
}
