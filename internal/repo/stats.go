// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries used
// by the stats service and the admin overview endpoint. Each function is
// context-aware and safe to call from services or handlers.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-sitemap-backend/internal/domain"
)

// SegmentTotals is the aggregate fill state over a set of segments.
type SegmentTotals struct {
	Segments  int64
	Full      int64
	Partial   int64
	Empty     int64
	URLs      int64
	Available int64
	SizeBytes int64
}

// ActiveSegmentTotals folds every active segment into aggregate counters.
// Computed in one scan rather than per-counter SQL; segment cardinality is
// small (hundreds at most).
func ActiveSegmentTotals(ctx context.Context, db *gorm.DB) (SegmentTotals, error) {
	segs, err := ListActiveSegments(ctx, db)
	if err != nil {
		return SegmentTotals{}, err
	}
	var t SegmentTotals
	t.Segments = int64(len(segs))
	for _, s := range segs {
		switch {
		case s.IsFull:
			t.Full++
		case s.CurrentCount > 0:
			t.Partial++
		default:
			t.Empty++
		}
		t.URLs += int64(s.CurrentCount)
		t.Available += int64(s.Available())
		t.SizeBytes += s.GeneratedSizeBytes
	}
	return t, nil
}

// LastGenerationStamp returns the most recent last_generated_at among active
// segments, or nil when nothing was ever generated. Used for ETag-style
// freshness checks on the stats endpoint.
func LastGenerationStamp(ctx context.Context, db *gorm.DB) (*time.Time, error) {
	var row struct {
		LastGeneratedAt *time.Time
	}
	err := db.WithContext(ctx).
		Model(&domain.Segment{}).
		Where("active = ? AND last_generated_at IS NOT NULL", true).
		Select("last_generated_at").
		Order("last_generated_at DESC").
		Limit(1).
		Scan(&row).Error
	if err != nil {
		return nil, err
	}
	return row.LastGeneratedAt, nil
}
