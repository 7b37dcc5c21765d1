// Package services – StatsService
//
// Read-only summaries for the admin surface: the distribution snapshot
// (per-segment fill levels plus aggregate totals), single-segment detail,
// and the overview combining totals with ledger provenance.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-sitemap-backend/internal/domain"
	"github.com/tbourn/go-sitemap-backend/internal/repo"
	"github.com/tbourn/go-sitemap-backend/internal/sitemap"
)

// SegmentSummary is one segment's fill state as reported by the snapshot.
type SegmentSummary struct {
	Name            string        `json:"name"`
	Family          domain.Family `json:"family"`
	Ordinal         int           `json:"ordinal"`
	Capacity        int           `json:"capacity"`
	CurrentCount    int           `json:"current_count"`
	Available       int           `json:"available"`
	Percentage      float64       `json:"percentage"`
	IsFull          bool          `json:"is_full"`
	NeedsRebuild    bool          `json:"needs_rebuild"`
	LastGeneratedAt *time.Time    `json:"last_generated_at,omitempty"`
	SizeBytes       int64         `json:"size_bytes"`
	SizeHuman       string        `json:"size_human"`
}

// DistributionSnapshot is the full fill picture of the inventory.
type DistributionSnapshot struct {
	Segments []SegmentSummary  `json:"segments"`
	Totals   repo.SegmentTotals `json:"totals"`
}

// SegmentDetails is a single segment plus its live entry count, which can
// trail CurrentCount when entries were deactivated since the last rebuild.
type SegmentDetails struct {
	SegmentSummary
	LiveEntries  int64  `json:"live_entries"`
	ArtifactName string `json:"artifact_name"`
}

// BatchSummary is the ledger provenance shown in the overview.
type BatchSummary struct {
	BatchNumber     int                `json:"batch_number"`
	Status          domain.BatchStatus `json:"status"`
	RequestedCount  int                `json:"requested_count"`
	AddedCount      int                `json:"added_count"`
	SkippedCount    int                `json:"skipped_count"`
	Method          domain.AddMethod   `json:"method"`
	DistributionMap map[string]int     `json:"distribution_map,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	CompletedAt     *time.Time         `json:"completed_at,omitempty"`
}

// Overview is the top-level admin summary.
type Overview struct {
	TotalURLs         int64              `json:"total_urls"`
	TotalSegments     int64              `json:"total_segments"`
	Totals            repo.SegmentTotals `json:"totals"`
	DirtySegments     int                `json:"dirty_segments"`
	TotalBatches      int64              `json:"total_batches"`
	LastBatch         *BatchSummary      `json:"last_batch,omitempty"`
	LastGeneratedAt   *time.Time         `json:"last_generated_at,omitempty"`
	LastFullRebuildAt *time.Time         `json:"last_full_rebuild_at,omitempty"`
}

// StatsService serves the read-only admin summaries.
type StatsService struct {
	DB *gorm.DB
}

// NewStatsService wires a StatsService.
func NewStatsService(db *gorm.DB) *StatsService {
	return &StatsService{DB: db}
}

// Distribution returns the per-segment fill snapshot with aggregate totals.
func (s *StatsService) Distribution(ctx context.Context) (*DistributionSnapshot, error) {
	segs, err := repo.ListActiveSegments(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	totals, err := repo.ActiveSegmentTotals(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	snap := &DistributionSnapshot{Totals: totals, Segments: make([]SegmentSummary, 0, len(segs))}
	for _, seg := range segs {
		snap.Segments = append(snap.Segments, summarize(seg))
	}
	return snap, nil
}

// Segment returns the detail view of one segment by name.
func (s *StatsService) Segment(ctx context.Context, name string) (*SegmentDetails, error) {
	seg, err := repo.GetSegmentByName(ctx, s.DB, name)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrSegmentNotFound
		}
		return nil, err
	}
	live, err := repo.CountSegmentEntries(ctx, s.DB, seg.Name)
	if err != nil {
		return nil, err
	}
	return &SegmentDetails{
		SegmentSummary: summarize(*seg),
		LiveEntries:    live,
		ArtifactName:   seg.ArtifactName(),
	}, nil
}

// Overview combines the fill totals with ledger provenance and the rebuild
// freshness stamps.
func (s *StatsService) Overview(ctx context.Context) (*Overview, error) {
	cfg, err := repo.GetConfig(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	totals, err := repo.ActiveSegmentTotals(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	dirty, err := repo.ListDirtySegments(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	batches, err := repo.CountBatches(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	stamp, err := repo.LastGenerationStamp(ctx, s.DB)
	if err != nil {
		return nil, err
	}

	ov := &Overview{
		TotalURLs:         cfg.TotalURLs,
		TotalSegments:     cfg.TotalSegments,
		Totals:            totals,
		DirtySegments:     len(dirty),
		TotalBatches:      batches,
		LastGeneratedAt:   stamp,
		LastFullRebuildAt: cfg.LastFullRebuildAt,
	}

	last, err := repo.LastBatch(ctx, s.DB)
	switch {
	case err == nil:
		ov.LastBatch = batchSummary(last)
	case errors.Is(err, repo.ErrNotFound):
		// empty ledger, nothing to report
	default:
		return nil, err
	}
	return ov, nil
}

func summarize(seg domain.Segment) SegmentSummary {
	return SegmentSummary{
		Name:            seg.Name,
		Family:          seg.Family,
		Ordinal:         seg.Ordinal,
		Capacity:        seg.Capacity,
		CurrentCount:    seg.CurrentCount,
		Available:       seg.Available(),
		Percentage:      seg.Percentage(),
		IsFull:          seg.IsFull,
		NeedsRebuild:    seg.NeedsRebuild,
		LastGeneratedAt: seg.LastGeneratedAt,
		SizeBytes:       seg.GeneratedSizeBytes,
		SizeHuman:       sitemap.FormatBytes(seg.GeneratedSizeBytes),
	}
}

func batchSummary(b *domain.Batch) *BatchSummary {
	s := &BatchSummary{
		BatchNumber:    b.BatchNumber,
		Status:         b.Status,
		RequestedCount: b.RequestedCount,
		AddedCount:     b.AddedCount,
		SkippedCount:   b.SkippedCount,
		Method:         b.Method,
		CreatedAt:      b.CreatedAt,
		CompletedAt:    b.CompletedAt,
	}
	if b.DistributionMap != "" {
		var m map[string]int
		if err := json.Unmarshal([]byte(b.DistributionMap), &m); err == nil {
			s.DistributionMap = m
		}
	}
	return s
}
