// Package services – Distributor
//
// The distributor computes how a batch of N new items is packed across the
// capacity-bounded segments of one content family. The algorithm is a
// sequential first-fit over ascending ordinals, not a load balancer: packing
// stays predictable and already-full segments are never touched again, which
// keeps previously published artifacts stable.
//
// Plan itself persists nothing. It returns a plan the ingestion service
// applies transactionally, including rows for segments that do not exist yet
// (IsNew) which the caller must create before inserting entries.
package services

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-sitemap-backend/internal/domain"
	"github.com/tbourn/go-sitemap-backend/internal/repo"
)

// Allocation is one slice of a distribution plan: how many items go into
// which segment, and what the segment will look like afterwards.
type Allocation struct {
	SegmentName    string `json:"segment_name"`
	Ordinal        int    `json:"ordinal"`
	Capacity       int    `json:"capacity"`
	Allocate       int    `json:"allocate"`
	CurrentCount   int    `json:"current_count"`
	ResultingCount int    `json:"resulting_count"`
	WillBeFull     bool   `json:"will_be_full"`
	// IsNew marks a segment the plan invented; the caller creates it before
	// applying the slice.
	IsNew bool `json:"is_new"`
}

// Distributor plans batch packing against the current segment snapshot.
type Distributor struct {
	DB *gorm.DB
}

// NewDistributor constructs a Distributor bound to the given database.
func NewDistributor(db *gorm.DB) *Distributor {
	return &Distributor{DB: db}
}

// Plan loads the family's active segments and packs count items across them
// first-fit. The returned allocations always sum to count.
func (d *Distributor) Plan(ctx context.Context, count int, fam domain.Family) ([]Allocation, error) {
	if count <= 0 {
		return nil, ErrInvalidCount
	}
	if !fam.Valid() {
		return nil, ErrInvalidFamily
	}
	cfg, err := repo.GetConfig(ctx, d.DB)
	if err != nil {
		return nil, err
	}
	segs, err := repo.ListFamilySegments(ctx, d.DB, fam)
	if err != nil {
		return nil, err
	}
	return planAgainst(segs, count, fam, cfg.CapacityFor(fam)), nil
}

// planAgainst is the pure core of the distributor: a first-fit bin fill over
// the snapshot, synthesizing new segments (ordinal = max existing + 1, default
// capacity) whenever the tail runs out of room.
func planAgainst(snapshot []domain.Segment, count int, fam domain.Family, defaultCap int) []Allocation {
	byOrdinal := make(map[int]domain.Segment, len(snapshot))
	maxOrdinal := 0
	for _, s := range snapshot {
		byOrdinal[s.Ordinal] = s
		if s.Ordinal > maxOrdinal {
			maxOrdinal = s.Ordinal
		}
	}

	// Start at the lowest-ordinal segment with room; snapshot is ordinal-ordered.
	ordinal := 0
	for _, s := range snapshot {
		if !s.IsFull && s.Available() > 0 {
			ordinal = s.Ordinal
			break
		}
	}
	if ordinal == 0 {
		ordinal = maxOrdinal + 1
	}

	var plan []Allocation
	remaining := count
	for remaining > 0 {
		seg, exists := byOrdinal[ordinal]
		if !exists {
			seg = domain.Segment{
				Name:     domain.SegmentName(fam, ordinal),
				Family:   fam,
				Ordinal:  ordinal,
				Capacity: defaultCap,
			}
		}
		available := seg.Available()
		if available <= 0 {
			ordinal++
			continue
		}

		alloc := remaining
		if alloc > available {
			alloc = available
		}
		resulting := seg.CurrentCount + alloc
		plan = append(plan, Allocation{
			SegmentName:    seg.Name,
			Ordinal:        seg.Ordinal,
			Capacity:       seg.Capacity,
			Allocate:       alloc,
			CurrentCount:   seg.CurrentCount,
			ResultingCount: resulting,
			WillBeFull:     resulting >= seg.Capacity,
			IsNew:          !exists,
		})
		remaining -= alloc
		ordinal++
	}
	return plan
}
