// Package services – IngestService
//
// This file implements bulk ingestion: packing a batch of candidate URLs
// into segments according to a distribution plan, recording the operation in
// the batch ledger, and keeping segment stats consistent.
//
// Partial-failure semantics follow the ledger model: each segment slice is
// its own unit of work. A slice that commits stays committed even when a
// later slice fails; the batch is then finalized FAILED and the operator
// retries with the remaining candidates (duplicates are skipped, so a full
// retry is safe).
//
// Ingestion does not rebuild artifacts inline. It only marks the touched
// segments dirty; the cron sweep or an explicit rebuild call picks them up.
// That keeps "rebuild failure does not fail ingestion" structural instead of
// an exception-handling accident.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-sitemap-backend/internal/domain"
	"github.com/tbourn/go-sitemap-backend/internal/repo"
)

// Candidate is one item of an ingestion request: a catalog id plus the
// canonical slug its URL is composed from.
type Candidate struct {
	ID   string `json:"id"`
	Slug string `json:"slug"`
}

// IngestRequest describes one bulk-ingestion operation.
type IngestRequest struct {
	Candidates []Candidate
	EntryType  domain.EntryType
	Priority   float64
	ChangeFreq domain.ChangeFreq
	Method     domain.AddMethod
	// MethodParams is an opaque description of the filter that selected the
	// candidates; stored verbatim in the ledger.
	MethodParams  string
	InitiatorID   string
	InitiatorName string
	Notes         string
}

// IngestResult is the structured summary returned to the caller.
type IngestResult struct {
	BatchNumber      int                `json:"batch_number"`
	RequestedCount   int                `json:"requested_count"`
	AddedCount       int                `json:"added_count"`
	SkippedCount     int                `json:"skipped_count"`
	SegmentsAffected []string           `json:"segments_affected"`
	Status           domain.BatchStatus `json:"status"`
}

// IngestService packs candidate batches into segments.
type IngestService struct {
	DB          *gorm.DB
	Distributor *Distributor
	Locks       *Locks

	// BaseURL prefixes every composed URL, e.g. "https://example.com".
	BaseURL string
}

// NewIngestService wires an IngestService with its collaborators.
func NewIngestService(db *gorm.DB, dist *Distributor, locks *Locks, baseURL string) *IngestService {
	return &IngestService{
		DB:          db,
		Distributor: dist,
		Locks:       locks,
		BaseURL:     strings.TrimRight(baseURL, "/"),
	}
}

// Ingest validates the request, plans the distribution, records the batch,
// and applies the plan slice by slice. Duplicate candidates (already active
// for the same catalog id, or colliding on URL) are counted as skipped, not
// failed.
func (s *IngestService) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	tr := otel.Tracer("services/IngestService")
	ctx, span := tr.Start(ctx, "Ingest",
		trace.WithAttributes(
			attribute.Int("ingest.candidates", len(req.Candidates)),
			attribute.String("ingest.entry_type", string(req.EntryType)),
		),
	)
	defer span.End()

	if len(req.Candidates) == 0 {
		return nil, ErrEmptyCandidates
	}
	if req.Priority < 0 || req.Priority > 1 {
		return nil, ErrInvalidPriority
	}
	if req.ChangeFreq == "" {
		req.ChangeFreq = domain.DefaultChangeFreq(req.EntryType)
	}
	if !req.ChangeFreq.Valid() {
		return nil, ErrInvalidChangeFreq
	}
	if req.Method == "" {
		req.Method = domain.MethodManual
	}
	fam := domain.FamilyFor(req.EntryType)

	// Critical section: plan against the capacity snapshot and apply it
	// without another batch of the same family interleaving.
	unlock := s.Locks.Families.Lock(string(fam))
	defer unlock()

	plan, err := s.Distributor.Plan(ctx, len(req.Candidates), fam)
	if err != nil {
		return nil, err
	}

	distMap := make(map[string]int, len(plan))
	affected := make([]string, 0, len(plan))
	for _, a := range plan {
		distMap[a.SegmentName] += a.Allocate
		affected = append(affected, a.SegmentName)
	}
	distJSON, _ := json.Marshal(distMap)
	affJSON, _ := json.Marshal(affected)

	// Segments the plan invented must exist before entries reference them.
	for _, a := range plan {
		if !a.IsNew {
			continue
		}
		seg := &domain.Segment{
			Name:     a.SegmentName,
			Family:   fam,
			Ordinal:  a.Ordinal,
			Capacity: a.Capacity,
			Active:   true,
		}
		if err := repo.CreateSegment(ctx, s.DB, seg); err != nil {
			return nil, fmt.Errorf("create segment %s: %w", a.SegmentName, err)
		}
	}

	batch, err := repo.CreateBatch(ctx, s.DB, &domain.Batch{
		RequestedCount:   len(req.Candidates),
		Method:           req.Method,
		MethodParams:     req.MethodParams,
		SegmentsAffected: string(affJSON),
		DistributionMap:  string(distJSON),
		InitiatorID:      req.InitiatorID,
		InitiatorName:    req.InitiatorName,
		Notes:            req.Notes,
	})
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("ingest.batch_number", batch.BatchNumber))

	result := &IngestResult{
		BatchNumber:      batch.BatchNumber,
		RequestedCount:   len(req.Candidates),
		SegmentsAffected: affected,
	}

	refColumn := refColumnFor(req.EntryType)
	offset := 0
	for _, alloc := range plan {
		slice := req.Candidates[offset : offset+alloc.Allocate]
		offset += alloc.Allocate

		added, skipped, sliceErr := s.applySlice(ctx, batch, req, alloc, slice, refColumn)
		result.AddedCount += added
		result.SkippedCount += skipped
		if sliceErr != nil {
			result.Status = domain.BatchFailed
			note := fmt.Sprintf("failed at segment %s: %v", alloc.SegmentName, sliceErr)
			if err := repo.FinalizeBatch(ctx, s.DB, batch.BatchNumber, domain.BatchFailed,
				result.AddedCount, result.SkippedCount, note); err != nil {
				log.Error().Err(err).Int("batch", batch.BatchNumber).Msg("finalize failed batch")
			}
			return result, fmt.Errorf("ingest batch %d: %w", batch.BatchNumber, sliceErr)
		}
	}

	result.Status = domain.BatchCompleted
	if err := repo.FinalizeBatch(ctx, s.DB, batch.BatchNumber, domain.BatchCompleted,
		result.AddedCount, result.SkippedCount, ""); err != nil {
		return result, err
	}

	// Refresh the derived totals cache; a failure here never fails the batch.
	if _, err := repo.RefreshTotals(ctx, s.DB); err != nil {
		log.Warn().Err(err).Msg("refresh sitemap totals")
	}
	return result, nil
}

// applySlice processes one planned segment slice as a single unit of work:
// dedupe, insert the remainder with skip-on-duplicate-url semantics, and
// update the segment's packing stats.
func (s *IngestService) applySlice(ctx context.Context, batch *domain.Batch, req IngestRequest, alloc Allocation, slice []Candidate, refColumn string) (added, skipped int, err error) {
	var fresh []Candidate
	if refColumn != "" {
		ids := make([]string, len(slice))
		for i, c := range slice {
			ids[i] = c.ID
		}
		existing, lookErr := repo.ActiveRefIDs(ctx, s.DB, refColumn, ids)
		if lookErr != nil {
			return 0, 0, lookErr
		}
		for _, c := range slice {
			if _, dup := existing[c.ID]; dup {
				skipped++
				continue
			}
			fresh = append(fresh, c)
		}
	} else {
		// Composite pages have no single owning entity; dedupe on the
		// composed URL instead.
		urls := make([]string, len(slice))
		for i, c := range slice {
			urls[i] = s.BaseURL + "/" + strings.TrimLeft(c.Slug, "/")
		}
		existing, lookErr := repo.ExistingURLs(ctx, s.DB, urls)
		if lookErr != nil {
			return 0, 0, lookErr
		}
		for i, c := range slice {
			if _, dup := existing[urls[i]]; dup {
				skipped++
				continue
			}
			fresh = append(fresh, c)
		}
	}
	if len(fresh) == 0 {
		return 0, skipped, nil
	}

	entries := make([]domain.Entry, 0, len(fresh))
	for i, c := range fresh {
		e := domain.Entry{
			ID:                uuid.NewString(),
			URL:               s.BaseURL + "/" + strings.TrimLeft(c.Slug, "/"),
			Slug:              c.Slug,
			EntryType:         req.EntryType,
			Priority:          req.Priority,
			ChangeFreq:        req.ChangeFreq,
			SegmentName:       alloc.SegmentName,
			PositionInSegment: alloc.CurrentCount + i + 1,
			BatchNumber:       batch.BatchNumber,
			AddMethod:         req.Method,
			AddedBy:           req.InitiatorID,
			Active:            true,
			LastModified:      batch.CreatedAt,
		}
		setRef(&e, req.EntryType, c.ID)
		entries = append(entries, e)
	}

	// The segment lock excludes a rebuild in flight on the same segment:
	// FinishGeneration writes back the live count it read, which must not
	// interleave with this insert.
	unlock := s.Locks.Segments.Lock(alloc.SegmentName)
	var inserted int64
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		inserted, txErr = repo.InsertEntries(ctx, tx, entries)
		if txErr != nil {
			return txErr
		}
		return repo.ApplyAllocation(ctx, tx, alloc.SegmentName,
			alloc.ResultingCount, alloc.WillBeFull, inserted > 0)
	})
	unlock()
	if err != nil {
		return 0, skipped, err
	}

	// URL collisions inside the insert surface as rows not written.
	skipped += len(fresh) - int(inserted)
	return int(inserted), skipped, nil
}

// refColumnFor maps an entry type to the catalog column its candidates are
// deduplicated on.
func refColumnFor(t domain.EntryType) string {
	switch t {
	case domain.EntryCompany:
		return "company_id"
	case domain.EntryCountry:
		return "country_id"
	case domain.EntryCity:
		return "city_id"
	case domain.EntrySubArea:
		return "sub_area_id"
	case domain.EntryCategory:
		return "category_id"
	case domain.EntryCategorySub:
		return "sub_category_id"
	default:
		// Composite pages dedupe on URL; see applySlice.
		return ""
	}
}

// setRef stores the candidate's catalog id in the reference field matching
// the entry type.
func setRef(e *domain.Entry, t domain.EntryType, id string) {
	switch t {
	case domain.EntryCompany:
		e.CompanyID = id
	case domain.EntryCountry:
		e.CountryID = id
	case domain.EntryCity:
		e.CityID = id
	case domain.EntrySubArea:
		e.SubAreaID = id
	case domain.EntryCategory:
		e.CategoryID = id
	case domain.EntryCategorySub:
		e.SubCategoryID = id
	}
}
