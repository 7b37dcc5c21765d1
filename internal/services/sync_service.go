// Package services – SyncService
//
// Sync hooks keep the inventory consistent as catalog entities change
// without going through bulk ingestion: single-entity upserts fired on
// entity create/update/deactivate, and branch generation for composite URL
// spaces (every city × a category, and so on) that are large enough to need
// a preview before materialization.
package services

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-sitemap-backend/internal/catalog"
	"github.com/tbourn/go-sitemap-backend/internal/domain"
	"github.com/tbourn/go-sitemap-backend/internal/repo"
	"github.com/tbourn/go-sitemap-backend/internal/sitemap"
)

// RelatedIDs carries the catalog references an entry denotes. Zero or more
// are set depending on the entry type.
type RelatedIDs struct {
	CompanyID     string `json:"company_id,omitempty"`
	CountryID     string `json:"country_id,omitempty"`
	CityID        string `json:"city_id,omitempty"`
	SubAreaID     string `json:"sub_area_id,omitempty"`
	CategoryID    string `json:"category_id,omitempty"`
	SubCategoryID string `json:"sub_category_id,omitempty"`
}

func (r RelatedIDs) applyTo(e *domain.Entry) {
	e.CompanyID = r.CompanyID
	e.CountryID = r.CountryID
	e.CityID = r.CityID
	e.SubAreaID = r.SubAreaID
	e.CategoryID = r.CategoryID
	e.SubCategoryID = r.SubCategoryID
}

// UpsertRequest is a single-entity sync hook invocation.
type UpsertRequest struct {
	EntryType    domain.EntryType
	CanonicalURL string
	Related      RelatedIDs
	// Active mirrors the catalog entity's flag: false deactivates the entry.
	Active bool
}

// UpsertResult reports what the hook did.
type UpsertResult struct {
	Created     bool   `json:"created"`
	Reactivated bool   `json:"reactivated"`
	Deactivated bool   `json:"deactivated"`
	SegmentName string `json:"segment_name,omitempty"`
}

// BranchURL is one enumerated candidate of a composite URL space.
type BranchURL struct {
	URL     string     `json:"url"`
	Related RelatedIDs `json:"related"`
}

// BranchRequest drives branch preview and generation. EntityKind/EntityID
// name the anchor entity (typically the category) the branches hang off;
// generation is rejected when it is absent or inactive.
type BranchRequest struct {
	EntryType  domain.EntryType
	EntityKind catalog.Kind
	EntityID   string
	URLs       []BranchURL
}

// BranchPreview is the read-only diff of a candidate URL space.
type BranchPreview struct {
	Total    int      `json:"total"`
	Existing int      `json:"existing"`
	New      int      `json:"new"`
	Sample   []string `json:"sample"`
}

// BranchResult summarizes a branch generation run.
type BranchResult struct {
	Added            int      `json:"added"`
	Skipped          int      `json:"skipped"`
	SegmentsAffected []string `json:"segments_affected"`
}

// previewSampleSize caps the sample returned by PreviewBranches.
const previewSampleSize = 5

// SyncService implements the single-entity and branch sync hooks.
type SyncService struct {
	DB          *gorm.DB
	Distributor *Distributor
	Locks       *Locks
	Catalog     catalog.Catalog
}

// NewSyncService wires a SyncService with its collaborators.
func NewSyncService(db *gorm.DB, dist *Distributor, locks *Locks, cat catalog.Catalog) *SyncService {
	return &SyncService{DB: db, Distributor: dist, Locks: locks, Catalog: cat}
}

// UpsertSingle creates, reactivates, or deactivates the entry for one
// canonical URL. Deactivating a URL that was never listed is a no-op, not
// an error. The owning segment is always marked dirty when anything changed.
func (s *SyncService) UpsertSingle(ctx context.Context, req UpsertRequest) (*UpsertResult, error) {
	tr := otel.Tracer("services/SyncService")
	ctx, span := tr.Start(ctx, "UpsertSingle",
		trace.WithAttributes(attribute.String("entry.type", string(req.EntryType))),
	)
	defer span.End()

	if !sitemap.ValidLoc(req.CanonicalURL) {
		return nil, ErrInvalidURL
	}

	if !req.Active {
		n, err := repo.DeactivateEntryByURL(ctx, s.DB, req.CanonicalURL)
		if err != nil {
			return nil, err
		}
		res := &UpsertResult{Deactivated: n > 0}
		if n > 0 {
			if e, err := repo.GetEntryByURL(ctx, s.DB, req.CanonicalURL); err == nil {
				res.SegmentName = e.SegmentName
				if err := repo.MarkSegmentDirty(ctx, s.DB, e.SegmentName); err != nil {
					return nil, err
				}
			}
		}
		return res, nil
	}

	existing, err := repo.GetEntryByURL(ctx, s.DB, req.CanonicalURL)
	switch {
	case err == nil:
		if err := repo.ReactivateEntry(ctx, s.DB, req.CanonicalURL); err != nil {
			return nil, err
		}
		if err := repo.MarkSegmentDirty(ctx, s.DB, existing.SegmentName); err != nil {
			return nil, err
		}
		return &UpsertResult{Reactivated: true, SegmentName: existing.SegmentName}, nil

	case errors.Is(err, repo.ErrNotFound):
		segName, err := s.insertOne(ctx, req)
		if err != nil {
			return nil, err
		}
		return &UpsertResult{Created: true, SegmentName: segName}, nil

	default:
		return nil, err
	}
}

// insertOne places a brand-new entry into the current writable segment of
// its family, through the same distributor bulk ingestion uses, with
// count=1.
func (s *SyncService) insertOne(ctx context.Context, req UpsertRequest) (string, error) {
	fam := domain.FamilyFor(req.EntryType)
	unlock := s.Locks.Families.Lock(string(fam))
	defer unlock()

	plan, err := s.Distributor.Plan(ctx, 1, fam)
	if err != nil {
		return "", err
	}
	alloc := plan[0]
	if alloc.IsNew {
		seg := &domain.Segment{
			Name:     alloc.SegmentName,
			Family:   fam,
			Ordinal:  alloc.Ordinal,
			Capacity: alloc.Capacity,
			Active:   true,
		}
		if err := repo.CreateSegment(ctx, s.DB, seg); err != nil {
			return "", err
		}
	}

	e := domain.Entry{
		ID:                uuid.NewString(),
		URL:               req.CanonicalURL,
		Slug:              slugOf(req.CanonicalURL),
		EntryType:         req.EntryType,
		Priority:          domain.DefaultPriority(req.EntryType),
		ChangeFreq:        domain.DefaultChangeFreq(req.EntryType),
		SegmentName:       alloc.SegmentName,
		PositionInSegment: alloc.CurrentCount + 1,
		AddMethod:         domain.MethodAutoGenerated,
		Active:            true,
	}
	req.Related.applyTo(&e)

	// Same exclusion rule as bulk ingestion: a rebuild of this segment must
	// not write back a pre-insert live count.
	segUnlock := s.Locks.Segments.Lock(alloc.SegmentName)
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inserted, txErr := repo.InsertEntries(ctx, tx, []domain.Entry{e})
		if txErr != nil {
			return txErr
		}
		return repo.ApplyAllocation(ctx, tx, alloc.SegmentName,
			alloc.ResultingCount, alloc.WillBeFull, inserted > 0)
	})
	segUnlock()
	if err != nil {
		return "", err
	}
	return alloc.SegmentName, nil
}

// PreviewBranches diffs an enumerated candidate URL space against the
// existing inventory without writing anything.
func (s *SyncService) PreviewBranches(ctx context.Context, req BranchRequest) (*BranchPreview, error) {
	if err := s.checkAnchor(ctx, req); err != nil {
		return nil, err
	}
	urls := make([]string, len(req.URLs))
	for i, b := range req.URLs {
		if !sitemap.ValidLoc(b.URL) {
			return nil, ErrInvalidURL
		}
		urls[i] = b.URL
	}
	existing, err := repo.ExistingURLs(ctx, s.DB, urls)
	if err != nil {
		return nil, err
	}

	preview := &BranchPreview{Total: len(urls), Existing: len(existing)}
	for _, u := range urls {
		if _, ok := existing[u]; ok {
			continue
		}
		preview.New++
		if len(preview.Sample) < previewSampleSize {
			preview.Sample = append(preview.Sample, u)
		}
	}
	return preview, nil
}

// GenerateBranches materializes the "new" half of the diff: every candidate
// URL not yet in the inventory becomes an entry, packed through the regular
// distributor, and the touched segments are marked dirty.
func (s *SyncService) GenerateBranches(ctx context.Context, req BranchRequest) (*BranchResult, error) {
	tr := otel.Tracer("services/SyncService")
	ctx, span := tr.Start(ctx, "GenerateBranches",
		trace.WithAttributes(
			attribute.String("branch.entity_kind", string(req.EntityKind)),
			attribute.Int("branch.candidates", len(req.URLs)),
		),
	)
	defer span.End()

	if err := s.checkAnchor(ctx, req); err != nil {
		return nil, err
	}
	urls := make([]string, len(req.URLs))
	for i, b := range req.URLs {
		if !sitemap.ValidLoc(b.URL) {
			return nil, ErrInvalidURL
		}
		urls[i] = b.URL
	}
	existing, err := repo.ExistingURLs(ctx, s.DB, urls)
	if err != nil {
		return nil, err
	}

	var fresh []BranchURL
	for _, b := range req.URLs {
		if _, ok := existing[b.URL]; ok {
			continue
		}
		fresh = append(fresh, b)
	}
	result := &BranchResult{Skipped: len(req.URLs) - len(fresh)}
	if len(fresh) == 0 {
		return result, nil
	}

	fam := domain.FamilyFor(req.EntryType)
	unlock := s.Locks.Families.Lock(string(fam))
	defer unlock()

	plan, err := s.Distributor.Plan(ctx, len(fresh), fam)
	if err != nil {
		return nil, err
	}

	offset := 0
	for _, alloc := range plan {
		if alloc.IsNew {
			seg := &domain.Segment{
				Name:     alloc.SegmentName,
				Family:   fam,
				Ordinal:  alloc.Ordinal,
				Capacity: alloc.Capacity,
				Active:   true,
			}
			if err := repo.CreateSegment(ctx, s.DB, seg); err != nil {
				return result, err
			}
		}

		slice := fresh[offset : offset+alloc.Allocate]
		offset += alloc.Allocate

		entries := make([]domain.Entry, 0, len(slice))
		for i, b := range slice {
			e := domain.Entry{
				ID:                uuid.NewString(),
				URL:               b.URL,
				Slug:              slugOf(b.URL),
				EntryType:         req.EntryType,
				Priority:          domain.DefaultPriority(req.EntryType),
				ChangeFreq:        domain.DefaultChangeFreq(req.EntryType),
				SegmentName:       alloc.SegmentName,
				PositionInSegment: alloc.CurrentCount + i + 1,
				AddMethod:         domain.MethodAutoGenerated,
				Active:            true,
			}
			b.Related.applyTo(&e)
			entries = append(entries, e)
		}

		var inserted int64
		segUnlock := s.Locks.Segments.Lock(alloc.SegmentName)
		err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var txErr error
			inserted, txErr = repo.InsertEntries(ctx, tx, entries)
			if txErr != nil {
				return txErr
			}
			return repo.ApplyAllocation(ctx, tx, alloc.SegmentName,
				alloc.ResultingCount, alloc.WillBeFull, inserted > 0)
		})
		segUnlock()
		if err != nil {
			return result, err
		}
		result.Added += int(inserted)
		result.Skipped += len(slice) - int(inserted)
		result.SegmentsAffected = append(result.SegmentsAffected, alloc.SegmentName)
	}
	return result, nil
}

// checkAnchor verifies the anchor entity exists and is active.
func (s *SyncService) checkAnchor(ctx context.Context, req BranchRequest) error {
	if req.EntityKind == "" || req.EntityID == "" {
		return nil
	}
	ent, ok, err := s.Catalog.GetEntity(ctx, req.EntityKind, req.EntityID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrEntityNotFound
	}
	if !ent.IsActive {
		return ErrEntityInactive
	}
	return nil
}

// slugOf extracts the path portion of an absolute URL, without the leading
// slash, for the entry's slug column.
func slugOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return strings.TrimLeft(u.Path, "/")
}
