// Package services – Regenerator
//
// The regenerator turns segment state into sitemap artifacts. Two modes:
// FULL rebuilds every active segment, INCREMENTAL only those flagged
// needs_rebuild. Per-segment failures are isolated; the root index is
// rebuilt at the end of every run regardless, because a stale index is the
// only artifact crawlers discover the rest through.
package services

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-sitemap-backend/internal/catalog"
	"github.com/tbourn/go-sitemap-backend/internal/domain"
	"github.com/tbourn/go-sitemap-backend/internal/repo"
	"github.com/tbourn/go-sitemap-backend/internal/sitemap"
)

// RebuildMode selects which segments a rebuild run covers.
type RebuildMode string

// Rebuild modes.
const (
	RebuildFull        RebuildMode = "FULL"
	RebuildIncremental RebuildMode = "INCREMENTAL"
)

// ParseRebuildMode validates a caller-supplied mode string.
func ParseRebuildMode(s string) (RebuildMode, error) {
	switch RebuildMode(strings.ToUpper(strings.TrimSpace(s))) {
	case RebuildFull:
		return RebuildFull, nil
	case RebuildIncremental, RebuildMode(""):
		return RebuildIncremental, nil
	}
	return "", ErrInvalidMode
}

// SegmentOutcome reports one segment of a rebuild run.
type SegmentOutcome struct {
	SegmentName         string `json:"segment_name"`
	Skipped             bool   `json:"skipped,omitempty"`
	URLCount            int    `json:"url_count"`
	SizeBytes           int64  `json:"size_bytes"`
	CompressedSizeBytes int64  `json:"compressed_size_bytes,omitempty"`
	ElapsedMS           int64  `json:"elapsed_ms"`
	Error               string `json:"error,omitempty"`
}

// RebuildResult is the structured summary of a rebuild run.
type RebuildResult struct {
	Mode         RebuildMode      `json:"mode"`
	Success      bool             `json:"success"`
	Segments     []SegmentOutcome `json:"segments"`
	IndexWritten bool             `json:"index_written"`
	IndexError   string           `json:"index_error,omitempty"`
	StartedAt    time.Time        `json:"started_at"`
	DurationMS   int64            `json:"duration_ms"`
}

// Regenerator renders and writes sitemap artifacts from segment state.
type Regenerator struct {
	DB      *gorm.DB
	Sink    sitemap.Sink
	Catalog catalog.Catalog
	Locks   *Locks

	// BaseURL is the public site origin the index loc entries point into,
	// e.g. "https://example.com".
	BaseURL string
	// IndexName is the root index artifact name, normally "sitemap.xml".
	IndexName string
}

// NewRegenerator wires a Regenerator with its collaborators.
func NewRegenerator(db *gorm.DB, sink sitemap.Sink, cat catalog.Catalog, locks *Locks, baseURL string) *Regenerator {
	return &Regenerator{
		DB:        db,
		Sink:      sink,
		Catalog:   cat,
		Locks:     locks,
		BaseURL:   strings.TrimRight(baseURL, "/"),
		IndexName: "sitemap.xml",
	}
}

// Rebuild runs one regeneration pass. A failed segment is recorded in the
// result and left dirty for the next pass; only a failed index write makes
// the run itself unsuccessful.
func (r *Regenerator) Rebuild(ctx context.Context, mode RebuildMode) (*RebuildResult, error) {
	tr := otel.Tracer("services/Regenerator")
	ctx, span := tr.Start(ctx, "Rebuild",
		trace.WithAttributes(attribute.String("rebuild.mode", string(mode))),
	)
	defer span.End()

	started := time.Now().UTC()
	result := &RebuildResult{Mode: mode, Success: true, StartedAt: started}

	var (
		segs []domain.Segment
		err  error
	)
	switch mode {
	case RebuildFull:
		segs, err = repo.ListActiveSegments(ctx, r.DB)
	case RebuildIncremental:
		segs, err = repo.ListDirtySegments(ctx, r.DB)
	default:
		return nil, ErrInvalidMode
	}
	if err != nil {
		return nil, err
	}

	mods := newLastModResolver(r.Catalog)
	for _, seg := range segs {
		result.Segments = append(result.Segments, r.rebuildSegment(ctx, seg, mods))
	}

	if err := r.writeIndex(ctx); err != nil {
		log.Error().Err(err).Msg("sitemap index write failed")
		result.Success = false
		result.IndexError = err.Error()
	} else {
		result.IndexWritten = true
	}

	if mode == RebuildFull && result.Success {
		if err := repo.SetLastFullRebuild(ctx, r.DB, started); err != nil {
			log.Warn().Err(err).Msg("stamp last full rebuild")
		}
	}
	result.DurationMS = time.Since(started).Milliseconds()

	log.Info().
		Str("mode", string(mode)).
		Int("segments", len(result.Segments)).
		Bool("success", result.Success).
		Int64("duration_ms", result.DurationMS).
		Msg("sitemap rebuild finished")
	return result, nil
}

// rebuildSegment renders and writes one segment artifact under the segment's
// lock. Segments whose live entry count dropped to zero are skipped without
// touching the previous artifact; the dirty flag stays set so the condition
// remains visible.
func (r *Regenerator) rebuildSegment(ctx context.Context, seg domain.Segment, mods *lastModResolver) SegmentOutcome {
	unlock := r.Locks.Segments.Lock(seg.Name)
	defer unlock()

	out := SegmentOutcome{SegmentName: seg.Name}
	begin := time.Now()

	entries, err := repo.ListSegmentEntries(ctx, r.DB, seg.Name)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	if len(entries) == 0 {
		log.Warn().Str("segment", seg.Name).Msg("segment has no live entries, artifact left as-is")
		out.Skipped = true
		return out
	}

	urls := make([]sitemap.URL, 0, len(entries))
	for _, e := range entries {
		urls = append(urls, sitemap.URL{
			Loc:        e.URL,
			LastMod:    mods.lastModFor(ctx, e),
			ChangeFreq: string(e.ChangeFreq),
			Priority:   e.Priority,
		})
	}

	data := sitemap.RenderURLSet(urls)
	wr, err := r.Sink.Write(seg.ArtifactName(), data)
	if err != nil {
		log.Error().Err(err).Str("segment", seg.Name).Msg("segment artifact write failed")
		out.Error = err.Error()
		return out
	}

	out.URLCount = len(entries)
	out.SizeBytes = wr.SizeBytes
	out.CompressedSizeBytes = wr.CompressedSizeBytes
	out.ElapsedMS = time.Since(begin).Milliseconds()

	if err := repo.FinishGeneration(ctx, r.DB, seg.Name,
		len(entries), wr.SizeBytes, out.ElapsedMS, time.Now().UTC()); err != nil {
		out.Error = err.Error()
	}
	return out
}

// writeIndex renders and writes the root sitemap index over every active
// segment, whether or not their artifacts were touched this run.
func (r *Regenerator) writeIndex(ctx context.Context) error {
	segs, err := repo.ListActiveSegments(ctx, r.DB)
	if err != nil {
		return err
	}
	entries := make([]sitemap.IndexEntry, 0, len(segs))
	for _, seg := range segs {
		e := sitemap.IndexEntry{Loc: r.BaseURL + "/" + seg.ArtifactName()}
		if seg.LastGeneratedAt != nil {
			e.LastMod = *seg.LastGeneratedAt
		}
		entries = append(entries, e)
	}
	_, err = r.Sink.Write(r.IndexName, sitemap.RenderIndex(entries))
	return err
}

// lastModResolver prefers the referenced catalog entity's own last-modified
// stamp over the entry row's. Catalog snapshots are loaded lazily, one kind
// per run, so company-heavy rebuilds cost a single catalog listing.
type lastModResolver struct {
	cat    catalog.Catalog
	loaded map[catalog.Kind]map[string]time.Time
}

func newLastModResolver(cat catalog.Catalog) *lastModResolver {
	return &lastModResolver{cat: cat, loaded: make(map[catalog.Kind]map[string]time.Time)}
}

func (l *lastModResolver) lastModFor(ctx context.Context, e domain.Entry) time.Time {
	kind, id := refEntity(e)
	if l.cat == nil || kind == "" || id == "" {
		return e.LastModified
	}
	stamps, ok := l.loaded[kind]
	if !ok {
		stamps = make(map[string]time.Time)
		ents, err := l.cat.ListActiveEntities(ctx, kind)
		if err != nil {
			log.Warn().Err(err).Str("kind", string(kind)).Msg("catalog listing for lastmod failed")
		} else {
			for _, ent := range ents {
				stamps[ent.ID] = ent.LastModifiedAt
			}
		}
		l.loaded[kind] = stamps
	}
	if ts, ok := stamps[id]; ok && !ts.IsZero() {
		return ts
	}
	return e.LastModified
}

// refEntity picks the catalog entity an entry's lastmod tracks. Composite
// pages track nothing; their entry row stamp stands.
func refEntity(e domain.Entry) (catalog.Kind, string) {
	switch e.EntryType {
	case domain.EntryCompany:
		return catalog.KindCompany, e.CompanyID
	case domain.EntryCountry:
		return catalog.KindCountry, e.CountryID
	case domain.EntryCity:
		return catalog.KindCity, e.CityID
	case domain.EntrySubArea:
		return catalog.KindSubArea, e.SubAreaID
	case domain.EntryCategory:
		return catalog.KindCategory, e.CategoryID
	case domain.EntryCategorySub:
		// Subcategory pages store their id in the subcategory column; the
		// catalog lists subcategories under the category kind.
		return catalog.KindCategory, e.SubCategoryID
	}
	return "", ""
}
