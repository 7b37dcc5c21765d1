// Package domain defines the persistence models for sitemap entries,
// segments, batches, and the global configuration row. These types are
// mapped with GORM and form the core data layer of the sitemap backend.
package domain

import (
	"strconv"
	"time"
)

// EntryType classifies the page a sitemap entry points at.
type EntryType string

// Entry types. Composite types denote location×category pages.
const (
	EntryStatic             EntryType = "STATIC"
	EntryCompany            EntryType = "COMPANY"
	EntryCountry            EntryType = "COUNTRY"
	EntryCity               EntryType = "CITY"
	EntrySubArea            EntryType = "SUBAREA"
	EntryCategory           EntryType = "CATEGORY"
	EntryCategorySub        EntryType = "CATEGORY_SUB"
	EntryCityCategory       EntryType = "CITY_CATEGORY"
	EntryCitySubcategory    EntryType = "CITY_SUBCATEGORY"
	EntrySubAreaCategory    EntryType = "SUBAREA_CATEGORY"
	EntrySubAreaSubcategory EntryType = "SUBAREA_SUBCATEGORY"
)

// Valid reports whether t names a known entry type.
func (t EntryType) Valid() bool {
	switch t {
	case EntryStatic, EntryCompany, EntryCountry, EntryCity, EntrySubArea,
		EntryCategory, EntryCategorySub, EntryCityCategory, EntryCitySubcategory,
		EntrySubAreaCategory, EntrySubAreaSubcategory:
		return true
	}
	return false
}

// ChangeFreq is the sitemap change frequency hint, per sitemaps.org.
type ChangeFreq string

// Allowed change frequency values.
const (
	FreqAlways  ChangeFreq = "always"
	FreqHourly  ChangeFreq = "hourly"
	FreqDaily   ChangeFreq = "daily"
	FreqWeekly  ChangeFreq = "weekly"
	FreqMonthly ChangeFreq = "monthly"
	FreqYearly  ChangeFreq = "yearly"
	FreqNever   ChangeFreq = "never"
)

// Valid reports whether f is one of the allowed change frequency values.
func (f ChangeFreq) Valid() bool {
	switch f {
	case FreqAlways, FreqHourly, FreqDaily, FreqWeekly, FreqMonthly, FreqYearly, FreqNever:
		return true
	}
	return false
}

// Family is the content family a segment holds. Segments of the companies
// family form a numbered series (companies-1, companies-2, ...); the other
// families normally stay single-segment but may also grow ordinals.
type Family string

// Content families.
const (
	FamilyStatic           Family = "static"
	FamilyLocations        Family = "locations"
	FamilyCategoriesSimple Family = "categories-simple"
	FamilyCategoriesMixed  Family = "categories-mixed"
	FamilyCompanies        Family = "companies"
)

// Valid reports whether fam names a known content family.
func (fam Family) Valid() bool {
	switch fam {
	case FamilyStatic, FamilyLocations, FamilyCategoriesSimple, FamilyCategoriesMixed, FamilyCompanies:
		return true
	}
	return false
}

// AddMethod records how an entry entered the inventory.
type AddMethod string

// Add methods, mirrored on both entries and batches.
const (
	MethodManual        AddMethod = "MANUAL"
	MethodFiltered      AddMethod = "FILTERED"
	MethodAutoGenerated AddMethod = "AUTO_GENERATED"
)

// BatchStatus is the lifecycle state of a batch ledger row.
type BatchStatus string

// Batch statuses.
const (
	BatchProcessing BatchStatus = "PROCESSING"
	BatchCompleted  BatchStatus = "COMPLETED"
	BatchFailed     BatchStatus = "FAILED"
)

// Entry is one published URL. Entries belong to exactly one segment and are
// never physically deleted: when the underlying catalog entity goes away the
// entry is soft-deactivated so that batch provenance stays auditable.
//
// Invariant: at most one active entry exists per URL. The url column is
// globally unique; inserts use ON CONFLICT(url) DO NOTHING so that slug
// changes producing a new URL for an already-listed entity are tolerated.
type Entry struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	URL       string    `json:"url"        gorm:"type:varchar(2048);not null;uniqueIndex:ux_entries_url"`
	Slug      string    `json:"slug"       gorm:"type:varchar(512);not null"`
	EntryType EntryType `json:"entry_type" gorm:"type:varchar(32);not null;index"`

	// Catalog references; zero or more are set depending on EntryType.
	CompanyID     string `json:"company_id,omitempty"      gorm:"type:char(36);index:idx_entries_company"`
	CountryID     string `json:"country_id,omitempty"      gorm:"type:char(36)"`
	CityID        string `json:"city_id,omitempty"         gorm:"type:char(36)"`
	SubAreaID     string `json:"sub_area_id,omitempty"     gorm:"type:char(36)"`
	CategoryID    string `json:"category_id,omitempty"     gorm:"type:char(36)"`
	SubCategoryID string `json:"sub_category_id,omitempty" gorm:"type:char(36)"`

	Priority   float64    `json:"priority"    gorm:"not null;default:0.5"`
	ChangeFreq ChangeFreq `json:"change_freq" gorm:"type:varchar(16);not null;default:'monthly'"`

	// SegmentName plus a dense 1..N position used only for serialization order.
	SegmentName       string `json:"segment_name"        gorm:"type:varchar(64);not null;index:idx_entries_segment,priority:1"`
	PositionInSegment int    `json:"position_in_segment" gorm:"not null;default:0;index:idx_entries_segment,priority:3"`

	BatchNumber int       `json:"batch_number,omitempty" gorm:"index"`
	AddMethod   AddMethod `json:"add_method"             gorm:"type:varchar(16);not null;default:'MANUAL'"`
	AddedBy     string    `json:"added_by,omitempty"     gorm:"type:varchar(64)"`

	Active       bool      `json:"active"        gorm:"not null;default:true;index:idx_entries_segment,priority:2"`
	LastModified time.Time `json:"last_modified" gorm:"not null"`
	AddedAt      time.Time `json:"added_at"      gorm:"not null;autoCreateTime"`
}

// TableName returns the database table name for Entry.
func (Entry) TableName() string { return "sitemap_entries" }

// Segment is a capacity-bounded bucket of entries of one family,
// materialized as one sitemap artifact.
//
// Invariants: CurrentCount never exceeds Capacity, and IsFull never reverts
// to false once set. Segments are never compacted or reflowed because their
// artifacts are externally linked (already indexed by crawlers).
type Segment struct {
	ID      string `json:"id"      gorm:"type:char(36);primaryKey"`
	Name    string `json:"name"    gorm:"type:varchar(64);not null;uniqueIndex:ux_segments_name"`
	Family  Family `json:"family"  gorm:"type:varchar(32);not null;uniqueIndex:ux_segments_family_ordinal,priority:1"`
	Ordinal int    `json:"ordinal" gorm:"not null;uniqueIndex:ux_segments_family_ordinal,priority:2"`

	Capacity     int  `json:"capacity"      gorm:"not null"`
	CurrentCount int  `json:"current_count" gorm:"not null;default:0"`
	IsFull       bool `json:"is_full"       gorm:"not null;default:false"`
	NeedsRebuild bool `json:"needs_rebuild" gorm:"not null;default:false;index"`

	LastGeneratedAt    *time.Time `json:"last_generated_at,omitempty"`
	GeneratedSizeBytes int64      `json:"generated_size_bytes" gorm:"not null;default:0"`
	GenerationTimeMS   int64      `json:"generation_time_ms"   gorm:"not null;default:0"`

	Active    bool      `json:"active" gorm:"not null;default:true"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Segment.
func (Segment) TableName() string { return "sitemap_segments" }

// ArtifactName returns the file name the segment's sitemap is written under.
func (s Segment) ArtifactName() string { return "sitemap-" + s.Name + ".xml" }

// Available returns the number of free entry slots left in the segment.
func (s Segment) Available() int {
	if n := s.Capacity - s.CurrentCount; n > 0 {
		return n
	}
	return 0
}

// Percentage returns the fill level of the segment in percent.
func (s Segment) Percentage() float64 {
	if s.Capacity <= 0 {
		return 0
	}
	return float64(s.CurrentCount) / float64(s.Capacity) * 100
}

// SegmentName composes the canonical segment name for a family and ordinal.
// The first segment of a single-series family keeps the bare family name so
// that artifact names stay stable ("sitemap-locations.xml"); the companies
// series is always numbered.
func SegmentName(fam Family, ordinal int) string {
	if fam != FamilyCompanies && ordinal == 1 {
		return string(fam)
	}
	return string(fam) + "-" + strconv.Itoa(ordinal)
}

// Batch is the immutable provenance record of one bulk-ingestion operation.
// DistributionMap and SegmentsAffected are stored JSON-encoded; the sum of
// the distribution map values always equals RequestedCount (duplicates are
// tracked in SkippedCount, never by mutating the map).
type Batch struct {
	BatchNumber    int       `json:"batch_number"    gorm:"primaryKey;autoIncrement"`
	RequestedCount int       `json:"requested_count" gorm:"not null"`
	AddedCount     int       `json:"added_count"     gorm:"not null;default:0"`
	SkippedCount   int       `json:"skipped_count"   gorm:"not null;default:0"`
	Method         AddMethod `json:"method"          gorm:"type:varchar(16);not null"`
	MethodParams   string    `json:"method_params,omitempty" gorm:"type:text"`

	SegmentsAffected string `json:"segments_affected" gorm:"type:text;not null"`
	DistributionMap  string `json:"distribution_map"  gorm:"type:text;not null"`

	InitiatorID   string      `json:"initiator_id,omitempty"   gorm:"type:varchar(64)"`
	InitiatorName string      `json:"initiator_name,omitempty" gorm:"type:varchar(128)"`
	Status        BatchStatus `json:"status" gorm:"type:varchar(16);not null;default:'PROCESSING';index"`
	Notes         string      `json:"notes,omitempty" gorm:"type:text"`

	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// TableName returns the database table name for Batch.
func (Batch) TableName() string { return "sitemap_batches" }

// Config is the singleton aggregate of derived totals. It is a read cache,
// refreshed after mutations; per-segment counts in sitemap_segments stay the
// source of truth.
type Config struct {
	ID            int   `json:"id" gorm:"primaryKey"`
	CompanyCap    int   `json:"company_cap"    gorm:"not null;default:10000"`
	DefaultCap    int   `json:"default_cap"    gorm:"not null;default:50000"`
	TotalURLs     int64 `json:"total_urls"     gorm:"not null;default:0"`
	TotalSegments int64 `json:"total_segments" gorm:"not null;default:0"`

	LastFullRebuildAt *time.Time `json:"last_full_rebuild_at,omitempty"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// TableName returns the database table name for Config.
func (Config) TableName() string { return "sitemap_config" }

// CapacityFor returns the configured default capacity for a family.
func (c Config) CapacityFor(fam Family) int {
	if fam == FamilyCompanies {
		return c.CompanyCap
	}
	return c.DefaultCap
}

// DefaultPriority returns the conventional priority for an entry type.
func DefaultPriority(t EntryType) float64 {
	switch t {
	case EntryStatic:
		return 1.0
	case EntryCompany:
		return 0.9
	case EntrySubArea, EntrySubAreaCategory, EntrySubAreaSubcategory:
		return 0.7
	default:
		return 0.8
	}
}

// DefaultChangeFreq returns the conventional change frequency for an entry type.
func DefaultChangeFreq(t EntryType) ChangeFreq {
	switch t {
	case EntryStatic:
		return FreqDaily
	case EntryCompany:
		return FreqMonthly
	default:
		return FreqWeekly
	}
}

// FamilyFor maps an entry type to the content family its segment lives in.
func FamilyFor(t EntryType) Family {
	switch t {
	case EntryStatic:
		return FamilyStatic
	case EntryCompany:
		return FamilyCompanies
	case EntryCountry, EntryCity, EntrySubArea:
		return FamilyLocations
	case EntryCategory, EntryCategorySub:
		return FamilyCategoriesSimple
	default:
		return FamilyCategoriesMixed
	}
}
