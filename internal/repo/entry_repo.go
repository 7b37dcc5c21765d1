// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Entry model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When an entry is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
//
// Insert semantics deserve a note: InsertEntries uses ON CONFLICT(url) DO
// NOTHING, so re-inserting an already-known URL silently skips the row. The
// returned count reflects rows actually written, which is what the ingestion
// service reports as "added".
package repo

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-sitemap-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for consistency across the service
// layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// lookupChunk bounds the size of IN (...) lists so SQLite's variable limit
// is never hit on large candidate batches.
const lookupChunk = 500

// InsertEntries writes a slice of entries with skip-on-duplicate-URL
// semantics and returns the number of rows actually inserted.
func InsertEntries(ctx context.Context, db *gorm.DB, entries []domain.Entry) (int64, error) {
	if len(entries) == 0 {
		return 0, nil
	}
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "url"}},
			DoNothing: true,
		}).
		Create(&entries)
	return res.RowsAffected, res.Error
}

// refColumns is the allowlist of catalog-reference columns ActiveRefIDs may
// query; the column name is interpolated into SQL and must never come from
// user input directly.
var refColumns = map[string]struct{}{
	"company_id":      {},
	"country_id":      {},
	"city_id":         {},
	"sub_area_id":     {},
	"category_id":     {},
	"sub_category_id": {},
}

// ActiveRefIDs returns the subset of ids that already have an active entry
// referencing them through the given catalog column. Used for idempotent
// batch ingestion (duplicate candidates are skipped, not errored). The
// lookup is keyed by the catalog id, not the URL, so a slug change does not
// defeat deduplication.
func ActiveRefIDs(ctx context.Context, db *gorm.DB, column string, ids []string) (map[string]struct{}, error) {
	if _, ok := refColumns[column]; !ok {
		return nil, fmt.Errorf("unknown reference column %q", column)
	}
	out := make(map[string]struct{}, len(ids))
	for start := 0; start < len(ids); start += lookupChunk {
		end := start + lookupChunk
		if end > len(ids) {
			end = len(ids)
		}
		var rows []string
		err := db.WithContext(ctx).
			Model(&domain.Entry{}).
			Where(column+" IN ? AND active = ?", ids[start:end], true).
			Pluck(column, &rows).Error
		if err != nil {
			return nil, err
		}
		for _, id := range rows {
			out[id] = struct{}{}
		}
	}
	return out, nil
}

// ExistingURLs returns the subset of urls that already have an entry row,
// active or not. An inactive entry still occupies its URL slot: branch
// generation reactivates it instead of creating a duplicate.
func ExistingURLs(ctx context.Context, db *gorm.DB, urls []string) (map[string]struct{}, error) {
	out := make(map[string]struct{}, len(urls))
	for start := 0; start < len(urls); start += lookupChunk {
		end := start + lookupChunk
		if end > len(urls) {
			end = len(urls)
		}
		var rows []string
		err := db.WithContext(ctx).
			Model(&domain.Entry{}).
			Where("url IN ?", urls[start:end]).
			Pluck("url", &rows).Error
		if err != nil {
			return nil, err
		}
		for _, u := range rows {
			out[u] = struct{}{}
		}
	}
	return out, nil
}

// GetEntryByURL fetches a single entry by URL, or ErrNotFound.
func GetEntryByURL(ctx context.Context, db *gorm.DB, url string) (*domain.Entry, error) {
	var e domain.Entry
	if err := db.WithContext(ctx).Where("url = ?", url).First(&e).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

// DeactivateEntryByURL soft-deactivates any active entry with the given URL
// and returns the number of rows affected. Zero rows is not an error: the
// sync hook contract tolerates deactivating a URL that was never listed.
func DeactivateEntryByURL(ctx context.Context, db *gorm.DB, url string) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.Entry{}).
		Where("url = ? AND active = ?", url, true).
		Updates(map[string]any{"active": false, "last_modified": time.Now().UTC()})
	return res.RowsAffected, res.Error
}

// ReactivateEntry flips an entry back to active and refreshes LastModified.
func ReactivateEntry(ctx context.Context, db *gorm.DB, url string) error {
	res := db.WithContext(ctx).
		Model(&domain.Entry{}).
		Where("url = ?", url).
		Updates(map[string]any{"active": true, "last_modified": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListSegmentEntries returns the active entries of a segment in
// serialization order (position_in_segment ascending).
func ListSegmentEntries(ctx context.Context, db *gorm.DB, segmentName string) ([]domain.Entry, error) {
	var out []domain.Entry
	err := db.WithContext(ctx).
		Where("segment_name = ? AND active = ?", segmentName, true).
		Order("position_in_segment asc").
		Find(&out).Error
	return out, err
}

// CountSegmentEntries returns the live active-entry count of a segment.
// The regenerator prefers this over the cached Segment.CurrentCount.
func CountSegmentEntries(ctx context.Context, db *gorm.DB, segmentName string) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Entry{}).
		Where("segment_name = ? AND active = ?", segmentName, true).
		Count(&n).Error
	return n, err
}

// CountActiveEntries returns the total number of active entries.
func CountActiveEntries(ctx context.Context, db *gorm.DB) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Entry{}).
		Where("active = ?", true).
		Count(&n).Error
	return n, err
}

// EntryFilter narrows ListEntriesPage / CountEntries.
type EntryFilter struct {
	EntryType   domain.EntryType // empty = all types
	SegmentName string           // empty = all segments
	Search      string           // substring match on url or slug
}

func (f EntryFilter) apply(q *gorm.DB) *gorm.DB {
	q = q.Where("active = ?", true)
	if f.EntryType != "" {
		q = q.Where("entry_type = ?", f.EntryType)
	}
	if f.SegmentName != "" {
		q = q.Where("segment_name = ?", f.SegmentName)
	}
	if f.Search != "" {
		like := "%" + f.Search + "%"
		q = q.Where("url LIKE ? OR slug LIKE ?", like, like)
	}
	return q
}

// CountEntries returns the number of active entries matching the filter.
func CountEntries(ctx context.Context, db *gorm.DB, f EntryFilter) (int64, error) {
	var n int64
	err := f.apply(db.WithContext(ctx).Model(&domain.Entry{})).Count(&n).Error
	return n, err
}

// ListEntriesPage returns a page of active entries matching the filter,
// newest first. The caller computes offset and limit.
func ListEntriesPage(ctx context.Context, db *gorm.DB, f EntryFilter, offset, limit int) ([]domain.Entry, error) {
	var out []domain.Entry
	err := f.apply(db.WithContext(ctx)).
		Order("added_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
