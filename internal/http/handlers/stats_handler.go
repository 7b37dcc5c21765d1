// Stats and inventory HTTP handlers.
//
// This file exposes the read-only admin endpoints:
//   - GET /stats/overview       (totals, ledger provenance, freshness stamps)
//   - GET /stats/distribution   (per-segment fill snapshot, ETag support)
//   - GET /segments/:name       (single-segment detail)
//   - GET /entries              (paginated entry listing with filters)
//   - GET /batches              (paginated ledger listing)
package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-sitemap-backend/internal/domain"
	"github.com/tbourn/go-sitemap-backend/internal/repo"
	"github.com/tbourn/go-sitemap-backend/internal/utils"
)

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListEntriesResponse wraps a page of entries and pagination information.
type ListEntriesResponse struct {
	Entries    []domain.Entry `json:"entries"`
	Pagination Pagination     `json:"pagination"`
}

// ListBatchesResponse wraps a page of ledger rows and pagination information.
type ListBatchesResponse struct {
	Batches    []domain.Batch `json:"batches"`
	Pagination Pagination     `json:"pagination"`
}

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

func paginate(page, pageSize int, total int64) Pagination {
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

// Overview handles GET /stats/overview.
func (h *Handlers) Overview(c *gin.Context) {
	ov, err := h.statsSvc.Overview(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, ov)
}

// Distribution handles GET /stats/distribution. Supports a weak ETag derived
// from the active URL total and the latest generation stamp; unchanged
// inventories return 304.
func (h *Handlers) Distribution(c *gin.Context) {
	ctx := c.Request.Context()

	// ETag pre-check (best effort).
	if stamp, err := repo.LastGenerationStamp(ctx, h.db); err == nil {
		var ts int64
		if stamp != nil {
			ts = stamp.Unix()
		}
		if total, err := repo.CountActiveEntries(ctx, h.db); err == nil {
			etag := fmt.Sprintf(`W/"dist:%d:%d"`, total, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	snap, err := h.statsSvc.Distribution(ctx)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, snap)
}

// GetSegment handles GET /segments/:name.
func (h *Handlers) GetSegment(c *gin.Context) {
	name := strings.TrimSpace(c.Param("name"))
	if name == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "segment name required")
		return
	}

	seg, err := h.statsSvc.Segment(c.Request.Context(), name)
	if err != nil {
		status, code := svcError(err)
		fail(c, status, code, err.Error())
		return
	}
	ok(c, http.StatusOK, seg)
}

// ListEntries handles GET /entries with optional entry_type, segment, and
// search query filters.
func (h *Handlers) ListEntries(c *gin.Context) {
	ctx := c.Request.Context()
	page, pageSize := clampPagination(c)

	filter := repo.EntryFilter{
		EntryType:   domain.EntryType(strings.ToUpper(strings.TrimSpace(c.Query("entry_type")))),
		SegmentName: strings.TrimSpace(c.Query("segment")),
		Search:      strings.TrimSpace(c.Query("q")),
	}

	total, err := repo.CountEntries(ctx, h.db, filter)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	items, err := repo.ListEntriesPage(ctx, h.db, filter, (page-1)*pageSize, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	if items == nil {
		items = []domain.Entry{}
	}

	ok(c, http.StatusOK, ListEntriesResponse{
		Entries:    items,
		Pagination: paginate(page, pageSize, total),
	})
}

// ListBatches handles GET /batches, newest first.
func (h *Handlers) ListBatches(c *gin.Context) {
	ctx := c.Request.Context()
	page, pageSize := clampPagination(c)

	total, err := repo.CountBatches(ctx, h.db)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	items, err := repo.ListBatchesPage(ctx, h.db, (page-1)*pageSize, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	if items == nil {
		items = []domain.Batch{}
	}

	ok(c, http.StatusOK, ListBatchesResponse{
		Batches:    items,
		Pagination: paginate(page, pageSize, total),
	})
}
