// Sync hook HTTP handlers.
//
// This file exposes the catalog-driven sync endpoints:
//   - POST /sync/entry          (single-entity upsert on create/update/deactivate)
//   - POST /branches/preview    (diff a composite URL space, read-only)
//   - POST /branches/generate   (materialize the new half of the diff)
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-sitemap-backend/internal/catalog"
	"github.com/tbourn/go-sitemap-backend/internal/domain"
	"github.com/tbourn/go-sitemap-backend/internal/services"
)

// UpsertEntryRequest is the JSON payload for the single-entity sync hook.
type UpsertEntryRequest struct {
	EntryType string              `json:"entry_type" binding:"required"`
	URL       string              `json:"url" binding:"required"`
	Related   services.RelatedIDs `json:"related"`
	// Active mirrors the catalog entity's flag; false deactivates the entry.
	Active *bool `json:"active" binding:"required"`
}

// BranchesRequest is the JSON payload for branch preview and generation.
type BranchesRequest struct {
	EntryType  string               `json:"entry_type" binding:"required"`
	EntityKind string               `json:"entity_kind"`
	EntityID   string               `json:"entity_id"`
	URLs       []services.BranchURL `json:"urls" binding:"required"`
}

// toBranchRequest validates and converts the transport payload.
func (r BranchesRequest) toBranchRequest() (services.BranchRequest, string) {
	entryType := domain.EntryType(strings.ToUpper(strings.TrimSpace(r.EntryType)))
	if !entryType.Valid() {
		return services.BranchRequest{}, "unknown entry_type"
	}
	if len(r.URLs) == 0 {
		return services.BranchRequest{}, "urls must not be empty"
	}
	return services.BranchRequest{
		EntryType:  entryType,
		EntityKind: catalog.Kind(strings.ToLower(strings.TrimSpace(r.EntityKind))),
		EntityID:   strings.TrimSpace(r.EntityID),
		URLs:       r.URLs,
	}, ""
}

// UpsertEntry handles POST /sync/entry.
func (h *Handlers) UpsertEntry(c *gin.Context) {
	var req UpsertEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	entryType := domain.EntryType(strings.ToUpper(strings.TrimSpace(req.EntryType)))
	if !entryType.Valid() {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unknown entry_type")
		return
	}

	res, err := h.syncSvc.UpsertSingle(c.Request.Context(), services.UpsertRequest{
		EntryType:    entryType,
		CanonicalURL: strings.TrimSpace(req.URL),
		Related:      req.Related,
		Active:       *req.Active,
	})
	if err != nil {
		status, code := svcError(err)
		if status == http.StatusInternalServerError {
			code = ErrCodeSyncFailed
		}
		fail(c, status, code, err.Error())
		return
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	ok(c, status, res)
}

// PreviewBranches handles POST /branches/preview.
func (h *Handlers) PreviewBranches(c *gin.Context) {
	var req BranchesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	br, msg := req.toBranchRequest()
	if msg != "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, msg)
		return
	}

	preview, err := h.syncSvc.PreviewBranches(c.Request.Context(), br)
	if err != nil {
		status, code := svcError(err)
		if status == http.StatusInternalServerError {
			code = ErrCodeSyncFailed
		}
		fail(c, status, code, err.Error())
		return
	}
	ok(c, http.StatusOK, preview)
}

// GenerateBranches handles POST /branches/generate.
func (h *Handlers) GenerateBranches(c *gin.Context) {
	var req BranchesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	br, msg := req.toBranchRequest()
	if msg != "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, msg)
		return
	}

	res, err := h.syncSvc.GenerateBranches(c.Request.Context(), br)
	if err != nil {
		status, code := svcError(err)
		if status == http.StatusInternalServerError {
			code = ErrCodeSyncFailed
		}
		fail(c, status, code, err.Error())
		return
	}
	ok(c, http.StatusCreated, res)
}
