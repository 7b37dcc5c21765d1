// Rebuild HTTP handler.
//
// This file exposes the explicit regeneration endpoint:
//   - POST /rebuild?mode=full|incremental   (regenerate artifacts)
//
// The mode defaults to incremental. A run whose only failure is a segment
// artifact still returns 200 with the per-segment errors listed; a failed
// index write returns 502 because crawlers discover everything through it.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-sitemap-backend/internal/services"
)

// Rebuild handles POST /rebuild.
func (h *Handlers) Rebuild(c *gin.Context) {
	mode, err := services.ParseRebuildMode(c.Query("mode"))
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "mode must be full or incremental")
		return
	}

	res, err := h.rebuildSvc.Rebuild(c.Request.Context(), mode)
	if err != nil {
		status, code := svcError(err)
		if status == http.StatusInternalServerError {
			code = ErrCodeRebuildFailed
		}
		fail(c, status, code, err.Error())
		return
	}
	if !res.Success {
		ok(c, http.StatusBadGateway, res)
		return
	}
	ok(c, http.StatusOK, res)
}
