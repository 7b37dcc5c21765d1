// Ingestion HTTP handlers.
//
// This file exposes the bulk-ingestion endpoint:
//   - POST /ingest   (pack a batch of candidate URLs into segments)
//
// Handlers are transport-thin: they validate input, call application
// services, and translate results into HTTP responses. Idempotent replays
// (same Idempotency-Key on the same route by the same initiator) are served
// from the batch ledger instead of re-running the ingestion.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tbourn/go-sitemap-backend/internal/domain"
	"github.com/tbourn/go-sitemap-backend/internal/http/middleware"
	"github.com/tbourn/go-sitemap-backend/internal/repo"
	"github.com/tbourn/go-sitemap-backend/internal/services"
)

//
// Service contracts (context-aware)
//

// IngestService defines the bulk-ingestion operation consumed by HTTP
// handlers. Implementations must be safe for concurrent use and honor the
// provided context.
type IngestService interface {
	// Ingest packs the candidates into segments and records the batch.
	Ingest(ctx context.Context, req services.IngestRequest) (*services.IngestResult, error)
}

// RebuildService defines artifact regeneration operations.
type RebuildService interface {
	// Rebuild regenerates segment artifacts and the root index.
	Rebuild(ctx context.Context, mode services.RebuildMode) (*services.RebuildResult, error)
}

// SyncService defines the single-entity and branch sync hooks.
type SyncService interface {
	UpsertSingle(ctx context.Context, req services.UpsertRequest) (*services.UpsertResult, error)
	PreviewBranches(ctx context.Context, req services.BranchRequest) (*services.BranchPreview, error)
	GenerateBranches(ctx context.Context, req services.BranchRequest) (*services.BranchResult, error)
}

// StatsService defines the read-only admin summaries.
type StatsService interface {
	Overview(ctx context.Context) (*services.Overview, error)
	Distribution(ctx context.Context) (*services.DistributionSnapshot, error)
	Segment(ctx context.Context, name string) (*services.SegmentDetails, error)
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints of the admin API. It depends on
// abstract service interfaces to keep transport concerns separate from
// business logic; DB is used directly only by the plain list endpoints.
type Handlers struct {
	ingestSvc  IngestService
	rebuildSvc RebuildService
	syncSvc    SyncService
	statsSvc   StatsService

	db             *gorm.DB
	idempotencyTTL time.Duration
}

// New constructs a Handlers instance bound to the given services.
func New(ingestSvc IngestService, rebuildSvc RebuildService, syncSvc SyncService, statsSvc StatsService, db *gorm.DB, idemTTL time.Duration) *Handlers {
	return &Handlers{
		ingestSvc:      ingestSvc,
		rebuildSvc:     rebuildSvc,
		syncSvc:        syncSvc,
		statsSvc:       statsSvc,
		db:             db,
		idempotencyTTL: idemTTL,
	}
}

// initiatorID resolves the request's initiator identity. It must agree with
// the replay lookup in the idempotency middleware, so both share
// middleware.InitiatorID.
func initiatorID(c *gin.Context) string {
	return middleware.InitiatorID(c)
}

//
// DTOs
//

// IngestRequest is the JSON payload for bulk ingestion.
type IngestRequest struct {
	// EntryType classifies the candidates (COMPANY, CITY, CATEGORY, ...).
	EntryType string `json:"entry_type" binding:"required"`
	// Candidates are the catalog ids plus canonical slugs to publish.
	Candidates []services.Candidate `json:"candidates" binding:"required"`
	// Priority overrides the type default when set (0.0 to 1.0).
	Priority float64 `json:"priority"`
	// ChangeFreq overrides the type default when set.
	ChangeFreq string `json:"change_freq"`
	// Method records provenance: MANUAL, FILTERED, or AUTO_GENERATED.
	Method string `json:"method"`
	// MethodParams is an opaque description of the selecting filter.
	MethodParams  string `json:"method_params"`
	InitiatorName string `json:"initiator_name"`
	Notes         string `json:"notes"`
}

// svcError maps service sentinel errors to an HTTP status and code.
func svcError(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrEmptyCandidates),
		errors.Is(err, services.ErrInvalidCount),
		errors.Is(err, services.ErrInvalidPriority),
		errors.Is(err, services.ErrInvalidChangeFreq),
		errors.Is(err, services.ErrInvalidFamily),
		errors.Is(err, services.ErrInvalidURL),
		errors.Is(err, services.ErrInvalidMode):
		return http.StatusBadRequest, ErrCodeBadRequest
	case errors.Is(err, services.ErrEntityNotFound),
		errors.Is(err, services.ErrSegmentNotFound):
		return http.StatusNotFound, ErrCodeNotFound
	case errors.Is(err, services.ErrEntityInactive):
		return http.StatusConflict, ErrCodeConflict
	}
	return http.StatusInternalServerError, ErrCodeInternal
}

//
// Handlers
//

// Ingest handles POST /ingest. It validates the payload, runs the bulk
// ingestion, and stores an idempotency record when the client supplied a
// key. Replays return the previously recorded batch with 200 instead of 201.
func (h *Handlers) Ingest(c *gin.Context) {
	ctx := c.Request.Context()

	// Serve replays from the ledger without re-ingesting.
	if middleware.IsReplay(c) {
		if key, hasKey := middleware.GetIdempotencyKey(c); hasKey {
			rec, err := repo.GetIdempotency(ctx, h.db, initiatorID(c), c.FullPath(), key, time.Now().UTC())
			if err == nil {
				if b, err := repo.GetBatch(ctx, h.db, rec.BatchNumber); err == nil {
					ok(c, http.StatusOK, b)
					return
				}
			}
		}
		// Replay flagged but the record vanished; fall through and re-run.
	}

	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	entryType := domain.EntryType(strings.ToUpper(strings.TrimSpace(req.EntryType)))
	if !entryType.Valid() {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unknown entry_type")
		return
	}

	res, err := h.ingestSvc.Ingest(ctx, services.IngestRequest{
		Candidates:    req.Candidates,
		EntryType:     entryType,
		Priority:      req.Priority,
		ChangeFreq:    domain.ChangeFreq(req.ChangeFreq),
		Method:        domain.AddMethod(strings.ToUpper(req.Method)),
		MethodParams:  req.MethodParams,
		InitiatorID:   initiatorID(c),
		InitiatorName: req.InitiatorName,
		Notes:         req.Notes,
	})
	if err != nil {
		status, code := svcError(err)
		if status == http.StatusInternalServerError {
			code = ErrCodeIngestFailed
		}
		// A failed batch still carries a ledger number worth reporting.
		if res != nil && res.BatchNumber > 0 {
			c.JSON(status, gin.H{
				"code":         code,
				"message":      err.Error(),
				"batch_number": res.BatchNumber,
				"status":       res.Status,
			})
			c.Abort()
			return
		}
		fail(c, status, code, err.Error())
		return
	}

	if key, hasKey := middleware.GetIdempotencyKey(c); hasKey {
		_, err := repo.CreateIdempotency(ctx, h.db, initiatorID(c), c.FullPath(), key,
			res.BatchNumber, http.StatusCreated, h.idempotencyTTL)
		if err != nil && !errors.Is(err, repo.ErrDuplicate) {
			middleware.LoggerFrom(c).Warn().Err(err).Msg("store idempotency record")
		}
	}

	ok(c, http.StatusCreated, res)
}
