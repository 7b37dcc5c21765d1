package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-sitemap-backend/internal/domain"
	"github.com/tbourn/go-sitemap-backend/internal/http/middleware"
	"github.com/tbourn/go-sitemap-backend/internal/repo"
	"github.com/tbourn/go-sitemap-backend/internal/services"
)

//
// Stub services
//

type stubIngest struct {
	res *services.IngestResult
	err error
	got services.IngestRequest
}

func (s *stubIngest) Ingest(_ context.Context, req services.IngestRequest) (*services.IngestResult, error) {
	s.got = req
	return s.res, s.err
}

type stubRebuild struct {
	res  *services.RebuildResult
	err  error
	mode services.RebuildMode
}

func (s *stubRebuild) Rebuild(_ context.Context, mode services.RebuildMode) (*services.RebuildResult, error) {
	s.mode = mode
	return s.res, s.err
}

type stubSync struct {
	upsert  *services.UpsertResult
	preview *services.BranchPreview
	branch  *services.BranchResult
	err     error
}

func (s *stubSync) UpsertSingle(context.Context, services.UpsertRequest) (*services.UpsertResult, error) {
	return s.upsert, s.err
}

func (s *stubSync) PreviewBranches(context.Context, services.BranchRequest) (*services.BranchPreview, error) {
	return s.preview, s.err
}

func (s *stubSync) GenerateBranches(context.Context, services.BranchRequest) (*services.BranchResult, error) {
	return s.branch, s.err
}

type stubStats struct {
	overview *services.Overview
	snap     *services.DistributionSnapshot
	segment  *services.SegmentDetails
	err      error
}

func (s *stubStats) Overview(context.Context) (*services.Overview, error) {
	return s.overview, s.err
}

func (s *stubStats) Distribution(context.Context) (*services.DistributionSnapshot, error) {
	return s.snap, s.err
}

func (s *stubStats) Segment(context.Context, string) (*services.SegmentDetails, error) {
	return s.segment, s.err
}

//
// Harness
//

func newHandlerDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&domain.Entry{}, &domain.Segment{}, &domain.Batch{},
		&domain.Config{}, &domain.Idempotency{},
	); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

type harness struct {
	ingest  *stubIngest
	rebuild *stubRebuild
	sync    *stubSync
	stats   *stubStats
	db      *gorm.DB
	router  *gin.Engine
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	h := &harness{
		ingest:  &stubIngest{},
		rebuild: &stubRebuild{},
		sync:    &stubSync{},
		stats:   &stubStats{},
		db:      newHandlerDB(t),
	}
	handlers := New(h.ingest, h.rebuild, h.sync, h.stats, h.db, time.Hour)

	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(middleware.IdempotencyValidator(middleware.IdempotencyOptions{},
		func(ctx context.Context, initiatorID, scope, key string, now time.Time) (bool, error) {
			_, err := repo.GetIdempotency(ctx, h.db, initiatorID, scope, key, now)
			return err == nil, nil
		}))
	r.POST("/ingest", handlers.Ingest)
	r.POST("/rebuild", handlers.Rebuild)
	r.POST("/sync/entry", handlers.UpsertEntry)
	r.POST("/branches/preview", handlers.PreviewBranches)
	r.POST("/branches/generate", handlers.GenerateBranches)
	r.GET("/stats/overview", handlers.Overview)
	r.GET("/stats/distribution", handlers.Distribution)
	r.GET("/segments/:name", handlers.GetSegment)
	r.GET("/entries", handlers.ListEntries)
	r.GET("/batches", handlers.ListBatches)
	h.router = r
	return h
}

func (h *harness) do(t *testing.T, method, path string, body any, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return out
}
