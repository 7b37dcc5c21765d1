package handlers

import (
	"net/http"
	"testing"

	"github.com/tbourn/go-sitemap-backend/internal/services"
)

func TestUpsertEntry_CreatedVsUpdated(t *testing.T) {
	h := newHarness(t)
	body := map[string]any{
		"entry_type": "company",
		"url":        "https://example.com/companies/acme",
		"related":    map[string]string{"company_id": "c1"},
		"active":     true,
	}

	h.sync.upsert = &services.UpsertResult{Created: true, SegmentName: "companies-1"}
	w := h.do(t, http.MethodPost, "/sync/entry", body, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("created status = %d", w.Code)
	}

	h.sync.upsert = &services.UpsertResult{Reactivated: true, SegmentName: "companies-1"}
	w = h.do(t, http.MethodPost, "/sync/entry", body, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("reactivated status = %d", w.Code)
	}
	res := decode[services.UpsertResult](t, w)
	if !res.Reactivated {
		t.Errorf("response = %+v", res)
	}
}

func TestUpsertEntry_RequiresActiveFlag(t *testing.T) {
	h := newHarness(t)
	// "active" omitted entirely: binding must reject, so that a zero-value
	// false can never silently deactivate.
	w := h.do(t, http.MethodPost, "/sync/entry", map[string]any{
		"entry_type": "company",
		"url":        "https://example.com/companies/acme",
	}, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestUpsertEntry_ServiceError(t *testing.T) {
	h := newHarness(t)
	h.sync.err = services.ErrInvalidURL
	w := h.do(t, http.MethodPost, "/sync/entry", map[string]any{
		"entry_type": "company",
		"url":        "not-a-url",
		"active":     true,
	}, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func branchesBody() map[string]any {
	return map[string]any{
		"entry_type":  "city_category",
		"entity_kind": "category",
		"entity_id":   "cat-1",
		"urls": []map[string]any{
			{"url": "https://example.com/athens/plumbers"},
		},
	}
}

func TestPreviewBranches(t *testing.T) {
	h := newHarness(t)
	h.sync.preview = &services.BranchPreview{Total: 1, New: 1, Sample: []string{"https://example.com/athens/plumbers"}}

	w := h.do(t, http.MethodPost, "/branches/preview", branchesBody(), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	res := decode[services.BranchPreview](t, w)
	if res.New != 1 || len(res.Sample) != 1 {
		t.Errorf("preview = %+v", res)
	}
}

func TestGenerateBranches(t *testing.T) {
	h := newHarness(t)
	h.sync.branch = &services.BranchResult{Added: 1, SegmentsAffected: []string{"categories-mixed"}}

	w := h.do(t, http.MethodPost, "/branches/generate", branchesBody(), nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestGenerateBranches_AnchorConflicts(t *testing.T) {
	h := newHarness(t)

	h.sync.err = services.ErrEntityNotFound
	w := h.do(t, http.MethodPost, "/branches/generate", branchesBody(), nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing anchor status = %d, want 404", w.Code)
	}

	h.sync.err = services.ErrEntityInactive
	w = h.do(t, http.MethodPost, "/branches/generate", branchesBody(), nil)
	if w.Code != http.StatusConflict {
		t.Errorf("inactive anchor status = %d, want 409", w.Code)
	}
	resp := decode[ErrorResponse](t, w)
	if resp.Code != ErrCodeConflict {
		t.Errorf("error code = %s", resp.Code)
	}
}

func TestBranches_EmptyURLsRejected(t *testing.T) {
	h := newHarness(t)
	body := branchesBody()
	body["urls"] = []map[string]any{}
	w := h.do(t, http.MethodPost, "/branches/preview", body, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}
