package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_CountersAndPathFallback(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Metrics())

	// Route with a body, so the size histogram gets an observation.
	r.GET("/segments", func(c *gin.Context) {
		c.String(http.StatusOK, `{"segments":[]}`)
	})

	// Status-only route leaves Writer.Size() at -1, skipping the size histogram.
	r.POST("/rebuild", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	// Baselines guard against other tests in the package touching the vectors.
	baseOK := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/segments", "200"))
	base404 := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/missing", "404"))
	base204 := testutil.ToFloat64(httpReqs.WithLabelValues("POST", "/rebuild", "204"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/segments", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("GET /segments -> %d", w.Code)
	}

	// No matching route: the path label falls back to the raw URL path.
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("GET /missing -> %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/rebuild", nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("POST /rebuild -> %d", w.Code)
	}

	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/segments", "200")); got != baseOK+1 {
		t.Errorf("http_requests_total GET /segments 200 = %v, want %v", got, baseOK+1)
	}
	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/missing", "404")); got != base404+1 {
		t.Errorf("http_requests_total GET /missing 404 = %v, want %v", got, base404+1)
	}
	if got := testutil.ToFloat64(httpReqs.WithLabelValues("POST", "/rebuild", "204")); got != base204+1 {
		t.Errorf("http_requests_total POST /rebuild 204 = %v, want %v", got, base204+1)
	}

	// Inflight gauge must return to zero once handlers complete.
	if got := testutil.ToFloat64(httpInflight); got != 0 {
		t.Errorf("http_requests_inflight = %v, want 0", got)
	}
}
