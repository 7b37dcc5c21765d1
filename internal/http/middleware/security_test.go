package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func serveWithSecurity(opt SecurityOptions, mutate func(*http.Request)) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.Use(SecurityHeaders(opt))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	if mutate != nil {
		mutate(req)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSecurityHeaders_Baseline(t *testing.T) {
	w := serveWithSecurity(SecurityOptions{}, nil)

	want := map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Referrer-Policy":        "no-referrer",
	}
	for k, v := range want {
		if got := w.Header().Get(k); got != v {
			t.Errorf("%s = %q, want %q", k, got, v)
		}
	}
	if w.Header().Get("Strict-Transport-Security") != "" {
		t.Error("HSTS must not be emitted unless enabled")
	}
	if w.Header().Get("Permissions-Policy") != "" {
		t.Error("Permissions-Policy must not be emitted unless enabled")
	}
}

func TestSecurityHeaders_Optional(t *testing.T) {
	w := serveWithSecurity(SecurityOptions{NoStore: true, EnablePolicy: true}, nil)
	if got := w.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("Cache-Control = %q", got)
	}
	if w.Header().Get("Permissions-Policy") == "" {
		t.Error("Permissions-Policy missing")
	}
}

func TestSecurityHeaders_HSTSOnlyOnHTTPS(t *testing.T) {
	opt := SecurityOptions{EnableHSTS: true}

	w := serveWithSecurity(opt, nil)
	if w.Header().Get("Strict-Transport-Security") != "" {
		t.Error("HSTS emitted on plain HTTP")
	}

	w = serveWithSecurity(opt, func(r *http.Request) {
		r.Header.Set("X-Forwarded-Proto", "https")
	})
	hsts := w.Header().Get("Strict-Transport-Security")
	if !strings.HasPrefix(hsts, "max-age=") {
		t.Errorf("HSTS = %q, want max-age prefix", hsts)
	}
}

func TestSecurityHeaders_ExposesRequestID(t *testing.T) {
	w := serveWithSecurity(SecurityOptions{}, nil)
	if got := w.Header().Get("Access-Control-Expose-Headers"); !strings.Contains(got, "X-Request-ID") {
		t.Errorf("Access-Control-Expose-Headers = %q", got)
	}
}
