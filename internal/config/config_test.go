package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" || cfg.GinMode != "release" {
		t.Errorf("server defaults = %s / %s", cfg.Port, cfg.GinMode)
	}
	if cfg.APIBasePath != "/api/v1" {
		t.Errorf("APIBasePath = %s", cfg.APIBasePath)
	}
	if cfg.DBPath != "sitemap.db" || cfg.OutputDir != "public" {
		t.Errorf("app defaults = %s / %s", cfg.DBPath, cfg.OutputDir)
	}
	if cfg.CompanyCap != 10000 || cfg.DefaultCap != 50000 {
		t.Errorf("capacities = %d / %d", cfg.CompanyCap, cfg.DefaultCap)
	}
	if !cfg.Sweep.Enabled || cfg.Sweep.Spec != "*/5 * * * *" || cfg.Sweep.Timeout != 10*time.Minute {
		t.Errorf("sweep defaults = %+v", cfg.Sweep)
	}
	if cfg.IdempotencyTTL != 24*time.Hour {
		t.Errorf("IdempotencyTTL = %v", cfg.IdempotencyTTL)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SITE_BASE_URL", "https://example.com/")
	t.Setenv("SITEMAP_COMPANY_CAP", "500")
	t.Setenv("SWEEP_ENABLED", "false")
	t.Setenv("API_BASE_PATH", "admin/api/")
	t.Setenv("LOG_LEVEL", "WARNING")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SiteBaseURL != "https://example.com" {
		t.Errorf("SiteBaseURL = %s, want trailing slash trimmed", cfg.SiteBaseURL)
	}
	if cfg.CompanyCap != 500 {
		t.Errorf("CompanyCap = %d", cfg.CompanyCap)
	}
	if cfg.Sweep.Enabled {
		t.Error("sweep should be disabled")
	}
	if cfg.APIBasePath != "/admin/api" {
		t.Errorf("APIBasePath = %s, want normalized", cfg.APIBasePath)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %s, want warning alias normalized", cfg.LogLevel)
	}
}

func TestLoad_Validation(t *testing.T) {
	cases := map[string]string{
		"SITE_BASE_URL":       "ftp://example.com",
		"SITEMAP_COMPANY_CAP": "0",
		"SITEMAP_OUTPUT_DIR":  " ",
		"RATE_BURST":          "0",
		"LOG_LEVEL":           "verbose",
	}
	for key, bad := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, bad)
			if _, err := Load(); err == nil {
				t.Errorf("%s=%q: expected validation error", key, bad)
			}
		})
	}
}
