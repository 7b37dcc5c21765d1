// Package sitemap renders sitemaps.org-compliant XML artifacts and writes
// them through a pluggable file sink. It is deliberately free of persistence
// and logging concerns: the regenerator service decides what to render and
// how to record the outcome.
//
// Two artifact shapes exist:
//
//   - the per-segment urlset, listing every active entry of one segment in
//     position order, and
//   - the root sitemap index, listing one <sitemap> element per active
//     segment.
//
// Rendering is deterministic: dates are formatted date-only (YYYY-MM-DD) and
// priorities to exactly one decimal, so artifact bytes only change when the
// underlying data does.
package sitemap

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// xmlHeader starts every artifact.
const xmlHeader = `<?xml version="1.0" encoding="UTF-8"?>` + "\n"

// URL is one <url> element of a urlset artifact.
type URL struct {
	Loc        string
	LastMod    time.Time
	ChangeFreq string
	Priority   float64
}

// IndexEntry is one <sitemap> element of the root index artifact.
type IndexEntry struct {
	Loc     string
	LastMod time.Time
}

// RenderURLSet produces a complete urlset document for the given urls, in
// the order provided.
func RenderURLSet(urls []URL) []byte {
	var b strings.Builder
	b.Grow(len(urls)*160 + 128)
	b.WriteString(xmlHeader)
	b.WriteString(`<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">` + "\n")
	for _, u := range urls {
		b.WriteString("  <url>\n")
		b.WriteString("    <loc>" + escapeXML(u.Loc) + "</loc>\n")
		b.WriteString("    <lastmod>" + formatDate(u.LastMod) + "</lastmod>\n")
		b.WriteString("    <changefreq>" + u.ChangeFreq + "</changefreq>\n")
		b.WriteString("    <priority>" + formatPriority(u.Priority) + "</priority>\n")
		b.WriteString("  </url>\n")
	}
	b.WriteString("</urlset>\n")
	return []byte(b.String())
}

// RenderIndex produces the root sitemap index document.
func RenderIndex(entries []IndexEntry) []byte {
	var b strings.Builder
	b.Grow(len(entries)*96 + 128)
	b.WriteString(xmlHeader)
	b.WriteString(`<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">` + "\n")
	for _, e := range entries {
		b.WriteString("  <sitemap>\n")
		b.WriteString("    <loc>" + escapeXML(e.Loc) + "</loc>\n")
		b.WriteString("    <lastmod>" + formatDate(e.LastMod) + "</lastmod>\n")
		b.WriteString("  </sitemap>\n")
	}
	b.WriteString("</sitemapindex>\n")
	return []byte(b.String())
}

// escapeXML escapes the five predefined XML entities.
func escapeXML(s string) string {
	r := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&apos;",
	)
	return r.Replace(s)
}

// formatDate renders a date-only lastmod. Crawlers ignore sub-day precision
// and a stable date keeps unchanged artifacts byte-identical across rebuilds
// within a day.
func formatDate(t time.Time) string {
	if t.IsZero() {
		t = time.Now().UTC()
	}
	return t.UTC().Format("2006-01-02")
}

// formatPriority renders a priority with exactly one decimal.
func formatPriority(p float64) string {
	return fmt.Sprintf("%.1f", p)
}

// ValidPriority reports whether p is inside the sitemaps.org range.
func ValidPriority(p float64) bool { return p >= 0 && p <= 1.0 }

// ValidLoc reports whether s parses as an absolute URL.
func ValidLoc(s string) bool {
	u, err := url.Parse(s)
	return err == nil && u.Scheme != "" && u.Host != ""
}
