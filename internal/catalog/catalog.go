// Package catalog specifies the read-only view this backend has of the
// domain catalog: the external system of record for companies, categories,
// cities, countries, and sub-areas. The sitemap engine never writes to the
// catalog; it only needs canonical slugs, activity flags, and last-modified
// stamps to compose URLs and date artifact entries.
package catalog

import (
	"context"
	"encoding/json"
	"os"
	"time"
)

// Kind names a catalog entity collection.
type Kind string

// Catalog entity kinds.
const (
	KindCompany  Kind = "company"
	KindCountry  Kind = "country"
	KindCity     Kind = "city"
	KindSubArea  Kind = "sub_area"
	KindCategory Kind = "category"
)

// Entity is the projection of a catalog record the sitemap engine needs.
type Entity struct {
	ID             string
	CanonicalSlug  string
	IsActive       bool
	LastModifiedAt time.Time
}

// Catalog provides read access to canonical entities. Implementations are
// expected to be safe for concurrent use; calls should honor ctx.
type Catalog interface {
	// ListActiveEntities returns every active entity of the given kind.
	ListActiveEntities(ctx context.Context, kind Kind) ([]Entity, error)
	// GetEntity returns one entity by kind and id regardless of its active
	// flag, or ok=false when it does not exist.
	GetEntity(ctx context.Context, kind Kind, id string) (Entity, bool, error)
}

// Static is an in-memory Catalog, used by tests and by deployments that
// push catalog snapshots instead of querying a live service.
type Static struct {
	Entities map[Kind][]Entity
}

// ListActiveEntities implements Catalog.
func (s *Static) ListActiveEntities(_ context.Context, kind Kind) ([]Entity, error) {
	var out []Entity
	for _, e := range s.Entities[kind] {
		if e.IsActive {
			out = append(out, e)
		}
	}
	return out, nil
}

// GetEntity implements Catalog.
func (s *Static) GetEntity(_ context.Context, kind Kind, id string) (Entity, bool, error) {
	for _, e := range s.Entities[kind] {
		if e.ID == id {
			return e, true, nil
		}
	}
	return Entity{}, false, nil
}

// snapshotEntity is the JSON shape of one entity in a snapshot file.
type snapshotEntity struct {
	ID             string    `json:"id"`
	Slug           string    `json:"slug"`
	Active         bool      `json:"active"`
	LastModifiedAt time.Time `json:"last_modified_at"`
}

// LoadSnapshot reads a JSON catalog snapshot from path into a Static catalog.
// The file maps kind names to entity lists:
//
//	{"company": [{"id": "...", "slug": "...", "active": true, "last_modified_at": "..."}]}
func LoadSnapshot(path string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw map[Kind][]snapshotEntity
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	s := &Static{Entities: make(map[Kind][]Entity, len(raw))}
	for kind, list := range raw {
		out := make([]Entity, 0, len(list))
		for _, e := range list {
			out = append(out, Entity{
				ID:             e.ID,
				CanonicalSlug:  e.Slug,
				IsActive:       e.Active,
				LastModifiedAt: e.LastModifiedAt,
			})
		}
		s.Entities[kind] = out
	}
	return s, nil
}
