// Package domain defines the core persistence models for the application.
// These types are used by GORM for database schema mapping and are shared
// across the repository and service layers.
package domain

import "time"

// Idempotency records the result of a previously processed mutating request,
// keyed by (initiator_id, scope, key). Scope is the logical operation the key
// protects (e.g. "ingest"). It enables safe retries of POST operations by
// returning the originally produced result without re-executing side effects.
type Idempotency struct {
	ID          string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	InitiatorID string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_initiator_scope_key,priority:1"`
	Scope       string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_initiator_scope_key,priority:2"`
	Key         string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_initiator_scope_key,priority:3"`
	BatchNumber int       `gorm:"type:INTEGER NOT NULL"`
	Status      int       `gorm:"type:INTEGER NOT NULL"`
	CreatedAt   time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt   time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
