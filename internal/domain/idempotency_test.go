package domain

import (
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	return db
}

func TestIdempotency_Migration_Indexes_AndInsert(t *testing.T) {
	db := newTestDB(t)

	if err := db.AutoMigrate(&Idempotency{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	m := db.Migrator()
	if !m.HasTable(&Idempotency{}) {
		t.Fatalf("expected table %q to exist", Idempotency{}.TableName())
	}
	if !m.HasIndex(&Idempotency{}, "ux_initiator_scope_key") {
		t.Fatalf("expected composite index ux_initiator_scope_key to exist")
	}

	now := time.Now().UTC()

	rec := &Idempotency{
		ID:          "id-1",
		InitiatorID: "admin",
		Scope:       "/api/v1/ingest",
		Key:         "k1",
		BatchNumber: 7,
		Status:      201,
		CreatedAt:   now,
		ExpiresAt:   now.Add(time.Hour),
	}
	if err := db.Create(rec).Error; err != nil {
		t.Fatalf("insert valid: %v", err)
	}

	var got Idempotency
	if err := db.First(&got, "id = ?", "id-1").Error; err != nil {
		t.Fatalf("readback: %v", err)
	}
	if got.InitiatorID != "admin" || got.Scope != "/api/v1/ingest" || got.Key != "k1" || got.BatchNumber != 7 || got.Status != 201 {
		t.Fatalf("unexpected row: %+v", got)
	}
	if got.ExpiresAt.Before(now) {
		t.Fatalf("ExpiresAt should be after CreatedAt: %v vs %v", got.ExpiresAt, now)
	}

	// (initiator_id, scope, key) must be unique.
	dup := &Idempotency{
		ID:          "id-2",
		InitiatorID: "admin",
		Scope:       "/api/v1/ingest",
		Key:         "k1",
		BatchNumber: 8,
		Status:      200,
		CreatedAt:   now,
		ExpiresAt:   now.Add(2 * time.Hour),
	}
	if err := db.Create(dup).Error; err == nil {
		t.Fatalf("expected UNIQUE constraint violation on (initiator_id, scope, key)")
	}

	// A different scope with the same key is a distinct record.
	other := &Idempotency{
		ID:          "id-3",
		InitiatorID: "admin",
		Scope:       "/api/v1/sync/urls",
		Key:         "k1",
		BatchNumber: 0,
		Status:      201,
		CreatedAt:   now,
		ExpiresAt:   now.Add(time.Hour),
	}
	if err := db.Create(other).Error; err != nil {
		t.Fatalf("insert distinct scope: %v", err)
	}
}
