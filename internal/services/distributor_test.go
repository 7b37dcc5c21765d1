package services

import (
	"context"
	"errors"
	"testing"

	"github.com/tbourn/go-sitemap-backend/internal/domain"
)

func planTotal(plan []Allocation) int {
	n := 0
	for _, a := range plan {
		n += a.Allocate
	}
	return n
}

func TestPlanAgainst_FirstFit(t *testing.T) {
	snapshot := []domain.Segment{
		{Name: "companies-1", Family: domain.FamilyCompanies, Ordinal: 1, Capacity: 10, CurrentCount: 10, IsFull: true},
		{Name: "companies-2", Family: domain.FamilyCompanies, Ordinal: 2, Capacity: 10, CurrentCount: 7},
	}

	plan := planAgainst(snapshot, 5, domain.FamilyCompanies, 10)
	if len(plan) != 2 {
		t.Fatalf("plan slices = %d, want 2: %+v", len(plan), plan)
	}
	if plan[0].SegmentName != "companies-2" || plan[0].Allocate != 3 || !plan[0].WillBeFull {
		t.Errorf("first slice = %+v", plan[0])
	}
	if plan[1].SegmentName != "companies-3" || plan[1].Allocate != 2 || !plan[1].IsNew {
		t.Errorf("second slice = %+v", plan[1])
	}
	if planTotal(plan) != 5 {
		t.Errorf("plan total = %d, want 5", planTotal(plan))
	}
}

func TestPlanAgainst_EmptySnapshotSynthesizesFirstSegment(t *testing.T) {
	plan := planAgainst(nil, 3, domain.FamilyLocations, 100)
	if len(plan) != 1 {
		t.Fatalf("plan = %+v", plan)
	}
	a := plan[0]
	if a.SegmentName != "locations" || a.Ordinal != 1 || !a.IsNew || a.Allocate != 3 {
		t.Errorf("allocation = %+v", a)
	}
	if a.Capacity != 100 {
		t.Errorf("capacity = %d, want default 100", a.Capacity)
	}
}

func TestPlanAgainst_AllFullStartsNewOrdinal(t *testing.T) {
	snapshot := []domain.Segment{
		{Name: "companies-1", Family: domain.FamilyCompanies, Ordinal: 1, Capacity: 10, CurrentCount: 10, IsFull: true},
		{Name: "companies-2", Family: domain.FamilyCompanies, Ordinal: 2, Capacity: 10, CurrentCount: 10, IsFull: true},
	}
	plan := planAgainst(snapshot, 25, domain.FamilyCompanies, 10)
	if len(plan) != 3 {
		t.Fatalf("plan slices = %d, want 3: %+v", len(plan), plan)
	}
	wantNames := []string{"companies-3", "companies-4", "companies-5"}
	wantAlloc := []int{10, 10, 5}
	for i, a := range plan {
		if a.SegmentName != wantNames[i] || a.Allocate != wantAlloc[i] || !a.IsNew {
			t.Errorf("slice %d = %+v, want %s/%d new", i, a, wantNames[i], wantAlloc[i])
		}
	}
}

func TestPlanAgainst_NeverRevisitsFullSegments(t *testing.T) {
	// A lower ordinal with free space after a full one: packing starts at the
	// lowest non-full ordinal and walks upward only.
	snapshot := []domain.Segment{
		{Name: "companies-1", Family: domain.FamilyCompanies, Ordinal: 1, Capacity: 10, CurrentCount: 10, IsFull: true},
		{Name: "companies-2", Family: domain.FamilyCompanies, Ordinal: 2, Capacity: 10, CurrentCount: 2},
	}
	plan := planAgainst(snapshot, 4, domain.FamilyCompanies, 10)
	for _, a := range plan {
		if a.SegmentName == "companies-1" {
			t.Errorf("full segment received an allocation: %+v", plan)
		}
	}
}

func TestPlan_Validation(t *testing.T) {
	db := newTestDB(t)
	d := NewDistributor(db)
	ctx := context.Background()

	if _, err := d.Plan(ctx, 0, domain.FamilyCompanies); !errors.Is(err, ErrInvalidCount) {
		t.Errorf("count 0: %v, want ErrInvalidCount", err)
	}
	if _, err := d.Plan(ctx, 5, domain.Family("bogus")); !errors.Is(err, ErrInvalidFamily) {
		t.Errorf("bad family: %v, want ErrInvalidFamily", err)
	}
}

func TestPlan_UsesConfiguredCapacities(t *testing.T) {
	db := newTestDB(t)
	seedCaps(t, db, 10, 50)
	d := NewDistributor(db)

	plan, err := d.Plan(context.Background(), 15, domain.FamilyCompanies)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(plan) != 2 {
		t.Fatalf("plan = %+v", plan)
	}
	if plan[0].Capacity != 10 || plan[0].Allocate != 10 {
		t.Errorf("company capacity not applied: %+v", plan[0])
	}

	plan, err = d.Plan(context.Background(), 60, domain.FamilyLocations)
	if err != nil {
		t.Fatalf("Plan locations: %v", err)
	}
	if plan[0].Capacity != 50 {
		t.Errorf("default capacity not applied: %+v", plan[0])
	}
	if plan[0].SegmentName != "locations" || plan[1].SegmentName != "locations-2" {
		t.Errorf("segment naming = %s, %s", plan[0].SegmentName, plan[1].SegmentName)
	}
}
