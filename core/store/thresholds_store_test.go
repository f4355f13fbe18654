package store

import (
	"context"
	"testing"
)

func TestThresholdsStoreDefaultRowAndUpdate(t *testing.T) {
	db := newTestDB(t)
	s := NewThresholdsStore(db, 2.0, 8.0)
	ctx := context.Background()

	th, err := s.Get(ctx)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if th == nil || th.MinTemp != 2.0 || th.MaxTemp != 8.0 {
		t.Fatalf("default band not created: %+v", th)
	}

	again, err := s.Get(ctx)
	if err != nil {
		t.Fatalf("second get: %v", err)
	}
	if again.ID != th.ID {
		t.Fatal("Get must reuse the existing row")
	}

	updated, err := s.Update(ctx, -5, 10, 1)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.MinTemp != -5 || updated.MaxTemp != 10 {
		t.Fatalf("band not updated: %+v", updated)
	}
	if updated.UpdatedBy == nil || *updated.UpdatedBy != 1 {
		t.Fatalf("updated_by not recorded: %+v", updated.UpdatedBy)
	}
}
