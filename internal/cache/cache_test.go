package cache

import (
	"context"
	"reflect"
	"testing"
	"time"
)

type entry struct {
	ID    string
	Value int
}

func TestGetUnsetCollection(t *testing.T) {
	s := New[entry]()

	items, ok := s.Get(Deals)
	if ok {
		t.Error("expected ok=false for unset collection")
	}
	if items != nil {
		t.Errorf("expected nil items, got %v", items)
	}
}

func TestSetThenGet(t *testing.T) {
	s := New[entry]()
	s.Set(Deals, []entry{{ID: "d1", Value: 1}, {ID: "d2", Value: 2}})

	items, ok := s.Get(Deals)
	if !ok {
		t.Fatal("expected collection to be present")
	}
	if len(items) != 2 || items[0].ID != "d1" || items[1].ID != "d2" {
		t.Errorf("unexpected items: %v", items)
	}
}

func TestGetReturnsCopy(t *testing.T) {
	s := New[entry]()
	s.Set(Deals, []entry{{ID: "d1", Value: 1}})

	items, _ := s.Get(Deals)
	items[0].Value = 99

	again, _ := s.Get(Deals)
	if again[0].Value != 1 {
		t.Errorf("mutating a Get result leaked into the store: %v", again)
	}
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	// Round-trip law: restore applied immediately after snapshot with
	// no intervening set reproduces the prior value exactly.
	s := New[entry]()
	before := []entry{{ID: "d1", Value: 1}, {ID: "d2", Value: 2}}
	s.Set(Deals, before)

	snap := s.Snapshot(Deals)
	s.Restore(snap)

	after, ok := s.Get(Deals)
	if !ok {
		t.Fatal("collection missing after restore")
	}
	if !reflect.DeepEqual(before, after) {
		t.Errorf("round trip changed value: before=%v after=%v", before, after)
	}
}

func TestRestoreUndoesIntermediateSet(t *testing.T) {
	s := New[entry]()
	before := []entry{{ID: "d1", Value: 1}}
	s.Set(Deals, before)

	snap := s.Snapshot(Deals)
	s.Set(Deals, []entry{{ID: "d1", Value: 42}, {ID: "d3", Value: 3}})
	s.Restore(snap)

	after, _ := s.Get(Deals)
	if !reflect.DeepEqual(before, after) {
		t.Errorf("restore did not undo intermediate set: %v", after)
	}
}

func TestRestoreAbsentSnapshot(t *testing.T) {
	s := New[entry]()

	snap := s.Snapshot(Deals)
	s.Set(Deals, []entry{{ID: "d1"}})
	s.Restore(snap)

	if _, ok := s.Get(Deals); ok {
		t.Error("restoring a never-set snapshot should leave the collection absent")
	}
}

func TestSnapshotKey(t *testing.T) {
	s := New[entry]()
	snap := s.Snapshot(Stages)
	if snap.Key() != Stages {
		t.Errorf("expected key %q, got %q", Stages, snap.Key())
	}
}

func TestEvict(t *testing.T) {
	s := New[entry]()
	s.Set(Deals, []entry{{ID: "d1"}})
	s.Evict(Deals)

	if _, ok := s.Get(Deals); ok {
		t.Error("expected collection absent after evict")
	}
}

func TestBeginRefetchCancelsPrevious(t *testing.T) {
	s := New[entry]()

	first, cancelFirst := s.BeginRefetch(context.Background(), Deals)
	defer cancelFirst()
	_, cancelSecond := s.BeginRefetch(context.Background(), Deals)
	defer cancelSecond()

	select {
	case <-first.Done():
	default:
		t.Error("starting a second refetch should cancel the first")
	}
}

func TestCancelRefetch(t *testing.T) {
	s := New[entry]()

	ctx, cancel := s.BeginRefetch(context.Background(), Deals)
	defer cancel()
	s.CancelRefetch(Deals)

	select {
	case <-ctx.Done():
	default:
		t.Error("CancelRefetch should cancel the in-flight refetch context")
	}
}

func TestCancelRefetchWithoutInflight(t *testing.T) {
	s := New[entry]()
	// Must not panic.
	s.CancelRefetch(Deals)
}

func TestStalenessWindowCoalescing(t *testing.T) {
	s := New[entry]()

	if !s.NeedsReconcile(Deals) {
		t.Error("a never-reconciled collection should need reconciliation")
	}

	s.MarkFresh(Deals, time.Hour)
	if s.NeedsReconcile(Deals) {
		t.Error("collection inside the staleness window should not need reconciliation")
	}

	s.MarkFresh(Deals, -time.Second)
	if !s.NeedsReconcile(Deals) {
		t.Error("collection past the staleness window should need reconciliation")
	}
}
