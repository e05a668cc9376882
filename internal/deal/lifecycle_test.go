package deal

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/hyperengineering/dealsync/internal/cache"
	"github.com/hyperengineering/dealsync/internal/journal"
)

func TestSoftDeleteRemovesFromCollection(t *testing.T) {
	f := newFixture(nil)

	if err := f.coord.SoftDelete(context.Background(), "d1", "duplicate entry", "alice"); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}

	items, _ := f.deals.Get(cache.Deals)
	for _, item := range items {
		if item.ID == "d1" {
			t.Error("soft-deleted deal still in default collection")
		}
	}
	if len(items) != 2 {
		t.Errorf("collection size = %d, want 2", len(items))
	}
	if f.auth.deleteCalls != 1 {
		t.Errorf("delete calls = %d, want 1", f.auth.deleteCalls)
	}

	entries := f.rec.recorded()
	if len(entries) != 1 || entries[0].Outcome != journal.OutcomeCommitted {
		t.Errorf("journal entries = %+v, want one commit", entries)
	}
}

func TestSoftDeleteRollsBackOnRemoteFailure(t *testing.T) {
	f := newFixture(nil)
	f.auth.deleteErr = errors.New("authority unavailable")
	before, _ := f.deals.Get(cache.Deals)

	if err := f.coord.SoftDelete(context.Background(), "d1", "", "alice"); err == nil {
		t.Fatal("expected error")
	}

	after, _ := f.deals.Get(cache.Deals)
	if !reflect.DeepEqual(before, after) {
		t.Error("cache not restored after remote failure")
	}
}

func TestSoftDeleteUnknownDeal(t *testing.T) {
	f := newFixture(nil)

	err := f.coord.SoftDelete(context.Background(), "missing", "", "alice")
	if !errors.Is(err, ErrDealNotFound) {
		t.Errorf("err = %v, want ErrDealNotFound", err)
	}
	if f.auth.totalCalls() != 0 {
		t.Errorf("total remote calls = %d, want 0", f.auth.totalCalls())
	}
}

func TestRestoreSchedulesReconciliation(t *testing.T) {
	rec := newMockReconciler()
	f := newFixture(func(cfg *CoordinatorConfig) {
		cfg.Reconciler = rec
	})

	if err := f.coord.Restore(context.Background(), "d-archived", "alice"); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if f.auth.restoreCalls != 1 {
		t.Errorf("restore calls = %d, want 1", f.auth.restoreCalls)
	}

	// The restored row reappears through reconciliation, not a patch.
	select {
	case key := <-rec.keys:
		if key != cache.Deals {
			t.Errorf("reconciled %q, want deals", key)
		}
	case <-time.After(time.Second):
		t.Error("no reconciliation scheduled after restore")
	}
}

func TestRestoreFailureDoesNotReconcile(t *testing.T) {
	rec := newMockReconciler()
	f := newFixture(func(cfg *CoordinatorConfig) {
		cfg.Reconciler = rec
	})
	f.auth.restoreErr = errors.New("not found upstream")

	if err := f.coord.Restore(context.Background(), "d-archived", "alice"); err == nil {
		t.Fatal("expected error")
	}

	select {
	case key := <-rec.keys:
		t.Errorf("unexpected reconciliation of %q", key)
	default:
	}

	entries := f.rec.recorded()
	if len(entries) != 1 || entries[0].Outcome != journal.OutcomeRolledBack {
		t.Errorf("journal entries = %+v, want one rollback", entries)
	}
}
