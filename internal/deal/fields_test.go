package deal

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/hyperengineering/dealsync/internal/cache"
	"github.com/hyperengineering/dealsync/internal/journal"
	"github.com/hyperengineering/dealsync/internal/types"
)

func confirmedRow(view types.DealView) *types.DealRow {
	return &types.DealRow{
		ID:             view.ID,
		StageID:        view.StageID,
		StageName:      view.StageName,
		AssignedTo:     view.AssignedTo,
		AssignedToName: view.AssignedToName,
		Title:          view.Title,
		Value:          view.Value,
		Priority:       view.Priority,
		Probability:    view.Probability,
		CreatedAt:      view.CreatedAt,
		UpdatedAt:      fixedNow,
		StageEnteredAt: view.StageEnteredAt,
		ListingID:      view.ListingID,
		ListingTitle:   view.ListingTitle,
		ListingPrice:   view.ListingPrice,
		BuyerID:        view.BuyerID,
		BuyerName:      view.BuyerName,
		BuyerEmail:     view.BuyerEmail,
		ContactName:    view.ContactName,
		ContactEmail:   view.ContactEmail,
		TaskCount:      view.TaskCount,
		ActivityCount:  view.ActivityCount,
	}
}

func TestUpdateFieldsStripsReadOnlyColumns(t *testing.T) {
	f := newFixture(nil)
	row := confirmedRow(f.deal(t, "d1"))
	row.Title = "Harborview Marina (renewed)"
	f.auth.fieldsRow = row

	_, err := f.coord.UpdateFields(context.Background(), "d1", map[string]any{
		"title":            "Harborview Marina (renewed)",
		"stage_name":       "forged",
		"task_count":       99,
		"has_data_room":    true,
		"assigned_to_name": "Mallory",
	}, "alice")
	if err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}

	sent := f.auth.lastFieldsReq.Fields
	if len(sent) != 1 {
		t.Fatalf("submitted fields = %v, want only title", sent)
	}
	if sent["title"] != "Harborview Marina (renewed)" {
		t.Errorf("title = %v", sent["title"])
	}
}

func TestUpdateFieldsNormalizesSentinelReferences(t *testing.T) {
	f := newFixture(nil)
	row := confirmedRow(f.deal(t, "d1"))
	f.auth.fieldsRow = row

	for _, sentinel := range []string{"unassigned", "", "undefined"} {
		_, err := f.coord.UpdateFields(context.Background(), "d1", map[string]any{
			"listing_id": sentinel,
			"title":      "kept",
		}, "alice")
		if err != nil {
			t.Fatalf("UpdateFields(%q): %v", sentinel, err)
		}

		sent := f.auth.lastFieldsReq.Fields
		value, present := sent["listing_id"]
		if !present {
			t.Errorf("sentinel %q: listing_id dropped, want explicit null", sentinel)
		}
		if value != nil {
			t.Errorf("sentinel %q: listing_id = %v, want nil", sentinel, value)
		}
	}
}

func TestUpdateFieldsNothingAcceptedSkipsRemote(t *testing.T) {
	f := newFixture(nil)
	before := f.deal(t, "d1")

	view, err := f.coord.UpdateFields(context.Background(), "d1", map[string]any{
		"id":         "forged",
		"created_at": time.Now(),
	}, "alice")
	if err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	if !reflect.DeepEqual(*view, before) {
		t.Errorf("view = %+v, want unchanged %+v", *view, before)
	}
	if f.auth.totalCalls() != 0 {
		t.Errorf("total remote calls = %d, want 0", f.auth.totalCalls())
	}
}

func TestUpdateFieldsOwnershipOnlyTakesAtomicPath(t *testing.T) {
	f := newFixture(nil)
	f.auth.ownerResult = &types.UpdateOwnerResult{
		OwnerChanged:      true,
		PreviousOwnerID:   strPtr("bob"),
		PreviousOwnerName: "Bob",
		StageName:         "Qualified",
	}

	view, err := f.coord.UpdateFields(context.Background(), "d2", map[string]any{
		"assigned_to": "carol",
	}, "alice")
	if err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}

	if f.auth.ownerCalls != 1 {
		t.Errorf("owner calls = %d, want 1", f.auth.ownerCalls)
	}
	if f.auth.fieldsCalls != 0 {
		t.Errorf("fields calls = %d, want 0", f.auth.fieldsCalls)
	}
	if view.AssignedTo == nil || *view.AssignedTo != "carol" {
		t.Errorf("assigned_to = %v, want carol", view.AssignedTo)
	}
	if f.auth.lastOwnerReq.OwnerID == nil || *f.auth.lastOwnerReq.OwnerID != "carol" {
		t.Errorf("owner request = %+v, want carol", f.auth.lastOwnerReq)
	}
}

func TestUpdateFieldsUnassignSentinelClearsOwner(t *testing.T) {
	f := newFixture(nil)
	f.auth.ownerResult = &types.UpdateOwnerResult{
		OwnerChanged:      true,
		PreviousOwnerID:   strPtr("bob"),
		PreviousOwnerName: "Bob",
		StageName:         "Qualified",
	}

	view, err := f.coord.UpdateFields(context.Background(), "d2", map[string]any{
		"assigned_to": "unassigned",
	}, "alice")
	if err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}

	if f.auth.ownerCalls != 1 {
		t.Errorf("owner calls = %d, want 1", f.auth.ownerCalls)
	}
	if f.auth.lastOwnerReq.OwnerID != nil {
		t.Errorf("owner request id = %v, want nil", f.auth.lastOwnerReq.OwnerID)
	}
	if view.AssignedTo != nil {
		t.Errorf("assigned_to = %v, want nil", view.AssignedTo)
	}
}

func TestUpdateFieldsRollsBackOnRemoteFailure(t *testing.T) {
	f := newFixture(nil)
	f.auth.fieldsErr = errors.New("gateway timeout")
	before, _ := f.deals.Get(cache.Deals)

	_, err := f.coord.UpdateFields(context.Background(), "d1", map[string]any{
		"title": "should not stick",
	}, "alice")
	if err == nil {
		t.Fatal("expected error")
	}

	after, _ := f.deals.Get(cache.Deals)
	if !reflect.DeepEqual(before, after) {
		t.Error("cache not restored after remote failure")
	}

	entries := f.rec.recorded()
	if len(entries) != 1 || entries[0].Outcome != journal.OutcomeRolledBack {
		t.Errorf("journal entries = %+v, want one rollback", entries)
	}
}

func TestUpdateFieldsPreservesExistenceFlags(t *testing.T) {
	f := newFixture(nil)

	// Existence flags come from the projection layer, not the row.
	items, _ := f.deals.Get(cache.Deals)
	for i := range items {
		if items[i].ID == "d1" {
			items[i].HasDataRoom = true
			items[i].MemoDistributed = true
		}
	}
	f.deals.Set(cache.Deals, items)

	row := confirmedRow(f.deal(t, "d1"))
	row.Value = 250000
	f.auth.fieldsRow = row

	view, err := f.coord.UpdateFields(context.Background(), "d1", map[string]any{
		"value": 250000,
	}, "alice")
	if err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}

	if view.Value != 250000 {
		t.Errorf("value = %v, want 250000", view.Value)
	}
	if !view.HasDataRoom || !view.MemoDistributed {
		t.Errorf("existence flags lost in merge: %+v", view)
	}
}

func TestUpdateFieldsUnknownDeal(t *testing.T) {
	f := newFixture(nil)

	_, err := f.coord.UpdateFields(context.Background(), "missing", map[string]any{
		"title": "x",
	}, "alice")
	if !errors.Is(err, ErrDealNotFound) {
		t.Errorf("err = %v, want ErrDealNotFound", err)
	}
}
