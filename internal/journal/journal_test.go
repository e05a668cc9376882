package journal

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestAppendAndTail(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	id1, err := j.Append(ctx, Entry{
		DealID:    "d1",
		Operation: "move_stage",
		ActorID:   "alice",
		Outcome:   OutcomeCommitted,
		Detail:    json.RawMessage(`{"old_stage":"Qualified","new_stage":"Negotiation"}`),
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if id1 == "" {
		t.Fatal("Append returned empty id")
	}

	id2, err := j.Append(ctx, Entry{
		DealID:    "d2",
		Operation: "change_owner",
		ActorID:   "bob",
		Outcome:   OutcomeRolledBack,
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	entries, err := j.Tail(ctx, "", 10)
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}

	// Newest first. ULIDs are monotonic enough within a test to break
	// same-timestamp ties.
	if entries[0].ID != id2 || entries[1].ID != id1 {
		t.Errorf("order = %s, %s; want %s, %s", entries[0].ID, entries[1].ID, id2, id1)
	}
	if entries[1].Operation != "move_stage" || entries[1].Outcome != OutcomeCommitted {
		t.Errorf("entry = %+v", entries[1])
	}
	if string(entries[1].Detail) != `{"old_stage":"Qualified","new_stage":"Negotiation"}` {
		t.Errorf("detail = %s", entries[1].Detail)
	}
	if entries[0].Detail != nil {
		t.Errorf("detail = %s, want none", entries[0].Detail)
	}
	if entries[0].CreatedAt.IsZero() {
		t.Error("created_at not recorded")
	}
}

func TestTailFiltersByDeal(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	for _, dealID := range []string{"d1", "d2", "d1", "d3"} {
		if _, err := j.Append(ctx, Entry{DealID: dealID, Operation: "update_fields", ActorID: "alice", Outcome: OutcomeCommitted}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	entries, err := j.Tail(ctx, "d1", 10)
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries for d1, want 2", len(entries))
	}
	for _, e := range entries {
		if e.DealID != "d1" {
			t.Errorf("entry for %s leaked into filtered tail", e.DealID)
		}
	}
}

func TestTailLimit(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	for i := 0; i < 30; i++ {
		if _, err := j.Append(ctx, Entry{DealID: "d1", Operation: "update_fields", ActorID: "alice", Outcome: OutcomeCommitted}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	entries, err := j.Tail(ctx, "", 5)
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if len(entries) != 5 {
		t.Errorf("got %d entries, want 5", len(entries))
	}

	// Zero limit falls back to the default of 20.
	entries, err = j.Tail(ctx, "", 0)
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if len(entries) != 20 {
		t.Errorf("got %d entries, want default 20", len(entries))
	}
}

func TestCountByOutcome(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	outcomes := []Outcome{
		OutcomeCommitted, OutcomeCommitted, OutcomeCommitted,
		OutcomeRolledBack,
		OutcomeConflict, OutcomeConflict,
	}
	for _, outcome := range outcomes {
		if _, err := j.Append(ctx, Entry{DealID: "d1", Operation: "move_stage", ActorID: "alice", Outcome: outcome}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	counts, err := j.CountByOutcome(ctx)
	if err != nil {
		t.Fatalf("CountByOutcome: %v", err)
	}
	want := map[Outcome]int{OutcomeCommitted: 3, OutcomeRolledBack: 1, OutcomeConflict: 2}
	for outcome, n := range want {
		if counts[outcome] != n {
			t.Errorf("%s count = %d, want %d", outcome, counts[outcome], n)
		}
	}
}

func TestClosedJournal(t *testing.T) {
	j := openTestJournal(t)
	if err := j.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if _, err := j.Append(context.Background(), Entry{DealID: "d1"}); err != ErrClosed {
		t.Errorf("Append after close = %v, want ErrClosed", err)
	}
	if _, err := j.Tail(context.Background(), "", 10); err != ErrClosed {
		t.Errorf("Tail after close = %v, want ErrClosed", err)
	}
	if _, err := j.CountByOutcome(context.Background()); err != ErrClosed {
		t.Errorf("CountByOutcome after close = %v, want ErrClosed", err)
	}
}

func TestOpenCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deep", "journal.db")
	j, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer j.Close()

	if _, err := j.Append(context.Background(), Entry{DealID: "d1", Operation: "move_stage", ActorID: "a", Outcome: OutcomeCommitted}); err != nil {
		t.Fatalf("Append: %v", err)
	}
}
