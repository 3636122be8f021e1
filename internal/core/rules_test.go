package core

import (
	"context"
	"errors"
	"testing"

	"planningsync/pkg/domain"
)

func TestListMembershipBlocksUnknownIDs(t *testing.T) {
	store := NewMemoryStore(nil)
	seedEvents(t, store, Event{ID: "e1", ETag: "v1"})

	res, err := store.RunInTransaction(context.Background(), func(tx *Transaction) error {
		tx.SetEventsList([]string{"e1", "ghost"})
		return nil
	})

	var violation RuleViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("err = %v, want RuleViolationError", err)
	}
	found := false
	for _, v := range res.Violations {
		if v.Rule == "list_membership" && v.EntityID == "ghost" {
			found = true
		}
	}
	if !found {
		t.Errorf("violations = %+v, want list_membership for ghost", res.Violations)
	}
	if list := store.EventsInList(); len(list) != 0 {
		t.Errorf("blocked transition leaked into committed state: %v", list)
	}
}

func TestEtagPresenceWarnsWithoutBlocking(t *testing.T) {
	store := NewMemoryStore(nil)

	res, err := store.RunInTransaction(context.Background(), func(tx *Transaction) error {
		tx.ReceiveEvents([]Event{{ID: "e1"}})
		return nil
	})
	if err != nil {
		t.Fatalf("warn-level violation must not block: %v", err)
	}
	if len(res.Violations) != 1 || res.Violations[0].Rule != "etag_presence" {
		t.Fatalf("violations = %+v", res.Violations)
	}
	if res.Violations[0].Severity != SeverityWarn {
		t.Errorf("severity = %q", res.Violations[0].Severity)
	}
	if _, ok := store.GetEvent("e1"); !ok {
		t.Error("warned transition must still commit")
	}
}

func TestLockConsistencyDetectsOrphanedFields(t *testing.T) {
	state := newMemoryState()
	state.events["e1"] = Event{ID: "e1", ETag: "v1", LockFields: lockedBy("u1", "s1")}
	view := newTransactionView(&state)

	res, err := NewLockConsistencyRule().Evaluate(context.Background(), view, nil)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !res.HasBlocking() {
		t.Fatalf("locked entity without a table entry must block, got %+v", res.Violations)
	}
}

func TestLockConsistencyDetectsOrphanedEntry(t *testing.T) {
	state := newMemoryState()
	state.plannings["p1"] = Planning{ID: "p1", ETag: "v1", Coverages: []Coverage{}}
	state.locks.Apply(domain.LockPartitionPlanning, "p1", domain.Lock{ItemID: "p1", ItemType: "planning"})
	view := newTransactionView(&state)

	res, err := NewLockConsistencyRule().Evaluate(context.Background(), view, nil)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !res.HasBlocking() {
		t.Fatalf("table entry without lock fields must block, got %+v", res.Violations)
	}
}

func TestLockConsistencyAcceptsReducerOutput(t *testing.T) {
	store := NewMemoryStore(nil)
	seedEvents(t, store, Event{ID: "e1", ETag: "v1", RecurrenceID: "r1", LockFields: lockedBy("u1", "s1")})
	seedPlannings(t, store, Planning{ID: "p1", ETag: "v1", EventItem: "e2", LockFields: lockedBy("u2", "s2")})
	apply(t, store, func(tx *Transaction) {
		tx.ReceiveAssignments([]Assignment{{ID: "a1", ETag: "v1", LockFields: lockedBy("u3", "s3")}})
	})
}

func TestLockConsistencyDistinguishesSharedPartitionKeys(t *testing.T) {
	// An event-linked planning lock lives in the events partition under the
	// event id. The event itself being unlocked must not read as an orphan.
	state := newMemoryState()
	state.events["e1"] = Event{ID: "e1", ETag: "v1"}
	state.plannings["p1"] = Planning{ID: "p1", ETag: "v1", EventItem: "e1", Coverages: []Coverage{}, LockFields: lockedBy("u1", "s1")}
	state.locks.Apply(domain.LockPartitionEvents, "e1", domain.ConvertItemToLock("p1", "planning", state.plannings["p1"].LockFields))
	view := newTransactionView(&state)

	res, err := NewLockConsistencyRule().Evaluate(context.Background(), view, nil)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if res.HasBlocking() {
		t.Errorf("consistent shared-partition state flagged: %+v", res.Violations)
	}
}
