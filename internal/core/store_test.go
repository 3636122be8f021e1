package core

import (
	"context"
	"errors"
	"testing"

	"planningsync/pkg/domain"
)

func mustParse(t *testing.T, raw string) domain.Timestamp {
	t.Helper()
	ts, err := domain.ParseTimestamp(raw)
	if err != nil {
		t.Fatalf("parse timestamp %q: %v", raw, err)
	}
	return ts
}

func lockedBy(user, session string) domain.LockFields {
	return domain.LockFields{
		LockAction:  "edit",
		LockUser:    user,
		LockSession: session,
	}
}

func apply(t *testing.T, store *MemoryStore, fn func(tx *Transaction)) Result {
	t.Helper()
	res, err := store.RunInTransaction(context.Background(), func(tx *Transaction) error {
		fn(tx)
		return nil
	})
	if err != nil {
		t.Fatalf("transaction failed: %v", err)
	}
	return res
}

func TestInitAndReset(t *testing.T) {
	store := NewMemoryStore(nil)
	apply(t, store, func(tx *Transaction) {
		tx.ReceiveEvents([]Event{{ID: "e1", ETag: "v1"}})
	})

	store.Reset()
	if _, ok := store.GetEvent("e1"); ok {
		t.Error("reset store must not return entities")
	}
	if got := store.ListEvents(); len(got) != 0 {
		t.Errorf("reset store listed %d events", len(got))
	}

	store.Init()
	if got := store.Locks(); got.Events == nil || got.Recurring == nil {
		t.Error("init must restore the typed-empty lock table")
	}
	if got := store.Search().EventsSpikeFilter; got != domain.SpikeFilterNotSpiked {
		t.Errorf("initial events spike filter = %q", got)
	}
}

func TestNoOpTransactionSkipsCommit(t *testing.T) {
	store := NewMemoryStore(nil)
	before := store.Version()

	// Locking an uncached event is the canonical irrelevant notification.
	apply(t, store, func(tx *Transaction) {
		tx.LockEvent(Event{ID: "ghost", LockFields: lockedBy("u1", "s1")})
	})

	if got := store.Version(); got != before {
		t.Errorf("version advanced from %d to %d on a no-op", before, got)
	}
}

func TestFailedTransactionDiscardsChanges(t *testing.T) {
	store := NewMemoryStore(nil)
	boom := errors.New("boom")

	_, err := store.RunInTransaction(context.Background(), func(tx *Transaction) error {
		tx.ReceiveEvents([]Event{{ID: "e1", ETag: "v1"}})
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if _, ok := store.GetEvent("e1"); ok {
		t.Error("failed transaction must not commit")
	}
}

func TestReceiveIsIdempotent(t *testing.T) {
	store := NewMemoryStore(nil)
	event := Event{ID: "e1", Name: "press conference", ETag: "v1"}

	apply(t, store, func(tx *Transaction) { tx.ReceiveEvents([]Event{event}) })
	apply(t, store, func(tx *Transaction) { tx.ReceiveEvents([]Event{event}) })

	got, ok := store.GetEvent("e1")
	if !ok || got.Name != "press conference" || got.ETag != "v1" {
		t.Errorf("event after duplicate receive = %+v", got)
	}
	if n := len(store.ListEvents()); n != 1 {
		t.Errorf("store holds %d events, want 1", n)
	}
}

func TestSnapshotIsolation(t *testing.T) {
	store := NewMemoryStore(nil)
	apply(t, store, func(tx *Transaction) {
		tx.ReceivePlannings([]Planning{{
			ID:        "p1",
			ETag:      "v1",
			Coverages: []Coverage{{CoverageID: "c1"}},
		}})
	})

	observed, _ := store.GetPlanning("p1")

	apply(t, store, func(tx *Transaction) {
		tx.ReceiveCoverage("p1", Coverage{CoverageID: "c2"})
	})

	if len(observed.Coverages) != 1 {
		t.Errorf("previously observed snapshot mutated: %d coverages", len(observed.Coverages))
	}
	current, _ := store.GetPlanning("p1")
	if len(current.Coverages) != 2 {
		t.Errorf("committed planning has %d coverages, want 2", len(current.Coverages))
	}
}

func TestExportImportRebuildsLocks(t *testing.T) {
	store := NewMemoryStore(nil)
	apply(t, store, func(tx *Transaction) {
		tx.ReceiveEvents([]Event{
			{ID: "e1", ETag: "v1", LockFields: lockedBy("u1", "s1")},
			{ID: "e2", ETag: "v1", RecurrenceID: "r1", LockFields: lockedBy("u2", "s2")},
		})
		tx.ReceivePlannings([]Planning{
			{ID: "p1", ETag: "v1", LockFields: lockedBy("u3", "s3")},
		})
	})

	snapshot := store.ExportState()

	restored := NewMemoryStore(nil)
	restored.ImportState(snapshot)

	locks := restored.Locks()
	if !locks.Held(domain.LockPartitionEvents, "e1") {
		t.Error("event lock not rebuilt")
	}
	if !locks.Held(domain.LockPartitionRecurring, "r1") {
		t.Error("recurring lock not rebuilt")
	}
	if !locks.Held(domain.LockPartitionPlanning, "p1") {
		t.Error("planning lock not rebuilt")
	}
	if got, _ := restored.GetEvent("e2"); got.RecurrenceID != "r1" {
		t.Errorf("imported event = %+v", got)
	}
}

func TestReceiveLocksDropsStaleEntries(t *testing.T) {
	store := NewMemoryStore(nil)
	apply(t, store, func(tx *Transaction) {
		tx.ReceiveEvents([]Event{{ID: "e1", ETag: "v1", LockFields: lockedBy("u1", "s1")}})
	})
	if !store.Locks().Held(domain.LockPartitionEvents, "e1") {
		t.Fatal("precondition: e1 lock held")
	}

	// The bulk snapshot says e1 is no longer locked.
	apply(t, store, func(tx *Transaction) {
		tx.ReceiveLocks(domain.ReceiveLocksPayload{
			Events: []Event{{ID: "e1", ETag: "v2"}},
			Plans:  []Planning{{ID: "p1", ETag: "v1", LockFields: lockedBy("u2", "s2")}},
		})
	})

	locks := store.Locks()
	if locks.Held(domain.LockPartitionEvents, "e1") {
		t.Error("stale event lock survived the bulk snapshot")
	}
	if !locks.Held(domain.LockPartitionPlanning, "p1") {
		t.Error("planning lock from the snapshot missing")
	}
}

func TestViewSeesCommittedState(t *testing.T) {
	store := NewMemoryStore(nil)
	apply(t, store, func(tx *Transaction) {
		tx.ReceiveEvents([]Event{{ID: "e1", ETag: "v1"}})
		tx.SetEventsList([]string{"e1"})
	})

	err := store.View(context.Background(), func(v TransactionView) error {
		if _, ok := v.FindEvent("e1"); !ok {
			t.Error("view missing committed event")
		}
		if got := v.EventsInList(); len(got) != 1 || got[0] != "e1" {
			t.Errorf("view events list = %v", got)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view failed: %v", err)
	}
}
