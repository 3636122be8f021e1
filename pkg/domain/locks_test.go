package domain

import "testing"

func lockedAt(action, raw string) LockFields {
	ts, err := ParseTimestamp(raw)
	if err != nil {
		panic(err)
	}
	return LockFields{
		LockAction:  action,
		LockUser:    "user123",
		LockSession: "sess123",
		LockTime:    ts,
	}
}

func TestConvertItemToLock(t *testing.T) {
	fields := lockedAt("edit", "2099-10-15T14:30+0000")
	lock := ConvertItemToLock("e1", "events", fields)

	want := Lock{
		Action:   "edit",
		Session:  "sess123",
		User:     "user123",
		Time:     fields.LockTime,
		ItemType: "events",
		ItemID:   "e1",
	}
	if lock != want {
		t.Errorf("lock = %+v, want %+v", lock, want)
	}
}

func TestClassifyPlanningLock(t *testing.T) {
	cases := []struct {
		name      string
		plan      Planning
		partition LockPartition
		key       string
	}{
		{"standalone planning", Planning{ID: "p1"}, LockPartitionPlanning, "p1"},
		{"event-linked planning", Planning{ID: "p2", EventItem: "e3"}, LockPartitionEvents, "e3"},
		{"recurring planning", Planning{ID: "p3", EventItem: "e7", RecurrenceID: "r2"}, LockPartitionRecurring, "r2"},
	}
	for _, tc := range cases {
		partition, key := ClassifyPlanningLock(tc.plan)
		if partition != tc.partition || key != tc.key {
			t.Errorf("%s: classified as (%s, %s), want (%s, %s)", tc.name, partition, key, tc.partition, tc.key)
		}
	}
}

func TestClassifyEventLock(t *testing.T) {
	if partition, key := ClassifyEventLock(Event{ID: "e1"}); partition != LockPartitionEvents || key != "e1" {
		t.Errorf("single event classified as (%s, %s)", partition, key)
	}
	if partition, key := ClassifyEventLock(Event{ID: "e2", RecurrenceID: "r1"}); partition != LockPartitionRecurring || key != "r1" {
		t.Errorf("recurring event classified as (%s, %s)", partition, key)
	}
}

func TestDeriveLocks(t *testing.T) {
	events := []Event{
		{ID: "e1", LockFields: lockedAt("edit", "2099-10-15T14:30+0000")},
		{ID: "e2", RecurrenceID: "r1", LockFields: lockedAt("postpone", "2099-10-15T14:39+0000")},
		{ID: "e9"}, // unlocked, must not contribute
	}
	plans := []Planning{
		{ID: "p1", LockFields: lockedAt("update_time", "2099-10-15T14:33+0000")},
		{ID: "p2", EventItem: "e3", LockFields: lockedAt("reschedule", "2099-10-15T14:35+0000")},
		{ID: "p3", EventItem: "e7", RecurrenceID: "r2", LockFields: lockedAt("edit", "2099-10-15T14:37+0000")},
		{ID: "p9"},
	}
	assignments := []Assignment{
		{ID: "a1", LockFields: lockedAt("edit", "2099-10-15T14:30+0000")},
	}

	table := DeriveLocks(plans, events, assignments)

	expectKeys := func(m map[string]Lock, keys ...string) {
		t.Helper()
		if len(m) != len(keys) {
			t.Fatalf("partition has %d entries, want %d: %+v", len(m), len(keys), m)
		}
		for _, k := range keys {
			if _, ok := m[k]; !ok {
				t.Errorf("missing key %s in %+v", k, m)
			}
		}
	}
	expectKeys(table.Events, "e1", "e3")
	expectKeys(table.Planning, "p1")
	expectKeys(table.Recurring, "r1", "r2")
	expectKeys(table.Assignments, "a1")

	if lock := table.Events["e3"]; lock.ItemID != "p2" || lock.ItemType != "planning" {
		t.Errorf("event-linked planning lock = %+v, want item p2 of type planning", lock)
	}
	if lock := table.Recurring["r1"]; lock.ItemID != "e2" || lock.ItemType != "events" {
		t.Errorf("recurring event lock = %+v, want item e2 of type events", lock)
	}
}

func TestLockTableApplyRemoveClone(t *testing.T) {
	table := NewLockTable()
	table.Apply(LockPartitionEvents, "e1", Lock{ItemID: "e1", ItemType: "events"})
	if !table.Held(LockPartitionEvents, "e1") {
		t.Fatal("applied lock must be held")
	}

	cloned := table.Clone()
	table.Remove(LockPartitionEvents, "e1")
	if table.Held(LockPartitionEvents, "e1") {
		t.Error("removed lock must not be held")
	}
	if !cloned.Held(LockPartitionEvents, "e1") {
		t.Error("clone must be independent of the source table")
	}
}
