package core

import (
	"strings"
	"testing"

	"planningsync/pkg/domain"
)

func seedPlannings(t *testing.T, store *MemoryStore, plans ...Planning) {
	t.Helper()
	apply(t, store, func(tx *Transaction) { tx.ReceivePlannings(plans) })
}

func TestReceivePlanningsNormalizesCoverages(t *testing.T) {
	store := NewMemoryStore(nil)
	seedPlannings(t, store, Planning{ID: "p1", ETag: "v1"})

	got, _ := store.GetPlanning("p1")
	if got.Coverages == nil {
		t.Error("coverages must never be nil after ingest")
	}
}

func TestMarkPlanningCancelledNote(t *testing.T) {
	store := NewMemoryStore(nil)
	seedPlannings(t, store, Planning{ID: "p1", ETag: "v1"})

	apply(t, store, func(tx *Transaction) {
		tx.MarkPlanningCancelled(domain.MarkPlanningPayload{
			PlanningItem: "p1",
			Reason:       "Not happening anymore",
		})
	})

	got, _ := store.GetPlanning("p1")
	if got.State != domain.StateCancelled {
		t.Errorf("state = %q", got.State)
	}
	want := noteSeparator + "\nPlanning cancelled\nReason: Not happening anymore\n"
	if got.EdNote != want {
		t.Errorf("ednote = %q, want %q", got.EdNote, want)
	}
}

func TestMarkPlanningCancelledPreservesPriorNotes(t *testing.T) {
	store := NewMemoryStore(nil)
	seedPlannings(t, store, Planning{ID: "p1", ETag: "v1", EdNote: "original note"})

	apply(t, store, func(tx *Transaction) {
		tx.MarkPlanningCancelled(domain.MarkPlanningPayload{PlanningItem: "p1"})
	})

	got, _ := store.GetPlanning("p1")
	want := "original note\n\n" + noteSeparator + "\nPlanning cancelled\n"
	if got.EdNote != want {
		t.Errorf("ednote = %q, want %q", got.EdNote, want)
	}
}

func TestMarkPlanningCancelledViaEventUsesEventTemplate(t *testing.T) {
	store := NewMemoryStore(nil)
	seedPlannings(t, store, Planning{
		ID:   "p1",
		ETag: "v1",
		Coverages: []Coverage{
			{CoverageID: "c1"},
		},
	})

	apply(t, store, func(tx *Transaction) {
		tx.MarkPlanningCancelled(domain.MarkPlanningPayload{
			PlanningItem:      "p1",
			Reason:            "Venue closed",
			EventCancellation: true,
			CoverageState:     "ncostat:notint",
		})
	})

	got, _ := store.GetPlanning("p1")
	if !strings.HasPrefix(got.EdNote, noteSeparator+"\nEvent cancelled\n") {
		t.Errorf("planning ednote = %q, want event-level template", got.EdNote)
	}
	cov := got.Coverages[0]
	wantNote := noteSeparator + "\nEvent has been cancelled\nReason: Venue closed\n"
	if cov.Planning.InternalNote != wantNote {
		t.Errorf("coverage internal note = %q, want %q", cov.Planning.InternalNote, wantNote)
	}
	if cov.NewsCoverageStatus != "ncostat:notint" {
		t.Errorf("coverage status = %q", cov.NewsCoverageStatus)
	}
}

func TestMarkPlanningPostponedCascadesToAllCoverages(t *testing.T) {
	store := NewMemoryStore(nil)
	seedPlannings(t, store, Planning{
		ID:   "p1",
		ETag: "v1",
		Coverages: []Coverage{
			{CoverageID: "c1", Planning: domain.CoverageDetails{EdNote: "photo brief", InternalNote: "call first"}},
			{CoverageID: "c2"},
		},
	})

	apply(t, store, func(tx *Transaction) {
		tx.MarkPlanningPostponed(domain.MarkPlanningPayload{
			PlanningItem: "p1",
			Reason:       "Moved to next week",
		})
	})

	got, _ := store.GetPlanning("p1")
	if got.State != domain.StatePostponed {
		t.Errorf("state = %q", got.State)
	}
	fresh := noteSeparator + "\nPlanning has been postponed\nReason: Moved to next week\n"
	if want := "photo brief\n\ncall first\n\n" + fresh; got.Coverages[0].Planning.InternalNote != want {
		t.Errorf("coverage c1 internal note = %q, want %q", got.Coverages[0].Planning.InternalNote, want)
	}
	if got.Coverages[1].Planning.InternalNote != fresh {
		t.Errorf("coverage c2 internal note = %q, want %q", got.Coverages[1].Planning.InternalNote, fresh)
	}
}

func TestMarkCoverageCancelledTouchesOnlyNamedCoverages(t *testing.T) {
	store := NewMemoryStore(nil)
	seedPlannings(t, store, Planning{
		ID:   "p1",
		ETag: "v1",
		Coverages: []Coverage{
			{CoverageID: "c1"},
			{CoverageID: "c2"},
		},
	})

	apply(t, store, func(tx *Transaction) {
		tx.MarkCoverageCancelled(domain.MarkCoveragePayload{
			PlanningItem:  "p1",
			IDs:           []string{"c2"},
			Reason:        "Crew reassigned",
			CoverageState: "ncostat:notint",
		})
	})

	got, _ := store.GetPlanning("p1")
	if got.State == domain.StateCancelled {
		t.Error("coverage-level cancel must not change the planning state")
	}
	if note := got.Coverages[0].Planning.InternalNote; note != "" {
		t.Errorf("untargeted coverage note = %q", note)
	}
	want := noteSeparator + "\nCoverage cancelled\nReason: Crew reassigned\n"
	if note := got.Coverages[1].Planning.InternalNote; note != want {
		t.Errorf("targeted coverage note = %q, want %q", note, want)
	}
	if got.Coverages[1].NewsCoverageStatus != "ncostat:notint" {
		t.Errorf("targeted coverage status = %q", got.Coverages[1].NewsCoverageStatus)
	}
}

func TestReceiveCoverageUpsertsByID(t *testing.T) {
	store := NewMemoryStore(nil)
	seedPlannings(t, store, Planning{
		ID:        "p1",
		ETag:      "v1",
		Coverages: []Coverage{{CoverageID: "c1", Planning: domain.CoverageDetails{Slugline: "old"}}},
	})

	apply(t, store, func(tx *Transaction) {
		tx.ReceiveCoverage("p1", Coverage{CoverageID: "c1", Planning: domain.CoverageDetails{Slugline: "new"}})
	})
	apply(t, store, func(tx *Transaction) {
		tx.ReceiveCoverage("p1", Coverage{CoverageID: "c2"})
	})

	got, _ := store.GetPlanning("p1")
	if len(got.Coverages) != 2 {
		t.Fatalf("planning has %d coverages, want 2", len(got.Coverages))
	}
	if got.Coverages[0].Planning.Slugline != "new" {
		t.Errorf("matched coverage slugline = %q", got.Coverages[0].Planning.Slugline)
	}
}

func TestCoverageDeleted(t *testing.T) {
	store := NewMemoryStore(nil)
	seedPlannings(t, store, Planning{
		ID:        "p1",
		ETag:      "v1",
		Coverages: []Coverage{{CoverageID: "c1"}, {CoverageID: "c2"}},
	})

	apply(t, store, func(tx *Transaction) { tx.CoverageDeleted("p1", "c1") })
	got, _ := store.GetPlanning("p1")
	if len(got.Coverages) != 1 || got.Coverages[0].CoverageID != "c2" {
		t.Errorf("coverages after delete = %+v", got.Coverages)
	}

	// Absent coverage or parent: silent no-op, no commit.
	before := store.Version()
	apply(t, store, func(tx *Transaction) { tx.CoverageDeleted("p1", "missing") })
	apply(t, store, func(tx *Transaction) { tx.CoverageDeleted("ghost", "c2") })
	if got := store.Version(); got != before {
		t.Errorf("version advanced from %d to %d on no-op deletes", before, got)
	}
}

func TestUpdateCoverageAssignmentProjection(t *testing.T) {
	store := NewMemoryStore(nil)
	seedPlannings(t, store, Planning{
		ID:        "p1",
		ETag:      "v1",
		Coverages: []Coverage{{CoverageID: "c1"}},
	})

	apply(t, store, func(tx *Transaction) {
		tx.UpdateCoverageAssignment(domain.UpdateCoverageAssignmentPayload{
			PlanningItem: "p1",
			CoverageID:   "c1",
			Desk:         "desk1",
			User:         "user7",
			State:        "assigned",
		})
	})

	got, _ := store.GetPlanning("p1")
	assigned := got.Coverages[0].AssignedTo
	if assigned.Desk != "desk1" || assigned.User != "user7" || assigned.State != "assigned" {
		t.Errorf("assigned_to = %+v", assigned)
	}
}

func TestSpikePlanningReleasesEventPartitionLock(t *testing.T) {
	store := NewMemoryStore(nil)
	seedPlannings(t, store, Planning{
		ID:         "p1",
		ETag:       "v1",
		EventItem:  "e1",
		LockFields: lockedBy("u1", "s1"),
	})
	if !store.Locks().Held(domain.LockPartitionEvents, "e1") {
		t.Fatal("precondition: event-linked planning lock held under the event id")
	}

	apply(t, store, func(tx *Transaction) {
		tx.SpikePlanning(Planning{ID: "p1", ETag: "v2"})
	})

	if store.Locks().Held(domain.LockPartitionEvents, "e1") {
		t.Error("spike must release the event-partition lock")
	}
	got, _ := store.GetPlanning("p1")
	if got.State != domain.StateSpiked {
		t.Errorf("state = %q", got.State)
	}
}

func TestSpikePlanningFiltersListUnderNotSpikedFilter(t *testing.T) {
	store := NewMemoryStore(nil)
	seedPlannings(t, store,
		Planning{ID: "p1", ETag: "v1"},
		Planning{ID: "p2", ETag: "v1"},
	)
	apply(t, store, func(tx *Transaction) { tx.SetPlanningsList([]string{"p1", "p2"}) })

	apply(t, store, func(tx *Transaction) {
		tx.SpikePlanning(Planning{ID: "p1", ETag: "v2", RevertState: domain.StateDraft})
	})

	if list := store.PlanningsInList(); len(list) != 1 || list[0] != "p2" {
		t.Errorf("plannings list after spike = %v", list)
	}

	// Unspiking under the not-spiked filter leaves the list alone.
	apply(t, store, func(tx *Transaction) {
		tx.UnspikePlanning(Planning{ID: "p1", ETag: "v3", State: domain.StateDraft})
	})
	if list := store.PlanningsInList(); len(list) != 1 || list[0] != "p2" {
		t.Errorf("plannings list after unspike = %v", list)
	}
}

func TestSpikePlanningKeepsListUnderSpikedFilter(t *testing.T) {
	store := NewMemoryStore(nil)
	seedPlannings(t, store, Planning{ID: "p1", ETag: "v1"})
	apply(t, store, func(tx *Transaction) {
		tx.SetPlanningsSpikeFilter(domain.SpikeFilterSpiked)
		tx.SetPlanningsList([]string{"p1"})
	})

	apply(t, store, func(tx *Transaction) {
		tx.SpikePlanning(Planning{ID: "p1", ETag: "v2"})
	})

	if list := store.PlanningsInList(); len(list) != 1 {
		t.Errorf("spiked-filter list after spike = %v", list)
	}

	// Unspiking under the spiked filter removes the item instead.
	apply(t, store, func(tx *Transaction) {
		tx.UnspikePlanning(Planning{ID: "p1", ETag: "v3", State: domain.StateDraft})
	})
	if list := store.PlanningsInList(); len(list) != 0 {
		t.Errorf("spiked-filter list after unspike = %v", list)
	}
	got, _ := store.GetPlanning("p1")
	if got.State != domain.StateDraft || got.RevertState != "" {
		t.Errorf("unspiked planning = %+v", got)
	}
}
