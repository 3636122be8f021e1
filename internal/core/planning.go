package core

import "planningsync/pkg/domain"

const noteSeparator = "------------------------------------------------------------"

// ReceivePlannings upserts a batch of planning items, normalizing coverages
// before insertion.
func (tx *Transaction) ReceivePlannings(plans []Planning) {
	for _, plan := range plans {
		if plan.ID == "" {
			continue
		}
		incoming := normalizePlanning(plan)
		before, existed := tx.state.plannings[incoming.ID]
		tx.state.plannings[incoming.ID] = incoming
		syncPlanningLock(&tx.state, incoming)

		change := Change{Entity: EntityPlanning, Action: domain.ActionReceivePlannings, ID: incoming.ID, After: incoming}
		if existed {
			change.Before = before
		}
		tx.recordChange(change)
	}
}

// LockPlanning applies the lock fields and etag from the notification payload
// to the cached planning item.
func (tx *Transaction) LockPlanning(plan Planning) {
	cached, ok := tx.state.plannings[plan.ID]
	if !ok {
		return
	}
	before := cached
	cached.LockFields = plan.LockFields
	cached.ETag = plan.ETag
	tx.state.plannings[cached.ID] = cached
	syncPlanningLock(&tx.state, cached)
	tx.recordChange(Change{Entity: EntityPlanning, Action: domain.ActionLockPlanning, ID: cached.ID, Before: before, After: cached})
}

// UnlockPlanning clears the lock fields on the cached planning item.
func (tx *Transaction) UnlockPlanning(plan Planning) {
	cached, ok := tx.state.plannings[plan.ID]
	if !ok {
		return
	}
	before := cached
	cached.Clear()
	cached.ETag = plan.ETag
	tx.state.plannings[cached.ID] = cached
	syncPlanningLock(&tx.state, cached)
	tx.recordChange(Change{Entity: EntityPlanning, Action: domain.ActionUnlockPlanning, ID: cached.ID, Before: before, After: cached})
}

// SpikePlanning withdraws a planning item, releasing its lock, force-closing
// the editor if it is open on the item, and keeping the visible list
// consistent with the active spike filter.
func (tx *Transaction) SpikePlanning(plan Planning) {
	cached, ok := tx.state.plannings[plan.ID]
	if !ok {
		return
	}
	before := cached
	cached.Clear()
	cached.State = domain.StateSpiked
	cached.RevertState = plan.RevertState
	cached.ETag = plan.ETag
	tx.state.plannings[cached.ID] = cached
	syncPlanningLock(&tx.state, cached)

	if tx.state.search.PlanningsSpikeFilter == domain.SpikeFilterNotSpiked {
		tx.state.planningsInList = removeFromList(tx.state.planningsInList, cached.ID)
	}
	tx.closeEditorFor(EntityPlanning, cached.ID)
	tx.recordChange(Change{Entity: EntityPlanning, Action: domain.ActionSpikePlanning, ID: cached.ID, Before: before, After: cached})
}

// UnspikePlanning restores a withdrawn planning item and clears its revert
// state.
func (tx *Transaction) UnspikePlanning(plan Planning) {
	cached, ok := tx.state.plannings[plan.ID]
	if !ok {
		return
	}
	before := cached
	cached.Clear()
	cached.State = plan.State
	cached.RevertState = ""
	cached.ETag = plan.ETag
	tx.state.plannings[cached.ID] = cached
	syncPlanningLock(&tx.state, cached)

	if tx.state.search.PlanningsSpikeFilter == domain.SpikeFilterSpiked {
		tx.state.planningsInList = removeFromList(tx.state.planningsInList, cached.ID)
	}
	tx.recordChange(Change{Entity: EntityPlanning, Action: domain.ActionUnspikePlanning, ID: cached.ID, Before: before, After: cached})
}

// MarkPlanningCancelled cancels a planning item and cascades the cancellation
// note onto every owned coverage. An event-level cancellation uses a
// different note template than a direct one.
func (tx *Transaction) MarkPlanningCancelled(payload domain.MarkPlanningPayload) {
	tx.markPlanning(payload, domain.ActionMarkPlanningCancelled, domain.StateCancelled, "cancelled")
}

// MarkPlanningPostponed postpones a planning item and cascades the note onto
// every owned coverage.
func (tx *Transaction) MarkPlanningPostponed(payload domain.MarkPlanningPayload) {
	tx.markPlanning(payload, domain.ActionMarkPlanningPostponed, domain.StatePostponed, "postponed")
}

func (tx *Transaction) markPlanning(payload domain.MarkPlanningPayload, action domain.ActionType, state WorkflowState, verb string) {
	cached, ok := tx.state.plannings[payload.PlanningItem]
	if !ok {
		return
	}
	before := clonePlanning(cached)
	cached = clonePlanning(cached)

	cached.EdNote = appendPlanningNote(cached.EdNote, payload, verb)
	cached.State = state
	for i := range cached.Coverages {
		markCoverage(&cached.Coverages[i], payload.Reason, payload.EventCancellation, false, payload.CoverageState, verb)
	}
	tx.state.plannings[cached.ID] = cached
	tx.recordChange(Change{Entity: EntityPlanning, Action: action, ID: cached.ID, Before: before, After: cached})
}

// MarkCoverageCancelled cancels the named coverages of a planning item
// without touching the item's own workflow state.
func (tx *Transaction) MarkCoverageCancelled(payload domain.MarkCoveragePayload) {
	cached, ok := tx.state.plannings[payload.PlanningItem]
	if !ok {
		return
	}
	before := clonePlanning(cached)
	cached = clonePlanning(cached)

	targets := make(map[string]struct{}, len(payload.IDs))
	for _, id := range payload.IDs {
		targets[id] = struct{}{}
	}
	for i := range cached.Coverages {
		if _, hit := targets[cached.Coverages[i].CoverageID]; hit {
			markCoverage(&cached.Coverages[i], payload.Reason, false, true, payload.CoverageState, "cancelled")
		}
	}
	tx.state.plannings[cached.ID] = cached
	tx.recordChange(Change{Entity: EntityCoverage, Action: domain.ActionMarkCoverageCancelled, ID: cached.ID, Before: before, After: cached})
}

// appendPlanningNote builds the audit note for a planning-level cancel or
// postpone. Prior notes are preserved; the new note is appended after them.
func appendPlanningNote(existing string, payload domain.MarkPlanningPayload, verb string) string {
	note := noteSeparator + "\nPlanning " + verb + "\n"
	if payload.EventCancellation {
		note = noteSeparator + "\nEvent " + verb + "\n"
	}
	if payload.Reason != "" {
		note += "Reason: " + payload.Reason + "\n"
	}
	if existing != "" {
		note = existing + "\n\n" + note
	}
	return note
}

// markCoverage stamps one coverage with the audit note for a cancel or
// postpone. The template depends on where the action originated: the linked
// event, the owning planning item, or the coverage itself.
func markCoverage(cov *Coverage, reason string, eventCancellation, coverageLevel bool, coverageState, verb string) {
	note := noteSeparator + "\nPlanning has been " + verb + "\n"
	switch {
	case eventCancellation:
		note = noteSeparator + "\nEvent has been " + verb + "\n"
	case coverageLevel:
		note = noteSeparator + "\nCoverage " + verb + "\n"
	}
	if reason != "" {
		note += "Reason: " + reason + "\n"
	}
	if cov.Planning.InternalNote != "" {
		note = cov.Planning.InternalNote + "\n\n" + note
	}
	if cov.Planning.EdNote != "" {
		note = cov.Planning.EdNote + "\n\n" + note
	}
	if coverageState != "" {
		cov.NewsCoverageStatus = coverageState
	}
	cov.Planning.InternalNote = note
}

// ReceiveCoverage upserts one coverage within its parent planning item:
// update on coverage_id match, append otherwise.
func (tx *Transaction) ReceiveCoverage(planningItem string, coverage Coverage) {
	cached, ok := tx.state.plannings[planningItem]
	if !ok {
		return
	}
	before := clonePlanning(cached)
	cached = clonePlanning(cached)

	if idx := cached.FindCoverage(coverage.CoverageID); idx >= 0 {
		cached.Coverages[idx] = coverage
	} else {
		cached.Coverages = append(cached.Coverages, coverage)
	}
	tx.state.plannings[cached.ID] = cached
	tx.recordChange(Change{Entity: EntityCoverage, Action: domain.ActionReceiveCoverage, ID: coverage.CoverageID, Before: before, After: cached})
}

// CoverageDeleted removes one coverage from its parent planning item. No-op
// when the parent or the coverage is absent.
func (tx *Transaction) CoverageDeleted(planningItem, coverageID string) {
	cached, ok := tx.state.plannings[planningItem]
	if !ok {
		return
	}
	idx := cached.FindCoverage(coverageID)
	if idx < 0 {
		return
	}
	before := clonePlanning(cached)
	cached = clonePlanning(cached)
	cached.Coverages = append(cached.Coverages[:idx], cached.Coverages[idx+1:]...)
	tx.state.plannings[cached.ID] = cached
	tx.recordChange(Change{Entity: EntityCoverage, Action: domain.ActionCoverageDeleted, ID: coverageID, Before: before, After: cached})
}

// SetPlanningsList replaces the visible planning id list.
func (tx *Transaction) SetPlanningsList(ids []string) {
	tx.state.planningsInList = append([]string(nil), ids...)
	tx.recordChange(Change{Entity: EntityPlanning, Action: domain.ActionSetPlanningsList})
}

// AddToPlanningsList extends the visible planning id list, dropping
// duplicates.
func (tx *Transaction) AddToPlanningsList(ids []string) {
	tx.state.planningsInList = appendToList(tx.state.planningsInList, ids...)
	tx.recordChange(Change{Entity: EntityPlanning, Action: domain.ActionAddPlanningsList})
}
