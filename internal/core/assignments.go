package core

import "planningsync/pkg/domain"

// ReceiveAssignments upserts a batch of assignments.
func (tx *Transaction) ReceiveAssignments(assignments []Assignment) {
	for _, assignment := range assignments {
		if assignment.ID == "" {
			continue
		}
		incoming := normalizeAssignment(assignment)
		before, existed := tx.state.assignments[incoming.ID]
		tx.state.assignments[incoming.ID] = incoming
		syncAssignmentLock(&tx.state, incoming)

		change := Change{Entity: EntityAssignment, Action: domain.ActionReceiveAssignments, ID: incoming.ID, After: incoming}
		if existed {
			change.Before = before
		}
		tx.recordChange(change)
	}
}

// LockAssignment applies the lock fields and etag from the notification
// payload to the cached assignment.
func (tx *Transaction) LockAssignment(assignment Assignment) {
	cached, ok := tx.state.assignments[assignment.ID]
	if !ok {
		return
	}
	before := cached
	cached.LockFields = assignment.LockFields
	cached.ETag = assignment.ETag
	tx.state.assignments[cached.ID] = cached
	syncAssignmentLock(&tx.state, cached)
	tx.recordChange(Change{Entity: EntityAssignment, Action: domain.ActionLockAssignment, ID: cached.ID, Before: before, After: cached})
}

// UnlockAssignment clears the lock fields on the cached assignment.
func (tx *Transaction) UnlockAssignment(assignment Assignment) {
	cached, ok := tx.state.assignments[assignment.ID]
	if !ok {
		return
	}
	before := cached
	cached.Clear()
	cached.ETag = assignment.ETag
	tx.state.assignments[cached.ID] = cached
	syncAssignmentLock(&tx.state, cached)
	tx.recordChange(Change{Entity: EntityAssignment, Action: domain.ActionUnlockAssignment, ID: cached.ID, Before: before, After: cached})
}

// UpdateCoverageAssignment projects an assignment change back onto the owning
// coverage's assigned_to field. Silent no-op when the planning item or the
// coverage is not cached.
func (tx *Transaction) UpdateCoverageAssignment(payload domain.UpdateCoverageAssignmentPayload) {
	cached, ok := tx.state.plannings[payload.PlanningItem]
	if !ok {
		return
	}
	idx := cached.FindCoverage(payload.CoverageID)
	if idx < 0 {
		return
	}
	before := clonePlanning(cached)
	cached = clonePlanning(cached)
	cached.Coverages[idx].AssignedTo = domain.AssignedTo{
		Desk:  payload.Desk,
		User:  payload.User,
		State: payload.State,
	}
	tx.state.plannings[cached.ID] = cached
	tx.recordChange(Change{Entity: EntityCoverage, Action: domain.ActionUpdateCoverageAssignment, ID: payload.CoverageID, Before: before, After: cached})
}
