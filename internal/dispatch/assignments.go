package dispatch

import (
	"context"
	"encoding/json"

	"planningsync/pkg/domain"
)

// onAssignmentCreated fetches the new assignment and admits it to the store.
func (d *Dispatcher) onAssignmentCreated(ctx context.Context, payload json.RawMessage) error {
	data, err := decode[assignmentPayload](payload)
	if err != nil {
		return err
	}
	if data.Item == "" {
		return nil
	}
	assignment, err := d.gateway.GetAssignment(ctx, data.Item)
	if err != nil {
		return d.fetchFailed("failed to get a new assignment", err)
	}
	return d.dispatch(ctx, domain.ActionReceiveAssignments, domain.ReceiveAssignmentsPayload{
		Assignments: []domain.Assignment{assignment},
	})
}

// onAssignmentUpdated projects the assignment delta onto the owning coverage
// and refreshes the cached assignment record when one is held. The payload is
// authoritative for the assigned_to projection, so no fetch is needed for it.
func (d *Dispatcher) onAssignmentUpdated(ctx context.Context, payload json.RawMessage) error {
	data, err := decode[assignmentPayload](payload)
	if err != nil {
		return err
	}
	if data.Item == "" {
		return nil
	}

	if data.Planning != "" && data.Coverage != "" {
		err := d.dispatch(ctx, domain.ActionUpdateCoverageAssignment, domain.UpdateCoverageAssignmentPayload{
			PlanningItem: data.Planning,
			CoverageID:   data.Coverage,
			Desk:         data.AssignedDesk,
			User:         data.AssignedUser,
			State:        data.AssignmentState,
		})
		if err != nil {
			return err
		}
	}

	if _, cached := d.service.GetAssignment(data.Item); !cached {
		return nil
	}
	assignment, err := d.gateway.GetAssignment(ctx, data.Item)
	if err != nil {
		return d.fetchFailed("failed to get the updated assignment", err)
	}
	if _, cached := d.service.GetAssignment(data.Item); !cached {
		return nil
	}
	return d.dispatch(ctx, domain.ActionReceiveAssignments, domain.ReceiveAssignmentsPayload{
		Assignments: []domain.Assignment{assignment},
	})
}

// onAssignmentLocked applies the lock fields from the payload to the cached
// assignment.
func (d *Dispatcher) onAssignmentLocked(ctx context.Context, payload json.RawMessage) error {
	data, err := decode[assignmentPayload](payload)
	if err != nil {
		return err
	}
	if data.Item == "" {
		return nil
	}
	assignment, cached := d.service.GetAssignment(data.Item)
	if !cached {
		return nil
	}
	assignment.LockFields = domain.LockFields{
		LockAction:  data.LockAction,
		LockUser:    data.User,
		LockSession: data.LockSession,
		LockTime:    data.LockTime,
	}
	assignment.ETag = data.Etag
	return d.dispatch(ctx, domain.ActionLockAssignment, domain.AssignmentPayload{Assignment: assignment})
}

// onAssignmentUnlocked clears the lock on the cached assignment.
func (d *Dispatcher) onAssignmentUnlocked(ctx context.Context, payload json.RawMessage) error {
	data, err := decode[assignmentPayload](payload)
	if err != nil {
		return err
	}
	if data.Item == "" {
		return nil
	}
	assignment, cached := d.service.GetAssignment(data.Item)
	if !cached {
		return nil
	}

	if err := d.maybeShowUnlockModal(ctx, domain.EntityAssignment, data.Item, data.User); err != nil {
		return err
	}

	assignment.Clear()
	assignment.ETag = data.Etag
	return d.dispatch(ctx, domain.ActionUnlockAssignment, domain.AssignmentPayload{Assignment: assignment})
}
