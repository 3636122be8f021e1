package dispatch

import (
	"context"
	"encoding/json"

	"planningsync/pkg/domain"
)

// onPlanningCreated fetches the new planning item and admits it to the store.
func (d *Dispatcher) onPlanningCreated(ctx context.Context, payload json.RawMessage) error {
	data, err := decode[itemPayload](payload)
	if err != nil {
		return err
	}
	if data.Item == "" {
		return nil
	}
	plan, err := d.gateway.GetPlanning(ctx, data.Item)
	if err != nil {
		return d.fetchFailed("failed to get a new planning item", err)
	}
	return d.dispatch(ctx, domain.ActionReceivePlannings, domain.ReceivePlanningsPayload{Plannings: []domain.Planning{plan}})
}

// onPlanningUpdated refreshes a cached planning item from the backend, with
// the relevance gate re-run after the fetch resolves.
func (d *Dispatcher) onPlanningUpdated(ctx context.Context, payload json.RawMessage) error {
	data, err := decode[itemPayload](payload)
	if err != nil {
		return err
	}
	if data.Item == "" {
		return nil
	}
	if _, cached := d.service.GetPlanning(data.Item); !cached {
		return nil
	}
	plan, err := d.gateway.GetPlanning(ctx, data.Item)
	if err != nil {
		return d.fetchFailed("failed to get the updated planning item", err)
	}
	if _, cached := d.service.GetPlanning(data.Item); !cached {
		return nil
	}
	return d.dispatch(ctx, domain.ActionReceivePlannings, domain.ReceivePlanningsPayload{Plannings: []domain.Planning{plan}})
}

// onPlanningSpiked applies the spike delta directly.
func (d *Dispatcher) onPlanningSpiked(ctx context.Context, payload json.RawMessage) error {
	data, err := decode[itemPayload](payload)
	if err != nil {
		return err
	}
	if data.Item == "" {
		return nil
	}
	plan, cached := d.service.GetPlanning(data.Item)
	if !cached {
		return nil
	}
	plan.Clear()
	plan.State = domain.StateSpiked
	plan.RevertState = data.RevertState
	plan.ETag = data.Etag
	return d.dispatch(ctx, domain.ActionSpikePlanning, domain.PlanningPayload{Plan: plan})
}

// onPlanningUnspiked applies the unspike delta directly.
func (d *Dispatcher) onPlanningUnspiked(ctx context.Context, payload json.RawMessage) error {
	data, err := decode[itemPayload](payload)
	if err != nil {
		return err
	}
	if data.Item == "" {
		return nil
	}
	plan, cached := d.service.GetPlanning(data.Item)
	if !cached {
		return nil
	}
	plan.Clear()
	plan.State = data.State
	plan.RevertState = ""
	plan.ETag = data.Etag
	return d.dispatch(ctx, domain.ActionUnspikePlanning, domain.PlanningPayload{Plan: plan})
}

// onPlanningLocked fetches the authoritative planning item and merges the
// lock fields from the notification over it.
func (d *Dispatcher) onPlanningLocked(ctx context.Context, payload json.RawMessage) error {
	data, err := decode[itemPayload](payload)
	if err != nil {
		return err
	}
	if data.Item == "" {
		return nil
	}
	if _, cached := d.service.GetPlanning(data.Item); !cached {
		return nil
	}
	plan, err := d.gateway.GetPlanning(ctx, data.Item)
	if err != nil {
		return d.fetchFailed("failed to get the locked planning item", err)
	}
	if _, cached := d.service.GetPlanning(data.Item); !cached {
		return nil
	}
	plan.LockFields = domain.LockFields{
		LockAction:  data.LockAction,
		LockUser:    data.User,
		LockSession: data.LockSession,
		LockTime:    data.LockTime,
	}
	plan.ETag = data.Etag
	return d.dispatch(ctx, domain.ActionLockPlanning, domain.PlanningPayload{Plan: plan})
}

// onPlanningUnlocked clears the lock on a cached planning item, with the
// interstitial modal when the item is open in this session's editor.
func (d *Dispatcher) onPlanningUnlocked(ctx context.Context, payload json.RawMessage) error {
	data, err := decode[itemPayload](payload)
	if err != nil {
		return err
	}
	if data.Item == "" {
		return nil
	}
	plan, cached := d.service.GetPlanning(data.Item)
	if !cached {
		return nil
	}

	if err := d.maybeShowUnlockModal(ctx, domain.EntityPlanning, data.Item, data.User); err != nil {
		return err
	}

	plan.Clear()
	plan.ETag = data.Etag
	return d.dispatch(ctx, domain.ActionUnlockPlanning, domain.PlanningPayload{Plan: plan})
}

// onCoverageCreatedOrUpdated fetches the coverage and upserts it within its
// parent planning item. The gate runs on the parent: if the planning item is
// not cached there is nothing to reconcile.
func (d *Dispatcher) onCoverageCreatedOrUpdated(ctx context.Context, payload json.RawMessage) error {
	data, err := decode[coveragePayload](payload)
	if err != nil {
		return err
	}
	if data.Item == "" || data.Planning == "" {
		return nil
	}
	if _, cached := d.service.GetPlanning(data.Planning); !cached {
		return nil
	}
	coverage, err := d.gateway.GetCoverage(ctx, data.Item)
	if err != nil {
		return d.fetchFailed("failed to fetch the coverage", err)
	}
	if _, cached := d.service.GetPlanning(data.Planning); !cached {
		return nil
	}
	return d.dispatch(ctx, domain.ActionReceiveCoverage, domain.ReceiveCoveragePayload{
		PlanningItem: data.Planning,
		Coverage:     coverage,
	})
}

// onCoverageDeleted removes a coverage from its cached parent.
func (d *Dispatcher) onCoverageDeleted(ctx context.Context, payload json.RawMessage) error {
	data, err := decode[coveragePayload](payload)
	if err != nil {
		return err
	}
	if data.Item == "" || data.Planning == "" {
		return nil
	}
	return d.dispatch(ctx, domain.ActionCoverageDeleted, domain.CoverageDeletedPayload{
		PlanningItem: data.Planning,
		CoverageID:   data.Item,
	})
}
