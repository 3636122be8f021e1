package dispatch

import (
	"context"
	"encoding/json"
	"fmt"

	"planningsync/internal/gateway"
	"planningsync/pkg/domain"
)

// onEventCreated fetches the new event and admits it to the store. A created
// notification has no cached copy to gate on; the fetch itself is the
// admission.
func (d *Dispatcher) onEventCreated(ctx context.Context, payload json.RawMessage) error {
	data, err := decode[itemPayload](payload)
	if err != nil {
		return err
	}
	if data.Item == "" {
		return nil
	}
	event, err := d.gateway.GetEvent(ctx, data.Item)
	if err != nil {
		return d.fetchFailed("failed to get a new event", err)
	}
	return d.dispatch(ctx, domain.ActionReceiveEvents, domain.ReceiveEventsPayload{Events: []domain.Event{event}})
}

// onRecurringEventCreated fetches the whole new series by recurrence id.
func (d *Dispatcher) onRecurringEventCreated(ctx context.Context, payload json.RawMessage) error {
	data, err := decode[recurringPayload](payload)
	if err != nil {
		return err
	}
	if data.RecurrenceID == "" {
		return nil
	}
	events, err := d.gateway.QueryEvents(ctx, gateway.Criteria{"recurrence_id": data.RecurrenceID})
	if err != nil {
		return d.fetchFailed("failed to get the new event series", err)
	}
	return d.dispatch(ctx, domain.ActionReceiveEvents, domain.ReceiveEventsPayload{Events: events})
}

// onEventUpdated refreshes a cached event from the backend. The gate runs
// twice: before the fetch, and again once the fetch resolves, so a late
// response never resurrects an event removed in the meantime.
func (d *Dispatcher) onEventUpdated(ctx context.Context, payload json.RawMessage) error {
	data, err := decode[itemPayload](payload)
	if err != nil {
		return err
	}
	if data.Item == "" {
		return nil
	}
	if _, cached := d.service.GetEvent(data.Item); !cached {
		return nil
	}
	event, err := d.gateway.GetEvent(ctx, data.Item)
	if err != nil {
		return d.fetchFailed("failed to get the updated event", err)
	}
	if _, cached := d.service.GetEvent(data.Item); !cached {
		return nil
	}
	return d.dispatch(ctx, domain.ActionReceiveEvents, domain.ReceiveEventsPayload{Events: []domain.Event{event}})
}

// onEventLocked fetches the authoritative event and merges the lock fields
// from the notification over it.
func (d *Dispatcher) onEventLocked(ctx context.Context, payload json.RawMessage) error {
	data, err := decode[itemPayload](payload)
	if err != nil {
		return err
	}
	if data.Item == "" {
		return nil
	}
	if _, cached := d.service.GetEvent(data.Item); !cached {
		return nil
	}
	event, err := d.gateway.GetEvent(ctx, data.Item)
	if err != nil {
		return d.fetchFailed("failed to get the locked event", err)
	}
	if _, cached := d.service.GetEvent(data.Item); !cached {
		return nil
	}
	event.LockFields = domain.LockFields{
		LockAction:  data.LockAction,
		LockUser:    data.User,
		LockSession: data.LockSession,
		LockTime:    data.LockTime,
	}
	event.ETag = data.Etag
	return d.dispatch(ctx, domain.ActionLockEvent, domain.EventPayload{Event: event})
}

// onEventUnlocked clears the lock on a cached event. When the unlocked event
// is the one open in this session's editor, an interstitial modal is shown
// before the unlock is applied.
func (d *Dispatcher) onEventUnlocked(ctx context.Context, payload json.RawMessage) error {
	data, err := decode[itemPayload](payload)
	if err != nil {
		return err
	}
	if data.Item == "" {
		return nil
	}
	event, cached := d.service.GetEvent(data.Item)
	if !cached {
		return nil
	}

	if err := d.maybeShowUnlockModal(ctx, domain.EntityEvent, data.Item, data.User); err != nil {
		return err
	}

	event.Clear()
	event.ETag = data.Etag
	return d.dispatch(ctx, domain.ActionUnlockEvent, domain.EventPayload{Event: event})
}

// maybeShowUnlockModal emits the HIDE_MODAL / SHOW_MODAL interstitial pair
// when the unlocked item is open in the current editor under a lock this
// session holds.
func (d *Dispatcher) maybeShowUnlockModal(ctx context.Context, itemType domain.EntityType, itemID, unlockedBy string) error {
	editor := d.service.Editor()
	if !editor.Opened || editor.ItemType != itemType || editor.ItemID != itemID {
		return nil
	}
	lock, held := d.lockFor(itemType, itemID)
	if !held || lock.Session != d.service.Session().Session {
		return nil
	}

	if err := d.dispatch(ctx, domain.ActionHideModal, nil); err != nil {
		return err
	}
	body := fmt.Sprintf("The item you were editing was unlocked by %q", unlockedBy)
	return d.dispatch(ctx, domain.ActionShowModal, domain.ShowModalPayload{
		ModalType: "NOTIFICATION_MODAL",
		Title:     "Item Unlocked",
		Body:      body,
	})
}

func (d *Dispatcher) lockFor(itemType domain.EntityType, itemID string) (domain.Lock, bool) {
	locks := d.service.Locks()
	switch itemType {
	case domain.EntityEvent:
		event, ok := d.service.GetEvent(itemID)
		if !ok {
			return domain.Lock{}, false
		}
		partition, key := domain.ClassifyEventLock(event)
		return lockAt(locks, partition, key)
	case domain.EntityPlanning:
		plan, ok := d.service.GetPlanning(itemID)
		if !ok {
			return domain.Lock{}, false
		}
		partition, key := domain.ClassifyPlanningLock(plan)
		return lockAt(locks, partition, key)
	case domain.EntityAssignment:
		return lockAt(locks, domain.LockPartitionAssignments, itemID)
	}
	return domain.Lock{}, false
}

func lockAt(locks domain.LockTable, partition domain.LockPartition, key string) (domain.Lock, bool) {
	switch partition {
	case domain.LockPartitionEvents:
		lock, ok := locks.Events[key]
		return lock, ok
	case domain.LockPartitionPlanning:
		lock, ok := locks.Planning[key]
		return lock, ok
	case domain.LockPartitionRecurring:
		lock, ok := locks.Recurring[key]
		return lock, ok
	case domain.LockPartitionAssignments:
		lock, ok := locks.Assignments[key]
		return lock, ok
	}
	return domain.Lock{}, false
}

// onEventSpiked applies the spike delta directly; the notification payload is
// authoritative for state, revert state, and etag.
func (d *Dispatcher) onEventSpiked(ctx context.Context, payload json.RawMessage) error {
	data, err := decode[itemPayload](payload)
	if err != nil {
		return err
	}
	if data.Item == "" {
		return nil
	}
	event, cached := d.service.GetEvent(data.Item)
	if !cached {
		return nil
	}
	event.Clear()
	event.State = domain.StateSpiked
	event.RevertState = data.RevertState
	event.ETag = data.Etag
	return d.dispatch(ctx, domain.ActionSpikeEvent, domain.EventPayload{Event: event})
}

// onEventUnspiked applies the unspike delta directly.
func (d *Dispatcher) onEventUnspiked(ctx context.Context, payload json.RawMessage) error {
	data, err := decode[itemPayload](payload)
	if err != nil {
		return err
	}
	if data.Item == "" {
		return nil
	}
	event, cached := d.service.GetEvent(data.Item)
	if !cached {
		return nil
	}
	event.Clear()
	event.State = data.State
	event.RevertState = ""
	event.ETag = data.Etag
	return d.dispatch(ctx, domain.ActionUnspikeEvent, domain.EventPayload{Event: event})
}

// onRecurringEventSpiked spikes a whole series in one batch action; the
// per-item relevance gate runs in the reducer.
func (d *Dispatcher) onRecurringEventSpiked(ctx context.Context, payload json.RawMessage) error {
	data, err := decode[recurringPayload](payload)
	if err != nil {
		return err
	}
	if len(data.Items) == 0 && data.RecurrenceID == "" {
		return nil
	}
	return d.dispatch(ctx, domain.ActionSpikeRecurringEvents, domain.SpikeRecurringEventsPayload{
		Events:       data.Items,
		RecurrenceID: data.RecurrenceID,
	})
}

// onEventPublishChanged applies the publish delta without a round-trip: the
// payload is authoritative for state, pubstatus, and etag. Exactly one action
// is dispatched.
func (d *Dispatcher) onEventPublishChanged(ctx context.Context, payload json.RawMessage) error {
	data, err := decode[itemPayload](payload)
	if err != nil {
		return err
	}
	if data.Item == "" {
		return nil
	}
	event, cached := d.service.GetEvent(data.Item)
	if !cached {
		return nil
	}
	event.State = data.State
	event.Pubstatus = data.Pubstatus
	event.ETag = data.Etag

	actionType := domain.ActionMarkEventPublished
	if data.Pubstatus == domain.PublishedCancelled {
		actionType = domain.ActionMarkEventUnpublished
	}
	return d.dispatch(ctx, actionType, domain.EventPayload{Event: event})
}

// onEventCancelled cancels the cached event and cascades the cancellation to
// every cached planning item linked to it, using the event-level audit-note
// template.
func (d *Dispatcher) onEventCancelled(ctx context.Context, payload json.RawMessage) error {
	return d.cascadeEventMark(ctx, payload, domain.ActionMarkEventCancelled, domain.ActionMarkPlanningCancelled)
}

// onEventPostponed postpones the cached event and cascades to linked cached
// planning items.
func (d *Dispatcher) onEventPostponed(ctx context.Context, payload json.RawMessage) error {
	return d.cascadeEventMark(ctx, payload, domain.ActionMarkEventPostponed, domain.ActionMarkPlanningPostponed)
}

func (d *Dispatcher) cascadeEventMark(ctx context.Context, payload json.RawMessage, eventAction, planningAction domain.ActionType) error {
	data, err := decode[itemPayload](payload)
	if err != nil {
		return err
	}
	if data.Item == "" {
		return nil
	}
	event, cached := d.service.GetEvent(data.Item)
	if !cached {
		return nil
	}
	event.ETag = data.Etag
	if err := d.dispatch(ctx, eventAction, domain.EventPayload{Event: event}); err != nil {
		return err
	}
	for _, plan := range d.service.ListPlannings() {
		if plan.EventItem != data.Item {
			continue
		}
		err := d.dispatch(ctx, planningAction, domain.MarkPlanningPayload{
			PlanningItem:      plan.ID,
			Reason:            data.Reason,
			EventCancellation: true,
		})
		if err != nil {
			return err
		}
	}
	return nil
}
