package core

import "planningsync/pkg/domain"

// ReceiveEvents upserts a batch of events. A received payload replaces the
// whole entity snapshot for that id; normalization runs on the copy being
// inserted, never on the caller's value.
func (tx *Transaction) ReceiveEvents(events []Event) {
	for _, event := range events {
		if event.ID == "" {
			continue
		}
		incoming := normalizeEvent(event)
		before, existed := tx.state.events[incoming.ID]
		tx.state.events[incoming.ID] = incoming
		syncEventLock(&tx.state, incoming)

		change := Change{Entity: EntityEvent, Action: domain.ActionReceiveEvents, ID: incoming.ID, After: incoming}
		if existed {
			change.Before = before
		}
		tx.recordChange(change)
	}
}

// LockEvent applies the lock fields and etag from the notification payload to
// the cached event. Silent no-op when the event is not cached.
func (tx *Transaction) LockEvent(event Event) {
	cached, ok := tx.state.events[event.ID]
	if !ok {
		return
	}
	before := cached
	cached.LockFields = event.LockFields
	cached.ETag = event.ETag
	tx.state.events[cached.ID] = cached
	syncEventLock(&tx.state, cached)
	tx.recordChange(Change{Entity: EntityEvent, Action: domain.ActionLockEvent, ID: cached.ID, Before: before, After: cached})
}

// UnlockEvent clears the lock fields on the cached event and threads through
// the fresh etag issued by the unlock.
func (tx *Transaction) UnlockEvent(event Event) {
	cached, ok := tx.state.events[event.ID]
	if !ok {
		return
	}
	before := cached
	cached.Clear()
	cached.ETag = event.ETag
	tx.state.events[cached.ID] = cached
	syncEventLock(&tx.state, cached)
	tx.recordChange(Change{Entity: EntityEvent, Action: domain.ActionUnlockEvent, ID: cached.ID, Before: before, After: cached})
}

// SpikeEvent withdraws an event, releasing its lock and keeping the visible
// list consistent with the active spike filter.
func (tx *Transaction) SpikeEvent(event Event) {
	cached, ok := tx.state.events[event.ID]
	if !ok {
		return
	}
	before := cached
	cached.Clear()
	cached.State = domain.StateSpiked
	cached.RevertState = event.RevertState
	cached.ETag = event.ETag
	tx.state.events[cached.ID] = cached
	syncEventLock(&tx.state, cached)

	if tx.state.search.EventsSpikeFilter == domain.SpikeFilterNotSpiked {
		tx.state.eventsInList = removeFromList(tx.state.eventsInList, cached.ID)
	}
	tx.closeEditorFor(EntityEvent, cached.ID)
	tx.recordChange(Change{Entity: EntityEvent, Action: domain.ActionSpikeEvent, ID: cached.ID, Before: before, After: cached})
}

// UnspikeEvent restores a withdrawn event to the state named by the payload
// and clears its revert state.
func (tx *Transaction) UnspikeEvent(event Event) {
	cached, ok := tx.state.events[event.ID]
	if !ok {
		return
	}
	before := cached
	cached.Clear()
	cached.State = event.State
	cached.RevertState = ""
	cached.ETag = event.ETag
	tx.state.events[cached.ID] = cached
	syncEventLock(&tx.state, cached)

	if tx.state.search.EventsSpikeFilter == domain.SpikeFilterSpiked {
		tx.state.eventsInList = removeFromList(tx.state.eventsInList, cached.ID)
	}
	tx.recordChange(Change{Entity: EntityEvent, Action: domain.ActionUnspikeEvent, ID: cached.ID, Before: before, After: cached})
}

// SpikeRecurringEvents spikes every cached member of a recurring series and
// drops the series lock. The relevance gate runs per item, not once for the
// batch.
func (tx *Transaction) SpikeRecurringEvents(events []Event, recurrenceID string) {
	for _, event := range events {
		tx.SpikeEvent(event)
	}
	if recurrenceID != "" {
		tx.state.locks.Remove(domain.LockPartitionRecurring, recurrenceID)
	}
}

// MarkEventCancelled cancels an event, releasing any held lock in the same
// transition. Cascading the cancellation onto linked planning items is the
// dispatcher's responsibility.
func (tx *Transaction) MarkEventCancelled(event Event) {
	tx.markEvent(event, domain.ActionMarkEventCancelled, domain.StateCancelled)
}

// MarkEventPostponed postpones an event, releasing any held lock.
func (tx *Transaction) MarkEventPostponed(event Event) {
	tx.markEvent(event, domain.ActionMarkEventPostponed, domain.StatePostponed)
}

func (tx *Transaction) markEvent(event Event, action domain.ActionType, state WorkflowState) {
	cached, ok := tx.state.events[event.ID]
	if !ok {
		return
	}
	before := cached
	cached.Clear()
	cached.State = state
	if event.ETag != "" {
		cached.ETag = event.ETag
	}
	tx.state.events[cached.ID] = cached
	syncEventLock(&tx.state, cached)
	tx.recordChange(Change{Entity: EntityEvent, Action: action, ID: cached.ID, Before: before, After: cached})
}

// MarkEventPublished applies a publish-state delta to the cached event. The
// notification payload is authoritative for state, pubstatus, and etag, so no
// fetched copy is involved.
func (tx *Transaction) MarkEventPublished(event Event) {
	tx.applyPublishDelta(event, domain.ActionMarkEventPublished)
}

// MarkEventUnpublished applies an unpublish delta to the cached event.
func (tx *Transaction) MarkEventUnpublished(event Event) {
	tx.applyPublishDelta(event, domain.ActionMarkEventUnpublished)
}

func (tx *Transaction) applyPublishDelta(event Event, action domain.ActionType) {
	cached, ok := tx.state.events[event.ID]
	if !ok {
		return
	}
	before := cached
	cached.State = event.State
	cached.Pubstatus = event.Pubstatus
	cached.ETag = event.ETag
	tx.state.events[cached.ID] = cached
	tx.recordChange(Change{Entity: EntityEvent, Action: action, ID: cached.ID, Before: before, After: cached})
}

// SetEventsList replaces the visible event id list.
func (tx *Transaction) SetEventsList(ids []string) {
	tx.state.eventsInList = append([]string(nil), ids...)
	tx.recordChange(Change{Entity: EntityEvent, Action: domain.ActionSetEventsList})
}

// AddToEventsList extends the visible event id list, dropping duplicates.
func (tx *Transaction) AddToEventsList(ids []string) {
	tx.state.eventsInList = appendToList(tx.state.eventsInList, ids...)
	tx.recordChange(Change{Entity: EntityEvent, Action: domain.ActionAddEventsList})
}
