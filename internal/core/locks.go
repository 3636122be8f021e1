package core

import "planningsync/pkg/domain"

// ReceiveLocks applies a bulk snapshot of currently held locks. The carried
// entities are upserted first, then the whole table is rebuilt from the
// entity maps so stale entries from before the snapshot are dropped.
func (tx *Transaction) ReceiveLocks(payload domain.ReceiveLocksPayload) {
	tx.ReceiveEvents(payload.Events)
	tx.ReceivePlannings(payload.Plans)
	tx.ReceiveAssignments(payload.Assignments)

	tx.state.locks = deriveLocksFromState(&tx.state)
	tx.recordChange(Change{Action: domain.ActionReceiveLocks})
}
