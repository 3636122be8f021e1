package core

import "planningsync/pkg/domain"

// normalizeEvent canonicalizes an event before admission to the store.
func normalizeEvent(e Event) Event {
	return e
}

// normalizePlanning canonicalizes a planning item before admission to the
// store. Coverages is always a non-nil slice so list operations never branch
// on nil. The slices are copied so callers cannot mutate committed state.
func normalizePlanning(p Planning) Planning {
	if p.Coverages == nil {
		p.Coverages = []Coverage{}
	} else {
		p.Coverages = append([]Coverage(nil), p.Coverages...)
	}
	if p.Agendas != nil {
		p.Agendas = append([]string(nil), p.Agendas...)
	}
	return p
}

// normalizeAssignment canonicalizes an assignment before admission.
func normalizeAssignment(a Assignment) Assignment {
	return a
}

// syncEventLock reconciles the lock table with the lock fields on an event
// in the same transition that touched the event.
func syncEventLock(state *memoryState, event Event) {
	partition, key := domain.ClassifyEventLock(event)
	if event.Locked() {
		state.locks.Apply(partition, key,
			domain.ConvertItemToLock(event.ID, string(EntityEvent), event.LockFields))
	} else {
		state.locks.Remove(partition, key)
	}
}

// syncPlanningLock reconciles the lock table with the lock fields on a
// planning item.
func syncPlanningLock(state *memoryState, plan Planning) {
	partition, key := domain.ClassifyPlanningLock(plan)
	if plan.Locked() {
		state.locks.Apply(partition, key,
			domain.ConvertItemToLock(plan.ID, string(EntityPlanning), plan.LockFields))
	} else {
		state.locks.Remove(partition, key)
	}
}

// syncAssignmentLock reconciles the lock table with the lock fields on an
// assignment.
func syncAssignmentLock(state *memoryState, assignment Assignment) {
	if assignment.Locked() {
		state.locks.Apply(domain.LockPartitionAssignments, assignment.ID,
			domain.ConvertItemToLock(assignment.ID, string(EntityAssignment), assignment.LockFields))
	} else {
		state.locks.Remove(domain.LockPartitionAssignments, assignment.ID)
	}
}

// removeFromList drops an id from a visible list, preserving order.
func removeFromList(list []string, id string) []string {
	for i, v := range list {
		if v == id {
			return append(list[:i:i], list[i+1:]...)
		}
	}
	return list
}

// appendToList adds ids not already present, preserving order.
func appendToList(list []string, ids ...string) []string {
	present := make(map[string]struct{}, len(list))
	for _, v := range list {
		present[v] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := present[id]; ok {
			continue
		}
		list = append(list, id)
		present[id] = struct{}{}
	}
	return list
}
