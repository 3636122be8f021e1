package core

import (
	"context"
	"fmt"

	"planningsync/pkg/domain"
)

// NewLockConsistencyRule returns the in-transaction rule enforcing that a
// lock table entry exists for an entity exactly when the entity carries a
// lock session.
func NewLockConsistencyRule() domain.Rule {
	return lockConsistencyRule{}
}

type lockConsistencyRule struct{}

func (lockConsistencyRule) Name() string { return "lock_consistency" }

func (lockConsistencyRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	locks := view.Locks()
	res := domain.Result{}

	report := func(entity domain.EntityType, id string, locked, held bool) {
		if locked == held {
			return
		}
		verb := "carries lock fields but has no lock table entry"
		if held {
			verb = "has a lock table entry but carries no lock fields"
		}
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     "lock_consistency",
			Severity: domain.SeverityBlock,
			Message:  fmt.Sprintf("%s %s %s", entity, id, verb),
			Entity:   entity,
			EntityID: id,
		})
	}

	for _, event := range view.ListEvents() {
		partition, key := domain.ClassifyEventLock(event)
		var lock domain.Lock
		var ok bool
		switch partition {
		case domain.LockPartitionEvents:
			lock, ok = locks.Events[key]
		case domain.LockPartitionRecurring:
			lock, ok = locks.Recurring[key]
		}
		held := ok && lock.ItemID == event.ID
		report(domain.EntityEvent, event.ID, event.Locked(), held)
	}
	for _, plan := range view.ListPlannings() {
		partition, key := domain.ClassifyPlanningLock(plan)
		var lock domain.Lock
		var ok bool
		switch partition {
		case domain.LockPartitionPlanning:
			lock, ok = locks.Planning[key]
		case domain.LockPartitionEvents:
			lock, ok = locks.Events[key]
		case domain.LockPartitionRecurring:
			lock, ok = locks.Recurring[key]
		}
		held := ok && lock.ItemID == plan.ID
		report(domain.EntityPlanning, plan.ID, plan.Locked(), held)
	}
	for _, assignment := range view.ListAssignments() {
		_, held := locks.Assignments[assignment.ID]
		report(domain.EntityAssignment, assignment.ID, assignment.Locked(), held)
	}
	return res, nil
}
