package core

import "planningsync/pkg/domain"

type (
	EntityType         = domain.EntityType
	WorkflowState      = domain.WorkflowState
	SpikeFilter        = domain.SpikeFilter
	Event              = domain.Event
	Planning           = domain.Planning
	Coverage           = domain.Coverage
	Assignment         = domain.Assignment
	Lock               = domain.Lock
	LockTable          = domain.LockTable
	LockPartition      = domain.LockPartition
	Change             = domain.Change
	Violation          = domain.Violation
	Result             = domain.Result
	Rule               = domain.Rule
	RulesEngine        = domain.RulesEngine
	RuleViolationError = domain.RuleViolationError
	ReducerAction      = domain.ReducerAction
)

const (
	EntityEvent      = domain.EntityEvent
	EntityPlanning   = domain.EntityPlanning
	EntityCoverage   = domain.EntityCoverage
	EntityAssignment = domain.EntityAssignment
)

const (
	StateDraft     = domain.StateDraft
	StateScheduled = domain.StateScheduled
	StateSpiked    = domain.StateSpiked
	StateCancelled = domain.StateCancelled
	StatePostponed = domain.StatePostponed
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
	SeverityLog   = domain.SeverityLog
)
