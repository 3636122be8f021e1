package domain

// ActionType names a reducer action. Every state transition in the store is
// triggered by exactly one of these.
type ActionType string

// Reducer action types. The payload type associated with each action is the
// struct of the same name with a Payload suffix.
const (
	ActionInitStore  ActionType = "INIT_STORE"
	ActionResetStore ActionType = "RESET_STORE"

	ActionReceiveEvents        ActionType = "RECEIVE_EVENTS"
	ActionLockEvent            ActionType = "LOCK_EVENT"
	ActionUnlockEvent          ActionType = "UNLOCK_EVENT"
	ActionSpikeEvent           ActionType = "SPIKE_EVENT"
	ActionUnspikeEvent         ActionType = "UNSPIKE_EVENT"
	ActionSpikeRecurringEvents ActionType = "SPIKE_RECURRING_EVENTS"
	ActionMarkEventCancelled   ActionType = "MARK_EVENT_CANCELLED"
	ActionMarkEventPostponed   ActionType = "MARK_EVENT_POSTPONED"
	ActionMarkEventPublished   ActionType = "MARK_EVENT_PUBLISHED"
	ActionMarkEventUnpublished ActionType = "MARK_EVENT_UNPUBLISHED"

	ActionReceivePlannings      ActionType = "RECEIVE_PLANNINGS"
	ActionSpikePlanning         ActionType = "SPIKE_PLANNING"
	ActionUnspikePlanning       ActionType = "UNSPIKE_PLANNING"
	ActionMarkPlanningCancelled ActionType = "MARK_PLANNING_CANCELLED"
	ActionMarkPlanningPostponed ActionType = "MARK_PLANNING_POSTPONED"
	ActionMarkCoverageCancelled ActionType = "MARK_COVERAGE_CANCELLED"
	ActionLockPlanning          ActionType = "LOCK_PLANNING"
	ActionUnlockPlanning        ActionType = "UNLOCK_PLANNING"
	ActionReceiveCoverage       ActionType = "RECEIVE_COVERAGE"
	ActionCoverageDeleted       ActionType = "COVERAGE_DELETED"

	ActionReceiveAssignments       ActionType = "RECEIVE_ASSIGNMENTS"
	ActionLockAssignment           ActionType = "LOCK_ASSIGNMENT"
	ActionUnlockAssignment         ActionType = "UNLOCK_ASSIGNMENT"
	ActionUpdateCoverageAssignment ActionType = "UPDATE_COVERAGE_ASSIGNMENT"

	ActionReceiveLocks ActionType = "RECEIVE_LOCKS"

	ActionSetEventsList    ActionType = "SET_EVENTS_LIST"
	ActionAddEventsList    ActionType = "ADD_TO_EVENTS_LIST"
	ActionSetPlanningsList ActionType = "SET_PLANNINGS_LIST"
	ActionAddPlanningsList ActionType = "ADD_TO_PLANNINGS_LIST"

	ActionShowModal ActionType = "SHOW_MODAL"
	ActionHideModal ActionType = "HIDE_MODAL"
)

// ReducerAction is the {type, payload} record exposed to the UI layer and the
// dispatcher. The payload is one of the typed payload structs below; Apply
// rejects mismatched payloads.
type ReducerAction struct {
	Type    ActionType
	Payload any
}

// ReceiveEventsPayload carries a bulk upsert of events.
type ReceiveEventsPayload struct {
	Events []Event
}

// EventPayload carries a single event merged from a notification delta.
type EventPayload struct {
	Event Event
}

// SpikeRecurringEventsPayload carries the series batch of a recurring spike.
type SpikeRecurringEventsPayload struct {
	Events       []Event
	RecurrenceID string
}

// ReceivePlanningsPayload carries a bulk upsert of planning items.
type ReceivePlanningsPayload struct {
	Plannings []Planning
}

// PlanningPayload carries a single planning item merged from a notification
// delta.
type PlanningPayload struct {
	Plan Planning
}

// MarkPlanningPayload cancels or postpones a planning item, optionally on
// behalf of an event-level action which uses a different audit-note template.
type MarkPlanningPayload struct {
	PlanningItem      string
	Reason            string
	EventCancellation bool
	CoverageState     string
}

// MarkCoveragePayload cancels a subset of a planning item's coverages.
type MarkCoveragePayload struct {
	PlanningItem  string
	IDs           []string
	Reason        string
	CoverageState string
}

// ReceiveCoveragePayload upserts one coverage within its parent planning.
type ReceiveCoveragePayload struct {
	PlanningItem string
	Coverage     Coverage
}

// CoverageDeletedPayload removes one coverage from its parent planning.
type CoverageDeletedPayload struct {
	PlanningItem string
	CoverageID   string
}

// ReceiveAssignmentsPayload carries a bulk upsert of assignments.
type ReceiveAssignmentsPayload struct {
	Assignments []Assignment
}

// AssignmentPayload carries a single assignment merged from a notification
// delta.
type AssignmentPayload struct {
	Assignment Assignment
}

// UpdateCoverageAssignmentPayload projects an assignment change onto the
// owning coverage's assigned_to field.
type UpdateCoverageAssignmentPayload struct {
	PlanningItem string
	CoverageID   string
	Desk         string
	User         string
	State        string
}

// ReceiveLocksPayload carries the bulk snapshot of currently held locks.
type ReceiveLocksPayload struct {
	Events      []Event
	Plans       []Planning
	Assignments []Assignment
}

// ListPayload replaces or extends a visible id list.
type ListPayload struct {
	IDs []string
}

// ShowModalPayload opens the notification modal.
type ShowModalPayload struct {
	ModalType string
	Title     string
	Body      string
}
