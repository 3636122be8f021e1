// Package dispatch reconciles websocket push notifications against the local
// entity store. Every handler runs the relevance gate: a notification naming
// an id that is missing from the payload or not cached locally resolves as a
// silent no-op, never an error.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"

	"planningsync/internal/core"
	"planningsync/internal/gateway"
	"planningsync/pkg/domain"
)

// Service is the slice of the sync core the dispatcher drives.
type Service interface {
	Apply(ctx context.Context, action domain.ReducerAction) (domain.Result, error)
	GetEvent(id string) (domain.Event, bool)
	GetPlanning(id string) (domain.Planning, bool)
	GetAssignment(id string) (domain.Assignment, bool)
	ListPlannings() []domain.Planning
	Locks() domain.LockTable
	Editor() core.EditorState
	Session() domain.Session
}

// Notifier surfaces user-visible error messages when a gateway fetch fails.
type Notifier interface {
	Error(message string)
}

// NopNotifier discards notifications.
type NopNotifier struct{}

// Error implements Notifier.
func (NopNotifier) Error(string) {}

// Handler processes one notification payload.
type Handler func(ctx context.Context, payload json.RawMessage) error

// Dispatcher maps inbound event names to handlers.
type Dispatcher struct {
	service Service
	gateway gateway.Gateway
	notify  Notifier
}

// NewDispatcher constructs a dispatcher. A nil notifier discards error
// notifications.
func NewDispatcher(service Service, gw gateway.Gateway, notify Notifier) *Dispatcher {
	if notify == nil {
		notify = NopNotifier{}
	}
	return &Dispatcher{service: service, gateway: gw, notify: notify}
}

// Handlers returns the full event-name to handler table. The table branches
// on event name, never on payload shape: recurring-series events decode a
// batch payload, everything else decodes a single-item payload.
func (d *Dispatcher) Handlers() map[string]Handler {
	return map[string]Handler{
		"events:created":           d.onEventCreated,
		"events:created:recurring": d.onRecurringEventCreated,
		"events:updated":           d.onEventUpdated,
		"events:rescheduled":       d.onEventUpdated,
		"events:lock":              d.onEventLocked,
		"events:unlock":            d.onEventUnlocked,
		"events:spiked":            d.onEventSpiked,
		"events:unspiked":          d.onEventUnspiked,
		"events:spiked:recurring":  d.onRecurringEventSpiked,
		"events:published":         d.onEventPublishChanged,
		"events:unpublished":       d.onEventPublishChanged,
		"events:cancelled":         d.onEventCancelled,
		"events:postponed":         d.onEventPostponed,

		"planning:created":  d.onPlanningCreated,
		"planning:updated":  d.onPlanningUpdated,
		"planning:spiked":   d.onPlanningSpiked,
		"planning:unspiked": d.onPlanningUnspiked,
		"planning:lock":     d.onPlanningLocked,
		"planning:unlock":   d.onPlanningUnlocked,

		"coverage:created": d.onCoverageCreatedOrUpdated,
		"coverage:updated": d.onCoverageCreatedOrUpdated,
		"coverage:deleted": d.onCoverageDeleted,

		"assignments:created": d.onAssignmentCreated,
		"assignments:updated": d.onAssignmentUpdated,
		"assignments:lock":    d.onAssignmentLocked,
		"assignments:unlock":  d.onAssignmentUnlocked,
	}
}

// itemPayload is the single-item notification shape shared by most events.
// Only the fields relevant to each handler are ever set by the backend.
type itemPayload struct {
	Item        string                `json:"item"`
	User        string                `json:"user"`
	Session     string                `json:"session"`
	Etag        string                `json:"etag"`
	LockAction  string                `json:"lock_action"`
	LockSession string                `json:"lock_session"`
	LockTime    domain.Timestamp      `json:"lock_time"`
	State       domain.WorkflowState  `json:"state"`
	RevertState domain.WorkflowState  `json:"revert_state"`
	Pubstatus   domain.PublishedState `json:"pubstatus"`
	Reason      string                `json:"reason"`
}

// recurringPayload is the batch shape of *:recurring events.
type recurringPayload struct {
	Items        []domain.Event `json:"items"`
	RecurrenceID string         `json:"recurrence_id"`
}

// coveragePayload names a coverage and its parent planning item.
type coveragePayload struct {
	Item     string `json:"item"`
	Planning string `json:"planning"`
}

// assignmentPayload is the shape of assignments:updated.
type assignmentPayload struct {
	Item                 string           `json:"item"`
	User                 string           `json:"user"`
	Session              string           `json:"session"`
	Etag                 string           `json:"etag"`
	LockAction           string           `json:"lock_action"`
	LockSession          string           `json:"lock_session"`
	LockTime             domain.Timestamp `json:"lock_time"`
	AssignedDesk         string           `json:"assigned_desk"`
	AssignedUser         string           `json:"assigned_user"`
	AssignmentState      string           `json:"assignment_state"`
	Coverage             string           `json:"coverage"`
	Planning             string           `json:"planning"`
	OriginalAssignedDesk string           `json:"original_assigned_desk"`
}

func decode[T any](payload json.RawMessage) (T, error) {
	var out T
	if len(payload) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return out, fmt.Errorf("decode notification payload: %w", err)
	}
	return out, nil
}

func (d *Dispatcher) dispatch(ctx context.Context, actionType domain.ActionType, payload any) error {
	_, err := d.service.Apply(ctx, domain.ReducerAction{Type: actionType, Payload: payload})
	return err
}

// fetchFailed surfaces a fetch failure to the user and fails the handler
// without touching the store.
func (d *Dispatcher) fetchFailed(message string, err error) error {
	wrapped := fmt.Errorf("%s: %w", message, err)
	d.notify.Error(wrapped.Error())
	return wrapped
}
