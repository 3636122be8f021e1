package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"planningsync/pkg/domain"
)

// Store is the storage contract the service drives. MemoryStore implements
// it directly; persistent stores embed MemoryStore and shadow
// RunInTransaction to snapshot after each commit.
type Store interface {
	Init()
	Reset()
	Version() uint64
	RunInTransaction(ctx context.Context, fn func(tx *Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error

	GetEvent(id string) (Event, bool)
	GetPlanning(id string) (Planning, bool)
	GetAssignment(id string) (Assignment, bool)
	ListEvents() []Event
	ListPlannings() []Planning
	ListAssignments() []Assignment
	Locks() LockTable
	EventsInList() []string
	PlanningsInList() []string
	Search() SearchState
	Editor() EditorState
	Modal() ModalState

	ExportState() Snapshot
	ImportState(snapshot Snapshot)
}

// Service exposes the transactional state transitions of the sync layer. The
// dispatcher and any embedding host talk to the store exclusively through it.
type Service struct {
	store   Store
	session domain.Session
	metrics MetricsRecorder
	tracer  Tracer
	audit   AuditRecorder
}

// ServiceOption configures optional service collaborators.
type ServiceOption func(*Service)

// WithMetricsRecorder attaches a metrics recorder to the service.
func WithMetricsRecorder(rec MetricsRecorder) ServiceOption {
	return func(s *Service) { s.metrics = rec }
}

// WithTracer attaches a tracer to the service.
func WithTracer(tracer Tracer) ServiceOption {
	return func(s *Service) { s.tracer = tracer }
}

// WithAuditRecorder attaches an audit recorder to the service.
func WithAuditRecorder(rec AuditRecorder) ServiceOption {
	return func(s *Service) { s.audit = rec }
}

// WithSession sets the client session used for lock ownership checks.
func WithSession(session domain.Session) ServiceOption {
	return func(s *Service) { s.session = session }
}

// NewService constructs a service backed by the supplied store.
func NewService(store Store, opts ...ServiceOption) *Service {
	s := &Service{store: store}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewInMemoryService creates a service and in-memory store with the given
// rules engine.
func NewInMemoryService(engine *RulesEngine, opts ...ServiceOption) *Service {
	return NewService(NewMemoryStore(engine), opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() Store {
	return s.store
}

// Session returns the client session the service acts for.
func (s *Service) Session() domain.Session {
	return s.session
}

// ErrUnknownAction is returned when Apply receives an action type outside the
// reducer table.
type ErrUnknownAction struct {
	Type domain.ActionType
}

func (e ErrUnknownAction) Error() string {
	return fmt.Sprintf("unknown action type %s", e.Type)
}

// ErrPayloadMismatch is returned when an action carries a payload of the
// wrong type for its action type.
type ErrPayloadMismatch struct {
	Type domain.ActionType
}

func (e ErrPayloadMismatch) Error() string {
	return fmt.Sprintf("payload type mismatch for action %s", e.Type)
}

func operationName(t domain.ActionType) string {
	return strings.ToLower(string(t))
}

func (s *Service) run(ctx context.Context, op, entityID string, fn func(tx *Transaction) error) (Result, error) {
	start := time.Now()
	var span TraceSpan
	if s.tracer != nil {
		ctx, span = s.tracer.Start(ctx, op)
	}
	res, err := s.store.RunInTransaction(ctx, fn)
	if span != nil {
		span.End(err)
	}
	if s.metrics != nil {
		s.metrics.Observe(ctx, op, err == nil, time.Since(start))
	}
	if s.audit != nil {
		entry := AuditEntry{
			Operation:  op,
			Status:     AuditStatusSuccess,
			EntityID:   entityID,
			Violations: len(res.Violations),
			RecordedAt: time.Now().UTC(),
		}
		if err != nil {
			entry.Status = AuditStatusError
			entry.Error = err.Error()
		}
		s.audit.Record(ctx, entry)
	}
	return res, err
}

// InitStore restores the typed-empty initial store shape.
func (s *Service) InitStore(ctx context.Context) {
	s.store.Init()
	if s.audit != nil {
		s.audit.Record(ctx, AuditEntry{
			Operation:  operationName(domain.ActionInitStore),
			Status:     AuditStatusSuccess,
			RecordedAt: time.Now().UTC(),
		})
	}
}

// ResetStore nulls the store state.
func (s *Service) ResetStore(ctx context.Context) {
	s.store.Reset()
	if s.audit != nil {
		s.audit.Record(ctx, AuditEntry{
			Operation:  operationName(domain.ActionResetStore),
			Status:     AuditStatusSuccess,
			RecordedAt: time.Now().UTC(),
		})
	}
}

// Apply dispatches a {type, payload} action record to the matching reducer
// transition. Unknown action types and mismatched payloads are rejected
// before any state is touched.
func (s *Service) Apply(ctx context.Context, action ReducerAction) (Result, error) {
	op := operationName(action.Type)

	switch action.Type {
	case domain.ActionInitStore:
		s.InitStore(ctx)
		return Result{}, nil
	case domain.ActionResetStore:
		s.ResetStore(ctx)
		return Result{}, nil

	case domain.ActionReceiveEvents:
		payload, ok := action.Payload.(domain.ReceiveEventsPayload)
		if !ok {
			return Result{}, ErrPayloadMismatch{Type: action.Type}
		}
		return s.run(ctx, op, "", func(tx *Transaction) error {
			tx.ReceiveEvents(payload.Events)
			return nil
		})
	case domain.ActionLockEvent:
		return s.applyEvent(ctx, op, action, (*Transaction).LockEvent)
	case domain.ActionUnlockEvent:
		return s.applyEvent(ctx, op, action, (*Transaction).UnlockEvent)
	case domain.ActionSpikeEvent:
		return s.applyEvent(ctx, op, action, (*Transaction).SpikeEvent)
	case domain.ActionUnspikeEvent:
		return s.applyEvent(ctx, op, action, (*Transaction).UnspikeEvent)
	case domain.ActionMarkEventCancelled:
		return s.applyEvent(ctx, op, action, (*Transaction).MarkEventCancelled)
	case domain.ActionMarkEventPostponed:
		return s.applyEvent(ctx, op, action, (*Transaction).MarkEventPostponed)
	case domain.ActionMarkEventPublished:
		return s.applyEvent(ctx, op, action, (*Transaction).MarkEventPublished)
	case domain.ActionMarkEventUnpublished:
		return s.applyEvent(ctx, op, action, (*Transaction).MarkEventUnpublished)
	case domain.ActionSpikeRecurringEvents:
		payload, ok := action.Payload.(domain.SpikeRecurringEventsPayload)
		if !ok {
			return Result{}, ErrPayloadMismatch{Type: action.Type}
		}
		return s.run(ctx, op, payload.RecurrenceID, func(tx *Transaction) error {
			tx.SpikeRecurringEvents(payload.Events, payload.RecurrenceID)
			return nil
		})

	case domain.ActionReceivePlannings:
		payload, ok := action.Payload.(domain.ReceivePlanningsPayload)
		if !ok {
			return Result{}, ErrPayloadMismatch{Type: action.Type}
		}
		return s.run(ctx, op, "", func(tx *Transaction) error {
			tx.ReceivePlannings(payload.Plannings)
			return nil
		})
	case domain.ActionLockPlanning:
		return s.applyPlanning(ctx, op, action, (*Transaction).LockPlanning)
	case domain.ActionUnlockPlanning:
		return s.applyPlanning(ctx, op, action, (*Transaction).UnlockPlanning)
	case domain.ActionSpikePlanning:
		return s.applyPlanning(ctx, op, action, (*Transaction).SpikePlanning)
	case domain.ActionUnspikePlanning:
		return s.applyPlanning(ctx, op, action, (*Transaction).UnspikePlanning)
	case domain.ActionMarkPlanningCancelled:
		payload, ok := action.Payload.(domain.MarkPlanningPayload)
		if !ok {
			return Result{}, ErrPayloadMismatch{Type: action.Type}
		}
		return s.run(ctx, op, payload.PlanningItem, func(tx *Transaction) error {
			tx.MarkPlanningCancelled(payload)
			return nil
		})
	case domain.ActionMarkPlanningPostponed:
		payload, ok := action.Payload.(domain.MarkPlanningPayload)
		if !ok {
			return Result{}, ErrPayloadMismatch{Type: action.Type}
		}
		return s.run(ctx, op, payload.PlanningItem, func(tx *Transaction) error {
			tx.MarkPlanningPostponed(payload)
			return nil
		})
	case domain.ActionMarkCoverageCancelled:
		payload, ok := action.Payload.(domain.MarkCoveragePayload)
		if !ok {
			return Result{}, ErrPayloadMismatch{Type: action.Type}
		}
		return s.run(ctx, op, payload.PlanningItem, func(tx *Transaction) error {
			tx.MarkCoverageCancelled(payload)
			return nil
		})
	case domain.ActionReceiveCoverage:
		payload, ok := action.Payload.(domain.ReceiveCoveragePayload)
		if !ok {
			return Result{}, ErrPayloadMismatch{Type: action.Type}
		}
		return s.run(ctx, op, payload.Coverage.CoverageID, func(tx *Transaction) error {
			tx.ReceiveCoverage(payload.PlanningItem, payload.Coverage)
			return nil
		})
	case domain.ActionCoverageDeleted:
		payload, ok := action.Payload.(domain.CoverageDeletedPayload)
		if !ok {
			return Result{}, ErrPayloadMismatch{Type: action.Type}
		}
		return s.run(ctx, op, payload.CoverageID, func(tx *Transaction) error {
			tx.CoverageDeleted(payload.PlanningItem, payload.CoverageID)
			return nil
		})

	case domain.ActionReceiveAssignments:
		payload, ok := action.Payload.(domain.ReceiveAssignmentsPayload)
		if !ok {
			return Result{}, ErrPayloadMismatch{Type: action.Type}
		}
		return s.run(ctx, op, "", func(tx *Transaction) error {
			tx.ReceiveAssignments(payload.Assignments)
			return nil
		})
	case domain.ActionLockAssignment:
		return s.applyAssignment(ctx, op, action, (*Transaction).LockAssignment)
	case domain.ActionUnlockAssignment:
		return s.applyAssignment(ctx, op, action, (*Transaction).UnlockAssignment)
	case domain.ActionUpdateCoverageAssignment:
		payload, ok := action.Payload.(domain.UpdateCoverageAssignmentPayload)
		if !ok {
			return Result{}, ErrPayloadMismatch{Type: action.Type}
		}
		return s.run(ctx, op, payload.CoverageID, func(tx *Transaction) error {
			tx.UpdateCoverageAssignment(payload)
			return nil
		})

	case domain.ActionReceiveLocks:
		payload, ok := action.Payload.(domain.ReceiveLocksPayload)
		if !ok {
			return Result{}, ErrPayloadMismatch{Type: action.Type}
		}
		return s.run(ctx, op, "", func(tx *Transaction) error {
			tx.ReceiveLocks(payload)
			return nil
		})

	case domain.ActionSetEventsList:
		return s.applyList(ctx, op, action, (*Transaction).SetEventsList)
	case domain.ActionAddEventsList:
		return s.applyList(ctx, op, action, (*Transaction).AddToEventsList)
	case domain.ActionSetPlanningsList:
		return s.applyList(ctx, op, action, (*Transaction).SetPlanningsList)
	case domain.ActionAddPlanningsList:
		return s.applyList(ctx, op, action, (*Transaction).AddToPlanningsList)

	case domain.ActionShowModal:
		payload, ok := action.Payload.(domain.ShowModalPayload)
		if !ok {
			return Result{}, ErrPayloadMismatch{Type: action.Type}
		}
		return s.run(ctx, op, "", func(tx *Transaction) error {
			tx.ShowModal(payload)
			return nil
		})
	case domain.ActionHideModal:
		return s.run(ctx, op, "", func(tx *Transaction) error {
			tx.HideModal()
			return nil
		})
	}

	return Result{}, ErrUnknownAction{Type: action.Type}
}

func (s *Service) applyEvent(ctx context.Context, op string, action ReducerAction, fn func(*Transaction, Event)) (Result, error) {
	payload, ok := action.Payload.(domain.EventPayload)
	if !ok {
		return Result{}, ErrPayloadMismatch{Type: action.Type}
	}
	return s.run(ctx, op, payload.Event.ID, func(tx *Transaction) error {
		fn(tx, payload.Event)
		return nil
	})
}

func (s *Service) applyPlanning(ctx context.Context, op string, action ReducerAction, fn func(*Transaction, Planning)) (Result, error) {
	payload, ok := action.Payload.(domain.PlanningPayload)
	if !ok {
		return Result{}, ErrPayloadMismatch{Type: action.Type}
	}
	return s.run(ctx, op, payload.Plan.ID, func(tx *Transaction) error {
		fn(tx, payload.Plan)
		return nil
	})
}

func (s *Service) applyAssignment(ctx context.Context, op string, action ReducerAction, fn func(*Transaction, Assignment)) (Result, error) {
	payload, ok := action.Payload.(domain.AssignmentPayload)
	if !ok {
		return Result{}, ErrPayloadMismatch{Type: action.Type}
	}
	return s.run(ctx, op, payload.Assignment.ID, func(tx *Transaction) error {
		fn(tx, payload.Assignment)
		return nil
	})
}

func (s *Service) applyList(ctx context.Context, op string, action ReducerAction, fn func(*Transaction, []string)) (Result, error) {
	payload, ok := action.Payload.(domain.ListPayload)
	if !ok {
		return Result{}, ErrPayloadMismatch{Type: action.Type}
	}
	return s.run(ctx, op, "", func(tx *Transaction) error {
		fn(tx, payload.IDs)
		return nil
	})
}

// OpenEditor marks an entity as open in the detail editor.
func (s *Service) OpenEditor(ctx context.Context, itemType EntityType, itemID string) (Result, error) {
	return s.run(ctx, "open_editor", itemID, func(tx *Transaction) error {
		tx.OpenEditor(itemType, itemID)
		return nil
	})
}

// CloseEditor closes the detail editor.
func (s *Service) CloseEditor(ctx context.Context) (Result, error) {
	return s.run(ctx, "close_editor", "", func(tx *Transaction) error {
		tx.CloseEditor()
		return nil
	})
}

// SetEventsSpikeFilter sets the spike filter driving event list membership.
func (s *Service) SetEventsSpikeFilter(ctx context.Context, filter SpikeFilter) (Result, error) {
	return s.run(ctx, "set_events_spike_filter", "", func(tx *Transaction) error {
		tx.SetEventsSpikeFilter(filter)
		return nil
	})
}

// SetPlanningsSpikeFilter sets the spike filter driving planning list
// membership.
func (s *Service) SetPlanningsSpikeFilter(ctx context.Context, filter SpikeFilter) (Result, error) {
	return s.run(ctx, "set_plannings_spike_filter", "", func(tx *Transaction) error {
		tx.SetPlanningsSpikeFilter(filter)
		return nil
	})
}

// Read-only selectors ------------------------------------------------------

// GetEvent retrieves a cached event.
func (s *Service) GetEvent(id string) (Event, bool) { return s.store.GetEvent(id) }

// GetPlanning retrieves a cached planning item.
func (s *Service) GetPlanning(id string) (Planning, bool) { return s.store.GetPlanning(id) }

// GetAssignment retrieves a cached assignment.
func (s *Service) GetAssignment(id string) (Assignment, bool) { return s.store.GetAssignment(id) }

// ListPlannings returns all cached planning items.
func (s *Service) ListPlannings() []Planning { return s.store.ListPlannings() }

// ListEvents returns all cached events.
func (s *Service) ListEvents() []Event { return s.store.ListEvents() }

// Locks returns a copy of the derived lock table.
func (s *Service) Locks() LockTable { return s.store.Locks() }

// Editor returns the current editor state.
func (s *Service) Editor() EditorState { return s.store.Editor() }

// Modal returns the current modal state.
func (s *Service) Modal() ModalState { return s.store.Modal() }
