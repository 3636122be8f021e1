package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"planningsync/pkg/domain"
)

type captureRecorder struct {
	mu           sync.Mutex
	observations []string
	successes    map[string]int
	failures     map[string]int
}

func newCaptureRecorder() *captureRecorder {
	return &captureRecorder{successes: map[string]int{}, failures: map[string]int{}}
}

func (r *captureRecorder) Observe(_ context.Context, operation string, success bool, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observations = append(r.observations, operation)
	if success {
		r.successes[operation]++
	} else {
		r.failures[operation]++
	}
}

type captureSpan struct {
	operation string
	err       error
	ended     bool
}

type captureTracer struct {
	mu    sync.Mutex
	spans []*captureSpan
}

func (tr *captureTracer) Start(ctx context.Context, operation string) (context.Context, TraceSpan) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	span := &captureSpan{operation: operation}
	tr.spans = append(tr.spans, span)
	return ctx, span
}

func (s *captureSpan) End(err error) {
	s.ended = true
	s.err = err
}

func TestApplyRejectsUnknownAction(t *testing.T) {
	service := NewInMemoryService(nil)
	_, err := service.Apply(context.Background(), ReducerAction{Type: "NO_SUCH_ACTION"})

	var unknown ErrUnknownAction
	if !errors.As(err, &unknown) {
		t.Fatalf("err = %v, want ErrUnknownAction", err)
	}
}

func TestApplyRejectsMismatchedPayload(t *testing.T) {
	service := NewInMemoryService(nil)
	_, err := service.Apply(context.Background(), ReducerAction{
		Type:    domain.ActionLockEvent,
		Payload: domain.PlanningPayload{},
	})

	var mismatch ErrPayloadMismatch
	if !errors.As(err, &mismatch) {
		t.Fatalf("err = %v, want ErrPayloadMismatch", err)
	}
	if mismatch.Type != domain.ActionLockEvent {
		t.Errorf("mismatch type = %s", mismatch.Type)
	}
}

func TestApplyDispatchesEveryEntityFamily(t *testing.T) {
	service := NewInMemoryService(nil)
	ctx := context.Background()

	steps := []ReducerAction{
		{Type: domain.ActionReceiveEvents, Payload: domain.ReceiveEventsPayload{Events: []Event{{ID: "e1", ETag: "v1"}}}},
		{Type: domain.ActionReceivePlannings, Payload: domain.ReceivePlanningsPayload{Plannings: []Planning{{ID: "p1", ETag: "v1"}}}},
		{Type: domain.ActionReceiveAssignments, Payload: domain.ReceiveAssignmentsPayload{Assignments: []Assignment{{ID: "a1", ETag: "v1"}}}},
		{Type: domain.ActionLockEvent, Payload: domain.EventPayload{Event: Event{ID: "e1", ETag: "v2", LockFields: lockedBy("u1", "s1")}}},
		{Type: domain.ActionUnlockEvent, Payload: domain.EventPayload{Event: Event{ID: "e1", ETag: "v3"}}},
		{Type: domain.ActionSetEventsList, Payload: domain.ListPayload{IDs: []string{"e1"}}},
		{Type: domain.ActionSetPlanningsList, Payload: domain.ListPayload{IDs: []string{"p1"}}},
		{Type: domain.ActionShowModal, Payload: domain.ShowModalPayload{ModalType: "NOTIFICATION_MODAL", Title: "t"}},
		{Type: domain.ActionHideModal},
	}
	for _, step := range steps {
		if _, err := service.Apply(ctx, step); err != nil {
			t.Fatalf("apply %s: %v", step.Type, err)
		}
	}

	if _, ok := service.GetEvent("e1"); !ok {
		t.Error("event not applied")
	}
	if _, ok := service.GetPlanning("p1"); !ok {
		t.Error("planning not applied")
	}
	if _, ok := service.GetAssignment("a1"); !ok {
		t.Error("assignment not applied")
	}
	if modal := service.Modal(); modal.Open {
		t.Errorf("modal = %+v, want hidden", modal)
	}
}

func TestServiceRecordsMetricsAndAudit(t *testing.T) {
	recorder := newCaptureRecorder()
	audit := NewMemoryAuditRecorder(0)
	tracer := &captureTracer{}
	service := NewInMemoryService(nil,
		WithMetricsRecorder(recorder),
		WithAuditRecorder(audit),
		WithTracer(tracer),
	)
	ctx := context.Background()

	if _, err := service.Apply(ctx, ReducerAction{
		Type:    domain.ActionReceiveEvents,
		Payload: domain.ReceiveEventsPayload{Events: []Event{{ID: "e1", ETag: "v1"}}},
	}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	_, blockedErr := service.Apply(ctx, ReducerAction{
		Type:    domain.ActionSetEventsList,
		Payload: domain.ListPayload{IDs: []string{"ghost"}},
	})
	if blockedErr == nil {
		t.Fatal("expected a blocked transition")
	}

	if recorder.successes["receive_events"] != 1 {
		t.Errorf("successes = %+v", recorder.successes)
	}
	if recorder.failures["set_events_list"] != 1 {
		t.Errorf("failures = %+v", recorder.failures)
	}

	entries := audit.Entries()
	if len(entries) != 2 {
		t.Fatalf("audit entries = %+v", entries)
	}
	if entries[0].Operation != "receive_events" || entries[0].Status != AuditStatusSuccess {
		t.Errorf("first audit entry = %+v", entries[0])
	}
	if entries[1].Status != AuditStatusError || entries[1].Violations != 1 {
		t.Errorf("second audit entry = %+v", entries[1])
	}

	if len(tracer.spans) != 2 {
		t.Fatalf("spans = %d, want 2", len(tracer.spans))
	}
	if !tracer.spans[0].ended || tracer.spans[0].err != nil {
		t.Errorf("first span = %+v", tracer.spans[0])
	}
	if tracer.spans[1].err == nil {
		t.Errorf("blocked span carries no error: %+v", tracer.spans[1])
	}
}

func TestInitAndResetStoreAudited(t *testing.T) {
	audit := NewMemoryAuditRecorder(0)
	service := NewInMemoryService(nil, WithAuditRecorder(audit))
	ctx := context.Background()

	service.InitStore(ctx)
	service.ResetStore(ctx)

	entries := audit.Entries()
	if len(entries) != 2 || entries[0].Operation != "init_store" || entries[1].Operation != "reset_store" {
		t.Errorf("audit entries = %+v", entries)
	}
}

func TestSessionAccessor(t *testing.T) {
	session := domain.Session{User: "u1", Session: "s1"}
	service := NewInMemoryService(nil, WithSession(session))
	if got := service.Session(); got != session {
		t.Errorf("session = %+v", got)
	}
	if !service.Session().Owns(lockedBy("u1", "s1")) {
		t.Error("session must own its own lock fields")
	}
}

func TestEditorOperations(t *testing.T) {
	service := NewInMemoryService(nil)
	ctx := context.Background()

	if _, err := service.Apply(ctx, ReducerAction{
		Type:    domain.ActionReceiveEvents,
		Payload: domain.ReceiveEventsPayload{Events: []Event{{ID: "e1", ETag: "v1"}}},
	}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if _, err := service.OpenEditor(ctx, EntityEvent, "e1"); err != nil {
		t.Fatalf("open editor: %v", err)
	}
	if editor := service.Editor(); !editor.Opened || editor.ItemID != "e1" {
		t.Errorf("editor = %+v", editor)
	}
	if _, err := service.CloseEditor(ctx); err != nil {
		t.Fatalf("close editor: %v", err)
	}
	if editor := service.Editor(); editor.Opened {
		t.Errorf("editor = %+v, want closed", editor)
	}
}
