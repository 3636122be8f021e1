package core

import (
	"context"
	"sync"
	"time"

	"planningsync/pkg/domain"
)

// SearchState holds the active spike filters driving list membership.
type SearchState struct {
	EventsSpikeFilter    SpikeFilter `json:"events_spike_filter"`
	PlanningsSpikeFilter SpikeFilter `json:"plannings_spike_filter"`
}

// EditorState tracks the entity currently open in the detail editor.
type EditorState struct {
	Opened   bool       `json:"opened"`
	ItemType EntityType `json:"item_type,omitempty"`
	ItemID   string     `json:"item_id,omitempty"`
}

// ModalState tracks the notification modal shown over the editor.
type ModalState struct {
	Open      bool   `json:"open"`
	ModalType string `json:"modal_type,omitempty"`
	Title     string `json:"title,omitempty"`
	Body      string `json:"body,omitempty"`
}

type memoryState struct {
	events      map[string]Event
	plannings   map[string]Planning
	assignments map[string]Assignment
	locks       LockTable

	eventsInList    []string
	planningsInList []string

	search SearchState
	editor EditorState
	modal  ModalState
}

func newMemoryState() memoryState {
	return memoryState{
		events:      make(map[string]Event),
		plannings:   make(map[string]Planning),
		assignments: make(map[string]Assignment),
		locks:       domain.NewLockTable(),
		search: SearchState{
			EventsSpikeFilter:    domain.SpikeFilterNotSpiked,
			PlanningsSpikeFilter: domain.SpikeFilterNotSpiked,
		},
	}
}

func (s memoryState) clone() memoryState {
	cloned := s
	cloned.events = make(map[string]Event, len(s.events))
	for k, v := range s.events {
		cloned.events[k] = cloneEvent(v)
	}
	cloned.plannings = make(map[string]Planning, len(s.plannings))
	for k, v := range s.plannings {
		cloned.plannings[k] = clonePlanning(v)
	}
	cloned.assignments = make(map[string]Assignment, len(s.assignments))
	for k, v := range s.assignments {
		cloned.assignments[k] = cloneAssignment(v)
	}
	cloned.locks = s.locks.Clone()
	cloned.eventsInList = append([]string(nil), s.eventsInList...)
	cloned.planningsInList = append([]string(nil), s.planningsInList...)
	return cloned
}

func cloneEvent(e Event) Event { return e }

func clonePlanning(p Planning) Planning {
	cp := p
	cp.Coverages = append([]Coverage(nil), p.Coverages...)
	cp.Agendas = append([]string(nil), p.Agendas...)
	return cp
}

func cloneAssignment(a Assignment) Assignment { return a }

// MemoryStore is the normalized in-memory entity store. Transitions run
// against a cloned snapshot and commit by swap, so a previously observed
// snapshot is never mutated. The store is an explicitly owned instance; there
// is no package-level state.
type MemoryStore struct {
	mu      sync.RWMutex
	state   memoryState
	engine  *RulesEngine
	version uint64
	nowFn   func() time.Time
}

// NewMemoryStore constructs an initialized store backed by the provided rules
// engine. A nil engine falls back to the default invariant set.
func NewMemoryStore(engine *RulesEngine) *MemoryStore {
	if engine == nil {
		engine = NewDefaultRulesEngine()
	}
	return &MemoryStore{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

// Init restores the typed-empty initial shape.
func (s *MemoryStore) Init() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = newMemoryState()
	s.version++
}

// Reset nulls the store state. Reads return nothing until Init is called.
func (s *MemoryStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryState{}
	s.version++
}

// Version returns a counter incremented on every committed transition. A
// transaction that records no changes leaves both the snapshot and the
// version untouched, which is how no-op relevance gates stay observable.
func (s *MemoryStore) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Transaction represents a mutation set applied to the store state.
type Transaction struct {
	store   *MemoryStore
	state   memoryState
	changes []Change
	now     time.Time
}

func (tx *Transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Changes exposes the changes recorded so far within the transaction.
func (tx *Transaction) Changes() []Change { return tx.changes }

// TransactionView exposes a read-only snapshot of the transactional state to
// rules and callers of View.
type TransactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return TransactionView{state: state}
}

var _ domain.RuleView = TransactionView{}

// ListEvents returns all events within the snapshot.
func (v TransactionView) ListEvents() []Event {
	out := make([]Event, 0, len(v.state.events))
	for _, e := range v.state.events {
		out = append(out, cloneEvent(e))
	}
	return out
}

// ListPlannings returns all planning items within the snapshot.
func (v TransactionView) ListPlannings() []Planning {
	out := make([]Planning, 0, len(v.state.plannings))
	for _, p := range v.state.plannings {
		out = append(out, clonePlanning(p))
	}
	return out
}

// ListAssignments returns all assignments within the snapshot.
func (v TransactionView) ListAssignments() []Assignment {
	out := make([]Assignment, 0, len(v.state.assignments))
	for _, a := range v.state.assignments {
		out = append(out, cloneAssignment(a))
	}
	return out
}

// FindEvent retrieves an event by id from the snapshot.
func (v TransactionView) FindEvent(id string) (Event, bool) {
	e, ok := v.state.events[id]
	if !ok {
		return Event{}, false
	}
	return cloneEvent(e), true
}

// FindPlanning retrieves a planning item by id from the snapshot.
func (v TransactionView) FindPlanning(id string) (Planning, bool) {
	p, ok := v.state.plannings[id]
	if !ok {
		return Planning{}, false
	}
	return clonePlanning(p), true
}

// FindAssignment retrieves an assignment by id from the snapshot.
func (v TransactionView) FindAssignment(id string) (Assignment, bool) {
	a, ok := v.state.assignments[id]
	if !ok {
		return Assignment{}, false
	}
	return cloneAssignment(a), true
}

// Locks returns a copy of the lock table.
func (v TransactionView) Locks() LockTable { return v.state.locks.Clone() }

// EventsInList returns the visible event id list.
func (v TransactionView) EventsInList() []string {
	return append([]string(nil), v.state.eventsInList...)
}

// PlanningsInList returns the visible planning id list.
func (v TransactionView) PlanningsInList() []string {
	return append([]string(nil), v.state.planningsInList...)
}

// Search returns the active search filters.
func (v TransactionView) Search() SearchState { return v.state.search }

// Editor returns the editor state.
func (v TransactionView) Editor() EditorState { return v.state.editor }

// Modal returns the modal state.
func (v TransactionView) Modal() ModalState { return v.state.modal }

// RunInTransaction executes fn within a transactional copy of the store
// state. The commit is skipped entirely when fn records no changes, so
// irrelevant notifications leave the committed snapshot untouched. Blocking
// invariant violations abort the commit.
func (s *MemoryStore) RunInTransaction(ctx context.Context, fn func(tx *Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &Transaction{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}
	if len(tx.changes) == 0 {
		return Result{}, nil
	}

	var result Result
	if s.engine != nil {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	s.version++
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *MemoryStore) View(ctx context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.state.clone()
	view := newTransactionView(&snapshot)
	return fn(view)
}

// Read helpers ---------------------------------------------------------------

// GetEvent retrieves an event by id from committed state.
func (s *MemoryStore) GetEvent(id string) (Event, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.state.events[id]
	if !ok {
		return Event{}, false
	}
	return cloneEvent(e), true
}

// GetPlanning retrieves a planning item by id from committed state.
func (s *MemoryStore) GetPlanning(id string) (Planning, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.state.plannings[id]
	if !ok {
		return Planning{}, false
	}
	return clonePlanning(p), true
}

// GetAssignment retrieves an assignment by id from committed state.
func (s *MemoryStore) GetAssignment(id string) (Assignment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.state.assignments[id]
	if !ok {
		return Assignment{}, false
	}
	return cloneAssignment(a), true
}

// ListEvents returns all cached events.
func (s *MemoryStore) ListEvents() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Event, 0, len(s.state.events))
	for _, e := range s.state.events {
		out = append(out, cloneEvent(e))
	}
	return out
}

// ListPlannings returns all cached planning items.
func (s *MemoryStore) ListPlannings() []Planning {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Planning, 0, len(s.state.plannings))
	for _, p := range s.state.plannings {
		out = append(out, clonePlanning(p))
	}
	return out
}

// ListAssignments returns all cached assignments.
func (s *MemoryStore) ListAssignments() []Assignment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Assignment, 0, len(s.state.assignments))
	for _, a := range s.state.assignments {
		out = append(out, cloneAssignment(a))
	}
	return out
}

// Locks returns a copy of the derived lock table.
func (s *MemoryStore) Locks() LockTable {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.locks.Clone()
}

// EventsInList returns the visible event id list.
func (s *MemoryStore) EventsInList() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.state.eventsInList...)
}

// PlanningsInList returns the visible planning id list.
func (s *MemoryStore) PlanningsInList() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.state.planningsInList...)
}

// Search returns the active search filters.
func (s *MemoryStore) Search() SearchState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.search
}

// Editor returns the current editor state.
func (s *MemoryStore) Editor() EditorState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.editor
}

// Modal returns the current modal state.
func (s *MemoryStore) Modal() ModalState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.modal
}

// Snapshot is the serializable image of the entity maps. The lock table,
// lists, and view state are derived or ephemeral and are rebuilt on import.
type Snapshot struct {
	Events      map[string]Event      `json:"events"`
	Plannings   map[string]Planning   `json:"plannings"`
	Assignments map[string]Assignment `json:"assignments"`
}

// ExportState captures the entity maps for persistence.
func (s *MemoryStore) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot := Snapshot{
		Events:      make(map[string]Event, len(s.state.events)),
		Plannings:   make(map[string]Planning, len(s.state.plannings)),
		Assignments: make(map[string]Assignment, len(s.state.assignments)),
	}
	for k, v := range s.state.events {
		snapshot.Events[k] = cloneEvent(v)
	}
	for k, v := range s.state.plannings {
		snapshot.Plannings[k] = clonePlanning(v)
	}
	for k, v := range s.state.assignments {
		snapshot.Assignments[k] = cloneAssignment(v)
	}
	return snapshot
}

// ImportState replaces the entity maps with a persisted snapshot and rebuilds
// the derived lock table from the entity lock fields.
func (s *MemoryStore) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := newMemoryState()
	for k, v := range snapshot.Events {
		state.events[k] = cloneEvent(v)
	}
	for k, v := range snapshot.Plannings {
		state.plannings[k] = normalizePlanning(v)
	}
	for k, v := range snapshot.Assignments {
		state.assignments[k] = cloneAssignment(v)
	}
	state.locks = deriveLocksFromState(&state)
	s.state = state
	s.version++
}

func deriveLocksFromState(state *memoryState) LockTable {
	plans := make([]Planning, 0, len(state.plannings))
	for _, p := range state.plannings {
		plans = append(plans, p)
	}
	events := make([]Event, 0, len(state.events))
	for _, e := range state.events {
		events = append(events, e)
	}
	assignments := make([]Assignment, 0, len(state.assignments))
	for _, a := range state.assignments {
		assignments = append(assignments, a)
	}
	return domain.DeriveLocks(plans, events, assignments)
}
