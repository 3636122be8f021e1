package domain

// LockPartition names one of the four partitions of the lock table.
type LockPartition string

const (
	// LockPartitionEvents keys locks held on single events by event id.
	LockPartitionEvents LockPartition = "events"
	// LockPartitionPlanning keys locks held on standalone planning items.
	LockPartitionPlanning LockPartition = "planning"
	// LockPartitionRecurring keys locks held on whole recurring series.
	LockPartitionRecurring LockPartition = "recurring"
	// LockPartitionAssignments keys locks held on assignments.
	LockPartitionAssignments LockPartition = "assignments"
)

// Lock is the derived read-side record of a held lock. It is never stored
// independently of its source entity and can be rebuilt from the entity maps
// at any time.
type Lock struct {
	Action   string    `json:"action"`
	Session  string    `json:"session"`
	User     string    `json:"user"`
	Time     Timestamp `json:"time"`
	ItemType string    `json:"item_type"`
	ItemID   string    `json:"item_id"`
}

// LockTable is the four-partition index of currently held locks.
type LockTable struct {
	Events      map[string]Lock `json:"events"`
	Planning    map[string]Lock `json:"planning"`
	Recurring   map[string]Lock `json:"recurring"`
	Assignments map[string]Lock `json:"assignments"`
}

// NewLockTable returns the typed-empty initial lock table.
func NewLockTable() LockTable {
	return LockTable{
		Events:      map[string]Lock{},
		Planning:    map[string]Lock{},
		Recurring:   map[string]Lock{},
		Assignments: map[string]Lock{},
	}
}

// Clone returns an independent copy of the table.
func (t LockTable) Clone() LockTable {
	cloned := NewLockTable()
	for k, v := range t.Events {
		cloned.Events[k] = v
	}
	for k, v := range t.Planning {
		cloned.Planning[k] = v
	}
	for k, v := range t.Recurring {
		cloned.Recurring[k] = v
	}
	for k, v := range t.Assignments {
		cloned.Assignments[k] = v
	}
	return cloned
}

func (t LockTable) partition(p LockPartition) map[string]Lock {
	switch p {
	case LockPartitionEvents:
		return t.Events
	case LockPartitionPlanning:
		return t.Planning
	case LockPartitionRecurring:
		return t.Recurring
	case LockPartitionAssignments:
		return t.Assignments
	}
	return nil
}

// Apply inserts a lock entry into the named partition.
func (t LockTable) Apply(p LockPartition, key string, lock Lock) {
	if m := t.partition(p); m != nil {
		m[key] = lock
	}
}

// Remove deletes a lock entry from the named partition.
func (t LockTable) Remove(p LockPartition, key string) {
	if m := t.partition(p); m != nil {
		delete(m, key)
	}
}

// Held reports whether the named partition holds an entry for key.
func (t LockTable) Held(p LockPartition, key string) bool {
	m := t.partition(p)
	if m == nil {
		return false
	}
	_, ok := m[key]
	return ok
}

// ConvertItemToLock builds the derived lock record from the lock fields
// embedded on an entity.
func ConvertItemToLock(id string, itemType string, fields LockFields) Lock {
	return Lock{
		Action:   fields.LockAction,
		Session:  fields.LockSession,
		User:     fields.LockUser,
		Time:     fields.LockTime,
		ItemType: itemType,
		ItemID:   id,
	}
}

// ClassifyPlanningLock decides which partition a lock held through a planning
// item belongs to, and under which key. A lock conceptually belongs to
// whatever the user is editing: the planning item itself, its single linked
// event, or the whole recurring series.
func ClassifyPlanningLock(plan Planning) (LockPartition, string) {
	switch {
	case plan.RecurrenceID != "":
		return LockPartitionRecurring, plan.RecurrenceID
	case plan.EventItem != "":
		return LockPartitionEvents, plan.EventItem
	default:
		return LockPartitionPlanning, plan.ID
	}
}

// ClassifyEventLock decides the partition and key for a lock held through an
// event: the recurring series when the event belongs to one, otherwise the
// event itself.
func ClassifyEventLock(event Event) (LockPartition, string) {
	if event.RecurrenceID != "" {
		return LockPartitionRecurring, event.RecurrenceID
	}
	return LockPartitionEvents, event.ID
}

// DeriveLocks rebuilds the full lock table from the supplied entities. Only
// entities currently carrying lock fields contribute entries.
func DeriveLocks(plans []Planning, events []Event, assignments []Assignment) LockTable {
	table := NewLockTable()
	for _, plan := range plans {
		if !plan.Locked() {
			continue
		}
		partition, key := ClassifyPlanningLock(plan)
		table.Apply(partition, key, ConvertItemToLock(plan.ID, string(LockPartitionPlanning), plan.LockFields))
	}
	for _, event := range events {
		if !event.Locked() {
			continue
		}
		partition, key := ClassifyEventLock(event)
		table.Apply(partition, key, ConvertItemToLock(event.ID, string(LockPartitionEvents), event.LockFields))
	}
	for _, assignment := range assignments {
		if !assignment.Locked() {
			continue
		}
		table.Apply(LockPartitionAssignments, assignment.ID,
			ConvertItemToLock(assignment.ID, string(LockPartitionAssignments), assignment.LockFields))
	}
	return table
}
