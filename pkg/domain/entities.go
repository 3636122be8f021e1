// Package domain defines the planning entities, value types, and rule
// evaluation primitives shared by the store, reducers, and dispatcher.
package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// EntityType identifies the kind of record held in the entity store.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityEvent identifies a calendar event record.
	EntityEvent EntityType = "events"
	// EntityPlanning identifies a planning item record.
	EntityPlanning EntityType = "planning"
	// EntityCoverage identifies a coverage embedded in a planning item.
	EntityCoverage EntityType = "coverage"
	// EntityAssignment identifies an assignment record.
	EntityAssignment EntityType = "assignments"
)

// WorkflowState represents the server-defined workflow states of events and
// planning items.
type WorkflowState string

// Canonical workflow states. The server owns this enumeration; the client
// only reflects it.
const (
	StateDraft       WorkflowState = "draft"
	StateScheduled   WorkflowState = "scheduled"
	StateSpiked      WorkflowState = "spiked"
	StateKilled      WorkflowState = "killed"
	StateCancelled   WorkflowState = "cancelled"
	StatePostponed   WorkflowState = "postponed"
	StateRescheduled WorkflowState = "rescheduled"
)

// PublishedState mirrors the backend pubstatus field.
type PublishedState string

const (
	PublishedUsable    PublishedState = "usable"
	PublishedCancelled PublishedState = "cancelled"
)

// SpikeFilter selects which spike states a list view shows.
type SpikeFilter string

const (
	SpikeFilterSpiked    SpikeFilter = "spiked"
	SpikeFilterNotSpiked SpikeFilter = "draft"
	SpikeFilterBoth      SpikeFilter = "both"
)

// Timestamp is a time.Time that decodes from the backend's timestamp forms.
// The backend emits both RFC3339 and a compact "+0000" offset variant, and
// entities are only admitted to the store once their dates are parsed.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04-0700",
}

// ParseTimestamp parses a backend timestamp string.
func ParseTimestamp(s string) (Timestamp, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Timestamp{t}, nil
		}
	}
	return Timestamp{}, fmt.Errorf("unrecognised timestamp %q", s)
}

// UnmarshalJSON accepts a timestamp string or null.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*t = Timestamp{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*t = Timestamp{}
		return nil
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// MarshalJSON emits RFC3339 or null for the zero value.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(time.RFC3339))
}

// LockFields carries the optimistic-lock ownership fields embedded on
// lockable entities. A nil/empty Session means the entity is not held.
type LockFields struct {
	LockAction  string    `json:"lock_action,omitempty"`
	LockUser    string    `json:"lock_user,omitempty"`
	LockSession string    `json:"lock_session,omitempty"`
	LockTime    Timestamp `json:"lock_time,omitempty"`
}

// Locked reports whether the owning entity currently holds a lock.
func (l LockFields) Locked() bool { return l.LockSession != "" }

// Clear removes all lock ownership fields.
func (l *LockFields) Clear() { *l = LockFields{} }

// EventDates holds the parsed schedule of an event.
type EventDates struct {
	Start Timestamp `json:"start"`
	End   Timestamp `json:"end"`
	TZ    string    `json:"tz,omitempty"`
}

// Event is a calendar event mirrored from the backend. Dates are parsed
// timestamps, never raw strings, once the event is in the store.
type Event struct {
	ID           string         `json:"_id"`
	Name         string         `json:"name"`
	Dates        EventDates     `json:"dates"`
	RecurrenceID string         `json:"recurrence_id,omitempty"`
	Recurrence   string         `json:"recurrence_rule,omitempty"`
	State        WorkflowState  `json:"state,omitempty"`
	RevertState  WorkflowState  `json:"revert_state,omitempty"`
	Pubstatus    PublishedState `json:"pubstatus,omitempty"`
	ETag         string         `json:"_etag"`
	LockFields
}

// Genre is canonicalized to the object form on ingest. The backend sends an
// object, a bare string qcode, or a one-element array depending on the code
// path that produced the coverage.
type Genre struct {
	Name  string `json:"name,omitempty"`
	QCode string `json:"qcode,omitempty"`
}

// UnmarshalJSON canonicalizes array, scalar, and object payloads.
func (g *Genre) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*g = Genre{}
		return nil
	}
	switch data[0] {
	case '[':
		var arr []Genre
		if err := json.Unmarshal(data, &arr); err != nil {
			return err
		}
		if len(arr) == 0 {
			*g = Genre{}
		} else {
			*g = arr[0]
		}
		return nil
	case '"':
		var qcode string
		if err := json.Unmarshal(data, &qcode); err != nil {
			return err
		}
		*g = Genre{QCode: qcode}
		return nil
	default:
		type genreAlias Genre
		var obj genreAlias
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		*g = Genre(obj)
		return nil
	}
}

// Empty reports whether the genre carries no information.
func (g Genre) Empty() bool { return g == Genre{} }

// CoverageDetails is the editorial payload of a coverage.
type CoverageDetails struct {
	Scheduled     Timestamp `json:"scheduled,omitempty"`
	Genre         Genre     `json:"genre,omitempty"`
	InternalNote  string    `json:"internal_note,omitempty"`
	EdNote        string    `json:"ednote,omitempty"`
	Slugline      string    `json:"slugline,omitempty"`
	G2ContentType string    `json:"g2_content_type,omitempty"`
}

// AssignedTo links a coverage to the desk and user responsible for it.
type AssignedTo struct {
	Desk  string `json:"desk,omitempty"`
	User  string `json:"user,omitempty"`
	State string `json:"state,omitempty"`
}

// Coverage is a unit of planned journalistic work owned by a planning item.
// It cannot outlive its planning item in the local model, but it is
// independently addressable by CoverageID for update/delete notifications.
type Coverage struct {
	CoverageID         string          `json:"coverage_id"`
	Planning           CoverageDetails `json:"planning"`
	NewsCoverageStatus string          `json:"news_coverage_status,omitempty"`
	AssignedTo         AssignedTo      `json:"assigned_to,omitempty"`
}

// Planning is a planning item, optionally linked to an originating event.
type Planning struct {
	ID           string        `json:"_id"`
	Slugline     string        `json:"slugline,omitempty"`
	EventItem    string        `json:"event_item,omitempty"`
	RecurrenceID string        `json:"recurrence_id,omitempty"`
	Coverages    []Coverage    `json:"coverages"`
	Agendas      []string      `json:"agendas,omitempty"`
	State        WorkflowState `json:"state,omitempty"`
	RevertState  WorkflowState `json:"revert_state,omitempty"`
	EdNote       string        `json:"ednote,omitempty"`
	ETag         string        `json:"_etag"`
	LockFields
}

// FindCoverage returns the index of the coverage with the given id, or -1.
func (p Planning) FindCoverage(coverageID string) int {
	for i, c := range p.Coverages {
		if c.CoverageID == coverageID {
			return i
		}
	}
	return -1
}

// Assignment cross-links a coverage to a desk/user. Updates to it are
// projected back onto the owning coverage's AssignedTo field.
type Assignment struct {
	ID                   string `json:"_id"`
	Item                 string `json:"item,omitempty"`
	AssignedDesk         string `json:"assigned_desk,omitempty"`
	AssignmentState      string `json:"assignment_state,omitempty"`
	Coverage             string `json:"coverage,omitempty"`
	Planning             string `json:"planning,omitempty"`
	OriginalAssignedDesk string `json:"original_assigned_desk,omitempty"`
	ETag                 string `json:"_etag"`
	LockFields
}

// Session identifies a client session for lock ownership checks.
type Session struct {
	User    string
	Session string
}

// Owns reports whether the session owns the supplied lock fields.
func (s Session) Owns(l LockFields) bool {
	return l.LockSession == s.Session && l.LockUser == s.User
}
