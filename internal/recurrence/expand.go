// Package recurrence expands a recurring event master into concrete
// occurrences within a window, for agenda-style views over the store.
package recurrence

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"planningsync/pkg/domain"
)

// MaxOccurrences caps expansion so a malformed unbounded rule cannot flood a
// view.
const MaxOccurrences = 500

// Occurrence is one concrete instance of a recurring event.
type Occurrence struct {
	EventID      string
	RecurrenceID string
	Start        time.Time
	End          time.Time
}

// Expand computes the occurrences of a recurring event master that start
// within [from, until). An event without a recurrence rule yields its single
// scheduled slot when it falls inside the window.
func Expand(event domain.Event, from, until time.Time) ([]Occurrence, error) {
	duration := event.Dates.End.Sub(event.Dates.Start.Time)

	if event.Recurrence == "" {
		start := event.Dates.Start.Time
		if start.Before(from) || !start.Before(until) {
			return nil, nil
		}
		return []Occurrence{{
			EventID:      event.ID,
			RecurrenceID: event.RecurrenceID,
			Start:        start,
			End:          start.Add(duration),
		}}, nil
	}

	rule, err := rrule.StrToRRule(event.Recurrence)
	if err != nil {
		return nil, fmt.Errorf("parse recurrence rule for event %s: %w", event.ID, err)
	}
	rule.DTStart(event.Dates.Start.Time)

	out := make([]Occurrence, 0)
	for _, start := range rule.Between(from, until, true) {
		if !start.Before(until) {
			continue
		}
		out = append(out, Occurrence{
			EventID:      event.ID,
			RecurrenceID: event.RecurrenceID,
			Start:        start,
			End:          start.Add(duration),
		})
		if len(out) >= MaxOccurrences {
			break
		}
	}
	return out, nil
}
