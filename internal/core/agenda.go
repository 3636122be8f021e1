package core

import (
	"fmt"
	"sort"
	"time"

	"planningsync/internal/recurrence"
	"planningsync/pkg/domain"
)

// Agenda expands the cached events into concrete occurrences starting within
// [from, until), sorted by start time. Recurring series are expanded once
// through their rule-bearing master; cached members of an expanded series are
// skipped so a series never contributes both its rule expansion and its
// stored instances. Spiked events do not appear.
func (s *Service) Agenda(from, until time.Time) ([]recurrence.Occurrence, error) {
	if !from.Before(until) {
		return nil, fmt.Errorf("agenda window [%s, %s) is empty", from, until)
	}

	events := s.store.ListEvents()
	sort.Slice(events, func(i, j int) bool { return events[i].ID < events[j].ID })

	expanded := make(map[string]struct{})
	for _, event := range events {
		if event.Recurrence == "" || event.RecurrenceID == "" {
			continue
		}
		expanded[event.RecurrenceID] = struct{}{}
	}

	out := make([]recurrence.Occurrence, 0)
	for _, event := range events {
		if event.State == domain.StateSpiked {
			continue
		}
		if event.Recurrence == "" {
			if _, viaMaster := expanded[event.RecurrenceID]; event.RecurrenceID != "" && viaMaster {
				continue
			}
		}
		occurrences, err := recurrence.Expand(event, from, until)
		if err != nil {
			return nil, err
		}
		out = append(out, occurrences...)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].EventID < out[j].EventID
	})
	return out, nil
}
