package recurrence

import (
	"testing"
	"time"

	"planningsync/pkg/domain"
)

func ts(t *testing.T, value string) domain.Timestamp {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatalf("parse %q: %v", value, err)
	}
	return domain.Timestamp{Time: parsed}
}

func TestExpandWeeklyRule(t *testing.T) {
	event := domain.Event{
		ID:           "e1",
		RecurrenceID: "r1",
		Recurrence:   "FREQ=WEEKLY;COUNT=4",
		Dates: domain.EventDates{
			Start: ts(t, "2099-10-05T09:00:00Z"),
			End:   ts(t, "2099-10-05T10:30:00Z"),
		},
	}

	from := time.Date(2099, 10, 1, 0, 0, 0, 0, time.UTC)
	until := time.Date(2099, 11, 1, 0, 0, 0, 0, time.UTC)

	occurrences, err := Expand(event, from, until)
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if len(occurrences) != 4 {
		t.Fatalf("got %d occurrences, want 4", len(occurrences))
	}
	for i, occ := range occurrences {
		wantStart := event.Dates.Start.Add(time.Duration(i) * 7 * 24 * time.Hour)
		if !occ.Start.Equal(wantStart) {
			t.Errorf("occurrence %d start = %v, want %v", i, occ.Start, wantStart)
		}
		if got := occ.End.Sub(occ.Start); got != 90*time.Minute {
			t.Errorf("occurrence %d duration = %v", i, got)
		}
		if occ.EventID != "e1" || occ.RecurrenceID != "r1" {
			t.Errorf("occurrence %d identity = %s/%s", i, occ.EventID, occ.RecurrenceID)
		}
	}
}

func TestExpandWindowClipsRule(t *testing.T) {
	event := domain.Event{
		ID:         "e1",
		Recurrence: "FREQ=DAILY;COUNT=30",
		Dates: domain.EventDates{
			Start: ts(t, "2099-10-01T08:00:00Z"),
			End:   ts(t, "2099-10-01T09:00:00Z"),
		},
	}

	from := time.Date(2099, 10, 10, 0, 0, 0, 0, time.UTC)
	until := time.Date(2099, 10, 13, 0, 0, 0, 0, time.UTC)

	occurrences, err := Expand(event, from, until)
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if len(occurrences) != 3 {
		t.Fatalf("got %d occurrences, want 3", len(occurrences))
	}
	if first := occurrences[0].Start; first.Day() != 10 {
		t.Errorf("first occurrence on day %d, want 10", first.Day())
	}
}

func TestExpandSingleEvent(t *testing.T) {
	event := domain.Event{
		ID: "e1",
		Dates: domain.EventDates{
			Start: ts(t, "2099-10-15T14:00:00Z"),
			End:   ts(t, "2099-10-15T15:00:00Z"),
		},
	}

	inside, err := Expand(event,
		time.Date(2099, 10, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2099, 11, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if len(inside) != 1 || !inside[0].Start.Equal(event.Dates.Start.Time) {
		t.Errorf("in-window expansion = %+v", inside)
	}

	outside, err := Expand(event,
		time.Date(2099, 11, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2099, 12, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if len(outside) != 0 {
		t.Errorf("out-of-window expansion = %+v", outside)
	}
}

func TestExpandInvalidRule(t *testing.T) {
	event := domain.Event{
		ID:         "e1",
		Recurrence: "FREQ=SOMETIMES",
		Dates: domain.EventDates{
			Start: ts(t, "2099-10-01T08:00:00Z"),
			End:   ts(t, "2099-10-01T09:00:00Z"),
		},
	}
	if _, err := Expand(event, time.Time{}, time.Now()); err == nil {
		t.Error("invalid rule must error")
	}
}

func TestExpandCapsUnboundedRule(t *testing.T) {
	event := domain.Event{
		ID:         "e1",
		Recurrence: "FREQ=HOURLY",
		Dates: domain.EventDates{
			Start: ts(t, "2099-01-01T00:00:00Z"),
			End:   ts(t, "2099-01-01T01:00:00Z"),
		},
	}

	from := time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC)
	until := time.Date(2100, 1, 1, 0, 0, 0, 0, time.UTC)

	occurrences, err := Expand(event, from, until)
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if len(occurrences) != MaxOccurrences {
		t.Errorf("got %d occurrences, want cap of %d", len(occurrences), MaxOccurrences)
	}
}
