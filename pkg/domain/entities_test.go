package domain

import (
	"encoding/json"
	"testing"
	"time"
)

func TestTimestampDecodeForms(t *testing.T) {
	cases := []struct {
		raw  string
		want time.Time
	}{
		{`"2099-10-15T14:30:00+00:00"`, time.Date(2099, 10, 15, 14, 30, 0, 0, time.UTC)},
		{`"2099-10-15T14:30+0000"`, time.Date(2099, 10, 15, 14, 30, 0, 0, time.UTC)},
		{`"2099-10-15T14:30:05-0400"`, time.Date(2099, 10, 15, 14, 30, 5, 0, time.FixedZone("", -4*3600))},
	}
	for _, tc := range cases {
		var ts Timestamp
		if err := json.Unmarshal([]byte(tc.raw), &ts); err != nil {
			t.Fatalf("unmarshal %s: %v", tc.raw, err)
		}
		if !ts.Equal(tc.want) {
			t.Errorf("parsed %s => %v, want %v", tc.raw, ts.Time, tc.want)
		}
	}

	var ts Timestamp
	if err := json.Unmarshal([]byte("null"), &ts); err != nil {
		t.Fatalf("unmarshal null: %v", err)
	}
	if !ts.IsZero() {
		t.Errorf("null should decode to the zero timestamp, got %v", ts.Time)
	}

	if err := json.Unmarshal([]byte(`"next tuesday"`), &ts); err == nil {
		t.Error("expected an error for an unrecognised timestamp form")
	}
}

func TestGenreCanonicalization(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want Genre
	}{
		{"object", `{"name":"Factbox","qcode":"factbox"}`, Genre{Name: "Factbox", QCode: "factbox"}},
		{"array", `[{"name":"Factbox","qcode":"factbox"},{"qcode":"ignored"}]`, Genre{Name: "Factbox", QCode: "factbox"}},
		{"empty array", `[]`, Genre{}},
		{"scalar", `"factbox"`, Genre{QCode: "factbox"}},
		{"null", `null`, Genre{}},
	}
	for _, tc := range cases {
		var g Genre
		if err := json.Unmarshal([]byte(tc.raw), &g); err != nil {
			t.Fatalf("%s: unmarshal: %v", tc.name, err)
		}
		if g != tc.want {
			t.Errorf("%s: got %+v, want %+v", tc.name, g, tc.want)
		}
	}
}

func TestEventDecodeParsesDates(t *testing.T) {
	raw := `{
		"_id": "e1",
		"name": "Press conference",
		"dates": {"start": "2099-10-15T13:01+0000", "end": "2099-10-15T14:01+0000", "tz": "Europe/Prague"},
		"state": "draft",
		"_etag": "e123"
	}`
	var event Event
	if err := json.Unmarshal([]byte(raw), &event); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	if event.Dates.Start.IsZero() || event.Dates.End.IsZero() {
		t.Fatal("event dates must be parsed timestamps once decoded")
	}
	if !event.Dates.End.After(event.Dates.Start.Time) {
		t.Errorf("end %v should be after start %v", event.Dates.End, event.Dates.Start)
	}
	if event.ETag != "e123" {
		t.Errorf("etag = %q, want e123", event.ETag)
	}
}

func TestCoverageDecodeCanonicalizesGenre(t *testing.T) {
	raw := `{
		"coverage_id": "c1",
		"planning": {"scheduled": "2099-10-15T13:01+0000", "genre": [{"qcode":"sidebar"}]},
		"news_coverage_status": "ncostat:int",
		"assigned_to": {"desk": "desk1"}
	}`
	var cov Coverage
	if err := json.Unmarshal([]byte(raw), &cov); err != nil {
		t.Fatalf("unmarshal coverage: %v", err)
	}
	if cov.Planning.Genre.QCode != "sidebar" {
		t.Errorf("genre = %+v, want qcode sidebar", cov.Planning.Genre)
	}
	if cov.Planning.Scheduled.IsZero() {
		t.Error("coverage scheduled date must be parsed on decode")
	}
}

func TestLockFields(t *testing.T) {
	var l LockFields
	if l.Locked() {
		t.Error("zero lock fields must not report locked")
	}
	l = LockFields{LockAction: "edit", LockUser: "user1", LockSession: "sess1"}
	if !l.Locked() {
		t.Error("lock fields with a session must report locked")
	}
	if !(Session{User: "user1", Session: "sess1"}).Owns(l) {
		t.Error("matching session/user must own the lock")
	}
	if (Session{User: "user1", Session: "other"}).Owns(l) {
		t.Error("a different session must not own the lock")
	}
	l.Clear()
	if l.Locked() {
		t.Error("cleared lock fields must not report locked")
	}
}
