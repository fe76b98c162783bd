package gateway

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-ical"
)

func decodeCalendar(t *testing.T, ics string) *ical.Calendar {
	t.Helper()
	cal, err := ical.NewDecoder(strings.NewReader(ics)).Decode()
	if err != nil {
		t.Fatalf("decode test calendar: %v", err)
	}
	return cal
}

func icsLines(lines ...string) string {
	return strings.Join(lines, "\r\n") + "\r\n"
}

func TestEventsFromCalendar(t *testing.T) {
	cal := decodeCalendar(t, icsLines(
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//test//EN",
		"BEGIN:VEVENT",
		"UID:evt-1",
		"DTSTAMP:20240101T000000Z",
		"SUMMARY:Standup",
		"DTSTART:20240102T090000Z",
		"DTEND:20240102T093000Z",
		"END:VEVENT",
		"END:VCALENDAR",
	))

	events, err := eventsFromCalendar(cal)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	ev := events[0]
	if ev.Title != "Standup" {
		t.Errorf("title = %q, want Standup", ev.Title)
	}
	wantStart := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	if !ev.Start.Equal(wantStart) {
		t.Errorf("start = %v, want %v", ev.Start, wantStart)
	}
	if got := ev.End.Sub(ev.Start); got != 30*time.Minute {
		t.Errorf("duration = %v, want 30m", got)
	}
	if ev.Start.Location() != time.UTC {
		t.Errorf("start not normalized to UTC: %v", ev.Start.Location())
	}
}

func TestEventWithoutSummary(t *testing.T) {
	cal := decodeCalendar(t, icsLines(
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//test//EN",
		"BEGIN:VEVENT",
		"UID:evt-2",
		"DTSTAMP:20240101T000000Z",
		"DTSTART:20240102T090000Z",
		"DTEND:20240102T100000Z",
		"END:VEVENT",
		"END:VCALENDAR",
	))

	events, err := eventsFromCalendar(cal)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if events[0].Title != "" {
		t.Errorf("title = %q, want empty for untitled event", events[0].Title)
	}
}

func TestEventEndFromDuration(t *testing.T) {
	cal := decodeCalendar(t, icsLines(
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//test//EN",
		"BEGIN:VEVENT",
		"UID:evt-3",
		"DTSTAMP:20240101T000000Z",
		"SUMMARY:Focus block",
		"DTSTART:20240102T090000Z",
		"DURATION:PT1H",
		"END:VEVENT",
		"END:VCALENDAR",
	))

	events, err := eventsFromCalendar(cal)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := events[0].End.Sub(events[0].Start); got != time.Hour {
		t.Errorf("duration = %v, want 1h", got)
	}
}

func TestEventShapeViolationsFailClosed(t *testing.T) {
	tests := []struct {
		name string
		body []string
	}{
		{"missing DTSTART", []string{
			"UID:bad-1",
			"DTSTAMP:20240101T000000Z",
			"SUMMARY:No start",
			"DTEND:20240102T100000Z",
		}},
		{"missing DTEND and DURATION", []string{
			"UID:bad-2",
			"DTSTAMP:20240101T000000Z",
			"DTSTART:20240102T090000Z",
		}},
		{"end before start", []string{
			"UID:bad-3",
			"DTSTAMP:20240101T000000Z",
			"DTSTART:20240102T090000Z",
			"DTEND:20240102T080000Z",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines := append([]string{"BEGIN:VCALENDAR", "VERSION:2.0", "PRODID:-//test//EN", "BEGIN:VEVENT"}, tt.body...)
			lines = append(lines, "END:VEVENT", "END:VCALENDAR")
			cal := decodeCalendar(t, icsLines(lines...))

			_, err := eventsFromCalendar(cal)
			if !errors.Is(err, ErrRemoteProtocol) {
				t.Fatalf("expected ErrRemoteProtocol, got %v", err)
			}
		})
	}
}
