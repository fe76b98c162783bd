package gateway

import (
	"fmt"
	"time"

	"github.com/emersion/go-ical"
)

// eventsFromCalendar extracts every VEVENT from a calendar object into the
// gateway's typed representation. It fails closed: a VEVENT without a
// usable start or end is ErrRemoteProtocol rather than a silently coerced
// zero value. A missing SUMMARY is tolerated as an empty title.
func eventsFromCalendar(cal *ical.Calendar) ([]Event, error) {
	if cal == nil {
		return nil, fmt.Errorf("%w: calendar object without data", ErrRemoteProtocol)
	}

	var events []Event
	for _, raw := range cal.Events() {
		ev, err := parseEvent(raw)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}

func parseEvent(raw ical.Event) (Event, error) {
	var ev Event

	if prop := raw.Props.Get(ical.PropSummary); prop != nil {
		ev.Title = prop.Value
	}

	start, err := raw.DateTimeStart(time.UTC)
	if err != nil {
		return Event{}, fmt.Errorf("%w: event DTSTART: %v", ErrRemoteProtocol, err)
	}
	if start.IsZero() {
		return Event{}, fmt.Errorf("%w: event without DTSTART", ErrRemoteProtocol)
	}

	// DateTimeEnd falls back to DTSTART+DURATION when DTEND is absent, and
	// to DTSTART alone when both are missing. Check property presence first
	// so an end-less event cannot slip through as a zero-length one.
	if raw.Props.Get(ical.PropDateTimeEnd) == nil && raw.Props.Get(ical.PropDuration) == nil {
		return Event{}, fmt.Errorf("%w: event without DTEND or DURATION", ErrRemoteProtocol)
	}
	end, err := raw.DateTimeEnd(time.UTC)
	if err != nil {
		return Event{}, fmt.Errorf("%w: event DTEND: %v", ErrRemoteProtocol, err)
	}
	if end.Before(start) {
		return Event{}, fmt.Errorf("%w: event ends before it starts", ErrRemoteProtocol)
	}

	ev.Start = start.UTC()
	ev.End = end.UTC()
	return ev, nil
}
