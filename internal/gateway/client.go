// Package gateway is a stateless protocol client for one remote CalDAV
// account. It discovers sub-calendars, queries events in a date range,
// creates events and deletes events by start-time filter. It knows nothing
// about appointments or slots.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"sort"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav"
	"github.com/emersion/go-webdav/caldav"
	"github.com/google/uuid"
)

// Account carries the per-call credentials for one remote calendar
// account. The gateway holds no persistent session; every operation builds
// its clients from the account it is given.
type Account struct {
	EndpointURL string
	Username    string
	Secret      string
}

// CalendarRef is one sub-calendar discovered at a remote account.
type CalendarRef struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Event is a remote calendar event, timestamps normalized to UTC.
type Event struct {
	Title string    `json:"title"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// customTransport adds Basic Auth and a User-Agent to every request.
type customTransport struct {
	Username  string
	Secret    string
	Transport http.RoundTripper
}

func (t *customTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.SetBasicAuth(t.Username, t.Secret)
	req.Header.Set("User-Agent", "slotcal/1.0")
	return t.Transport.RoundTrip(req)
}

// Client talks CalDAV to whichever account each call supplies.
type Client struct {
	logger  *slog.Logger
	timeout time.Duration
}

// NewClient constructs a Client. Every network operation is bounded by
// timeout and surfaces ErrRemoteUnavailable on expiry.
func NewClient(logger *slog.Logger, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{logger: logger, timeout: timeout}
}

func (g *Client) clients(acct Account) (*caldav.Client, *webdav.Client, error) {
	httpClient := &http.Client{
		Transport: &customTransport{
			Username:  acct.Username,
			Secret:    acct.Secret,
			Transport: http.DefaultTransport,
		},
	}
	cd, err := caldav.NewClient(httpClient, acct.EndpointURL)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	wd, err := webdav.NewClient(httpClient, acct.EndpointURL)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	return cd, wd, nil
}

// DiscoverCalendars queries the account's principal resource and returns
// every sub-calendar found, in server order.
func (g *Client) DiscoverCalendars(ctx context.Context, acct Account) ([]CalendarRef, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	cd, _, err := g.clients(acct)
	if err != nil {
		return nil, err
	}

	principal, err := cd.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return nil, classify("find principal", err)
	}
	homeSet, err := cd.FindCalendarHomeSet(ctx, principal)
	if err != nil {
		return nil, classify("find calendar home set", err)
	}
	cals, err := cd.FindCalendars(ctx, homeSet)
	if err != nil {
		return nil, classify("find calendars", err)
	}

	refs := make([]CalendarRef, 0, len(cals))
	for _, c := range cals {
		refs = append(refs, CalendarRef{
			Name: c.Name,
			URL:  absoluteURL(acct.EndpointURL, c.Path),
		})
	}
	g.logger.Debug("discovered calendars", "endpoint", acct.EndpointURL, "count", len(refs))
	return refs, nil
}

// ListEvents returns all events overlapping the half-open interval
// [from, to), ordered by start time, timestamps in UTC. Untitled events
// come back with an empty title.
func (g *Client) ListEvents(ctx context.Context, acct Account, calendarURL string, from, to time.Time) ([]Event, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	cd, _, err := g.clients(acct)
	if err != nil {
		return nil, err
	}

	objs, err := cd.QueryCalendar(ctx, calendarPath(calendarURL), eventRangeQuery(from, to))
	if err != nil {
		return nil, classify("calendar query", err)
	}

	var events []Event
	for _, obj := range objs {
		parsed, err := eventsFromCalendar(obj.Data)
		if err != nil {
			return nil, err
		}
		for _, ev := range parsed {
			// Servers are allowed to over-report; enforce the half-open
			// overlap ourselves.
			if ev.End.After(from) && ev.Start.Before(to) {
				events = append(events, ev)
			}
		}
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Start.Before(events[j].Start) })
	return events, nil
}

// CreateEvent puts a single VEVENT on the remote calendar and returns its
// UID. The remote side gives no idempotency guarantee; callers must invoke
// this at most once per booking.
func (g *Client) CreateEvent(ctx context.Context, acct Account, calendarURL, title string, start, end time.Time) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	cd, _, err := g.clients(acct)
	if err != nil {
		return "", err
	}

	uid := uuid.New().String()
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, "-//slotcal//EN")

	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, uid)
	ve.Props.SetText(ical.PropSummary, title)
	ve.Props.SetDateTime(ical.PropDateTimeStamp, time.Now().UTC())
	ve.Props.SetDateTime(ical.PropDateTimeStart, start.UTC())
	ve.Props.SetDateTime(ical.PropDateTimeEnd, end.UTC())
	cal.Children = append(cal.Children, ve)

	objPath := path.Join(calendarPath(calendarURL), uid+".ics")
	if _, err := cd.PutCalendarObject(ctx, objPath, cal); err != nil {
		return "", classify("put calendar object", err)
	}

	g.logger.Info("created remote event", "calendar", calendarURL, "uid", uid, "start", start.UTC())
	return uid, nil
}

// DeleteEvents removes every event whose start falls in [start, end) and
// returns the number of events removed, 0 when nothing matches. A nil end
// means no upper bound. Removal is per calendar object: an object holding
// both matching and non-matching events is left in place, so events
// outside the range are never deleted alongside a neighbor.
func (g *Client) DeleteEvents(ctx context.Context, acct Account, calendarURL string, start time.Time, end *time.Time) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	cd, wd, err := g.clients(acct)
	if err != nil {
		return 0, err
	}

	upper := start.AddDate(100, 0, 0)
	if end != nil {
		upper = *end
	}
	objs, err := cd.QueryCalendar(ctx, calendarPath(calendarURL), eventRangeQuery(start, upper))
	if err != nil {
		return 0, classify("calendar query", err)
	}

	deleted := 0
	for _, obj := range objs {
		events, err := eventsFromCalendar(obj.Data)
		if err != nil {
			return deleted, err
		}
		matched := 0
		for _, ev := range events {
			if !ev.Start.Before(start) && ev.Start.Before(upper) {
				matched++
			}
		}
		if matched == 0 {
			continue
		}
		if matched < len(events) {
			g.logger.Warn("object holds events outside the range, leaving it in place",
				"object", obj.Path, "matched", matched, "total", len(events))
			continue
		}
		if err := wd.RemoveAll(ctx, obj.Path); err != nil {
			return deleted, classify("remove calendar object", err)
		}
		deleted += matched
	}

	g.logger.Info("deleted remote events", "calendar", calendarURL, "count", deleted)
	return deleted, nil
}

func eventRangeQuery(from, to time.Time) *caldav.CalendarQuery {
	return &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name: ical.CompCalendar,
			Comps: []caldav.CalendarCompRequest{{
				Name:  ical.CompEvent,
				Props: []string{ical.PropUID, ical.PropSummary, ical.PropDateTimeStart, ical.PropDateTimeEnd, ical.PropDuration},
			}},
		},
		CompFilter: caldav.CompFilter{
			Name: ical.CompCalendar,
			Comps: []caldav.CompFilter{{
				Name:  ical.CompEvent,
				Start: from.UTC(),
				End:   to.UTC(),
			}},
		},
	}
}

// calendarPath reduces an absolute or server-relative calendar URL to the
// path the DAV clients expect.
func calendarPath(calendarURL string) string {
	u, err := url.Parse(calendarURL)
	if err != nil {
		return calendarURL
	}
	if u.Path == "" {
		return "/"
	}
	return u.Path
}

func absoluteURL(endpoint, p string) string {
	base, err := url.Parse(endpoint)
	if err != nil {
		return p
	}
	ref, err := url.Parse(p)
	if err != nil {
		return p
	}
	return base.ResolveReference(ref).String()
}
