package service

import (
	"context"
	"time"

	"slotcal/internal/gateway"
	"slotcal/internal/model"
)

// Administrative pass-throughs to the calendar gateway. These have no
// local state to protect, so remote failures surface to the caller as-is.

// DiscoverRemoteCalendars lists the sub-calendars available at the remote
// account behind one of the owner's calendars.
func (s *Service) DiscoverRemoteCalendars(ctx context.Context, owner *model.Subscriber, calendarID string) ([]gateway.CalendarRef, error) {
	cal, err := s.GetCalendar(ctx, owner, calendarID)
	if err != nil {
		return nil, err
	}
	return s.gateway.DiscoverCalendars(ctx, account(cal))
}

// ListRemoteEvents returns the remote events overlapping [from, to) for
// one of the owner's calendars. remoteURL optionally targets a discovered
// sub-calendar; empty means the calendar's stored URL.
func (s *Service) ListRemoteEvents(ctx context.Context, owner *model.Subscriber, calendarID, remoteURL string, from, to time.Time) ([]gateway.Event, error) {
	cal, err := s.GetCalendar(ctx, owner, calendarID)
	if err != nil {
		return nil, err
	}
	if remoteURL == "" {
		remoteURL = cal.URL
	}
	return s.gateway.ListEvents(ctx, account(cal), remoteURL, from, to)
}

// CreateRemoteEvent creates an event directly on the remote calendar,
// independent of the booking flow, and returns its remote identifier.
func (s *Service) CreateRemoteEvent(ctx context.Context, owner *model.Subscriber, calendarID, title string, start, end time.Time) (string, error) {
	cal, err := s.GetCalendar(ctx, owner, calendarID)
	if err != nil {
		return "", err
	}
	return s.gateway.CreateEvent(ctx, account(cal), cal.URL, title, start, end)
}

// DeleteRemoteEvents deletes every remote event whose start falls in
// [start, end), where a nil end means unbounded, and returns the count removed.
func (s *Service) DeleteRemoteEvents(ctx context.Context, owner *model.Subscriber, calendarID string, start time.Time, end *time.Time) (int, error) {
	cal, err := s.GetCalendar(ctx, owner, calendarID)
	if err != nil {
		return 0, err
	}
	return s.gateway.DeleteEvents(ctx, account(cal), cal.URL, start, end)
}
