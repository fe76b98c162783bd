// Package service implements the booking engine: appointment/slot
// lifecycle, exclusive claims, subscription policy enforcement and the
// best-effort mirror of claimed slots onto the remote calendar.
//
// Every operation takes the acting subscriber explicitly; nothing is read
// from ambient state. Public (anonymous) operations take the owner's
// handle instead.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"slotcal/internal/access"
	"slotcal/internal/gateway"
	"slotcal/internal/model"
	"slotcal/internal/policy"
)

// ErrInvalid marks caller input the engine refuses to act on.
var ErrInvalid = errors.New("invalid request")

// SubscriberStore is the subscriber persistence the engine consumes.
type SubscriberStore interface {
	GetByID(ctx context.Context, id string) (*model.Subscriber, error)
	GetByHandle(ctx context.Context, handle string) (*model.Subscriber, error)
	Update(ctx context.Context, id string, req model.UpdateSubscriberRequest) (*model.Subscriber, error)
}

// CalendarStore is the calendar persistence the engine consumes.
type CalendarStore interface {
	CreateWithLimit(ctx context.Context, ownerID string, req model.CreateCalendarRequest, limit int) (*model.Calendar, error)
	GetByID(ctx context.Context, id string) (*model.Calendar, error)
	ListByOwner(ctx context.Context, ownerID string) ([]model.Calendar, error)
	Update(ctx context.Context, id string, req model.UpdateCalendarRequest) (*model.Calendar, error)
	Delete(ctx context.Context, id string) (*model.Calendar, error)
}

// AppointmentStore is the appointment/slot persistence the engine
// consumes. ClaimSlot must be atomic at the store's transaction boundary:
// under concurrent claims on one slot exactly one call may succeed and the
// rest must return repository.ErrSlotClaimed.
type AppointmentStore interface {
	Create(ctx context.Context, a *model.Appointment) (*model.Appointment, error)
	GetByID(ctx context.Context, id string) (*model.Appointment, error)
	GetBySlug(ctx context.Context, ownerID, slug string) (*model.Appointment, error)
	Update(ctx context.Context, id string, req model.UpdateAppointmentRequest) (*model.Appointment, error)
	Delete(ctx context.Context, id string) (*model.Appointment, error)
	ClaimSlot(ctx context.Context, appointmentID, slotID string, attendee model.Attendee, keepOpen bool) (*model.Slot, error)
}

// Gateway is the remote-calendar protocol client the engine mirrors into.
type Gateway interface {
	DiscoverCalendars(ctx context.Context, acct gateway.Account) ([]gateway.CalendarRef, error)
	ListEvents(ctx context.Context, acct gateway.Account, calendarURL string, from, to time.Time) ([]gateway.Event, error)
	CreateEvent(ctx context.Context, acct gateway.Account, calendarURL, title string, start, end time.Time) (string, error)
	DeleteEvents(ctx context.Context, acct gateway.Account, calendarURL string, start time.Time, end *time.Time) (int, error)
}

// Service orchestrates stores, policy and the calendar gateway.
type Service struct {
	subscribers  SubscriberStore
	calendars    CalendarStore
	appointments AppointmentStore
	gateway      Gateway
	limits       policy.Limits
	logger       *slog.Logger
}

// New constructs a Service with its dependencies.
func New(
	subscribers SubscriberStore,
	calendars CalendarStore,
	appointments AppointmentStore,
	gateway Gateway,
	limits policy.Limits,
	logger *slog.Logger,
) *Service {
	return &Service{
		subscribers:  subscribers,
		calendars:    calendars,
		appointments: appointments,
		gateway:      gateway,
		limits:       limits,
		logger:       logger,
	}
}

// account builds the per-call gateway credentials for a stored calendar.
func account(cal *model.Calendar) gateway.Account {
	return gateway.Account{
		EndpointURL: cal.URL,
		Username:    cal.Username,
		Secret:      cal.Secret,
	}
}

// ─── Subscriber profile ───────────────────────────────────────────────────────

// Profile returns the acting subscriber's profile.
func (s *Service) Profile(ctx context.Context, actorID string) (*model.Subscriber, error) {
	return s.subscribers.GetByID(ctx, actorID)
}

// UpdateProfile applies a partial profile update for the acting subscriber.
func (s *Service) UpdateProfile(ctx context.Context, actorID string, req model.UpdateSubscriberRequest) (*model.Subscriber, error) {
	if req.Handle != nil && strings.TrimSpace(*req.Handle) == "" {
		return nil, fmt.Errorf("%w: handle cannot be empty", ErrInvalid)
	}
	if req.Tier != nil {
		// Reject tiers the policy table does not know about before they
		// hit the database.
		if _, err := s.limits.MaxCalendars(*req.Tier); err != nil {
			return nil, err
		}
	}
	return s.subscribers.Update(ctx, actorID, req)
}

// ─── Calendars ────────────────────────────────────────────────────────────────

// CreateCalendar connects a remote calendar account for the owner, subject
// to the owner's tier limit. A tier downgrade is not retroactive: existing
// calendars above a lowered limit are kept, only new creations are blocked.
func (s *Service) CreateCalendar(ctx context.Context, owner *model.Subscriber, req model.CreateCalendarRequest) (*model.Calendar, error) {
	if strings.TrimSpace(req.URL) == "" {
		return nil, fmt.Errorf("%w: calendar url is required", ErrInvalid)
	}
	limit, err := s.limits.MaxCalendars(owner.Tier)
	if err != nil {
		return nil, err
	}
	cal, err := s.calendars.CreateWithLimit(ctx, owner.ID, req, limit)
	if err != nil {
		return nil, err
	}
	s.logger.Info("calendar connected", "owner", owner.Handle, "calendar", cal.ID)
	return cal, nil
}

// GetCalendar returns a calendar the owner owns.
func (s *Service) GetCalendar(ctx context.Context, owner *model.Subscriber, id string) (*model.Calendar, error) {
	cal, err := s.calendars.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := access.RequireCalendarOwner(owner, cal); err != nil {
		return nil, err
	}
	return cal, nil
}

// ListCalendars returns all calendars the owner owns.
func (s *Service) ListCalendars(ctx context.Context, owner *model.Subscriber) ([]model.Calendar, error) {
	return s.calendars.ListByOwner(ctx, owner.ID)
}

// UpdateCalendar applies a partial update to a calendar the owner owns.
func (s *Service) UpdateCalendar(ctx context.Context, owner *model.Subscriber, id string, req model.UpdateCalendarRequest) (*model.Calendar, error) {
	if _, err := s.GetCalendar(ctx, owner, id); err != nil {
		return nil, err
	}
	return s.calendars.Update(ctx, id, req)
}

// DeleteCalendar removes a calendar the owner owns and returns the deleted
// row. Appointments under it cascade away.
func (s *Service) DeleteCalendar(ctx context.Context, owner *model.Subscriber, id string) (*model.Calendar, error) {
	if _, err := s.GetCalendar(ctx, owner, id); err != nil {
		return nil, err
	}
	return s.calendars.Delete(ctx, id)
}

// ownedAppointment fetches an appointment and verifies transitively,
// through its calendar, that the owner owns it. Existence is checked
// before ownership so a missing id is NotFound even for non-owners.
func (s *Service) ownedAppointment(ctx context.Context, owner *model.Subscriber, id string) (*model.Appointment, *model.Calendar, error) {
	a, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	cal, err := s.calendars.GetByID(ctx, a.CalendarID)
	if err != nil {
		return nil, nil, err
	}
	if err := access.RequireCalendarOwner(owner, cal); err != nil {
		return nil, nil, err
	}
	return a, cal, nil
}
