package service

import (
	"context"
	"fmt"
	"strings"

	"slotcal/internal/access"
	"slotcal/internal/model"
)

// ClaimResult is the two-phase outcome of a slot claim. The local booking
// is authoritative; the remote mirror is best-effort. A nil MirrorErr
// means fully booked and mirrored, a non-nil MirrorErr means the booking
// stands but the remote event could not be created.
type ClaimResult struct {
	Slot           *model.Slot
	Attendee       model.Attendee
	RemoteEventUID string
	MirrorErr      error
}

// Mirrored reports whether the remote calendar received the event.
func (r *ClaimResult) Mirrored() bool {
	return r.MirrorErr == nil
}

// CreateAppointment publishes an appointment with its initial slot set.
// Slots are created unclaimed in the given order; duplicate start times
// are allowed and independently claimable. A slot's duration defaults to
// the appointment's when it is not supplied (per-slot value wins when both
// are present).
func (s *Service) CreateAppointment(ctx context.Context, owner *model.Subscriber, req model.CreateAppointmentRequest) (*model.Appointment, error) {
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return nil, fmt.Errorf("%w: appointment title is required", ErrInvalid)
	}
	if req.Duration <= 0 {
		return nil, fmt.Errorf("%w: duration must be a positive number of minutes", ErrInvalid)
	}
	if strings.TrimSpace(req.Slug) == "" {
		return nil, fmt.Errorf("%w: slug is required", ErrInvalid)
	}

	cal, err := s.calendars.GetByID(ctx, req.CalendarID)
	if err != nil {
		return nil, err
	}
	if err := access.RequireCalendarOwner(owner, cal); err != nil {
		return nil, err
	}

	a := &model.Appointment{
		CalendarID: cal.ID,
		Title:      req.Title,
		Duration:   req.Duration,
		KeepOpen:   req.KeepOpen,
		Slug:       req.Slug,
	}
	for _, spec := range req.Slots {
		duration := spec.Duration
		if duration <= 0 {
			duration = req.Duration
		}
		a.Slots = append(a.Slots, model.Slot{Start: spec.Start, Duration: duration})
	}

	created, err := s.appointments.Create(ctx, a)
	if err != nil {
		return nil, err
	}
	s.logger.Info("appointment published", "owner", owner.Handle, "slug", created.Slug, "slots", len(created.Slots))
	return created, nil
}

// GetAppointment returns an appointment the owner owns.
func (s *Service) GetAppointment(ctx context.Context, owner *model.Subscriber, id string) (*model.Appointment, error) {
	a, _, err := s.ownedAppointment(ctx, owner, id)
	return a, err
}

// UpdateAppointment applies a partial update. When a slot list is given
// the slot set is replaced, except that claimed slots are retained
// verbatim whether or not the new list mentions them.
func (s *Service) UpdateAppointment(ctx context.Context, owner *model.Subscriber, id string, req model.UpdateAppointmentRequest) (*model.Appointment, error) {
	if req.Duration != nil && *req.Duration <= 0 {
		return nil, fmt.Errorf("%w: duration must be a positive number of minutes", ErrInvalid)
	}
	if _, _, err := s.ownedAppointment(ctx, owner, id); err != nil {
		return nil, err
	}
	return s.appointments.Update(ctx, id, req)
}

// DeleteAppointment removes an appointment the owner owns, cascading to
// its slots, and returns the deleted appointment.
func (s *Service) DeleteAppointment(ctx context.Context, owner *model.Subscriber, id string) (*model.Appointment, error) {
	if _, _, err := s.ownedAppointment(ctx, owner, id); err != nil {
		return nil, err
	}
	return s.appointments.Delete(ctx, id)
}

// PublicAppointment resolves an anonymous (handle, slug) pair to the
// published appointment.
func (s *Service) PublicAppointment(ctx context.Context, handle, slug string) (*model.Appointment, error) {
	return access.ResolvePublic(ctx, s.subscribers, s.appointments, handle, slug)
}

// ClaimSlot exclusively assigns an attendee to one slot of a publicly
// resolved appointment.
//
// The check-and-assign is atomic at the store layer: of N concurrent
// claims on the same slot exactly one succeeds, the rest observe
// repository.ErrSlotClaimed. When the appointment's keep_open is false the
// winning claim also discards every other unclaimed slot in the same
// transaction.
//
// The remote mirror runs after the transaction has committed, so a
// network call never holds a store transaction open. A mirror failure
// does not undo the booking: the result carries the mirror error for the
// caller to surface as a degraded success.
func (s *Service) ClaimSlot(ctx context.Context, handle, slug, slotID string, attendee model.Attendee) (*ClaimResult, error) {
	attendee.Email = strings.TrimSpace(strings.ToLower(attendee.Email))
	attendee.Name = strings.TrimSpace(attendee.Name)
	if attendee.Email == "" {
		return nil, fmt.Errorf("%w: attendee email is required", ErrInvalid)
	}
	if !isValidEmail(attendee.Email) {
		return nil, fmt.Errorf("%w: attendee email is not a valid address", ErrInvalid)
	}

	a, err := s.PublicAppointment(ctx, handle, slug)
	if err != nil {
		return nil, err
	}

	slot, err := s.appointments.ClaimSlot(ctx, a.ID, slotID, attendee, a.KeepOpen)
	if err != nil {
		return nil, err
	}
	s.logger.Info("slot claimed", "slug", a.Slug, "slot", slot.ID, "attendee", attendee.Email)

	result := &ClaimResult{Slot: slot, Attendee: attendee}

	cal, err := s.calendars.GetByID(ctx, a.CalendarID)
	if err != nil {
		// The booking is committed; a vanished calendar row only costs the
		// mirror.
		result.MirrorErr = fmt.Errorf("resolve calendar for mirror: %w", err)
		return result, nil
	}

	uid, err := s.gateway.CreateEvent(ctx, account(cal), cal.URL, a.Title, slot.Start, slot.End())
	if err != nil {
		s.logger.Error("mirror failed, booking stands", "slug", a.Slug, "slot", slot.ID, "error", err)
		result.MirrorErr = err
		return result, nil
	}
	result.RemoteEventUID = uid
	return result, nil
}

// isValidEmail checks the minimal local@domain.tld shape.
func isValidEmail(email string) bool {
	local, domain, ok := strings.Cut(email, "@")
	if !ok {
		return false
	}
	return len(local) > 0 && strings.Contains(domain, ".")
}
