// Package access answers two questions: does the acting subscriber own a
// resource, and which appointment does a public (handle, slug) pair point
// at. It holds no business rules beyond ownership.
package access

import (
	"context"
	"errors"
	"fmt"

	"slotcal/internal/model"
	"slotcal/internal/repository"
)

// ErrForbidden is returned when a resource exists but the acting
// subscriber does not own it.
var ErrForbidden = errors.New("forbidden")

// RequireCalendarOwner verifies that sub owns cal. Existence is the
// caller's concern: a missing calendar must surface the store's NotFound
// before ownership is ever considered, so non-owners cannot distinguish
// "missing" from "not yours".
func RequireCalendarOwner(sub *model.Subscriber, cal *model.Calendar) error {
	if cal.OwnerID != sub.ID {
		return fmt.Errorf("%w: calendar %s", ErrForbidden, cal.ID)
	}
	return nil
}

// SubscriberSource resolves public handles to subscribers.
type SubscriberSource interface {
	GetByHandle(ctx context.Context, handle string) (*model.Subscriber, error)
}

// AppointmentSource resolves owner-scoped slugs to appointments.
type AppointmentSource interface {
	GetBySlug(ctx context.Context, ownerID, slug string) (*model.Appointment, error)
}

// ResolvePublic resolves an anonymous (handle, slug) pair to the published
// appointment. Both a missing handle and a missing slug collapse into the
// same NotFound so the public surface never reveals which half failed.
func ResolvePublic(ctx context.Context, subs SubscriberSource, appts AppointmentSource, handle, slug string) (*model.Appointment, error) {
	owner, err := subs.GetByHandle(ctx, handle)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("resolve handle: %w", err)
	}
	a, err := appts.GetBySlug(ctx, owner.ID, slug)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("resolve slug: %w", err)
	}
	return a, nil
}
