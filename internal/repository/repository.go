// Package repository implements all database queries for the slot booking
// system. It uses pgx directly (no ORM) for transparency and performance.
package repository

import "errors"

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// ErrSlotClaimed is returned when a slot already carries an attendee.
var ErrSlotClaimed = errors.New("slot already claimed")

// ErrCalendarLimit is returned when a subscriber is at their tier's
// calendar limit.
var ErrCalendarLimit = errors.New("calendar limit reached for subscription tier")

// ErrSlugTaken is returned when an appointment slug is already in use.
var ErrSlugTaken = errors.New("appointment slug already in use")
