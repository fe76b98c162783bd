// Package model defines the core domain types for the slot booking system.
package model

import "time"

// Tier is a subscriber's subscription rank. Ranks are ordered
// basic < plus < pro; the rank bounds how many calendars the
// subscriber may connect.
type Tier string

const (
	TierBasic Tier = "basic"
	TierPlus  Tier = "plus"
	TierPro   Tier = "pro"
)

// Subscriber is an account holder who publishes appointments.
type Subscriber struct {
	ID        string    `json:"id"`
	Handle    string    `json:"handle"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Tier      Tier      `json:"tier"`
	TZOffset  *int      `json:"tz_offset,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Calendar is a credentialed reference to one remote CalDAV account,
// owned by exactly one subscriber.
type Calendar struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	URL       string    `json:"url"`
	Username  string    `json:"user"`
	Secret    string    `json:"password"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// Appointment is an offer of one or more candidate time windows,
// reachable publicly through its slug.
type Appointment struct {
	ID         string    `json:"id"`
	CalendarID string    `json:"calendar_id"`
	Title      string    `json:"title"`
	Duration   int       `json:"duration"` // default slot length, minutes
	KeepOpen   bool      `json:"keep_open"`
	Slug       string    `json:"slug"`
	Slots      []Slot    `json:"slots"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Slot is one candidate time window within an appointment. Once an
// attendee is assigned the slot is immutable.
type Slot struct {
	ID            string    `json:"id"`
	AppointmentID string    `json:"appointment_id"`
	Start         time.Time `json:"start"`
	Duration      int       `json:"duration"` // minutes
	Attendee      *Attendee `json:"attendee,omitempty"`
}

// End returns the exclusive end of the slot's time window.
func (s *Slot) End() time.Time {
	return s.Start.Add(time.Duration(s.Duration) * time.Minute)
}

// Claimed reports whether an attendee already holds this slot.
func (s *Slot) Claimed() bool {
	return s.Attendee != nil
}

// Attendee is the party that claimed a slot. It has no lifecycle of
// its own; it is embedded in a slot once a claim succeeds.
type Attendee struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Open reports whether the appointment still accepts claims: at least
// one slot is unclaimed and, when keep_open is false, nothing has been
// claimed yet.
func (a *Appointment) Open() bool {
	claimed := 0
	for i := range a.Slots {
		if a.Slots[i].Claimed() {
			claimed++
		}
	}
	if !a.KeepOpen && claimed > 0 {
		return false
	}
	return claimed < len(a.Slots)
}

// ─── Request / response payloads ─────────────────────────────────────────────

// UpdateSubscriberRequest is the payload for a (partial) profile update.
// Nil fields are left unchanged.
type UpdateSubscriberRequest struct {
	Handle   *string `json:"handle"`
	Email    *string `json:"email"`
	Name     *string `json:"name"`
	Tier     *Tier   `json:"tier"`
	TZOffset *int    `json:"tz_offset"`
}

// CreateCalendarRequest is the payload for connecting a remote calendar.
type CreateCalendarRequest struct {
	URL      string `json:"url"`
	Username string `json:"user"`
	Secret   string `json:"password"`
	Title    string `json:"title"`
}

// UpdateCalendarRequest is the payload for a (partial) calendar update.
type UpdateCalendarRequest struct {
	URL      *string `json:"url"`
	Username *string `json:"user"`
	Secret   *string `json:"password"`
	Title    *string `json:"title"`
}

// SlotSpec describes one slot in an appointment create/update payload.
// Duration 0 means "use the appointment default".
type SlotSpec struct {
	Start    time.Time `json:"start"`
	Duration int       `json:"duration"`
}

// CreateAppointmentRequest is the payload for publishing an appointment
// with its initial slot set.
type CreateAppointmentRequest struct {
	CalendarID string     `json:"calendar_id"`
	Title      string     `json:"title"`
	Duration   int        `json:"duration"`
	KeepOpen   bool       `json:"keep_open"`
	Slug       string     `json:"slug"`
	Slots      []SlotSpec `json:"slots"`
}

// UpdateAppointmentRequest replaces appointment fields and the slot set.
// Nil scalar fields are left unchanged; a nil slot list leaves the slots
// untouched. Claimed slots survive any update regardless of the new list.
type UpdateAppointmentRequest struct {
	Title    *string     `json:"title"`
	Duration *int        `json:"duration"`
	KeepOpen *bool       `json:"keep_open"`
	Slots    *[]SlotSpec `json:"slots"`
}

// ClaimRequest is the payload an anonymous attendee submits to claim a slot.
type ClaimRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}
