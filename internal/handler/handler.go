// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the booking engine.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"slotcal/internal/access"
	"slotcal/internal/gateway"
	"slotcal/internal/model"
	"slotcal/internal/policy"
	"slotcal/internal/repository"
	"slotcal/internal/service"
)

// Handler holds all HTTP handlers for the booking API.
type Handler struct {
	svc *service.Service
}

// New constructs a Handler.
func New(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg})
}

func decodeJSON(r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// writeDomainError maps engine errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalid):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, access.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, repository.ErrSlotClaimed):
		writeError(w, http.StatusConflict, "slot is no longer available")
	case errors.Is(err, repository.ErrCalendarLimit):
		writeError(w, http.StatusConflict, "calendar limit reached for your subscription tier")
	case errors.Is(err, repository.ErrSlugTaken):
		writeError(w, http.StatusConflict, "appointment slug already in use")
	case errors.Is(err, policy.ErrUnknownTier):
		writeError(w, http.StatusInternalServerError, "subscription tier is not configured")
	case errors.Is(err, gateway.ErrRemoteUnavailable):
		writeError(w, http.StatusBadGateway, "remote calendar unavailable")
	case errors.Is(err, gateway.ErrRemoteProtocol):
		writeError(w, http.StatusBadGateway, "remote calendar returned an unexpected response")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func parseTimeParam(r *http.Request, key string) (time.Time, bool) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ─── Subscriber profile ───────────────────────────────────────────────────────

// Me handles GET /me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Subscriber(r.Context()))
}

// UpdateMe handles PUT /me with a partial profile update.
func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateSubscriberRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	sub, err := h.svc.UpdateProfile(r.Context(), Subscriber(r.Context()).ID, req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

// ─── Calendars ────────────────────────────────────────────────────────────────

// CreateCalendar handles POST /calendars
func (h *Handler) CreateCalendar(w http.ResponseWriter, r *http.Request) {
	var req model.CreateCalendarRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	cal, err := h.svc.CreateCalendar(r.Context(), Subscriber(r.Context()), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, cal)
}

// ListMyCalendars handles GET /me/calendars
func (h *Handler) ListMyCalendars(w http.ResponseWriter, r *http.Request) {
	cals, err := h.svc.ListCalendars(r.Context(), Subscriber(r.Context()))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if cals == nil {
		cals = []model.Calendar{}
	}
	writeJSON(w, http.StatusOK, cals)
}

// GetCalendar handles GET /calendars/{id}
func (h *Handler) GetCalendar(w http.ResponseWriter, r *http.Request) {
	cal, err := h.svc.GetCalendar(r.Context(), Subscriber(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cal)
}

// UpdateCalendar handles PUT /calendars/{id} with a partial update.
func (h *Handler) UpdateCalendar(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateCalendarRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	cal, err := h.svc.UpdateCalendar(r.Context(), Subscriber(r.Context()), chi.URLParam(r, "id"), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cal)
}

// DeleteCalendar handles DELETE /calendars/{id} and returns the deleted row.
func (h *Handler) DeleteCalendar(w http.ResponseWriter, r *http.Request) {
	cal, err := h.svc.DeleteCalendar(r.Context(), Subscriber(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cal)
}

// ─── Remote calendar pass-throughs ────────────────────────────────────────────

// DiscoverRemoteCalendars handles GET /calendars/{id}/discover
func (h *Handler) DiscoverRemoteCalendars(w http.ResponseWriter, r *http.Request) {
	refs, err := h.svc.DiscoverRemoteCalendars(r.Context(), Subscriber(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if refs == nil {
		refs = []gateway.CalendarRef{}
	}
	writeJSON(w, http.StatusOK, refs)
}

// ListRemoteEvents handles GET /calendars/{id}/events?from=&to=[&calendar=]
func (h *Handler) ListRemoteEvents(w http.ResponseWriter, r *http.Request) {
	from, ok := parseTimeParam(r, "from")
	if !ok {
		writeError(w, http.StatusBadRequest, "from must be an RFC 3339 timestamp")
		return
	}
	to, ok := parseTimeParam(r, "to")
	if !ok {
		writeError(w, http.StatusBadRequest, "to must be an RFC 3339 timestamp")
		return
	}
	events, err := h.svc.ListRemoteEvents(
		r.Context(), Subscriber(r.Context()), chi.URLParam(r, "id"),
		r.URL.Query().Get("calendar"), from, to,
	)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if events == nil {
		events = []gateway.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

type createRemoteEventRequest struct {
	Title string    `json:"title"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// CreateRemoteEvent handles POST /calendars/{id}/events
func (h *Handler) CreateRemoteEvent(w http.ResponseWriter, r *http.Request) {
	var req createRemoteEventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if !req.End.After(req.Start) {
		writeError(w, http.StatusBadRequest, "end must be after start")
		return
	}
	uid, err := h.svc.CreateRemoteEvent(
		r.Context(), Subscriber(r.Context()), chi.URLParam(r, "id"),
		req.Title, req.Start, req.End,
	)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"uid": uid})
}

// DeleteRemoteEvents handles DELETE /calendars/{id}/events?from=[&to=]
func (h *Handler) DeleteRemoteEvents(w http.ResponseWriter, r *http.Request) {
	from, ok := parseTimeParam(r, "from")
	if !ok {
		writeError(w, http.StatusBadRequest, "from must be an RFC 3339 timestamp")
		return
	}
	var to *time.Time
	if t, ok := parseTimeParam(r, "to"); ok {
		to = &t
	}
	count, err := h.svc.DeleteRemoteEvents(
		r.Context(), Subscriber(r.Context()), chi.URLParam(r, "id"), from, to,
	)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": count})
}

// ─── Appointments ─────────────────────────────────────────────────────────────

// CreateAppointment handles POST /appointments
func (h *Handler) CreateAppointment(w http.ResponseWriter, r *http.Request) {
	var req model.CreateAppointmentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	a, err := h.svc.CreateAppointment(r.Context(), Subscriber(r.Context()), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// GetAppointment handles GET /appointments/{id}
func (h *Handler) GetAppointment(w http.ResponseWriter, r *http.Request) {
	a, err := h.svc.GetAppointment(r.Context(), Subscriber(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// UpdateAppointment handles PUT /appointments/{id}, a partial update with
// slot-set replacement.
func (h *Handler) UpdateAppointment(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateAppointmentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	a, err := h.svc.UpdateAppointment(r.Context(), Subscriber(r.Context()), chi.URLParam(r, "id"), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// DeleteAppointment handles DELETE /appointments/{id} and returns the
// deleted appointment.
func (h *Handler) DeleteAppointment(w http.ResponseWriter, r *http.Request) {
	a, err := h.svc.DeleteAppointment(r.Context(), Subscriber(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// ─── Public surface (anonymous) ───────────────────────────────────────────────

type publicSlot struct {
	ID       string    `json:"id"`
	Start    time.Time `json:"start"`
	Duration int       `json:"duration"`
	Claimed  bool      `json:"claimed"`
}

type publicAppointment struct {
	Title    string       `json:"title"`
	Duration int          `json:"duration"`
	KeepOpen bool         `json:"keep_open"`
	Slug     string       `json:"slug"`
	Open     bool         `json:"open"`
	Slots    []publicSlot `json:"slots"`
}

// PublicAppointment handles GET /p/{handle}/{slug}. Attendee identities
// are not exposed on the public surface, only claim state.
func (h *Handler) PublicAppointment(w http.ResponseWriter, r *http.Request) {
	a, err := h.svc.PublicAppointment(r.Context(), chi.URLParam(r, "handle"), chi.URLParam(r, "slug"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	view := publicAppointment{
		Title:    a.Title,
		Duration: a.Duration,
		KeepOpen: a.KeepOpen,
		Slug:     a.Slug,
		Open:     a.Open(),
		Slots:    make([]publicSlot, 0, len(a.Slots)),
	}
	for _, s := range a.Slots {
		view.Slots = append(view.Slots, publicSlot{
			ID:       s.ID,
			Start:    s.Start,
			Duration: s.Duration,
			Claimed:  s.Claimed(),
		})
	}
	writeJSON(w, http.StatusOK, view)
}

type claimResponse struct {
	Attendee       model.Attendee `json:"attendee"`
	Slot           *model.Slot    `json:"slot"`
	Mirrored       bool           `json:"mirrored"`
	MirrorWarning  string         `json:"mirror_warning,omitempty"`
	RemoteEventUID string         `json:"remote_event_uid,omitempty"`
}

// ClaimSlot handles POST /p/{handle}/{slug}/slots/{slotID}/claim.
//
// A booking whose remote mirror failed is still a created booking: the
// response is 201 with mirrored=false and a warning, never an error.
func (h *Handler) ClaimSlot(w http.ResponseWriter, r *http.Request) {
	var req model.ClaimRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	result, err := h.svc.ClaimSlot(
		r.Context(),
		chi.URLParam(r, "handle"), chi.URLParam(r, "slug"), chi.URLParam(r, "slotID"),
		model.Attendee{Email: req.Email, Name: req.Name},
	)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := claimResponse{
		Attendee:       result.Attendee,
		Slot:           result.Slot,
		Mirrored:       result.Mirrored(),
		RemoteEventUID: result.RemoteEventUID,
	}
	if result.MirrorErr != nil {
		resp.MirrorWarning = "booking recorded, but the remote calendar mirror failed: " + result.MirrorErr.Error()
	}
	writeJSON(w, http.StatusCreated, resp)
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
