package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"slotcal/internal/access"
	"slotcal/internal/gateway"
	"slotcal/internal/model"
	"slotcal/internal/policy"
	"slotcal/internal/repository"
)

// ─── In-memory fakes ──────────────────────────────────────────────────────────

type fakeSubscribers struct {
	mu   sync.Mutex
	subs map[string]*model.Subscriber
}

func (f *fakeSubscribers) GetByID(_ context.Context, id string) (*model.Subscriber, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.subs[id]; ok {
		return s, nil
	}
	return nil, repository.ErrNotFound
}

func (f *fakeSubscribers) GetByHandle(_ context.Context, handle string) (*model.Subscriber, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.subs {
		if s.Handle == handle {
			return s, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeSubscribers) Update(_ context.Context, id string, req model.UpdateSubscriberRequest) (*model.Subscriber, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.subs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if req.Handle != nil {
		s.Handle = *req.Handle
	}
	if req.Email != nil {
		s.Email = *req.Email
	}
	if req.Name != nil {
		s.Name = *req.Name
	}
	if req.Tier != nil {
		s.Tier = *req.Tier
	}
	if req.TZOffset != nil {
		s.TZOffset = req.TZOffset
	}
	return s, nil
}

type fakeCalendars struct {
	mu   sync.Mutex
	cals map[string]*model.Calendar
}

func (f *fakeCalendars) CreateWithLimit(_ context.Context, ownerID string, req model.CreateCalendarRequest, limit int) (*model.Calendar, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if limit >= 0 {
		count := 0
		for _, c := range f.cals {
			if c.OwnerID == ownerID {
				count++
			}
		}
		if count >= limit {
			return nil, repository.ErrCalendarLimit
		}
	}
	cal := &model.Calendar{
		ID:       uuid.New().String(),
		OwnerID:  ownerID,
		URL:      req.URL,
		Username: req.Username,
		Secret:   req.Secret,
		Title:    req.Title,
	}
	f.cals[cal.ID] = cal
	return cal, nil
}

func (f *fakeCalendars) GetByID(_ context.Context, id string) (*model.Calendar, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.cals[id]; ok {
		return c, nil
	}
	return nil, repository.ErrNotFound
}

func (f *fakeCalendars) ListByOwner(_ context.Context, ownerID string) ([]model.Calendar, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Calendar
	for _, c := range f.cals {
		if c.OwnerID == ownerID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeCalendars) Update(_ context.Context, id string, req model.UpdateCalendarRequest) (*model.Calendar, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.cals[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if req.URL != nil {
		c.URL = *req.URL
	}
	if req.Username != nil {
		c.Username = *req.Username
	}
	if req.Secret != nil {
		c.Secret = *req.Secret
	}
	if req.Title != nil {
		c.Title = *req.Title
	}
	return c, nil
}

func (f *fakeCalendars) Delete(_ context.Context, id string) (*model.Calendar, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.cals[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	delete(f.cals, id)
	return c, nil
}

type fakeAppointments struct {
	mu    sync.Mutex
	appts map[string]*model.Appointment
}

func (f *fakeAppointments) Create(_ context.Context, a *model.Appointment) (*model.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a.ID = uuid.New().String()
	for i := range a.Slots {
		a.Slots[i].ID = uuid.New().String()
		a.Slots[i].AppointmentID = a.ID
	}
	f.appts[a.ID] = a
	return a, nil
}

func (f *fakeAppointments) GetByID(_ context.Context, id string) (*model.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.appts[id]; ok {
		cp := *a
		cp.Slots = append([]model.Slot(nil), a.Slots...)
		return &cp, nil
	}
	return nil, repository.ErrNotFound
}

func (f *fakeAppointments) GetBySlug(ctx context.Context, ownerID, slug string) (*model.Appointment, error) {
	f.mu.Lock()
	var id string
	for _, a := range f.appts {
		if a.Slug == slug {
			id = a.ID
		}
	}
	f.mu.Unlock()
	if id == "" {
		return nil, repository.ErrNotFound
	}
	return f.GetByID(ctx, id)
}

func (f *fakeAppointments) Update(_ context.Context, id string, req model.UpdateAppointmentRequest) (*model.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.appts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if req.Title != nil {
		a.Title = *req.Title
	}
	if req.Duration != nil {
		a.Duration = *req.Duration
	}
	if req.KeepOpen != nil {
		a.KeepOpen = *req.KeepOpen
	}
	if req.Slots != nil {
		var kept []model.Slot
		for _, s := range a.Slots {
			if s.Claimed() {
				kept = append(kept, s)
			}
		}
		for _, spec := range *req.Slots {
			duration := spec.Duration
			if duration <= 0 {
				duration = a.Duration
			}
			kept = append(kept, model.Slot{
				ID:            uuid.New().String(),
				AppointmentID: id,
				Start:         spec.Start,
				Duration:      duration,
			})
		}
		a.Slots = kept
	}
	return a, nil
}

func (f *fakeAppointments) Delete(_ context.Context, id string) (*model.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.appts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	delete(f.appts, id)
	return a, nil
}

func (f *fakeAppointments) ClaimSlot(_ context.Context, appointmentID, slotID string, attendee model.Attendee, keepOpen bool) (*model.Slot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.appts[appointmentID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	for i := range a.Slots {
		if a.Slots[i].ID != slotID {
			continue
		}
		if a.Slots[i].Claimed() {
			return nil, repository.ErrSlotClaimed
		}
		a.Slots[i].Attendee = &attendee
		claimed := a.Slots[i]
		if !keepOpen {
			var kept []model.Slot
			for _, s := range a.Slots {
				if s.Claimed() {
					kept = append(kept, s)
				}
			}
			a.Slots = kept
		}
		return &claimed, nil
	}
	return nil, repository.ErrNotFound
}

type fakeGateway struct {
	mu          sync.Mutex
	createCalls int
	failWith    error
	lastTitle   string
	lastStart   time.Time
	lastEnd     time.Time
}

func (f *fakeGateway) DiscoverCalendars(context.Context, gateway.Account) ([]gateway.CalendarRef, error) {
	return []gateway.CalendarRef{{Name: "Work", URL: "https://cal.test/work/"}}, nil
}

func (f *fakeGateway) ListEvents(context.Context, gateway.Account, string, time.Time, time.Time) ([]gateway.Event, error) {
	return nil, nil
}

func (f *fakeGateway) CreateEvent(_ context.Context, _ gateway.Account, _ string, title string, start, end time.Time) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.failWith != nil {
		return "", f.failWith
	}
	f.lastTitle = title
	f.lastStart = start
	f.lastEnd = end
	return uuid.New().String(), nil
}

func (f *fakeGateway) DeleteEvents(context.Context, gateway.Account, string, time.Time, *time.Time) (int, error) {
	return 0, nil
}

// ─── Fixtures ─────────────────────────────────────────────────────────────────

type fixture struct {
	svc     *Service
	gateway *fakeGateway
	owner   *model.Subscriber
	other   *model.Subscriber
	cal     *model.Calendar
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	subs := &fakeSubscribers{subs: map[string]*model.Subscriber{}}
	cals := &fakeCalendars{cals: map[string]*model.Calendar{}}
	appts := &fakeAppointments{appts: map[string]*model.Appointment{}}
	gw := &fakeGateway{}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := New(subs, cals, appts, gw, policy.Default(), logger)

	owner := &model.Subscriber{ID: uuid.New().String(), Handle: "diana", Tier: model.TierBasic}
	other := &model.Subscriber{ID: uuid.New().String(), Handle: "steve", Tier: model.TierBasic}
	subs.subs[owner.ID] = owner
	subs.subs[other.ID] = other

	cal, err := svc.CreateCalendar(context.Background(), owner, model.CreateCalendarRequest{
		URL: "https://caldav.test/", Username: "ww1984", Secret: "d14n4",
	})
	if err != nil {
		t.Fatalf("create calendar: %v", err)
	}
	return &fixture{svc: svc, gateway: gw, owner: owner, other: other, cal: cal}
}

func (fx *fixture) createAppointment(t *testing.T, keepOpen bool, slots ...model.SlotSpec) *model.Appointment {
	t.Helper()
	a, err := fx.svc.CreateAppointment(context.Background(), fx.owner, model.CreateAppointmentRequest{
		CalendarID: fx.cal.ID,
		Title:      "Testing new application feature",
		Duration:   180,
		KeepOpen:   keepOpen,
		Slug:       "sodiurw089hsihdef",
		Slots:      slots,
	})
	if err != nil {
		t.Fatalf("create appointment: %v", err)
	}
	return a
}

// ─── Appointment lifecycle ────────────────────────────────────────────────────

func TestCreateAppointmentRoundTrip(t *testing.T) {
	fx := newFixture(t)
	base := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)

	a := fx.createAppointment(t, true,
		model.SlotSpec{Start: base},
		model.SlotSpec{Start: base.AddDate(0, 0, 1), Duration: 15},
		model.SlotSpec{Start: base.AddDate(0, 0, 2), Duration: 275},
	)

	got, err := fx.svc.GetAppointment(context.Background(), fx.owner, a.ID)
	if err != nil {
		t.Fatalf("get appointment: %v", err)
	}
	if len(got.Slots) != 3 {
		t.Fatalf("got %d slots, want 3", len(got.Slots))
	}
	wantDurations := []int{180, 15, 275} // first slot inherits the appointment default
	for i, s := range got.Slots {
		if !s.Start.Equal(base.AddDate(0, 0, i)) {
			t.Errorf("slot %d start = %v, want %v (input order must be preserved)", i, s.Start, base.AddDate(0, 0, i))
		}
		if s.Duration != wantDurations[i] {
			t.Errorf("slot %d duration = %d, want %d", i, s.Duration, wantDurations[i])
		}
		if s.Claimed() {
			t.Errorf("slot %d claimed on a fresh appointment", i)
		}
	}
}

func TestCreateAppointmentMissingCalendar(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.svc.CreateAppointment(context.Background(), fx.owner, model.CreateAppointmentRequest{
		CalendarID: uuid.New().String(), Title: "x", Duration: 30, Slug: "xyz",
	})
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing calendar, got %v", err)
	}
}

func TestCreateAppointmentForeignCalendar(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.svc.CreateAppointment(context.Background(), fx.other, model.CreateAppointmentRequest{
		CalendarID: fx.cal.ID, Title: "x", Duration: 30, Slug: "xyz",
	})
	if !errors.Is(err, access.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for foreign calendar, got %v", err)
	}
}

// A missing appointment id is NotFound for everyone, owner or not; only an
// existing appointment owned by someone else is Forbidden.
func TestOwnershipVersusExistence(t *testing.T) {
	fx := newFixture(t)
	a := fx.createAppointment(t, true, model.SlotSpec{Start: time.Now().Add(24 * time.Hour)})

	newTitle := "hijacked"
	if _, err := fx.svc.UpdateAppointment(context.Background(), fx.other, a.ID, model.UpdateAppointmentRequest{Title: &newTitle}); !errors.Is(err, access.ErrForbidden) {
		t.Fatalf("update by non-owner: expected ErrForbidden, got %v", err)
	}
	if _, err := fx.svc.DeleteAppointment(context.Background(), fx.other, a.ID); !errors.Is(err, access.ErrForbidden) {
		t.Fatalf("delete by non-owner: expected ErrForbidden, got %v", err)
	}
	missing := uuid.New().String()
	if _, err := fx.svc.UpdateAppointment(context.Background(), fx.other, missing, model.UpdateAppointmentRequest{Title: &newTitle}); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("update of missing id: expected ErrNotFound, got %v", err)
	}
	if _, err := fx.svc.DeleteAppointment(context.Background(), fx.other, missing); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("delete of missing id: expected ErrNotFound, got %v", err)
	}
}

func TestUpdatePreservesClaimedSlot(t *testing.T) {
	fx := newFixture(t)
	base := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	a := fx.createAppointment(t, true,
		model.SlotSpec{Start: base},
		model.SlotSpec{Start: base.AddDate(0, 0, 1)},
	)

	claimed := a.Slots[0]
	if _, err := fx.svc.ClaimSlot(context.Background(), "diana", a.Slug, claimed.ID, model.Attendee{Email: "person@test.org", Name: "John Doe"}); err != nil {
		t.Fatalf("claim: %v", err)
	}

	// The new slot list omits the claimed slot entirely.
	newSlots := []model.SlotSpec{{Start: base.AddDate(0, 0, 5)}}
	updated, err := fx.svc.UpdateAppointment(context.Background(), fx.owner, a.ID, model.UpdateAppointmentRequest{Slots: &newSlots})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	var found *model.Slot
	for i := range updated.Slots {
		if updated.Slots[i].ID == claimed.ID {
			found = &updated.Slots[i]
		}
	}
	if found == nil {
		t.Fatal("claimed slot was dropped by the update")
	}
	if found.Attendee == nil || found.Attendee.Email != "person@test.org" {
		t.Fatalf("claimed slot lost its attendee: %+v", found.Attendee)
	}
	if len(updated.Slots) != 2 {
		t.Fatalf("got %d slots, want claimed + 1 new", len(updated.Slots))
	}
}

func TestPartialUpdateLeavesFieldsUnchanged(t *testing.T) {
	fx := newFixture(t)
	a := fx.createAppointment(t, true, model.SlotSpec{Start: time.Now().Add(24 * time.Hour)})

	newTitle := "Renamed"
	updated, err := fx.svc.UpdateAppointment(context.Background(), fx.owner, a.ID, model.UpdateAppointmentRequest{Title: &newTitle})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Title != "Renamed" {
		t.Errorf("title = %q", updated.Title)
	}
	if updated.Duration != 180 || !updated.KeepOpen || len(updated.Slots) != 1 {
		t.Errorf("unspecified fields changed: %+v", updated)
	}
}

// ─── Claims ───────────────────────────────────────────────────────────────────

func TestClaimSlotScenario(t *testing.T) {
	fx := newFixture(t)
	base := time.Now().UTC().Truncate(time.Minute)
	a := fx.createAppointment(t, true,
		model.SlotSpec{Start: base.AddDate(0, 0, 1)},
		model.SlotSpec{Start: base.AddDate(0, 0, 2), Duration: 15},
		model.SlotSpec{Start: base.AddDate(0, 0, 3), Duration: 275},
	)

	target := a.Slots[1]
	result, err := fx.svc.ClaimSlot(context.Background(), "diana", a.Slug, target.ID,
		model.Attendee{Email: "person@test.org", Name: "John Doe"})
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if result.Attendee.Email != "person@test.org" || result.Attendee.Name != "John Doe" {
		t.Errorf("attendee = %+v", result.Attendee)
	}
	if !result.Mirrored() {
		t.Errorf("mirror unexpectedly failed: %v", result.MirrorErr)
	}
	if result.RemoteEventUID == "" {
		t.Error("missing remote event uid")
	}

	// Mirror carried the slot's real window and the appointment title.
	if fx.gateway.lastTitle != a.Title {
		t.Errorf("mirrored title = %q, want %q", fx.gateway.lastTitle, a.Title)
	}
	if got := fx.gateway.lastEnd.Sub(fx.gateway.lastStart); got != 15*time.Minute {
		t.Errorf("mirrored window = %v, want 15m", got)
	}

	// Re-claiming the same slot is a conflict, whoever asks.
	_, err = fx.svc.ClaimSlot(context.Background(), "diana", a.Slug, target.ID,
		model.Attendee{Email: "late@test.org", Name: "Late"})
	if !errors.Is(err, repository.ErrSlotClaimed) {
		t.Fatalf("expected ErrSlotClaimed, got %v", err)
	}

	// keep_open=true: the sibling slots are untouched.
	got, err := fx.svc.PublicAppointment(context.Background(), "diana", a.Slug)
	if err != nil {
		t.Fatalf("public get: %v", err)
	}
	if len(got.Slots) != 3 {
		t.Fatalf("got %d slots, want 3", len(got.Slots))
	}
	for _, s := range got.Slots {
		if s.ID != target.ID && s.Claimed() {
			t.Errorf("sibling slot %s claimed", s.ID)
		}
	}
}

func TestClaimClosesAppointmentWhenKeepOpenFalse(t *testing.T) {
	fx := newFixture(t)
	base := time.Now().UTC()
	a := fx.createAppointment(t, false,
		model.SlotSpec{Start: base.AddDate(0, 0, 1)},
		model.SlotSpec{Start: base.AddDate(0, 0, 2)},
		model.SlotSpec{Start: base.AddDate(0, 0, 3)},
	)

	target := a.Slots[1]
	if _, err := fx.svc.ClaimSlot(context.Background(), "diana", a.Slug, target.ID,
		model.Attendee{Email: "person@test.org", Name: "John Doe"}); err != nil {
		t.Fatalf("claim: %v", err)
	}

	got, err := fx.svc.PublicAppointment(context.Background(), "diana", a.Slug)
	if err != nil {
		t.Fatalf("public get: %v", err)
	}
	if len(got.Slots) != 1 {
		t.Fatalf("got %d slots, want only the claimed one", len(got.Slots))
	}
	if got.Slots[0].ID != target.ID || !got.Slots[0].Claimed() {
		t.Errorf("surviving slot = %+v", got.Slots[0])
	}
	if got.Open() {
		t.Error("appointment still open after closing claim")
	}
}

func TestClaimMirrorFailureIsDegradedSuccess(t *testing.T) {
	fx := newFixture(t)
	fx.gateway.failWith = gateway.ErrRemoteUnavailable
	a := fx.createAppointment(t, true, model.SlotSpec{Start: time.Now().Add(24 * time.Hour)})

	result, err := fx.svc.ClaimSlot(context.Background(), "diana", a.Slug, a.Slots[0].ID,
		model.Attendee{Email: "person@test.org", Name: "John Doe"})
	if err != nil {
		t.Fatalf("claim must not fail on mirror errors, got %v", err)
	}
	if result.Mirrored() {
		t.Fatal("result claims to be mirrored despite gateway failure")
	}
	if !errors.Is(result.MirrorErr, gateway.ErrRemoteUnavailable) {
		t.Fatalf("mirror error = %v", result.MirrorErr)
	}

	// The booking itself stands.
	got, err := fx.svc.PublicAppointment(context.Background(), "diana", a.Slug)
	if err != nil {
		t.Fatalf("public get: %v", err)
	}
	if !got.Slots[0].Claimed() {
		t.Error("booking rolled back after mirror failure")
	}
}

func TestConcurrentClaimsExactlyOneWins(t *testing.T) {
	fx := newFixture(t)
	a := fx.createAppointment(t, true, model.SlotSpec{Start: time.Now().Add(24 * time.Hour)})
	slotID := a.Slots[0].ID

	const n = 32
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = fx.svc.ClaimSlot(context.Background(), "diana", a.Slug, slotID,
				model.Attendee{Email: fmt.Sprintf("racer-%d@test.org", i), Name: "Racer"})
		}(i)
	}
	wg.Wait()

	wins, conflicts := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, repository.ErrSlotClaimed):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 || conflicts != n-1 {
		t.Fatalf("wins = %d, conflicts = %d; want exactly 1 and %d", wins, conflicts, n-1)
	}
	if fx.gateway.createCalls != 1 {
		t.Fatalf("gateway saw %d create calls, want exactly 1", fx.gateway.createCalls)
	}
}

func TestClaimValidation(t *testing.T) {
	fx := newFixture(t)
	a := fx.createAppointment(t, true, model.SlotSpec{Start: time.Now().Add(24 * time.Hour)})

	for _, email := range []string{"", "not-an-email", "missing@tld"} {
		_, err := fx.svc.ClaimSlot(context.Background(), "diana", a.Slug, a.Slots[0].ID, model.Attendee{Email: email})
		if !errors.Is(err, ErrInvalid) {
			t.Errorf("email %q: expected ErrInvalid, got %v", email, err)
		}
	}
}

// ─── Calendars and policy ─────────────────────────────────────────────────────

func TestCalendarLimitEnforced(t *testing.T) {
	fx := newFixture(t)

	// basic allows 3; the fixture already created one.
	for i := 0; i < 2; i++ {
		if _, err := fx.svc.CreateCalendar(context.Background(), fx.owner, model.CreateCalendarRequest{URL: "https://caldav.test/"}); err != nil {
			t.Fatalf("create calendar %d: %v", i, err)
		}
	}
	_, err := fx.svc.CreateCalendar(context.Background(), fx.owner, model.CreateCalendarRequest{URL: "https://caldav.test/"})
	if !errors.Is(err, repository.ErrCalendarLimit) {
		t.Fatalf("expected ErrCalendarLimit, got %v", err)
	}
}

func TestUnknownTierIsConfigurationError(t *testing.T) {
	fx := newFixture(t)
	fx.owner.Tier = "platinum"
	_, err := fx.svc.CreateCalendar(context.Background(), fx.owner, model.CreateCalendarRequest{URL: "https://caldav.test/"})
	if !errors.Is(err, policy.ErrUnknownTier) {
		t.Fatalf("expected ErrUnknownTier, got %v", err)
	}
}

// Downgrades are not retroactive: excess calendars survive, creation stops.
func TestTierDowngradeKeepsExistingCalendars(t *testing.T) {
	fx := newFixture(t)
	fx.owner.Tier = model.TierPlus
	for i := 0; i < 4; i++ {
		if _, err := fx.svc.CreateCalendar(context.Background(), fx.owner, model.CreateCalendarRequest{URL: "https://caldav.test/"}); err != nil {
			t.Fatalf("create calendar %d: %v", i, err)
		}
	}

	fx.owner.Tier = model.TierBasic
	cals, err := fx.svc.ListCalendars(context.Background(), fx.owner)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(cals) != 5 {
		t.Fatalf("downgrade removed calendars: %d left, want 5", len(cals))
	}
	if _, err := fx.svc.CreateCalendar(context.Background(), fx.owner, model.CreateCalendarRequest{URL: "https://caldav.test/"}); !errors.Is(err, repository.ErrCalendarLimit) {
		t.Fatalf("expected ErrCalendarLimit after downgrade, got %v", err)
	}
}

func TestForeignCalendarAccess(t *testing.T) {
	fx := newFixture(t)

	if _, err := fx.svc.GetCalendar(context.Background(), fx.other, fx.cal.ID); !errors.Is(err, access.ErrForbidden) {
		t.Fatalf("get: expected ErrForbidden, got %v", err)
	}
	u := "https://elsewhere.test/"
	if _, err := fx.svc.UpdateCalendar(context.Background(), fx.other, fx.cal.ID, model.UpdateCalendarRequest{URL: &u}); !errors.Is(err, access.ErrForbidden) {
		t.Fatalf("update: expected ErrForbidden, got %v", err)
	}
	if _, err := fx.svc.DeleteCalendar(context.Background(), fx.other, fx.cal.ID); !errors.Is(err, access.ErrForbidden) {
		t.Fatalf("delete: expected ErrForbidden, got %v", err)
	}
	if _, err := fx.svc.GetCalendar(context.Background(), fx.other, uuid.New().String()); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("missing id: expected ErrNotFound, got %v", err)
	}
}
