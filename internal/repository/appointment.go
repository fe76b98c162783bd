package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"slotcal/internal/model"
)

// AppointmentRepository handles persistence for appointments and their slots.
type AppointmentRepository struct {
	db *pgxpool.Pool
}

// NewAppointmentRepository constructs an AppointmentRepository.
func NewAppointmentRepository(db *pgxpool.Pool) *AppointmentRepository {
	return &AppointmentRepository{db: db}
}

const appointmentCols = `id, calendar_id, title, duration_minutes, keep_open, slug, created_at, updated_at`

func scanAppointment(row pgx.Row) (*model.Appointment, error) {
	var a model.Appointment
	err := row.Scan(&a.ID, &a.CalendarID, &a.Title, &a.Duration, &a.KeepOpen, &a.Slug, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan appointment: %w", err)
	}
	return &a, nil
}

// Create inserts an appointment together with its initial slot set, in the
// order given. Duplicate start times are allowed and independently claimable.
func (r *AppointmentRepository) Create(ctx context.Context, a *model.Appointment) (*model.Appointment, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	a.ID = uuid.New().String()
	a.CreatedAt = time.Now().UTC()
	a.UpdatedAt = a.CreatedAt

	var taken bool
	err = tx.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM appointments WHERE slug = $1)`, a.Slug,
	).Scan(&taken)
	if err != nil {
		return nil, fmt.Errorf("check slug: %w", err)
	}
	if taken {
		err = ErrSlugTaken
		return nil, err
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO appointments (id, calendar_id, title, duration_minutes, keep_open, slug, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.CalendarID, a.Title, a.Duration, a.KeepOpen, a.Slug, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert appointment: %w", err)
	}

	for i := range a.Slots {
		s := &a.Slots[i]
		s.ID = uuid.New().String()
		s.AppointmentID = a.ID
		if err = insertSlot(ctx, tx, s, i); err != nil {
			return nil, err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return a, nil
}

func insertSlot(ctx context.Context, tx pgx.Tx, s *model.Slot, position int) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO slots (id, appointment_id, start_at, duration_minutes, position)
		 VALUES ($1, $2, $3, $4, $5)`,
		s.ID, s.AppointmentID, s.Start, s.Duration, position,
	)
	if err != nil {
		return fmt.Errorf("insert slot: %w", err)
	}
	return nil
}

func (r *AppointmentRepository) loadSlots(ctx context.Context, a *model.Appointment) error {
	rows, err := r.db.Query(ctx,
		`SELECT id, appointment_id, start_at, duration_minutes, attendee_email, attendee_name
		 FROM slots
		 WHERE appointment_id = $1
		 ORDER BY position ASC`,
		a.ID,
	)
	if err != nil {
		return fmt.Errorf("list slots: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s model.Slot
		var email, name *string
		if err := rows.Scan(&s.ID, &s.AppointmentID, &s.Start, &s.Duration, &email, &name); err != nil {
			return fmt.Errorf("scan slot: %w", err)
		}
		if email != nil {
			s.Attendee = &model.Attendee{Email: *email}
			if name != nil {
				s.Attendee.Name = *name
			}
		}
		a.Slots = append(a.Slots, s)
	}
	return rows.Err()
}

// GetByID returns an appointment with its slots, or ErrNotFound.
func (r *AppointmentRepository) GetByID(ctx context.Context, id string) (*model.Appointment, error) {
	a, err := scanAppointment(r.db.QueryRow(ctx,
		`SELECT `+appointmentCols+` FROM appointments WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	if err := r.loadSlots(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// GetBySlug returns the appointment published under (ownerID, slug), with
// its slots, or ErrNotFound. The slug is only resolved within the owner's
// calendars so a handle/slug pair never leaks another subscriber's data.
func (r *AppointmentRepository) GetBySlug(ctx context.Context, ownerID, slug string) (*model.Appointment, error) {
	a, err := scanAppointment(r.db.QueryRow(ctx,
		`SELECT a.id, a.calendar_id, a.title, a.duration_minutes, a.keep_open, a.slug, a.created_at, a.updated_at
		 FROM appointments a
		 JOIN calendars c ON c.id = a.calendar_id
		 WHERE c.owner_id = $1 AND a.slug = $2`,
		ownerID, slug))
	if err != nil {
		return nil, err
	}
	if err := r.loadSlots(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Update applies a partial update to the appointment fields and, when a new
// slot list is given, replaces the slot set. Slots that already carry an
// attendee are immutable and survive the replacement no matter what the new
// list contains; only unclaimed slots are discarded and re-created.
func (r *AppointmentRepository) Update(ctx context.Context, id string, req model.UpdateAppointmentRequest) (*model.Appointment, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var defaultDuration int
	err = tx.QueryRow(ctx,
		`UPDATE appointments
		 SET title            = COALESCE($2, title),
		     duration_minutes = COALESCE($3, duration_minutes),
		     keep_open        = COALESCE($4, keep_open),
		     updated_at       = NOW()
		 WHERE id = $1
		 RETURNING duration_minutes`,
		id, req.Title, req.Duration, req.KeepOpen,
	).Scan(&defaultDuration)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update appointment: %w", err)
	}

	if req.Slots != nil {
		// Claimed slots are kept verbatim; everything else is replaced.
		_, err = tx.Exec(ctx,
			`DELETE FROM slots WHERE appointment_id = $1 AND attendee_email IS NULL`, id)
		if err != nil {
			return nil, fmt.Errorf("clear unclaimed slots: %w", err)
		}

		// New slots are appended after the retained claimed ones so the
		// overall ordering stays stable.
		var base int
		err = tx.QueryRow(ctx,
			`SELECT COALESCE(MAX(position)+1, 0) FROM slots WHERE appointment_id = $1`, id,
		).Scan(&base)
		if err != nil {
			return nil, fmt.Errorf("slot position base: %w", err)
		}

		for i, spec := range *req.Slots {
			duration := spec.Duration
			if duration <= 0 {
				duration = defaultDuration
			}
			s := &model.Slot{
				ID:            uuid.New().String(),
				AppointmentID: id,
				Start:         spec.Start,
				Duration:      duration,
			}
			if err = insertSlot(ctx, tx, s, base+i); err != nil {
				return nil, err
			}
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return r.GetByID(ctx, id)
}

// Delete removes an appointment, cascading to its slots, and returns the
// deleted appointment (slots included) or ErrNotFound.
func (r *AppointmentRepository) Delete(ctx context.Context, id string) (*model.Appointment, error) {
	a, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	tag, err := r.db.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("delete appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}
	return a, nil
}

// ClaimSlot performs the concurrency-safe assignment of an attendee to a
// slot inside a serialised transaction.
//
// A naive read-then-write would let two concurrent claimers both observe
// the slot as free and both "win" the same real-world time window. The
// SELECT ... FOR UPDATE acquires a row-level exclusive lock on the slot,
// so concurrent claims on the same slot id are serialised at the store's
// transaction boundary: exactly one transaction commits the assignment,
// every later one sees the attendee already set and gets ErrSlotClaimed.
//
// When keepOpen is false the appointment closes on first claim: every
// other unclaimed slot is discarded in the same transaction, so a crash
// between the two steps can never leave a half-closed appointment.
func (r *AppointmentRepository) ClaimSlot(ctx context.Context, appointmentID, slotID string, attendee model.Attendee, keepOpen bool) (*model.Slot, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var s model.Slot
	var email *string
	err = tx.QueryRow(ctx,
		`SELECT id, appointment_id, start_at, duration_minutes, attendee_email
		 FROM slots
		 WHERE id = $1 AND appointment_id = $2
		 FOR UPDATE`,
		slotID, appointmentID,
	).Scan(&s.ID, &s.AppointmentID, &s.Start, &s.Duration, &email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lock slot row: %w", err)
	}
	if email != nil {
		err = ErrSlotClaimed
		return nil, err
	}

	_, err = tx.Exec(ctx,
		`UPDATE slots SET attendee_email = $2, attendee_name = $3 WHERE id = $1`,
		s.ID, attendee.Email, attendee.Name,
	)
	if err != nil {
		return nil, fmt.Errorf("assign attendee: %w", err)
	}

	if !keepOpen {
		_, err = tx.Exec(ctx,
			`DELETE FROM slots
			 WHERE appointment_id = $1 AND id <> $2 AND attendee_email IS NULL`,
			appointmentID, s.ID,
		)
		if err != nil {
			return nil, fmt.Errorf("discard sibling slots: %w", err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	s.Attendee = &attendee
	return &s, nil
}
