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

// CalendarRepository handles persistence for remote calendar connections.
type CalendarRepository struct {
	db *pgxpool.Pool
}

// NewCalendarRepository constructs a CalendarRepository.
func NewCalendarRepository(db *pgxpool.Pool) *CalendarRepository {
	return &CalendarRepository{db: db}
}

const calendarCols = `id, owner_id, url, username, secret, title, created_at`

func scanCalendar(row pgx.Row) (*model.Calendar, error) {
	var c model.Calendar
	err := row.Scan(&c.ID, &c.OwnerID, &c.URL, &c.Username, &c.Secret, &c.Title, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan calendar: %w", err)
	}
	return &c, nil
}

// CreateWithLimit inserts a new calendar for ownerID unless the owner
// already has limit calendars (limit < 0 means unbounded).
//
// The count-then-insert runs inside a transaction that holds a row-level
// lock on the owner, so two concurrent creations cannot both observe a
// count below the limit and overshoot it.
func (r *CalendarRepository) CreateWithLimit(ctx context.Context, ownerID string, req model.CreateCalendarRequest, limit int) (*model.Calendar, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	// Lock the owner row; serialises concurrent calendar creations for
	// the same subscriber.
	var ownerExists string
	err = tx.QueryRow(ctx,
		`SELECT id FROM subscribers WHERE id = $1 FOR UPDATE`, ownerID,
	).Scan(&ownerExists)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lock subscriber row: %w", err)
	}

	if limit >= 0 {
		var count int
		err = tx.QueryRow(ctx,
			`SELECT COUNT(*) FROM calendars WHERE owner_id = $1`, ownerID,
		).Scan(&count)
		if err != nil {
			return nil, fmt.Errorf("count calendars: %w", err)
		}
		if count >= limit {
			err = ErrCalendarLimit
			return nil, err
		}
	}

	cal := &model.Calendar{
		ID:        uuid.New().String(),
		OwnerID:   ownerID,
		URL:       req.URL,
		Username:  req.Username,
		Secret:    req.Secret,
		Title:     req.Title,
		CreatedAt: time.Now().UTC(),
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO calendars (id, owner_id, url, username, secret, title, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		cal.ID, cal.OwnerID, cal.URL, cal.Username, cal.Secret, cal.Title, cal.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert calendar: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return cal, nil
}

// GetByID returns a single calendar or ErrNotFound.
func (r *CalendarRepository) GetByID(ctx context.Context, id string) (*model.Calendar, error) {
	return scanCalendar(r.db.QueryRow(ctx,
		`SELECT `+calendarCols+` FROM calendars WHERE id = $1`, id))
}

// ListByOwner returns all calendars owned by a subscriber, oldest first.
func (r *CalendarRepository) ListByOwner(ctx context.Context, ownerID string) ([]model.Calendar, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+calendarCols+` FROM calendars WHERE owner_id = $1 ORDER BY created_at ASC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list calendars: %w", err)
	}
	defer rows.Close()

	var out []model.Calendar
	for rows.Next() {
		var c model.Calendar
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.URL, &c.Username, &c.Secret, &c.Title, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan calendar: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Update applies a partial update; nil fields keep their current value.
func (r *CalendarRepository) Update(ctx context.Context, id string, req model.UpdateCalendarRequest) (*model.Calendar, error) {
	return scanCalendar(r.db.QueryRow(ctx,
		`UPDATE calendars
		 SET url      = COALESCE($2, url),
		     username = COALESCE($3, username),
		     secret   = COALESCE($4, secret),
		     title    = COALESCE($5, title)
		 WHERE id = $1
		 RETURNING `+calendarCols,
		id, req.URL, req.Username, req.Secret, req.Title))
}

// Delete removes a calendar and returns the deleted row, or ErrNotFound.
// Appointments under the calendar cascade at the schema level.
func (r *CalendarRepository) Delete(ctx context.Context, id string) (*model.Calendar, error) {
	return scanCalendar(r.db.QueryRow(ctx,
		`DELETE FROM calendars WHERE id = $1 RETURNING `+calendarCols, id))
}
