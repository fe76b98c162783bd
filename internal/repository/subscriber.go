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

// SubscriberRepository handles persistence for subscribers.
type SubscriberRepository struct {
	db *pgxpool.Pool
}

// NewSubscriberRepository constructs a SubscriberRepository.
func NewSubscriberRepository(db *pgxpool.Pool) *SubscriberRepository {
	return &SubscriberRepository{db: db}
}

const subscriberCols = `id, handle, email, name, tier, tz_offset, created_at, updated_at`

func scanSubscriber(row pgx.Row) (*model.Subscriber, error) {
	var s model.Subscriber
	err := row.Scan(&s.ID, &s.Handle, &s.Email, &s.Name, &s.Tier, &s.TZOffset, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan subscriber: %w", err)
	}
	return &s, nil
}

// Create inserts a new subscriber and returns it with a generated UUID.
func (r *SubscriberRepository) Create(ctx context.Context, handle, email, name string, tier model.Tier, tzOffset *int) (*model.Subscriber, error) {
	s := &model.Subscriber{
		ID:        uuid.New().String(),
		Handle:    handle,
		Email:     email,
		Name:      name,
		Tier:      tier,
		TZOffset:  tzOffset,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO subscribers (id, handle, email, name, tier, tz_offset, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		s.ID, s.Handle, s.Email, s.Name, s.Tier, s.TZOffset, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert subscriber: %w", err)
	}
	return s, nil
}

// GetByID returns a single subscriber or ErrNotFound.
func (r *SubscriberRepository) GetByID(ctx context.Context, id string) (*model.Subscriber, error) {
	return scanSubscriber(r.db.QueryRow(ctx,
		`SELECT `+subscriberCols+` FROM subscribers WHERE id = $1`, id))
}

// GetByHandle returns the subscriber owning a public handle or ErrNotFound.
func (r *SubscriberRepository) GetByHandle(ctx context.Context, handle string) (*model.Subscriber, error) {
	return scanSubscriber(r.db.QueryRow(ctx,
		`SELECT `+subscriberCols+` FROM subscribers WHERE handle = $1`, handle))
}

// Update applies a partial profile update; nil fields keep their current
// value. Returns the updated row or ErrNotFound.
func (r *SubscriberRepository) Update(ctx context.Context, id string, req model.UpdateSubscriberRequest) (*model.Subscriber, error) {
	return scanSubscriber(r.db.QueryRow(ctx,
		`UPDATE subscribers
		 SET handle    = COALESCE($2, handle),
		     email     = COALESCE($3, email),
		     name      = COALESCE($4, name),
		     tier      = COALESCE($5, tier),
		     tz_offset = COALESCE($6, tz_offset),
		     updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+subscriberCols,
		id, req.Handle, req.Email, req.Name, req.Tier, req.TZOffset))
}
