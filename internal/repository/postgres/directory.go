package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/ticketcore/internal/domain"
	"github.com/kirinyoku/ticketcore/internal/repository"
)

type EventRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *EventRepo) With(db DB) *EventRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *EventRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

func (r *EventRepo) Create(ctx context.Context, e *domain.Event) error {
	const op = "postgres.EventRepo.Create"

	if _, err := r.handle().Exec(ctx,
		`INSERT INTO events(id, organizer_id, title, status, starts_at, ends_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.OrganizerID, e.Title, string(e.Status), e.StartsAt, e.EndsAt, e.CreatedAt,
	); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

// Get retrieves an event by its ID.
//
// Returns:
//   - *domain.Event: the event when found.
//   - error: repository.ErrNotFound if the event is not found.
func (r *EventRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	const op = "postgres.EventRepo.Get"

	var e domain.Event
	err := r.handle().QueryRow(ctx,
		`SELECT id, organizer_id, title, status, starts_at, ends_at, created_at
		 FROM events WHERE id = $1`,
		id,
	).Scan(&e.ID, &e.OrganizerID, &e.Title, &e.Status, &e.StartsAt, &e.EndsAt, &e.CreatedAt)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &e, nil
}

func (r *EventRepo) SetStatus(ctx context.Context, id uuid.UUID, status domain.EventStatus) error {
	const op = "postgres.EventRepo.SetStatus"

	tag, err := r.handle().Exec(ctx,
		`UPDATE events SET status = $2 WHERE id = $1`, id, string(status),
	)
	if err != nil {
		return wrapDBErr(op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}

	return nil
}

type UserRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *UserRepo) With(db DB) *UserRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *UserRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	const op = "postgres.UserRepo.Create"

	if _, err := r.handle().Exec(ctx,
		`INSERT INTO users(id, email, name, created_at) VALUES ($1, $2, $3, $4)`,
		u.ID, u.Email, u.Name, u.CreatedAt,
	); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func (r *UserRepo) Get(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	const op = "postgres.UserRepo.Get"

	var u domain.User
	err := r.handle().QueryRow(ctx,
		`SELECT id, email, name, created_at FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Email, &u.Name, &u.CreatedAt)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &u, nil
}
