package memory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/kirinyoku/ticketcore/internal/domain"
	"github.com/kirinyoku/ticketcore/internal/repository"
)

type EventRepo struct {
	v view
}

func (r *EventRepo) Create(_ context.Context, e *domain.Event) error {
	const op = "memory.EventRepo.Create"

	return r.v.do(func(d *data) error {
		if _, ok := d.events[e.ID]; ok {
			return fmt.Errorf("%s: %w", op, repository.ErrConflict)
		}
		d.events[e.ID] = *e
		return nil
	})
}

func (r *EventRepo) Get(_ context.Context, id uuid.UUID) (*domain.Event, error) {
	const op = "memory.EventRepo.Get"

	var out domain.Event
	err := r.v.do(func(d *data) error {
		e, ok := d.events[id]
		if !ok {
			return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
		}
		out = e
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &out, nil
}

func (r *EventRepo) SetStatus(_ context.Context, id uuid.UUID, status domain.EventStatus) error {
	const op = "memory.EventRepo.SetStatus"

	return r.v.do(func(d *data) error {
		e, ok := d.events[id]
		if !ok {
			return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
		}
		e.Status = status
		d.events[id] = e
		return nil
	})
}

type UserRepo struct {
	v view
}

func (r *UserRepo) Create(_ context.Context, u *domain.User) error {
	const op = "memory.UserRepo.Create"

	return r.v.do(func(d *data) error {
		if _, ok := d.users[u.ID]; ok {
			return fmt.Errorf("%s: %w", op, repository.ErrConflict)
		}
		for _, existing := range d.users {
			if existing.Email == u.Email {
				return fmt.Errorf("%s: %w", op, repository.ErrConflict)
			}
		}
		d.users[u.ID] = *u
		return nil
	})
}

func (r *UserRepo) Get(_ context.Context, id uuid.UUID) (*domain.User, error) {
	const op = "memory.UserRepo.Get"

	var out domain.User
	err := r.v.do(func(d *data) error {
		u, ok := d.users[id]
		if !ok {
			return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
		}
		out = u
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &out, nil
}
