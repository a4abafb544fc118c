// Package directory adapts the users and events read models to the lookups
// the ticketing services consume.
package directory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/kirinyoku/ticketcore/internal/domain"
	"github.com/kirinyoku/ticketcore/internal/repository"
	"github.com/kirinyoku/ticketcore/internal/service/errmap"
)

type Directory struct {
	store repository.Store
}

func New(store repository.Store) *Directory {
	return &Directory{store: store}
}

func (d *Directory) FindUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	const op = "directory.FindUser"

	u, err := d.store.Users().Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, errmap.FromRepo(err))
	}

	return u, nil
}

func (d *Directory) FindEvent(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	const op = "directory.FindEvent"

	e, err := d.store.Events().Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, errmap.FromRepo(err))
	}

	return e, nil
}
