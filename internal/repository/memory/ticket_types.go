package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/ticketcore/internal/domain"
	"github.com/kirinyoku/ticketcore/internal/repository"
)

type TicketTypeRepo struct {
	v view
}

func (r *TicketTypeRepo) Create(_ context.Context, tt *domain.TicketType) error {
	const op = "memory.TicketTypeRepo.Create"

	return r.v.do(func(d *data) error {
		if _, ok := d.ticketTypes[tt.ID]; ok {
			return fmt.Errorf("%s: %w", op, repository.ErrConflict)
		}
		if _, ok := d.events[tt.EventID]; !ok {
			return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
		}
		d.ticketTypes[tt.ID] = *tt
		return nil
	})
}

func (r *TicketTypeRepo) Get(_ context.Context, id uuid.UUID) (*domain.TicketType, error) {
	const op = "memory.TicketTypeRepo.Get"

	var out domain.TicketType
	err := r.v.do(func(d *data) error {
		tt, ok := d.ticketTypes[id]
		if !ok {
			return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
		}
		out = tt
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &out, nil
}

func (r *TicketTypeRepo) ListByEvent(_ context.Context, eventID uuid.UUID) ([]domain.TicketType, error) {
	var out []domain.TicketType
	_ = r.v.do(func(d *data) error {
		for _, tt := range d.ticketTypes {
			if tt.EventID == eventID {
				out = append(out, tt)
			}
		}
		return nil
	})

	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Price.Cmp(out[j].Price); c != 0 {
			return c < 0
		}
		return out[i].Name < out[j].Name
	})

	return out, nil
}

func (r *TicketTypeRepo) Reserve(_ context.Context, id uuid.UUID, qty int, now time.Time) (*domain.TicketType, error) {
	const op = "memory.TicketTypeRepo.Reserve"

	var out domain.TicketType
	err := r.v.do(func(d *data) error {
		tt, ok := d.ticketTypes[id]
		switch {
		case !ok:
			return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
		case !tt.Active:
			return fmt.Errorf("%s: %w", op, repository.ErrInactive)
		case !tt.OnSale(now):
			return fmt.Errorf("%s: %w", op, repository.ErrOutsideSaleWindow)
		case qty > tt.Quantity-tt.QuantitySold:
			return fmt.Errorf("%s: %w", op, repository.ErrInsufficientQuantity)
		}

		tt.QuantitySold += qty
		tt.UpdatedAt = now
		d.ticketTypes[id] = tt
		out = tt
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &out, nil
}

func (r *TicketTypeRepo) Release(_ context.Context, id uuid.UUID, qty int) (*domain.TicketType, error) {
	const op = "memory.TicketTypeRepo.Release"

	var out domain.TicketType
	err := r.v.do(func(d *data) error {
		tt, ok := d.ticketTypes[id]
		if !ok {
			return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
		}

		tt.QuantitySold = max(tt.QuantitySold-qty, 0)
		d.ticketTypes[id] = tt
		out = tt
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &out, nil
}

func (r *TicketTypeRepo) GrowQuantity(_ context.Context, id uuid.UUID, quantity int) (*domain.TicketType, error) {
	const op = "memory.TicketTypeRepo.GrowQuantity"

	var out domain.TicketType
	err := r.v.do(func(d *data) error {
		tt, ok := d.ticketTypes[id]
		if !ok {
			return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
		}
		if quantity < tt.Quantity {
			return fmt.Errorf("%s: %w", op, repository.ErrQuantityShrink)
		}

		tt.Quantity = quantity
		d.ticketTypes[id] = tt
		out = tt
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &out, nil
}
